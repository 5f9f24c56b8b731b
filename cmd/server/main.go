package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/config"
	httpapi "github.com/Rohan-S-Mathad/ambulance-app/internal/http"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/notify"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/service"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/store"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/store/memory"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/store/postgres"
)

type stores struct {
	incidents  store.IncidentStore
	candidates store.CandidateStore
	broadcasts store.BroadcastStore
	ping       func(ctx context.Context) error
	close      func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "dispatch-backend").Logger()

	ctx := context.Background()
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.close()

	var notifier notify.Notifier
	switch {
	case cfg.RedisAddr != "":
		notifier = notify.NewRedisNotifier(cfg.RedisAddr)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis notifier")
	case cfg.NotifierURL != "":
		notifier = notify.HTTPNotifier{BaseURL: cfg.NotifierURL}
		logger.Info().Str("url", cfg.NotifierURL).Msg("using http notifier")
	default:
		notifier = notify.LogNotifier{Logger: logger}
		logger.Info().Msg("using log notifier")
	}

	coordinator := &service.Coordinator{
		Incidents:  st.incidents,
		Candidates: st.candidates,
		Broadcasts: st.broadcasts,
		Notifier:   notifier,
		Logger:     logger,
		Settings: service.Settings{
			TopN:              cfg.DispatchTopN,
			AmbulanceRadiusKm: cfg.AmbulanceRadiusKm,
			HospitalRadiusKm:  cfg.HospitalRadiusKm,
			BroadcastTTL:      cfg.BroadcastTTL,
		},
	}

	sweeper := &service.Sweeper{Broadcasts: st.broadcasts, Logger: logger}
	schedule := cron.New()
	if _, err := schedule.AddFunc("@every "+cfg.SweepInterval.String(), func() {
		_, _ = sweeper.Sweep(ctx)
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule expiry sweep")
	}
	schedule.Start()
	defer schedule.Stop()

	router := httpapi.Router(cfg, coordinator, st.candidates, st.ping, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

func openStores(ctx context.Context, cfg config.Config, logger zerolog.Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		logger.Info().Msg("DATABASE_URL not set, using in-memory store")
		mem := memory.New()
		return stores{
			incidents:  mem,
			candidates: mem,
			broadcasts: mem,
			close:      func() {},
		}, nil
	}

	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	return stores{
		incidents:  pg,
		candidates: pg,
		broadcasts: pg,
		ping:       pg.Ping,
		close:      pg.Close,
	}, nil
}
