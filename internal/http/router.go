package httpapi

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/config"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/http/handlers"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/http/middleware"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/service"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/store"

	_ "github.com/Rohan-S-Mathad/ambulance-app/docs"
)

func Router(cfg config.Config, coordinator *service.Coordinator, candidates store.CandidateStore, ping func(ctx context.Context) error, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Coordinator: coordinator,
		Candidates:  candidates,
		Validator:   validator.New(),
		Logger:      logger,
		Ping:        ping,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/incidents", h.CreateIncident)
		api.GET("/incidents/:id", h.GetIncident)
		api.POST("/incidents/:id/accept-ambulance", h.AcceptAmbulance)
		api.POST("/incidents/:id/accept-hospital", h.AcceptHospital)
		api.POST("/incidents/:id/reject", h.RejectBroadcast)
		api.POST("/incidents/:id/complete", h.CompleteIncident)
		api.GET("/broadcasts/:targetType/:targetId", h.ListBroadcasts)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/candidates", h.UpsertCandidates)
		admin.PUT("/candidates/:id/location", h.UpdateCandidateLocation)
		admin.GET("/candidates", h.ListCandidates)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
