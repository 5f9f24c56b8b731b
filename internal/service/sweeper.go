package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/store"
)

// Sweeper garbage-collects stale broadcast records on a fixed schedule. It
// never touches incidents or candidates: an incident whose offers all
// expired stays pending until an operator decides otherwise.
type Sweeper struct {
	Broadcasts store.BroadcastStore
	Logger     zerolog.Logger
}

func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.Broadcasts.ExpirePending(ctx, time.Now().UTC())
	if err != nil {
		s.Logger.Error().Err(err).Msg("expire sweep failed")
		return 0, err
	}
	if n > 0 {
		s.Logger.Info().Int64("expired", n).Msg("expired stale broadcasts")
	}
	return n, nil
}
