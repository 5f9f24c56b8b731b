package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/models"
)

// LogNotifier records each notice in the service log. Default when no
// delivery bridge is configured.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, candidate models.Candidate, b models.Broadcast) error {
	n.Logger.Info().
		Str("candidate_id", candidate.ID).
		Str("role", string(candidate.Role)).
		Str("incident_id", b.IncidentID).
		Float64("distance_km", b.DistanceKm).
		Time("expires_at", b.ExpiresAt).
		Msg("broadcast notice")
	return nil
}
