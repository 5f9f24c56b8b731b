// Package notify delivers broadcast notices to candidates out of band.
// Delivery is never required for correctness: the coordinator logs failures
// and moves on, and a candidate that was never reached simply never acts on
// its offer.
package notify

import (
	"context"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/models"
)

type Notifier interface {
	Notify(ctx context.Context, candidate models.Candidate, b models.Broadcast) error
}
