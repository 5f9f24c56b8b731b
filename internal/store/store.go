// Package store defines the durable state contracts for the dispatch
// coordinator. The incident record is the single source of truth for
// assignment ownership: every concurrent acceptance attempt must go through
// TryAssign, which each implementation performs as one indivisible
// compare-and-set.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate record")
)

type IncidentStore interface {
	CreateIncident(ctx context.Context, incident *models.Incident) error
	GetIncident(ctx context.Context, id string) (models.Incident, error)

	// TryAssign atomically sets the assignment field for role to candidateID
	// and advances the incident status, but only when the field is still nil
	// and the status equals expected. It returns false with no mutation
	// otherwise. Exactly one concurrent caller per (incident, role) may ever
	// observe true.
	TryAssign(ctx context.Context, incidentID string, role models.Role, candidateID string, expected models.IncidentStatus) (bool, error)

	// MarkUnroutable advances pending -> unroutable. Returns false when the
	// incident is no longer pending.
	MarkUnroutable(ctx context.Context, incidentID string) (bool, error)

	// Complete advances the incident to completed and returns its final
	// state. The bool is false when the incident was already completed, in
	// which case nothing is written.
	Complete(ctx context.Context, incidentID string) (models.Incident, bool, error)
}

type CandidateStore interface {
	UpsertCandidate(ctx context.Context, candidate *models.Candidate) error
	GetCandidate(ctx context.Context, id string) (models.Candidate, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.Candidate, error)
	UpdateLocation(ctx context.Context, id string, loc models.Location) error

	// SetBusy and SetAvailable toggle candidate availability around one
	// incident cycle. Called by the coordinator only.
	SetBusy(ctx context.Context, id string, incidentID string) error
	SetAvailable(ctx context.Context, id string) error
}

type BroadcastStore interface {
	// CreateBatch persists the whole fan-out or none of it. A broadcast is
	// unique per (incident, target type, target); re-running the same
	// fan-out fails with ErrDuplicate instead of producing doubles.
	CreateBatch(ctx context.Context, broadcasts []*models.Broadcast) error

	// GetByTarget returns the broadcast offering incidentID to one specific
	// candidate, regardless of status.
	GetByTarget(ctx context.Context, incidentID string, role models.Role, targetID string) (models.Broadcast, error)

	// ListPending returns pending, unexpired offers for one candidate.
	ListPending(ctx context.Context, role models.Role, targetID string, now time.Time) ([]models.Broadcast, error)

	ListByIncident(ctx context.Context, incidentID string, role models.Role) ([]models.Broadcast, error)

	// UpdateStatus transitions one broadcast pending -> status. Returns
	// false when the broadcast already reached a terminal state.
	UpdateStatus(ctx context.Context, id string, status models.BroadcastStatus) (bool, error)

	// CancelSiblings cancels every pending broadcast for the incident and
	// role except the winner's, returning the number cancelled.
	CancelSiblings(ctx context.Context, incidentID string, role models.Role, winnerID string) (int64, error)

	// ExpirePending marks pending broadcasts whose deadline has elapsed as
	// expired and returns the number updated.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}
