package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/models"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/notify"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/store"
)

const notifyTimeout = 10 * time.Second

type Settings struct {
	TopN              int
	AmbulanceRadiusKm float64
	HospitalRadiusKm  float64
	BroadcastTTL      time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		TopN:              3,
		AmbulanceRadiusKm: 20,
		HospitalRadiusKm:  100,
		BroadcastTTL:      5 * time.Minute,
	}
}

// Coordinator orchestrates incident dispatch: rank and fan out to
// ambulances on creation, settle concurrent acceptances through the
// incident store's conditional assignment, cascade to hospitals, and
// release candidates on completion.
type Coordinator struct {
	Incidents  store.IncidentStore
	Candidates store.CandidateStore
	Broadcasts store.BroadcastStore
	Notifier   notify.Notifier
	Logger     zerolog.Logger
	Settings   Settings

	// Now is overridable in tests. Nil means time.Now.
	Now func() time.Time
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateIncident persists a pending incident and fans out to the nearest
// ambulances. With no ambulance in range the incident is immediately marked
// unroutable. Returns the incident and the number of broadcasts created.
func (c *Coordinator) CreateIncident(ctx context.Context, loc models.Location, requesterID string) (models.Incident, int, error) {
	if !loc.InRange() {
		return models.Incident{}, 0, fmt.Errorf("coordinates out of range: %w", ErrValidation)
	}

	now := c.now()
	incident := models.Incident{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		Location:    loc,
		Status:      models.IncidentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.Incidents.CreateIncident(ctx, &incident); err != nil {
		return models.Incident{}, 0, fmt.Errorf("create incident: %w", err)
	}

	ranked, err := c.rankForRole(ctx, models.RoleAmbulance, loc)
	if err != nil {
		// Incident stays pending; the caller may retry against it later.
		return incident, 0, fmt.Errorf("rank ambulances: %w", err)
	}
	if len(ranked) == 0 {
		if _, err := c.Incidents.MarkUnroutable(ctx, incident.ID); err != nil {
			return incident, 0, fmt.Errorf("mark unroutable: %w", err)
		}
		incident.Status = models.IncidentUnroutable
		c.Logger.Warn().Str("incident_id", incident.ID).Msg("no ambulances in range")
		return incident, 0, nil
	}

	count, err := c.fanOut(ctx, incident, models.RoleAmbulance, ranked)
	if err != nil {
		return incident, 0, err
	}
	c.Logger.Info().
		Str("incident_id", incident.ID).
		Int("broadcasts", count).
		Msg("incident created")
	return incident, count, nil
}

// AcceptAsAmbulance settles an ambulance's claim on a pending incident.
// Exactly one concurrent caller wins; the winner's acceptance triggers the
// hospital fan-out.
func (c *Coordinator) AcceptAsAmbulance(ctx context.Context, incidentID, candidateID string) error {
	if err := c.accept(ctx, incidentID, models.RoleAmbulance, candidateID, models.IncidentPending); err != nil {
		return err
	}

	// Hospital cascade. The ambulance assignment is committed; failures
	// here are logged and left to operator escalation, never rolled back.
	incident, err := c.Incidents.GetIncident(ctx, incidentID)
	if err != nil {
		c.Logger.Error().Err(err).Str("incident_id", incidentID).Msg("load incident for hospital fan-out")
		return nil
	}
	ranked, err := c.rankForRole(ctx, models.RoleHospital, incident.Location)
	if err != nil {
		c.Logger.Error().Err(err).Str("incident_id", incidentID).Msg("rank hospitals")
		return nil
	}
	if len(ranked) == 0 {
		c.Logger.Warn().Str("incident_id", incidentID).Msg("no hospitals in range")
		return nil
	}
	if _, err := c.fanOut(ctx, incident, models.RoleHospital, ranked); err != nil {
		c.Logger.Error().Err(err).Str("incident_id", incidentID).Msg("hospital fan-out")
	}
	return nil
}

// AcceptAsHospital settles a hospital's claim once an ambulance is bound.
func (c *Coordinator) AcceptAsHospital(ctx context.Context, incidentID, candidateID string) error {
	return c.accept(ctx, incidentID, models.RoleHospital, candidateID, models.IncidentAmbulanceAssigned)
}

func (c *Coordinator) accept(ctx context.Context, incidentID string, role models.Role, candidateID string, expected models.IncidentStatus) error {
	b, err := c.Broadcasts.GetByTarget(ctx, incidentID, role, candidateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no broadcast for %s %s on incident %s: %w", role, candidateID, incidentID, ErrNotFound)
		}
		return err
	}

	// Expiry is checked before the conditional assignment so a stale offer
	// is refused even when the sweeper has not run yet.
	if !b.ExpiresAt.After(c.now()) {
		if _, err := c.Broadcasts.UpdateStatus(ctx, b.ID, models.BroadcastExpired); err != nil {
			c.Logger.Warn().Err(err).Str("broadcast_id", b.ID).Msg("mark expired")
		}
		return fmt.Errorf("broadcast %s: %w", b.ID, ErrExpired)
	}

	won, err := c.Incidents.TryAssign(ctx, incidentID, role, candidateID, expected)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
		}
		return err
	}
	if !won {
		return c.classifyLoss(ctx, incidentID, role)
	}

	// Post-commit bookkeeping is best effort. A stale pending sibling is
	// harmless: any later claim on it loses at TryAssign.
	if err := c.Candidates.SetBusy(ctx, candidateID, incidentID); err != nil {
		c.Logger.Error().Err(err).Str("candidate_id", candidateID).Msg("mark candidate busy")
	}
	if _, err := c.Broadcasts.UpdateStatus(ctx, b.ID, models.BroadcastAccepted); err != nil {
		c.Logger.Warn().Err(err).Str("broadcast_id", b.ID).Msg("mark accepted")
	}
	cancelled, err := c.Broadcasts.CancelSiblings(ctx, incidentID, role, candidateID)
	if err != nil {
		c.Logger.Warn().Err(err).Str("incident_id", incidentID).Msg("cancel sibling broadcasts")
	}

	c.Logger.Info().
		Str("incident_id", incidentID).
		Str("role", string(role)).
		Str("candidate_id", candidateID).
		Int64("siblings_cancelled", cancelled).
		Msg("assignment won")
	return nil
}

func (c *Coordinator) classifyLoss(ctx context.Context, incidentID string, role models.Role) error {
	incident, err := c.Incidents.GetIncident(ctx, incidentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
		}
		return err
	}
	if incident.Assigned(role) != nil {
		return fmt.Errorf("incident %s %s: %w", incidentID, role, ErrAlreadyAssigned)
	}
	return fmt.Errorf("incident %s is %s: %w", incidentID, incident.Status, ErrInvalidStatus)
}

// Reject marks one candidate's pending offer rejected. The incident and
// its other broadcasts are unaffected; the remaining top-N pool is the
// complete fallback set, so no re-fan-out happens here.
func (c *Coordinator) Reject(ctx context.Context, incidentID string, role models.Role, candidateID string) error {
	b, err := c.Broadcasts.GetByTarget(ctx, incidentID, role, candidateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no broadcast for %s %s on incident %s: %w", role, candidateID, incidentID, ErrNotFound)
		}
		return err
	}
	if _, err := c.Broadcasts.UpdateStatus(ctx, b.ID, models.BroadcastRejected); err != nil {
		return err
	}
	return nil
}

// Complete marks the incident completed and releases its candidates back to
// available. Completing an already-completed incident is a no-op.
func (c *Coordinator) Complete(ctx context.Context, incidentID string) (models.Incident, error) {
	incident, changed, err := c.Incidents.Complete(ctx, incidentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Incident{}, fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
		}
		return models.Incident{}, err
	}
	if !changed {
		return incident, nil
	}

	for _, id := range []*string{incident.AssignedAmbulanceID, incident.AssignedHospitalID} {
		if id == nil {
			continue
		}
		if err := c.Candidates.SetAvailable(ctx, *id); err != nil {
			c.Logger.Error().Err(err).Str("candidate_id", *id).Msg("release candidate")
		}
	}
	c.Logger.Info().Str("incident_id", incidentID).Msg("incident completed")
	return incident, nil
}

func (c *Coordinator) GetIncident(ctx context.Context, incidentID string) (models.Incident, error) {
	incident, err := c.Incidents.GetIncident(ctx, incidentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Incident{}, fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
		}
		return models.Incident{}, err
	}
	return incident, nil
}

// ListPendingBroadcasts is the polling surface for candidate clients.
func (c *Coordinator) ListPendingBroadcasts(ctx context.Context, role models.Role, targetID string) ([]models.Broadcast, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", role, ErrValidation)
	}
	return c.Broadcasts.ListPending(ctx, role, targetID, c.now())
}

func (c *Coordinator) rankForRole(ctx context.Context, role models.Role, origin models.Location) ([]models.RankedCandidate, error) {
	candidates, err := c.Candidates.ListByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	radius := c.Settings.AmbulanceRadiusKm
	if role == models.RoleHospital {
		radius = c.Settings.HospitalRadiusKm
	}
	return Rank(origin, candidates, c.Settings.TopN, radius), nil
}

// fanOut writes the whole batch atomically, then hands each notice to the
// notifier on detached goroutines. Notification latency and failures never
// touch broadcast state.
func (c *Coordinator) fanOut(ctx context.Context, incident models.Incident, role models.Role, ranked []models.RankedCandidate) (int, error) {
	now := c.now()
	broadcasts := make([]*models.Broadcast, 0, len(ranked))
	for _, rc := range ranked {
		broadcasts = append(broadcasts, &models.Broadcast{
			ID:         uuid.NewString(),
			IncidentID: incident.ID,
			TargetType: role,
			TargetID:   rc.Candidate.ID,
			DistanceKm: rc.DistanceKm,
			Status:     models.BroadcastPending,
			CreatedAt:  now,
			ExpiresAt:  now.Add(c.Settings.BroadcastTTL),
		})
	}
	if err := c.Broadcasts.CreateBatch(ctx, broadcasts); err != nil {
		return 0, fmt.Errorf("fan out %s broadcasts: %w", role, err)
	}

	for i, rc := range ranked {
		go func(candidate models.Candidate, b models.Broadcast) {
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
			defer cancel()
			if err := c.Notifier.Notify(nctx, candidate, b); err != nil {
				c.Logger.Warn().Err(err).
					Str("candidate_id", candidate.ID).
					Str("incident_id", b.IncidentID).
					Msg("notify failed")
			}
		}(rc.Candidate, *broadcasts[i])
	}
	return len(broadcasts), nil
}
