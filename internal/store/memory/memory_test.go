package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/models"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/store"
)

func seedIncident(t *testing.T, s *Store, id string, status models.IncidentStatus) {
	t.Helper()
	now := time.Now().UTC()
	err := s.CreateIncident(context.Background(), &models.Incident{
		ID:        id,
		Location:  models.Location{Lat: 12.9, Lon: 77.5},
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed incident: %v", err)
	}
}

func TestTryAssignSingleWinner(t *testing.T) {
	s := New()
	seedIncident(t, s, "inc-1", models.IncidentPending)

	const racers = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			won, err := s.TryAssign(context.Background(), "inc-1", models.RoleAmbulance, "amb", models.IncidentPending)
			if err != nil {
				t.Errorf("try assign: %v", err)
				return
			}
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	incident, err := s.GetIncident(context.Background(), "inc-1")
	if err != nil {
		t.Fatalf("get incident: %v", err)
	}
	if incident.Status != models.IncidentAmbulanceAssigned {
		t.Fatalf("expected ambulance_assigned, got %s", incident.Status)
	}
}

func TestTryAssignWrongExpectedStatus(t *testing.T) {
	s := New()
	seedIncident(t, s, "inc-1", models.IncidentPending)

	won, err := s.TryAssign(context.Background(), "inc-1", models.RoleHospital, "hosp-1", models.IncidentAmbulanceAssigned)
	if err != nil {
		t.Fatalf("try assign: %v", err)
	}
	if won {
		t.Fatal("hospital must not bind a pending incident")
	}
}

func TestTryAssignUnknownIncident(t *testing.T) {
	s := New()
	_, err := s.TryAssign(context.Background(), "missing", models.RoleAmbulance, "amb-1", models.IncidentPending)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkUnroutableOnlyFromPending(t *testing.T) {
	s := New()
	seedIncident(t, s, "inc-1", models.IncidentPending)

	changed, err := s.MarkUnroutable(context.Background(), "inc-1")
	if err != nil || !changed {
		t.Fatalf("first mark: changed=%v err=%v", changed, err)
	}
	changed, err = s.MarkUnroutable(context.Background(), "inc-1")
	if err != nil || changed {
		t.Fatalf("second mark: changed=%v err=%v", changed, err)
	}
}

func TestCreateBatchIsAllOrNothing(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	first := []*models.Broadcast{
		{ID: "b-1", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-1",
			Status: models.BroadcastPending, CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)},
	}
	if err := s.CreateBatch(context.Background(), first); err != nil {
		t.Fatalf("first batch: %v", err)
	}

	// The second batch collides on (incident, role, target); the fresh row
	// in the same batch must not survive the failure.
	second := []*models.Broadcast{
		{ID: "b-2", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-2",
			Status: models.BroadcastPending, CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)},
		{ID: "b-3", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-1",
			Status: models.BroadcastPending, CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)},
	}
	err := s.CreateBatch(context.Background(), second)
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	if _, err := s.GetByTarget(context.Background(), "inc-1", models.RoleAmbulance, "amb-2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected rolled-back row to be absent, got %v", err)
	}
}

func TestCreateBatchRejectsInternalDuplicate(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	batch := []*models.Broadcast{
		{ID: "b-1", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-1",
			Status: models.BroadcastPending, CreatedAt: now, ExpiresAt: now.Add(time.Minute)},
		{ID: "b-2", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-1",
			Status: models.BroadcastPending, CreatedAt: now, ExpiresAt: now.Add(time.Minute)},
	}
	if err := s.CreateBatch(context.Background(), batch); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestUpdateStatusTerminalIsFrozen(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	batch := []*models.Broadcast{
		{ID: "b-1", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-1",
			Status: models.BroadcastPending, CreatedAt: now, ExpiresAt: now.Add(time.Minute)},
	}
	if err := s.CreateBatch(context.Background(), batch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	changed, err := s.UpdateStatus(context.Background(), "b-1", models.BroadcastAccepted)
	if err != nil || !changed {
		t.Fatalf("accept: changed=%v err=%v", changed, err)
	}
	changed, err = s.UpdateStatus(context.Background(), "b-1", models.BroadcastCancelled)
	if err != nil || changed {
		t.Fatalf("terminal status must not change: changed=%v err=%v", changed, err)
	}
	b, err := s.GetByTarget(context.Background(), "inc-1", models.RoleAmbulance, "amb-1")
	if err != nil {
		t.Fatalf("get broadcast: %v", err)
	}
	if b.Status != models.BroadcastAccepted {
		t.Fatalf("expected accepted, got %s", b.Status)
	}
}

func TestListPendingSkipsExpired(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	batch := []*models.Broadcast{
		{ID: "b-live", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-1",
			Status: models.BroadcastPending, CreatedAt: now, ExpiresAt: now.Add(time.Minute)},
		{ID: "b-stale", IncidentID: "inc-2", TargetType: models.RoleAmbulance, TargetID: "amb-1",
			Status: models.BroadcastPending, CreatedAt: now.Add(-10 * time.Minute), ExpiresAt: now.Add(-time.Minute)},
	}
	if err := s.CreateBatch(context.Background(), batch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pending, err := s.ListPending(context.Background(), models.RoleAmbulance, "amb-1", now)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "b-live" {
		t.Fatalf("expected only the live broadcast, got %+v", pending)
	}
}

func TestCancelSiblingsSparesWinnerAndTerminal(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	batch := []*models.Broadcast{
		{ID: "b-win", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-1",
			Status: models.BroadcastPending, CreatedAt: now, ExpiresAt: now.Add(time.Minute)},
		{ID: "b-sib", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-2",
			Status: models.BroadcastPending, CreatedAt: now, ExpiresAt: now.Add(time.Minute)},
		{ID: "b-rej", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-3",
			Status: models.BroadcastRejected, CreatedAt: now, ExpiresAt: now.Add(time.Minute)},
	}
	if err := s.CreateBatch(context.Background(), batch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := s.CancelSiblings(context.Background(), "inc-1", models.RoleAmbulance, "amb-1")
	if err != nil {
		t.Fatalf("cancel siblings: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 cancellation, got %d", n)
	}
	for id, want := range map[string]models.BroadcastStatus{
		"amb-1": models.BroadcastPending,
		"amb-2": models.BroadcastCancelled,
		"amb-3": models.BroadcastRejected,
	} {
		b, err := s.GetByTarget(context.Background(), "inc-1", models.RoleAmbulance, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if b.Status != want {
			t.Errorf("%s: expected %s, got %s", id, want, b.Status)
		}
	}
}

func TestCandidateBusyLifecycle(t *testing.T) {
	s := New()
	err := s.UpsertCandidate(context.Background(), &models.Candidate{
		ID:       "amb-1",
		Role:     models.RoleAmbulance,
		Status:   models.CandidateAvailable,
		Location: models.Location{Lat: 12.9, Lon: 77.5},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.SetBusy(context.Background(), "amb-1", "inc-1"); err != nil {
		t.Fatalf("set busy: %v", err)
	}
	c, err := s.GetCandidate(context.Background(), "amb-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Status != models.CandidateBusy || c.CurrentIncidentID == nil || *c.CurrentIncidentID != "inc-1" {
		t.Fatalf("expected busy on inc-1, got %+v", c)
	}

	if err := s.SetAvailable(context.Background(), "amb-1"); err != nil {
		t.Fatalf("set available: %v", err)
	}
	c, err = s.GetCandidate(context.Background(), "amb-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Status != models.CandidateAvailable || c.CurrentIncidentID != nil {
		t.Fatalf("expected released candidate, got %+v", c)
	}
}
