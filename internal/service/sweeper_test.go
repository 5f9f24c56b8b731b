package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/models"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/store/memory"
)

func TestSweepExpiresOnlyStalePending(t *testing.T) {
	st := memory.New()
	now := time.Now().UTC()

	seed := []*models.Broadcast{
		{ID: "b-stale", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-1",
			Status: models.BroadcastPending, CreatedAt: now.Add(-10 * time.Minute), ExpiresAt: now.Add(-5 * time.Minute)},
		{ID: "b-live", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-2",
			Status: models.BroadcastPending, CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)},
		{ID: "b-accepted", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-3",
			Status: models.BroadcastAccepted, CreatedAt: now.Add(-10 * time.Minute), ExpiresAt: now.Add(-5 * time.Minute)},
	}
	if err := st.CreateBatch(context.Background(), seed); err != nil {
		t.Fatalf("seed broadcasts: %v", err)
	}

	sweeper := &Sweeper{Broadcasts: st, Logger: zerolog.Nop()}
	n, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired broadcast, got %d", n)
	}

	want := map[string]models.BroadcastStatus{
		"b-stale":    models.BroadcastExpired,
		"b-live":     models.BroadcastPending,
		"b-accepted": models.BroadcastAccepted,
	}
	broadcasts, err := st.ListByIncident(context.Background(), "inc-1", models.RoleAmbulance)
	if err != nil {
		t.Fatalf("list broadcasts: %v", err)
	}
	for _, b := range broadcasts {
		if b.Status != want[b.ID] {
			t.Errorf("broadcast %s: expected %s, got %s", b.ID, want[b.ID], b.Status)
		}
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	st := memory.New()
	now := time.Now().UTC()
	seed := []*models.Broadcast{
		{ID: "b-1", IncidentID: "inc-1", TargetType: models.RoleAmbulance, TargetID: "amb-1",
			Status: models.BroadcastPending, CreatedAt: now.Add(-10 * time.Minute), ExpiresAt: now.Add(-time.Minute)},
	}
	if err := st.CreateBatch(context.Background(), seed); err != nil {
		t.Fatalf("seed broadcasts: %v", err)
	}

	sweeper := &Sweeper{Broadcasts: st, Logger: zerolog.Nop()}
	if n, err := sweeper.Sweep(context.Background()); err != nil || n != 1 {
		t.Fatalf("first sweep: n=%d err=%v", n, err)
	}
	if n, err := sweeper.Sweep(context.Background()); err != nil || n != 0 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
}
