// Package memory implements the store contracts on process-local maps. A
// single mutex guards every map, so conditional updates are trivially
// serializable. Used for development and tests; not a system of record
// once more than one coordinator instance exists.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/models"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/store"
)

type Store struct {
	mu         sync.Mutex
	incidents  map[string]models.Incident
	candidates map[string]models.Candidate
	broadcasts map[string]models.Broadcast
}

func New() *Store {
	return &Store{
		incidents:  make(map[string]models.Incident),
		candidates: make(map[string]models.Candidate),
		broadcasts: make(map[string]models.Broadcast),
	}
}

func (s *Store) CreateIncident(_ context.Context, incident *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[incident.ID]; ok {
		return fmt.Errorf("incident %s: %w", incident.ID, store.ErrDuplicate)
	}
	s.incidents[incident.ID] = *incident
	return nil
}

func (s *Store) GetIncident(_ context.Context, id string) (models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	incident, ok := s.incidents[id]
	if !ok {
		return models.Incident{}, fmt.Errorf("incident %s: %w", id, store.ErrNotFound)
	}
	return incident, nil
}

func (s *Store) TryAssign(_ context.Context, incidentID string, role models.Role, candidateID string, expected models.IncidentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incident, ok := s.incidents[incidentID]
	if !ok {
		return false, fmt.Errorf("incident %s: %w", incidentID, store.ErrNotFound)
	}
	if incident.Status != expected || incident.Assigned(role) != nil {
		return false, nil
	}

	id := candidateID
	if role == models.RoleAmbulance {
		incident.AssignedAmbulanceID = &id
		incident.Status = models.IncidentAmbulanceAssigned
	} else {
		incident.AssignedHospitalID = &id
		incident.Status = models.IncidentHospitalAssigned
	}
	incident.UpdatedAt = time.Now().UTC()
	s.incidents[incidentID] = incident
	return true, nil
}

func (s *Store) MarkUnroutable(_ context.Context, incidentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incident, ok := s.incidents[incidentID]
	if !ok {
		return false, fmt.Errorf("incident %s: %w", incidentID, store.ErrNotFound)
	}
	if incident.Status != models.IncidentPending {
		return false, nil
	}
	incident.Status = models.IncidentUnroutable
	incident.UpdatedAt = time.Now().UTC()
	s.incidents[incidentID] = incident
	return true, nil
}

func (s *Store) Complete(_ context.Context, incidentID string) (models.Incident, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incident, ok := s.incidents[incidentID]
	if !ok {
		return models.Incident{}, false, fmt.Errorf("incident %s: %w", incidentID, store.ErrNotFound)
	}
	if incident.Status == models.IncidentCompleted {
		return incident, false, nil
	}
	incident.Status = models.IncidentCompleted
	incident.UpdatedAt = time.Now().UTC()
	s.incidents[incidentID] = incident
	return incident, true, nil
}

func (s *Store) UpsertCandidate(_ context.Context, candidate *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *candidate
	c.UpdatedAt = time.Now().UTC()
	s.candidates[c.ID] = c
	return nil
}

func (s *Store) GetCandidate(_ context.Context, id string) (models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate, ok := s.candidates[id]
	if !ok {
		return models.Candidate{}, fmt.Errorf("candidate %s: %w", id, store.ErrNotFound)
	}
	return candidate, nil
}

func (s *Store) ListByRole(_ context.Context, role models.Role) ([]models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Candidate
	for _, c := range s.candidates {
		if c.Role == role {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateLocation(_ context.Context, id string, loc models.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate, ok := s.candidates[id]
	if !ok {
		return fmt.Errorf("candidate %s: %w", id, store.ErrNotFound)
	}
	candidate.Location = loc
	candidate.UpdatedAt = time.Now().UTC()
	s.candidates[id] = candidate
	return nil
}

func (s *Store) SetBusy(_ context.Context, id string, incidentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate, ok := s.candidates[id]
	if !ok {
		return fmt.Errorf("candidate %s: %w", id, store.ErrNotFound)
	}
	candidate.Status = models.CandidateBusy
	candidate.CurrentIncidentID = &incidentID
	candidate.UpdatedAt = time.Now().UTC()
	s.candidates[id] = candidate
	return nil
}

func (s *Store) SetAvailable(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate, ok := s.candidates[id]
	if !ok {
		return fmt.Errorf("candidate %s: %w", id, store.ErrNotFound)
	}
	candidate.Status = models.CandidateAvailable
	candidate.CurrentIncidentID = nil
	candidate.UpdatedAt = time.Now().UTC()
	s.candidates[id] = candidate
	return nil
}

func broadcastKey(incidentID string, role models.Role, targetID string) string {
	return incidentID + "/" + string(role) + "/" + targetID
}

func (s *Store) CreateBatch(_ context.Context, broadcasts []*models.Broadcast) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(broadcasts))
	for _, b := range broadcasts {
		key := broadcastKey(b.IncidentID, b.TargetType, b.TargetID)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("broadcast %s: %w", key, store.ErrDuplicate)
		}
		seen[key] = struct{}{}
		for _, existing := range s.broadcasts {
			if existing.IncidentID == b.IncidentID && existing.TargetType == b.TargetType && existing.TargetID == b.TargetID {
				return fmt.Errorf("broadcast %s: %w", key, store.ErrDuplicate)
			}
		}
	}
	for _, b := range broadcasts {
		s.broadcasts[b.ID] = *b
	}
	return nil
}

func (s *Store) GetByTarget(_ context.Context, incidentID string, role models.Role, targetID string) (models.Broadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.broadcasts {
		if b.IncidentID == incidentID && b.TargetType == role && b.TargetID == targetID {
			return b, nil
		}
	}
	return models.Broadcast{}, fmt.Errorf("broadcast for %s/%s/%s: %w", incidentID, role, targetID, store.ErrNotFound)
}

func (s *Store) ListPending(_ context.Context, role models.Role, targetID string, now time.Time) ([]models.Broadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Broadcast
	for _, b := range s.broadcasts {
		if b.TargetType == role && b.TargetID == targetID && b.Status == models.BroadcastPending && b.ExpiresAt.After(now) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListByIncident(_ context.Context, incidentID string, role models.Role) ([]models.Broadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Broadcast
	for _, b := range s.broadcasts {
		if b.IncidentID == incidentID && b.TargetType == role {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, status models.BroadcastStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return false, fmt.Errorf("broadcast %s: %w", id, store.ErrNotFound)
	}
	if b.Status.Terminal() {
		return false, nil
	}
	b.Status = status
	s.broadcasts[id] = b
	return true, nil
}

func (s *Store) CancelSiblings(_ context.Context, incidentID string, role models.Role, winnerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, b := range s.broadcasts {
		if b.IncidentID == incidentID && b.TargetType == role && b.TargetID != winnerID && b.Status == models.BroadcastPending {
			b.Status = models.BroadcastCancelled
			s.broadcasts[id] = b
			n++
		}
	}
	return n, nil
}

func (s *Store) ExpirePending(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, b := range s.broadcasts {
		if b.Status == models.BroadcastPending && !b.ExpiresAt.After(now) {
			b.Status = models.BroadcastExpired
			s.broadcasts[id] = b
			n++
		}
	}
	return n, nil
}
