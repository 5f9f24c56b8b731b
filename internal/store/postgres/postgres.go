// Package postgres implements the store contracts on pgx. The first-accept
// race is settled by single-statement conditional UPDATEs: the row guard in
// the WHERE clause plus Postgres row locking means exactly one of any number
// of concurrent TryAssign calls reports a row affected.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/models"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/store"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) CreateIncident(ctx context.Context, incident *models.Incident) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO incidents (id, requester_id, lat, lon, status, assigned_ambulance_id, assigned_hospital_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, incident.ID, incident.RequesterID, incident.Location.Lat, incident.Location.Lon, incident.Status,
		incident.AssignedAmbulanceID, incident.AssignedHospitalID, incident.CreatedAt, incident.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("incident %s: %w", incident.ID, store.ErrDuplicate)
	}
	return err
}

func (s *Store) GetIncident(ctx context.Context, id string) (models.Incident, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, requester_id, lat, lon, status, assigned_ambulance_id, assigned_hospital_id, created_at, updated_at
		FROM incidents WHERE id = $1
	`, id)
	incident, err := scanIncident(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Incident{}, fmt.Errorf("incident %s: %w", id, store.ErrNotFound)
	}
	return incident, err
}

func (s *Store) TryAssign(ctx context.Context, incidentID string, role models.Role, candidateID string, expected models.IncidentStatus) (bool, error) {
	var (
		field string
		next  models.IncidentStatus
	)
	if role == models.RoleAmbulance {
		field = "assigned_ambulance_id"
		next = models.IncidentAmbulanceAssigned
	} else {
		field = "assigned_hospital_id"
		next = models.IncidentHospitalAssigned
	}

	tag, err := s.Pool.Exec(ctx, fmt.Sprintf(`
		UPDATE incidents
		SET %s = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4 AND %s IS NULL
	`, field, field), candidateID, next, incidentID, expected)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Distinguish a lost race from an unknown id.
	var exists bool
	if err := s.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1)`, incidentID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("incident %s: %w", incidentID, store.ErrNotFound)
	}
	return false, nil
}

func (s *Store) MarkUnroutable(ctx context.Context, incidentID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE incidents SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, models.IncidentUnroutable, incidentID, models.IncidentPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Complete(ctx context.Context, incidentID string) (models.Incident, bool, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE incidents SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status <> $1
		RETURNING id, requester_id, lat, lon, status, assigned_ambulance_id, assigned_hospital_id, created_at, updated_at
	`, models.IncidentCompleted, incidentID)
	incident, err := scanIncident(row)
	if err == nil {
		return incident, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Incident{}, false, err
	}

	// Zero rows: either already completed or unknown.
	incident, err = s.GetIncident(ctx, incidentID)
	if err != nil {
		return models.Incident{}, false, err
	}
	return incident, false, nil
}

func (s *Store) UpsertCandidate(ctx context.Context, candidate *models.Candidate) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO candidates (id, role, name, phone, lat, lon, status, current_incident_id, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			status = EXCLUDED.status,
			current_incident_id = EXCLUDED.current_incident_id,
			updated_at = NOW()
	`, candidate.ID, candidate.Role, candidate.Name, candidate.Phone,
		candidate.Location.Lat, candidate.Location.Lon, candidate.Status, candidate.CurrentIncidentID)
	return err
}

func (s *Store) GetCandidate(ctx context.Context, id string) (models.Candidate, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, role, name, phone, lat, lon, status, current_incident_id, updated_at
		FROM candidates WHERE id = $1
	`, id)
	candidate, err := scanCandidate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Candidate{}, fmt.Errorf("candidate %s: %w", id, store.ErrNotFound)
	}
	return candidate, err
}

func (s *Store) ListByRole(ctx context.Context, role models.Role) ([]models.Candidate, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, role, name, phone, lat, lon, status, current_incident_id, updated_at
		FROM candidates WHERE role = $1 ORDER BY id ASC
	`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, candidate)
	}
	return out, rows.Err()
}

func (s *Store) UpdateLocation(ctx context.Context, id string, loc models.Location) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE candidates SET lat = $1, lon = $2, updated_at = NOW() WHERE id = $3`, loc.Lat, loc.Lon, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("candidate %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) SetBusy(ctx context.Context, id string, incidentID string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE candidates SET status = $1, current_incident_id = $2, updated_at = NOW() WHERE id = $3
	`, models.CandidateBusy, incidentID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("candidate %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) SetAvailable(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE candidates SET status = $1, current_incident_id = NULL, updated_at = NOW() WHERE id = $2
	`, models.CandidateAvailable, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("candidate %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateBatch(ctx context.Context, broadcasts []*models.Broadcast) error {
	rows := make([][]any, 0, len(broadcasts))
	for _, b := range broadcasts {
		rows = append(rows, []any{b.ID, b.IncidentID, b.TargetType, b.TargetID, b.DistanceKm, b.Status, b.CreatedAt, b.ExpiresAt})
	}
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"broadcasts"},
			[]string{"id", "incident_id", "target_type", "target_id", "distance_km", "status", "created_at", "expires_at"},
			pgx.CopyFromRows(rows))
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("broadcast batch: %w", store.ErrDuplicate)
	}
	return err
}

func (s *Store) GetByTarget(ctx context.Context, incidentID string, role models.Role, targetID string) (models.Broadcast, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, incident_id, target_type, target_id, distance_km, status, created_at, expires_at
		FROM broadcasts WHERE incident_id = $1 AND target_type = $2 AND target_id = $3
	`, incidentID, role, targetID)
	b, err := scanBroadcast(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Broadcast{}, fmt.Errorf("broadcast for %s/%s/%s: %w", incidentID, role, targetID, store.ErrNotFound)
	}
	return b, err
}

func (s *Store) ListPending(ctx context.Context, role models.Role, targetID string, now time.Time) ([]models.Broadcast, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, incident_id, target_type, target_id, distance_km, status, created_at, expires_at
		FROM broadcasts
		WHERE target_type = $1 AND target_id = $2 AND status = $3 AND expires_at > $4
		ORDER BY created_at ASC
	`, role, targetID, models.BroadcastPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBroadcasts(rows)
}

func (s *Store) ListByIncident(ctx context.Context, incidentID string, role models.Role) ([]models.Broadcast, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, incident_id, target_type, target_id, distance_km, status, created_at, expires_at
		FROM broadcasts WHERE incident_id = $1 AND target_type = $2
		ORDER BY distance_km ASC
	`, incidentID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBroadcasts(rows)
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status models.BroadcastStatus) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE broadcasts SET status = $1 WHERE id = $2 AND status = $3
	`, status, id, models.BroadcastPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CancelSiblings(ctx context.Context, incidentID string, role models.Role, winnerID string) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE broadcasts SET status = $1
		WHERE incident_id = $2 AND target_type = $3 AND target_id <> $4 AND status = $5
	`, models.BroadcastCancelled, incidentID, role, winnerID, models.BroadcastPending)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE broadcasts SET status = $1 WHERE status = $2 AND expires_at <= $3
	`, models.BroadcastExpired, models.BroadcastPending, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (models.Incident, error) {
	var incident models.Incident
	err := row.Scan(&incident.ID, &incident.RequesterID, &incident.Location.Lat, &incident.Location.Lon,
		&incident.Status, &incident.AssignedAmbulanceID, &incident.AssignedHospitalID,
		&incident.CreatedAt, &incident.UpdatedAt)
	return incident, err
}

func scanCandidate(row rowScanner) (models.Candidate, error) {
	var candidate models.Candidate
	err := row.Scan(&candidate.ID, &candidate.Role, &candidate.Name, &candidate.Phone,
		&candidate.Location.Lat, &candidate.Location.Lon, &candidate.Status,
		&candidate.CurrentIncidentID, &candidate.UpdatedAt)
	return candidate, err
}

func scanBroadcast(row rowScanner) (models.Broadcast, error) {
	var b models.Broadcast
	err := row.Scan(&b.ID, &b.IncidentID, &b.TargetType, &b.TargetID, &b.DistanceKm,
		&b.Status, &b.CreatedAt, &b.ExpiresAt)
	return b, err
}

func collectBroadcasts(rows pgx.Rows) ([]models.Broadcast, error) {
	var out []models.Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
