package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/models"
)

// HTTPNotifier posts notices to an external call/SMS bridge. The bridge
// owns delivery; a 2xx here only means the notice was handed off.
type HTTPNotifier struct {
	BaseURL string
	Client  *http.Client
}

type noticeBody struct {
	CandidateID string  `json:"candidate_id"`
	Role        string  `json:"role"`
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	IncidentID  string  `json:"incident_id"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DistanceKm  float64 `json:"distance_km"`
	ExpiresAt   string  `json:"expires_at"`
}

func (n HTTPNotifier) Notify(ctx context.Context, candidate models.Candidate, b models.Broadcast) error {
	if n.Client == nil {
		n.Client = &http.Client{Timeout: 10 * time.Second}
	}

	payload := noticeBody{
		CandidateID: candidate.ID,
		Role:        string(candidate.Role),
		Name:        candidate.Name,
		Phone:       candidate.Phone,
		IncidentID:  b.IncidentID,
		Lat:         candidate.Location.Lat,
		Lon:         candidate.Location.Lon,
		DistanceKm:  b.DistanceKm,
		ExpiresAt:   b.ExpiresAt.UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.BaseURL+"/notify", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("notifier bridge error")
	}
	return nil
}
