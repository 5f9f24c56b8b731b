package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/models"
)

// RedisNotifier publishes notices on a per-candidate channel. Candidate
// clients subscribe to their own channel; an unsubscribed candidate misses
// the push and falls back to polling its pending broadcasts.
type RedisNotifier struct {
	Client *redis.Client
}

func NewRedisNotifier(addr string) *RedisNotifier {
	return &RedisNotifier{Client: redis.NewClient(&redis.Options{Addr: addr})}
}

func Channel(role models.Role, candidateID string) string {
	return fmt.Sprintf("dispatch:notify:%s:%s", role, candidateID)
}

func (n *RedisNotifier) Notify(ctx context.Context, candidate models.Candidate, b models.Broadcast) error {
	payload, err := json.Marshal(map[string]any{
		"broadcast_id": b.ID,
		"incident_id":  b.IncidentID,
		"distance_km":  b.DistanceKm,
		"expires_at":   b.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return n.Client.Publish(ctx, Channel(candidate.Role, candidate.ID), payload).Err()
}
