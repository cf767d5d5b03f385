package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultFlashTTL bounds how long an unread flash survives.
const DefaultFlashTTL = 5 * time.Minute

// Flash is a one-shot status message handed from a redirecting action to the
// next page render.
type Flash struct {
	Category string              `json:"category"`
	Message  string              `json:"message,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
	Old      map[string]string   `json:"old,omitempty"`
}

type FlashStore struct {
	Redis *redis.Client
	TTL   time.Duration
}

func flashKey(id string) string { return "flash:" + id }

// Put stores f and returns the id to hand to the browser.
func (s *FlashStore) Put(ctx context.Context, f Flash) (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultFlashTTL
	}
	id := uuid.NewString()
	if err := s.Redis.Set(ctx, flashKey(id), data, ttl).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// Pop returns and deletes the flash. A missing flash yields nil, nil.
func (s *FlashStore) Pop(ctx context.Context, id string) (*Flash, error) {
	if id == "" {
		return nil, nil
	}
	data, err := s.Redis.GetDel(ctx, flashKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f Flash
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
