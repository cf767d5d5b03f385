package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session is an authenticated browser session kept in redis.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	LoginTime time.Time `json:"loginTime"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionStore keeps each session in a hash at session:<id> and indexes the
// ids per user in a set at user_sessions:<userID>.
type SessionStore struct {
	Redis *redis.Client
}

func sessionKey(id string) string       { return "session:" + id }
func userSessionsKey(uid string) string { return "user_sessions:" + uid }

func (s *SessionStore) Create(ctx context.Context, sess Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}

	pipe := s.Redis.TxPipeline()
	pipe.HSet(ctx, sessionKey(sess.ID), map[string]interface{}{
		"userId":    sess.UserID,
		"email":     sess.Email,
		"ipAddress": sess.IP,
		"userAgent": sess.UserAgent,
		"loginTime": sess.LoginTime.Unix(),
		"expires":   sess.ExpiresAt.Unix(),
	})
	pipe.Expire(ctx, sessionKey(sess.ID), ttl)
	pipe.SAdd(ctx, userSessionsKey(sess.UserID), sess.ID)
	pipe.Expire(ctx, userSessionsKey(sess.UserID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns nil, nil for unknown or expired sessions.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	vals, err := s.Redis.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}

	expUnix, _ := strconv.ParseInt(vals["expires"], 10, 64)
	loginUnix, _ := strconv.ParseInt(vals["loginTime"], 10, 64)
	sess := &Session{
		ID:        id,
		UserID:    vals["userId"],
		Email:     vals["email"],
		IP:        vals["ipAddress"],
		UserAgent: vals["userAgent"],
		LoginTime: time.Unix(loginUnix, 0),
		ExpiresAt: time.Unix(expUnix, 0),
	}

	if !sess.ExpiresAt.After(time.Now()) {
		_ = s.Delete(ctx, id)
		return nil, nil
	}
	return sess, nil
}

// Delete removes the session. Unknown ids are not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	uid, err := s.Redis.HGet(ctx, sessionKey(id), "userId").Result()
	if err != nil && err != redis.Nil {
		return err
	}

	pipe := s.Redis.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	if uid != "" {
		pipe.SRem(ctx, userSessionsKey(uid), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteByUser revokes every session of the user and returns how many ids
// were indexed.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.Redis.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return 0, err
	}

	pipe := s.Redis.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, sessionKey(id))
	}
	pipe.Del(ctx, userSessionsKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ListForUser returns live sessions and prunes ids whose hash has expired.
func (s *SessionStore) ListForUser(ctx context.Context, userID string) ([]Session, error) {
	ids, err := s.Redis.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	var sessions []Session
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			s.Redis.SRem(ctx, userSessionsKey(userID), id)
			continue
		}
		sessions = append(sessions, *sess)
	}
	return sessions, nil
}

func NewSessionID() string {
	return uuid.NewString()
}
