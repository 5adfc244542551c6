// Package redisstore implements the session store on Redis, keyed by token
// hash with TTL-based expiry.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/chainwage/payroll_layer/internal/app/domain/user"
	"github.com/chainwage/payroll_layer/internal/app/storage"
)

const keyPrefix = "payroll:session:"

// SessionStore persists sessions in Redis. Expiry is enforced by key TTL, so
// expired sessions vanish without a sweeper.
type SessionStore struct {
	client *redis.Client
}

var _ storage.SessionStore = (*SessionStore)(nil)

// New wraps an existing Redis client.
func New(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Open connects to Redis using a URL (redis://...) and verifies the
// connection.
func Open(ctx context.Context, url string) (*SessionStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client), nil
}

// Close releases the underlying client.
func (s *SessionStore) Close() error {
	return s.client.Close()
}

func sessionKey(tokenHash string) string {
	return keyPrefix + tokenHash
}

// idKey maps a session ID back to its token hash so TouchSession can find the
// record.
func idKey(id string) string {
	return keyPrefix + "id:" + id
}

func (s *SessionStore) CreateSession(ctx context.Context, sess user.Session) (user.Session, error) {
	if sess.TokenHash == "" {
		return user.Session{}, fmt.Errorf("token hash is required")
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.LastActiveAt = now

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return user.Session{}, fmt.Errorf("session already expired")
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return user.Session{}, err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.TokenHash), payload, ttl)
	pipe.Set(ctx, idKey(sess.ID), sess.TokenHash, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return user.Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (user.Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return user.Session{}, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	if err != nil {
		return user.Session{}, fmt.Errorf("load session: %w", err)
	}

	var sess user.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return user.Session{}, fmt.Errorf("decode session: %w", err)
	}
	sess.TokenHash = tokenHash
	return sess, nil
}

func (s *SessionStore) TouchSession(ctx context.Context, id string) error {
	tokenHash, err := s.client.Get(ctx, idKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return err
	}

	sess, err := s.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		return err
	}

	sess.LastActiveAt = time.Now().UTC()
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	// KeepTTL preserves the expiry set at creation.
	return s.client.Set(ctx, sessionKey(tokenHash), payload, redis.KeepTTL).Err()
}

func (s *SessionStore) DeleteSession(ctx context.Context, tokenHash string) error {
	sess, err := s.GetSessionByTokenHash(ctx, tokenHash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.client.Del(ctx, sessionKey(tokenHash), idKey(sess.ID)).Err()
}
