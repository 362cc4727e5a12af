package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odvcencio/songlist/internal/models"
)

// SessionStore persists sessions keyed by the hash of their id. Get returns
// ErrSessionNotFound for unknown ids.
type SessionStore interface {
	Create(ctx context.Context, idHash string, sess *models.Session) error
	Get(ctx context.Context, idHash string) (*models.Session, error)
	Delete(ctx context.Context, idHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionRepository is the slice of the database used by DBSessionStore.
type SessionRepository interface {
	CreateSession(ctx context.Context, idHash string, sess *models.Session) error
	GetSession(ctx context.Context, idHash string) (*models.Session, error)
	DeleteSession(ctx context.Context, idHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type DBSessionStore struct {
	repo SessionRepository
}

var _ SessionStore = (*DBSessionStore)(nil)

func NewDBSessionStore(repo SessionRepository) *DBSessionStore {
	return &DBSessionStore{repo: repo}
}

func (s *DBSessionStore) Create(ctx context.Context, idHash string, sess *models.Session) error {
	return s.repo.CreateSession(ctx, idHash, sess)
}

func (s *DBSessionStore) Get(ctx context.Context, idHash string) (*models.Session, error) {
	sess, err := s.repo.GetSession(ctx, idHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

func (s *DBSessionStore) Delete(ctx context.Context, idHash string) error {
	return s.repo.DeleteSession(ctx, idHash)
}

func (s *DBSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, now)
}

const redisSessionPrefix = "songlist:session:"

// RedisSessionStore keeps sessions in redis with a key TTL matching their
// expiry, so DeleteExpired has nothing to do.
type RedisSessionStore struct {
	client *redis.Client
	now    func() time.Time
}

var _ SessionStore = (*RedisSessionStore)(nil)

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

type redisSession struct {
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *RedisSessionStore) Create(ctx context.Context, idHash string, sess *models.Session) error {
	now := s.now().UTC()
	ttl := sess.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	data, err := json.Marshal(redisSession{UserID: sess.UserID, ExpiresAt: sess.ExpiresAt.UTC(), CreatedAt: now})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisSessionPrefix+idHash, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	sess.CreatedAt = now
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, idHash string) (*models.Session, error) {
	data, err := s.client.Get(ctx, redisSessionPrefix+idHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var rs redisSession
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &models.Session{UserID: rs.UserID, ExpiresAt: rs.ExpiresAt, CreatedAt: rs.CreatedAt}, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, idHash string) error {
	return s.client.Del(ctx, redisSessionPrefix+idHash).Err()
}

func (s *RedisSessionStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
