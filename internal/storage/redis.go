package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/models"
)

const defaultSessionPrefix = "tracely:"

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// SessionTTL is refreshed on every save. Zero keeps sessions until
	// they are deleted explicitly or swept.
	SessionTTL time.Duration
}

// RedisSessionStore keeps one JSON document per chat session.
type RedisSessionStore struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisSessionStore(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisSessionStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisSessionStoreWithClient(rdb, cfg, logger), nil
}

// NewRedisSessionStoreWithClient wraps an existing client.
func NewRedisSessionStoreWithClient(rdb goredis.UniversalClient, cfg RedisConfig, logger *zap.Logger) *RedisSessionStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultSessionPrefix
	}
	return &RedisSessionStore{
		rdb:    rdb,
		prefix: prefix + "chat_session:",
		ttl:    cfg.SessionTTL,
		logger: logger.With(zap.String("component", "redis_sessions")),
	}
}

func (s *RedisSessionStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisSessionStore) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	raw, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var session models.ChatSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	if session.Messages == nil {
		session.Messages = []models.ChatMessage{}
	}
	return &session, nil
}

func (s *RedisSessionStore) SaveSession(ctx context.Context, session *models.ChatSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(session.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) ListSessions(ctx context.Context) ([]*models.ChatSession, error) {
	sessions := []*models.ChatSession{}
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), s.prefix)
		session, err := s.GetSession(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// expired between SCAN and GET
			continue
		}
		if err != nil {
			s.logger.Warn("Skipping unreadable session", zap.String("session_id", id), zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan sessions: %w", err)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

func (s *RedisSessionStore) Close() error {
	return s.rdb.Close()
}

var _ SessionStore = (*RedisSessionStore)(nil)
