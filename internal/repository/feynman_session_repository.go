package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/studygen-api/internal/models"
	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
)

const feynmanKeyPrefix = "feynman:session:"

func feynmanKey(documentID string) string {
	return feynmanKeyPrefix + documentID
}

// RedisSessionStore keeps Feynman sessions in Redis with a sliding TTL.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore constructs the Redis-backed session store.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

// Get loads the session for documentID or returns ErrNotFound.
func (s *RedisSessionStore) Get(ctx context.Context, documentID string) (*models.FeynmanSession, error) {
	raw, err := s.client.Get(ctx, feynmanKey(documentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feynman session not found")
		}
		return nil, fmt.Errorf("redis get feynman session: %w", err)
	}
	return decodeSession(raw)
}

// Save writes session and refreshes its TTL.
func (s *RedisSessionStore) Save(ctx context.Context, session *models.FeynmanSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal feynman session: %w", err)
	}
	if err := s.client.Set(ctx, feynmanKey(session.DocumentID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set feynman session: %w", err)
	}
	return nil
}

// MemorySessionStore keeps sessions in process memory. Entries expire after
// ttl and are lost on restart.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

// NewMemorySessionStore constructs an in-memory session store.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemorySessionStore{ttl: ttl, now: time.Now, sessions: map[string]memoryEntry{}}
}

// Get returns a copy of the stored session or ErrNotFound.
func (s *MemorySessionStore) Get(ctx context.Context, documentID string) (*models.FeynmanSession, error) {
	s.mu.Lock()
	entry, ok := s.sessions[documentID]
	if ok && s.now().After(entry.expiresAt) {
		delete(s.sessions, documentID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "feynman session not found")
	}
	return decodeSession(entry.raw)
}

// Save stores a copy of session.
func (s *MemorySessionStore) Save(ctx context.Context, session *models.FeynmanSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal feynman session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.DocumentID] = memoryEntry{raw: raw, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func decodeSession(raw []byte) (*models.FeynmanSession, error) {
	var session models.FeynmanSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal feynman session: %w", err)
	}
	if session.Responses == nil {
		session.Responses = map[int]string{}
	}
	return &session, nil
}
