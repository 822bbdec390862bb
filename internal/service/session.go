package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pageza/storefront-assistant/backend/internal/commerce"
)

// ErrSessionNotFound is returned for unknown or expired session ids
var ErrSessionNotFound = errors.New("session not found")

// Role identifies who wrote a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Intent    Intent    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the conversation state of one shopper. PendingOrder is an order
// number still waiting for the shopper's email.
type Session struct {
	ID              string             `json:"id"`
	ShopDomain      string             `json:"shop_domain"`
	Email           string             `json:"email,omitempty"`
	Messages        []Message          `json:"messages"`
	Cart            commerce.Cart      `json:"cart"`
	LastResults     []commerce.Product `json:"last_results,omitempty"`
	LastCheckoutURL string             `json:"last_checkout_url,omitempty"`
	PendingOrder    string             `json:"pending_order,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// NewSession starts an empty conversation
func NewSession(id, shopDomain string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         id,
		ShopDomain: shopDomain,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Append adds a message and keeps at most max messages, oldest dropped first.
// max <= 0 keeps everything.
func (s *Session) Append(role Role, content string, intent Intent, max int) Message {
	msg := Message{Role: role, Content: content, Intent: intent, CreatedAt: time.Now().UTC()}
	s.Messages = append(s.Messages, msg)
	if max > 0 && len(s.Messages) > max {
		s.Messages = append([]Message(nil), s.Messages[len(s.Messages)-max:]...)
	}
	s.UpdatedAt = msg.CreatedAt
	return msg
}

// Recent returns up to the last n messages
func (s *Session) Recent(n int) []Message {
	if n <= 0 || n >= len(s.Messages) {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// SessionStore persists sessions between turns
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemorySessionStore keeps sessions in process with a sliding TTL. Sessions
// are stored encoded so callers never share state with the store.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	log      logrus.FieldLogger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemorySessionStore starts the store and its eviction loop. Call Close
// to stop the loop.
func NewMemorySessionStore(ttl time.Duration, log logrus.FieldLogger) *MemorySessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s := &MemorySessionStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		log:      log,
		stop:     make(chan struct{}),
	}
	go s.janitor(janitorInterval(ttl))
	return s
}

func janitorInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// Get implements SessionStore. A hit extends the session's lifetime.
func (s *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	now := time.Now()
	if ok && now.After(entry.expires) {
		delete(s.sessions, id)
		ok = false
	}
	if ok {
		entry.expires = now.Add(s.ttl)
		s.sessions[id] = entry
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	var session Session
	if err := json.Unmarshal(entry.data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// Save implements SessionStore
func (s *MemorySessionStore) Save(_ context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	s.mu.Lock()
	s.sessions[session.ID] = memoryEntry{data: data, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

// Delete implements SessionStore
func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Len reports how many sessions are held, expired ones included until the
// next sweep
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the eviction loop
func (s *MemorySessionStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemorySessionStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.sweep(time.Now()); n > 0 {
				s.log.WithField("evicted", n).Debug("[Sessions] evicted expired sessions")
			}
		}
	}
}

func (s *MemorySessionStore) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, entry := range s.sessions {
		if now.After(entry.expires) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// RedisSessionStore keeps sessions as JSON values with a TTL
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore stores sessions under chat:session:<id>
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return fmt.Sprintf("chat:session:%s", id)
}

// Get implements SessionStore. A hit extends the session's lifetime.
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.GetEx(ctx, sessionKey(id), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Save implements SessionStore
func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session to Redis: %w", err)
	}
	return nil
}

// Delete implements SessionStore
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	return nil
}

// sessionLocks serializes turns of the same session
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// lock blocks until id is free and returns the matching unlock
func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &sessionLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
