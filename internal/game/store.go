package game

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/whodunit/internal/mystery"
)

// StoreConfig configures a Store. Zero values fall back to defaults.
type StoreConfig struct {
	// TokenLimit bounds the length of every generated reply.
	TokenLimit int
	// IdleTimeout is how long a session may go unused before Sweep evicts it.
	IdleTimeout time.Duration
	Generator   *mystery.Generator
	Now         func() time.Time
}

const (
	DefaultTokenLimit  = 500
	DefaultIdleTimeout = 2 * time.Hour
)

// Store holds every live session in memory. Sessions are lost when the process exits.
type Store struct {
	logger      *slog.Logger
	generator   *mystery.Generator
	tokenLimit  int
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore(logger *slog.Logger, cfg StoreConfig) *Store {
	if cfg.TokenLimit <= 0 {
		cfg.TokenLimit = DefaultTokenLimit
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Generator == nil {
		cfg.Generator = mystery.NewGenerator(nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		logger:      logger,
		generator:   cfg.Generator,
		tokenLimit:  cfg.TokenLimit,
		idleTimeout: cfg.IdleTimeout,
		now:         cfg.Now,
		sessions:    make(map[string]*Session),
	}
}

// Create starts a session with a freshly generated mystery under a new random id.
func (s *Store) Create() *Session {
	session := newSession(uuid.NewString(), s.generator.Generate(), s.tokenLimit, s.now())
	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()
	return session
}

// Get looks up a session and marks it active. Unknown ids yield ErrSessionNotFound.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	session.touch(s.now())
	return session, nil
}

// Reset replaces the session id with a fresh one under a new id. The old id stops resolving.
func (s *Store) Reset(id string) (*Session, error) {
	if !s.Delete(id) {
		return nil, ErrSessionNotFound
	}
	return s.Create(), nil
}

// Delete removes a session and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than the idle timeout as of now and returns how many were evicted.
func (s *Store) Sweep(now time.Time) int {
	cutoff := now.Add(-s.idleTimeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, session := range s.sessions {
		if session.LastActive().Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := s.Sweep(s.now()); evicted > 0 {
				s.logger.LogAttrs(ctx, slog.LevelInfo, "evicted idle sessions",
					slog.Int("evicted", evicted), slog.Int("remaining", s.Len()))
			}
		}
	}
}
