package game

import (
	"sync"
	"time"

	"github.com/myrjola/whodunit/internal/dialogue"
	"github.com/myrjola/whodunit/internal/mystery"
)

// Session is one player's game: the secret mystery, where they are, and every conversation they have started.
type Session struct {
	id         string
	mystery    mystery.Mystery
	main       *dialogue.Context
	tokenLimit int

	mu         sync.Mutex
	location   mystery.Room
	suspects   map[mystery.Suspect]*dialogue.Context
	lastActive time.Time
	verdict    *Verdict
}

func newSession(id string, m mystery.Mystery, tokenLimit int, now time.Time) *Session {
	return &Session{
		id:         id,
		mystery:    m,
		main:       dialogue.New(mystery.GameMasterPrompt(m), tokenLimit),
		tokenLimit: tokenLimit,
		location:   mystery.DefaultRoom,
		suspects:   make(map[mystery.Suspect]*dialogue.Context),
		lastActive: now,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Mystery() mystery.Mystery {
	return s.mystery
}

// Main is the game master conversation.
func (s *Session) Main() *dialogue.Context {
	return s.main
}

func (s *Session) Location() mystery.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

func (s *Session) setLocation(r mystery.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = r
}

// Interrogation returns the conversation with suspect if the player has talked to them.
func (s *Session) Interrogation(suspect mystery.Suspect) (*dialogue.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.suspects[suspect]
	return c, ok
}

// interrogation returns the conversation with suspect, starting it on first use.
func (s *Session) interrogation(suspect mystery.Suspect) *dialogue.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.suspects[suspect]
	if !ok {
		c = dialogue.New(mystery.PersonaPrompt(suspect, s.mystery.Killer), s.tokenLimit)
		s.suspects[suspect] = c
	}
	return c
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastActive) {
		s.lastActive = now
	}
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Verdict returns the outcome of the accusation once the game is over.
func (s *Session) Verdict() (Verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verdict == nil {
		return Verdict{}, false
	}
	return *s.verdict, true
}

// close ends the game with v. Only the first accusation counts.
func (s *Session) close(v Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verdict != nil {
		return ErrGameOver
	}
	s.verdict = &v
	return nil
}

func (s *Session) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verdict != nil
}
