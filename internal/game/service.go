// Package game routes player actions to the right conversation of the right session.
package game

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/myrjola/whodunit/internal/ai"
	"github.com/myrjola/whodunit/internal/dialogue"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/models"
	"github.com/myrjola/whodunit/internal/mystery"
)

var (
	ErrSessionNotFound = errors.NewSentinel("session not found")
	ErrInvalidInput    = errors.NewSentinel("invalid input")
	// ErrBusy means another turn on the same conversation did not finish before the caller gave up.
	ErrBusy     = dialogue.ErrBusy
	ErrGameOver = errors.NewSentinel("game over")
)

// Reply is the narration produced by a turn and where the player stands afterwards.
type Reply struct {
	Response string       `json:"response"`
	Location mystery.Room `json:"location"`
}

// Verdict is the outcome of an accusation. It reveals the whole solution.
type Verdict struct {
	Accused mystery.Suspect `json:"accused"`
	Correct bool            `json:"correct"`
	Killer  mystery.Suspect `json:"killer"`
	Weapon  string          `json:"weapon"`
	Motive  string          `json:"motive"`
}

type RosterSuspect struct {
	Name        mystery.Suspect `json:"name"`
	Description string          `json:"description"`
}

type RosterRoom struct {
	Slug  mystery.Room `json:"slug"`
	Label string       `json:"label"`
}

// Roster is the public cast and map of the game.
type Roster struct {
	Victim   string          `json:"victim"`
	Suspects []RosterSuspect `json:"suspects"`
	Rooms    []RosterRoom    `json:"rooms"`
}

// TurnRecorder receives every completed turn.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, turn models.TurnRecord) error
}

type Service struct {
	logger   *slog.Logger
	store    *Store
	provider ai.Provider
	recorder TurnRecorder
}

// NewService wires the turn router. recorder may be nil.
func NewService(logger *slog.Logger, store *Store, provider ai.Provider, recorder TurnRecorder) *Service {
	return &Service{
		logger:   logger,
		store:    store,
		provider: provider,
		recorder: recorder,
	}
}

// SessionHash identifies a session in logs and the turn log without revealing the id, which doubles as a
// credential.
func SessionHash(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:6]) //nolint:mnd // short enough to read
}

func SessionAttr(id string) slog.Attr {
	return slog.String("session_hash", SessionHash(id))
}

// NewSession starts a new game and returns its id.
func (s *Service) NewSession(ctx context.Context) string {
	session := s.store.Create()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "session created", SessionAttr(session.id))
	s.logger.LogAttrs(ctx, slog.LevelDebug, "mystery generated",
		SessionAttr(session.id),
		slog.String("killer", string(session.mystery.Killer)),
		slog.String("weapon", session.mystery.Weapon),
		slog.String("motive", session.mystery.Motive),
	)
	return session.id
}

// StartGame asks the game master for the opening narrative. Calling it again does not restart the mystery.
func (s *Service) StartGame(ctx context.Context, id string) (Reply, error) {
	session, err := s.session(id)
	if err != nil {
		return Reply{}, err
	}
	var location mystery.Room
	response, err := s.exchange(ctx, session, models.ConversationGameMaster, session.main, mystery.OpeningNarrative,
		func() {
			location = session.Location()
		})
	if err != nil {
		return Reply{}, errors.Wrap(err, "opening narrative")
	}
	return Reply{Response: response, Location: location}, nil
}

// GameTurn sends input to the game master. A non-empty location is recorded when the turn reaches the game master,
// before generation, and is kept even when generation fails. An empty location leaves the current one unchanged.
// The reply carries the location the turn was played in.
func (s *Service) GameTurn(ctx context.Context, id, input, location string) (Reply, error) {
	session, err := s.session(id)
	if err != nil {
		return Reply{}, err
	}
	if strings.TrimSpace(input) == "" {
		return Reply{}, errors.Wrap(ErrInvalidInput, "input is empty")
	}
	var room mystery.Room
	if location != "" {
		var ok bool
		if room, ok = mystery.ParseRoom(location); !ok {
			return Reply{}, errors.Wrap(ErrInvalidInput, "unknown room", slog.String("location", location))
		}
	}
	var current mystery.Room
	response, err := s.exchange(ctx, session, models.ConversationGameMaster, session.main, input, func() {
		if room != "" {
			session.setLocation(room)
		}
		current = session.Location()
	})
	if err != nil {
		return Reply{}, errors.Wrap(err, "game turn")
	}
	return Reply{Response: response, Location: current}, nil
}

// Interrogate sends input to suspectName, starting the interrogation on first contact.
func (s *Service) Interrogate(ctx context.Context, id, suspectName, input string) (string, error) {
	session, err := s.session(id)
	if err != nil {
		return "", err
	}
	suspect, ok := mystery.ParseSuspect(suspectName)
	if !ok {
		return "", errors.Wrap(ErrInvalidInput, "unknown suspect", slog.String("suspect", suspectName))
	}
	if strings.TrimSpace(input) == "" {
		return "", errors.Wrap(ErrInvalidInput, "input is empty")
	}
	response, err := s.exchange(ctx, session, string(suspect), session.interrogation(suspect), input, nil)
	if err != nil {
		return "", errors.Wrap(err, "interrogate", slog.String("suspect", string(suspect)))
	}
	return response, nil
}

// Accuse ends the game by naming the killer. No text is generated.
func (s *Service) Accuse(ctx context.Context, id, suspectName string) (Verdict, error) {
	session, err := s.session(id)
	if err != nil {
		return Verdict{}, err
	}
	suspect, ok := mystery.ParseSuspect(suspectName)
	if !ok {
		return Verdict{}, errors.Wrap(ErrInvalidInput, "unknown suspect", slog.String("suspect", suspectName))
	}
	m := session.mystery
	verdict := Verdict{
		Accused: suspect,
		Correct: suspect == m.Killer,
		Killer:  m.Killer,
		Weapon:  m.Weapon,
		Motive:  m.Motive,
	}
	if err = session.close(verdict); err != nil {
		return Verdict{}, errors.Wrap(err, "close session")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "accusation made",
		SessionAttr(id), slog.Bool("correct", verdict.Correct))
	return verdict, nil
}

// Reset discards session id and starts a new game under a new id.
func (s *Service) Reset(ctx context.Context, id string) (string, error) {
	session, err := s.store.Reset(id)
	if err != nil {
		return "", errors.Wrap(err, "reset session")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "session reset", SessionAttr(id), slog.Group("new", SessionAttr(session.id)))
	return session.id, nil
}

func (s *Service) Roster() Roster {
	roster := Roster{
		Victim:   mystery.Victim,
		Suspects: make([]RosterSuspect, 0, len(mystery.Suspects)),
		Rooms:    make([]RosterRoom, 0, len(mystery.Rooms)),
	}
	for _, suspect := range mystery.Suspects {
		roster.Suspects = append(roster.Suspects, RosterSuspect{Name: suspect, Description: suspect.Description()})
	}
	for _, room := range mystery.Rooms {
		roster.Rooms = append(roster.Rooms, RosterRoom{Slug: room, Label: room.Label()})
	}
	return roster
}

// session resolves id to a session that still accepts turns.
func (s *Service) session(id string) (*Session, error) {
	session, err := s.store.Get(id)
	if err != nil {
		return nil, errors.Wrap(err, "get session")
	}
	if session.closed() {
		return nil, errors.Wrap(ErrGameOver, "session closed")
	}
	return session, nil
}

// exchange plays one turn on c. Turns still waiting or generating when the case is closed are discarded. before
// runs once the turn holds c, ahead of generation, and may be nil.
func (s *Service) exchange(
	ctx context.Context,
	session *Session,
	conversation string,
	c *dialogue.Context,
	input string,
	before func(),
) (string, error) {
	open := func() error {
		if session.closed() {
			return errors.Wrap(ErrGameOver, "session closed")
		}
		return nil
	}
	response, err := c.Exchange(ctx, s.provider, input, dialogue.Hooks{
		Before: func() error {
			if err := open(); err != nil {
				return err
			}
			if before != nil {
				before()
			}
			return nil
		},
		Commit: open,
	})
	if err != nil {
		if errors.Is(err, dialogue.ErrEmptyInput) {
			return "", errors.Join(ErrInvalidInput, err)
		}
		return "", err //nolint:wrapcheck // callers annotate
	}
	s.record(ctx, models.TurnRecord{
		SessionHash:  SessionHash(session.id),
		Conversation: conversation,
		Player:       input,
		Model:        response,
		CreatedAt:    s.store.now().UTC(),
	})
	return response, nil
}

func (s *Service) record(ctx context.Context, turn models.TurnRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordTurn(ctx, turn); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to record turn",
			slog.String("session_hash", turn.SessionHash), errors.SlogError(err))
	}
}
