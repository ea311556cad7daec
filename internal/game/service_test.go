package game_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/myrjola/whodunit/internal/ai"
	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/models"
	"github.com/myrjola/whodunit/internal/mystery"
	"github.com/myrjola/whodunit/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	turns []models.TurnRecord
}

func (r *recorder) RecordTurn(_ context.Context, turn models.TurnRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turn)
	return nil
}

func newService(t *testing.T) (*game.Service, *game.Store, *testhelpers.ScriptedProvider, *recorder) {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)
	store := game.NewStore(logger, game.StoreConfig{TokenLimit: 500})
	provider := &testhelpers.ScriptedProvider{}
	rec := &recorder{}
	return game.NewService(logger, store, provider, rec), store, provider, rec
}

func TestService_Scenario(t *testing.T) {
	ctx := context.Background()
	svc, store, provider, rec := newService(t)

	id := svc.NewSession(ctx)

	reply, err := svc.StartGame(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, reply.Response)
	require.Equal(t, mystery.LivingRoom, reply.Location)

	first := provider.LastRequest()
	require.Equal(t, ai.RoleInstruction, first.Messages[0].Role)
	require.Contains(t, first.Messages[0].Content, "The killer is:")
	require.Equal(t, mystery.OpeningNarrative, first.Messages[1].Content)
	require.Equal(t, 500, first.MaxTokens)

	reply, err = svc.GameTurn(ctx, id, "I search the kitchen", "kitchen")
	require.NoError(t, err)
	require.Equal(t, mystery.Kitchen, reply.Location)
	require.Equal(t, testhelpers.Reply(4, "I search the kitchen"), reply.Response)

	// Starting again continues the same story instead of starting a new mystery.
	session, err := store.Get(id)
	require.NoError(t, err)
	m := session.Mystery()
	_, err = svc.StartGame(ctx, id)
	require.NoError(t, err)
	require.Equal(t, m, session.Mystery())
	require.Equal(t, 7, session.Main().Transcript().Len())

	require.Len(t, rec.turns, 3)
	require.Equal(t, game.SessionHash(id), rec.turns[1].SessionHash)
	require.NotContains(t, rec.turns[1].SessionHash, id, "the audit log must not hold the session id")
	require.Equal(t, models.ConversationGameMaster, rec.turns[1].Conversation)
	require.Equal(t, "I search the kitchen", rec.turns[1].Player)
}

func TestService_SessionNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, provider, _ := newService(t)

	_, err := svc.StartGame(ctx, "nonexistent")
	require.ErrorIs(t, err, game.ErrSessionNotFound)
	_, err = svc.GameTurn(ctx, "nonexistent", "hello", "")
	require.ErrorIs(t, err, game.ErrSessionNotFound)
	_, err = svc.Interrogate(ctx, "nonexistent", "Kabir", "hello")
	require.ErrorIs(t, err, game.ErrSessionNotFound)
	_, err = svc.Accuse(ctx, "nonexistent", "Kabir")
	require.ErrorIs(t, err, game.ErrSessionNotFound)
	_, err = svc.Reset(ctx, "nonexistent")
	require.ErrorIs(t, err, game.ErrSessionNotFound)
	require.Empty(t, provider.Requests())
}

func TestService_InvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, store, provider, _ := newService(t)
	id := svc.NewSession(ctx)

	tests := []struct {
		name string
		call func() error
	}{
		{name: "empty game turn", call: func() error {
			_, err := svc.GameTurn(ctx, id, "  ", "kitchen")
			return err
		}},
		{name: "unknown room", call: func() error {
			_, err := svc.GameTurn(ctx, id, "look", "attic")
			return err
		}},
		{name: "empty interrogation", call: func() error {
			_, err := svc.Interrogate(ctx, id, "Kabir", "")
			return err
		}},
		{name: "unknown suspect", call: func() error {
			_, err := svc.Interrogate(ctx, id, "Rohan", "who did it?")
			return err
		}},
		{name: "accuse unknown suspect", call: func() error {
			_, err := svc.Accuse(ctx, id, "the butler")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.call(), game.ErrInvalidInput)
		})
	}

	require.Empty(t, provider.Requests())
	session, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, mystery.LivingRoom, session.Location(), "rejected turns must not move the player")
	_, started := session.Interrogation(mystery.Kabir)
	require.False(t, started, "rejected input must not start an interrogation")
}

func TestService_InterrogationsAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc, store, _, rec := newService(t)
	id := svc.NewSession(ctx)

	_, err := svc.Interrogate(ctx, id, "Kabir", "where were you?")
	require.NoError(t, err)
	_, err = svc.Interrogate(ctx, id, "kabir", "who saw you?")
	require.NoError(t, err)
	_, err = svc.Interrogate(ctx, id, "Meera", "are you nervous?")
	require.NoError(t, err)

	session, err := store.Get(id)
	require.NoError(t, err)

	kabir, ok := session.Interrogation(mystery.Kabir)
	require.True(t, ok)
	turns := kabir.Transcript().Turns()
	require.Len(t, turns, 5)
	require.Equal(t, ai.RoleInstruction, turns[0].Role)
	require.Contains(t, turns[0].Content, "roleplaying as Kabir")
	require.Contains(t, turns[0].Content, "The killer is "+string(session.Mystery().Killer))
	require.NotContains(t, turns[0].Content, session.Mystery().Weapon)
	require.NotContains(t, turns[0].Content, session.Mystery().Motive)
	require.Equal(t, "where were you?", turns[1].Content)
	require.Equal(t, testhelpers.Reply(2, "where were you?"), turns[2].Content)
	require.Equal(t, "who saw you?", turns[3].Content)
	require.Equal(t, testhelpers.Reply(4, "who saw you?"), turns[4].Content)

	meera, ok := session.Interrogation(mystery.Meera)
	require.True(t, ok)
	require.Equal(t, 3, meera.Transcript().Len())
	require.Contains(t, meera.Transcript().Turns()[0].Content, "roleplaying as Meera")

	require.Equal(t, 1, session.Main().Transcript().Len(), "interrogations must not touch the game master")
	_, ok = session.Interrogation(mystery.Diya)
	require.False(t, ok)

	require.Equal(t, "Kabir", rec.turns[1].Conversation)
	require.Equal(t, "Meera", rec.turns[2].Conversation)
}

func TestService_LocationRecordedDespiteFailure(t *testing.T) {
	ctx := context.Background()
	svc, store, _, rec := newService(t)
	id := svc.NewSession(ctx)

	_, err := svc.GameTurn(ctx, id, "I run to the balcony "+testhelpers.FailMarker, "balcony")
	f, ok := ai.AsGenerationFailure(err)
	require.True(t, ok)
	require.True(t, f.Retryable)

	session, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, mystery.Balcony, session.Location())
	require.Equal(t, 1, session.Main().Transcript().Len())
	require.Empty(t, rec.turns, "failed turns are not recorded")

	// The session stays usable.
	reply, err := svc.GameTurn(ctx, id, "I look over the railing", "")
	require.NoError(t, err)
	require.Equal(t, mystery.Balcony, reply.Location)
	require.Equal(t, testhelpers.Reply(2, "I look over the railing"), reply.Response)
}

func TestService_FailuresDoNotCorruptSession(t *testing.T) {
	ctx := context.Background()
	logger := testhelpers.NewLogger(io.Discard)
	store := game.NewStore(logger, game.StoreConfig{})
	var fail bool
	provider := &testhelpers.ScriptedProvider{Respond: func(_ ai.Request) (string, error) {
		if fail {
			return "", &ai.GenerationFailure{Retryable: false, Message: "quota exceeded"}
		}
		return "ok", nil
	}}
	svc := game.NewService(logger, store, provider, nil)
	id := svc.NewSession(ctx)

	fail = true
	_, err := svc.StartGame(ctx, id)
	require.Error(t, err)
	_, err = svc.GameTurn(ctx, id, "hello", "")
	require.Error(t, err)
	_, err = svc.Interrogate(ctx, id, "Diya", "hello")
	_, ok := ai.AsGenerationFailure(err)
	require.True(t, ok)

	fail = false
	reply, err := svc.StartGame(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "ok", reply.Response)
	answer, err := svc.Interrogate(ctx, id, "Diya", "hello")
	require.NoError(t, err)
	require.Equal(t, "ok", answer)

	session, err := store.Get(id)
	require.NoError(t, err)
	diya, _ := session.Interrogation(mystery.Diya)
	require.Equal(t, 3, diya.Transcript().Len())
}

func TestService_Accuse(t *testing.T) {
	ctx := context.Background()
	svc, store, provider, _ := newService(t)
	id := svc.NewSession(ctx)
	session, err := store.Get(id)
	require.NoError(t, err)
	m := session.Mystery()

	verdict, err := svc.Accuse(ctx, id, string(m.Killer))
	require.NoError(t, err)
	require.Equal(t, game.Verdict{Accused: m.Killer, Correct: true, Killer: m.Killer, Weapon: m.Weapon, Motive: m.Motive}, verdict)
	require.Empty(t, provider.Requests())

	got, ok := session.Verdict()
	require.True(t, ok)
	require.Equal(t, verdict, got)

	_, err = svc.GameTurn(ctx, id, "one more look", "")
	require.ErrorIs(t, err, game.ErrGameOver)
	_, err = svc.Accuse(ctx, id, string(m.Killer))
	require.ErrorIs(t, err, game.ErrGameOver)

	// A wrong accusation still ends the game.
	other := svc.NewSession(ctx)
	otherSession, err := store.Get(other)
	require.NoError(t, err)
	innocent := mystery.Kabir
	if otherSession.Mystery().Killer == innocent {
		innocent = mystery.Meera
	}
	verdict, err = svc.Accuse(ctx, other, string(innocent))
	require.NoError(t, err)
	require.False(t, verdict.Correct)
	require.Equal(t, otherSession.Mystery().Killer, verdict.Killer)
}

func TestService_Reset(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newService(t)
	id := svc.NewSession(ctx)

	newID, err := svc.Reset(ctx, id)
	require.NoError(t, err)
	require.NotEqual(t, id, newID)
	_, err = store.Get(id)
	require.ErrorIs(t, err, game.ErrSessionNotFound)

	reply, err := svc.StartGame(ctx, newID)
	require.NoError(t, err)
	require.Equal(t, mystery.LivingRoom, reply.Location)
	require.Equal(t, 1, store.Len())
}

func TestService_Busy(t *testing.T) {
	logger := testhelpers.NewLogger(io.Discard)
	store := game.NewStore(logger, game.StoreConfig{})
	release := make(chan struct{})
	provider := &testhelpers.ScriptedProvider{Respond: func(req ai.Request) (string, error) {
		if req.Messages[len(req.Messages)-1].Content == "slow" {
			<-release
		}
		return "ok", nil
	}}
	svc := game.NewService(logger, store, provider, nil)
	id := svc.NewSession(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := svc.GameTurn(context.Background(), id, "slow", "")
		done <- err
	}()
	require.Eventually(t, func() bool { return len(provider.Requests()) == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.GameTurn(ctx, id, "impatient", "")
	require.ErrorIs(t, err, game.ErrBusy)

	// Another conversation of the same session is not blocked.
	answer, err := svc.Interrogate(context.Background(), id, "Ananya", "hello")
	require.NoError(t, err)
	require.Equal(t, "ok", answer)

	close(release)
	require.NoError(t, <-done)
	session, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, 3, session.Main().Transcript().Len())
}

func TestService_ConcurrentTurnsReportTheirOwnLocation(t *testing.T) {
	logger := testhelpers.NewLogger(io.Discard)
	store := game.NewStore(logger, game.StoreConfig{})
	provider := &testhelpers.ScriptedProvider{Gate: make(chan struct{})}
	svc := game.NewService(logger, store, provider, nil)
	ctx := context.Background()
	id := svc.NewSession(ctx)
	session, err := store.Get(id)
	require.NoError(t, err)

	kitchen := make(chan game.Reply, 1)
	go func() {
		reply, err := svc.GameTurn(ctx, id, "I open the fridge", "kitchen")
		assert.NoError(t, err)
		kitchen <- reply
	}()
	require.Eventually(t, func() bool { return len(provider.Requests()) == 1 }, time.Second, time.Millisecond)

	basement := make(chan game.Reply, 1)
	go func() {
		reply, err := svc.GameTurn(ctx, id, "I walk downstairs", "basement")
		assert.NoError(t, err)
		basement <- reply
	}()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, mystery.Kitchen, session.Location(), "a waiting turn must not move the player yet")

	provider.Gate <- struct{}{}
	require.Equal(t, mystery.Kitchen, (<-kitchen).Location)
	provider.Gate <- struct{}{}
	require.Equal(t, mystery.Basement, (<-basement).Location)
	require.Equal(t, mystery.Basement, session.Location())
}

func TestService_AccuseDuringTurn(t *testing.T) {
	logger := testhelpers.NewLogger(io.Discard)
	store := game.NewStore(logger, game.StoreConfig{})
	provider := &testhelpers.ScriptedProvider{Gate: make(chan struct{})}
	rec := &recorder{}
	svc := game.NewService(logger, store, provider, rec)
	ctx := context.Background()
	id := svc.NewSession(ctx)
	session, err := store.Get(id)
	require.NoError(t, err)

	generating := make(chan error, 1)
	go func() {
		_, err := svc.GameTurn(ctx, id, "I check the bedroom", "bedroom")
		generating <- err
	}()
	require.Eventually(t, func() bool { return len(provider.Requests()) == 1 }, time.Second, time.Millisecond)

	queued := make(chan error, 1)
	go func() {
		_, err := svc.GameTurn(ctx, id, "and the balcony", "balcony")
		queued <- err
	}()
	time.Sleep(20 * time.Millisecond)

	_, err = svc.Accuse(ctx, id, string(session.Mystery().Killer))
	require.NoError(t, err)

	provider.Gate <- struct{}{}
	require.ErrorIs(t, <-generating, game.ErrGameOver)
	require.ErrorIs(t, <-queued, game.ErrGameOver)

	require.Len(t, provider.Requests(), 1, "a turn queued behind the accusation must not be generated")
	require.Equal(t, 1, session.Main().Transcript().Len(), "replies finished after the accusation are discarded")
	require.Equal(t, mystery.Bedroom, session.Location())
	require.Empty(t, rec.turns)
}

func TestService_Roster(t *testing.T) {
	svc, _, _, _ := newService(t)
	roster := svc.Roster()
	require.Equal(t, mystery.Victim, roster.Victim)
	require.Len(t, roster.Suspects, 5)
	require.Equal(t, mystery.Kabir, roster.Suspects[0].Name)
	require.NotEmpty(t, roster.Suspects[0].Description)
	require.Len(t, roster.Rooms, 5)
	require.Equal(t, game.RosterRoom{Slug: mystery.LivingRoom, Label: "the living room"}, roster.Rooms[0])
}
