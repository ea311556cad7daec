package game_test

import (
	"context"
	"io"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/mystery"
	"github.com/myrjola/whodunit/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestStore_CreateDistinctIDs(t *testing.T) {
	store := game.NewStore(testhelpers.NewLogger(io.Discard), game.StoreConfig{})

	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- store.Create().ID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{}, n)
	for id := range ids {
		require.NotContains(t, seen, id)
		seen[id] = struct{}{}
	}
	require.Equal(t, n, store.Len())
}

func TestStore_NewSessionState(t *testing.T) {
	store := game.NewStore(testhelpers.NewLogger(io.Discard), game.StoreConfig{
		Generator: mystery.NewGenerator(rand.New(rand.NewPCG(7, 7))), //nolint:gosec // deterministic test source
	})
	a, b := store.Create(), store.Create()

	for _, s := range []*game.Session{a, b} {
		m := s.Mystery()
		require.Contains(t, mystery.Suspects, m.Killer)
		require.Contains(t, mystery.Weapons, m.Weapon)
		require.Contains(t, mystery.Motives, m.Motive)
		require.Equal(t, mystery.LivingRoom, s.Location())
		require.Equal(t, 1, s.Main().Transcript().Len())
		require.Contains(t, s.Main().Transcript().Turns()[0].Content, m.Weapon)
		_, ok := s.Interrogation(mystery.Kabir)
		require.False(t, ok)
	}
}

func TestStore_GetUnknown(t *testing.T) {
	store := game.NewStore(testhelpers.NewLogger(io.Discard), game.StoreConfig{})
	_, err := store.Get("never-created")
	require.ErrorIs(t, err, game.ErrSessionNotFound)

	s := store.Create()
	require.True(t, store.Delete(s.ID()))
	require.False(t, store.Delete(s.ID()))
	_, err = store.Get(s.ID())
	require.ErrorIs(t, err, game.ErrSessionNotFound)
}

func TestStore_Sweep(t *testing.T) {
	c := &clock{now: time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)}
	store := game.NewStore(testhelpers.NewLogger(io.Discard), game.StoreConfig{
		IdleTimeout: time.Hour,
		Now:         c.Now,
	})

	idle := store.Create()
	active := store.Create()

	c.Advance(45 * time.Minute)
	_, err := store.Get(active.ID())
	require.NoError(t, err)

	c.Advance(30 * time.Minute)
	require.Equal(t, 1, store.Sweep(c.Now()))

	_, err = store.Get(idle.ID())
	require.ErrorIs(t, err, game.ErrSessionNotFound)
	_, err = store.Get(active.ID())
	require.NoError(t, err)
	require.Equal(t, 0, store.Sweep(c.Now()))
}

func TestStore_Run(t *testing.T) {
	c := &clock{now: time.Now()}
	store := game.NewStore(testhelpers.NewLogger(io.Discard), game.StoreConfig{
		IdleTimeout: time.Minute,
		Now:         c.Now,
	})
	store.Create()
	c.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestStore_Reset(t *testing.T) {
	store := game.NewStore(testhelpers.NewLogger(io.Discard), game.StoreConfig{})
	old := store.Create()

	fresh, err := store.Reset(old.ID())
	require.NoError(t, err)
	require.NotEqual(t, old.ID(), fresh.ID())
	require.Equal(t, 1, store.Len())

	_, err = store.Reset(old.ID())
	require.ErrorIs(t, err, game.ErrSessionNotFound)
}
