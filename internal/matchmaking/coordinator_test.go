package matchmaking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ppe-jeu/arena-go/internal/arena"
	"github.com/ppe-jeu/arena-go/internal/config"
	"github.com/ppe-jeu/arena-go/internal/store/memstore"
)

func testConfig() config.MatchmakingConfig {
	return config.MatchmakingConfig{
		WaitTimeout:     3 * time.Second,
		TicketTTL:       5 * time.Minute,
		JanitorInterval: time.Minute,
	}
}

func seedPlayer(t *testing.T, st *memstore.Store, username string, attack, health int) (arena.Player, arena.CardPlayer) {
	t.Helper()
	player, err := st.CreatePlayer(context.Background(), username, 800, 0)
	require.NoError(t, err)
	card := arena.CardPlayer{CardID: "card-" + username, PlayerID: player.ID, Attack: attack, Health: health}
	st.AddOwnedCard(card)
	return player, card
}

func TestFindMatch_PairsTwoPlayers(t *testing.T) {
	st := memstore.New()
	logger := zap.NewNop()
	alice, aliceCard := seedPlayer(t, st, "alice", 10, 100)
	bob, bobCard := seedPlayer(t, st, "bob", 8, 100)

	// Distinct enqueue timestamps so creator election is unambiguous.
	base := time.Now()
	st.SetClock(func() time.Time { return base })

	coordA := NewCoordinator(st, testConfig(), logger)
	coordB := NewCoordinator(st, testConfig(), logger)

	type outcome struct {
		pairing *Pairing
		err     error
	}
	results := make(chan outcome, 2)

	go func() {
		p, err := coordA.FindMatch(context.Background(), alice, aliceCard)
		results <- outcome{p, err}
	}()
	// Alice enqueues first; give her ticket the earlier timestamp.
	time.Sleep(100 * time.Millisecond)
	st.SetClock(func() time.Time { return base.Add(time.Second) })
	go func() {
		p, err := coordB.FindMatch(context.Background(), bob, bobCard)
		results <- outcome{p, err}
	}()

	var pairings []*Pairing
	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
		pairings = append(pairings, r.pairing)
	}

	// Exactly one creator (player1 slot), and both agree on the match id.
	var creator, waiter *Pairing
	for _, p := range pairings {
		if p.Slot == arena.SlotPlayer1 {
			creator = p
		} else {
			waiter = p
		}
	}
	require.NotNil(t, creator, "expected exactly one player1")
	require.NotNil(t, waiter, "expected exactly one player2")
	assert.Equal(t, creator.MatchID, waiter.MatchID)

	// The canonical record carries both snapshots, remaining = start.
	m, err := st.GetMatch(context.Background(), creator.MatchID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, m.Player1ID)
	assert.Equal(t, bob.ID, m.Player2ID)
	assert.Equal(t, 100, m.Player1Health)
	assert.Equal(t, 100, m.Player2Health)
	assert.Equal(t, m.Player1Start, m.Player1Health)
	assert.Equal(t, arena.ResultUnset, m.Result)
	assert.Equal(t, alice.ID, m.CreatedBy)
	assert.Equal(t, "bob", m.Player2Username)
	assert.Equal(t, "bob", creator.OpponentName)
	assert.Equal(t, "alice", waiter.OpponentName)

	// Both tickets consumed.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed, err := st.WatchTickets(ctx)
	require.NoError(t, err)
	select {
	case queue := <-feed:
		assert.Empty(t, queue)
	case <-time.After(time.Second):
		t.Fatal("no queue snapshot")
	}
}

func TestFindMatch_TimeoutWhenAlone(t *testing.T) {
	st := memstore.New()
	alice, aliceCard := seedPlayer(t, st, "alice", 10, 100)

	cfg := testConfig()
	cfg.WaitTimeout = 200 * time.Millisecond
	coord := NewCoordinator(st, cfg, zap.NewNop())

	_, err := coord.FindMatch(context.Background(), alice, aliceCard)
	assert.ErrorIs(t, err, arena.ErrTimeout)

	// The abandoned ticket was released.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed, err := st.WatchTickets(ctx)
	require.NoError(t, err)
	select {
	case queue := <-feed:
		assert.Empty(t, queue)
	case <-time.After(time.Second):
		t.Fatal("no queue snapshot")
	}
}

func TestFindMatch_WaiterTimesOutWhenCreatorNeverWrites(t *testing.T) {
	st := memstore.New()
	logger := zap.NewNop()
	alice, _ := seedPlayer(t, st, "alice", 10, 100)
	bob, bobCard := seedPlayer(t, st, "bob", 8, 100)

	// Simulate a creator that paired and then crashed: alice's ticket sits
	// in the queue with the earlier timestamp but no match ever appears.
	base := time.Now()
	st.SetClock(func() time.Time { return base.Add(-time.Second) })
	_, err := st.CreateTicket(context.Background(), alice.ID, "card-alice", 10, 100)
	require.NoError(t, err)
	st.SetClock(func() time.Time { return base })

	cfg := testConfig()
	cfg.WaitTimeout = 300 * time.Millisecond
	coord := NewCoordinator(st, cfg, logger)

	_, err = coord.FindMatch(context.Background(), bob, bobCard)
	assert.ErrorIs(t, err, arena.ErrTimeout)
}

func TestFindMatch_Cancelled(t *testing.T) {
	st := memstore.New()
	alice, aliceCard := seedPlayer(t, st, "alice", 10, 100)

	coord := NewCoordinator(st, testConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := coord.FindMatch(ctx, alice, aliceCard)
		done <- err
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJoin_PurgesOwnStaleTicket(t *testing.T) {
	st := memstore.New()
	coord := NewCoordinator(st, testConfig(), zap.NewNop())
	ctx := context.Background()

	first, err := coord.Join(ctx, "alice", "card-1", 10, 100)
	require.NoError(t, err)
	second, err := coord.Join(ctx, "alice", "card-1", 10, 100)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	feed, err := st.WatchTickets(watchCtx)
	require.NoError(t, err)
	select {
	case queue := <-feed:
		require.Len(t, queue, 1)
		assert.Equal(t, second.ID, queue[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no queue snapshot")
	}
}

func TestJoin_RejectsSpentCard(t *testing.T) {
	st := memstore.New()
	coord := NewCoordinator(st, testConfig(), zap.NewNop())
	ctx := context.Background()

	_, err := coord.Join(ctx, "alice", "card-1", 10, 0)
	assert.ErrorIs(t, err, arena.ErrInsufficient)

	// Nothing was enqueued.
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	feed, err := st.WatchTickets(watchCtx)
	require.NoError(t, err)
	select {
	case queue := <-feed:
		assert.Empty(t, queue)
	case <-time.After(time.Second):
		t.Fatal("no queue snapshot")
	}
}

func TestLeave_Idempotent(t *testing.T) {
	st := memstore.New()
	coord := NewCoordinator(st, testConfig(), zap.NewNop())
	ctx := context.Background()

	_, err := coord.Join(ctx, "alice", "card-1", 10, 100)
	require.NoError(t, err)
	require.NoError(t, coord.Leave(ctx, "alice"))
	require.NoError(t, coord.Leave(ctx, "alice"))
}

func TestJanitor_SweepPurgesStaleTickets(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	now := time.Now()
	st.SetClock(func() time.Time { return now.Add(-10 * time.Minute) })
	_, err := st.CreateTicket(ctx, "ghost", "card-1", 1, 1)
	require.NoError(t, err)
	st.SetClock(func() time.Time { return now })
	fresh, err := st.CreateTicket(ctx, "alice", "card-2", 1, 1)
	require.NoError(t, err)

	j, err := NewJanitor(st, testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer j.Stop()
	j.sweep()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	feed, err := st.WatchTickets(watchCtx)
	require.NoError(t, err)
	select {
	case queue := <-feed:
		require.Len(t, queue, 1)
		assert.Equal(t, fresh.ID, queue[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no queue snapshot")
	}
}
