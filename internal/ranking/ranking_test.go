package ranking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ppe-jeu/arena-go/internal/arena"
	"github.com/ppe-jeu/arena-go/internal/store/memstore"
)

func seed(t *testing.T, st *memstore.Store, username string, exp int) arena.Player {
	t.Helper()
	p, err := st.CreatePlayer(context.Background(), username, 800, exp)
	require.NoError(t, err)
	return p
}

func TestLeaderboard_OrderAndRanks(t *testing.T) {
	st := memstore.New()
	seed(t, st, "alice", 300)
	seed(t, st, "bob", 100)
	seed(t, st, "carol", 500)

	svc := NewService(st, zap.NewNop())
	entries, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "carol", entries[0].Username)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "alice", entries[1].Username)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "bob", entries[2].Username)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestLeaderboard_TiesShareRank(t *testing.T) {
	st := memstore.New()
	seed(t, st, "alice", 200)
	seed(t, st, "bob", 200)
	seed(t, st, "carol", 50)

	svc := NewService(st, zap.NewNop())
	entries, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestLeaderboard_Empty(t *testing.T) {
	svc := NewService(memstore.New(), zap.NewNop())
	entries, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRankOf(t *testing.T) {
	st := memstore.New()
	seed(t, st, "alice", 300)
	bob := seed(t, st, "bob", 100)

	svc := NewService(st, zap.NewNop())
	entry, err := svc.RankOf(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Rank)
	assert.Equal(t, "bob", entry.Username)

	_, err = svc.RankOf(context.Background(), "nobody")
	assert.ErrorIs(t, err, arena.ErrNotFound)
}
