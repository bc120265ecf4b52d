package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/models"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormPostgreSQL)(nil)
	_ Store = (*PostgreSQL)(nil)
)

func newGame(t *testing.T, id string, created time.Time) *engine.Game {
	t.Helper()
	g, err := engine.NewGame(id, "alice", "Alice", engine.Params{
		Seed: 1, EntryStake: 10, StakeAsset: "SOL", PlayerCount: 2, WaitWindow: 30 * time.Second,
	}, created)
	require.NoError(t, err)
	return g
}

func TestMemoryProfiles(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.LoadProfile(ctx, "alice")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, m.SaveProfile(ctx, &models.Profile{Identity: "alice", DisplayName: "Alice"}))
	require.NoError(t, m.SaveProfile(ctx, &models.Profile{Identity: "alice", DisplayName: "Al"}))

	p, err := m.LoadProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Al", p.DisplayName)
}

func TestMemoryGames(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	g1 := newGame(t, "g1", base.Add(time.Minute))
	g2 := newGame(t, "g2", base)
	g3 := newGame(t, "g3", base)
	require.NoError(t, g3.Leave("alice", base))
	require.True(t, g3.Ended())

	for _, g := range []*engine.Game{g1, g2, g3} {
		require.NoError(t, m.SaveGame(ctx, g))
	}

	loaded, err := m.LoadGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, g1.ID, loaded.ID)
	assert.Equal(t, g1.Players, loaded.Players)

	// the store keeps its own copy
	loaded.Players[0].DisplayName = "changed"
	again, err := m.LoadGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Players[0].DisplayName)

	open, err := m.LoadOpenGames(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "g2", open[0].ID)
	assert.Equal(t, "g1", open[1].ID)

	_, err = m.LoadGame(ctx, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryRecordsAndStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	record := func(id string, results ...string) *models.GameRecord {
		r := &models.GameRecord{GameID: id}
		for i, res := range results {
			r.Players = append(r.Players, models.PlayerResult{Identity: fmt.Sprintf("p%d", i+1), Result: res})
		}
		return r
	}

	require.NoError(t, m.SaveGameRecord(ctx, record("a", models.ResultWin, models.ResultLose)))
	require.NoError(t, m.SaveGameRecord(ctx, record("b", models.ResultDraw, models.ResultDraw)))
	require.NoError(t, m.SaveGameRecord(ctx, record("c", models.ResultCancelled, models.ResultCancelled)))
	// a second write for the same game is ignored
	require.NoError(t, m.SaveGameRecord(ctx, record("a", models.ResultLose, models.ResultWin)))

	stats, err := m.GetPlayerStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, &models.PlayerStats{Identity: "p1", TotalGames: 2, Wins: 1, Draws: 1}, stats)

	stats, err = m.GetPlayerStats(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalGames)
}

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	bal, err := m.Balance(ctx, "alice", "SOL")
	require.NoError(t, err)
	assert.Zero(t, bal)

	assert.ErrorIs(t, m.Debit(ctx, "alice", "SOL", 1, "g1"), ErrInsufficientFunds)

	require.NoError(t, m.Credit(ctx, "alice", "SOL", 100, "faucet"))
	require.NoError(t, m.Debit(ctx, "alice", "SOL", 40, "g1"))
	assert.ErrorIs(t, m.Debit(ctx, "alice", "SOL", 61, "g2"), ErrInsufficientFunds)

	bal, err = m.Balance(ctx, "alice", "SOL")
	require.NoError(t, err)
	assert.Equal(t, uint64(60), bal)

	// assets are separate
	bal, err = m.Balance(ctx, "alice", "USDC")
	require.NoError(t, err)
	assert.Zero(t, bal)

	assert.ErrorIs(t, m.Credit(ctx, "alice", "SOL", 1<<63, "x"), ErrAmountOutOfRange)

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(100), entries[0].Delta)
	assert.Equal(t, int64(-40), entries[1].Delta)
	assert.Equal(t, "g1", entries[1].Ref)
}
