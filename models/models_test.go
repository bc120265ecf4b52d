package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/shuffle"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func startedGame(t *testing.T) *engine.Game {
	t.Helper()
	g, err := engine.NewGame("g1", "alice", "Alice", engine.Params{
		EntryStake: 10, StakeAsset: "SOL", PlayerCount: 2, WaitWindow: 30 * time.Second,
	}, t0)
	require.NoError(t, err)
	_, err = g.Join("bob", "Bob")
	require.NoError(t, err)
	require.NoError(t, g.ApplyRandomness([32]byte{1}, shuffle.SHA256, t0))
	return g
}

func TestNewGameViewHidesOtherHands(t *testing.T) {
	g := startedGame(t)
	v := NewGameView(g, "alice")

	assert.Equal(t, "g1", v.ID)
	assert.Equal(t, "active", v.Phase)
	assert.Equal(t, 43, v.DrawPileSize)
	assert.Equal(t, 30, v.WaitWindowSeconds)
	require.NotNil(t, v.Deadline)
	assert.Equal(t, t0.Add(30*time.Second), *v.Deadline)
	require.Len(t, v.Players, 2)
	assert.Equal(t, g.Players[0].Hand, v.Players[0].Hand)
	assert.Nil(t, v.Players[1].Hand)
	assert.Equal(t, 5, v.Players[1].HandSize)

	anon := NewGameView(g, "")
	assert.Nil(t, anon.Players[0].Hand)
}

func TestNewGameRecord(t *testing.T) {
	g := startedGame(t)
	for !g.Ended() {
		cur, ok := g.CurrentPlayer()
		require.True(t, ok)
		require.NoError(t, g.Draw(cur.Identity, t0))
	}

	r := NewGameRecord(g)
	assert.Equal(t, "g1", r.GameID)
	require.Len(t, r.Players, 2)
	results := map[string]int{}
	for _, p := range r.Players {
		results[p.Result]++
	}
	if g.Outcome.Kind == engine.OutcomeTied {
		assert.Equal(t, 2, results[ResultDraw])
	} else {
		assert.Equal(t, 1, results[ResultWin])
		assert.Equal(t, 1, results[ResultLose])
	}

	v := NewGameView(g, "")
	assert.NotNil(t, v.Players[1].Hand, "hands are public once ended")
	assert.NotNil(t, v.EndedAt)
	assert.Nil(t, v.Deadline)
}

func TestPlayerStatsAdd(t *testing.T) {
	var s PlayerStats
	s.Add(ResultWin)
	s.Add(ResultLose)
	s.Add(ResultDraw)
	s.Add(ResultCancelled)
	assert.Equal(t, PlayerStats{TotalGames: 3, Wins: 1, Losses: 1, Draws: 1}, s)
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := startedGame(t)
	data, err := EncodeGame(g)
	require.NoError(t, err)

	got, err := DecodeGame(data)
	require.NoError(t, err)
	assert.Equal(t, g.Players, got.Players)
	assert.Equal(t, g.DrawPile, got.DrawPile)
	assert.Equal(t, *g.CallCard, *got.CallCard)
	assert.Equal(t, *g.RandomSeed, *got.RandomSeed)
	assert.Equal(t, g.WaitWindow, got.WaitWindow)
	assert.True(t, g.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, g.Phase, got.Phase)
}

func TestDecodeGameRejectsOtherVersions(t *testing.T) {
	_, err := DecodeGame([]byte(`{"v":1,"deck_version":99,"game":{}}`))
	assert.ErrorIs(t, err, ErrIncompatibleSnapshot)

	_, err = DecodeGame([]byte(`{"v":1,"deck_version":1}`))
	assert.ErrorIs(t, err, ErrIncompatibleSnapshot)

	_, err = DecodeGame([]byte(`not json`))
	assert.Error(t, err)
}
