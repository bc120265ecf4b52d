package state

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/network"
	"github.com/wfunc/whotserver/shuffle"
)

// MockState is a test double for the State interface.
// It helps us track which methods have been called.
type MockState struct {
	ID            string
	OnEnterCalled bool
	OnExitCalled  bool
}

func (m *MockState) OnEnter()      { m.OnEnterCalled = true }
func (m *MockState) OnExit()       { m.OnExitCalled = true }
func (m *MockState) GetID() string { return m.ID }
func (m *MockState) HandleAction(Action) (Result, error) {
	return Result{}, nil
}

// reset clears the call tracking flags.
func (m *MockState) reset() {
	m.OnEnterCalled = false
	m.OnExitCalled = false
}

func TestStateMachine_InitialState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	sm := NewBaseStateMachine(initialState)

	assert.True(t, initialState.OnEnterCalled)
	assert.Equal(t, initialState, sm.GetCurrentState())
}

func TestStateMachine_ChangeState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	nextState := &MockState{ID: "next"}

	sm := NewBaseStateMachine(initialState)
	initialState.reset()

	require.NoError(t, sm.ChangeState(nextState))
	assert.True(t, initialState.OnExitCalled)
	assert.True(t, nextState.OnEnterCalled)
	assert.Equal(t, nextState, sm.GetCurrentState())
}

func TestStateMachine_AddAndUseTransition(t *testing.T) {
	stateA := &MockState{ID: "A"}
	stateB := &MockState{ID: "B"}
	stateC := &MockState{ID: "C"}

	sm := NewBaseStateMachine(stateA)
	require.NoError(t, sm.AddTransition("A", "B", func() bool { return true }))
	require.NoError(t, sm.AddTransition("B", "C", func() bool { return false }))

	require.NoError(t, sm.ChangeState(stateB))
	assert.Equal(t, "B", sm.GetCurrentState().GetID())

	stateB.reset()
	assert.ErrorIs(t, sm.ChangeState(stateC), ErrTransitionNotAllowed)
	assert.Equal(t, "B", sm.GetCurrentState().GetID())
	assert.False(t, stateB.OnExitCalled)
	assert.False(t, stateC.OnEnterCalled)
}

// mockRoom is a RoomContext over a real game.
type mockRoom struct {
	game      *engine.Game
	sm        *BaseStateMachine
	listener  *recordingListener
	broadcast []uint16
	sent      map[string][]uint16
}

func (r *mockRoom) GetID() string                { return r.game.ID }
func (r *mockRoom) Game() *engine.Game           { return r.game }
func (r *mockRoom) Hasher() shuffle.Hasher       { return shuffle.SHA256 }
func (r *mockRoom) ChangeState(next State) error { return r.sm.ChangeState(next) }
func (r *mockRoom) Listener() Listener           { return r.listener }
func (r *mockRoom) Broadcast(id uint16, _ []byte) error {
	r.broadcast = append(r.broadcast, id)
	return nil
}
func (r *mockRoom) SendTo(identity string, id uint16, _ []byte) error {
	r.sent[identity] = append(r.sent[identity], id)
	return nil
}

func (r *mockRoom) apply(t *testing.T, a Action) (Result, error) {
	t.Helper()
	return r.sm.GetCurrentState().HandleAction(a)
}

type recordingListener struct {
	rosterFull int
	started    int
	applied    []ActionType
	ended      []*engine.Game
}

func (l *recordingListener) OnRosterFull(*engine.Game)  { l.rosterFull++ }
func (l *recordingListener) OnGameStarted(*engine.Game) { l.started++ }
func (l *recordingListener) OnActionApplied(_ *engine.Game, a Action, _ Result) {
	l.applied = append(l.applied, a.Type)
}
func (l *recordingListener) OnGameEnded(g *engine.Game) { l.ended = append(l.ended, g) }

var t0 = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func newMockRoom(t *testing.T, players int) *mockRoom {
	t.Helper()
	g, err := engine.NewGame("room-1", "alice", "Alice", engine.Params{
		EntryStake: 5, StakeAsset: "SOL", PlayerCount: players, WaitWindow: 30 * time.Second,
	}, t0)
	require.NoError(t, err)
	r := &mockRoom{game: g, listener: &recordingListener{}, sent: map[string][]uint16{}}
	r.sm = NewBaseStateMachine(NewLobbyState(r))
	return r
}

func TestRoomLifecycle(t *testing.T) {
	r := newMockRoom(t, 2)
	assert.Equal(t, StateLobby, r.sm.GetCurrentState().GetID())

	// randomness before the roster is full is refused
	_, err := r.apply(t, Action{Type: ActionRandomness, Now: t0})
	assert.ErrorIs(t, err, engine.ErrRosterNotFull)

	res, err := r.apply(t, Action{Type: ActionJoin, Identity: "bob", DisplayName: "Bob", Now: t0})
	require.NoError(t, err)
	assert.True(t, res.Full)
	assert.Equal(t, StateAwaitingRandomness, r.sm.GetCurrentState().GetID())
	assert.Equal(t, 1, r.listener.rosterFull)

	_, err = r.apply(t, Action{Type: ActionDraw, Identity: "alice", Now: t0})
	assert.ErrorIs(t, err, engine.ErrGameNotStarted)

	_, err = r.apply(t, Action{Type: ActionRandomness, Randomness: [32]byte{7}, Now: t0})
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, r.sm.GetCurrentState().GetID())
	assert.Equal(t, 1, r.listener.started)
	assert.True(t, r.game.Delegated)
	assert.Contains(t, r.broadcast, uint16(network.MsgTypeGameStart))
	assert.Contains(t, r.sent["alice"], uint16(network.MsgTypeHand))
	assert.Contains(t, r.sent["bob"], uint16(network.MsgTypeHand))

	now := t0
	for !r.game.Ended() {
		now = now.Add(time.Second)
		cur, ok := r.game.CurrentPlayer()
		require.True(t, ok)
		_, err := r.apply(t, Action{Type: ActionDraw, Identity: cur.Identity, Now: now})
		require.NoError(t, err)
	}
	assert.Equal(t, StateSettled, r.sm.GetCurrentState().GetID())
	require.Len(t, r.listener.ended, 1)
	assert.True(t, r.listener.ended[0].Ended())
	assert.False(t, r.listener.ended[0].Delegated)
	assert.Equal(t, uint16(network.MsgTypeGameEnd), r.broadcast[len(r.broadcast)-1])

	_, err = r.apply(t, Action{Type: ActionDraw, Identity: "alice", Now: now})
	assert.ErrorIs(t, err, engine.ErrGameAlreadyEnded)
}

func TestResumedSettledStateIsSilent(t *testing.T) {
	r := newMockRoom(t, 3)
	_, err := r.apply(t, Action{Type: ActionJoin, Identity: "bob", DisplayName: "Bob", Now: t0})
	require.NoError(t, err)
	_, err = r.apply(t, Action{Type: ActionLeave, Identity: "alice", Now: t0})
	require.NoError(t, err)
	require.Equal(t, engine.OutcomeCancelled, r.game.Outcome.Kind)

	// the same ended game hosted again, as after a restart
	loaded := &mockRoom{game: r.game.Clone(), listener: &recordingListener{}, sent: map[string][]uint16{}}
	loaded.sm = NewBaseStateMachine(NewResumedSettledState(loaded))
	assert.Equal(t, StateSettled, loaded.sm.GetCurrentState().GetID())
	assert.Empty(t, loaded.listener.ended)
	assert.Empty(t, loaded.broadcast)

	res, err := loaded.apply(t, Action{Type: ActionClaim, Identity: "bob", Now: t0})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.Amount)
}

func TestSettleFailureLeavesGameUntouched(t *testing.T) {
	r := newMockRoom(t, 2)
	before := r.game.Clone()
	broke := errors.New("insufficient funds")

	_, err := r.apply(t, Action{
		Type: ActionJoin, Identity: "bob", Now: t0,
		Settle: func(uint64) error { return broke },
	})
	assert.ErrorIs(t, err, broke)
	assert.Equal(t, before, r.game)
	assert.Equal(t, StateLobby, r.sm.GetCurrentState().GetID())
	assert.Empty(t, r.listener.applied)
}

func TestSettleReceivesStake(t *testing.T) {
	r := newMockRoom(t, 3)
	var got uint64
	res, err := r.apply(t, Action{
		Type: ActionJoin, Identity: "bob", Now: t0,
		Settle: func(amount uint64) error { got = amount; return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got)
	assert.Equal(t, uint64(5), res.Amount)
	assert.False(t, res.Full)
	assert.Equal(t, []ActionType{ActionJoin}, r.listener.applied)
}

func TestLeaveWhileAwaitingReturnsToLobby(t *testing.T) {
	r := newMockRoom(t, 2)
	_, err := r.apply(t, Action{Type: ActionJoin, Identity: "bob", Now: t0})
	require.NoError(t, err)
	require.Equal(t, StateAwaitingRandomness, r.sm.GetCurrentState().GetID())

	_, err = r.apply(t, Action{Type: ActionLeave, Identity: "bob", Now: t0})
	require.NoError(t, err)
	assert.Equal(t, StateLobby, r.sm.GetCurrentState().GetID())

	// stale randomness for the old roster
	_, err = r.apply(t, Action{Type: ActionRandomness, Now: t0})
	assert.ErrorIs(t, err, engine.ErrRosterNotFull)
}

func TestOwnerLeaveCancels(t *testing.T) {
	r := newMockRoom(t, 3)
	_, err := r.apply(t, Action{Type: ActionJoin, Identity: "bob", Now: t0})
	require.NoError(t, err)

	_, err = r.apply(t, Action{Type: ActionLeave, Identity: "alice", Now: t0})
	require.NoError(t, err)
	assert.Equal(t, StateSettled, r.sm.GetCurrentState().GetID())
	assert.Equal(t, engine.OutcomeCancelled, r.game.Outcome.Kind)

	res, err := r.apply(t, Action{Type: ActionClaim, Identity: "bob"})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.Amount)

	_, err = r.apply(t, Action{Type: ActionClaim, Identity: "bob"})
	assert.ErrorIs(t, err, engine.ErrAlreadyClaimed)
}

func TestUnknownAction(t *testing.T) {
	r := newMockRoom(t, 2)
	_, err := r.apply(t, Action{Type: "dance"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}
