// state/interfaces.go
package state

import (
	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/shuffle"
)

// RoomContext defines the interface that a Room must implement to be managed by the state machine.
// This breaks the import cycle between room and state.
//
// Game returns the live aggregate and is only valid inside HandleAction and OnEnter,
// which the room runs under its game lock.
type RoomContext interface {
	GetID() string
	Game() *engine.Game
	Hasher() shuffle.Hasher
	ChangeState(newState State) error
	Broadcast(msgID uint16, data []byte) error
	SendTo(identity string, msgID uint16, data []byte) error
	Listener() Listener
}

// Listener observes game lifecycle events. Callbacks run under the room lock and
// receive a clone of the game; they must not call back into the room synchronously.
type Listener interface {
	OnRosterFull(g *engine.Game)
	OnGameStarted(g *engine.Game)
	OnActionApplied(g *engine.Game, action Action, result Result)
	OnGameEnded(g *engine.Game)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) OnRosterFull(*engine.Game)                    {}
func (NopListener) OnGameStarted(*engine.Game)                   {}
func (NopListener) OnActionApplied(*engine.Game, Action, Result) {}
func (NopListener) OnGameEnded(*engine.Game)                     {}
