package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/whotserver/card"
	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/network"
)

type ActionType string

const (
	ActionJoin       ActionType = "join"
	ActionLeave      ActionType = "leave"
	ActionRandomness ActionType = "randomness"
	ActionPlay       ActionType = "play"
	ActionDraw       ActionType = "draw"
	ActionPenalize   ActionType = "penalize"
	ActionClaim      ActionType = "claim"
)

var ErrUnknownAction = errors.New("unknown action")

// Action is one request against a room's game.
type Action struct {
	Type        ActionType
	Identity    engine.Identity
	DisplayName string
	Card        card.Card
	Randomness  [32]byte
	Now         time.Time

	// Settle moves stake for join (deposit), leave (refund) and claim (payout).
	// It runs after validation and before the game is mutated; an error aborts
	// the action with the game untouched.
	Settle func(amount uint64) error
}

// Result reports what an applied action did.
type Result struct {
	Full      bool   // join filled the roster
	Penalized bool   // penalize was not a no-op
	Amount    uint64 // stake moved by Settle
	Ended     bool
}

func settle(a Action, amount uint64) error {
	if a.Settle == nil {
		return nil
	}
	if err := a.Settle(amount); err != nil {
		return fmt.Errorf("settle %s: %w", a.Type, err)
	}
	return nil
}

// apply runs the engine operation for a. Validation always precedes Settle, and
// Settle precedes mutation, so a failed action leaves both game and stake untouched.
func (s *RoomStateBase) apply(a Action) (Result, error) {
	g := s.Room.Game()
	var res Result

	switch a.Type {
	case ActionJoin:
		if err := g.CanJoin(a.Identity); err != nil {
			return res, err
		}
		if err := settle(a, g.EntryStake); err != nil {
			return res, err
		}
		full, err := g.Join(a.Identity, a.DisplayName)
		if err != nil {
			return res, err
		}
		res.Full, res.Amount = full, g.EntryStake

	case ActionLeave:
		if err := g.CanLeave(a.Identity); err != nil {
			return res, err
		}
		if err := settle(a, g.EntryStake); err != nil {
			return res, err
		}
		if err := g.Leave(a.Identity, a.Now); err != nil {
			return res, err
		}
		res.Amount = g.EntryStake

	case ActionRandomness:
		if err := g.ApplyRandomness(a.Randomness, s.Room.Hasher(), a.Now); err != nil {
			return res, err
		}

	case ActionPlay:
		if err := g.Play(a.Identity, a.Card, a.Now); err != nil {
			return res, err
		}

	case ActionDraw:
		if err := g.Draw(a.Identity, a.Now); err != nil {
			return res, err
		}

	case ActionPenalize:
		penalized, err := g.Penalize(a.Identity, a.Now)
		if err != nil {
			return res, err
		}
		res.Penalized = penalized

	case ActionClaim:
		amount, err := g.ClaimAmount(a.Identity)
		if err != nil {
			return res, err
		}
		if err := settle(a, amount); err != nil {
			return res, err
		}
		if _, err := g.Claim(a.Identity); err != nil {
			return res, err
		}
		res.Amount = amount

	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}

	res.Ended = g.Ended()
	s.Room.Listener().OnActionApplied(g.Clone(), a, res)
	if a.Type != ActionPenalize || res.Penalized {
		syncGame(s.Room, network.MsgTypeGameSync)
	}
	return res, nil
}
