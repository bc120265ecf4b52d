// Package engine implements the Whot rules: dealing, move validation, card effects,
// turn advancement, overdue penalties and win/tie scoring.
//
// A Game is a single mutable aggregate. Every exported operation either applies
// completely or returns an error and leaves the Game untouched, so callers can retry
// freely. The engine never locks; the hosting layer applies one operation at a time.
package engine

import (
	"time"

	"github.com/wfunc/whotserver/card"
)

const (
	MinPlayers     = 2
	MaxPlayers     = 5
	HandSize       = 5
	MinWaitWindow  = 30 * time.Second
	MaxWaitWindow  = 120 * time.Second
	MaxDrawPileLen = card.DeckSize
)

// Identity is the opaque, stable handle of a participant.
type Identity string

// Phase is the lifecycle stage of a game.
type Phase string

const (
	PhaseUnstarted Phase = "unstarted"
	PhaseActive    Phase = "active"
	PhaseEnded     Phase = "ended"
)

// OutcomeKind distinguishes an undecided game from the ways it can conclude.
type OutcomeKind string

const (
	OutcomeUndecided OutcomeKind = "undecided"
	OutcomeWon       OutcomeKind = "won"
	OutcomeTied      OutcomeKind = "tied"
	OutcomeCancelled OutcomeKind = "cancelled" // owner left before the deal
)

// Outcome is the result of a game. Winner is only set for OutcomeWon.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Winner Identity    `json:"winner,omitempty"`
}

// Player is one participant.
type Player struct {
	Identity    Identity    `json:"identity"`
	DisplayName string      `json:"display_name"`
	Hand        []card.Card `json:"hand"`            // nil before the deal
	Seat        int         `json:"seat"`            // 1..N after the deal, 0 before
	Score       *uint8      `json:"score,omitempty"` // set at termination
	Claimed     bool        `json:"claimed"`
}

// Params are the creation arguments of a game.
type Params struct {
	Seed        uint64
	EntryStake  uint64
	StakeAsset  string
	PlayerCount int
	WaitWindow  time.Duration
}

// Game is the aggregate root.
type Game struct {
	ID          string        `json:"id"`
	Owner       Identity      `json:"owner"`
	Seed        uint64        `json:"seed"`
	EntryStake  uint64        `json:"entry_stake"`
	StakeAsset  string        `json:"stake_asset"`
	PlayerCount int           `json:"player_count"`
	Players     []Player      `json:"players"`
	CurrentTurn int           `json:"current_turn"`
	CallCard    *card.Card    `json:"call_card,omitempty"`
	DrawPile    []card.Card   `json:"draw_pile,omitempty"` // top is the last element
	Discard     []card.Card   `json:"discard,omitempty"`   // cards buried under the call card
	WaitWindow  time.Duration `json:"wait_window"`
	RandomSeed  *uint64       `json:"random_seed,omitempty"`
	Delegated   bool          `json:"delegated"`
	Phase       Phase         `json:"phase"`
	Outcome     Outcome       `json:"outcome"`

	CreatedAt    time.Time `json:"created_at"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	LastMoveTime time.Time `json:"last_move_time"`
}

// NewGame creates an unstarted game with the owner seated as its first player.
func NewGame(id string, owner Identity, ownerName string, p Params, now time.Time) (*Game, error) {
	if p.PlayerCount < MinPlayers || p.PlayerCount > MaxPlayers {
		return nil, ErrInvalidPlayerCount
	}
	if p.WaitWindow < MinWaitWindow || p.WaitWindow > MaxWaitWindow {
		return nil, ErrInvalidWaitWindow
	}
	if p.EntryStake == 0 {
		return nil, ErrInvalidEntryStake
	}

	g := &Game{
		ID:          id,
		Owner:       owner,
		Seed:        p.Seed,
		EntryStake:  p.EntryStake,
		StakeAsset:  p.StakeAsset,
		PlayerCount: p.PlayerCount,
		Players:     make([]Player, 0, p.PlayerCount),
		WaitWindow:  p.WaitWindow,
		Phase:       PhaseUnstarted,
		Outcome:     Outcome{Kind: OutcomeUndecided},
		CreatedAt:   now,
	}
	g.Players = append(g.Players, Player{Identity: owner, DisplayName: ownerName})
	return g, nil
}

// CanJoin reports why id could not join, or nil.
func (g *Game) CanJoin(id Identity) error {
	switch {
	case g.Phase == PhaseEnded:
		return ErrGameAlreadyEnded
	case g.Full():
		return ErrRosterFull
	case g.Phase != PhaseUnstarted:
		return ErrGameAlreadyStarted
	case g.playerIndex(id) >= 0:
		return ErrPlayerAlreadyJoined
	}
	return nil
}

// Join appends a player to the roster. It reports whether the roster is now full.
func (g *Game) Join(id Identity, displayName string) (bool, error) {
	if err := g.CanJoin(id); err != nil {
		return false, err
	}
	g.Players = append(g.Players, Player{Identity: id, DisplayName: displayName})
	return g.Full(), nil
}

// CanLeave reports why id could not leave, or nil.
func (g *Game) CanLeave(id Identity) error {
	if err := g.requirePhase(PhaseUnstarted); err != nil {
		return err
	}
	if g.playerIndex(id) < 0 {
		return ErrUnknownPlayer
	}
	return nil
}

// Leave removes a player before the deal. When the owner leaves the game is cancelled.
func (g *Game) Leave(id Identity, now time.Time) error {
	if err := g.CanLeave(id); err != nil {
		return err
	}
	idx := g.playerIndex(id)

	g.Players = append(g.Players[:idx:idx], g.Players[idx+1:]...)
	if id == g.Owner {
		g.Phase = PhaseEnded
		g.Outcome = Outcome{Kind: OutcomeCancelled}
		g.EndedAt = now
		g.CurrentTurn = 0
	}
	return nil
}

// Full reports whether the roster has reached PlayerCount.
func (g *Game) Full() bool {
	return len(g.Players) >= g.PlayerCount
}

// Started reports whether the deal has happened.
func (g *Game) Started() bool { return g.Phase != PhaseUnstarted && g.RandomSeed != nil }

// Ended reports whether the game has concluded.
func (g *Game) Ended() bool { return g.Phase == PhaseEnded }

// Winner returns the winning identity, if the game was won.
func (g *Game) Winner() (Identity, bool) {
	if g.Outcome.Kind != OutcomeWon {
		return "", false
	}
	return g.Outcome.Winner, true
}

// Player returns a copy of the player with the given identity.
func (g *Game) Player(id Identity) (Player, bool) {
	idx := g.playerIndex(id)
	if idx < 0 {
		return Player{}, false
	}
	return g.Players[idx], true
}

// CurrentPlayer returns the player holding the turn while the game is active.
func (g *Game) CurrentPlayer() (Player, bool) {
	if g.Phase != PhaseActive || g.CurrentTurn < 1 || g.CurrentTurn > len(g.Players) {
		return Player{}, false
	}
	return g.Players[g.CurrentTurn-1], true
}

// Clone returns a deep copy of the game.
func (g *Game) Clone() *Game {
	c := *g
	c.Players = make([]Player, len(g.Players), cap(g.Players))
	for i, p := range g.Players {
		cp := p
		if p.Hand != nil {
			cp.Hand = append(make([]card.Card, 0, len(p.Hand)), p.Hand...)
		}
		if p.Score != nil {
			s := *p.Score
			cp.Score = &s
		}
		c.Players[i] = cp
	}
	if g.CallCard != nil {
		cc := *g.CallCard
		c.CallCard = &cc
	}
	if g.DrawPile != nil {
		c.DrawPile = append(make([]card.Card, 0, len(g.DrawPile)), g.DrawPile...)
	}
	if g.Discard != nil {
		c.Discard = append(make([]card.Card, 0, len(g.Discard)), g.Discard...)
	}
	if g.RandomSeed != nil {
		rs := *g.RandomSeed
		c.RandomSeed = &rs
	}
	return &c
}

// AllCards returns every card in custody: hands, draw pile, discard and call card.
func (g *Game) AllCards() []card.Card {
	var all []card.Card
	for _, p := range g.Players {
		all = append(all, p.Hand...)
	}
	all = append(all, g.DrawPile...)
	all = append(all, g.Discard...)
	if g.CallCard != nil {
		all = append(all, *g.CallCard)
	}
	return all
}

func (g *Game) playerIndex(id Identity) int {
	for i := range g.Players {
		if g.Players[i].Identity == id {
			return i
		}
	}
	return -1
}

func (g *Game) requirePhase(want Phase) error {
	if g.Phase == want {
		return nil
	}
	switch g.Phase {
	case PhaseEnded:
		return ErrGameAlreadyEnded
	case PhaseUnstarted:
		return ErrGameNotStarted
	default:
		return ErrGameAlreadyStarted
	}
}
