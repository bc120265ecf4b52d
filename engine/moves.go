package engine

import (
	"fmt"
	"time"

	"github.com/wfunc/whotserver/card"
)

// Play places c from the caller's hand onto the call card and resolves its effect.
func (g *Game) Play(id Identity, c card.Card, now time.Time) error {
	idx, err := g.requireTurn(id)
	if err != nil {
		return err
	}

	pos := indexOf(g.Players[idx].Hand, c)
	if pos < 0 {
		return fmt.Errorf("%w: %s not in hand", ErrIllegalCard, c)
	}
	if g.CallCard == nil {
		return ErrMissingCallCard
	}
	if !c.Matches(*g.CallCard) {
		return fmt.Errorf("%w: %s on %s", ErrIllegalCard, c, *g.CallCard)
	}

	p := &g.Players[idx]
	p.Hand = append(p.Hand[:pos:pos], p.Hand[pos+1:]...)
	g.Discard = append(g.Discard, *g.CallCard)
	g.CallCard = &c
	g.LastMoveTime = now

	g.resolve(c.Rank, now)
	return nil
}

// Draw moves the top of the draw pile into the caller's hand and passes the turn.
func (g *Game) Draw(id Identity, now time.Time) error {
	idx, err := g.requireTurn(id)
	if err != nil {
		return err
	}
	if len(g.DrawPile) == 0 {
		return ErrEmptyDrawPile
	}

	g.giveTop(idx)
	g.LastMoveTime = now

	g.checkWinner(now)
	if !g.Ended() {
		g.advance(1)
	}
	return nil
}

// requireTurn validates that the game is active and id holds the turn.
// It returns the index of the caller in Players.
func (g *Game) requireTurn(id Identity) (int, error) {
	if err := g.requirePhase(PhaseActive); err != nil {
		return -1, err
	}
	idx := g.playerIndex(id)
	if idx < 0 {
		return -1, ErrUnknownPlayer
	}
	if g.Players[idx].Seat != g.CurrentTurn {
		return -1, ErrOutOfTurn
	}
	return idx, nil
}

// advance moves the turn step seats forward, wrapping over the roster.
func (g *Game) advance(step int) {
	n := len(g.Players)
	g.CurrentTurn = (g.CurrentTurn-1+step)%n + 1
}

// nextIndex is the roster index k seats after the current one.
func (g *Game) nextIndex(k int) int {
	return (g.CurrentTurn - 1 + k) % len(g.Players)
}

// giveTop pops the top of the draw pile into the hand of the player at idx.
// The caller guarantees the pile is not empty.
func (g *Game) giveTop(idx int) {
	last := len(g.DrawPile) - 1
	top := g.DrawPile[last]
	g.DrawPile = g.DrawPile[:last]
	g.Players[idx].Hand = append(g.Players[idx].Hand, top)
}

func indexOf(hand []card.Card, c card.Card) int {
	for i, h := range hand {
		if h == c {
			return i
		}
	}
	return -1
}
