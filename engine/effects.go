package engine

import (
	"time"

	"github.com/wfunc/whotserver/card"
)

// resolve applies the effect of a just-played rank. Draws to opponents happen before
// the termination check; the turn only moves if the game is still running.
func (g *Game) resolve(rank uint8, now time.Time) {
	switch rank {
	case card.RankHoldOn:
		// the player goes again
		g.checkWinner(now)

	case card.RankPickTwo:
		g.pick(2)
		g.checkWinner(now)
		if !g.Ended() {
			g.advance(2)
		}

	case card.RankPickThree:
		g.pick(3)
		g.checkWinner(now)
		if !g.Ended() {
			g.advance(2)
		}

	case card.RankSuspension:
		g.checkWinner(now)
		if !g.Ended() {
			g.advance(2)
		}

	case card.RankGeneralMarket:
		g.generalMarket()
		g.checkWinner(now)

	case card.RankNeed:
		// requesting a suit is not modelled; the turn stays
		g.checkWinner(now)

	default:
		g.checkWinner(now)
		if !g.Ended() {
			g.advance(1)
		}
	}
}

// pick makes the next player draw up to n cards, bounded by the pile.
func (g *Game) pick(n int) {
	target := g.nextIndex(1)
	for i := 0; i < n && len(g.DrawPile) > 0; i++ {
		g.giveTop(target)
	}
}

// generalMarket deals one card to every other player in seat order after the
// current one, stopping once the pile runs out.
func (g *Game) generalMarket() {
	for k := 1; k < len(g.Players); k++ {
		if len(g.DrawPile) == 0 {
			return
		}
		g.giveTop(g.nextIndex(k))
	}
}
