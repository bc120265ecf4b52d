package engine

import (
	"time"

	"github.com/wfunc/whotserver/card"
)

// checkWinner ends the game if the current player emptied their hand or the draw
// pile ran out. Once ended it does nothing.
func (g *Game) checkWinner(now time.Time) {
	if g.Ended() {
		return
	}
	cur, ok := g.CurrentPlayer()
	if ok && len(cur.Hand) == 0 {
		g.scoreAll()
		g.finish(Outcome{Kind: OutcomeWon, Winner: cur.Identity}, now)
		return
	}
	if len(g.DrawPile) == 0 {
		g.marketFinish(now)
	}
}

// marketFinish settles a game whose draw pile is exhausted: the unique lowest score
// wins, a shared lowest score is a tie.
func (g *Game) marketFinish(now time.Time) {
	g.scoreAll()

	var (
		best   uint8 = 255
		winner Identity
		count  int
	)
	for _, p := range g.Players {
		s := *p.Score
		switch {
		case count == 0 || s < best:
			best, winner, count = s, p.Identity, 1
		case s == best:
			count++
		}
	}

	if count == 1 {
		g.finish(Outcome{Kind: OutcomeWon, Winner: winner}, now)
		return
	}
	g.finish(Outcome{Kind: OutcomeTied}, now)
}

func (g *Game) finish(o Outcome, now time.Time) {
	g.Outcome = o
	g.Phase = PhaseEnded
	g.EndedAt = now
	g.CurrentTurn = 0
}

func (g *Game) scoreAll() {
	for i := range g.Players {
		s := HandScore(g.Players[i].Hand)
		g.Players[i].Score = &s
	}
}

// HandScore sums the points of a hand, saturating at 255.
func HandScore(hand []card.Card) uint8 {
	var total uint8
	for _, c := range hand {
		total = card.SatAdd(total, c.Points())
	}
	return total
}
