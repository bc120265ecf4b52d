package engine

import "time"

// Deadline is the instant after which the current player may be penalized.
func (g *Game) Deadline() time.Time {
	return g.lastMove().Add(g.WaitWindow)
}

// Overdue reports whether the current player has exceeded the wait window at now.
func (g *Game) Overdue(now time.Time) bool {
	return g.Phase == PhaseActive && now.Sub(g.lastMove()) > g.WaitWindow
}

func (g *Game) lastMove() time.Time {
	if !g.LastMoveTime.IsZero() {
		return g.LastMoveTime
	}
	return g.StartedAt
}

// Penalize lets a non-current player punish an overdue current player with one card
// from the pile. Within the wait window it is a no-op and returns false.
func (g *Game) Penalize(id Identity, now time.Time) (bool, error) {
	if err := g.requirePhase(PhaseActive); err != nil {
		return false, err
	}
	idx := g.playerIndex(id)
	if idx < 0 {
		return false, ErrUnknownPlayer
	}
	if g.Players[idx].Seat == g.CurrentTurn {
		return false, ErrSelfPenalization
	}
	if !g.Overdue(now) {
		return false, nil
	}

	g.LastMoveTime = now
	if len(g.DrawPile) == 0 {
		g.marketFinish(now)
		return true, nil
	}

	g.giveTop(g.CurrentTurn - 1)
	g.checkWinner(now)
	if !g.Ended() {
		g.advance(1)
	}
	return true, nil
}
