package engine

// ClaimAmount validates a claim by id and returns the amount owed without recording it.
// The winner takes every stake; after a tie or a cancellation each player gets their
// own stake back.
func (g *Game) ClaimAmount(id Identity) (uint64, error) {
	if !g.Ended() {
		return 0, ErrGameNotEnded
	}
	idx := g.playerIndex(id)
	if idx < 0 {
		return 0, ErrUnknownPlayer
	}
	if g.Players[idx].Claimed {
		return 0, ErrAlreadyClaimed
	}

	if g.Outcome.Kind == OutcomeWon {
		if g.Outcome.Winner != id {
			return 0, ErrNotWinner
		}
		return g.Pot(), nil
	}
	return g.EntryStake, nil
}

// Claim records the payout for id and returns the amount owed.
func (g *Game) Claim(id Identity) (uint64, error) {
	amount, err := g.ClaimAmount(id)
	if err != nil {
		return 0, err
	}
	g.Players[g.playerIndex(id)].Claimed = true
	return amount, nil
}

// Pot is the total stake held for the game.
func (g *Game) Pot() uint64 {
	return g.EntryStake * uint64(len(g.Players))
}

// Paid reports whether every payout owed by an ended game has been claimed.
func (g *Game) Paid() bool {
	if !g.Ended() {
		return false
	}
	for _, p := range g.Players {
		if p.Claimed {
			continue
		}
		if g.Outcome.Kind != OutcomeWon || p.Identity == g.Outcome.Winner {
			return false
		}
	}
	return true
}
