package engine

import (
	"time"

	"github.com/wfunc/whotserver/card"
	"github.com/wfunc/whotserver/shuffle"
)

// ApplyRandomness consumes an oracle value, shuffles the deck with the reduced seed
// and deals. The roster must be full and the game unstarted.
func (g *Game) ApplyRandomness(value [32]byte, h shuffle.Hasher, now time.Time) error {
	if err := g.requirePhase(PhaseUnstarted); err != nil {
		return err
	}
	if !g.Full() {
		return ErrRosterNotFull
	}

	seed := shuffle.ReduceRandomness(value)
	g.RandomSeed = &seed
	g.deal(shuffle.ShuffledDeck(seed, h), now)
	return nil
}

// deal hands seat k the block [5(k-1), 5k) of deck, turns the next card into the
// call card and keeps the rest as the draw pile.
func (g *Game) deal(deck []card.Card, now time.Time) {
	n := len(g.Players)
	for i := range g.Players {
		hand := make([]card.Card, HandSize)
		copy(hand, deck[i*HandSize:(i+1)*HandSize])
		g.Players[i].Hand = hand
		g.Players[i].Seat = i + 1
	}

	call := deck[n*HandSize]
	g.CallCard = &call
	g.DrawPile = append(make([]card.Card, 0, len(deck)), deck[n*HandSize+1:]...)
	g.Discard = nil

	g.Phase = PhaseActive
	g.CurrentTurn = 1
	g.StartedAt = now
	g.LastMoveTime = now
}
