// card/card.go
package card

import (
	"errors"
	"fmt"
)

// Suit identifiers. Whot is the fixed-value wildcard suit, Star cards score double.
const (
	SuitWhot     uint8 = 1
	SuitCircle   uint8 = 2
	SuitTriangle uint8 = 3
	SuitCross    uint8 = 4
	SuitSquare   uint8 = 5
	SuitStar     uint8 = 6
)

// Effect ranks.
const (
	RankHoldOn        uint8 = 1
	RankPickTwo       uint8 = 2
	RankPickThree     uint8 = 5
	RankSuspension    uint8 = 8
	RankGeneralMarket uint8 = 14
	RankNeed          uint8 = 20
)

// WireSize is the encoded size of a Card: suit byte followed by rank byte.
const WireSize = 2

var ErrInvalidWire = errors.New("card: invalid wire encoding")

var suitNames = map[uint8]string{
	SuitWhot:     "Whot",
	SuitCircle:   "Circle",
	SuitTriangle: "Triangle",
	SuitCross:    "Cross",
	SuitSquare:   "Square",
	SuitStar:     "Star",
}

// Card is an immutable value; two cards are equal when suit and rank match.
type Card struct {
	Suit uint8 `json:"suit"`
	Rank uint8 `json:"rank"`
}

// New constructs a Card.
func New(suit, rank uint8) Card {
	return Card{Suit: suit, Rank: rank}
}

// Matches reports whether c may be played on top of call.
func (c Card) Matches(call Card) bool {
	return c.Suit == call.Suit || c.Rank == call.Rank
}

// Points is the card's contribution to a hand score.
func (c Card) Points() uint8 {
	if c.Suit == SuitStar {
		return satMul2(c.Rank)
	}
	return c.Rank
}

func (c Card) String() string {
	name, ok := suitNames[c.Suit]
	if !ok {
		name = fmt.Sprintf("Suit(%d)", c.Suit)
	}
	return fmt.Sprintf("%s %d", name, c.Rank)
}

// MarshalBinary encodes the card as (suit, rank).
func (c Card) MarshalBinary() ([]byte, error) {
	return []byte{c.Suit, c.Rank}, nil
}

// UnmarshalBinary decodes a two byte (suit, rank) encoding.
func (c *Card) UnmarshalBinary(data []byte) error {
	if len(data) != WireSize {
		return ErrInvalidWire
	}
	c.Suit = data[0]
	c.Rank = data[1]
	return nil
}

// Valid reports whether the card exists in the canonical deck.
func (c Card) Valid() bool {
	for _, s := range suits {
		if s.id != c.Suit {
			continue
		}
		for _, r := range s.ranks {
			if r == c.Rank {
				return true
			}
		}
	}
	return false
}

func satMul2(v uint8) uint8 {
	if v > 127 {
		return 255
	}
	return v * 2
}

// SatAdd adds two scores, clamping at the uint8 maximum.
func SatAdd(a, b uint8) uint8 {
	if a > 255-b {
		return 255
	}
	return a + b
}
