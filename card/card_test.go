package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeck(t *testing.T) {
	deck := NewDeck()
	require.Len(t, deck, DeckSize)

	perSuit := map[uint8]int{}
	for _, c := range deck {
		perSuit[c.Suit]++
		assert.True(t, c.Valid(), "card %s should be valid", c)
	}
	assert.Equal(t, map[uint8]int{
		SuitWhot:     5,
		SuitCircle:   12,
		SuitTriangle: 12,
		SuitCross:    9,
		SuitSquare:   9,
		SuitStar:     7,
	}, perSuit)

	// suit-major, declared order
	assert.Equal(t, New(SuitWhot, 20), deck[0])
	assert.Equal(t, New(SuitCircle, 1), deck[5])
	assert.Equal(t, New(SuitStar, 8), deck[DeckSize-1])
}

func TestNewDeckIsStable(t *testing.T) {
	assert.Equal(t, NewDeck(), NewDeck())
}

func TestMatches(t *testing.T) {
	call := New(SuitCircle, 7)
	cases := []struct {
		name string
		card Card
		want bool
	}{
		{"same suit", New(SuitCircle, 12), true},
		{"same rank", New(SuitSquare, 7), true},
		{"neither", New(SuitStar, 4), false},
		{"whot on circle", New(SuitWhot, 20), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.card.Matches(call))
		})
	}
}

func TestPoints(t *testing.T) {
	assert.Equal(t, uint8(14), New(SuitCircle, 14).Points())
	assert.Equal(t, uint8(16), New(SuitStar, 8).Points())
	assert.Equal(t, uint8(20), New(SuitWhot, 20).Points())
	assert.Equal(t, uint8(255), New(SuitStar, 200).Points())
}

func TestSatAdd(t *testing.T) {
	assert.Equal(t, uint8(30), SatAdd(10, 20))
	assert.Equal(t, uint8(255), SatAdd(250, 20))
	assert.Equal(t, uint8(255), SatAdd(255, 0))
}

func TestWireEncoding(t *testing.T) {
	c := New(SuitTriangle, 14)
	data, err := c.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 14}, data)

	var got Card
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, c, got)

	assert.ErrorIs(t, got.UnmarshalBinary([]byte{1}), ErrInvalidWire)
}

func TestValid(t *testing.T) {
	assert.False(t, New(SuitCross, 4).Valid())
	assert.False(t, New(7, 1).Valid())
	assert.True(t, New(SuitStar, 1).Valid())
}
