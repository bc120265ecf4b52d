package shuffle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/whotserver/card"
)

func TestShuffleDeterministic(t *testing.T) {
	a := ShuffledDeck(99, SHA256)
	b := ShuffledDeck(99, SHA256)
	assert.Equal(t, a, b)
}

func TestShuffleDifferentSeeds(t *testing.T) {
	assert.NotEqual(t, ShuffledDeck(1, SHA256), ShuffledDeck(2, SHA256))
}

func TestShuffleIsPermutation(t *testing.T) {
	for _, seed := range []uint64{0, 1, 42, 1 << 63} {
		got := ShuffledDeck(seed, SHA256)
		require.Len(t, got, card.DeckSize)
		assert.Equal(t, card.Count(card.NewDeck()), card.Count(got), "seed %d", seed)
	}
}

func TestShuffleDoesNotMutateInput(t *testing.T) {
	deck := card.NewDeck()
	Shuffle(42, deck, SHA256)
	assert.Equal(t, card.NewDeck(), deck)
}

// Pinned so that any change to the deck tables or the hash chain is caught.
func TestShuffleKnownVector(t *testing.T) {
	got := ShuffledDeck(42, SHA256)
	assert.Equal(t, []card.Card{
		card.New(6, 4), card.New(5, 1), card.New(2, 8),
		card.New(5, 10), card.New(6, 5), card.New(3, 1),
	}, got[:6])
	assert.Equal(t, card.New(1, 20), got[len(got)-1])
}

func TestShuffleBlake2b(t *testing.T) {
	got := ShuffledDeck(42, BLAKE2b)
	assert.Equal(t, []card.Card{
		card.New(6, 1), card.New(2, 1), card.New(3, 12),
		card.New(1, 20), card.New(4, 10), card.New(2, 5),
	}, got[:6])
	assert.Equal(t, card.Count(card.NewDeck()), card.Count(got))
}

func TestShuffleNilHasherDefaultsToSHA256(t *testing.T) {
	assert.Equal(t, ShuffledDeck(5, SHA256), Shuffle(5, card.NewDeck(), nil))
}

func TestParseHasher(t *testing.T) {
	h, err := ParseHasher("")
	require.NoError(t, err)
	assert.Equal(t, "sha256", h.Name())

	h, err = ParseHasher("blake2b")
	require.NoError(t, err)
	assert.Equal(t, "blake2b", h.Name())

	_, err = ParseHasher("crc32")
	assert.Error(t, err)
}

func TestReduceRandomness(t *testing.T) {
	var v [32]byte
	v[0] = 0x01
	v[7] = 0x80
	v[8] = 0xff // ignored
	assert.Equal(t, uint64(0x8000000000000001), ReduceRandomness(v))
}
