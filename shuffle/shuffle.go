// Package shuffle turns a 64-bit seed into a deterministic permutation of the deck
// using a hash-chained Fisher–Yates shuffle.
package shuffle

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/wfunc/whotserver/card"
)

// Hasher is a collision-resistant 256-bit hash over the concatenation of parts.
type Hasher interface {
	Sum256(parts ...[]byte) [32]byte
	Name() string
}

type sha256Hasher struct{}

func (sha256Hasher) Sum256(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (sha256Hasher) Name() string { return "sha256" }

type blake2bHasher struct{}

func (blake2bHasher) Sum256(parts ...[]byte) [32]byte {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return blake2b.Sum256(buf)
}

func (blake2bHasher) Name() string { return "blake2b" }

var (
	SHA256  Hasher = sha256Hasher{}
	BLAKE2b Hasher = blake2bHasher{}
)

// ParseHasher resolves a configured hasher name. Empty selects SHA-256.
func ParseHasher(name string) (Hasher, error) {
	switch name {
	case "", "sha256":
		return SHA256, nil
	case "blake2b":
		return BLAKE2b, nil
	default:
		return nil, fmt.Errorf("unknown hasher %q", name)
	}
}

func u64le(x uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, x)
	return b
}

// Shuffle returns a permutation of deck derived from seed. deck is not modified.
//
// For i from len-1 down to 1 the digest of (seed bytes, le64(i)) picks the swap partner
// r mod (i+1), and the digest's first 8 bytes become the seed bytes of the next round.
func Shuffle(seed uint64, deck []card.Card, h Hasher) []card.Card {
	if h == nil {
		h = SHA256
	}
	out := make([]card.Card, len(deck))
	copy(out, deck)

	seedBytes := u64le(seed)
	for i := len(out) - 1; i > 0; i-- {
		digest := h.Sum256(seedBytes, u64le(uint64(i)))
		r := binary.LittleEndian.Uint64(digest[0:8])
		j := int(r % uint64(i+1))
		out[i], out[j] = out[j], out[i]

		seedBytes = append([]byte(nil), digest[0:8]...)
	}
	return out
}

// ShuffledDeck is Shuffle applied to the canonical deck.
func ShuffledDeck(seed uint64, h Hasher) []card.Card {
	return Shuffle(seed, card.NewDeck(), h)
}

// ReduceRandomness folds a 256-bit oracle value into the 64-bit shuffle seed:
// the first 8 bytes read little-endian.
func ReduceRandomness(value [32]byte) uint64 {
	return binary.LittleEndian.Uint64(value[0:8])
}
