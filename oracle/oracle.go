// Package oracle delivers the 32-byte randomness that starts a game. Delivery is
// asynchronous, the way an external verifiable randomness service calls back.
package oracle

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/wfunc/whotserver/shuffle"
	"github.com/wfunc/whotserver/timer"
)

// Source produces the randomness for one request.
type Source func(gameID string, seed uint64) ([32]byte, error)

// CryptoSource reads from crypto/rand.
func CryptoSource(string, uint64) ([32]byte, error) {
	var v [32]byte
	_, err := rand.Read(v[:])
	return v, err
}

// DeterministicSource hashes the game seed with the game id, so replays deal the
// same cards.
func DeterministicSource(h shuffle.Hasher) Source {
	return func(gameID string, seed uint64) ([32]byte, error) {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], seed)
		return h.Sum256([]byte("whot-randomness"), buf[:], []byte(gameID)), nil
	}
}

// ParseSource resolves a configured source name.
func ParseSource(name string, h shuffle.Hasher) (Source, error) {
	switch name {
	case "", "crypto":
		return CryptoSource, nil
	case "deterministic":
		return DeterministicSource(h), nil
	default:
		return nil, fmt.Errorf("unknown randomness oracle %q", name)
	}
}

// Oracle schedules deliveries on a timer manager.
type Oracle struct {
	timers *timer.TimerManager
	delay  time.Duration
	source Source
}

func New(timers *timer.TimerManager, delay time.Duration, source Source) *Oracle {
	return &Oracle{timers: timers, delay: delay, source: source}
}

func (o *Oracle) key(gameID string) string {
	return "oracle:" + gameID
}

// Request draws the value now and hands it to deliver after the configured delay.
// A second request for the same game replaces the pending one.
func (o *Oracle) Request(gameID string, seed uint64, deliver func([32]byte)) error {
	value, err := o.source(gameID, seed)
	if err != nil {
		return fmt.Errorf("oracle %s: %w", gameID, err)
	}
	o.timers.Schedule(o.key(gameID), o.delay, func() { deliver(value) })
	return nil
}

// Cancel drops a pending delivery.
func (o *Oracle) Cancel(gameID string) {
	o.timers.Cancel(o.key(gameID))
}
