package oracle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/whotserver/shuffle"
	"github.com/wfunc/whotserver/timer"
)

func TestDeterministicSource(t *testing.T) {
	src := DeterministicSource(shuffle.SHA256)

	a, err := src("g1", 7)
	require.NoError(t, err)
	b, err := src("g1", 7)
	require.NoError(t, err)
	c, err := src("g2", 7)
	require.NoError(t, err)
	d, err := src("g1", 8)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestCryptoSource(t *testing.T) {
	a, err := CryptoSource("g1", 0)
	require.NoError(t, err)
	b, err := CryptoSource("g1", 0)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestParseSource(t *testing.T) {
	for _, name := range []string{"", "crypto", "deterministic"} {
		src, err := ParseSource(name, shuffle.SHA256)
		require.NoError(t, err, name)
		assert.NotNil(t, src)
	}
	_, err := ParseSource("dice", shuffle.SHA256)
	assert.Error(t, err)
}

func TestRequestDelivers(t *testing.T) {
	timers := timer.NewTimerManager(5 * time.Millisecond)
	defer timers.Stop()

	src := DeterministicSource(shuffle.SHA256)
	want, _ := src("g1", 42)

	o := New(timers, 10*time.Millisecond, src)
	got := make(chan [32]byte, 1)
	require.NoError(t, o.Request("g1", 42, func(v [32]byte) { got <- v }))

	select {
	case v := <-got:
		assert.Equal(t, want, v)
	case <-time.After(time.Second):
		t.Fatal("randomness not delivered")
	}
}

func TestCancel(t *testing.T) {
	timers := timer.NewTimerManager(5 * time.Millisecond)
	defer timers.Stop()

	o := New(timers, 20*time.Millisecond, CryptoSource)
	got := make(chan [32]byte, 1)
	require.NoError(t, o.Request("g1", 1, func(v [32]byte) { got <- v }))
	o.Cancel("g1")

	select {
	case <-got:
		t.Fatal("cancelled delivery fired")
	case <-time.After(60 * time.Millisecond):
	}
}
