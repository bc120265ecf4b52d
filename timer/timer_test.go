package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTimerFires(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	fired := make(chan struct{}, 1)
	m.AddTimer(10*time.Millisecond, 0, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRepeatingTimer(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var count int32
	id := m.AddTimer(0, 10*time.Millisecond, func() { atomic.AddInt32(&count, 1) })

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&count) >= 3 }, time.Second, 5*time.Millisecond)
	m.RemoveTimer(id)
	assert.Equal(t, 0, m.Len())
}

func TestScheduleReplacesKey(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var first, second int32
	m.Schedule("g1", 20*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	m.Schedule("g1", 20*time.Millisecond, func() { atomic.AddInt32(&second, 1) })
	require.Equal(t, 1, m.Len())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&second) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&first))
}

func TestCancel(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var count int32
	m.Schedule("g1", 20*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	m.Cancel("g1")
	m.Cancel("unknown")
	assert.Equal(t, 0, m.Len())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&count))
}

func TestDueOrder(t *testing.T) {
	m := NewTimerManager(time.Hour)
	defer m.Stop()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	a := m.AddTimer(3*time.Second, 0, func() {})
	b := m.AddTimer(1*time.Second, 0, func() {})
	m.AddTimer(10*time.Second, 0, func() {})

	fired := m.due(base.Add(5 * time.Second))
	require.Len(t, fired, 2)
	assert.Equal(t, b, fired[0].Id)
	assert.Equal(t, a, fired[1].Id)
	assert.Equal(t, 1, m.Len())
}

func TestStopIsIdempotent(t *testing.T) {
	m := NewTimerManager(0)
	m.Stop()
	m.Stop()
}
