// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// DefaultTick 默认扫描间隔
const DefaultTick = 100 * time.Millisecond

type TimerTask struct {
	Id       int64
	Key      string // 非空时同一 key 只保留一个任务
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// TimerManager runs callbacks once their deadline passes. Callbacks run on their
// own goroutine, never under the manager lock.
type TimerManager struct {
	queue  TimerQueue
	keys   map[string]*TimerTask
	mutex  sync.Mutex
	nextId int64
	now    func() time.Time
	done   chan struct{}
	once   sync.Once
}

func NewTimerManager(tick time.Duration) *TimerManager {
	if tick <= 0 {
		tick = DefaultTick
	}
	manager := &TimerManager{
		queue:  make(TimerQueue, 0),
		keys:   make(map[string]*TimerTask),
		nextId: 1,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	heap.Init(&manager.queue)
	go manager.process(tick)
	return manager
}

// AddTimer schedules callback after delay, repeating every interval when interval > 0.
func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.push("", delay, interval, callback).Id
}

// Schedule replaces any pending task under key with a one-shot callback after delay.
func (m *TimerManager) Schedule(key string, delay time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if old, ok := m.keys[key]; ok {
		m.remove(old)
	}
	task := m.push(key, delay, 0, callback)
	m.keys[key] = task
	return task.Id
}

// Cancel drops the pending task under key, if any.
func (m *TimerManager) Cancel(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if task, ok := m.keys[key]; ok {
		m.remove(task)
	}
}

func (m *TimerManager) RemoveTimer(timerId int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, task := range m.queue {
		if task.Id == timerId {
			m.remove(task)
			break
		}
	}
}

// Len 待执行任务数
func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop ends the processing loop. Pending tasks never fire.
func (m *TimerManager) Stop() {
	m.once.Do(func() { close(m.done) })
}

func (m *TimerManager) push(key string, delay, interval time.Duration, callback func()) *TimerTask {
	task := &TimerTask{
		Id:       m.nextId,
		Key:      key,
		Execute:  m.now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++
	heap.Push(&m.queue, task)
	return task
}

func (m *TimerManager) remove(task *TimerTask) {
	if task.index >= 0 {
		heap.Remove(&m.queue, task.index)
	}
	if task.Key != "" && m.keys[task.Key] == task {
		delete(m.keys, task.Key)
	}
}

// due pops every task whose deadline has passed and re-arms repeating ones.
func (m *TimerManager) due(now time.Time) []*TimerTask {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var fired []*TimerTask
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}
		heap.Pop(&m.queue)
		fired = append(fired, task)

		if task.Interval > 0 {
			task.Execute = now.Add(task.Interval)
			heap.Push(&m.queue, task)
		} else if task.Key != "" && m.keys[task.Key] == task {
			delete(m.keys, task.Key)
		}
	}
	return fired
}

func (m *TimerManager) process(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, task := range m.due(m.now()) {
				go task.Callback()
			}
		case <-m.done:
			return
		}
	}
}
