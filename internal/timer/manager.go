package timer

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"smartattendance/internal/clock"
	"smartattendance/internal/logger"
	"smartattendance/internal/metrics"
)

// DefaultDelay is the grace period before a started class is auto-confirmed.
const DefaultDelay = 30 * time.Second

const finalizeTimeout = 30 * time.Second

// State of a countdown.
type State int

const (
	Running State = iota
	Fired         // deadline passed, finalize in flight
)

func (s State) String() string {
	if s == Fired {
		return "fired"
	}
	return "running"
}

// FinalizeFunc confirms a schedule's attendance and reports rows finalized.
type FinalizeFunc func(ctx context.Context, scheduleID int64) (int64, error)

// Info describes one countdown.
type Info struct {
	ScheduleID int64     `json:"schedule_id"`
	Deadline   time.Time `json:"deadline"`
	State      string    `json:"state"`
}

type entry struct {
	scheduleID int64
	deadline   time.Time
	state      State
	index      int
}

// Manager owns one-shot auto-finalize countdowns keyed by schedule id.
// Deadlines sit in a min-heap that Run polls against the clock; there is no
// cancellation, a countdown ends only by firing.
type Manager struct {
	clock    clock.Clock
	delay    time.Duration
	finalize FinalizeFunc
	log      *zap.Logger

	mu      sync.Mutex
	entries map[int64]*entry
	queue   deadlineHeap

	inflight sync.WaitGroup
}

// New creates a manager. A non-positive delay falls back to DefaultDelay.
func New(c clock.Clock, delay time.Duration, finalize FinalizeFunc, log *zap.Logger) *Manager {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Manager{
		clock:    c,
		delay:    delay,
		finalize: finalize,
		log:      logger.OrNop(log),
		entries:  make(map[int64]*entry),
	}
}

// Ensure arms a countdown for scheduleID unless one already exists. It
// reports whether a new countdown was armed; an existing one keeps its
// original deadline.
func (m *Manager) Ensure(scheduleID int64) bool {
	m.mu.Lock()
	if _, ok := m.entries[scheduleID]; ok {
		m.mu.Unlock()
		return false
	}
	e := &entry{scheduleID: scheduleID, deadline: m.clock.Now().Add(m.delay), state: Running}
	m.entries[scheduleID] = e
	heap.Push(&m.queue, e)
	running := len(m.entries)
	m.mu.Unlock()

	metrics.TimersArmed.Inc()
	metrics.TimersRunning.Set(float64(running))
	m.log.Info("auto-finalize timer started",
		zap.Int64("schedule_id", scheduleID), zap.Time("deadline", e.deadline))
	return true
}

// FireDue starts finalization of every countdown whose deadline is at or
// before now and returns how many fired. Finalization runs on its own
// goroutine; use Wait to block until it is done.
func (m *Manager) FireDue(now time.Time) int {
	var due []*entry
	m.mu.Lock()
	for m.queue.Len() > 0 && !m.queue[0].deadline.After(now) {
		e := heap.Pop(&m.queue).(*entry)
		e.state = Fired
		due = append(due, e)
	}
	m.mu.Unlock()

	for _, e := range due {
		m.inflight.Add(1)
		go m.fire(e.scheduleID)
	}
	return len(due)
}

func (m *Manager) fire(scheduleID int64) {
	defer m.inflight.Done()
	defer m.remove(scheduleID)

	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			m.log.Error("auto-finalize panicked",
				zap.Int64("schedule_id", scheduleID), zap.String("panic", fmt.Sprint(r)))
		}
		metrics.TimersFired.WithLabelValues(result).Inc()
	}()

	m.log.Info("auto-finalizing attendance", zap.Int64("schedule_id", scheduleID))
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	n, err := m.finalize(ctx, scheduleID)
	if err != nil {
		result = "error"
		m.log.Error("auto-finalize failed; rows stay temporary",
			zap.Int64("schedule_id", scheduleID), zap.Error(err))
		return
	}
	m.log.Info("auto-finalize complete", zap.Int64("schedule_id", scheduleID), zap.Int64("finalized", n))
}

func (m *Manager) remove(scheduleID int64) {
	m.mu.Lock()
	delete(m.entries, scheduleID)
	running := len(m.entries)
	m.mu.Unlock()
	metrics.TimersRunning.Set(float64(running))
}

// Run polls for due countdowns every resolution until ctx is done.
func (m *Manager) Run(ctx context.Context, resolution time.Duration) {
	if resolution <= 0 {
		resolution = 250 * time.Millisecond
	}
	ticker := time.NewTicker(resolution)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.FireDue(m.clock.Now())
		}
	}
}

// Wait blocks until in-flight finalizations return.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// Has reports whether a countdown exists for scheduleID.
func (m *Manager) Has(scheduleID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[scheduleID]
	return ok
}

// Snapshot lists countdowns ordered by deadline.
func (m *Manager) Snapshot() []Info {
	m.mu.Lock()
	out := make([]Info, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, Info{ScheduleID: e.scheduleID, Deadline: e.deadline, State: e.state.String()})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].ScheduleID < out[j].ScheduleID
		}
		return out[i].Deadline.Before(out[j].Deadline)
	})
	return out
}

type deadlineHeap []*entry

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
