package liveness

import (
	"sync"
)

// Verdict is the windowed liveness decision for one identity.
type Verdict int

const (
	Spoof Verdict = iota
	VerifiedReal
)

func (v Verdict) String() string {
	if v == VerifiedReal {
		return "verified_real"
	}
	return "spoof"
}

const (
	DefaultWindow    = 10
	DefaultThreshold = 7
)

// history is a fixed-capacity ring of per-frame votes. Each identity owns one
// and locks it independently of the others.
type history struct {
	mu    sync.Mutex
	votes []bool
	head  int // index of the oldest vote once the ring is full
	size  int
	reals int
}

func (h *history) push(v bool) {
	capacity := len(h.votes)
	if h.size < capacity {
		h.votes[(h.head+h.size)%capacity] = v
		h.size++
	} else {
		if h.votes[h.head] {
			h.reals--
		}
		h.votes[h.head] = v
		h.head = (h.head + 1) % capacity
	}
	if v {
		h.reals++
	}
}

// Aggregator turns noisy per-frame anti-spoof results into a stable verdict
// using a sliding majority vote per identity.
type Aggregator struct {
	window    int
	threshold int
	observer  func(identity string, v Verdict)

	mu        sync.Mutex
	histories map[string]*history
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithObserver registers a callback invoked after every observation.
func WithObserver(fn func(identity string, v Verdict)) Option {
	return func(a *Aggregator) { a.observer = fn }
}

// New creates an aggregator with a window of h frames and a threshold of t
// real votes. Non-positive values fall back to the defaults; t is capped at h.
func New(h, t int, opts ...Option) *Aggregator {
	if h <= 0 {
		h = DefaultWindow
	}
	if t <= 0 {
		t = DefaultThreshold
	}
	if t > h {
		t = h
	}
	a := &Aggregator{
		window:    h,
		threshold: t,
		histories: make(map[string]*history),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) historyFor(identity string) *history {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.histories[identity]
	if !ok {
		h = &history{votes: make([]bool, a.window)}
		a.histories[identity] = h
	}
	return h
}

// Observe records one frame verdict for identity and returns the decision over
// the current window. An identity needs at least threshold real frames in the
// window before it can verify, however short its history.
func (a *Aggregator) Observe(identity string, isReal bool) Verdict {
	h := a.historyFor(identity)

	h.mu.Lock()
	h.push(isReal)
	votes := h.reals
	h.mu.Unlock()

	v := Spoof
	if votes >= a.threshold {
		v = VerifiedReal
	}
	if a.observer != nil {
		a.observer(identity, v)
	}
	return v
}

// Len reports how many identities have a history.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.histories)
}
