package liveness

func (h *history) snapshot() []bool {
	out := make([]bool, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.votes[(h.head+i)%len(h.votes)]
	}
	return out
}

// Window returns identity's votes, oldest first. Nil when never observed.
func (a *Aggregator) Window(identity string) []bool {
	a.mu.Lock()
	h, ok := a.histories[identity]
	a.mu.Unlock()
	if !ok {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot()
}
