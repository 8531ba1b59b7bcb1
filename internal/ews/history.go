package ews

import "github.com/Sapang3/vision-crowd/internal/contracts"

// History is a fixed-capacity ring of the most recent snapshots in arrival
// order. Append is O(1); once full the oldest entry is evicted. Stored
// snapshots are value copies and never mutated. Not safe for concurrent
// use on its own; the engine serializes access.
type History struct {
	buf   []contracts.RiskSnapshot
	start int
	count int
}

// NewHistory panics on a non-positive capacity; the engine validates the
// configured capacity before construction.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		panic("ews: history capacity must be positive")
	}
	return &History{buf: make([]contracts.RiskSnapshot, capacity)}
}

// Append stores a snapshot, evicting the oldest entry when full.
func (h *History) Append(s contracts.RiskSnapshot) {
	if h.count < len(h.buf) {
		h.buf[(h.start+h.count)%len(h.buf)] = s
		h.count++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Latest returns the most recently appended snapshot.
func (h *History) Latest() (contracts.RiskSnapshot, bool) {
	if h.count == 0 {
		return contracts.RiskSnapshot{}, false
	}
	return h.buf[(h.start+h.count-1)%len(h.buf)], true
}

// Last returns the most recent k snapshots in chronological order, oldest
// first. k larger than the stored count returns everything retained.
func (h *History) Last(k int) []contracts.RiskSnapshot {
	if k <= 0 || h.count == 0 {
		return nil
	}
	if k > h.count {
		k = h.count
	}
	out := make([]contracts.RiskSnapshot, 0, k)
	first := h.count - k
	for i := first; i < h.count; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out
}

// Len is the number of retained snapshots.
func (h *History) Len() int { return h.count }

// Cap is the configured capacity N.
func (h *History) Cap() int { return len(h.buf) }
