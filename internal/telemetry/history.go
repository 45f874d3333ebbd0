package telemetry

// ChannelHistory is a fixed-capacity FIFO window of one channel's values.
// Once full, each Append evicts the oldest value. It is not safe for
// concurrent use on its own; Decoder guards its histories.
type ChannelHistory struct {
	values   []float64
	capacity int
	head     int // next write position
	size     int
}

// NewChannelHistory creates a window of the given capacity.
func NewChannelHistory(capacity int) *ChannelHistory {
	if capacity < 1 {
		capacity = DefaultHistoryWindow
	}
	return &ChannelHistory{
		values:   make([]float64, capacity),
		capacity: capacity,
	}
}

// Append stores v, overwriting the oldest value when at capacity.
func (h *ChannelHistory) Append(v float64) {
	h.values[h.head] = v
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Values returns a copy of the window from oldest to newest.
func (h *ChannelHistory) Values() []float64 {
	out := make([]float64, h.size)
	start := (h.head - h.size + h.capacity) % h.capacity
	n := copy(out, h.values[start:min(start+h.size, h.capacity)])
	copy(out[n:], h.values[:h.size-n])
	return out
}

// Last returns the most recent value, or false when empty.
func (h *ChannelHistory) Last() (float64, bool) {
	if h.size == 0 {
		return 0, false
	}
	return h.values[(h.head-1+h.capacity)%h.capacity], true
}

// Len is the number of stored values.
func (h *ChannelHistory) Len() int { return h.size }

// Cap is the maximum number of stored values.
func (h *ChannelHistory) Cap() int { return h.capacity }

// Reset empties the window.
func (h *ChannelHistory) Reset() {
	h.head = 0
	h.size = 0
}
