package logic

import "time"

// Sample is one retained temperature reading.
type Sample struct {
	Time         time.Time
	TemperatureK float64
}

// History is a fixed-capacity ring of temperature samples. Once full, each
// Push overwrites the oldest sample. The backing array is allocated once.
// Not safe for concurrent use.
type History struct {
	buf   []Sample
	head  int // next write position
	count int

	stallEnabled bool
	stallWindow  time.Duration
	stallMinDrop float64
}

// NewHistory creates a history sized and tuned from cfg. Capacities below 2
// are raised to 2 so a rate can always be computed once filled.
func NewHistory(cfg Config) *History {
	capacity := cfg.HistoryCapacity
	if capacity < 2 {
		capacity = 2
	}
	return &History{
		buf:          make([]Sample, capacity),
		stallEnabled: cfg.StallDetection,
		stallWindow:  cfg.StallWindow,
		stallMinDrop: cfg.StallMinDropK,
	}
}

// Push records a sample, overwriting the oldest when full.
func (h *History) Push(now time.Time, tempK float64) {
	h.buf[h.head] = Sample{Time: now, TemperatureK: tempK}
	h.head = (h.head + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
}

// Reset discards all samples.
func (h *History) Reset() {
	h.head = 0
	h.count = 0
}

// Len returns the number of retained samples.
func (h *History) Len() int {
	return h.count
}

// Cap returns the ring capacity.
func (h *History) Cap() int {
	return len(h.buf)
}

// at returns the sample at logical index i (0 = oldest).
func (h *History) at(i int) Sample {
	return h.buf[(h.head-h.count+i+len(h.buf))%len(h.buf)]
}

// Latest returns the newest sample, if any.
func (h *History) Latest() (Sample, bool) {
	if h.count == 0 {
		return Sample{}, false
	}
	return h.at(h.count - 1), true
}

// Samples returns a copy of the retained samples, oldest first.
func (h *History) Samples() []Sample {
	out := make([]Sample, h.count)
	for i := range out {
		out[i] = h.at(i)
	}
	return out
}

// CoolingRate returns the temperature drop between the oldest and newest
// retained samples in K/min. Positive means cooling. Returns 0 with fewer
// than two samples or no elapsed time.
func (h *History) CoolingRate() float64 {
	if h.count < 2 {
		return 0
	}
	oldest := h.at(0)
	newest := h.at(h.count - 1)
	dt := newest.Time.Sub(oldest.Time)
	if dt <= 0 {
		return 0
	}
	return (oldest.TemperatureK - newest.TemperatureK) / dt.Minutes()
}

// Stalled reports whether the temperature dropped by less than the
// configured minimum since the start of the trailing stall window. It is
// false while stall detection is disabled and until the retained history
// reaches back to the start of the window. Only meaningful while cooling.
func (h *History) Stalled() bool {
	if !h.stallEnabled || h.count < 2 {
		return false
	}
	newest := h.at(h.count - 1)
	windowStart := newest.Time.Add(-h.stallWindow)
	if h.at(0).Time.After(windowStart) {
		return false
	}

	ref := newest.TemperatureK
	for i := 0; i < h.count; i++ {
		s := h.at(i)
		if !s.Time.Before(windowStart) {
			ref = s.TemperatureK
			break
		}
	}
	return ref-newest.TemperatureK < h.stallMinDrop
}
