package logic

import "time"

// SpikeDetector tracks an exponential moving average of actuator current and
// flags back-EMF overstroke spikes that stand out from it.
//
// The first PrimeReadings samples seed the baseline directly and leave
// detection disarmed. After that a spike is flagged when the reading exceeds
// the baseline by more than the threshold and at least the debounce interval
// has passed since the previous flagged spike. The flag stays set until the
// consumer calls Clear.
type SpikeDetector struct {
	primeReadings int
	alpha         float64
	threshold     float64
	debounce      time.Duration

	current   float64
	baseline  float64
	primed    int
	pending   bool
	lastEvent time.Time
	hasEvent  bool
}

// NewSpikeDetector creates a detector tuned from cfg.
func NewSpikeDetector(cfg Config) *SpikeDetector {
	return &SpikeDetector{
		primeReadings: cfg.SpikePrimeReadings,
		alpha:         cfg.SpikeAlpha,
		threshold:     cfg.SpikeThresholdA,
		debounce:      cfg.SpikeDebounce,
	}
}

// Sample feeds one current reading. It returns true when this reading raised
// a new spike flag.
func (d *SpikeDetector) Sample(now time.Time, amps float64) bool {
	d.current = amps

	if d.primed < d.primeReadings {
		d.baseline = amps
		d.primed++
		return false
	}

	d.baseline += d.alpha * (amps - d.baseline)

	if d.pending {
		return false
	}
	if amps-d.baseline <= d.threshold {
		return false
	}
	if d.hasEvent && now.Sub(d.lastEvent) < d.debounce {
		return false
	}

	d.pending = true
	d.lastEvent = now
	d.hasEvent = true
	return true
}

// Pending reports whether a spike is flagged and not yet consumed.
func (d *SpikeDetector) Pending() bool {
	return d.pending
}

// Clear consumes the pending spike flag.
func (d *SpikeDetector) Clear() {
	d.pending = false
}

// Armed reports whether priming has finished.
func (d *SpikeDetector) Armed() bool {
	return d.primed >= d.primeReadings
}

// Baseline returns the current EMA baseline in amps.
func (d *SpikeDetector) Baseline() float64 {
	return d.baseline
}

// Current returns the last sampled reading in amps.
func (d *SpikeDetector) Current() float64 {
	return d.current
}

// Reset returns the detector to its unprimed state.
func (d *SpikeDetector) Reset() {
	*d = SpikeDetector{
		primeReadings: d.primeReadings,
		alpha:         d.alpha,
		threshold:     d.threshold,
		debounce:      d.debounce,
	}
}
