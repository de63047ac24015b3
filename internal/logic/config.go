package logic

import "time"

// Config holds every tunable used by the control layer.
type Config struct {
	// Actuator
	FullScale uint16 // maximum actuator count (12-bit DAC = 4095)

	// Temperatures (K)
	AmbientK            float64 // target curve is 0 at or above this
	SetpointK           float64 // target curve is full scale at or below this
	SetpointToleranceK  float64 // half-width of the settle band
	CoarseFineThreshold float64 // boundary between coarse and fine cooldown

	// Cooling-rate guard
	MaxCoolingRate    float64 // K/min
	HoldOnFastCooling bool    // hold the cooldown target while rate exceeds MaxCoolingRate

	// Safety
	MaxLineVoltage float64 // V; above this the sequencer faults
	BackoffStep    uint16  // actuator counts removed per overstroke
	BackoffMax     int     // overstrokes per run before faulting

	// Dwell timers
	InitDwell        time.Duration // lamp test before Idle
	SettleDuration   time.Duration // continuous in-band time before Baseline
	BaselineDuration time.Duration // Baseline dwell before Operating
	LampTestOnInit   bool          // Initialize enters the lamp test instead of Off

	// Temperature history
	HistoryCapacity int
	HistoryInterval time.Duration // minimum spacing between retained samples
	StallDetection  bool
	StallWindow     time.Duration
	StallMinDropK   float64

	// Overstroke detection
	SpikePrimeReadings int
	SpikeAlpha         float64
	SpikeThresholdA    float64
	SpikeDebounce      time.Duration

	// Ramp limiter
	RampMaxStep uint16 // counts per tick
}

// DefaultConfig returns the firmware defaults.
func DefaultConfig() Config {
	return Config{
		FullScale: 4095,

		AmbientK:            298.0,
		SetpointK:           78.0,
		SetpointToleranceK:  2.0,
		CoarseFineThreshold: 85.0,

		MaxCoolingRate: 5.0,

		MaxLineVoltage: 3.0,
		BackoffStep:    100,
		BackoffMax:     5,

		InitDwell:        2 * time.Second,
		SettleDuration:   5 * time.Minute,
		BaselineDuration: 10 * time.Minute,

		HistoryCapacity: 120,
		HistoryInterval: 10 * time.Second,
		StallWindow:     10 * time.Minute,
		StallMinDropK:   1.0,

		SpikePrimeReadings: 10,
		SpikeAlpha:         0.05,
		SpikeThresholdA:    0.5,
		SpikeDebounce:      2 * time.Second,

		RampMaxStep: 50,
	}
}

// InBand reports whether t lies inside [setpoint-tol, setpoint+tol].
func (c Config) InBand(t float64) bool {
	return t >= c.SetpointK-c.SetpointToleranceK && t <= c.SetpointK+c.SetpointToleranceK
}

// Overshot reports whether t is below the tolerance band.
func (c Config) Overshot(t float64) bool {
	return t < c.SetpointK-c.SetpointToleranceK
}
