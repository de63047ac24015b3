// Package logic contains the pure control-decision layer of the cryocooler
// controller: the cooldown sequencer, the temperature history, the current
// spike detector and the actuator target/ramp computation.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State is the cooldown sequencer state.
type State int8

const (
	StateOff            State = -1
	StateInitialize     State = 0
	StateIdle           State = 1
	StateCoarseCooldown State = 2
	StateFineCooldown   State = 3
	StateOvershoot      State = 4
	StateSettle         State = 5
	StateBaseline       State = 6
	StateOperating      State = 7
	StateFault          State = 8
)

// States lists every state in numeric order.
var States = []State{
	StateOff,
	StateInitialize,
	StateIdle,
	StateCoarseCooldown,
	StateFineCooldown,
	StateOvershoot,
	StateSettle,
	StateBaseline,
	StateOperating,
	StateFault,
}

// String returns a short ASCII name, safe for telemetry.
func (s State) String() string {
	switch s {
	case StateOff:
		return "Off"
	case StateInitialize:
		return "Initialize"
	case StateIdle:
		return "Idle"
	case StateCoarseCooldown:
		return "CoarseCooldown"
	case StateFineCooldown:
		return "FineCooldown"
	case StateOvershoot:
		return "Overshoot"
	case StateSettle:
		return "Settle"
	case StateBaseline:
		return "Baseline"
	case StateOperating:
		return "Operating"
	case StateFault:
		return "Fault"
	}
	return "Unknown"
}

// Cooling reports whether the state actively drives the cold stage down.
// Only these states consult the stall flag.
func (s State) Cooling() bool {
	return s == StateCoarseCooldown || s == StateFineCooldown
}

// FaultReason explains why the sequencer entered StateFault.
type FaultReason uint8

const (
	FaultNone FaultReason = iota
	FaultOverVoltage
	FaultTemperatureStall
	FaultExcessiveBackoff
)

func (r FaultReason) String() string {
	switch r {
	case FaultNone:
		return "None"
	case FaultOverVoltage:
		return "OverVoltage"
	case FaultTemperatureStall:
		return "TemperatureStall"
	case FaultExcessiveBackoff:
		return "ExcessiveBackoff"
	}
	return "Unknown"
}

// LampMode is the desired display of a single status lamp. Flash timing is
// owned by the lamp scheduler, not by the sequencer.
type LampMode uint8

const (
	LampOff LampMode = iota
	LampSolidRed
	LampSolidGreen
	LampSolidAmber
	LampFlashFastRed
	LampFlashSlowRed
	LampFlashFastGreen
	LampFlashSlowGreen
)

func (m LampMode) String() string {
	switch m {
	case LampOff:
		return "off"
	case LampSolidRed:
		return "solid-red"
	case LampSolidGreen:
		return "solid-green"
	case LampSolidAmber:
		return "solid-amber"
	case LampFlashFastRed:
		return "flash-fast-red"
	case LampFlashSlowRed:
		return "flash-slow-red"
	case LampFlashFastGreen:
		return "flash-fast-green"
	case LampFlashSlowGreen:
		return "flash-slow-green"
	}
	return "unknown"
}

// Status strings, one per state and one per fault reason.
const (
	StatusOff            = "System is off"
	StatusInitialize     = "Initial power up state"
	StatusIdle           = "Cold stage is warm; dewar is not cooling"
	StatusCoarseCooldown = "Cooling; cold stage is above 85K"
	StatusFineCooldown   = "Cooling; cold stage is below 85K"
	StatusOvershoot      = "Cold stage is cooler than set point; integrator is settling"
	StatusSettle         = "Cold stage temperature is settling; circuits switched to Normal"
	StatusBaseline       = "Cold stage temperature has settled; collecting baseline data"
	StatusOperating      = "System is operating normally; checking for deviations from baseline"

	StatusFaultOverVoltage      = "Fault: RMS voltage exceeded safe limit"
	StatusFaultTemperatureStall = "Fault: Temperature stalled during cooldown"
	StatusFaultExcessiveBackoff = "Fault: Too many back-EMF stroke events; output backed off"
	StatusFaultUnknown          = "Fault: Unknown reason"
)

// statusText returns the fixed status string for a state and, while
// faulted, its reason.
func statusText(s State, reason FaultReason) string {
	switch s {
	case StateOff:
		return StatusOff
	case StateInitialize:
		return StatusInitialize
	case StateIdle:
		return StatusIdle
	case StateCoarseCooldown:
		return StatusCoarseCooldown
	case StateFineCooldown:
		return StatusFineCooldown
	case StateOvershoot:
		return StatusOvershoot
	case StateSettle:
		return StatusSettle
	case StateBaseline:
		return StatusBaseline
	case StateOperating:
		return StatusOperating
	case StateFault:
		switch reason {
		case FaultOverVoltage:
			return StatusFaultOverVoltage
		case FaultTemperatureStall:
			return StatusFaultTemperatureStall
		case FaultExcessiveBackoff:
			return StatusFaultExcessiveBackoff
		}
		return StatusFaultUnknown
	}
	return "Unknown state"
}

// TickInput is everything the sequencer consumes on one control tick.
type TickInput struct {
	TemperatureK float64 // cold-stage temperature
	CoolingRate  float64 // K/min, positive = cooling
	LineVoltage  float64 // V
	Stalled      bool
	Overstroke   bool // back-EMF spike pending from the detector
	Now          time.Time
}

// Output is the authoritative decision for one tick. A fresh value is
// returned by every Tick call.
type Output struct {
	State        State
	Target       uint16 // actuator target before ramp limiting, 0..FullScale
	BypassRelay  bool   // true = Bypass, false = Normal
	AlarmRelay   bool
	FaultLamp    LampMode
	ReadyLamp    LampMode
	StatusText   string
	BackoffCount int
}
