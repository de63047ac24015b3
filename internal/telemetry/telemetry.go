// Package telemetry defines the per-tick frame published by the controller
// and its wire formats.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Frame is everything observable about one control tick.
type Frame struct {
	Time  time.Time
	RunID string

	StateCode   int8
	State       string
	Status      string
	FaultReason string
	Running     bool

	TemperatureK    float64
	TemperatureC    float64
	CooldownPercent float64
	CoolingRate     float64 // K/min, positive = cooling
	Stalled         bool

	LineVoltage float64
	CurrentA    float64
	BaselineA   float64
	Overstroke  bool

	Target       uint16
	Commanded    uint16
	BackoffCount int

	Bypass   bool
	Alarm    bool
	FaultLit bool
	ReadyLit bool
	Colour   string // status LED as #rrggbb

	TimeInState   time.Duration
	RunDuration   time.Duration
	SettleElapsed time.Duration
}

// Payload is the JSON envelope for a frame.
type Payload struct {
	Cryocooler FramePayload `json:"cryocooler"`
}

// FramePayload is the JSON representation of a frame.
type FramePayload struct {
	Timestamp       string  `json:"timestamp"`
	RunID           string  `json:"run_id,omitempty"`
	StateCode       int8    `json:"state_code"`
	State           string  `json:"state"`
	Status          string  `json:"status"`
	FaultReason     string  `json:"fault_reason,omitempty"`
	Running         bool    `json:"running"`
	TemperatureK    float64 `json:"temperature_k"`
	TemperatureC    float64 `json:"temperature_c"`
	CooldownPercent float64 `json:"cooldown_percent"`
	CoolingRate     float64 `json:"cooling_rate_k_per_min"`
	Stalled         bool    `json:"stalled"`
	LineVoltage     float64 `json:"line_voltage"`
	CurrentA        float64 `json:"current_a"`
	BaselineA       float64 `json:"current_baseline_a"`
	Overstroke      bool    `json:"overstroke"`
	Target          uint16  `json:"target"`
	Commanded       uint16  `json:"commanded"`
	BackoffCount    int     `json:"backoff_count"`
	Relay           string  `json:"relay"` // BYPASS | NORMAL
	Alarm           bool    `json:"alarm"`
	FaultLamp       bool    `json:"fault_lamp"`
	ReadyLamp       bool    `json:"ready_lamp"`
	Colour          string  `json:"led_colour"`
	TimeInStateS    float64 `json:"time_in_state_s"`
	RunDurationS    float64 `json:"run_duration_s"`
	SettleElapsedS  float64 `json:"settle_elapsed_s,omitempty"`
}

// RelayName returns the relay position label.
func RelayName(bypass bool) string {
	if bypass {
		return "BYPASS"
	}
	return "NORMAL"
}

// ToPayload converts f to its JSON representation.
func (f Frame) ToPayload() FramePayload {
	return FramePayload{
		Timestamp:       f.Time.UTC().Format(time.RFC3339Nano),
		RunID:           f.RunID,
		StateCode:       f.StateCode,
		State:           f.State,
		Status:          f.Status,
		FaultReason:     f.FaultReason,
		Running:         f.Running,
		TemperatureK:    f.TemperatureK,
		TemperatureC:    f.TemperatureC,
		CooldownPercent: f.CooldownPercent,
		CoolingRate:     f.CoolingRate,
		Stalled:         f.Stalled,
		LineVoltage:     f.LineVoltage,
		CurrentA:        f.CurrentA,
		BaselineA:       f.BaselineA,
		Overstroke:      f.Overstroke,
		Target:          f.Target,
		Commanded:       f.Commanded,
		BackoffCount:    f.BackoffCount,
		Relay:           RelayName(f.Bypass),
		Alarm:           f.Alarm,
		FaultLamp:       f.FaultLit,
		ReadyLamp:       f.ReadyLit,
		Colour:          f.Colour,
		TimeInStateS:    f.TimeInState.Seconds(),
		RunDurationS:    f.RunDuration.Seconds(),
		SettleElapsedS:  f.SettleElapsed.Seconds(),
	}
}

// FormatJSON returns the JSON payload for f.
func FormatJSON(f Frame) ([]byte, error) {
	return json.Marshal(Payload{Cryocooler: f.ToPayload()})
}

// FormatCSV returns f as a Serial Studio quick-plot line:
// state code, state, status, K, C, rate, target, commanded, volts,
// relay (1 = Normal), alarm, fault lamp, ready lamp.
func FormatCSV(f Frame) string {
	return fmt.Sprintf("/*%d,%s,%s,%.2f,%.2f,%.3f,%d,%d,%.2f,%d,%d,%d,%d*/",
		f.StateCode, f.State, f.Status,
		f.TemperatureK, f.TemperatureC, f.CoolingRate,
		f.Target, f.Commanded, f.LineVoltage,
		b2i(!f.Bypass), b2i(f.Alarm), 100*b2i(f.FaultLit), 100*b2i(f.ReadyLit))
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
