// Package lamp turns lamp modes into on/off decisions for each tick.
//
// A flashing lamp is lit when its mode is set and flips whenever at least
// half a period has passed since the last flip. Called less often than
// every half period, it still alternates on every call.
package lamp

import (
	"time"

	"github.com/jhyland87/Cryocooler-Controller/internal/logic"
)

// RGB is a status LED colour.
type RGB struct {
	R, G, B uint8
}

var (
	Black = RGB{}
	Red   = RGB{R: 255}
	Green = RGB{G: 255}
	Amber = RGB{R: 255, G: 80}
)

// Hex returns the colour as #rrggbb.
func (c RGB) Hex() string {
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{c.R, c.G, c.B} {
		b[1+2*i] = digits[v>>4]
		b[2+2*i] = digits[v&0x0f]
	}
	return string(b)
}

// Colour returns the hue of mode regardless of flashing.
func Colour(mode logic.LampMode) RGB {
	switch mode {
	case logic.LampSolidRed, logic.LampFlashFastRed, logic.LampFlashSlowRed:
		return Red
	case logic.LampSolidGreen, logic.LampFlashFastGreen, logic.LampFlashSlowGreen:
		return Green
	case logic.LampSolidAmber:
		return Amber
	}
	return Black
}

// Scheduler tracks one lamp.
type Scheduler struct {
	fast, slow time.Duration

	mode    logic.LampMode
	set     bool
	lit     bool
	toggled time.Time
}

// NewScheduler creates a scheduler with the given full flash periods.
func NewScheduler(fastPeriod, slowPeriod time.Duration) *Scheduler {
	return &Scheduler{fast: fastPeriod, slow: slowPeriod}
}

// Update sets the mode (restarting the flash phase if it changed) and
// reports whether the lamp is lit at now.
func (s *Scheduler) Update(mode logic.LampMode, now time.Time) bool {
	if !s.set || mode != s.mode {
		s.mode = mode
		s.set = true
		s.lit = true
		s.toggled = now
	}

	var period time.Duration
	switch mode {
	case logic.LampOff:
		return false
	case logic.LampSolidRed, logic.LampSolidGreen, logic.LampSolidAmber:
		return true
	case logic.LampFlashFastRed, logic.LampFlashFastGreen:
		period = s.fast
	case logic.LampFlashSlowRed, logic.LampFlashSlowGreen:
		period = s.slow
	default:
		return false
	}

	half := period / 2
	if half <= 0 {
		return true
	}
	if now.Sub(s.toggled) >= half {
		s.lit = !s.lit
		s.toggled = now
	}
	return s.lit
}

// Mode returns the current mode.
func (s *Scheduler) Mode() logic.LampMode {
	return s.mode
}

// Panel drives the fault and ready lamps together and derives the combined
// status LED colour.
type Panel struct {
	Fault *Scheduler
	Ready *Scheduler
}

// PanelState is the lamp picture for one tick.
type PanelState struct {
	FaultLit bool
	ReadyLit bool
	Colour   RGB
}

// NewPanel creates a panel with shared flash periods.
func NewPanel(fastPeriod, slowPeriod time.Duration) *Panel {
	return &Panel{
		Fault: NewScheduler(fastPeriod, slowPeriod),
		Ready: NewScheduler(fastPeriod, slowPeriod),
	}
}

// Update evaluates both lamps. When both are lit the combined colour is
// amber.
func (p *Panel) Update(fault, ready logic.LampMode, now time.Time) PanelState {
	st := PanelState{
		FaultLit: p.Fault.Update(fault, now),
		ReadyLit: p.Ready.Update(ready, now),
	}
	switch {
	case st.FaultLit && st.ReadyLit:
		st.Colour = Amber
	case st.FaultLit:
		st.Colour = Colour(fault)
	case st.ReadyLit:
		st.Colour = Colour(ready)
	}
	return st
}
