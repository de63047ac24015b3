// Package gpio drives the relay and discrete lamp outputs.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Line identifies one output.
type Line int

const (
	Bypass    Line = iota // true = Bypass (relay de-energised), false = Normal
	Alarm                 // true = alarm relay energised
	FaultLamp             // true = lit
	ReadyLamp             // true = lit
)

// Lines lists every output line.
var Lines = []Line{Bypass, Alarm, FaultLamp, ReadyLamp}

func (l Line) String() string {
	switch l {
	case Bypass:
		return "bypass"
	case Alarm:
		return "alarm"
	case FaultLamp:
		return "fault-lamp"
	case ReadyLamp:
		return "ready-lamp"
	}
	return fmt.Sprintf("line(%d)", int(l))
}

// Safe returns the logical state a line is driven to on open and close:
// relay in Bypass, alarm off, lamps off.
func Safe(l Line) bool {
	return l == Bypass
}

// raw converts a logical state to the pin level. The bypass relay is
// energised (high) for Normal.
func raw(l Line, on bool) int {
	if l == Bypass {
		on = !on
	}
	if on {
		return 1
	}
	return 0
}

// Outputs sets output lines.
type Outputs interface {
	// Set drives a line to a logical state.
	Set(line Line, on bool) error

	// Close drives every line to its safe state and releases resources.
	Close() error
}

// Pins maps lines to chip offsets (BCM numbering on a Raspberry Pi).
type Pins struct {
	Bypass    int
	Alarm     int
	FaultLamp int
	ReadyLamp int
}

// DefaultPins is the reference wiring.
var DefaultPins = Pins{Bypass: 17, Alarm: 27, FaultLamp: 22, ReadyLamp: 23}

func (p Pins) offset(l Line) int {
	switch l {
	case Bypass:
		return p.Bypass
	case Alarm:
		return p.Alarm
	case FaultLamp:
		return p.FaultLamp
	case ReadyLamp:
		return p.ReadyLamp
	}
	return -1
}

// Hooked wraps o so fn is called with the logical state after every
// successful Set of line.
func Hooked(o Outputs, line Line, fn func(on bool)) Outputs {
	return &hooked{Outputs: o, line: line, fn: fn}
}

type hooked struct {
	Outputs
	line Line
	fn   func(bool)
}

func (h *hooked) Set(line Line, on bool) error {
	if err := h.Outputs.Set(line, on); err != nil {
		return err
	}
	if line == h.line {
		h.fn(on)
	}
	return nil
}
