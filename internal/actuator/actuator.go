// Package actuator drives the cryocooler stroke DAC: it ramp-limits the
// sequencer's target and suppresses writes that would not change the output.
package actuator

import (
	"fmt"

	"github.com/jhyland87/Cryocooler-Controller/internal/logic"
)

// Writer sets the actuator output in counts.
type Writer interface {
	Write(counts uint16) error
}

// Driver applies targets to a Writer. Not safe for concurrent use.
type Driver struct {
	ramp   logic.Ramp
	w      Writer
	last   uint16
	primed bool // last reflects a successful write
	writes int
}

// NewDriver creates a driver limiting each change to maxStep counts.
func NewDriver(w Writer, maxStep uint16) *Driver {
	return &Driver{ramp: logic.Ramp{MaxStep: maxStep}, w: w}
}

// Apply moves the output toward target and writes it if it changed. A zero
// target is applied without ramping. It returns the commanded value and
// whether a write happened. On a write error the previous output is kept as
// the ramp origin.
func (d *Driver) Apply(target uint16) (commanded uint16, wrote bool, err error) {
	commanded = target
	if target != 0 {
		commanded = d.ramp.Next(target, d.last)
	}
	if d.primed && commanded == d.last {
		return commanded, false, nil
	}
	if err := d.w.Write(commanded); err != nil {
		return d.last, false, fmt.Errorf("write actuator %d: %w", commanded, err)
	}
	d.last = commanded
	d.primed = true
	d.writes++
	return commanded, true, nil
}

// Last returns the most recently written value.
func (d *Driver) Last() uint16 {
	return d.last
}

// Writes returns the number of writes performed.
func (d *Driver) Writes() int {
	return d.writes
}
