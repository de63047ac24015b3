//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "cryocooler"

// RealOutputs drives lines on a Linux GPIO character device.
type RealOutputs struct {
	chip  *gpiocdev.Chip
	lines map[Line]*gpiocdev.Line
}

// NewRealOutputs requests every line as an output at its safe level.
func NewRealOutputs(chipName string, pins Pins) (*RealOutputs, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	o := &RealOutputs{chip: chip, lines: make(map[Line]*gpiocdev.Line, len(Lines))}
	for _, l := range Lines {
		offset := pins.offset(l)
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(raw(l, Safe(l))))
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", l, offset, err)
		}
		o.lines[l] = line
	}
	return o, nil
}

// Set drives a line to a logical state.
func (o *RealOutputs) Set(l Line, on bool) error {
	line, ok := o.lines[l]
	if !ok {
		return fmt.Errorf("set %s: line not requested", l)
	}
	if err := line.SetValue(raw(l, on)); err != nil {
		return fmt.Errorf("set %s: %w", l, err)
	}
	return nil
}

// Close drives every line to its safe level, then reconfigures the pins as
// inputs with pull-down (matching Pi boot defaults) and releases them.
func (o *RealOutputs) Close() error {
	var errs []error

	for _, l := range Lines {
		line, ok := o.lines[l]
		if !ok {
			continue
		}
		if err := line.SetValue(raw(l, Safe(l))); err != nil {
			errs = append(errs, fmt.Errorf("reset %s: %w", l, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", l, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", l, err))
		}
		delete(o.lines, l)
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		o.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
