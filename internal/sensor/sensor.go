// Package sensor provides the per-tick measurements the controller consumes
// and the unit conversions used to derive them.
package sensor

import "time"

// Reading is one set of measurements taken for a control tick.
type Reading struct {
	Time         time.Time
	TemperatureK float64 // cold-stage temperature
	CurrentA     float64 // actuator drive current (AC RMS)
	LineVoltage  float64 // RMS line voltage
}

// Source produces readings. Read is called once per tick from the
// controller loop.
type Source interface {
	Read() (Reading, error)
}
