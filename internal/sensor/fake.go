package sensor

import "errors"

// FakeSource is a test double that returns scripted readings.
type FakeSource struct {
	// Readings are returned in order; the last one repeats once exhausted.
	Readings []Reading

	// ReadError, if set, is returned by Read instead of a reading.
	ReadError error

	// Reads counts calls to Read.
	Reads int

	index int
}

// NewFakeSource creates a FakeSource with the given readings.
func NewFakeSource(readings ...Reading) *FakeSource {
	return &FakeSource{Readings: readings}
}

// Read returns the next scripted reading.
func (f *FakeSource) Read() (Reading, error) {
	f.Reads++
	if f.ReadError != nil {
		return Reading{}, f.ReadError
	}
	if len(f.Readings) == 0 {
		return Reading{}, errors.New("no readings configured")
	}
	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r, nil
}

// Push appends readings to the script.
func (f *FakeSource) Push(readings ...Reading) {
	f.Readings = append(f.Readings, readings...)
}
