package gpio

// Write is one recorded Set call.
type Write struct {
	Line Line
	On   bool
}

// FakeOutputs records line writes for test assertions.
type FakeOutputs struct {
	// State holds the last logical value per line.
	State map[Line]bool

	// Writes contains every Set call in order.
	Writes []Write

	// SetError, if set, is returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeOutputs creates a FakeOutputs with every line at its safe state.
func NewFakeOutputs() *FakeOutputs {
	f := &FakeOutputs{State: make(map[Line]bool, len(Lines))}
	for _, l := range Lines {
		f.State[l] = Safe(l)
	}
	return f
}

// Set records the write.
func (f *FakeOutputs) Set(l Line, on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.State[l] = on
	f.Writes = append(f.Writes, Write{Line: l, On: on})
	return nil
}

// Close drives every line to its safe state and marks the fake closed.
func (f *FakeOutputs) Close() error {
	for _, l := range Lines {
		f.State[l] = Safe(l)
	}
	f.Closed = true
	return nil
}

// Reset clears recorded writes.
func (f *FakeOutputs) Reset() {
	f.Writes = nil
	f.SetError = nil
	f.Closed = false
}
