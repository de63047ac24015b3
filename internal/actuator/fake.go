package actuator

// FakeWriter records writes for test assertions.
type FakeWriter struct {
	// Values contains every written value in order.
	Values []uint16

	// WriteError, if set, is returned by Write.
	WriteError error
}

// Write records counts.
func (f *FakeWriter) Write(counts uint16) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Values = append(f.Values, counts)
	return nil
}

// Last returns the last written value, or 0.
func (f *FakeWriter) Last() uint16 {
	if len(f.Values) == 0 {
		return 0
	}
	return f.Values[len(f.Values)-1]
}
