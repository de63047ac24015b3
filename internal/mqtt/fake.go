package mqtt

import (
	"github.com/jhyland87/Cryocooler-Controller/internal/command"
	"github.com/jhyland87/Cryocooler-Controller/internal/telemetry"
)

// FakeClient records published messages for test assertions.
type FakeClient struct {
	// Frames contains every telemetry frame that was published.
	Frames []telemetry.Frame

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// Replies contains every command reply that was published.
	Replies []command.Reply

	// PublishError, if set, will be returned by PublishTelemetry.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakeClient creates a connected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{Connected: true}
}

// PublishTelemetry records the frame.
func (f *FakeClient) PublishTelemetry(frame telemetry.Frame) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Frames = append(f.Frames, frame)
	return nil
}

// PublishSystem records the system event.
func (f *FakeClient) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// PublishReply records the reply.
func (f *FakeClient) PublishReply(reply command.Reply) error {
	f.Replies = append(f.Replies, reply)
	return nil
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	return f.Connected
}

// Events returns the names of recorded system events in order.
func (f *FakeClient) Events() []string {
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// Reset clears recorded messages.
func (f *FakeClient) Reset() {
	f.Frames = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Replies = nil
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Closed = false
}
