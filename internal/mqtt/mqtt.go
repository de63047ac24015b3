// Package mqtt publishes controller telemetry and system events, accepts
// operator commands, and optionally carries sensor readings and actuator
// drive for a remote cold head.
package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jhyland87/Cryocooler-Controller/internal/command"
	"github.com/jhyland87/Cryocooler-Controller/internal/telemetry"
)

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
	EventTransition  = "TRANSITION"
	EventFault       = "FAULT"
)

// ReasonDisconnect is the shutdown reason carried by the last will.
const ReasonDisconnect = "MQTT_DISCONNECT"

// ErrNotConnected is returned when a message that is not buffered is
// published while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

// Topics is the set of topics used under one prefix.
type Topics struct {
	Telemetry string // per-tick frames, QoS 0
	System    string // lifecycle events, QoS 1
	Command   string // inbound operator commands
	Reply     string // command replies
	Sensor    string // inbound readings (io=mqtt)
	Actuator  string // outbound drive counts (io=mqtt)
}

// NewTopics builds the topic set under prefix.
func NewTopics(prefix string) Topics {
	p := strings.TrimSuffix(prefix, "/")
	return Topics{
		Telemetry: p + "/telemetry",
		System:    p + "/system",
		Command:   p + "/command",
		Reply:     p + "/command/reply",
		Sensor:    p + "/sensor",
		Actuator:  p + "/actuator",
	}
}

// Publisher publishes controller output to the broker.
type Publisher interface {
	// PublishTelemetry sends one tick's frame. Frames are not buffered.
	PublishTelemetry(frame telemetry.Frame) error

	// PublishSystem sends a lifecycle event. Events raised while offline
	// are held and replayed on reconnect.
	PublishSystem(event SystemEvent) error

	// PublishReply sends the outcome of a command received on the broker.
	PublishReply(reply command.Reply) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandHandler executes a command and returns its reply. The real client
// calls it from a single worker goroutine, one command at a time.
type CommandHandler func(command.Name) command.Reply

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // shutdown signal, fault reason, transition
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// SystemPayload is the payload for events that don't carry a status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// FormatReply creates the JSON payload for a command reply.
func FormatReply(reply command.Reply) ([]byte, error) {
	return json.Marshal(reply)
}

// handleCommand parses a command payload and runs it. Unparseable
// payloads are rejected without reaching h.
func handleCommand(payload []byte, h CommandHandler) command.Reply {
	name, err := command.ParseJSON(payload)
	if err != nil {
		return command.Err("", "%v", err)
	}
	return h(name)
}
