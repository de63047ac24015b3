// Package command parses operator commands and carries their replies.
package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Name is an operator command.
type Name string

const (
	Start        Name = "start"
	Stop         Name = "stop"
	Off          Name = "off"
	Status       Name = "status"
	TelemetryOn  Name = "telemetry on"
	TelemetryOff Name = "telemetry off"
	Help         Name = "help"
)

// Names lists every command with its help text, in display order.
var Names = []struct {
	Name Name
	Help string
}{
	{Start, "Begin the cooldown process (from Off or Idle)"},
	{Stop, "Abort the process and return to Idle"},
	{Off, "Power off the system entirely"},
	{Status, "Report current state and running flag"},
	{TelemetryOn, "Enable per-tick telemetry"},
	{TelemetryOff, "Disable per-tick telemetry"},
	{Help, "List available commands"},
}

// Parse normalises text (case, surrounding and repeated whitespace) and
// returns the matching command. "telemetry-on" and "telemetry_on" are
// accepted for use in URL paths.
func Parse(text string) (Name, error) {
	s := strings.ToLower(strings.Join(strings.Fields(text), " "))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	for _, c := range Names {
		if string(c.Name) == s {
			return c.Name, nil
		}
	}
	return "", fmt.Errorf("unknown command %q", strings.TrimSpace(text))
}

// Request is the JSON body accepted on the command topic.
type Request struct {
	Command string `json:"command"`
}

// ParseJSON decodes a Request and parses its command. A payload that is not
// a JSON object is parsed as plain text.
func ParseJSON(payload []byte) (Name, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Parse(string(payload))
	}
	return Parse(req.Command)
}

// Reply is the outcome of a command.
type Reply struct {
	Command Name   `json:"command"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// OK builds a successful reply.
func OK(c Name, format string, args ...any) Reply {
	return Reply{Command: c, OK: true, Message: fmt.Sprintf(format, args...)}
}

// Err builds a rejected reply.
func Err(c Name, format string, args ...any) Reply {
	return Reply{Command: c, OK: false, Message: fmt.Sprintf(format, args...)}
}

// String renders the reply the way the serial console does.
func (r Reply) String() string {
	if r.OK {
		return "[OK] " + r.Message
	}
	return "[ERR] " + r.Message
}

// HelpText lists every command with its description.
func HelpText() string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, c := range Names {
		fmt.Fprintf(&b, "\n  %-16s  %s", c.Name, c.Help)
	}
	return b.String()
}
