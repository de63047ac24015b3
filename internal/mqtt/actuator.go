package mqtt

import (
	"encoding/json"
	"fmt"
)

// ActuatorMessage is the JSON body published on the actuator topic.
type ActuatorMessage struct {
	Counts uint16 `json:"counts"`
}

// ActuatorPublisher is an actuator.Writer that sends drive counts to a
// remote cold-head node.
type ActuatorPublisher struct {
	topic   string
	publish func(topic string, payload []byte) error
}

// NewActuatorPublisher creates a writer that hands each payload to publish.
func NewActuatorPublisher(topic string, publish func(topic string, payload []byte) error) *ActuatorPublisher {
	return &ActuatorPublisher{topic: topic, publish: publish}
}

// Write publishes counts.
func (a *ActuatorPublisher) Write(counts uint16) error {
	payload, err := json.Marshal(ActuatorMessage{Counts: counts})
	if err != nil {
		return fmt.Errorf("format actuator payload: %w", err)
	}
	if err := a.publish(a.topic, payload); err != nil {
		return fmt.Errorf("publish actuator: %w", err)
	}
	return nil
}
