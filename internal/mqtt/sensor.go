package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jhyland87/Cryocooler-Controller/internal/sensor"
)

var (
	// ErrNoReading is returned by Read before the first message arrives.
	ErrNoReading = errors.New("no reading received")
	// ErrStaleReading is returned when the last message is older than the
	// subscriber's max age.
	ErrStaleReading = errors.New("reading is stale")
)

// ReadingMessage is the JSON body accepted on the sensor topic. One
// temperature field is expected; precedence is Kelvin, then Celsius, then
// the raw MAX31865 RTD register converted with the PT100 defaults.
type ReadingMessage struct {
	TemperatureK *float64 `json:"temperature_k,omitempty"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	RTDRaw       *uint16  `json:"rtd_raw,omitempty"`
	CurrentA     float64  `json:"current_a"`
	LineVoltage  float64  `json:"line_voltage"`
}

// ReadingSubscriber is a sensor.Source fed by messages from a remote
// cold-head node.
type ReadingSubscriber struct {
	maxAge time.Duration
	clock  func() time.Time

	mu       sync.Mutex
	last     sensor.Reading
	received bool
}

// NewReadingSubscriber creates a subscriber whose readings expire after
// maxAge (zero disables expiry). clock may be nil for time.Now.
func NewReadingSubscriber(maxAge time.Duration, clock func() time.Time) *ReadingSubscriber {
	if clock == nil {
		clock = time.Now
	}
	return &ReadingSubscriber{maxAge: maxAge, clock: clock}
}

// HandlePayload decodes a ReadingMessage and stores it as the latest reading.
func (s *ReadingSubscriber) HandlePayload(payload []byte) error {
	var msg ReadingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decode reading: %w", err)
	}

	var tempK float64
	switch {
	case msg.TemperatureK != nil:
		tempK = *msg.TemperatureK
	case msg.TemperatureC != nil:
		tempK = sensor.CelsiusToKelvin(*msg.TemperatureC)
	case msg.RTDRaw != nil:
		tempK = sensor.RawToKelvin(*msg.RTDRaw, sensor.DefaultRRef, sensor.DefaultRNominal)
	default:
		return fmt.Errorf("decode reading: no temperature")
	}
	if math.IsNaN(tempK) || math.IsInf(tempK, 0) {
		return fmt.Errorf("decode reading: temperature not finite")
	}

	s.mu.Lock()
	s.last = sensor.Reading{
		Time:         s.clock(),
		TemperatureK: tempK,
		CurrentA:     msg.CurrentA,
		LineVoltage:  msg.LineVoltage,
	}
	s.received = true
	s.mu.Unlock()
	return nil
}

// Read returns the latest reading.
func (s *ReadingSubscriber) Read() (sensor.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.received {
		return sensor.Reading{}, ErrNoReading
	}
	if s.maxAge > 0 {
		if age := s.clock().Sub(s.last.Time); age > s.maxAge {
			return s.last, fmt.Errorf("%w: %s old", ErrStaleReading, age.Round(time.Millisecond))
		}
	}
	return s.last, nil
}
