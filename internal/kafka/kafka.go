// Package kafka forwards telemetry frames and lifecycle events to a Kafka
// topic for archival. Publishing never blocks the control loop: messages
// are queued and written by a background goroutine, and dropped when the
// queue is full.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jhyland87/Cryocooler-Controller/internal/telemetry"
	"github.com/jhyland87/Cryocooler-Controller/pkg/logger"
)

// Message type header values.
const (
	TypeFrame = "frame"
	TypeEvent = "event"
)

const writeTimeout = 5 * time.Second

var (
	// ErrQueueFull is returned when a message is dropped because the
	// writer is behind.
	ErrQueueFull = errors.New("kafka queue full")
	// ErrClosed is returned by publishes after Close.
	ErrClosed = errors.New("kafka sink closed")
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter returns a synchronous writer for topic on brokers.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// Event is a lifecycle or state transition record.
type Event struct {
	Timestamp string `json:"timestamp"`
	RunID     string `json:"run_id,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// Sink queues messages for a MessageWriter.
type Sink struct {
	w     MessageWriter
	log   logger.Logger
	queue chan kafka.Message
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	failed  atomic.Int64
}

// NewSink starts a sink with room for queueSize pending messages.
func NewSink(w MessageWriter, queueSize int) *Sink {
	if queueSize < 1 {
		queueSize = 1
	}
	s := &Sink{
		w:     w,
		log:   logger.Log.With("component", "kafka"),
		queue: make(chan kafka.Message, queueSize),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) run() {
	defer close(s.done)
	for msg := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := s.w.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			if s.failed.Add(1) == 1 {
				s.log.Warn("write failed", "error", err)
			}
			continue
		}
		if n := s.failed.Swap(0); n > 1 {
			s.log.Info("writes recovered", "failed", n)
		}
	}
}

// PublishFrame queues a frame keyed by its run ID.
func (s *Sink) PublishFrame(f telemetry.Frame) error {
	value, err := telemetry.FormatJSON(f)
	if err != nil {
		return fmt.Errorf("format frame: %w", err)
	}
	return s.enqueue(kafka.Message{
		Key:     []byte(f.RunID),
		Value:   value,
		Time:    f.Time,
		Headers: []kafka.Header{{Key: "type", Value: []byte(TypeFrame)}},
	})
}

// PublishEvent queues a lifecycle event keyed by run ID.
func (s *Sink) PublishEvent(ts time.Time, runID, event, reason string) error {
	value, err := json.Marshal(Event{
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		RunID:     runID,
		Event:     event,
		Reason:    reason,
	})
	if err != nil {
		return fmt.Errorf("format event: %w", err)
	}
	return s.enqueue(kafka.Message{
		Key:     []byte(runID),
		Value:   value,
		Time:    ts,
		Headers: []kafka.Header{{Key: "type", Value: []byte(TypeEvent)}},
	})
}

func (s *Sink) enqueue(msg kafka.Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.queue <- msg:
		return nil
	default:
		if s.dropped.Add(1) == 1 {
			s.log.Warn("queue full, dropping messages")
		}
		return ErrQueueFull
	}
}

// Dropped returns the number of messages dropped because the queue was full.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Close flushes queued messages and closes the writer.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	if err := s.w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
