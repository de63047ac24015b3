package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/jhyland87/Cryocooler-Controller/internal/command"
	"github.com/jhyland87/Cryocooler-Controller/internal/telemetry"
	"github.com/jhyland87/Cryocooler-Controller/pkg/logger"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures a RealClient.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	BufferSize int // system events held while offline

	// Commands, if set, is subscribed to Topics.Command.
	Commands CommandHandler
	// Readings, if set, is fed from Topics.Sensor.
	Readings *ReadingSubscriber
}

// RealClient publishes to an actual MQTT broker.
type RealClient struct {
	client   paho.Client
	topics   Topics
	commands *commandQueue
	readings *ReadingSubscriber
	log      logger.Logger

	mu            sync.Mutex
	buf           *ringBuffer
	connectedOnce bool
}

// NewRealClient connects to the broker. If the broker is not reachable
// within the connect timeout the client keeps retrying in the background
// and buffers system events until it succeeds.
func NewRealClient(opts Options) (*RealClient, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("broker is required")
	}

	c := &RealClient{
		topics:   opts.Topics,
		readings: opts.Readings,
		log:      logger.Log.With("component", "mqtt", "broker", opts.Broker),
		buf:      newRingBuffer(opts.BufferSize),
	}
	if opts.Commands != nil {
		c.commands = newCommandQueue(opts.Commands, c.PublishReply, commandQueueSize, c.log)
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventShutdown,
		Reason:    ReasonDisconnect,
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetBinaryWill(opts.Topics.System, will, 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(po)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		c.log.Warn("broker not reachable yet, retrying in background")
		return c, nil
	}
	if err := token.Error(); err != nil {
		if c.commands != nil {
			c.commands.close()
		}
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

func (c *RealClient) onConnect(client paho.Client) {
	c.mu.Lock()
	reconnect := c.connectedOnce
	c.connectedOnce = true
	c.mu.Unlock()

	c.log.Info("connected", "reconnect", reconnect)

	if c.commands != nil {
		c.subscribe(client, c.topics.Command, c.onCommand)
	}
	if c.readings != nil {
		c.subscribe(client, c.topics.Sensor, c.onReading)
	}

	if reconnect {
		// Replaces the retained will.
		if err := c.PublishSystem(SystemEvent{
			Timestamp: time.Now(),
			Event:     EventReconnected,
			Retained:  true,
		}); err != nil {
			c.log.Warn("publish reconnect event", "error", err)
		}
	}
	c.replay()
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection lost", "error", err)
}

func (c *RealClient) subscribe(client paho.Client, topic string, h paho.MessageHandler) {
	token := client.Subscribe(topic, 1, h)
	if !token.WaitTimeout(publishTimeout) {
		c.log.Warn("subscribe timeout", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		c.log.Warn("subscribe failed", "topic", topic, "error", err)
	}
}

func (c *RealClient) onCommand(_ paho.Client, msg paho.Message) {
	c.commands.submit(msg.Payload())
}

func (c *RealClient) onReading(_ paho.Client, msg paho.Message) {
	if err := c.readings.HandlePayload(msg.Payload()); err != nil {
		c.log.Warn("discarding sensor message", "error", err)
	}
}

// replay publishes events buffered while offline, oldest first. Anything
// that fails goes back in the buffer for the next reconnect.
func (c *RealClient) replay() {
	c.mu.Lock()
	msgs := c.buf.drainAll()
	c.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	c.log.Info("replaying buffered events", "count", len(msgs))

	for i, m := range msgs {
		if err := c.publish(m.topic, m.qos, m.retained, m.payload); err != nil {
			c.log.Warn("replay interrupted", "error", err, "remaining", len(msgs)-i)
			for _, rest := range msgs[i:] {
				c.enqueue(rest)
			}
			return
		}
	}
}

func (c *RealClient) enqueue(m bufferedMsg) {
	c.mu.Lock()
	first := c.buf.push(m)
	c.mu.Unlock()
	if first {
		c.log.Warn("offline buffer full, dropping oldest events")
	}
}

func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishTelemetry sends a frame at QoS 0. Frames raised while offline
// are dropped.
func (c *RealClient) PublishTelemetry(frame telemetry.Frame) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	payload, err := telemetry.FormatJSON(frame)
	if err != nil {
		return fmt.Errorf("format telemetry: %w", err)
	}
	return c.publish(c.topics.Telemetry, 0, false, payload)
}

// PublishSystem sends a lifecycle event at QoS 1, buffering it if the
// broker is unreachable.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	m := bufferedMsg{topic: c.topics.System, payload: payload, qos: 1, retained: event.Retained}
	if !c.IsConnected() {
		c.enqueue(m)
		return nil
	}
	if err := c.publish(m.topic, m.qos, m.retained, m.payload); err != nil {
		c.enqueue(m)
		return fmt.Errorf("system event buffered: %w", err)
	}
	return nil
}

// PublishReply sends a command reply at QoS 1.
func (c *RealClient) PublishReply(reply command.Reply) error {
	payload, err := FormatReply(reply)
	if err != nil {
		return fmt.Errorf("format reply: %w", err)
	}
	return c.publish(c.topics.Reply, 1, false, payload)
}

// Actuator returns a writer that publishes drive counts on the actuator topic.
func (c *RealClient) Actuator() *ActuatorPublisher {
	return NewActuatorPublisher(c.topics.Actuator, func(topic string, payload []byte) error {
		if !c.IsConnected() {
			return ErrNotConnected
		}
		return c.publish(topic, 1, false, payload)
	})
}

// IsConnected reports whether the broker connection is currently open.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Buffered returns the number of system events waiting for reconnect.
func (c *RealClient) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.len()
}

// Close stops command handling and disconnects from the broker.
func (c *RealClient) Close() error {
	if c.commands != nil {
		c.commands.close()
	}
	c.client.Disconnect(1000) // 1 second quiesce
	return nil
}
