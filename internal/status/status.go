// Package status provides a thread-safe status tracker for the cryocooler
// daemon. The controller loop writes it once per tick; HTTP handlers and
// system events read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/jhyland87/Cryocooler-Controller/internal/logic"
	"github.com/jhyland87/Cryocooler-Controller/internal/telemetry"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/cli from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	HeartbeatMs int64
	IO          string
	Broker      string // empty when MQTT is disabled
	HTTPAddr    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
	Topic       string // telemetry topic the page subscribes to
	KafkaTopic  string // empty when Kafka is disabled

	SetpointK  float64
	ToleranceK float64
	ThresholdK float64
	AmbientK   float64
	FullScale  uint16
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type: safe to use after the lock is released.
type Snapshot struct {
	Frame            telemetry.Frame
	HasFrame         bool // false until the first tick
	TelemetryEnabled bool
	History          []logic.Sample
	HistoryInterval  time.Duration
	StartTime        time.Time
	Now              time.Time
	MQTTConnected    bool
	Network          *NetworkInfo
	Config           Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether the cold stage has reached normal operation.
func (s Snapshot) Ready() bool {
	return s.HasFrame && s.Frame.StateCode == int8(logic.StateOperating)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:        startTime,
			Config:           cfg,
			TelemetryEnabled: true,
		},
	}
}

// Update stores the latest tick's frame.
func (t *Tracker) Update(frame telemetry.Frame) {
	t.mu.Lock()
	t.snap.Frame = frame
	t.snap.HasFrame = true
	t.mu.Unlock()
}

// SetHistory replaces the retained temperature samples. samples is not
// retained; the tracker keeps its own copy.
func (t *Tracker) SetHistory(samples []logic.Sample, interval time.Duration) {
	cp := append([]logic.Sample(nil), samples...)
	t.mu.Lock()
	t.snap.History = cp
	t.snap.HistoryInterval = interval
	t.mu.Unlock()
}

// SetTelemetryEnabled records whether per-tick telemetry is being published.
func (t *Tracker) SetTelemetryEnabled(enabled bool) {
	t.mu.Lock()
	t.snap.TelemetryEnabled = enabled
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
