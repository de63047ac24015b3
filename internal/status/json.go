package status

import (
	"encoding/json"
	"time"

	"github.com/jhyland87/Cryocooler-Controller/internal/telemetry"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event            string                  `json:"event,omitempty"`
	Reason           string                  `json:"reason,omitempty"`
	State            string                  `json:"state"`
	StateCode        int8                    `json:"state_code"`
	StatusText       string                  `json:"status_text,omitempty"`
	Running          bool                    `json:"running"`
	Ready            bool                    `json:"ready"`
	TelemetryEnabled bool                    `json:"telemetry_enabled"`
	UptimeSeconds    int64                   `json:"uptime_seconds"`
	StartTime        string                  `json:"start_time"`
	Timestamp        string                  `json:"timestamp"`
	Cryocooler       *telemetry.FramePayload `json:"cryocooler,omitempty"`
	MQTT             MQTTStatus              `json:"mqtt"`
	Network          *NetworkJSON            `json:"network,omitempty"`
	Config           ConfigJSON              `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64   `json:"tick_ms"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	IO          string  `json:"io"`
	Broker      string  `json:"broker,omitempty"`
	HTTPAddr    string  `json:"http_addr"`
	WSBroker    string  `json:"ws_broker,omitempty"`
	KafkaTopic  string  `json:"kafka_topic,omitempty"`
	SetpointK   float64 `json:"setpoint_k"`
	ToleranceK  float64 `json:"setpoint_tolerance_k"`
	ThresholdK  float64 `json:"coarse_fine_threshold_k"`
	AmbientK    float64 `json:"ambient_k"`
	FullScale   uint16  `json:"full_scale"`
}

// HistoryJSON is the envelope for the retained temperature history.
type HistoryJSON struct {
	History HistoryInner `json:"history"`
}

// HistoryInner lists samples oldest first.
type HistoryInner struct {
	IntervalSeconds float64         `json:"interval_s"`
	CoolingRate     float64         `json:"cooling_rate_k_per_min"`
	Samples         []HistorySample `json:"samples"`
}

// HistorySample is one retained temperature reading.
type HistorySample struct {
	Timestamp    string  `json:"timestamp"`
	TemperatureK float64 `json:"temperature_k"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		State:            "UNKNOWN",
		Ready:            snap.Ready(),
		TelemetryEnabled: snap.TelemetryEnabled,
		UptimeSeconds:    int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:        snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:        snap.Now.UTC().Format(time.RFC3339),
		MQTT:             MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			IO:          snap.Config.IO,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			WSBroker:    snap.Config.WSBroker,
			KafkaTopic:  snap.Config.KafkaTopic,
			SetpointK:   snap.Config.SetpointK,
			ToleranceK:  snap.Config.ToleranceK,
			ThresholdK:  snap.Config.ThresholdK,
			AmbientK:    snap.Config.AmbientK,
			FullScale:   snap.Config.FullScale,
		},
	}

	if snap.HasFrame {
		f := snap.Frame
		p := f.ToPayload()
		inner.State = f.State
		inner.StateCode = f.StateCode
		inner.StatusText = f.Status
		inner.Running = f.Running
		inner.Cryocooler = &p
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatHistoryJSON returns the retained temperature history.
func FormatHistoryJSON(snap Snapshot) []byte {
	inner := HistoryInner{
		IntervalSeconds: snap.HistoryInterval.Seconds(),
		CoolingRate:     snap.Frame.CoolingRate,
		Samples:         make([]HistorySample, len(snap.History)),
	}
	for i, s := range snap.History {
		inner.Samples[i] = HistorySample{
			Timestamp:    s.Time.UTC().Format(time.RFC3339),
			TemperatureK: s.TemperatureK,
		}
	}
	data, _ := json.MarshalIndent(HistoryJSON{History: inner}, "", "  ")
	return data
}
