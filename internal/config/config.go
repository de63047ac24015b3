// Package config loads and validates the controller configuration.
//
// A YAML file is overlaid on Default(); fields absent from the file keep
// their defaults. Command-line flags are applied by the caller after Load.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jhyland87/Cryocooler-Controller/internal/logic"
)

// IO modes for the sensor and actuator path.
const (
	IOSim  = "sim"
	IOMQTT = "mqtt"
)

// Config is the root configuration.
type Config struct {
	Control Control `yaml:"control"`
	Daemon  Daemon  `yaml:"daemon"`
	MQTT    MQTT    `yaml:"mqtt"`
	Kafka   Kafka   `yaml:"kafka"`
	GPIO    GPIO    `yaml:"gpio"`
	Journal Journal `yaml:"journal"`
	Log     Log     `yaml:"log"`
}

// Control holds the sequencer tuning and lamp timing.
type Control struct {
	FullScale           uint16        `yaml:"full_scale"`
	AmbientK            float64       `yaml:"ambient_k"`
	SetpointK           float64       `yaml:"setpoint_k"`
	SetpointToleranceK  float64       `yaml:"setpoint_tolerance_k"`
	CoarseFineThreshold float64       `yaml:"coarse_fine_threshold_k"`
	MaxCoolingRate      float64       `yaml:"max_cooling_rate_k_per_min"`
	HoldOnFastCooling   bool          `yaml:"hold_on_fast_cooling"`
	MaxLineVoltage      float64       `yaml:"max_line_voltage"`
	BackoffStep         uint16        `yaml:"backoff_step"`
	BackoffMax          int           `yaml:"backoff_max"`
	InitDwell           time.Duration `yaml:"init_dwell"`
	SettleDuration      time.Duration `yaml:"settle_duration"`
	BaselineDuration    time.Duration `yaml:"baseline_duration"`
	LampTestOnInit      bool          `yaml:"lamp_test_on_init"`
	HistoryCapacity     int           `yaml:"history_capacity"`
	HistoryInterval     time.Duration `yaml:"history_interval"`
	StallDetection      bool          `yaml:"stall_detection"`
	StallWindow         time.Duration `yaml:"stall_window"`
	StallMinDropK       float64       `yaml:"stall_min_drop_k"`
	SpikePrimeReadings  int           `yaml:"spike_prime_readings"`
	SpikeAlpha          float64       `yaml:"spike_alpha"`
	SpikeThresholdA     float64       `yaml:"spike_threshold_a"`
	SpikeDebounce       time.Duration `yaml:"spike_debounce"`
	RampMaxStep         uint16        `yaml:"ramp_max_step"`
	LampFastPeriod      time.Duration `yaml:"lamp_fast_period"`
	LampSlowPeriod      time.Duration `yaml:"lamp_slow_period"`
}

// Daemon holds loop and surface settings.
type Daemon struct {
	Tick      time.Duration `yaml:"tick"`
	Heartbeat time.Duration `yaml:"heartbeat"` // 0 disables
	IO        string        `yaml:"io"`        // sim | mqtt
	HTTPAddr  string        `yaml:"http_addr"` // empty disables
	EnvFile   string        `yaml:"env_file"`  // network info for the status page
	AutoStart bool          `yaml:"auto_start"`
	SimStartK float64       `yaml:"sim_start_k"`

	// MaxStaleTicks consecutive failed sensor reads power the system off.
	// 0 disables.
	MaxStaleTicks int `yaml:"max_stale_ticks"`
}

// MQTT holds broker settings.
type MQTT struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	WSBroker    string `yaml:"ws_broker"` // "=broker" derives from Broker, "off" disables
	BufferSize  int    `yaml:"buffer_size"`
	Telemetry   bool   `yaml:"telemetry"` // per-tick frames at startup
}

// Kafka holds the optional telemetry sink settings.
type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// GPIO holds output line offsets on the chip.
type GPIO struct {
	Enabled   bool   `yaml:"enabled"`
	Chip      string `yaml:"chip"`
	Bypass    int    `yaml:"bypass"`
	Alarm     int    `yaml:"alarm"`
	FaultLamp int    `yaml:"fault_lamp"`
	ReadyLamp int    `yaml:"ready_lamp"`
}

// Journal holds the transition journal settings.
type Journal struct {
	Path string `yaml:"path"` // empty disables
}

// Log holds logger settings.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	lc := logic.DefaultConfig()
	return Config{
		Control: Control{
			FullScale:           lc.FullScale,
			AmbientK:            lc.AmbientK,
			SetpointK:           lc.SetpointK,
			SetpointToleranceK:  lc.SetpointToleranceK,
			CoarseFineThreshold: lc.CoarseFineThreshold,
			MaxCoolingRate:      lc.MaxCoolingRate,
			HoldOnFastCooling:   lc.HoldOnFastCooling,
			MaxLineVoltage:      lc.MaxLineVoltage,
			BackoffStep:         lc.BackoffStep,
			BackoffMax:          lc.BackoffMax,
			InitDwell:           lc.InitDwell,
			SettleDuration:      lc.SettleDuration,
			BaselineDuration:    lc.BaselineDuration,
			LampTestOnInit:      lc.LampTestOnInit,
			HistoryCapacity:     lc.HistoryCapacity,
			HistoryInterval:     lc.HistoryInterval,
			StallDetection:      lc.StallDetection,
			StallWindow:         lc.StallWindow,
			StallMinDropK:       lc.StallMinDropK,
			SpikePrimeReadings:  lc.SpikePrimeReadings,
			SpikeAlpha:          lc.SpikeAlpha,
			SpikeThresholdA:     lc.SpikeThresholdA,
			SpikeDebounce:       lc.SpikeDebounce,
			RampMaxStep:         lc.RampMaxStep,
			LampFastPeriod:      500 * time.Millisecond,
			LampSlowPeriod:      time.Second,
		},
		Daemon: Daemon{
			Tick:      time.Second,
			Heartbeat: 15 * time.Minute,
			IO:        IOSim,
			HTTPAddr:  ":8080",
			EnvFile:   "/run/pi-helper.env",
			SimStartK: 295,

			MaxStaleTicks: 10,
		},
		MQTT: MQTT{
			Broker:      "tcp://localhost:1883",
			ClientID:    "cryocooler",
			TopicPrefix: "cryocooler",
			WSBroker:    "=broker",
			BufferSize:  100,
			Telemetry:   true,
		},
		Kafka: Kafka{
			Brokers: []string{"localhost:9092"},
			Topic:   "cryocooler.telemetry",
		},
		GPIO: GPIO{
			Chip:      "gpiochip0",
			Bypass:    17,
			Alarm:     27,
			FaultLamp: 22,
			ReadyLamp: 23,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path and overlays it on Default. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, NewError(CodeRead, "load", "read "+path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, NewError(CodeParse, "load", "parse "+path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Validate checks ranges and cross-field constraints. All problems are
// reported together.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	k := c.Control
	if k.FullScale == 0 {
		bad("control.full_scale must be > 0")
	}
	for name, v := range map[string]float64{
		"ambient_k":               k.AmbientK,
		"setpoint_k":              k.SetpointK,
		"setpoint_tolerance_k":    k.SetpointToleranceK,
		"coarse_fine_threshold_k": k.CoarseFineThreshold,
		"max_line_voltage":        k.MaxLineVoltage,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			bad("control.%s must be finite", name)
		}
	}
	if k.SetpointToleranceK <= 0 {
		bad("control.setpoint_tolerance_k must be > 0")
	}
	if !(k.SetpointK+k.SetpointToleranceK < k.CoarseFineThreshold && k.CoarseFineThreshold < k.AmbientK) {
		bad("control: need setpoint+tolerance < coarse_fine_threshold < ambient (got %.2f+%.2f, %.2f, %.2f)",
			k.SetpointK, k.SetpointToleranceK, k.CoarseFineThreshold, k.AmbientK)
	}
	if k.MaxLineVoltage <= 0 {
		bad("control.max_line_voltage must be > 0")
	}
	if k.BackoffMax < 1 {
		bad("control.backoff_max must be >= 1")
	}
	if k.HistoryCapacity < 2 {
		bad("control.history_capacity must be >= 2")
	}
	if k.SpikeAlpha <= 0 || k.SpikeAlpha > 1 {
		bad("control.spike_alpha must be in (0, 1]")
	}
	if k.SpikePrimeReadings < 0 {
		bad("control.spike_prime_readings must be >= 0")
	}
	for name, d := range map[string]time.Duration{
		"settle_duration":   k.SettleDuration,
		"baseline_duration": k.BaselineDuration,
		"history_interval":  k.HistoryInterval,
		"stall_window":      k.StallWindow,
		"lamp_fast_period":  k.LampFastPeriod,
		"lamp_slow_period":  k.LampSlowPeriod,
	} {
		if d <= 0 {
			bad("control.%s must be > 0", name)
		}
	}
	if k.InitDwell < 0 || k.SpikeDebounce < 0 {
		bad("control: init_dwell and spike_debounce must be >= 0")
	}
	if k.StallDetection && time.Duration(k.HistoryCapacity-1)*k.HistoryInterval < k.StallWindow {
		bad("control: history (%d x %v) cannot cover stall_window %v",
			k.HistoryCapacity, k.HistoryInterval, k.StallWindow)
	}

	if c.Daemon.Tick <= 0 {
		bad("daemon.tick must be > 0")
	}
	if c.Daemon.Heartbeat < 0 {
		bad("daemon.heartbeat must be >= 0")
	}
	if c.Daemon.MaxStaleTicks < 0 {
		bad("daemon.max_stale_ticks must be >= 0")
	}
	switch c.Daemon.IO {
	case IOSim:
	case IOMQTT:
		if !c.MQTT.Enabled {
			bad("daemon.io=mqtt requires mqtt.enabled")
		}
	default:
		bad("daemon.io must be %q or %q, got %q", IOSim, IOMQTT, c.Daemon.IO)
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			bad("mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.BufferSize < 1 {
			bad("mqtt.buffer_size must be >= 1")
		}
		if strings.Trim(c.MQTT.TopicPrefix, "/") == "" {
			bad("mqtt.topic_prefix is required")
		}
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		bad("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	if c.GPIO.Enabled {
		pins := map[int]string{}
		for name, pin := range map[string]int{
			"bypass": c.GPIO.Bypass, "alarm": c.GPIO.Alarm,
			"fault_lamp": c.GPIO.FaultLamp, "ready_lamp": c.GPIO.ReadyLamp,
		} {
			if pin < 0 {
				bad("gpio.%s must be >= 0", name)
			}
			if other, dup := pins[pin]; dup {
				bad("gpio.%s and gpio.%s share line %d", name, other, pin)
			}
			pins[pin] = name
		}
	}

	if len(errs) > 0 {
		return NewError(CodeInvalid, "validate", "invalid configuration", errors.Join(errs...))
	}
	return nil
}

// Logic converts the control section to the sequencer's tuning.
func (k Control) Logic() logic.Config {
	return logic.Config{
		FullScale:           k.FullScale,
		AmbientK:            k.AmbientK,
		SetpointK:           k.SetpointK,
		SetpointToleranceK:  k.SetpointToleranceK,
		CoarseFineThreshold: k.CoarseFineThreshold,
		MaxCoolingRate:      k.MaxCoolingRate,
		HoldOnFastCooling:   k.HoldOnFastCooling,
		MaxLineVoltage:      k.MaxLineVoltage,
		BackoffStep:         k.BackoffStep,
		BackoffMax:          k.BackoffMax,
		InitDwell:           k.InitDwell,
		SettleDuration:      k.SettleDuration,
		BaselineDuration:    k.BaselineDuration,
		LampTestOnInit:      k.LampTestOnInit,
		HistoryCapacity:     k.HistoryCapacity,
		HistoryInterval:     k.HistoryInterval,
		StallDetection:      k.StallDetection,
		StallWindow:         k.StallWindow,
		StallMinDropK:       k.StallMinDropK,
		SpikePrimeReadings:  k.SpikePrimeReadings,
		SpikeAlpha:          k.SpikeAlpha,
		SpikeThresholdA:     k.SpikeThresholdA,
		SpikeDebounce:       k.SpikeDebounce,
		RampMaxStep:         k.RampMaxStep,
	}
}

// Topic joins the MQTT topic prefix and a leaf name.
func (m MQTT) Topic(leaf string) string {
	return strings.TrimRight(m.TopicPrefix, "/") + "/" + leaf
}
