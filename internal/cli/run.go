package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhyland87/Cryocooler-Controller/internal/command"
	"github.com/jhyland87/Cryocooler-Controller/internal/config"
	"github.com/jhyland87/Cryocooler-Controller/internal/controller"
	"github.com/jhyland87/Cryocooler-Controller/internal/gpio"
	"github.com/jhyland87/Cryocooler-Controller/internal/journal"
	"github.com/jhyland87/Cryocooler-Controller/internal/kafka"
	"github.com/jhyland87/Cryocooler-Controller/internal/metrics"
	"github.com/jhyland87/Cryocooler-Controller/internal/mqtt"
	"github.com/jhyland87/Cryocooler-Controller/internal/sensor"
	"github.com/jhyland87/Cryocooler-Controller/internal/status"
	"github.com/jhyland87/Cryocooler-Controller/internal/web"
	"github.com/jhyland87/Cryocooler-Controller/pkg/logger"
)

const (
	kafkaQueueSize  = 256
	shutdownTimeout = 5 * time.Second
	// readings older than this many ticks are stale in --io mqtt mode
	staleTicks = 5
)

type runFlags struct {
	io        string
	noGPIO    bool
	httpAddr  string
	broker    string
	tick      time.Duration
	heartbeat time.Duration
	autoStart bool
	logLevel  string
}

func newRunCmd() *cobra.Command {
	return (&runFlags{}).command()
}

func (f *runFlags) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the controller daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.io, "io", config.IOSim, "sensor/actuator path: sim or mqtt")
	fs.BoolVar(&f.noGPIO, "no-gpio", false, "record relay and lamp outputs in memory instead of driving GPIO")
	fs.StringVar(&f.httpAddr, "http", "", `HTTP status address ("" keeps the config value, "off" disables)`)
	fs.StringVar(&f.broker, "broker", "", "MQTT broker URL (enables MQTT)")
	fs.DurationVar(&f.tick, "tick", 0, "control tick period")
	fs.DurationVar(&f.heartbeat, "heartbeat", 0, "heartbeat interval (0 disables)")
	fs.BoolVar(&f.autoStart, "auto-start", false, "start a run on the first reading")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

// resolve loads the config file and applies the flags the user set.
func (f *runFlags) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return cfg, err
	}

	fs := cmd.Flags()
	if fs.Changed("io") {
		cfg.Daemon.IO = f.io
	}
	if f.noGPIO {
		cfg.GPIO.Enabled = false
	}
	if fs.Changed("http") {
		cfg.Daemon.HTTPAddr = f.httpAddr
		if f.httpAddr == "off" {
			cfg.Daemon.HTTPAddr = ""
		}
	}
	if fs.Changed("broker") {
		cfg.MQTT.Broker = f.broker
		cfg.MQTT.Enabled = f.broker != ""
	}
	if fs.Changed("tick") {
		cfg.Daemon.Tick = f.tick
	}
	if fs.Changed("heartbeat") {
		cfg.Daemon.Heartbeat = f.heartbeat
	}
	if fs.Changed("auto-start") {
		cfg.Daemon.AutoStart = f.autoStart
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func run(cfg config.Config) error {
	logger.InitLogger(cfg.Log.Level, cfg.Log.Format)
	log := logger.Log.With("component", "cli")

	if err := checkEnvFile(cfg.Daemon.EnvFile); err != nil {
		log.Warn("env file", "error", err)
	}

	lc := cfg.Control.Logic()
	startTime := time.Now()
	wsBroker := ""
	if cfg.MQTT.Enabled {
		wsBroker = resolveWSBroker(cfg.MQTT.WSBroker, cfg.MQTT.Broker)
	}
	kafkaTopic := ""
	if cfg.Kafka.Enabled {
		kafkaTopic = cfg.Kafka.Topic
	}
	broker := ""
	if cfg.MQTT.Enabled {
		broker = cfg.MQTT.Broker
	}
	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)

	tracker := status.NewTracker(startTime, status.Config{
		TickMs:      cfg.Daemon.Tick.Milliseconds(),
		HeartbeatMs: cfg.Daemon.Heartbeat.Milliseconds(),
		IO:          cfg.Daemon.IO,
		Broker:      broker,
		HTTPAddr:    cfg.Daemon.HTTPAddr,
		WSBroker:    wsBroker,
		Topic:       topics.Telemetry,
		KafkaTopic:  kafkaTopic,
		SetpointK:   lc.SetpointK,
		ToleranceK:  lc.SetpointToleranceK,
		ThresholdK:  lc.CoarseFineThreshold,
		AmbientK:    lc.AmbientK,
		FullScale:   lc.FullScale,
	})
	m := metrics.New()

	// The MQTT client and web server may deliver commands before the loop
	// exists; they are rejected until it does.
	var ctrl atomic.Pointer[controller.Controller]
	handle := func(name command.Name) command.Reply {
		c := ctrl.Load()
		if c == nil {
			return command.Err(name, "controller not ready")
		}
		return c.Handle(name)
	}

	deps := controller.Deps{
		Config:         lc,
		Metrics:        m,
		Tracker:        tracker,
		Heartbeat:      cfg.Daemon.Heartbeat,
		LampFastPeriod: cfg.Control.LampFastPeriod,
		LampSlowPeriod: cfg.Control.LampSlowPeriod,
		AutoStart:      cfg.Daemon.AutoStart,
		MaxStaleTicks:  cfg.Daemon.MaxStaleTicks,
		Telemetry:      cfg.MQTT.Telemetry,
		Network: func() *status.NetworkInfo {
			return readNetworkInfo(cfg.Daemon.EnvFile)
		},
	}

	var readings *mqtt.ReadingSubscriber
	if cfg.Daemon.IO == config.IOMQTT {
		readings = mqtt.NewReadingSubscriber(staleTicks*cfg.Daemon.Tick, nil)
	}

	var client *mqtt.RealClient
	if cfg.MQTT.Enabled {
		var err error
		client, err = mqtt.NewRealClient(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Topics:     topics,
			BufferSize: cfg.MQTT.BufferSize,
			Commands:   mqtt.CommandHandler(handle),
			Readings:   readings,
		})
		if err != nil {
			return config.NewError(config.CodeBroker, "mqtt", "connect "+cfg.MQTT.Broker, err)
		}
		defer client.Close()
		deps.Publisher = client
		deps.MQTTStatus = client
	}

	var plant *sensor.Plant
	switch cfg.Daemon.IO {
	case config.IOMQTT:
		deps.Source = readings
		deps.Actuator = client.Actuator()
	default:
		pc := sensor.DefaultPlantConfig()
		pc.AmbientK = lc.AmbientK
		pc.SetpointK = lc.SetpointK
		pc.FullScale = lc.FullScale
		pc.StartK = cfg.Daemon.SimStartK
		plant = sensor.NewPlant(pc, nil)
		deps.Source = plant
		deps.Actuator = plant
	}

	outputs, err := openOutputs(cfg.GPIO)
	if err != nil {
		return err
	}
	defer func() {
		if err := outputs.Close(); err != nil {
			log.Error("gpio close", "error", err)
		}
	}()
	deps.Outputs = outputs
	if plant != nil {
		deps.Outputs = gpio.Hooked(outputs, gpio.Bypass, plant.SetBypass)
	}

	var sink *kafka.Sink
	if cfg.Kafka.Enabled {
		sink = kafka.NewSink(kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), kafkaQueueSize)
		defer sink.Close()
		deps.Sink = sink
	}

	var jr *journal.Journal
	if cfg.Journal.Path != "" {
		jr, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return config.NewError(config.CodeJournal, "journal", "open "+cfg.Journal.Path, err)
		}
		defer jr.Close()
		deps.Journal = jr
	}

	c := controller.New(deps)
	ctrl.Store(c)

	if cfg.Daemon.HTTPAddr != "" {
		opts := web.Options{
			Commands:  web.CommandFunc(handle),
			Metrics:   m.Handler(),
			AccessLog: os.Stdout,
		}
		if jr != nil {
			opts.Journal = jr
		}
		srv := web.New(cfg.Daemon.HTTPAddr, tracker, opts)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Info("http status server listening", "addr", cfg.Daemon.HTTPAddr)
	}

	log.Info("starting",
		"io", cfg.Daemon.IO,
		"tick", cfg.Daemon.Tick,
		"broker", broker,
		"kafka", kafkaTopic,
		"journal", cfg.Journal.Path,
		"gpio", cfg.GPIO.Enabled)

	ticker := time.NewTicker(cfg.Daemon.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	err = c.Run(time.Now, ticker.C, sigCh)

	if client != nil {
		if n := client.Buffered(); n > 0 {
			log.Warn("system events not delivered before exit", "buffered", n)
		}
	}
	if sink != nil {
		if n := sink.Dropped(); n > 0 {
			log.Warn("kafka messages dropped", "dropped", n)
		}
	}
	return err
}

// openOutputs opens the GPIO lines, or an in-memory recorder when GPIO is
// disabled.
func openOutputs(g config.GPIO) (gpio.Outputs, error) {
	if !g.Enabled {
		return gpio.NewFakeOutputs(), nil
	}
	out, err := gpio.NewRealOutputs(g.Chip, gpio.Pins{
		Bypass:    g.Bypass,
		Alarm:     g.Alarm,
		FaultLamp: g.FaultLamp,
		ReadyLamp: g.ReadyLamp,
	})
	if err != nil {
		return nil, config.NewError(config.CodeHardware, "gpio", "open "+g.Chip, err)
	}
	return out, nil
}
