// Package controller runs the cooldown control loop: it owns the sequencer
// and its estimators, reads the sensor source once per tick, drives the
// actuator, relays and lamps, and fans each tick's frame out to the status
// tracker, metrics, MQTT, Kafka and the journal.
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jhyland87/Cryocooler-Controller/internal/actuator"
	"github.com/jhyland87/Cryocooler-Controller/internal/command"
	"github.com/jhyland87/Cryocooler-Controller/internal/gpio"
	"github.com/jhyland87/Cryocooler-Controller/internal/journal"
	"github.com/jhyland87/Cryocooler-Controller/internal/lamp"
	"github.com/jhyland87/Cryocooler-Controller/internal/logic"
	"github.com/jhyland87/Cryocooler-Controller/internal/metrics"
	"github.com/jhyland87/Cryocooler-Controller/internal/mqtt"
	"github.com/jhyland87/Cryocooler-Controller/internal/sensor"
	"github.com/jhyland87/Cryocooler-Controller/internal/status"
	"github.com/jhyland87/Cryocooler-Controller/internal/telemetry"
	"github.com/jhyland87/Cryocooler-Controller/pkg/logger"
)

const journalTimeout = 2 * time.Second

// ErrStopped is returned in replies to commands sent after the loop exited.
var ErrStopped = errors.New("controller stopped")

// EventSink receives frames and lifecycle events for archival.
type EventSink interface {
	PublishFrame(f telemetry.Frame) error
	PublishEvent(ts time.Time, runID, event, reason string) error
}

// Recorder is the write side of the run journal.
type Recorder interface {
	StartRun(ctx context.Context, id string, at time.Time, tempK float64) error
	EndRun(ctx context.Context, id string, at time.Time, tempK float64, state, reason string) error
	RecordTransition(ctx context.Context, t journal.Transition) error
}

// Deps wires the controller to its collaborators. Source, Actuator and
// Outputs are required; the rest may be nil.
type Deps struct {
	Config   logic.Config
	Source   sensor.Source
	Actuator actuator.Writer
	Outputs  gpio.Outputs

	Publisher  mqtt.Publisher
	MQTTStatus mqtt.ConnectionStatus
	Sink       EventSink
	Journal    Recorder
	Metrics    *metrics.Metrics
	Tracker    *status.Tracker

	Heartbeat      time.Duration // 0 disables
	LampFastPeriod time.Duration
	LampSlowPeriod time.Duration
	AutoStart      bool // start a run on the first good reading
	Telemetry      bool // publish per-tick frames

	// MaxStaleTicks consecutive failed reads power the system off so the
	// actuator is never driven from a frozen reading. 0 disables.
	MaxStaleTicks int

	// Network is refreshed on every heartbeat.
	Network func() *status.NetworkInfo
	// NewRunID defaults to a random UUID.
	NewRunID func() string
}

type request struct {
	name  command.Name
	reply chan command.Reply
}

// Controller owns every piece of mutable control state. Everything except
// Handle runs on the goroutine that calls Run.
type Controller struct {
	d   Deps
	log logger.Logger

	seq    *logic.Sequencer
	hist   *logic.History
	spike  *logic.SpikeDetector
	driver *actuator.Driver
	panel  *lamp.Panel

	requests chan request
	done     chan struct{}

	telemetry    bool
	autoStart    bool
	runID        string
	running      bool
	state        logic.State
	reading      sensor.Reading
	haveReading  bool
	failedReads  int
	lastPush     time.Time
	lastBeat     time.Time
	outputs      map[gpio.Line]bool
	outputFailed bool
}

// New creates a controller. Nothing happens until Run is called.
func New(d Deps) *Controller {
	if d.NewRunID == nil {
		d.NewRunID = uuid.NewString
	}
	if d.LampFastPeriod <= 0 {
		d.LampFastPeriod = 500 * time.Millisecond
	}
	if d.LampSlowPeriod <= 0 {
		d.LampSlowPeriod = time.Second
	}
	return &Controller{
		d:         d,
		log:       logger.Log.With("component", "controller"),
		hist:      logic.NewHistory(d.Config),
		spike:     logic.NewSpikeDetector(d.Config),
		driver:    actuator.NewDriver(d.Actuator, d.Config.RampMaxStep),
		panel:     lamp.NewPanel(d.LampFastPeriod, d.LampSlowPeriod),
		requests:  make(chan request),
		done:      make(chan struct{}),
		telemetry: d.Telemetry,
		autoStart: d.AutoStart,
		outputs:   make(map[gpio.Line]bool),
	}
}

// Handle queues a command for the loop and waits for its reply. It is safe
// to call from any goroutine. Commands sent after Run returns are rejected.
func (c *Controller) Handle(name command.Name) command.Reply {
	req := request{name: name, reply: make(chan command.Reply, 1)}
	select {
	case c.requests <- req:
		return <-req.reply
	case <-c.done:
		return command.Err(name, "%v", ErrStopped)
	}
}

// Run executes the control loop until a signal arrives. tick drives the
// control ticks and now supplies the time for each tick, command and
// lifecycle event.
func (c *Controller) Run(now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	defer close(c.done)

	t0 := now()
	c.seq = logic.NewSequencer(c.d.Config, t0)
	c.state = c.seq.State()
	c.lastBeat = t0
	c.publishStartup(t0)

	c.log.Info("started",
		"state", c.state,
		"heartbeat", c.d.Heartbeat,
		"auto_start", c.autoStart,
		"telemetry", c.telemetry)

	for {
		select {
		case s := <-sig:
			c.shutdown(now(), signalName(s))
			return nil

		case req := <-c.requests:
			req.reply <- c.apply(req.name, now())

		case <-tick:
			c.tick(now())
		}
	}
}

func startable(s logic.State) bool {
	return s == logic.StateOff || s == logic.StateIdle
}

// apply executes one operator command against the sequencer. Replies use
// the console wording.
func (c *Controller) apply(name command.Name, t time.Time) command.Reply {
	reply := c.execute(name, t)
	c.observe(t, c.reading)

	if reply.OK {
		c.log.Info("command", "command", name, "reply", reply.Message)
	} else {
		c.log.Warn("command rejected", "command", name, "reply", reply.Message)
	}
	if c.d.Metrics != nil {
		c.d.Metrics.Command(string(name), reply.OK)
	}
	return reply
}

func (c *Controller) execute(name command.Name, t time.Time) command.Reply {
	switch name {
	case command.Start:
		if c.seq.Running() {
			return command.Err(name, "Already running")
		}
		if !startable(c.seq.State()) {
			return command.Err(name, "Cannot start: not in Idle or Off state")
		}
		if !c.haveReading || c.sensorLost() {
			return command.Err(name, "Cannot start: no temperature reading")
		}
		c.beginRun(t, c.reading.TemperatureK)
		c.seq.Start(t, c.reading.TemperatureK)
		return command.OK(name, "Process started")

	case command.Stop:
		if !c.seq.Running() && c.seq.State() != logic.StateFault {
			return command.Err(name, "Not currently running")
		}
		c.seq.Stop(t)
		return command.OK(name, "Process stopped")

	case command.Off:
		if c.seq.State() == logic.StateOff {
			return command.Err(name, "System is already off")
		}
		c.seq.PowerOff(t)
		return command.OK(name, "System turned off")

	case command.Status:
		running := "no"
		if c.seq.Running() {
			running = "yes"
		}
		st := c.seq.State()
		return command.OK(name, "%s (%d) | running: %s", st, int8(st), running)

	case command.TelemetryOn, command.TelemetryOff:
		c.telemetry = name == command.TelemetryOn
		if c.d.Tracker != nil {
			c.d.Tracker.SetTelemetryEnabled(c.telemetry)
		}
		if c.telemetry {
			return command.OK(name, "Telemetry enabled")
		}
		return command.OK(name, "Telemetry disabled")

	case command.Help:
		return command.OK(name, "%s", command.HelpText())
	}
	return command.Err(name, "unknown command %q", string(name))
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func (c *Controller) tick(t time.Time) {
	r, ok := c.read(t)
	if !ok {
		return
	}

	if c.autoStart && startable(c.seq.State()) {
		c.autoStart = false
		reply := c.apply(command.Start, t)
		c.log.Info("auto start", "reply", reply.String())
	}

	pushed := false
	if c.hist.Len() == 0 || t.Sub(c.lastPush) >= c.d.Config.HistoryInterval {
		c.hist.Push(t, r.TemperatureK)
		c.lastPush = t
		pushed = true
	}

	if c.spike.Sample(t, r.CurrentA) {
		c.log.Warn("overstroke detected",
			"current_a", r.CurrentA,
			"baseline_a", c.spike.Baseline(),
			"running", c.seq.Running())
		if c.d.Metrics != nil {
			c.d.Metrics.Overstroke()
		}
	}

	overstroke := c.spike.Pending()
	out := c.seq.Tick(logic.TickInput{
		TemperatureK: r.TemperatureK,
		CoolingRate:  c.hist.CoolingRate(),
		LineVoltage:  r.LineVoltage,
		Stalled:      c.hist.Stalled(),
		Overstroke:   overstroke,
		Now:          t,
	})
	// The sequencer has seen the flag; outside a run it is discarded.
	c.spike.Clear()

	commanded, wrote, err := c.driver.Apply(out.Target)
	if err != nil {
		c.log.Warn("actuator write failed", "error", err)
	}
	if wrote && c.d.Metrics != nil {
		c.d.Metrics.ActuatorWrite()
	}

	lamps := c.panel.Update(out.FaultLamp, out.ReadyLamp, t)
	c.setOutputs(out.BypassRelay, out.AlarmRelay, lamps.FaultLit, lamps.ReadyLit)

	c.observe(t, r)

	frame := c.frame(t, r, out, commanded, lamps)
	frame.Overstroke = overstroke
	c.log.Debug("tick", "frame", telemetry.FormatCSV(frame))

	if c.d.Tracker != nil {
		c.d.Tracker.Update(frame)
		if pushed {
			c.d.Tracker.SetHistory(c.hist.Samples(), c.d.Config.HistoryInterval)
		}
		if c.d.MQTTStatus != nil {
			c.d.Tracker.SetMQTTConnected(c.d.MQTTStatus.IsConnected())
		}
	}
	if c.d.Metrics != nil {
		c.d.Metrics.Observe(frame)
	}
	if c.telemetry {
		c.publishFrame(frame)
	}

	c.heartbeat(t)
}

// read returns this tick's reading. On a source error the last good reading
// is reused; with none yet the tick is skipped. Once MaxStaleTicks reads in
// a row have failed the system is powered off.
func (c *Controller) read(t time.Time) (sensor.Reading, bool) {
	r, err := c.d.Source.Read()
	if err != nil {
		if c.failedReads == 0 {
			c.log.Warn("sensor read failed, reusing last reading", "error", err, "have_reading", c.haveReading)
		}
		c.failedReads++
		if c.d.Metrics != nil {
			c.d.Metrics.ReadError()
		}
		if c.d.MaxStaleTicks > 0 && c.failedReads == c.d.MaxStaleTicks && c.seq.State() != logic.StateOff {
			c.log.Error("sensor lost, powering off",
				"failed_reads", c.failedReads,
				"state", c.seq.State(),
				"error", err,
				"run_id", c.runID)
			c.seq.PowerOff(t)
			c.observe(t, c.reading)
		}
		if !c.haveReading {
			return sensor.Reading{}, false
		}
		r = c.reading
		r.Time = t
		return r, true
	}
	if c.failedReads > 0 {
		c.log.Info("sensor read recovered", "failed_reads", c.failedReads)
		c.failedReads = 0
	}
	c.reading = r
	c.haveReading = true
	return r, true
}

func (c *Controller) sensorLost() bool {
	return c.d.MaxStaleTicks > 0 && c.failedReads >= c.d.MaxStaleTicks
}

// setOutputs drives the relays and lamps, writing only lines that changed.
func (c *Controller) setOutputs(bypass, alarm, faultLit, readyLit bool) {
	want := map[gpio.Line]bool{
		gpio.Bypass:    bypass,
		gpio.Alarm:     alarm,
		gpio.FaultLamp: faultLit,
		gpio.ReadyLamp: readyLit,
	}
	for _, l := range gpio.Lines {
		v := want[l]
		if cur, ok := c.outputs[l]; ok && cur == v {
			continue
		}
		if err := c.d.Outputs.Set(l, v); err != nil {
			if !c.outputFailed {
				c.log.Error("output write failed", "line", l, "error", err)
			}
			c.outputFailed = true
			delete(c.outputs, l)
			continue
		}
		c.outputs[l] = v
	}
	if c.outputFailed && len(c.outputs) == len(gpio.Lines) {
		c.log.Info("output writes recovered")
		c.outputFailed = false
	}
}

// observe records any state change or run boundary since the last call.
// Transitions can come from a tick or from a command.
func (c *Controller) observe(t time.Time, r sensor.Reading) {
	state := c.seq.State()
	if state != c.state {
		c.transition(t, c.state, state, r.TemperatureK)
		c.state = state
	}

	running := c.seq.Running()
	if c.running && !running {
		c.endRun(t, r.TemperatureK, state)
	}
	c.running = running
}

func (c *Controller) transition(t time.Time, from, to logic.State, tempK float64) {
	reason := ""
	if to == logic.StateFault {
		reason = c.seq.FaultReason().String()
		c.log.Error("fault",
			"reason", reason,
			"from", from,
			"temperature_k", tempK,
			"run_id", c.runID)
	} else {
		c.log.Info("transition",
			"from", from,
			"to", to,
			"temperature_k", tempK,
			"run_id", c.runID)
	}

	if c.d.Metrics != nil {
		c.d.Metrics.Transition(to.String())
		if to == logic.StateFault {
			c.d.Metrics.Fault(reason)
		}
	}

	if c.d.Journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		err := c.d.Journal.RecordTransition(ctx, journal.Transition{
			RunID:        c.runID,
			At:           t,
			From:         from.String(),
			To:           to.String(),
			TemperatureK: tempK,
			Reason:       reason,
		})
		cancel()
		if err != nil {
			c.log.Warn("journal transition", "error", err)
		}
	}

	event := mqtt.EventTransition
	detail := fmt.Sprintf("%s -> %s", from, to)
	if to == logic.StateFault {
		event = mqtt.EventFault
		detail = reason
	}
	c.publishEvent(t, event, detail, false)
}

func (c *Controller) beginRun(t time.Time, tempK float64) {
	c.runID = c.d.NewRunID()
	c.hist.Reset()
	c.lastPush = time.Time{}
	c.log.Info("run started", "run_id", c.runID, "temperature_k", tempK)

	if c.d.Journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		err := c.d.Journal.StartRun(ctx, c.runID, t, tempK)
		cancel()
		if err != nil {
			c.log.Warn("journal start run", "error", err)
		}
	}
}

func (c *Controller) endRun(t time.Time, tempK float64, state logic.State) {
	reason := ""
	if state == logic.StateFault {
		reason = c.seq.FaultReason().String()
	}
	c.log.Info("run ended",
		"run_id", c.runID,
		"state", state,
		"duration", c.seq.RunDuration(t),
		"backoffs", c.seq.BackoffCount())

	if c.d.Journal != nil && c.runID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		err := c.d.Journal.EndRun(ctx, c.runID, t, tempK, state.String(), reason)
		cancel()
		if err != nil {
			c.log.Warn("journal end run", "error", err)
		}
	}
}

func (c *Controller) frame(t time.Time, r sensor.Reading, out logic.Output, commanded uint16, lamps lamp.PanelState) telemetry.Frame {
	cfg := c.d.Config
	f := telemetry.Frame{
		Time:            t,
		RunID:           c.runID,
		StateCode:       int8(out.State),
		State:           out.State.String(),
		Status:          out.StatusText,
		Running:         c.seq.Running(),
		TemperatureK:    r.TemperatureK,
		TemperatureC:    sensor.KelvinToCelsius(r.TemperatureK),
		CooldownPercent: logic.CooldownPercent(r.TemperatureK, cfg),
		CoolingRate:     c.hist.CoolingRate(),
		Stalled:         c.hist.Stalled(),
		LineVoltage:     r.LineVoltage,
		CurrentA:        r.CurrentA,
		BaselineA:       c.spike.Baseline(),
		Target:          out.Target,
		Commanded:       commanded,
		BackoffCount:    out.BackoffCount,
		Bypass:          out.BypassRelay,
		Alarm:           out.AlarmRelay,
		FaultLit:        lamps.FaultLit,
		ReadyLit:        lamps.ReadyLit,
		Colour:          lamps.Colour.Hex(),
		TimeInState:     c.seq.TimeInState(t),
		RunDuration:     c.seq.RunDuration(t),
		SettleElapsed:   c.seq.SettleElapsed(t),
	}
	if out.State == logic.StateFault {
		f.FaultReason = c.seq.FaultReason().String()
	}
	return f
}

func (c *Controller) publishFrame(f telemetry.Frame) {
	if c.d.Publisher != nil {
		if err := c.d.Publisher.PublishTelemetry(f); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
			c.log.Warn("telemetry publish error", "error", err)
		}
	}
	if c.d.Sink != nil {
		if err := c.d.Sink.PublishFrame(f); err != nil {
			c.log.Debug("kafka frame", "error", err)
		}
	}
}

// publishEvent sends a lifecycle event. With a tracker the MQTT payload is
// a full status snapshot.
func (c *Controller) publishEvent(t time.Time, event, reason string, retained bool) {
	if c.d.Publisher != nil {
		se := mqtt.SystemEvent{
			Timestamp: t,
			Event:     event,
			Reason:    reason,
			Retained:  retained,
		}
		if c.d.Tracker != nil {
			if c.d.MQTTStatus != nil {
				c.d.Tracker.SetMQTTConnected(c.d.MQTTStatus.IsConnected())
			}
			se.RawPayload = status.FormatStatusEvent(c.d.Tracker.Snapshot(), event, reason)
		}
		if err := c.d.Publisher.PublishSystem(se); err != nil {
			c.log.Warn("system event publish error", "event", event, "error", err)
		}
	}
	if c.d.Sink != nil {
		if err := c.d.Sink.PublishEvent(t, c.runID, event, reason); err != nil {
			c.log.Debug("kafka event", "event", event, "error", err)
		}
	}
}

func (c *Controller) publishStartup(t time.Time) {
	if c.d.Tracker != nil {
		c.d.Tracker.SetTelemetryEnabled(c.telemetry)
		if c.d.Network != nil {
			if n := c.d.Network(); n != nil {
				c.d.Tracker.SetNetwork(n)
			}
		}
	}
	c.publishEvent(t, mqtt.EventStartup, "", true)
}

func (c *Controller) heartbeat(t time.Time) {
	if c.d.Heartbeat <= 0 || t.Sub(c.lastBeat) < c.d.Heartbeat {
		return
	}
	c.lastBeat = t

	c.log.Info("heartbeat",
		"state", c.seq.State(),
		"running", c.seq.Running(),
		"temperature_k", c.reading.TemperatureK,
		"run_id", c.runID)

	if c.d.Tracker != nil && c.d.Network != nil {
		if n := c.d.Network(); n != nil {
			c.d.Tracker.SetNetwork(n)
		}
	}
	c.publishEvent(t, mqtt.EventHeartbeat, "", false)
}

// shutdown powers the system off, drives every output to its safe level
// and announces the shutdown.
func (c *Controller) shutdown(t time.Time, reason string) {
	c.log.Info("shutting down", "reason", reason)

	c.seq.PowerOff(t)
	c.observe(t, c.reading)

	if _, _, err := c.driver.Apply(0); err != nil {
		c.log.Error("actuator zero on shutdown", "error", err)
	}
	for _, l := range gpio.Lines {
		if err := c.d.Outputs.Set(l, gpio.Safe(l)); err != nil {
			c.log.Error("safe output on shutdown", "line", l, "error", err)
		}
	}

	if c.d.Tracker != nil && c.haveReading {
		out := logic.Output{
			State:       c.seq.State(),
			StatusText:  c.seq.StatusText(),
			BypassRelay: true,
		}
		c.d.Tracker.Update(c.frame(t, c.reading, out, c.driver.Last(), lamp.PanelState{}))
	}
	c.publishEvent(t, mqtt.EventShutdown, reason, true)
}
