// Package metrics exposes controller state as Prometheus collectors on a
// private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhyland87/Cryocooler-Controller/internal/telemetry"
)

const namespace = "cryocooler"

// Metrics holds the controller's collectors.
type Metrics struct {
	registry *prometheus.Registry

	stateCode    prometheus.Gauge
	running      prometheus.Gauge
	temperature  prometheus.Gauge
	coolingRate  prometheus.Gauge
	lineVoltage  prometheus.Gauge
	current      prometheus.Gauge
	baseline     prometheus.Gauge
	target       prometheus.Gauge
	commanded    prometheus.Gauge
	backoffCount prometheus.Gauge
	cooldownPct  prometheus.Gauge

	transitions    *prometheus.CounterVec
	faults         *prometheus.CounterVec
	overstrokes    prometheus.Counter
	actuatorWrites prometheus.Counter
	readErrors     prometheus.Counter
	commands       *prometheus.CounterVec
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		stateCode:    gauge("state_code", "Sequencer state code (-1 Off .. 8 Fault)."),
		running:      gauge("running", "1 while a cooldown run is active."),
		temperature:  gauge("temperature_kelvin", "Cold-stage temperature."),
		coolingRate:  gauge("cooling_rate_kelvin_per_minute", "Cooling rate over the history window, positive when cooling."),
		lineVoltage:  gauge("line_voltage_volts", "RMS line voltage."),
		current:      gauge("actuator_current_amperes", "Actuator drive current."),
		baseline:     gauge("actuator_current_baseline_amperes", "EMA baseline of the actuator current."),
		target:       gauge("actuator_target_counts", "Actuator target before ramp limiting."),
		commanded:    gauge("actuator_commanded_counts", "Actuator value last commanded."),
		backoffCount: gauge("backoff_count", "Overstroke backoffs in the current run."),
		cooldownPct:  gauge("cooldown_percent", "Progress from ambient (0) to setpoint (100)."),

		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions by destination state.",
		}, []string{"to"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Fault entries by reason.",
		}, []string{"reason"}),
		overstrokes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overstrokes_total",
			Help:      "Back-EMF spikes reported by the spike detector.",
		}),
		actuatorWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_writes_total",
			Help:      "Writes issued to the actuator.",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_read_errors_total",
			Help:      "Ticks on which the sensor source failed.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Operator commands by name and outcome.",
		}, []string{"command", "result"}),
	}

	m.registry.MustRegister(
		m.stateCode, m.running, m.temperature, m.coolingRate, m.lineVoltage,
		m.current, m.baseline, m.target, m.commanded, m.backoffCount, m.cooldownPct,
		m.transitions, m.faults, m.overstrokes, m.actuatorWrites, m.readErrors, m.commands,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe sets the gauges from a tick's frame.
func (m *Metrics) Observe(f telemetry.Frame) {
	m.stateCode.Set(float64(f.StateCode))
	m.running.Set(b2f(f.Running))
	m.temperature.Set(f.TemperatureK)
	m.coolingRate.Set(f.CoolingRate)
	m.lineVoltage.Set(f.LineVoltage)
	m.current.Set(f.CurrentA)
	m.baseline.Set(f.BaselineA)
	m.target.Set(float64(f.Target))
	m.commanded.Set(float64(f.Commanded))
	m.backoffCount.Set(float64(f.BackoffCount))
	m.cooldownPct.Set(f.CooldownPercent)
}

// Transition counts entry into state to.
func (m *Metrics) Transition(to string) { m.transitions.WithLabelValues(to).Inc() }

// Fault counts a fault entry.
func (m *Metrics) Fault(reason string) { m.faults.WithLabelValues(reason).Inc() }

// Overstroke counts a detected spike.
func (m *Metrics) Overstroke() { m.overstrokes.Inc() }

// ActuatorWrite counts a write to the actuator.
func (m *Metrics) ActuatorWrite() { m.actuatorWrites.Inc() }

// ReadError counts a failed sensor read.
func (m *Metrics) ReadError() { m.readErrors.Inc() }

// Command counts an operator command.
func (m *Metrics) Command(name string, ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.commands.WithLabelValues(name, result).Inc()
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
