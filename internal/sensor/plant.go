package sensor

import (
	"math"
	"sync"
	"time"
)

// PlantConfig tunes the simulated cryocooler.
type PlantConfig struct {
	AmbientK  float64 // heat-leak sink
	SetpointK float64 // temperature the integrated loop holds in Normal
	StartK    float64
	FullScale uint16

	MaxLiftKPerMin float64       // cooling at full drive in Bypass
	LeakPerMin     float64       // fraction of (ambient - T) leaked back per minute
	NormalTau      time.Duration // time constant toward the setpoint in Normal

	IdleCurrentA float64
	FullCurrentA float64 // added at full drive
	LineVoltage  float64
}

// DefaultPlantConfig returns a plant that cools from near ambient to the
// setpoint in roughly half an hour under the default sequencer tuning.
func DefaultPlantConfig() PlantConfig {
	return PlantConfig{
		AmbientK:       298,
		SetpointK:      78,
		StartK:         295,
		FullScale:      4095,
		MaxLiftKPerMin: 30,
		LeakPerMin:     0.05,
		NormalTau:      time.Minute,
		IdleCurrentA:   0.2,
		FullCurrentA:   2.0,
		LineVoltage:    1.5,
	}
}

// Plant is a first-order thermal model of the cold stage. It is a Source
// and accepts actuator counts through Write and the relay position through
// SetBypass. With the relay in Bypass the stage is cooled in proportion to
// drive against a heat leak toward ambient; in Normal the cooler's own loop
// pulls it toward the setpoint.
type Plant struct {
	mu  sync.Mutex
	cfg PlantConfig

	clock func() time.Time
	last  time.Time

	tempK   float64
	counts  uint16
	bypass  bool
	voltage float64
	spikeA  float64
}

// NewPlant creates a plant. clock may be nil for time.Now.
func NewPlant(cfg PlantConfig, clock func() time.Time) *Plant {
	if clock == nil {
		clock = time.Now
	}
	return &Plant{
		cfg:     cfg,
		clock:   clock,
		last:    clock(),
		tempK:   cfg.StartK,
		bypass:  true,
		voltage: cfg.LineVoltage,
	}
}

// Read advances the model to the current clock and reports it.
func (p *Plant) Read() (Reading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	p.advance(now)

	r := Reading{
		Time:         now,
		TemperatureK: p.tempK,
		CurrentA:     p.cfg.IdleCurrentA + p.drive()*p.cfg.FullCurrentA + p.spikeA,
		LineVoltage:  p.voltage,
	}
	p.spikeA = 0
	return r, nil
}

// Write sets the actuator drive in counts.
func (p *Plant) Write(counts uint16) error {
	p.mu.Lock()
	p.advance(p.clock())
	p.counts = counts
	p.mu.Unlock()
	return nil
}

// SetBypass sets the relay position.
func (p *Plant) SetBypass(bypass bool) {
	p.mu.Lock()
	p.advance(p.clock())
	p.bypass = bypass
	p.mu.Unlock()
}

// SetLineVoltage overrides the reported line voltage.
func (p *Plant) SetLineVoltage(v float64) {
	p.mu.Lock()
	p.voltage = v
	p.mu.Unlock()
}

// InjectSpike adds amps to the next reported current only.
func (p *Plant) InjectSpike(amps float64) {
	p.mu.Lock()
	p.spikeA += amps
	p.mu.Unlock()
}

// Temperature returns the modelled temperature without advancing.
func (p *Plant) Temperature() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tempK
}

func (p *Plant) drive() float64 {
	if p.cfg.FullScale == 0 {
		return 0
	}
	return float64(p.counts) / float64(p.cfg.FullScale)
}

func (p *Plant) advance(now time.Time) {
	dt := now.Sub(p.last)
	p.last = now
	if dt <= 0 {
		return
	}
	minutes := dt.Minutes()

	if !p.bypass {
		tau := p.cfg.NormalTau.Minutes()
		if tau <= 0 {
			p.tempK = p.cfg.SetpointK
			return
		}
		p.tempK = p.cfg.SetpointK + (p.tempK-p.cfg.SetpointK)*math.Exp(-minutes/tau)
		return
	}

	lift := p.cfg.MaxLiftKPerMin * p.drive()
	leak := p.cfg.LeakPerMin * (p.cfg.AmbientK - p.tempK)
	p.tempK += (leak - lift) * minutes
	if p.tempK > p.cfg.AmbientK {
		p.tempK = p.cfg.AmbientK
	}
	if p.tempK < 4 {
		p.tempK = 4
	}
}
