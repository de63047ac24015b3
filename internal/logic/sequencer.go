package logic

import "time"

// Sequencer is the cooldown finite-state machine. It is caller-owned and
// not safe for concurrent use: one goroutine must run Tick and the
// Start/Stop/PowerOff commands, and each Tick completes before the next.
type Sequencer struct {
	cfg Config

	state   State
	entered time.Time
	running bool
	reason  FaultReason

	settleStart  time.Time
	settleActive bool

	runStart time.Time
	runStop  time.Time
	started  bool // runStart is valid
	stopped  bool // runStop is valid

	backoffCount  int
	backoffOffset uint16

	lastCooldownTarget uint16
	haveCooldownTarget bool
}

type stepFunc func(s *Sequencer, in TickInput) Output

// steps is the per-state transition table. Global fault checks run before
// any of these.
var steps = map[State]stepFunc{
	StateOff:            (*Sequencer).stepOff,
	StateInitialize:     (*Sequencer).stepInitialize,
	StateIdle:           (*Sequencer).stepIdle,
	StateCoarseCooldown: (*Sequencer).stepCoarseCooldown,
	StateFineCooldown:   (*Sequencer).stepFineCooldown,
	StateOvershoot:      (*Sequencer).stepOvershoot,
	StateSettle:         (*Sequencer).stepSettle,
	StateBaseline:       (*Sequencer).stepBaseline,
	StateOperating:      (*Sequencer).stepOperating,
	StateFault:          (*Sequencer).stepFault,
}

// presentation is the relay and lamp assignment for each state.
var presentation = map[State]struct {
	bypass, alarm bool
	fault, ready  LampMode
}{
	StateOff:            {bypass: true, fault: LampOff, ready: LampOff},
	StateInitialize:     {bypass: true, fault: LampSolidAmber, ready: LampSolidAmber},
	StateIdle:           {bypass: true, fault: LampSolidRed, ready: LampOff},
	StateCoarseCooldown: {bypass: true, fault: LampFlashFastRed, ready: LampOff},
	StateFineCooldown:   {bypass: true, fault: LampFlashFastRed, ready: LampFlashSlowGreen},
	StateOvershoot:      {bypass: true, fault: LampFlashFastRed, ready: LampFlashFastGreen},
	StateSettle:         {bypass: false, fault: LampFlashFastRed, ready: LampFlashFastGreen},
	StateBaseline:       {bypass: false, fault: LampOff, ready: LampSolidGreen},
	StateOperating:      {bypass: false, fault: LampOff, ready: LampSolidGreen},
	StateFault:          {bypass: true, alarm: true, fault: LampFlashFastRed, ready: LampOff},
}

// NewSequencer creates a sequencer and initializes it at now.
func NewSequencer(cfg Config, now time.Time) *Sequencer {
	s := &Sequencer{cfg: cfg}
	s.Initialize(now)
	return s
}

// Initialize resets the sequencer: Off (or the lamp test when
// LampTestOnInit is set), not running, fault and backoff cleared.
func (s *Sequencer) Initialize(now time.Time) {
	s.running = false
	s.reason = FaultNone
	s.backoffCount = 0
	s.backoffOffset = 0
	s.started = false
	s.stopped = false
	s.runStart = time.Time{}
	s.runStop = time.Time{}
	s.haveCooldownTarget = false
	if s.cfg.LampTestOnInit {
		s.enter(StateInitialize, now)
		return
	}
	s.enter(StateOff, now)
}

// Tick advances the sequencer by one control tick and returns the decision
// for it. Global fault checks are evaluated first, in order: line voltage,
// stall (cooling states only), then overstroke backoff.
func (s *Sequencer) Tick(in TickInput) Output {
	if s.state != StateFault {
		if in.LineVoltage > s.cfg.MaxLineVoltage {
			s.fault(FaultOverVoltage, in.Now)
			return s.output(0)
		}
		if in.Stalled && s.state.Cooling() {
			s.fault(FaultTemperatureStall, in.Now)
			return s.output(0)
		}
		if in.Overstroke && s.running {
			s.backoffCount++
			offset := uint32(s.backoffOffset) + uint32(s.cfg.BackoffStep)
			if offset > uint32(s.cfg.FullScale) {
				offset = uint32(s.cfg.FullScale)
			}
			s.backoffOffset = uint16(offset)
			if s.backoffCount >= s.cfg.BackoffMax {
				s.fault(FaultExcessiveBackoff, in.Now)
				return s.output(0)
			}
		}
	}

	step, ok := steps[s.state]
	if !ok {
		// Unreachable while State stays in the closed set.
		s.fault(FaultNone, in.Now)
		return s.output(0)
	}
	return step(s, in)
}

// Start begins a run from Off or Idle, resuming at the state that matches
// the current cold-stage temperature. It is a no-op while running and from
// any other state.
func (s *Sequencer) Start(now time.Time, tempK float64) {
	if s.running {
		return
	}
	if s.state != StateOff && s.state != StateIdle {
		return
	}

	s.running = true
	s.runStart = now
	s.started = true
	s.stopped = false
	s.reason = FaultNone
	s.backoffCount = 0
	s.backoffOffset = 0
	s.haveCooldownTarget = false

	s.enter(s.resumeState(tempK), now)
}

// resumeState picks where a (re)started run picks up, so a controller
// restart mid-sequence neither forces a full cooldown nor enters a cooling
// state that would immediately look stalled. A NaN temperature fails every
// comparison and lands in FineCooldown.
func (s *Sequencer) resumeState(tempK float64) State {
	switch {
	case tempK >= s.cfg.CoarseFineThreshold:
		return StateCoarseCooldown
	case s.cfg.Overshot(tempK):
		return StateOvershoot
	case s.cfg.InBand(tempK):
		return StateSettle
	default:
		return StateFineCooldown
	}
}

// Stop ends a run (or clears a fault) and returns to Idle. It is a no-op
// when neither running nor faulted.
func (s *Sequencer) Stop(now time.Time) {
	if !s.running && s.state != StateFault {
		return
	}
	s.endRun(now)
	s.enter(StateIdle, now)
}

// PowerOff moves any state to Off. It is a no-op when already Off.
func (s *Sequencer) PowerOff(now time.Time) {
	if s.state == StateOff {
		return
	}
	s.endRun(now)
	s.enter(StateOff, now)
}

// State returns the current state.
func (s *Sequencer) State() State {
	return s.state
}

// Running reports whether a run is in progress.
func (s *Sequencer) Running() bool {
	return s.running
}

// FaultReason returns why the sequencer faulted, or FaultNone outside Fault.
func (s *Sequencer) FaultReason() FaultReason {
	return s.reason
}

// StatusText returns the fixed status string for the current state.
func (s *Sequencer) StatusText() string {
	return statusText(s.state, s.reason)
}

// BackoffCount returns the overstroke count for the current run.
func (s *Sequencer) BackoffCount() int {
	return s.backoffCount
}

// BackoffOffset returns the accumulated actuator de-rating in counts.
func (s *Sequencer) BackoffOffset() uint16 {
	return s.backoffOffset
}

// TimeInState returns how long the current state has been active.
func (s *Sequencer) TimeInState(now time.Time) time.Duration {
	d := now.Sub(s.entered)
	if d < 0 {
		return 0
	}
	return d
}

// RunDuration returns the length of the current run, or of the last run
// once it has ended. Zero before the first Start.
func (s *Sequencer) RunDuration(now time.Time) time.Duration {
	if !s.started {
		return 0
	}
	end := now
	if s.stopped {
		end = s.runStop
	}
	d := end.Sub(s.runStart)
	if d < 0 {
		return 0
	}
	return d
}

func (s *Sequencer) enter(state State, now time.Time) {
	s.state = state
	s.entered = now
	if state != StateSettle {
		s.settleActive = false
		s.settleStart = time.Time{}
	}
	if state != StateFault {
		s.reason = FaultNone
	}
}

func (s *Sequencer) fault(reason FaultReason, now time.Time) {
	s.endRun(now)
	s.enter(StateFault, now)
	s.reason = reason
}

// endRun de-asserts running and stamps the run end once.
func (s *Sequencer) endRun(now time.Time) {
	if s.running && !s.stopped {
		s.runStop = now
		s.stopped = true
	}
	s.running = false
}

// output builds the Output for the current state, applying the backoff
// de-rating to any nonzero target.
func (s *Sequencer) output(target uint16) Output {
	if s.backoffOffset > 0 && target > 0 {
		if s.backoffOffset >= target {
			target = 0
		} else {
			target -= s.backoffOffset
		}
	}
	p := presentation[s.state]
	return Output{
		State:        s.state,
		Target:       target,
		BypassRelay:  p.bypass,
		AlarmRelay:   p.alarm,
		FaultLamp:    p.fault,
		ReadyLamp:    p.ready,
		StatusText:   s.StatusText(),
		BackoffCount: s.backoffCount,
	}
}

// cooldownTarget is the proportional target for the cooling states. With
// HoldOnFastCooling set, the target may not rise while the measured rate
// exceeds MaxCoolingRate; otherwise the rate is ignored.
func (s *Sequencer) cooldownTarget(in TickInput) uint16 {
	target := TargetCurve(in.TemperatureK, s.cfg)
	if s.cfg.HoldOnFastCooling && s.haveCooldownTarget &&
		in.CoolingRate > s.cfg.MaxCoolingRate && target > s.lastCooldownTarget {
		target = s.lastCooldownTarget
	}
	s.lastCooldownTarget = target
	s.haveCooldownTarget = true
	return target
}

func (s *Sequencer) stepOff(in TickInput) Output {
	return s.output(0)
}

func (s *Sequencer) stepInitialize(in TickInput) Output {
	if s.TimeInState(in.Now) >= s.cfg.InitDwell {
		s.enter(StateIdle, in.Now)
	}
	return s.output(0)
}

func (s *Sequencer) stepIdle(in TickInput) Output {
	return s.output(0)
}

func (s *Sequencer) stepCoarseCooldown(in TickInput) Output {
	target := s.cooldownTarget(in)
	if in.TemperatureK < s.cfg.CoarseFineThreshold {
		s.enter(StateFineCooldown, in.Now)
	}
	return s.output(target)
}

func (s *Sequencer) stepFineCooldown(in TickInput) Output {
	t := in.TemperatureK
	switch {
	case t > s.cfg.CoarseFineThreshold:
		target := s.cooldownTarget(in)
		s.enter(StateCoarseCooldown, in.Now)
		return s.output(target)
	case s.cfg.Overshot(t):
		s.enter(StateOvershoot, in.Now)
		return s.output(0)
	case s.cfg.InBand(t):
		s.enter(StateSettle, in.Now)
		return s.output(0)
	}
	return s.output(s.cooldownTarget(in))
}

func (s *Sequencer) stepOvershoot(in TickInput) Output {
	if s.cfg.InBand(in.TemperatureK) {
		s.enter(StateSettle, in.Now)
	}
	return s.output(0)
}

func (s *Sequencer) stepSettle(in TickInput) Output {
	if !s.cfg.InBand(in.TemperatureK) {
		s.settleActive = false
		s.settleStart = time.Time{}
		return s.output(0)
	}
	if !s.settleActive {
		s.settleActive = true
		s.settleStart = in.Now
		return s.output(0)
	}
	if in.Now.Sub(s.settleStart) >= s.cfg.SettleDuration {
		s.enter(StateBaseline, in.Now)
	}
	return s.output(0)
}

func (s *Sequencer) stepBaseline(in TickInput) Output {
	if s.TimeInState(in.Now) >= s.cfg.BaselineDuration {
		s.enter(StateOperating, in.Now)
	}
	return s.output(0)
}

func (s *Sequencer) stepOperating(in TickInput) Output {
	return s.output(0)
}

func (s *Sequencer) stepFault(in TickInput) Output {
	return s.output(0)
}

// SettleElapsed returns how long the temperature has continuously stayed in
// band during Settle, or zero when the settle timer is not running.
func (s *Sequencer) SettleElapsed(now time.Time) time.Duration {
	if !s.settleActive {
		return 0
	}
	return now.Sub(s.settleStart)
}
