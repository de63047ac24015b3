package logic

import (
	"math"
	"strings"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Time {
	return epoch.Add(time.Duration(n) * time.Millisecond)
}

func tick(s *Sequencer, tempK float64, now time.Time) Output {
	return s.Tick(TickInput{TemperatureK: tempK, CoolingRate: 0.5, Now: now})
}

// startedSequencer returns a sequencer that was started warm at t=100ms.
func startedSequencer(t *testing.T) (*Sequencer, Config) {
	t.Helper()
	cfg := DefaultConfig()
	s := NewSequencer(cfg, ms(0))
	s.Start(ms(100), 295.0)
	if s.State() != StateCoarseCooldown {
		t.Fatalf("setup: expected CoarseCooldown, got %s", s.State())
	}
	return s, cfg
}

func TestInitializeEntersOff(t *testing.T) {
	s := NewSequencer(DefaultConfig(), ms(0))
	if s.State() != StateOff {
		t.Errorf("state: got %s, want Off", s.State())
	}
	if s.Running() {
		t.Error("should not be running after initialize")
	}
	if s.FaultReason() != FaultNone {
		t.Errorf("fault reason: got %s, want None", s.FaultReason())
	}

	out := tick(s, 295.0, ms(10))
	if out.Target != 0 || !out.BypassRelay || out.AlarmRelay {
		t.Errorf("off output: %+v", out)
	}
	if out.FaultLamp != LampOff || out.ReadyLamp != LampOff {
		t.Errorf("off lamps: fault=%s ready=%s", out.FaultLamp, out.ReadyLamp)
	}
	if out.StatusText != StatusOff {
		t.Errorf("status: got %q", out.StatusText)
	}
}

func TestInitializeClearsFaultAndBackoff(t *testing.T) {
	s, cfg := startedSequencer(t)
	s.Tick(TickInput{TemperatureK: 200, Overstroke: true, Now: ms(101)})
	s.Tick(TickInput{TemperatureK: 200, LineVoltage: cfg.MaxLineVoltage + 1, Now: ms(102)})
	if s.State() != StateFault {
		t.Fatalf("expected Fault, got %s", s.State())
	}

	s.Initialize(ms(200))
	if s.State() != StateOff || s.FaultReason() != FaultNone || s.BackoffCount() != 0 || s.BackoffOffset() != 0 {
		t.Errorf("after initialize: state=%s reason=%s backoff=%d offset=%d",
			s.State(), s.FaultReason(), s.BackoffCount(), s.BackoffOffset())
	}
	if s.RunDuration(ms(300)) != 0 {
		t.Errorf("run duration should reset, got %v", s.RunDuration(ms(300)))
	}
}

func TestLampTestOnInit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LampTestOnInit = true
	s := NewSequencer(cfg, ms(0))

	out := tick(s, 295.0, ms(0))
	if out.State != StateInitialize {
		t.Fatalf("state: got %s, want Initialize", out.State)
	}
	if out.FaultLamp != LampSolidAmber || out.ReadyLamp != LampSolidAmber {
		t.Errorf("lamp test: fault=%s ready=%s", out.FaultLamp, out.ReadyLamp)
	}

	out = tick(s, 295.0, epoch.Add(cfg.InitDwell-time.Millisecond))
	if out.State != StateInitialize {
		t.Errorf("left Initialize early: %s", out.State)
	}

	out = tick(s, 295.0, epoch.Add(cfg.InitDwell))
	if out.State != StateIdle {
		t.Fatalf("state after dwell: got %s, want Idle", out.State)
	}
	if out.FaultLamp != LampSolidRed || !out.BypassRelay || out.Target != 0 {
		t.Errorf("idle output: %+v", out)
	}

	// Idle never leaves on its own.
	out = tick(s, 295.0, epoch.Add(time.Hour))
	if out.State != StateIdle {
		t.Errorf("idle auto-transitioned to %s", out.State)
	}

	// Start is ignored during the lamp test.
	s2 := NewSequencer(cfg, ms(0))
	s2.Start(ms(1), 295.0)
	if s2.State() != StateInitialize || s2.Running() {
		t.Errorf("start during Initialize: state=%s running=%v", s2.State(), s2.Running())
	}
}

func TestScenarioCooldownToOvershoot(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSequencer(cfg, ms(0))
	s.Start(ms(100), 295.0)
	if s.State() != StateCoarseCooldown {
		t.Fatalf("after start: got %s", s.State())
	}

	out := s.Tick(TickInput{TemperatureK: 200.0, CoolingRate: 0.5, Now: ms(101)})
	if out.State != StateCoarseCooldown {
		t.Errorf("tick 200K: got %s", out.State)
	}
	if out.Target == 0 {
		t.Error("tick 200K: expected target > 0")
	}
	if !out.BypassRelay {
		t.Error("coarse cooldown must use bypass relay")
	}
	if out.FaultLamp != LampFlashFastRed || out.ReadyLamp != LampOff {
		t.Errorf("coarse lamps: fault=%s ready=%s", out.FaultLamp, out.ReadyLamp)
	}

	out = s.Tick(TickInput{TemperatureK: 84.0, CoolingRate: 0.5, Now: ms(102)})
	if out.State != StateFineCooldown {
		t.Errorf("tick 84K: got %s", out.State)
	}
	if out.ReadyLamp != LampFlashSlowGreen {
		t.Errorf("fine ready lamp: got %s", out.ReadyLamp)
	}

	out = s.Tick(TickInput{TemperatureK: cfg.SetpointK - cfg.SetpointToleranceK - 1, CoolingRate: 0.5, Now: ms(103)})
	if out.State != StateOvershoot {
		t.Errorf("tick below band: got %s", out.State)
	}
	if out.Target != 0 {
		t.Errorf("overshoot target: got %d, want 0", out.Target)
	}
}

func TestCoarseTargetIncreasesAsTemperatureDrops(t *testing.T) {
	s, _ := startedSequencer(t)
	high := tick(s, 200.0, ms(101))
	low := tick(s, 100.0, ms(102))
	if low.Target <= high.Target {
		t.Errorf("target should rise as temperature drops: 200K=%d 100K=%d", high.Target, low.Target)
	}
}

func TestFineCooldownTransitions(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name   string
		tempK  float64
		want   State
		target bool // expect a nonzero target
	}{
		{"bounce above threshold", cfg.CoarseFineThreshold + 0.5, StateCoarseCooldown, true},
		{"at threshold stays fine", cfg.CoarseFineThreshold, StateFineCooldown, true},
		{"below band", cfg.SetpointK - cfg.SetpointToleranceK - 0.01, StateOvershoot, false},
		{"lower band edge", cfg.SetpointK - cfg.SetpointToleranceK, StateSettle, false},
		{"upper band edge", cfg.SetpointK + cfg.SetpointToleranceK, StateSettle, false},
		{"between band and threshold", 82.0, StateFineCooldown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSequencer(cfg, ms(0))
			s.Start(ms(1), 82.0)
			if s.State() != StateFineCooldown {
				t.Fatalf("setup: got %s", s.State())
			}
			out := tick(s, tt.tempK, ms(2))
			if out.State != tt.want {
				t.Errorf("state: got %s, want %s", out.State, tt.want)
			}
			if (out.Target > 0) != tt.target {
				t.Errorf("target: got %d, want nonzero=%v", out.Target, tt.target)
			}
		})
	}
}

func TestOvershootReturnsToSettle(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSequencer(cfg, ms(0))
	s.Start(ms(1), cfg.SetpointK-cfg.SetpointToleranceK-3)
	if s.State() != StateOvershoot {
		t.Fatalf("setup: got %s", s.State())
	}

	out := tick(s, cfg.SetpointK-cfg.SetpointToleranceK-1, ms(2))
	if out.State != StateOvershoot || out.Target != 0 {
		t.Errorf("still overshot: state=%s target=%d", out.State, out.Target)
	}
	if out.ReadyLamp != LampFlashFastGreen {
		t.Errorf("overshoot ready lamp: got %s", out.ReadyLamp)
	}

	out = tick(s, cfg.SetpointK, ms(3))
	if out.State != StateSettle {
		t.Errorf("back in band: got %s, want Settle", out.State)
	}
	if out.BypassRelay {
		t.Error("settle must switch relay to normal")
	}
}

func TestSettleDwellAndReset(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSequencer(cfg, ms(0))
	s.Start(ms(0), cfg.SetpointK)
	if s.State() != StateSettle {
		t.Fatalf("setup: got %s", s.State())
	}

	// First in-band tick arms the timer.
	tick(s, cfg.SetpointK, ms(1000))
	if got := s.SettleElapsed(ms(1000)); got != 0 {
		t.Errorf("settle elapsed at arm: %v", got)
	}

	// Drift out of band just before the dwell completes: timer resets.
	armed := ms(1000)
	out := tick(s, cfg.SetpointK+cfg.SetpointToleranceK+0.5, armed.Add(cfg.SettleDuration-time.Second))
	if out.State != StateSettle {
		t.Fatalf("out of band: got %s", out.State)
	}
	if s.SettleElapsed(armed.Add(cfg.SettleDuration)) != 0 {
		t.Error("settle timer should be inactive after leaving band")
	}

	// Re-enter band; the full duration has to elapse again.
	rearm := armed.Add(cfg.SettleDuration)
	tick(s, cfg.SetpointK, rearm)
	out = tick(s, cfg.SetpointK, rearm.Add(cfg.SettleDuration-time.Millisecond))
	if out.State != StateSettle {
		t.Errorf("transitioned early: %s", out.State)
	}
	out = tick(s, cfg.SetpointK, rearm.Add(cfg.SettleDuration))
	if out.State != StateBaseline {
		t.Fatalf("after dwell: got %s, want Baseline", out.State)
	}
	if out.ReadyLamp != LampSolidGreen || out.FaultLamp != LampOff || out.BypassRelay {
		t.Errorf("baseline output: %+v", out)
	}
}

func TestBaselineToOperating(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSequencer(cfg, ms(0))
	s.Start(ms(0), cfg.SetpointK)
	tick(s, cfg.SetpointK, ms(1))
	out := tick(s, cfg.SetpointK, ms(1).Add(cfg.SettleDuration))
	if out.State != StateBaseline {
		t.Fatalf("setup: got %s", out.State)
	}
	entered := ms(1).Add(cfg.SettleDuration)

	out = tick(s, cfg.SetpointK, entered.Add(cfg.BaselineDuration-time.Millisecond))
	if out.State != StateBaseline {
		t.Errorf("left Baseline early: %s", out.State)
	}
	out = tick(s, cfg.SetpointK, entered.Add(cfg.BaselineDuration))
	if out.State != StateOperating {
		t.Fatalf("got %s, want Operating", out.State)
	}

	// Operating is terminal even far from the band.
	out = tick(s, 150.0, entered.Add(24*time.Hour))
	if out.State != StateOperating {
		t.Errorf("operating auto-transitioned to %s", out.State)
	}
	if out.StatusText != StatusOperating {
		t.Errorf("status: %q", out.StatusText)
	}
}

func TestOverVoltageFaultsFromEveryState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LampTestOnInit = true

	setups := map[State]func(s *Sequencer){
		StateInitialize:     func(s *Sequencer) {},
		StateIdle:           func(s *Sequencer) { tick(s, 295, epoch.Add(cfg.InitDwell)) },
		StateCoarseCooldown: func(s *Sequencer) { toIdle(s, cfg); s.Start(ms(5000), 295) },
		StateFineCooldown:   func(s *Sequencer) { toIdle(s, cfg); s.Start(ms(5000), 82) },
		StateOvershoot:      func(s *Sequencer) { toIdle(s, cfg); s.Start(ms(5000), 70) },
		StateSettle:         func(s *Sequencer) { toIdle(s, cfg); s.Start(ms(5000), 78) },
		StateOff:            func(s *Sequencer) { s.PowerOff(ms(5000)) },
	}

	for want, setup := range setups {
		t.Run(want.String(), func(t *testing.T) {
			s := NewSequencer(cfg, ms(0))
			setup(s)
			if s.State() != want {
				t.Fatalf("setup: got %s, want %s", s.State(), want)
			}
			out := s.Tick(TickInput{TemperatureK: 200, LineVoltage: cfg.MaxLineVoltage + 0.01, Now: ms(6000)})
			if out.State != StateFault {
				t.Errorf("state: got %s, want Fault", out.State)
			}
			if s.FaultReason() != FaultOverVoltage {
				t.Errorf("reason: got %s", s.FaultReason())
			}
			if out.Target != 0 || !out.AlarmRelay || !out.BypassRelay {
				t.Errorf("fault output: %+v", out)
			}
			if s.Running() {
				t.Error("fault must de-assert running")
			}
			if !strings.Contains(out.StatusText, "Fault:") || !strings.Contains(out.StatusText, "RMS") {
				t.Errorf("status: %q", out.StatusText)
			}
		})
	}
}

func toIdle(s *Sequencer, cfg Config) {
	tick(s, 295, epoch.Add(cfg.InitDwell))
}

func TestVoltageAtCeilingIsNotAFault(t *testing.T) {
	s, cfg := startedSequencer(t)
	out := s.Tick(TickInput{TemperatureK: 200, LineVoltage: cfg.MaxLineVoltage, Now: ms(101)})
	if out.State == StateFault {
		t.Error("voltage equal to the ceiling must not fault")
	}
}

func TestOverVoltageShortCircuitsBackoff(t *testing.T) {
	s, cfg := startedSequencer(t)
	s.Tick(TickInput{TemperatureK: 200, LineVoltage: cfg.MaxLineVoltage + 1, Overstroke: true, Stalled: true, Now: ms(101)})
	if s.FaultReason() != FaultOverVoltage {
		t.Errorf("reason: got %s, want OverVoltage", s.FaultReason())
	}
	if s.BackoffCount() != 0 {
		t.Errorf("backoff should not be counted after an overvoltage short-circuit, got %d", s.BackoffCount())
	}
}

func TestStallOnlyFaultsWhileCooling(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("coarse", func(t *testing.T) {
		s, _ := startedSequencer(t)
		out := s.Tick(TickInput{TemperatureK: 200, Stalled: true, Now: ms(101)})
		if out.State != StateFault || s.FaultReason() != FaultTemperatureStall {
			t.Errorf("got %s/%s", out.State, s.FaultReason())
		}
		if !strings.Contains(out.StatusText, "stall") {
			t.Errorf("status: %q", out.StatusText)
		}
	})

	t.Run("fine", func(t *testing.T) {
		s := NewSequencer(cfg, ms(0))
		s.Start(ms(1), 82)
		out := s.Tick(TickInput{TemperatureK: 82, Stalled: true, Now: ms(2)})
		if out.State != StateFault || s.FaultReason() != FaultTemperatureStall {
			t.Errorf("got %s/%s", out.State, s.FaultReason())
		}
	})

	for _, start := range []float64{cfg.SetpointK, 70} {
		s := NewSequencer(cfg, ms(0))
		s.Start(ms(1), start)
		before := s.State()
		out := s.Tick(TickInput{TemperatureK: start, Stalled: true, Now: ms(2)})
		if out.State == StateFault {
			t.Errorf("stall in %s should be ignored", before)
		}
	}

	s := NewSequencer(cfg, ms(0))
	out := s.Tick(TickInput{TemperatureK: 295, Stalled: true, Now: ms(1)})
	if out.State != StateOff || out.AlarmRelay {
		t.Errorf("stall while off: %+v", out)
	}
}

func TestBackoffAccumulates(t *testing.T) {
	s, cfg := startedSequencer(t)
	clean := tick(s, 200, ms(101))

	n := cfg.BackoffMax - 1
	var out Output
	for i := 0; i < n; i++ {
		out = s.Tick(TickInput{TemperatureK: 200, Overstroke: true, Now: ms(102 + i)})
	}
	if s.BackoffCount() != n || out.BackoffCount != n {
		t.Errorf("backoff count: got %d/%d, want %d", s.BackoffCount(), out.BackoffCount, n)
	}
	if out.State != StateCoarseCooldown {
		t.Errorf("non-fatal overstroke changed state to %s", out.State)
	}
	wantTarget := int(clean.Target) - n*int(cfg.BackoffStep)
	if wantTarget < 0 {
		wantTarget = 0
	}
	if int(out.Target) != wantTarget {
		t.Errorf("de-rated target: got %d, want %d", out.Target, wantTarget)
	}

	out = s.Tick(TickInput{TemperatureK: 200, Overstroke: true, Now: ms(200)})
	if out.State != StateFault || s.FaultReason() != FaultExcessiveBackoff {
		t.Errorf("at max: got %s/%s", out.State, s.FaultReason())
	}
	if out.Target != 0 || !out.AlarmRelay {
		t.Errorf("fault output: %+v", out)
	}
}

func TestBackoffFloorsAtZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BackoffStep = 4000
	cfg.BackoffMax = 10
	s := NewSequencer(cfg, ms(0))
	s.Start(ms(0), 295)

	out := s.Tick(TickInput{TemperatureK: 200, Overstroke: true, Now: ms(1)})
	if out.Target != 0 {
		t.Errorf("target: got %d, want 0", out.Target)
	}
	s.Tick(TickInput{TemperatureK: 200, Overstroke: true, Now: ms(2)})
	if s.BackoffOffset() != cfg.FullScale {
		t.Errorf("offset should cap at full scale, got %d", s.BackoffOffset())
	}
}

func TestOverstrokeIgnoredWhenNotRunning(t *testing.T) {
	s := NewSequencer(DefaultConfig(), ms(0))
	out := s.Tick(TickInput{TemperatureK: 295, Overstroke: true, Now: ms(1)})
	if s.BackoffCount() != 0 || out.State != StateOff {
		t.Errorf("backoff=%d state=%s", s.BackoffCount(), out.State)
	}
}

func TestStartResumeSelection(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		tempK  float64
		want   State
		bypass bool
	}{
		{295, StateCoarseCooldown, true},
		{cfg.CoarseFineThreshold, StateCoarseCooldown, true},
		{cfg.CoarseFineThreshold - 0.1, StateFineCooldown, true},
		{cfg.SetpointK + cfg.SetpointToleranceK + 0.1, StateFineCooldown, true},
		{cfg.SetpointK + cfg.SetpointToleranceK, StateSettle, false},
		{cfg.SetpointK, StateSettle, false},
		{cfg.SetpointK - cfg.SetpointToleranceK, StateSettle, false},
		{cfg.SetpointK - cfg.SetpointToleranceK - 0.1, StateOvershoot, true},
		{math.NaN(), StateFineCooldown, true},
	}

	for _, tt := range tests {
		s := NewSequencer(cfg, ms(0))
		s.Start(ms(1), tt.tempK)
		if s.State() != tt.want {
			t.Errorf("start at %.2fK: got %s, want %s", tt.tempK, s.State(), tt.want)
			continue
		}
		if !s.Running() {
			t.Errorf("start at %.2fK: not running", tt.tempK)
		}
		if math.IsNaN(tt.tempK) {
			continue
		}
		out := tick(s, tt.tempK, ms(2))
		if out.BypassRelay != tt.bypass {
			t.Errorf("start at %.2fK: bypass=%v, want %v", tt.tempK, out.BypassRelay, tt.bypass)
		}
		if tt.want == StateOvershoot && out.Target != 0 {
			t.Errorf("overshoot resume target: %d", out.Target)
		}
	}
}

func TestCommandsAreNoOpsFromInvalidStates(t *testing.T) {
	s, _ := startedSequencer(t)
	tick(s, 200, ms(101))
	entered := s.TimeInState(ms(500))

	// Start while running.
	s.Start(ms(500), 80)
	if s.State() != StateCoarseCooldown || s.TimeInState(ms(500)) != entered {
		t.Errorf("start while running changed state: %s", s.State())
	}

	// Stop while not running.
	idle := NewSequencer(DefaultConfig(), ms(0))
	idle.Stop(ms(10))
	if idle.State() != StateOff || idle.Running() {
		t.Errorf("stop while off: %s", idle.State())
	}

	// PowerOff while already Off keeps the entry time.
	idle.PowerOff(ms(20))
	if idle.TimeInState(ms(30)) != 30*time.Millisecond {
		t.Errorf("power off while off reset the state timer: %v", idle.TimeInState(ms(30)))
	}

	// Start from Fault is ignored.
	cfg := DefaultConfig()
	s.Tick(TickInput{TemperatureK: 200, LineVoltage: cfg.MaxLineVoltage + 1, Now: ms(600)})
	s.Start(ms(700), 295)
	if s.State() != StateFault || s.Running() {
		t.Errorf("start from fault: %s running=%v", s.State(), s.Running())
	}
}

func TestStopAndPowerOff(t *testing.T) {
	s, cfg := startedSequencer(t)
	s.Stop(ms(1000))
	if s.State() != StateIdle || s.Running() {
		t.Errorf("stop: state=%s running=%v", s.State(), s.Running())
	}

	s.Start(ms(2000), 295)
	s.Tick(TickInput{TemperatureK: 200, LineVoltage: cfg.MaxLineVoltage + 1, Now: ms(2001)})
	out := s.Tick(TickInput{TemperatureK: 100, Now: ms(3000)})
	if out.State != StateFault {
		t.Fatalf("fault should be terminal, got %s", out.State)
	}

	s.Stop(ms(4000))
	if s.State() != StateIdle || s.FaultReason() != FaultNone {
		t.Errorf("stop from fault: state=%s reason=%s", s.State(), s.FaultReason())
	}

	s.Start(ms(5000), 295)
	s.PowerOff(ms(6000))
	if s.State() != StateOff || s.Running() || s.FaultReason() != FaultNone {
		t.Errorf("power off: state=%s running=%v", s.State(), s.Running())
	}
}

func TestTimeInStateResetsOnTransition(t *testing.T) {
	s, _ := startedSequencer(t)
	if got := s.TimeInState(ms(100)); got != 0 {
		t.Errorf("at entry: %v", got)
	}
	tick(s, 200, ms(600))
	if got := s.TimeInState(ms(600)); got != 500*time.Millisecond {
		t.Errorf("after 500ms: %v", got)
	}
	tick(s, 84, ms(900))
	if got := s.TimeInState(ms(900)); got != 0 {
		t.Errorf("at transition: %v", got)
	}
	if got := s.TimeInState(ms(1400)); got != 500*time.Millisecond {
		t.Errorf("after transition: %v", got)
	}
}

func TestRunDuration(t *testing.T) {
	s := NewSequencer(DefaultConfig(), ms(0))
	if s.RunDuration(ms(1000)) != 0 {
		t.Error("run duration before start should be 0")
	}
	s.Start(ms(1000), 295)
	if got := s.RunDuration(ms(4000)); got != 3*time.Second {
		t.Errorf("running: %v", got)
	}
	s.Stop(ms(5000))
	if got := s.RunDuration(ms(9000)); got != 4*time.Second {
		t.Errorf("after stop: %v", got)
	}
}

func TestHoldOnFastCooling(t *testing.T) {
	cfg := DefaultConfig()

	// Default: the rate guard does not change the target.
	s := NewSequencer(cfg, ms(0))
	s.Start(ms(0), 295)
	s.Tick(TickInput{TemperatureK: 200, CoolingRate: 0.5, Now: ms(1)})
	fast := s.Tick(TickInput{TemperatureK: 150, CoolingRate: cfg.MaxCoolingRate + 10, Now: ms(2)})
	if fast.Target != TargetCurve(150, cfg) {
		t.Errorf("default guard: got %d, want %d", fast.Target, TargetCurve(150, cfg))
	}

	cfg.HoldOnFastCooling = true
	s = NewSequencer(cfg, ms(0))
	s.Start(ms(0), 295)
	first := s.Tick(TickInput{TemperatureK: 200, CoolingRate: 0.5, Now: ms(1)})
	held := s.Tick(TickInput{TemperatureK: 150, CoolingRate: cfg.MaxCoolingRate + 10, Now: ms(2)})
	if held.Target != first.Target {
		t.Errorf("held target: got %d, want %d", held.Target, first.Target)
	}
	resumed := s.Tick(TickInput{TemperatureK: 150, CoolingRate: 0.5, Now: ms(3)})
	if resumed.Target != TargetCurve(150, cfg) {
		t.Errorf("resumed target: got %d", resumed.Target)
	}
}

func TestFaultReasonNoneOutsideFault(t *testing.T) {
	s, cfg := startedSequencer(t)
	inputs := []TickInput{
		{TemperatureK: 200, Now: ms(101)},
		{TemperatureK: 84, Now: ms(102)},
		{TemperatureK: 78, Now: ms(103)},
		{TemperatureK: 200, LineVoltage: cfg.MaxLineVoltage + 1, Now: ms(104)},
	}
	for _, in := range inputs {
		out := s.Tick(in)
		if out.State != StateFault && s.FaultReason() != FaultNone {
			t.Errorf("state %s has fault reason %s", out.State, s.FaultReason())
		}
	}
}

func TestStatusTextForEveryState(t *testing.T) {
	for _, st := range States {
		if statusText(st, FaultNone) == "" {
			t.Errorf("empty status for %s", st)
		}
		if st.String() == "Unknown" {
			t.Errorf("no name for state %d", st)
		}
	}
	for _, r := range []FaultReason{FaultOverVoltage, FaultTemperatureStall, FaultExcessiveBackoff} {
		if !strings.HasPrefix(statusText(StateFault, r), "Fault:") {
			t.Errorf("fault text for %s: %q", r, statusText(StateFault, r))
		}
	}
}
