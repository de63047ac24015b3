package sensor

import (
	"errors"
	"math"
	"testing"
	"time"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestConversions(t *testing.T) {
	if got := RTDRawToOhms(32768/2, 200); got != 100 {
		t.Errorf("RTDRawToOhms: got %v, want 100", got)
	}
	if got := CelsiusToFahrenheit(100); got != 212 {
		t.Errorf("CelsiusToFahrenheit(100): got %v", got)
	}
	if got := FahrenheitToCelsius(-40); got != -40 {
		t.Errorf("FahrenheitToCelsius(-40): got %v", got)
	}
	if got := KelvinToCelsius(CelsiusToKelvin(21.5)); !near(got, 21.5, 1e-9) {
		t.Errorf("round trip: got %v", got)
	}
}

func TestOhmsToCelsius(t *testing.T) {
	tests := []struct {
		ohms  float64
		wantC float64
		tol   float64
	}{
		{100.0, 0, 0.01},
		{138.51, 100, 0.05},
		{60.26, -100, 0.3},
		{18.52, -200, 1.0},
	}
	for _, tt := range tests {
		if got := OhmsToCelsius(tt.ohms, DefaultRNominal); !near(got, tt.wantC, tt.tol) {
			t.Errorf("OhmsToCelsius(%v): got %.3f, want %.1f", tt.ohms, got, tt.wantC)
		}
	}
}

func TestRawToKelvinMonotonic(t *testing.T) {
	prev := math.Inf(-1)
	for raw := uint16(1500); raw < 12000; raw += 250 {
		k := RawToKelvin(raw, DefaultRRef, DefaultRNominal)
		if k <= prev {
			t.Fatalf("not increasing at raw=%d: %v <= %v", raw, k, prev)
		}
		prev = k
	}
}

func TestFakeSource(t *testing.T) {
	f := NewFakeSource(Reading{TemperatureK: 290}, Reading{TemperatureK: 280})

	r, err := f.Read()
	if err != nil || r.TemperatureK != 290 {
		t.Fatalf("first: %v %v", r, err)
	}
	r, _ = f.Read()
	if r.TemperatureK != 280 {
		t.Errorf("second: got %v", r.TemperatureK)
	}
	r, _ = f.Read()
	if r.TemperatureK != 280 {
		t.Errorf("exhausted should repeat last, got %v", r.TemperatureK)
	}

	f.ReadError = errors.New("spi timeout")
	if _, err := f.Read(); err == nil {
		t.Error("expected error")
	}
	if f.Reads != 4 {
		t.Errorf("reads: got %d, want 4", f.Reads)
	}

	empty := NewFakeSource()
	if _, err := empty.Read(); err == nil {
		t.Error("expected error with no readings")
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestPlantCoolsUnderDrive(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := DefaultPlantConfig()
	p := NewPlant(cfg, clk.Now)

	r, _ := p.Read()
	if r.TemperatureK != cfg.StartK {
		t.Fatalf("start: got %v", r.TemperatureK)
	}

	p.Write(cfg.FullScale)
	for i := 0; i < 60; i++ {
		clk.Advance(time.Second)
		r, _ = p.Read()
	}
	if r.TemperatureK >= cfg.StartK-5 {
		t.Errorf("full drive should cool noticeably in a minute, got %.2f", r.TemperatureK)
	}
	if !near(r.CurrentA, cfg.IdleCurrentA+cfg.FullCurrentA, 1e-9) {
		t.Errorf("current: got %v", r.CurrentA)
	}
	if r.LineVoltage != cfg.LineVoltage {
		t.Errorf("voltage: got %v", r.LineVoltage)
	}
}

func TestPlantWarmsWithoutDrive(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := DefaultPlantConfig()
	cfg.StartK = 100
	p := NewPlant(cfg, clk.Now)

	clk.Advance(time.Minute)
	r, _ := p.Read()
	if r.TemperatureK <= 100 {
		t.Errorf("should warm toward ambient, got %.2f", r.TemperatureK)
	}

	clk.Advance(24 * time.Hour)
	r, _ = p.Read()
	if r.TemperatureK > cfg.AmbientK {
		t.Errorf("warmed past ambient: %.2f", r.TemperatureK)
	}
}

func TestPlantNormalHoldsSetpoint(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := DefaultPlantConfig()
	cfg.StartK = 81
	p := NewPlant(cfg, clk.Now)
	p.SetBypass(false)

	clk.Advance(10 * cfg.NormalTau)
	r, _ := p.Read()
	if !near(r.TemperatureK, cfg.SetpointK, 0.01) {
		t.Errorf("normal mode: got %.3f, want ~%.1f", r.TemperatureK, cfg.SetpointK)
	}
}

func TestPlantSpikeAndVoltage(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := NewPlant(DefaultPlantConfig(), clk.Now)

	p.InjectSpike(3)
	p.SetLineVoltage(4.2)
	r, _ := p.Read()
	if !near(r.CurrentA, 3.2, 1e-9) || r.LineVoltage != 4.2 {
		t.Errorf("spike read: %+v", r)
	}
	r, _ = p.Read()
	if !near(r.CurrentA, 0.2, 1e-9) {
		t.Errorf("spike should last one read, got %v", r.CurrentA)
	}
}
