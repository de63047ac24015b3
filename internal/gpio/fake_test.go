package gpio

import (
	"errors"
	"testing"
)

func TestFakeOutputsStartSafe(t *testing.T) {
	f := NewFakeOutputs()
	if !f.State[Bypass] {
		t.Error("bypass should start engaged")
	}
	for _, l := range []Line{Alarm, FaultLamp, ReadyLamp} {
		if f.State[l] {
			t.Errorf("%s should start off", l)
		}
	}
}

func TestFakeOutputsSet(t *testing.T) {
	f := NewFakeOutputs()

	if err := f.Set(Alarm, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Set(Bypass, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.State[Alarm] || f.State[Bypass] {
		t.Errorf("state: %v", f.State)
	}
	if len(f.Writes) != 2 || f.Writes[0] != (Write{Line: Alarm, On: true}) {
		t.Errorf("writes: %v", f.Writes)
	}
}

func TestFakeOutputsError(t *testing.T) {
	f := NewFakeOutputs()
	f.SetError = errors.New("simulated error")

	err := f.Set(ReadyLamp, true)
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
	if f.State[ReadyLamp] {
		t.Error("failed write should not change state")
	}
}

func TestFakeOutputsCloseRestoresSafeState(t *testing.T) {
	f := NewFakeOutputs()
	f.Set(Bypass, false)
	f.Set(Alarm, true)
	f.Set(FaultLamp, true)

	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
	for _, l := range Lines {
		if f.State[l] != Safe(l) {
			t.Errorf("%s: got %v after close, want %v", l, f.State[l], Safe(l))
		}
	}

	f.Reset()
	if f.Closed || f.Writes != nil {
		t.Error("reset should clear writes and closed flag")
	}
}

func TestRawLevels(t *testing.T) {
	tests := []struct {
		line Line
		on   bool
		want int
	}{
		{Bypass, true, 0},
		{Bypass, false, 1},
		{Alarm, true, 1},
		{Alarm, false, 0},
		{FaultLamp, true, 1},
		{ReadyLamp, false, 0},
	}
	for _, tt := range tests {
		if got := raw(tt.line, tt.on); got != tt.want {
			t.Errorf("raw(%s, %v): got %d, want %d", tt.line, tt.on, got, tt.want)
		}
	}
}

func TestPinsOffset(t *testing.T) {
	p := Pins{Bypass: 1, Alarm: 2, FaultLamp: 3, ReadyLamp: 4}
	for i, l := range Lines {
		if got := p.offset(l); got != i+1 {
			t.Errorf("offset(%s): got %d, want %d", l, got, i+1)
		}
	}
	if p.offset(Line(42)) != -1 {
		t.Error("unknown line should map to -1")
	}
	if Line(42).String() != "line(42)" {
		t.Errorf("String: %s", Line(42))
	}
}

func TestHooked(t *testing.T) {
	f := NewFakeOutputs()
	var got []bool
	o := Hooked(f, Bypass, func(on bool) { got = append(got, on) })

	o.Set(Alarm, true)
	o.Set(Bypass, false)
	o.Set(Bypass, true)

	if len(got) != 2 || got[0] != false || got[1] != true {
		t.Errorf("hook calls: %v", got)
	}

	f.SetError = errors.New("bus error")
	if err := o.Set(Bypass, false); err == nil {
		t.Error("expected error")
	}
	if len(got) != 2 {
		t.Error("hook should not fire on failed write")
	}

	if err := o.Close(); err != nil || !f.Closed {
		t.Errorf("close should pass through: err=%v closed=%v", err, f.Closed)
	}
}
