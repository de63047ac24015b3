package logic

import "math"

// TargetCurve maps a cold-stage temperature to a proportional actuator
// target: 0 at or above ambient, full scale at or below the setpoint, linear
// in between. NaN maps to 0 since converting it to an integer is undefined.
func TargetCurve(tempK float64, cfg Config) uint16 {
	if math.IsNaN(tempK) {
		return 0
	}
	if tempK >= cfg.AmbientK {
		return 0
	}
	if tempK <= cfg.SetpointK {
		return cfg.FullScale
	}
	frac := (cfg.AmbientK - tempK) / (cfg.AmbientK - cfg.SetpointK)
	v := math.Round(frac * float64(cfg.FullScale))
	if v <= 0 {
		return 0
	}
	if v >= float64(cfg.FullScale) {
		return cfg.FullScale
	}
	return uint16(v)
}

// CooldownPercent is the cooldown progress: 0 at ambient, 100 at the
// setpoint. It is not clamped, so values outside 0..100 mean the stage is
// warmer than ambient or colder than the setpoint.
func CooldownPercent(tempK float64, cfg Config) float64 {
	span := cfg.AmbientK - cfg.SetpointK
	if span == 0 {
		return 0
	}
	return (cfg.AmbientK - tempK) / span * 100
}

// Ramp bounds the per-tick change of the commanded actuator value.
type Ramp struct {
	MaxStep uint16
}

// Next moves last toward target by at most MaxStep. A zero MaxStep disables
// limiting.
func (r Ramp) Next(target, last uint16) uint16 {
	if r.MaxStep == 0 || target == last {
		return target
	}
	if target > last {
		if target-last > r.MaxStep {
			return last + r.MaxStep
		}
		return target
	}
	if last-target > r.MaxStep {
		return last - r.MaxStep
	}
	return target
}
