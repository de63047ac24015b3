package sensor

import "math"

// PT100 defaults for the MAX31865 front end.
const (
	DefaultRRef     = 435.3
	DefaultRNominal = 100.0

	zeroCelsiusK = 273.15

	// Callendar-Van Dusen coefficients (IEC 60751).
	cvdA = 3.9083e-3
	cvdB = -5.775e-7
)

// RTDRawToOhms converts a raw 15-bit RTD register value to resistance.
func RTDRawToOhms(raw uint16, rRef float64) float64 {
	return rRef * float64(raw) / 32768.0
}

// OhmsToCelsius converts RTD resistance to temperature. Above 0 C the
// Callendar-Van Dusen quadratic is solved directly; below it a fifth-order
// polynomial fit in resistance is used, which stays accurate down to
// roughly -200 C.
func OhmsToCelsius(ohms, rNominal float64) float64 {
	z1 := -cvdA
	z2 := cvdA*cvdA - 4*cvdB
	z3 := 4 * cvdB / rNominal
	z4 := 2 * cvdB

	t := (math.Sqrt(z2+z3*ohms) + z1) / z4
	if t >= 0 {
		return t
	}

	rt := ohms / rNominal * 100
	poly := rt
	t = -242.02
	t += 2.2228 * poly
	poly *= rt
	t += 2.5859e-3 * poly
	poly *= rt
	t -= 4.8260e-6 * poly
	poly *= rt
	t -= 2.8183e-8 * poly
	poly *= rt
	t += 1.5243e-10 * poly
	return t
}

// CelsiusToKelvin converts C to K.
func CelsiusToKelvin(c float64) float64 { return c + zeroCelsiusK }

// KelvinToCelsius converts K to C.
func KelvinToCelsius(k float64) float64 { return k - zeroCelsiusK }

// CelsiusToFahrenheit converts C to F.
func CelsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

// FahrenheitToCelsius converts F to C.
func FahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }

// RawToKelvin converts a raw RTD register value straight to kelvin.
func RawToKelvin(raw uint16, rRef, rNominal float64) float64 {
	return CelsiusToKelvin(OhmsToCelsius(RTDRawToOhms(raw, rRef), rNominal))
}
