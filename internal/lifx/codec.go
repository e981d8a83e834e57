package lifx

import "math"

// HueScale is the on-screen range of the hue slider.
const HueScale = 365.0

// Kelvin bounds accepted by LIFX bulbs.
const (
	MinKelvin uint16 = 1500
	MaxKelvin uint16 = 9000
)

// DecodeCircle converts a hue fraction to its on-screen value in [0,HueScale).
func DecodeCircle(f float64) float64 {
	return f * HueScale
}

// EncodeCircle converts an on-screen hue back to a fraction.
func EncodeCircle(h float64) float64 {
	return h / HueScale
}

// DecodePercent converts a fraction to a percentage in [0,100].
func DecodePercent(f float64) float64 {
	return f * 100
}

// EncodePercent converts a percentage back to a fraction.
func EncodePercent(p float64) float64 {
	return p / 100
}

// Display is a color as presented by sliders: hue on [0,365), saturation
// and brightness as percentages, and kelvin as is.
type Display struct {
	Hue        float64
	Saturation float64
	Brightness float64
	Kelvin     float64
}

// ToDisplay converts fractions to slider values.
func (c HSBK) ToDisplay() Display {
	return Display{
		Hue:        DecodeCircle(c.Hue),
		Saturation: DecodePercent(c.Saturation),
		Brightness: DecodePercent(c.Brightness),
		Kelvin:     float64(c.Kelvin),
	}
}

// HSBK converts slider values back to fractions.
func (d Display) HSBK() HSBK {
	return HSBK{
		Hue:        EncodeCircle(d.Hue),
		Saturation: EncodePercent(d.Saturation),
		Brightness: EncodePercent(d.Brightness),
		Kelvin:     ClampKelvin(d.Kelvin),
	}
}

// SameAs compares two displays at whole-unit precision, which is the
// resolution of the sliders.
func (d Display) SameAs(o Display) bool {
	return int(d.Hue) == int(o.Hue) &&
		int(d.Saturation) == int(o.Saturation) &&
		int(d.Brightness) == int(o.Brightness) &&
		int(d.Kelvin) == int(o.Kelvin)
}

// ClampKelvin rounds k into the supported kelvin range.
func ClampKelvin(k float64) uint16 {
	switch {
	case k < float64(MinKelvin):
		return MinKelvin
	case k > float64(MaxKelvin):
		return MaxKelvin
	}
	return uint16(math.Round(k))
}

// toWire converts a fraction to the 16-bit representation used on the LAN.
func toWire(f float64) uint16 {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return math.MaxUint16
	}
	return uint16(math.Round(f * math.MaxUint16))
}

// fromWire converts a 16-bit LAN value to a fraction.
func fromWire(v uint16) float64 {
	return float64(v) / math.MaxUint16
}
