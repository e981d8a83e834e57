package lifx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.yhsif.com/lifxlan"
)

const tolerance = 1e-9

func TestCircleRoundTrip(t *testing.T) {
	for h := 0.0; h < HueScale; h += 0.5 {
		got := DecodeCircle(EncodeCircle(h))
		if math.Abs(got-h) > tolerance {
			t.Fatalf("DecodeCircle(EncodeCircle(%v)) = %v", h, got)
		}
	}
}

func TestPercentRoundTrip(t *testing.T) {
	for p := 0.0; p <= 100; p += 0.25 {
		got := DecodePercent(EncodePercent(p))
		if math.Abs(got-p) > tolerance {
			t.Fatalf("DecodePercent(EncodePercent(%v)) = %v", p, got)
		}
	}
}

func TestFractionRoundTrip(t *testing.T) {
	for f := 0.0; f <= 1; f += 0.01 {
		if got := EncodeCircle(DecodeCircle(f)); math.Abs(got-f) > tolerance {
			t.Fatalf("circle: %v -> %v", f, got)
		}
		if got := EncodePercent(DecodePercent(f)); math.Abs(got-f) > tolerance {
			t.Fatalf("percent: %v -> %v", f, got)
		}
	}
}

func TestDisplayRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		color HSBK
	}{
		{"warm white", HSBK{Hue: 0, Saturation: 0, Brightness: 1, Kelvin: 2700}},
		{"deep blue", HSBK{Hue: 0.66, Saturation: 1, Brightness: 0.4, Kelvin: 3500}},
		{"dim red", HSBK{Hue: 0.999, Saturation: 0.8, Brightness: 0.05, Kelvin: 9000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.color.ToDisplay().HSBK()
			assert.InDelta(t, tt.color.Hue, got.Hue, tolerance)
			assert.InDelta(t, tt.color.Saturation, got.Saturation, tolerance)
			assert.InDelta(t, tt.color.Brightness, got.Brightness, tolerance)
			assert.Equal(t, tt.color.Kelvin, got.Kelvin)
		})
	}
}

func TestClampKelvin(t *testing.T) {
	assert.Equal(t, MinKelvin, ClampKelvin(0))
	assert.Equal(t, MaxKelvin, ClampKelvin(20000))
	assert.Equal(t, uint16(4000), ClampKelvin(3999.6))
}

func TestWireConversion(t *testing.T) {
	assert.Equal(t, uint16(0), toWire(-0.2))
	assert.Equal(t, uint16(math.MaxUint16), toWire(1.5))
	for _, f := range []float64{0, 0.25, 0.5, 0.75, 1} {
		assert.InDelta(t, f, fromWire(toWire(f)), 1.0/math.MaxUint16)
	}
}

func TestDisplaySameAs(t *testing.T) {
	a := Display{Hue: 120.2, Saturation: 50.9, Brightness: 10, Kelvin: 3500}
	b := Display{Hue: 120.8, Saturation: 50.1, Brightness: 10.4, Kelvin: 3500.5}
	assert.True(t, a.SameAs(b))

	b.Hue = 121
	assert.False(t, a.SameAs(b))
}

func TestCapabilities(t *testing.T) {
	caps := Color | Temperature
	assert.True(t, caps.Has(Color))
	assert.True(t, caps.Has(Color|Temperature))
	assert.False(t, caps.Has(Infrared))
	assert.Equal(t, "color,temperature", caps.String())
	assert.Equal(t, "none", Capabilities(0).String())
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "d0:73:d5:aa:bb:cc", NormalizeID(" D0:73:D5:AA:BB:CC "))
}

func TestProductCapabilities(t *testing.T) {
	tests := []struct {
		name      string
		hw        *lifxlan.HardwareVersion
		fw        lifxlan.FirmwareUpgrade
		wantCaps  Capabilities
		wantModel string
	}{
		{"nil hardware", nil, lifxlan.FirmwareUpgrade{}, 0, ""},
		{"color bulb", &lifxlan.HardwareVersion{VendorID: 1, ProductID: 27}, lifxlan.FirmwareUpgrade{}, Color | Temperature, "LIFX A19"},
		{"color bulb on upgraded firmware", &lifxlan.HardwareVersion{VendorID: 1, ProductID: 27}, lifxlan.FirmwareUpgrade{Major: 3, Minor: 70}, Color | Temperature, "LIFX A19"},
		{"white bulb", &lifxlan.HardwareVersion{VendorID: 1, ProductID: 10}, lifxlan.FirmwareUpgrade{}, Temperature, "LIFX White 800 (Low Voltage)"},
		{"infrared bulb", &lifxlan.HardwareVersion{VendorID: 1, ProductID: 29}, lifxlan.FirmwareUpgrade{}, Color | Temperature | Infrared, "LIFX A19 Night Vision"},
		{"relay switch", &lifxlan.HardwareVersion{VendorID: 1, ProductID: 70}, lifxlan.FirmwareUpgrade{}, 0, "LIFX Switch"},
		{"unknown product", &lifxlan.HardwareVersion{VendorID: 99, ProductID: 9999}, lifxlan.FirmwareUpgrade{}, Temperature, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, model := productCapabilities(tt.hw, tt.fw)
			assert.Equal(t, tt.wantCaps, caps)
			assert.Equal(t, tt.wantModel, model)
		})
	}
}
