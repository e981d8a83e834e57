package lifx

import "strings"

// Capabilities is the set of optional features a light model supports.
type Capabilities uint8

const (
	Color Capabilities = 1 << iota
	Temperature
	Infrared
)

// Has reports whether every flag in c is set.
func (caps Capabilities) Has(c Capabilities) bool {
	return caps&c == c
}

func (caps Capabilities) String() string {
	var parts []string
	if caps.Has(Color) {
		parts = append(parts, "color")
	}
	if caps.Has(Temperature) {
		parts = append(parts, "temperature")
	}
	if caps.Has(Infrared) {
		parts = append(parts, "infrared")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// HSBK is a light color with hue, saturation and brightness as fractions in
// [0,1] and color temperature in kelvin.
type HSBK struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Brightness float64 `json:"brightness"`
	Kelvin     uint16  `json:"kelvin"`
}

// InfoKey names an entry of a light's free-form info map.
type InfoKey string

const (
	InfoModel    InfoKey = "model"
	InfoIP       InfoKey = "ip"
	InfoGroup    InfoKey = "group"
	InfoLocation InfoKey = "location"
)

// Info holds descriptive attributes reported by a light.
type Info map[InfoKey]string
