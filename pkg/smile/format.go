package smile

import (
	"math"
	"strconv"
	"strings"
)

// formatMeasure converts a raw measurement string into a number, applying the
// unit-specific rounding the gateway's consumers expect: temperatures to one
// decimal, kWh and gas volumes to three, everything else to two. Integral
// values stay integral.
func formatMeasure(raw string, unit string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	if isIntegral(value) {
		return value, true
	}
	switch unit {
	case unitCelsius:
		return round(value, 1), true
	case unitKiloWattHour, unitCubicMeter:
		return round(value, 3), true
	default:
		return round(value, 2), true
	}
}

// powerDataFormat formats metering values: cumulative electricity is always
// kWh, watts are rounded to the nearest integer, anything else goes through
// the generic formatter.
func powerDataFormat(raw string, key string, unit string) (float64, bool) {
	if strings.Contains(key, "electricity") && strings.Contains(key, "cumulative") {
		return formatMeasure(raw, unitKiloWattHour)
	}
	if unit == unitWatt {
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return 0, false
		}
		return math.Round(value), true
	}
	return formatMeasure(raw, unit)
}

func round(value float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Round(value*shift) / shift
}

func isIntegral(value float64) bool {
	return value == math.Trunc(value)
}

// versionToModel maps a hardware version string to the canonical product name.
func versionToModel(version string) string {
	version = strings.TrimSpace(version)
	if model, ok := versionModels[version]; ok {
		return model
	}
	// Stretch hardware versions carry a date suffix, e.g. "158-01 (2011-05-14)".
	if name, _, found := strings.Cut(version, " "); found {
		if model, ok := versionModels[name]; ok {
			return model
		}
	}
	return "Unknown"
}

// checkModel resolves a module's vendor model: Plugwise hardware versions are
// mapped to product names, anything else passes through.
func checkModel(name string, vendorName string) string {
	if vendorName == "Plugwise" {
		if model := versionToModel(name); model != "Unknown" {
			return model
		}
	}
	return name
}

// boolText reports whether a measurement string represents "on".
func boolText(raw string) bool {
	return raw == "on" || raw == "true"
}
