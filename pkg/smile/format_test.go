package smile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMeasure(t *testing.T) {
	value, ok := formatMeasure("45.61", unitCelsius)
	assert.True(t, ok)
	assert.Equal(t, 45.6, value)

	value, ok = formatMeasure("1234.5678", unitKiloWattHour)
	assert.True(t, ok)
	assert.Equal(t, 1234.568, value)

	value, ok = formatMeasure("1.5678", unitNone)
	assert.True(t, ok)
	assert.Equal(t, 1.57, value)

	// Integral values stay integral, whatever the unit.
	value, ok = formatMeasure("50.00", unitCelsius)
	assert.True(t, ok)
	assert.Equal(t, 50.0, value)

	_, ok = formatMeasure("", unitCelsius)
	assert.False(t, ok)
	_, ok = formatMeasure("on", unitCelsius)
	assert.False(t, ok)
}

func TestPowerDataFormat(t *testing.T) {
	// Cumulative electricity is stored in kWh.
	value, ok := powerDataFormat("1234.5678", "electricity_consumed_peak_cumulative", unitWatt)
	assert.True(t, ok)
	assert.Equal(t, 1234.568, value)

	// Instantaneous power is rounded to whole watts.
	value, ok = powerDataFormat("469.6", "electricity_consumed_point", unitWatt)
	assert.True(t, ok)
	assert.Equal(t, 470.0, value)

	value, ok = powerDataFormat("112.731", "gas_consumed_cumulative", unitCubicMeter)
	assert.True(t, ok)
	assert.Equal(t, 112.731, value)
}

func TestVersionToModel(t *testing.T) {
	assert.Equal(t, "Lisa", versionToModel("158-01"))
	assert.Equal(t, "Lisa", versionToModel("158-01 (2011-05-14)"))
	assert.Equal(t, "Unknown", versionToModel("999-99"))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Zone Thermostat", titleCase("zone_thermostat"))
	assert.Equal(t, "Gateway", titleCase("gateway"))
}

func TestFormatSetpoint(t *testing.T) {
	assert.Equal(t, "20.0", formatSetpoint(20))
	assert.Equal(t, "19.5", formatSetpoint(19.5))
}
