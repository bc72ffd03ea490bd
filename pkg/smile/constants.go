package smile

// Gateway endpoints.
const (
	endpointAppliances    = "/core/appliances"
	endpointDomainObjects = "/core/domain_objects"
	endpointLocations     = "/core/locations"
	endpointModules       = "/core/modules"
	endpointNotifications = "/core/notifications"
	endpointRules         = "/core/rules"
	endpointStatus        = "/system/status.xml"
)

// Units of measurement as reported by the gateway.
const (
	unitCelsius      = "°C"
	unitPercent      = "%"
	unitWatt         = "W"
	unitWattHour     = "Wh"
	unitKiloWattHour = "kWh"
	unitCubicMeter   = "m3"
	unitVolt         = "V"
	unitBar          = "bar"
	unitLumen        = "lm"
	unitNone         = ""
)

// Smile product names.
const (
	smileAnna    = "Smile Anna"
	smileAdam    = "Adam"
	smileP1      = "Smile P1"
	smileStretch = "Stretch"
)

// Installation types.
const (
	typeThermostat = "thermostat"
	typePower      = "power"
	typeStretch    = "stretch"
)

// Synthetic ids for legacy gateways that lack location/appliance records.
const (
	fakeLocationID  = "0000aaaa0000aaaa0000aaaa0000aa00"
	fakeApplianceID = "aaaa0000aaaa0000aaaa0000aaaa00aa"
)

// Zone thermostat setpoint range used for the heat_cool envelope.
const (
	minSetpoint = 4.0
	maxSetpoint = 30.0
)

// noSchedule is the sentinel for "no schedule selected".
const noSchedule = "None"

// Rule template tags.
const (
	ruleTagSchedule = "zone_preset_based_on_time_and_presence_with_override"
	ruleTagPreset   = "zone_setpoint_and_state_based_on_preset"
)

// smileProduct maps a detected model_v<major> string to the product it represents.
type smileProduct struct {
	name      string
	smileType string
	legacy    bool
}

// supportedSmiles is the table of gateway generations this library understands.
// Connecting to anything else fails with ErrUnsupportedDevice.
var supportedSmiles = map[string]smileProduct{
	"smile_thermo_v1":     {smileAnna, typeThermostat, true},
	"smile_thermo_v3":     {smileAnna, typeThermostat, false},
	"smile_thermo_v4":     {smileAnna, typeThermostat, false},
	"smile_open_therm_v2": {smileAdam, typeThermostat, false},
	"smile_open_therm_v3": {smileAdam, typeThermostat, false},
	"smile_v2":            {smileP1, typePower, true},
	"smile_v3":            {smileP1, typePower, false},
	"smile_v4":            {smileP1, typePower, false},
	"stretch_v2":          {smileStretch, typeStretch, true},
	"stretch_v3":          {smileStretch, typeStretch, true},
}

// measurement describes one entry of a measurement vocabulary: the key it is
// published under (name, empty means the log type itself) and its unit.
type measurement struct {
	name string
	unit string
}

func (m measurement) key(logType string) string {
	if m.name != "" {
		return m.name
	}
	return logType
}

// deviceMeasurements is the generic per-appliance measurement vocabulary.
var deviceMeasurements = map[string]measurement{
	"battery":                  {unit: unitPercent},
	"domestic_hot_water_state": {name: "dhw_state"},
	"electricity_consumed":     {unit: unitWatt},
	"electricity_produced":     {unit: unitWatt},
	"humidity":                 {unit: unitPercent},
	"illuminance":              {unit: unitLumen},
	"outdoor_temperature":      {unit: unitCelsius},
	"relay":                    {},
	"temperature":              {unit: unitCelsius},
	"temperature_difference":   {unit: unitCelsius},
	"thermostat":               {name: "setpoint", unit: unitCelsius},
	"valve_position":           {unit: unitPercent},
}

// heaterCentralMeasurements is the vocabulary for the designated heater on a
// thermostat installation.
var heaterCentralMeasurements = map[string]measurement{
	"boiler_state":                    {name: "flame_state"},
	"boiler_temperature":              {name: "water_temperature", unit: unitCelsius},
	"central_heater_water_pump_state": {name: "heating_pump_state"},
	"central_heating_state":           {name: "c_heating_state"},
	"cooling_enabled":                 {},
	"cooling_state":                   {},
	"domestic_hot_water_comfort_mode": {name: "dhw_cm_switch"},
	"domestic_hot_water_setpoint":     {name: "max_dhw_temperature", unit: unitCelsius},
	"domestic_hot_water_state":        {name: "dhw_state"},
	"domestic_hot_water_temperature":  {name: "dhw_temperature", unit: unitCelsius},
	"elga_status_code":                {},
	"intended_boiler_temperature":     {unit: unitCelsius},
	"modulation_level":                {unit: unitPercent},
	"return_water_temperature":        {name: "return_temperature", unit: unitCelsius},
	"slave_boiler_state":              {},
	"water_pressure":                  {unit: unitBar},
}

// p1Measurements is the smartmeter vocabulary for current-generation P1
// gateways (logs live under the location element).
var p1Measurements = map[string]measurement{
	"electricity_consumed":             {unit: unitWatt},
	"electricity_produced":             {unit: unitWatt},
	"electricity_phase_one_consumed":   {unit: unitWatt},
	"electricity_phase_two_consumed":   {unit: unitWatt},
	"electricity_phase_three_consumed": {unit: unitWatt},
	"electricity_phase_one_produced":   {unit: unitWatt},
	"electricity_phase_two_produced":   {unit: unitWatt},
	"electricity_phase_three_produced": {unit: unitWatt},
	"voltage_phase_one":                {unit: unitVolt},
	"voltage_phase_two":                {unit: unitVolt},
	"voltage_phase_three":              {unit: unitVolt},
	"gas_consumed":                     {unit: unitCubicMeter},
}

// p1LegacyMeasurements is the smartmeter vocabulary for legacy P1 gateways
// (meter services live under the module elements).
var p1LegacyMeasurements = map[string]measurement{
	"electricity_consumed": {unit: unitWatt},
	"electricity_produced": {unit: unitWatt},
	"gas_consumed":         {unit: unitCubicMeter},
}

// obsoleteMeasurements are only published when their log was updated within
// the last 7 days.
var obsoleteMeasurements = map[string]struct{}{
	"central_heater_water_pump_state": {},
	"slave_boiler_state":              {},
}

// Classification of measurement keys into output buckets.
var (
	binarySensorKeys = map[string]struct{}{
		"cooling_enabled":    {},
		"cooling_state":      {},
		"dhw_state":          {},
		"flame_state":        {},
		"heating_pump_state": {},
		"heating_state":      {},
		"slave_boiler_state": {},
	}
	switchKeys = map[string]struct{}{
		"cooling_ena_switch": {},
		"dhw_cm_switch":      {},
		"lock":               {},
		"relay":              {},
	}
)

// Appliance classes.
var (
	thermostatClasses = map[string]struct{}{
		"thermostat":                  {},
		"thermostatic_radiator_valve": {},
		"zone_thermometer":            {},
		"zone_thermostat":             {},
	}

	// zoneThermostats are the classes that carry climate data (presets,
	// schedules, mode) once ranking has demoted the slaves.
	zoneThermostats = thermostatClasses

	actuatorClasses = map[string]struct{}{
		"gateway":                     {},
		"heater_central":              {},
		"thermostat":                  {},
		"thermostatic_radiator_valve": {},
		"zone_thermometer":            {},
		"zone_thermostat":             {},
	}

	// specialPlugTypes never expose a relay lock.
	specialPlugTypes = map[string]struct{}{
		"central_heating_pump": {},
		"heater_electric":      {},
		"valve_actuator":       {},
	}

	switchGroupTypes = map[string]struct{}{
		"report":    {},
		"switching": {},
	}
)

// thermostatPriority ranks thermostat classes per zone; the highest priority
// in a zone becomes master, the rest become passive sensors.
var thermostatPriority = map[string]int{
	"thermostat":                  3,
	"zone_thermometer":            2,
	"zone_thermostat":             2,
	"thermostatic_radiator_valve": 1,
}

// activeActuators are the actuator functionality kinds read per device, in a
// fixed order. domestic_hot_water_setpoint is published as
// max_dhw_temperature.
var activeActuators = []string{
	"thermostat",
	"domestic_hot_water_setpoint",
	"maximum_boiler_temperature",
	"temperature_offset",
}

// actuatorLimits are the fields read per actuator functionality.
var actuatorLimits = []string{"lower_bound", "upper_bound", "resolution", "setpoint", "offset"}

// toggleFunctionalities maps heater-central toggle types to their switch key.
var toggleFunctionalities = map[string]string{
	"cooling_enabled":                 "cooling_ena_switch",
	"domestic_hot_water_comfort_mode": "dhw_cm_switch",
}

// versionModels maps a hardware version to the canonical product name.
var versionModels = map[string]string{
	"143.1":  "ThermoTouch",
	"159.2":  "Gateway",
	"106-03": "Tom/Floor",
	"158-01": "Lisa",
	"160-01": "Plug",
	"168-01": "Jip",
	"038":    "Circle+",
	"039":    "Circle",
	"044":    "Stealth M+",
	"048":    "Stealth",
}

// Notification phrases used for availability inference.
const (
	notifyNoOpenTherm = "no OpenTherm communication"
	notifyNoP1Meter   = "P1 does not seem to be connected to a smart meter"
)
