package smile

import (
	"strings"
	"time"

	"github.com/vhamers/smile-monitor/internal/xmltree"
)

// obsoleteAfter is how long an obsolete-listed measurement stays visible after
// its last update.
const obsoleteAfter = 7 * 24 * time.Hour

func (b *builder) applianceElement(id string) *xmltree.Node {
	return b.docs.appliances.Find("./appliance[@id='" + id + "']")
}

// applianceMeasurements reads every vocabulary entry present on the appliance
// into the device's sensor, binary-sensor and switch buckets. The raw central
// heating state is staged on the builder instead of published: it needs the
// full picture before it can be attributed to heating or cooling.
func (b *builder) applianceMeasurements(id string, dev *Device, vocabulary map[string]measurement) {
	appliance := b.applianceElement(id)
	if appliance == nil {
		return
	}

	for logType, meas := range vocabulary {
		point := appliance.Find(`.//logs/point_log[type="` + logType + `"]/period/measurement`)
		if point != nil {
			if b.caps.Legacy && logType == "domestic_hot_water_state" {
				point = nil
			}
		}
		if point != nil && b.obsolete(appliance, logType) {
			point = nil
		}
		if point != nil {
			key := meas.key(logType)
			switch {
			case key == "c_heating_state":
				value := boolText(point.Text)
				b.stagedHeating = &value
			case isBinarySensor(key):
				b.setBinarySensor(dev, key, boolText(point.Text))
			case isSwitch(key):
				b.setSwitch(dev, key, boolText(point.Text))
			default:
				if value, ok := formatMeasure(point.Text, meas.unit); ok {
					b.setSensor(dev, key, value)
				}
			}
		}

		interval := appliance.Find(`.//logs/interval_log[type="` + logType + `"]/period/measurement`)
		if interval != nil {
			if value, ok := formatMeasure(interval.Text, unitWattHour); ok {
				b.setSensor(dev, meas.key(logType)+"_interval", value)
			}
		}
	}
}

// obsolete reports whether a denylisted measurement went stale: not updated
// within the retention window.
func (b *builder) obsolete(appliance *xmltree.Node, logType string) bool {
	if _, listed := obsoleteMeasurements[logType]; !listed {
		return false
	}
	updated := appliance.Find(`.//logs/point_log[type="` + logType + `"]/updated_date`)
	if updated == nil {
		return false
	}
	stamp, err := time.Parse(time.RFC3339, updated.Text)
	if err != nil {
		return false
	}
	return time.Since(stamp) > obsoleteAfter
}

func isBinarySensor(key string) bool {
	_, ok := binarySensorKeys[key]
	return ok
}

func isSwitch(key string) bool {
	_, ok := switchKeys[key]
	return ok
}

func (b *builder) setSensor(dev *Device, key string, value float64) {
	if dev.Sensors == nil {
		dev.Sensors = make(map[string]float64)
	}
	dev.Sensors[key] = value
}

func (b *builder) setBinarySensor(dev *Device, key string, value bool) {
	if dev.BinarySensors == nil {
		dev.BinarySensors = make(map[string]bool)
	}
	dev.BinarySensors[key] = value
}

func (b *builder) setSwitch(dev *Device, key string, value bool) {
	if dev.Switches == nil {
		dev.Switches = make(map[string]bool)
	}
	dev.Switches[key] = value
}

// lockState reads the relay lock switch for plug devices. Pumps, electric
// heaters and valve actuators never expose a lock.
func (b *builder) lockState(id string, dev *Device) {
	if _, special := specialPlugTypes[dev.DevClass]; special {
		return
	}
	appliance := b.applianceElement(id)
	if appliance == nil {
		return
	}
	locator := "./actuator_functionalities/relay_functionality/lock"
	if b.caps.StretchV2 {
		locator = "./actuators/relay/lock"
	}
	if lock := appliance.Find(locator); lock != nil {
		b.setSwitch(dev, "lock", lock.Text == "true")
	}
}

// heaterToggles reads the toggle functionalities on the heater_central device.
// A cooling-enable toggle supersedes the cooling_enabled binary sensor on
// everything but Elga heat pumps.
func (b *builder) heaterToggles(id string, dev *Device) {
	appliance := b.applianceElement(id)
	if appliance == nil {
		return
	}
	for toggle, key := range toggleFunctionalities {
		state := appliance.Find(`.//actuator_functionalities/toggle_functionality[type="` + toggle + `"]/state`)
		if state == nil {
			continue
		}
		b.setSwitch(dev, key, boolText(state.Text))
		if toggle == "cooling_enabled" && !b.caps.Elga {
			delete(dev.BinarySensors, "cooling_enabled")
		}
	}
}

// applianceActuators reads the actuator functionalities with their bounds.
// An actuator with an empty updated_date was never configured and is skipped.
// The temperature offset has no bounds in the document, they are fixed by the
// firmware at ±2.0 with 0.1 steps, and the raw offset tag is published as
// setpoint like every other actuator.
func (b *builder) applianceActuators(id string, dev *Device) {
	if _, ok := actuatorClasses[dev.DevClass]; !ok && dev.DevClass != "thermo_sensor" {
		return
	}
	appliance := b.applianceElement(id)
	if appliance == nil {
		return
	}

	for _, item := range activeActuators {
		if item == "thermostat" && dev.DevClass == "thermo_sensor" {
			continue
		}
		functionality := "thermostat_functionality"
		if item == "temperature_offset" {
			if b.caps.Legacy {
				continue
			}
			functionality = "offset_functionality"
		}

		prefix := `.//actuator_functionalities/` + functionality + `[type="` + item + `"]/`
		if updated := appliance.Find(prefix + "updated_date"); updated != nil && updated.Text == "" {
			continue
		}

		actuator := Actuator{}
		for _, field := range actuatorLimits {
			node := appliance.Find(prefix + field)
			if node == nil {
				continue
			}
			if field == "offset" {
				actuator["lower_bound"] = -2.0
				actuator["upper_bound"] = 2.0
				actuator["resolution"] = 0.1
				field = "setpoint"
			}
			if value, ok := formatMeasure(node.Text, unitCelsius); ok {
				actuator[field] = value
			}
		}
		if len(actuator) == 0 {
			continue
		}

		name := item
		if item == "domestic_hot_water_setpoint" {
			// Published under the same name as its measurement twin, which
			// the actuator replaces.
			name = "max_dhw_temperature"
			delete(dev.Sensors, "max_dhw_temperature")
		}
		if dev.Actuators == nil {
			dev.Actuators = make(map[string]Actuator)
		}
		dev.Actuators[name] = actuator
	}
}

// regulationModes reads the gateway's regulation-mode actuator: the list of
// allowed modes, the current one, and whether cooling is a possibility at all.
func (b *builder) regulationModes(dev *Device) {
	locator := "./appliance[type='gateway']/actuator_functionalities/regulation_mode_control_functionality"
	control := b.docs.domainObjects.Find(locator)
	if control == nil {
		return
	}
	var modes []string
	for _, allowed := range control.FindAll("./allowed_modes/allowed_mode") {
		modes = append(modes, allowed.Text)
		if allowed.Text == "cooling" {
			present := true
			b.coolingPresent = &present
		}
	}
	if len(modes) == 0 {
		return
	}
	b.regModes = modes
	dev.RegulationModes = modes
	if mode := control.ChildText("mode"); mode != "" {
		b.selectRegMode = mode
		dev.SelectRegulationMode = mode
		b.coolingEnabled = mode == "cooling"
	}
}

// dhwModesData reads the domestic hot water mode actuator on the heater.
func (b *builder) dhwModesData(id string, dev *Device) {
	appliance := b.applianceElement(id)
	if appliance == nil {
		return
	}
	control := appliance.Find(".//actuator_functionalities/domestic_hot_water_mode_control_functionality")
	if control == nil {
		return
	}
	var modes []string
	for _, allowed := range control.FindAll("./allowed_modes/allowed_mode") {
		modes = append(modes, allowed.Text)
	}
	if len(modes) == 0 {
		return
	}
	b.dhwModes = modes
	dev.DHWModes = modes
	if mode := control.ChildText("mode"); mode != "" {
		b.selectDHWMode = mode
		dev.SelectDHWMode = mode
	}
}

// applianceAvailability resolves reachability for wireless devices on
// zone-capable gateways: the electricity meter module is probed first, the
// thermostat module second.
func (b *builder) applianceAvailability(id string, dev *Device) {
	if !b.caps.IsAdam() {
		return
	}
	appliance := b.applianceElement(id)
	if appliance == nil {
		return
	}
	data := b.getModuleData(appliance, "./logs/interval_log[type='electricity_consumed']/electricity_interval_meter", "electricity_interval_meter")
	if data.reachable == nil {
		data = b.getModuleData(appliance, "./logs/point_log[type='thermostat']/thermostat", "thermostat")
	}
	if data.reachable != nil {
		dev.Available = data.reachable
	}
}

// heaterAvailability marks the OpenTherm boiler unavailable when the gateway
// reports loss of OpenTherm communication.
func (b *builder) heaterAvailability(dev *Device) error {
	if dev.Name == "OnOff" {
		return nil
	}
	available := true
	for _, messages := range b.notifications {
		for _, msg := range messages {
			if containsPhrase(msg, notifyNoOpenTherm) {
				available = false
			}
		}
	}
	dev.Available = &available
	return nil
}

// outdoorTemperature reads the installation-wide outdoor temperature off the
// home location. The appliance-level outdoor_temperature is a sensor local to
// the boiler and is collected separately.
func (b *builder) outdoorTemperature(dev *Device) {
	locator := `./location[@id="` + b.homeLocation + `"]/logs/point_log[type="outdoor_temperature"]/period/measurement`
	if node := b.docs.domainObjects.Find(locator); node != nil {
		if value, ok := formatMeasure(node.Text, unitNone); ok {
			b.setSensor(dev, "outdoor_temperature", value)
		}
	}
}

// resolveHeatingState attributes the staged raw central-heating flag to either
// heating or cooling, then resolves the Elga status code and cooling state.
func (b *builder) resolveHeatingState(heater *Device) {
	if b.stagedHeating != nil {
		switch {
		case b.caps.OnOffDevice && b.caps.IsAnna():
			b.setBinarySensor(heater, "heating_state", *b.stagedHeating)
		case b.caps.OnOffDevice && b.caps.IsAdam():
			// Route the single boiler flag to whichever function the
			// regulation mode has enabled; the other is necessarily off.
			b.setBinarySensor(heater, "heating_state", *b.stagedHeating && !b.coolingEnabled)
			b.setBinarySensor(heater, "cooling_state", *b.stagedHeating && b.coolingEnabled)
		case b.caps.Elga:
			b.setBinarySensor(heater, "heating_state", *b.stagedHeating)
		}
		b.stagedHeating = nil
	}

	if code, ok := heater.Sensors["elga_status_code"]; ok && !b.caps.IsAdam() {
		// Elga and Loria report cooling through a status code: 8 means
		// actively cooling, 9 means cooling enabled but idle.
		present := true
		b.coolingPresent = &present
		b.coolingEnabled = code == 8 || code == 9
		b.coolingActive = code == 8
		b.setBinarySensor(heater, "cooling_state", b.coolingActive)
		delete(heater.Sensors, "elga_status_code")
		delete(heater.Switches, "cooling_ena_switch")
	} else if b.coolingAvailable() {
		if state, ok := heater.BinarySensors["cooling_state"]; ok {
			b.coolingEnabled = state
			b.coolingActive = state
			if enabled, ok := heater.Switches["cooling_ena_switch"]; ok {
				b.coolingEnabled = enabled
			}
		}
	}
}

func (b *builder) coolingAvailable() bool {
	if b.caps.CoolingPresent {
		return true
	}
	return b.coolingPresent != nil && *b.coolingPresent
}

// suppressCooling strips cooling data from installations without cooling
// capability, so stale firmware leftovers never surface.
func (b *builder) suppressCooling(heater *Device) {
	if b.coolingAvailable() {
		return
	}
	delete(heater.BinarySensors, "cooling_state")
	delete(heater.Switches, "cooling_ena_switch")
	if !b.caps.Elga {
		delete(heater.BinarySensors, "cooling_enabled")
	}
}

// heatingValves overrides the heating state with open-valve counting for
// zone-capable installations on city heating, where the boiler flag carries
// no information.
func (b *builder) heatingValves(heater *Device) {
	if !b.caps.IsAdam() || !b.caps.OnOffDevice {
		return
	}
	open, found := b.countHeatingValves()
	if found {
		b.setBinarySensor(heater, "heating_state", open != 0)
	}
}

func containsPhrase(msg string, phrase string) bool {
	return strings.Contains(msg, phrase)
}
