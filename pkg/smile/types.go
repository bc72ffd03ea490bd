package smile

// Actuator is one controllable functionality with declared bounds: setpoint,
// lower_bound, upper_bound and resolution, keyed by field name.
type Actuator map[string]float64

// Device is the normalized record for one appliance known to the gateway.
// Empty buckets are omitted from the marshalled form.
type Device struct {
	DevClass         string              `json:"dev_class" yaml:"dev_class"`
	Name             string              `json:"name,omitempty" yaml:"name,omitempty"`
	Model            string              `json:"model,omitempty" yaml:"model,omitempty"`
	Vendor           string              `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Firmware         string              `json:"firmware,omitempty" yaml:"firmware,omitempty"`
	Hardware         string              `json:"hardware,omitempty" yaml:"hardware,omitempty"`
	Location         string              `json:"location,omitempty" yaml:"location,omitempty"`
	MACAddress       string              `json:"mac_address,omitempty" yaml:"mac_address,omitempty"`
	ZigbeeMACAddress string              `json:"zigbee_mac_address,omitempty" yaml:"zigbee_mac_address,omitempty"`
	Members          []string            `json:"members,omitempty" yaml:"members,omitempty"`
	Available        *bool               `json:"available,omitempty" yaml:"available,omitempty"`
	Sensors          map[string]float64  `json:"sensors,omitempty" yaml:"sensors,omitempty"`
	BinarySensors    map[string]bool     `json:"binary_sensors,omitempty" yaml:"binary_sensors,omitempty"`
	Switches         map[string]bool     `json:"switches,omitempty" yaml:"switches,omitempty"`
	Actuators        map[string]Actuator `json:"actuators,omitempty" yaml:"actuators,omitempty"`

	// Thermostat-only fields.
	Mode                 string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AvailableSchedules   []string `json:"available_schedules,omitempty" yaml:"available_schedules,omitempty"`
	SelectSchedule       string   `json:"select_schedule,omitempty" yaml:"select_schedule,omitempty"`
	PresetModes          []string `json:"preset_modes,omitempty" yaml:"preset_modes,omitempty"`
	ActivePreset         string   `json:"active_preset,omitempty" yaml:"active_preset,omitempty"`
	ControlState         string   `json:"control_state,omitempty" yaml:"control_state,omitempty"`
	RegulationModes      []string `json:"regulation_modes,omitempty" yaml:"regulation_modes,omitempty"`
	SelectRegulationMode string   `json:"select_regulation_mode,omitempty" yaml:"select_regulation_mode,omitempty"`
	DHWModes             []string `json:"dhw_modes,omitempty" yaml:"dhw_modes,omitempty"`
	SelectDHWMode        string   `json:"select_dhw_mode,omitempty" yaml:"select_dhw_mode,omitempty"`
}

// Gateway is the per-snapshot summary of the gateway itself.
type Gateway struct {
	GatewayID      string                       `json:"gateway_id" yaml:"gateway_id"`
	ItemCount      int                          `json:"item_count" yaml:"item_count"`
	Notifications  map[string]map[string]string `json:"notifications" yaml:"notifications"`
	SmileName      string                       `json:"smile_name" yaml:"smile_name"`
	HeaterID       string                       `json:"heater_id,omitempty" yaml:"heater_id,omitempty"`
	CoolingPresent *bool                        `json:"cooling_present,omitempty" yaml:"cooling_present,omitempty"`
}

// Snapshot is the immutable result of one update cycle: the gateway summary
// plus the full device mapping, with DeviceList preserving collection order
// (heater_central pinned second, gateway first, when both exist).
type Snapshot struct {
	Gateway    Gateway            `json:"gateway" yaml:"gateway"`
	Devices    map[string]*Device `json:"devices" yaml:"devices"`
	DeviceList []string           `json:"device_list" yaml:"device_list"`
}

// Capabilities is the immutable description of the connected installation,
// produced once during Connect and passed into every update cycle.
type Capabilities struct {
	SmileName    string
	SmileType    string
	SmileModel   string
	SmileVersion string
	Hostname     string
	MACAddress   string
	Firmware     string
	Hardware     string

	Legacy          bool
	IsThermostat    bool
	OnOffDevice     bool
	OpenThermDevice bool
	CoolingPresent  bool
	Elga            bool
	StretchV2       bool
	StretchV3       bool
}

// IsAnna reports whether the installation is a single-zone Anna thermostat.
func (c Capabilities) IsAnna() bool { return c.SmileName == smileAnna }

// IsAdam reports whether the installation is a zone-capable Adam gateway.
func (c Capabilities) IsAdam() bool { return c.SmileName == smileAdam }

// leafCount returns the number of leaf data points in the device record: one
// per populated scalar attribute, one per list attribute, one per sensor,
// binary sensor and switch entry, and one per actuator field. The snapshot's
// item counter is the sum of this over all devices plus the gateway summary
// fields, computed functionally at assembly time.
func (d *Device) leafCount() int {
	count := 1 // dev_class
	for _, s := range []string{
		d.Name, d.Model, d.Vendor, d.Firmware, d.Hardware, d.Location,
		d.MACAddress, d.ZigbeeMACAddress,
		d.Mode, d.SelectSchedule, d.ActivePreset, d.ControlState,
		d.SelectRegulationMode, d.SelectDHWMode,
	} {
		if s != "" {
			count++
		}
	}
	for _, present := range []bool{
		d.Members != nil,
		d.Available != nil,
		d.AvailableSchedules != nil,
		d.PresetModes != nil,
		d.RegulationModes != nil,
		d.DHWModes != nil,
	} {
		if present {
			count++
		}
	}
	count += len(d.Sensors) + len(d.BinarySensors) + len(d.Switches)
	for _, actuator := range d.Actuators {
		count += len(actuator)
	}
	return count
}

// leafCount for the gateway summary: gateway_id, smile_name and notifications
// always count; heater_id and cooling_present when present.
func (g Gateway) leafCount() int {
	count := 3
	if g.HeaterID != "" {
		count++
	}
	if g.CoolingPresent != nil {
		count++
	}
	return count
}

// ItemTotal recomputes the leaf count of the snapshot. It always equals
// Gateway.ItemCount.
func (s *Snapshot) ItemTotal() int {
	count := s.Gateway.leafCount()
	for _, device := range s.Devices {
		count += device.leafCount()
	}
	return count
}
