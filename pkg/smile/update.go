package smile

import "log/slog"

// builder assembles one Snapshot from one set of fetched documents. A fresh
// builder is created per update cycle; the only state carried across cycles
// is the last-active schedule memory passed in from the Client.
type builder struct {
	caps   Capabilities
	prof   profile
	docs   *documents
	logger *slog.Logger

	devices      map[string]*Device
	order        []string
	locations    map[string]string // location id -> name
	locOrder     []string
	homeLocation string
	zones        map[string]*zone // location id -> thermostat ranking

	gatewayID     string
	heaterID      string
	notifications map[string]map[string]string

	coolingPresent *bool
	coolingEnabled bool
	coolingActive  bool
	stagedHeating  *bool

	regModes      []string
	selectRegMode string
	dhwModes      []string
	selectDHWMode string

	offsetFunc map[string]struct{}
	lastActive map[string]string
	oldStates  map[string]map[string]string
}

func newBuilder(caps Capabilities, prof profile, docs *documents, lastActive map[string]string, logger *slog.Logger) *builder {
	return &builder{
		caps:       caps,
		prof:       prof,
		docs:       docs,
		logger:     logger,
		devices:    make(map[string]*Device),
		locations:  make(map[string]string),
		zones:      make(map[string]*zone),
		offsetFunc: make(map[string]struct{}),
		lastActive: lastActive,
		oldStates:  make(map[string]map[string]string),
	}
}

// build runs the full reconciliation: locations, appliances, thermostat
// ranking, switch groups, then per-device data collection. It either returns
// a complete Snapshot or an error; there are no partial results.
func (b *builder) build() (*Snapshot, error) {
	b.notifications = b.docs.notifications()
	b.collectLocations()

	if err := b.prof.collectDevices(b); err != nil {
		return nil, err
	}
	if b.caps.IsThermostat {
		b.rankThermostats()
		b.findOffsetCapableDevices()
	}
	b.groupSwitches()
	b.pinGatewayFirst()

	for _, id := range b.order {
		if err := b.deviceData(id, b.devices[id]); err != nil {
			return nil, err
		}
	}
	if b.caps.IsThermostat {
		present := b.coolingAvailable()
		b.coolingPresent = &present
	}

	snapshot := &Snapshot{
		Gateway: Gateway{
			GatewayID:      b.gatewayID,
			Notifications:  b.notifications,
			SmileName:      b.caps.SmileName,
			HeaterID:       b.heaterID,
			CoolingPresent: b.coolingPresent,
		},
		Devices:    b.devices,
		DeviceList: b.order,
	}
	snapshot.Gateway.ItemCount = snapshot.ItemTotal()
	return snapshot, nil
}

// addDevice registers a device in collection order. Re-adding an id updates
// the record without disturbing the order.
func (b *builder) addDevice(id string, dev *Device) {
	if _, exists := b.devices[id]; !exists {
		b.order = append(b.order, id)
	}
	b.devices[id] = dev
}

// pinGatewayFirst moves heater_central to the front, then the gateway in
// front of that, so the list always starts gateway, heater_central, rest.
func (b *builder) pinGatewayFirst() {
	for _, devClass := range []string{"heater_central", "gateway"} {
		for i, id := range b.order {
			if b.devices[id].DevClass != devClass {
				continue
			}
			b.order = append(b.order[:i], b.order[i+1:]...)
			b.order = append([]string{id}, b.order...)
			break
		}
	}
}

// deviceData fills one device record with measurements, actuator data and,
// for climate-capable devices, schedule/preset/mode information.
func (b *builder) deviceData(id string, dev *Device) error {
	switch {
	case dev.DevClass == "gateway":
		b.gatewayData(id, dev)
	case dev.DevClass == "heater_central":
		if err := b.heaterCentralData(id, dev); err != nil {
			return err
		}
	case dev.DevClass == "smartmeter":
		if err := b.smartmeterData(id, dev); err != nil {
			return err
		}
	default:
		if _, group := switchGroupTypes[dev.DevClass]; group {
			b.switchGroupData(dev)
			break
		}
		b.applianceData(id, dev)
	}

	if _, climate := zoneThermostats[dev.DevClass]; climate && b.caps.IsThermostat {
		b.climateData(id, dev)
		if !b.caps.IsAdam() {
			b.updateForCooling(dev)
		}
	}
	return nil
}

func (b *builder) gatewayData(id string, dev *Device) {
	if b.caps.IsThermostat || b.caps.SmileType == typePower {
		b.setBinarySensor(dev, "plugwise_notification", len(b.notifications) > 0)
	}
	if b.caps.IsThermostat {
		b.regulationModes(dev)
		if b.caps.IsAnna() || !b.caps.Legacy {
			b.outdoorTemperature(dev)
		}
	}
	b.applianceMeasurements(id, dev, deviceMeasurements)
	b.applianceActuators(id, dev)
}

func (b *builder) heaterCentralData(id string, dev *Device) error {
	b.applianceMeasurements(id, dev, heaterCentralMeasurements)
	b.applianceActuators(id, dev)
	b.heaterToggles(id, dev)
	b.dhwModesData(id, dev)
	if err := b.heaterAvailability(dev); err != nil {
		return err
	}
	// The heater is processed right after the gateway, so the cooling flags
	// resolved here are in place before any thermostat is visited.
	b.resolveHeatingState(dev)
	b.suppressCooling(dev)
	b.heatingValves(dev)
	return nil
}

// switchGroupData derives the group's relay state: on when any member relay
// is on. Groups are processed after their members, so the member state is
// already in place.
func (b *builder) switchGroupData(dev *Device) {
	on := 0
	for _, member := range dev.Members {
		if b.devices[member].Switches["relay"] {
			on++
		}
	}
	b.setSwitch(dev, "relay", on != 0)
}

func (b *builder) applianceData(id string, dev *Device) {
	b.applianceMeasurements(id, dev, deviceMeasurements)
	b.applianceActuators(id, dev)
	b.applianceAvailability(id, dev)
	b.lockState(id, dev)
}
