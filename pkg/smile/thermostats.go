package smile

import "github.com/clambin/go-common/set"

// zone is the thermostat ranking state for one location: the elected master,
// its priority, and the demoted slaves.
type zone struct {
	master     string
	masterPrio int
	slaves     set.Set[string]
}

// rankThermostats elects one master thermostat per zone and demotes the rest
// to passive sensors. A device only displaces the current master when its
// class priority is strictly higher, so among equals the earliest-collected
// device wins and keeps winning.
func (b *builder) rankThermostats() {
	b.matchLocations()

	for _, locID := range b.locOrder {
		z, ok := b.zones[locID]
		if !ok {
			continue
		}
		for _, devID := range b.order {
			b.rankThermostat(z, locID, devID)
		}
	}

	for _, devID := range b.order {
		dev := b.devices[devID]
		z, ok := b.zones[dev.Location]
		if ok && z.slaves.Contains(devID) {
			dev.DevClass = "thermo_sensor"
		}
	}
}

// matchLocations initializes ranking state for every location that has at
// least one device bound to it.
func (b *builder) matchLocations() {
	for _, locID := range b.locOrder {
		for _, devID := range b.order {
			if b.devices[devID].Location == locID {
				b.zones[locID] = &zone{slaves: set.New[string]()}
				break
			}
		}
	}
}

func (b *builder) rankThermostat(z *zone, locID string, devID string) {
	dev := b.devices[devID]
	prio, ranked := thermostatPriority[dev.DevClass]
	if dev.Location != locID || !ranked {
		return
	}
	if prio > z.masterPrio {
		if z.master != "" {
			z.slaves.Add(z.master)
		}
		z.masterPrio = prio
		z.master = devID
		return
	}
	z.slaves.Add(devID)
}

// findOffsetCapableDevices records which appliances expose a temperature
// offset actuator, checked when a caller asks to change the offset.
func (b *builder) findOffsetCapableDevices() {
	for _, appliance := range b.docs.appliances.FindAll("./appliance") {
		locator := "./actuator_functionalities/offset_functionality[type='temperature_offset']/offset"
		if appliance.Find(locator) != nil {
			b.offsetFunc[appliance.Attr("id")] = struct{}{}
		}
	}
}
