package smile

import (
	"strings"

	"github.com/vhamers/smile-monitor/internal/xmltree"
)

// moduleData is the info a module record contributes to an appliance: the
// appliance only carries a link id, vendor and version data live on the module.
type moduleData struct {
	found           bool
	vendorName      string
	vendorModel     string
	hardwareVersion string
	firmwareVersion string
	zigbeeMAC       string
	reachable       *bool
}

// getModuleData resolves the module linked from the given appliance element.
// locator points at the link element inside the appliance; modType is the
// service element carrying the same id inside one of the modules.
func (b *builder) getModuleData(appliance *xmltree.Node, locator string, modType string) moduleData {
	var data moduleData
	link := appliance.Find(locator)
	if link == nil || b.docs.modules == nil {
		return data
	}
	linkID := link.Attr("id")

	for _, module := range b.docs.modules.FindAll("./module") {
		if module.Find(".//"+modType+"[@id='"+linkID+"']") == nil {
			continue
		}
		data.found = true
		data.vendorName = module.ChildText("vendor_name")
		// Strip the legal suffix from Plugwise B.V. and friends.
		if strings.Contains(data.vendorName, "Plugwise") {
			data.vendorName, _, _ = strings.Cut(data.vendorName, " ")
		}
		data.vendorModel = module.ChildText("vendor_model")
		data.hardwareVersion = module.ChildText("hardware_version")
		data.firmwareVersion = module.ChildText("firmware_version")
		for _, protocol := range []string{"network_router", "network_coordinator"} {
			if node := module.Find("./protocols/" + protocol); node != nil {
				data.zigbeeMAC = node.ChildText("mac_address")
				if reachable := node.Child("reachable"); reachable != nil {
					value := reachable.Text == "true"
					data.reachable = &value
				}
			}
		}
		break
	}
	return data
}

// collectAppliances walks the appliance document and registers every appliance
// with its static info. Orphaned and inactive appliances are dropped here, so
// downstream stages only ever see devices that belong in the snapshot.
func (b *builder) collectAppliances() error {
	for _, appliance := range b.docs.appliances.FindAll("./appliance") {
		class := appliance.ChildText("type")

		// An appliance of class thermostat without actuators is an orphan
		// left behind by a factory reset.
		if class == "thermostat" && appliance.Find("./actuator_functionalities/*") == nil {
			continue
		}

		location := ""
		if loc := appliance.Child("location"); loc != nil {
			location = loc.Attr("id")
		} else if _, isThermoClass := thermostatClasses[class]; b.caps.SmileType == typeThermostat || !isThermoClass {
			// Thermostat-class devices without a location are inactive and
			// must not inherit the home location.
			location = b.homeLocation
		}

		id := appliance.Attr("id")
		dev := &Device{
			DevClass: class,
			Name:     appliance.ChildText("name"),
			Model:    titleCase(class),
			Location: location,
		}
		if !b.applianceInfo(appliance, id, dev) {
			continue
		}

		// The P1 gateway device is re-keyed under its location id; the
		// smartmeter takes the gateway's appliance id. gatewayID keeps
		// pointing at the appliance id.
		if class == "gateway" && b.caps.SmileType == typePower {
			id = dev.Location
		}
		b.addDevice(id, dev)
	}
	return nil
}

// applianceInfo fills the per-class static device info. It reports false when
// the appliance must be dropped from the snapshot.
func (b *builder) applianceInfo(appliance *xmltree.Node, id string, dev *Device) bool {
	if dev.DevClass == "gateway" {
		b.gatewayID = id
		dev.Firmware = b.caps.Firmware
		dev.Hardware = b.caps.Hardware
		dev.MACAddress = b.caps.MACAddress
		dev.Model = b.caps.SmileModel
		dev.Name = b.caps.SmileName
		dev.Vendor = "Plugwise"
		return true
	}

	if _, ok := thermostatClasses[dev.DevClass]; ok {
		data := b.getModuleData(appliance, "./logs/point_log[type='thermostat']/thermostat", "thermostat")
		dev.Vendor = data.vendorName
		dev.Model = checkModel(data.vendorModel, data.vendorName)
		dev.Hardware = data.hardwareVersion
		dev.Firmware = data.firmwareVersion
		dev.ZigbeeMACAddress = data.zigbeeMAC
		return true
	}

	if dev.DevClass == "heater_central" {
		// Without an active boiler the heater_central is an empty shell.
		if !b.caps.OnOffDevice && !b.caps.OpenThermDevice {
			return false
		}
		b.heaterID = id
		if b.caps.OnOffDevice {
			dev.Name = "OnOff"
			dev.Vendor = ""
			dev.Model = "Unknown"
			return true
		}
		dev.Name = "OpenTherm"
		data := b.getModuleData(appliance, "./logs/point_log[type='flame_state']/boiler_state", "boiler_state")
		if !data.found {
			data = b.getModuleData(appliance, "./services/boiler_state", "boiler_state")
		}
		dev.Vendor = data.vendorName
		dev.Hardware = data.hardwareVersion
		dev.Model = checkModel(data.vendorModel, data.vendorName)
		if dev.Model == "" {
			dev.Model = "Generic heater"
		}
		return true
	}

	return b.energyDeviceInfo(appliance, dev)
}

// energyDeviceInfo resolves Circle, Plug and Stealth info through the linked
// electricity meter module. Plugs without a zigbee MAC are orphans and are
// dropped, except on P1 where the link is wired.
func (b *builder) energyDeviceInfo(appliance *xmltree.Node, dev *Device) bool {
	if b.caps.SmileType != typePower && b.caps.SmileType != typeStretch {
		return true
	}

	data := b.getModuleData(appliance, "./services/electricity_point_meter", "electricity_point_meter")
	dev.ZigbeeMACAddress = data.zigbeeMAC
	if dev.ZigbeeMACAddress == "" && b.caps.SmileType != typePower {
		return false
	}

	dev.Hardware = data.hardwareVersion
	dev.Model = data.vendorModel
	dev.Vendor = data.vendorName
	if dev.Hardware != "" {
		dev.Model = versionToModel(strings.ReplaceAll(dev.Hardware, "-", ""))
	}
	dev.Firmware = data.firmwareVersion
	return true
}

// p1SmartmeterInfo creates the smartmeter device for P1 gateways. The meter is
// not an appliance: its info lives on the home location's meter module.
func (b *builder) p1SmartmeterInfo() error {
	if len(b.locOrder) == 0 {
		return nil
	}
	locID := b.locOrder[0]
	devID := b.gatewayID
	if b.caps.Legacy {
		devID = locID
	}

	dev := &Device{
		DevClass: "smartmeter",
		Name:     "P1",
		Model:    b.caps.SmileModel,
		Location: locID,
	}
	if location := b.docs.locations.Find("./location[@id='" + locID + "']"); location != nil {
		data := b.getModuleData(location, "./services/electricity_point_meter", "electricity_point_meter")
		dev.Vendor = data.vendorName
		if data.vendorModel != "" {
			dev.Model = data.vendorModel
		}
		dev.Hardware = data.hardwareVersion
		dev.Firmware = data.firmwareVersion
	}
	b.addDevice(devID, dev)
	return nil
}

// createLegacyGateway synthesizes the gateway device that legacy firmwares do
// not expose as an appliance.
func (b *builder) createLegacyGateway() {
	b.gatewayID = b.homeLocation
	if b.caps.SmileType == typePower {
		b.gatewayID = fakeApplianceID
	}
	b.addDevice(b.gatewayID, &Device{
		DevClass:   "gateway",
		Firmware:   b.caps.Firmware,
		Hardware:   b.caps.Hardware,
		Location:   b.homeLocation,
		MACAddress: b.caps.MACAddress,
		Model:      b.caps.SmileModel,
		Name:       b.caps.SmileName,
		Vendor:     "Plugwise",
	})
}

// groupSwitches registers switching- and pump-groups. Group members that do
// not resolve to a collected device are dropped; a group without any remaining
// member is skipped entirely.
func (b *builder) groupSwitches() {
	if b.caps.SmileType == typePower || b.caps.IsAnna() {
		return
	}
	for _, group := range b.docs.domainObjects.FindAll("./group") {
		groupType := group.ChildText("type")
		if _, ok := switchGroupTypes[groupType]; !ok {
			continue
		}
		var members []string
		for _, member := range group.FindAll("./appliances/appliance") {
			if _, known := b.devices[member.Attr("id")]; known {
				members = append(members, member.Attr("id"))
			}
		}
		if len(members) == 0 {
			continue
		}
		b.addDevice(group.Attr("id"), &Device{
			DevClass: groupType,
			Model:    "Switchgroup",
			Name:     group.ChildText("name"),
			Members:  members,
		})
	}
}

// countHeatingValves reports how many thermostatic valves are currently open,
// for installations heated by an external source without boiler feedback.
func (b *builder) countHeatingValves() (int, bool) {
	found := false
	open := 0
	for _, appliance := range b.docs.appliances.FindAll("./appliance") {
		position := appliance.Find("./logs/point_log[type='valve_position']/period/measurement")
		if position == nil {
			continue
		}
		found = true
		if value, ok := formatMeasure(position.Text, unitNone); ok && value > 0 {
			open++
		}
	}
	return open, found
}

// titleCase renders an appliance class as a display model name, e.g.
// "zone_thermostat" as "Zone Thermostat".
func titleCase(class string) string {
	words := strings.Split(class, "_")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}
