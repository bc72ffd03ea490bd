package smile

import (
	"sort"
	"time"

	"github.com/vhamers/smile-monitor/internal/xmltree"
)

// presetEntry is one named preset with its heating and cooling setpoints.
type presetEntry struct {
	name    string
	heating float64
	cooling float64
}

// presetsForLocation collects the presets selectable in a zone, in document
// order. Modern gateways tag the preset rule and link it to the zone through
// a context; legacy Annas keep a single icon-keyed rule set.
func presetsForLocation(doc *xmltree.Node, locID string, legacy bool) []presetEntry {
	if legacy {
		return legacyPresets(doc)
	}

	var presets []presetEntry
	for _, rule := range rulesByTag(doc, ruleTagPreset, locID) {
		for _, directive := range rule.FindAll("./directives/*") {
			then := directive.Child("then")
			if then == nil || directive.Attr("preset") == "" {
				continue
			}
			entry := presetEntry{name: directive.Attr("preset")}
			if setpoint := then.Attr("setpoint"); setpoint != "" {
				entry.heating, _ = formatMeasure(setpoint, unitNone)
			} else {
				entry.heating, _ = formatMeasure(then.Attr("heating_setpoint"), unitNone)
				entry.cooling, _ = formatMeasure(then.Attr("cooling_setpoint"), unitNone)
			}
			presets = append(presets, entry)
		}
	}
	return presets
}

func legacyPresets(doc *xmltree.Node) []presetEntry {
	var presets []presetEntry
	for _, directive := range doc.FindAll("./rule/directives/when/then") {
		icon := directive.Attr("icon")
		if icon == "" {
			continue
		}
		heating, _ := formatMeasure(directive.Attr("temperature"), unitNone)
		presets = append(presets, presetEntry{name: icon, heating: heating})
	}
	return presets
}

// rulesByTag returns the rules carrying the given template tag whose contexts
// reference the location.
func rulesByTag(doc *xmltree.Node, tag string, locID string) []*xmltree.Node {
	var rules []*xmltree.Node
	for _, rule := range doc.FindAll("./rule") {
		if rule.Find(`./template[@tag="`+tag+`"]`) == nil {
			continue
		}
		if rule.Find(`./contexts/context/zone/location[@id="`+locID+`"]`) == nil {
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}

// activePreset reads the currently active preset: off the location record on
// modern gateways, off the active rule's directive icon on legacy Annas.
func (b *builder) activePreset(locID string) string {
	if b.caps.Legacy {
		active := b.docs.domainObjects.Find("./rule[active='true']/directives/when/then")
		return active.Attr("icon")
	}
	return b.docs.domainObjects.Find(`./location[@id="` + locID + `"]`).ChildText("preset")
}

// scheduleInfo resolves the schedules visible to a zone: every rule tagged as
// a time/presence schedule with a non-empty directive block is available; the
// selected one is the rule whose context currently references the zone. When
// nothing is selected, the most recently modified schedule is remembered as
// the zone's last-active schedule for a later re-enable without a name.
func (b *builder) scheduleInfo(locID string) (available []string, selected string) {
	selected = noSchedule
	if b.caps.Legacy {
		return b.legacyScheduleInfo()
	}

	var names []string
	doc := b.docs.domainObjects
	for _, rule := range doc.FindAll("./rule") {
		if rule.Find(`./template[@tag="`+ruleTagSchedule+`"]`) == nil {
			continue
		}
		if rule.Find("./directives/*") == nil {
			continue
		}
		name := rule.ChildText("name")
		names = append(names, name)
		if rule.Find(`./contexts/context/zone/location[@id="`+locID+`"]`) != nil {
			selected = name
			b.lastActive[locID] = name
		}
	}
	if len(names) == 0 {
		return []string{noSchedule}, selected
	}
	if b.lastActive[locID] == "" {
		b.lastActive[locID] = b.lastUsedSchedule(names)
	}
	return append(names, noSchedule), selected
}

// lastUsedSchedule picks the most recently modified schedule; on equal
// timestamps the later one in sorted name order wins.
func (b *builder) lastUsedSchedule(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	best := sorted[0]
	var bestTime time.Time
	for _, name := range sorted {
		rule := b.scheduleRuleByName(name)
		if rule == nil {
			continue
		}
		stamp, err := time.Parse(time.RFC3339, rule.ChildText("modified_date"))
		if err != nil {
			continue
		}
		if !stamp.Before(bestTime) {
			bestTime = stamp
			best = name
		}
	}
	return best
}

// scheduleRuleByName finds the schedule rule with the given name.
func (b *builder) scheduleRuleByName(name string) *xmltree.Node {
	for _, rule := range b.docs.domainObjects.FindAll("./rule") {
		if rule.Find(`./template[@tag="`+ruleTagSchedule+`"]`) == nil {
			continue
		}
		if rule.ChildText("name") == name {
			return rule
		}
	}
	return nil
}

func (b *builder) legacyScheduleInfo() (available []string, selected string) {
	selected = noSchedule
	name := ""
	for _, rule := range b.docs.domainObjects.FindAll("./rule") {
		if ruleName := rule.ChildText("name"); ruleName != "" && !containsPhrase(ruleName, "preset") {
			name = ruleName
		}
	}
	if name == "" {
		return []string{noSchedule}, selected
	}
	locator := "./appliance[type='thermostat']/logs/point_log[type='schedule_state']/period/measurement"
	if state := b.docs.domainObjects.Find(locator); state != nil && state.Text == "on" {
		selected = name
	}
	return []string{name}, selected
}

// controlState reads the zone's demand state (heating/cooling/preheating/off),
// reported by zone-capable gateways only.
func (b *builder) controlState(locID string) string {
	location := b.docs.domainObjects.Find(`./location[@id="` + locID + `"]`)
	if location == nil {
		return ""
	}
	if state := location.Find("./actuator_functionalities/thermostat_functionality/control_state"); state != nil {
		return state.Text
	}
	return ""
}

// climateData fills the thermostat-only fields of a zone's master thermostat:
// presets, schedules, control state and the derived operation mode.
func (b *builder) climateData(id string, dev *Device) {
	locID := dev.Location

	presets := presetsForLocation(b.docs.domainObjects, locID, b.caps.Legacy)
	if len(presets) > 0 {
		dev.PresetModes = make([]string, 0, len(presets))
		for _, preset := range presets {
			dev.PresetModes = append(dev.PresetModes, preset.name)
		}
		dev.ActivePreset = b.activePreset(locID)
	}

	dev.AvailableSchedules, dev.SelectSchedule = b.scheduleInfo(locID)

	if state := b.controlState(locID); state != "" {
		dev.ControlState = state
	}

	dev.Mode = "auto"
	if dev.SelectSchedule == noSchedule {
		dev.Mode = "heat"
		if b.coolingAvailable() {
			dev.Mode = "heat_cool"
			if b.checkRegMode("cooling") {
				dev.Mode = "cool"
			}
		}
	}
	if b.checkRegMode("off") {
		dev.Mode = "off"
	}

	b.rememberScheduleStates(locID, dev)
}

// rememberScheduleStates records each schedule's on/off state for the zone so
// a toggle request that matches the current state can be short-circuited.
func (b *builder) rememberScheduleStates(locID string, dev *Device) {
	states := make(map[string]string)
	for _, schedule := range dev.AvailableSchedules {
		if schedule == noSchedule {
			continue
		}
		state := "off"
		if schedule == dev.SelectSchedule && dev.Mode == "auto" {
			state = "on"
		}
		states[schedule] = state
	}
	if len(states) > 0 {
		b.oldStates[locID] = states
	}
}

// checkRegMode reports whether the gateway's current regulation mode matches.
func (b *builder) checkRegMode(mode string) bool {
	return len(b.regModes) > 0 && b.selectRegMode == mode
}

// updateForCooling replaces the single setpoint of a heating+cooling capable
// zone with a setpoint_low/setpoint_high envelope: the inactive side of the
// envelope is pinned to the allowed extreme.
func (b *builder) updateForCooling(dev *Device) {
	if !b.coolingAvailable() {
		return
	}
	thermostat, ok := dev.Actuators["thermostat"]
	if !ok {
		return
	}
	setpoint, ok := thermostat["setpoint"]
	if !ok {
		return
	}
	delete(thermostat, "setpoint")
	low, high := setpoint, maxSetpoint
	if b.coolingEnabled {
		low, high = minSetpoint, setpoint
	}
	thermostat["setpoint_low"] = low
	thermostat["setpoint_high"] = high

	delete(dev.Sensors, "setpoint")
	b.setSensor(dev, "setpoint_low", low)
	b.setSensor(dev, "setpoint_high", high)
}
