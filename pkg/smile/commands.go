package smile

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/vhamers/smile-monitor/internal/xmltree"
)

// formatSetpoint renders a temperature the way the gateway expects: always
// with a decimal part, e.g. "20.0" and "19.5".
func formatSetpoint(value float64) string {
	if isIntegral(value) {
		return strconv.FormatFloat(value, 'f', 1, 64)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// thermostatURI resolves the setpoint endpoint for a zone: modern gateways
// address the location, legacy Annas address the thermostat appliance.
func (c *Client) thermostatURI(locID string) (string, error) {
	if !c.caps.Legacy {
		return endpointLocations + ";id=" + locID + "/thermostat", nil
	}
	appliance := c.docs.domainObjects.Find("./appliance[type='thermostat']")
	if appliance == nil {
		return "", fmt.Errorf("%w: no thermostat appliance", ErrInvalidOperation)
	}
	return endpointAppliances + ";id=" + appliance.Attr("id") + "/thermostat", nil
}

// SetTemperature sets the thermostat setpoint for a zone. Heating+cooling
// installations take a setpoint_low/setpoint_high pair instead of a single
// setpoint; only the active side of the envelope may deviate from its pinned
// extreme.
func (c *Client) SetTemperature(ctx context.Context, locID string, items map[string]float64) error {
	c.mu.Lock()
	setpoint, hasSetpoint := items["setpoint"]
	if c.coolingPresent && !c.caps.IsAdam() {
		high, ok := items["setpoint_high"]
		if !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: no valid temperature input provided", ErrInvalidOperation)
		}
		low := items["setpoint_low"]
		if c.coolingOn {
			setpoint = high
			if low != minSetpoint {
				c.mu.Unlock()
				return fmt.Errorf("%w: heating setpoint cannot be changed in cooling mode", ErrInvalidOperation)
			}
		} else {
			setpoint = low
			if high != maxSetpoint {
				c.mu.Unlock()
				return fmt.Errorf("%w: cooling setpoint cannot be changed in heating mode", ErrInvalidOperation)
			}
		}
		hasSetpoint = true
	}
	if !hasSetpoint {
		c.mu.Unlock()
		return fmt.Errorf("%w: no valid temperature input provided", ErrInvalidOperation)
	}

	uri, err := c.thermostatURI(locID)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	body := "<thermostat_functionality><setpoint>" + formatSetpoint(setpoint) + "</setpoint></thermostat_functionality>"
	_, err = c.request(ctx, http.MethodPut, uri, body)
	return err
}

// SetPreset activates the named preset for a zone.
func (c *Client) SetPreset(ctx context.Context, locID string, preset string) error {
	c.mu.Lock()
	valid := false
	for _, entry := range presetsForLocation(c.docs.domainObjects, locID, c.caps.Legacy) {
		if entry.name == preset {
			valid = true
		}
	}
	if !valid {
		c.mu.Unlock()
		return fmt.Errorf("%w: invalid preset %q", ErrInvalidOperation, preset)
	}

	if c.caps.Legacy {
		rule := c.docs.domainObjects.Find(`./rule/directives/when/then[@icon="` + preset + `"]`)
		ruleID := ""
		for _, candidate := range c.docs.domainObjects.FindAll("./rule") {
			if candidate.Find(`./directives/when/then[@icon="`+preset+`"]`) != nil {
				ruleID = candidate.Attr("id")
			}
		}
		c.mu.Unlock()
		if rule == nil || ruleID == "" {
			return fmt.Errorf("%w: invalid preset %q", ErrInvalidOperation, preset)
		}
		body := `<rules><rule id="` + ruleID + `"><active>true</active></rule></rules>`
		_, err := c.request(ctx, http.MethodPut, endpointRules, body)
		return err
	}

	location := c.docs.domainObjects.Find(`./location[@id="` + locID + `"]`)
	if location == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: unknown location %q", ErrInvalidOperation, locID)
	}
	name := location.ChildText("name")
	locType := location.ChildText("type")
	c.mu.Unlock()

	body := `<locations><location id="` + locID + `"><name>` + name + `</name><type>` + locType +
		`</type><preset>` + preset + `</preset></location></locations>`
	_, err := c.request(ctx, http.MethodPut, endpointLocations+";id="+locID, body)
	return err
}

// determineContexts re-renders a schedule rule's contexts with the zone's
// context added or removed. Switching a schedule off also records it as the
// zone's last active schedule.
func (c *Client) determineContexts(locID string, name string, state string, ruleID string) (string, error) {
	contexts := c.docs.domainObjects.Find(`.//*[@id="` + ruleID + `"]/contexts`)
	if contexts == nil {
		return "", fmt.Errorf("%w: schedule %q has no contexts", ErrResponse, name)
	}
	var subject *xmltree.Node
	for _, candidate := range contexts.Children {
		if candidate.Find(`./zone/location[@id="`+locID+`"]`) != nil {
			subject = candidate
		}
	}
	if subject == nil {
		subject = &xmltree.Node{
			Name: "context",
			Children: []*xmltree.Node{{
				Name: "zone",
				Children: []*xmltree.Node{{
					Name:  "location",
					Attrs: map[string]string{"id": locID},
				}},
			}},
		}
	}

	switch state {
	case "off":
		c.lastActive[locID] = name
		contexts.Remove(subject)
	case "on":
		contexts.Append(subject)
	}
	return contexts.XML(), nil
}

// SetScheduleState switches the named schedule on or off for a zone. With an
// empty name the zone's last active schedule is used; when that is unknown
// the call is a no-op.
func (c *Client) SetScheduleState(ctx context.Context, locID string, name string, state string) error {
	if state != "on" && state != "off" {
		return fmt.Errorf("%w: invalid schedule state %q", ErrInvalidOperation, state)
	}

	c.mu.Lock()
	if name == "" {
		name = c.lastActive[locID]
		if name == "" {
			c.mu.Unlock()
			return nil
		}
	}

	if c.caps.Legacy {
		uri, body, err := c.legacyScheduleBody(name, state)
		c.mu.Unlock()
		if err != nil {
			return err
		}
		_, err = c.request(ctx, http.MethodPut, uri, body)
		return err
	}

	rule := c.scheduleRule(name)
	if rule == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no schedule named %q", ErrInvalidOperation, name)
	}
	if c.oldStates[locID][name] == state {
		c.mu.Unlock()
		return nil
	}
	ruleID := rule.Attr("id")

	template := `<template tag="` + ruleTagSchedule + `" />`
	if !c.caps.IsAdam() {
		templateNode := rule.Child("template")
		if templateNode == nil {
			c.mu.Unlock()
			return fmt.Errorf("%w: schedule %q has no template", ErrResponse, name)
		}
		template = `<template id="` + templateNode.Attr("id") + `" />`
	}
	contexts, err := c.determineContexts(locID, name, state, ruleID)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	body := `<rules><rule id="` + ruleID + `"><name><![CDATA[` + name + `]]></name>` +
		template + contexts + `</rule></rules>`
	if _, err = c.request(ctx, http.MethodPut, endpointRules+";id="+ruleID, body); err != nil {
		return err
	}

	c.mu.Lock()
	if c.oldStates[locID] == nil {
		c.oldStates[locID] = make(map[string]string)
	}
	c.oldStates[locID][name] = state
	c.mu.Unlock()
	return nil
}

// legacyScheduleBody builds the active-flag toggle used by legacy Annas,
// which know only a single schedule.
func (c *Client) legacyScheduleBody(name string, state string) (string, string, error) {
	var rule *xmltree.Node
	for _, candidate := range c.docs.domainObjects.FindAll("./rule") {
		if candidate.ChildText("name") == name {
			rule = candidate
		}
	}
	if rule == nil {
		return "", "", fmt.Errorf("%w: no schedule named %q", ErrInvalidOperation, name)
	}
	ruleID := rule.Attr("id")
	templateID := rule.Child("template").Attr("id")
	active := "false"
	if state == "on" {
		active = "true"
	}
	body := `<rules><rule id="` + ruleID + `"><name><![CDATA[` + name + `]]></name>` +
		`<template id="` + templateID + `" /><active>` + active + `</active></rule></rules>`
	return endpointRules + ";id=" + ruleID, body, nil
}

func (c *Client) scheduleRule(name string) *xmltree.Node {
	for _, rule := range c.docs.domainObjects.FindAll("./rule") {
		if rule.Find(`./template[@tag="`+ruleTagSchedule+`"]`) == nil {
			continue
		}
		if rule.ChildText("name") == name {
			return rule
		}
	}
	return nil
}

// switchTarget describes where a switch command lands in the appliance's
// actuator tree.
type switchTarget struct {
	actuator string
	device   string
	funcType string
	element  string
	actType  string
}

func (c *Client) switchTargetFor(model string) switchTarget {
	target := switchTarget{
		actuator: "actuator_functionalities",
		device:   "relay",
		funcType: "relay_functionality",
		element:  "state",
	}
	if c.caps.StretchV2 {
		target.actuator = "actuators"
		target.funcType = "relay"
	}
	switch model {
	case "dhw_cm_switch":
		target.device = "toggle"
		target.funcType = "toggle_functionality"
		target.actType = "domestic_hot_water_comfort_mode"
	case "cooling_ena_switch":
		target.device = "toggle"
		target.funcType = "toggle_functionality"
		target.actType = "cooling_enabled"
	case "lock":
		target.element = "lock"
	}
	return target
}

// SetSwitchState switches a relay, lock or toggle on or off. With a non-nil
// members list the command fans out over a switching group. Switching a relay
// whose lock is engaged is refused without contacting the gateway.
func (c *Client) SetSwitchState(ctx context.Context, applianceID string, members []string, model string, state string) error {
	c.mu.Lock()
	target := c.switchTargetFor(model)
	if model == "lock" {
		if state == "off" {
			state = "false"
		} else {
			state = "true"
		}
	}

	if members != nil {
		requests, err := c.groupSwitchRequests(members, target, state)
		c.mu.Unlock()
		if err != nil {
			return err
		}
		for _, req := range requests {
			if _, err = c.request(ctx, http.MethodPut, req.uri, req.body); err != nil {
				return err
			}
		}
		return nil
	}

	appliancePath := `./appliance[@id="` + applianceID + `"]/` + target.actuator + `/` + target.funcType
	switchID := ""
	for _, functionality := range c.docs.domainObjects.FindAll(appliancePath) {
		if found := functionality.Child("type"); found != nil {
			if found.Text == target.actType {
				switchID = functionality.Attr("id")
			}
		} else {
			switchID = functionality.Attr("id")
			break
		}
	}
	if switchID == "" {
		c.mu.Unlock()
		return fmt.Errorf("%w: no %s functionality on appliance %s", ErrInvalidOperation, model, applianceID)
	}

	if model == "relay" {
		lock := c.docs.domainObjects.Find(appliancePath + "/lock")
		if lock != nil && lock.Text == "true" {
			c.mu.Unlock()
			return fmt.Errorf("%w: relay is locked", ErrInvalidOperation)
		}
	}
	c.mu.Unlock()

	uri := endpointAppliances + ";id=" + applianceID + "/" + target.device + ";id=" + switchID
	body := "<" + target.funcType + "><" + target.element + ">" + state + "</" + target.element + "></" + target.funcType + ">"
	_, err := c.request(ctx, http.MethodPut, uri, body)
	return err
}

type switchRequest struct {
	uri  string
	body string
}

func (c *Client) groupSwitchRequests(members []string, target switchTarget, state string) ([]switchRequest, error) {
	requests := make([]switchRequest, 0, len(members))
	for _, member := range members {
		locator := `./appliance[@id="` + member + `"]/` + target.actuator + `/` + target.funcType
		functionality := c.docs.domainObjects.Find(locator)
		if functionality == nil {
			return nil, fmt.Errorf("%w: no switch functionality on group member %s", ErrInvalidOperation, member)
		}
		requests = append(requests, switchRequest{
			uri: endpointAppliances + ";id=" + member + "/" + target.device + ";id=" + functionality.Attr("id"),
			body: "<" + target.funcType + "><" + target.element + ">" + state +
				"</" + target.element + "></" + target.funcType + ">",
		})
	}
	return requests, nil
}

// SetNumberSetpoint sets the max boiler temperature or max domestic hot water
// temperature on the heater.
func (c *Client) SetNumberSetpoint(ctx context.Context, key string, temperature float64) error {
	c.mu.Lock()
	thermostatID := ""
	locator := `./appliance[@id="` + c.heaterID + `"]/actuator_functionalities/thermostat_functionality`
	for _, functionality := range c.docs.domainObjects.FindAll(locator) {
		if functionality.ChildText("type") == key {
			thermostatID = functionality.Attr("id")
		}
	}
	heaterID := c.heaterID
	c.mu.Unlock()
	if thermostatID == "" {
		return fmt.Errorf("%w: cannot change setpoint, %s not found", ErrInvalidOperation, key)
	}

	uri := endpointAppliances + ";id=" + heaterID + "/thermostat;id=" + thermostatID
	body := "<thermostat_functionality><setpoint>" + formatSetpoint(temperature) + "</setpoint></thermostat_functionality>"
	_, err := c.request(ctx, http.MethodPut, uri, body)
	return err
}

// SetTemperatureOffset sets the temperature offset on a thermostat that
// supports calibration.
func (c *Client) SetTemperatureOffset(ctx context.Context, devID string, offset float64) error {
	c.mu.Lock()
	_, capable := c.offsetFunc[devID]
	c.mu.Unlock()
	if !capable {
		return fmt.Errorf("%w: device has no temperature-offset capability", ErrInvalidOperation)
	}

	uri := endpointAppliances + ";id=" + devID + "/offset;type=temperature_offset"
	body := "<offset_functionality><offset>" + formatSetpoint(offset) + "</offset></offset_functionality>"
	_, err := c.request(ctx, http.MethodPut, uri, body)
	return err
}

// SetRegulationMode sets the gateway's heating regulation mode. Bleed modes
// carry a fixed five minute duration.
func (c *Client) SetRegulationMode(ctx context.Context, mode string) error {
	c.mu.Lock()
	valid := false
	for _, allowed := range c.regModes {
		if allowed == mode {
			valid = true
		}
	}
	c.mu.Unlock()
	if !valid {
		return fmt.Errorf("%w: invalid regulation mode %q", ErrInvalidOperation, mode)
	}

	duration := ""
	if containsPhrase(mode, "bleeding") {
		duration = "<duration>300</duration>"
	}
	uri := endpointAppliances + ";type=gateway/regulation_mode_control"
	body := "<regulation_mode_control_functionality>" + duration + "<mode>" + mode + "</mode></regulation_mode_control_functionality>"
	_, err := c.request(ctx, http.MethodPut, uri, body)
	return err
}

// SetDHWMode sets the domestic hot water regulation mode on the heater.
func (c *Client) SetDHWMode(ctx context.Context, mode string) error {
	c.mu.Lock()
	valid := false
	for _, allowed := range c.dhwModes {
		if allowed == mode {
			valid = true
		}
	}
	c.mu.Unlock()
	if !valid {
		return fmt.Errorf("%w: invalid dhw mode %q", ErrInvalidOperation, mode)
	}

	uri := endpointAppliances + ";type=heater_central/domestic_hot_water_mode_control"
	body := "<domestic_hot_water_mode_control_functionality><mode>" + mode + "</mode></domestic_hot_water_mode_control_functionality>"
	_, err := c.request(ctx, http.MethodPut, uri, body)
	return err
}

// DeleteNotification clears the gateway's active notification.
func (c *Client) DeleteNotification(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodDelete, endpointNotifications, "")
	return err
}
