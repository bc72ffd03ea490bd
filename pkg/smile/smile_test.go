package smile

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSmileID = "test-id"

func loadTestDoc(t *testing.T, name string) string {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(body)
}

type recordedRequest struct {
	method string
	path   string
	body   string
}

// gatewayServer fakes a Smile gateway: it serves canned documents on GET and
// records every PUT and DELETE.
type gatewayServer struct {
	docs     map[string]string
	mu       sync.Mutex
	requests []recordedRequest
}

func (g *gatewayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || username != DefaultUsername || password != testSmileID {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch r.Method {
	case http.MethodGet:
		doc, found := g.docs[r.URL.Path]
		if !found {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<error><message>not found</message></error>"))
			return
		}
		_, _ = w.Write([]byte(doc))
	case http.MethodPut, http.MethodDelete:
		body, _ := io.ReadAll(r.Body)
		g.mu.Lock()
		g.requests = append(g.requests, recordedRequest{r.Method, r.URL.Path, string(body)})
		g.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *gatewayServer) recorded() []recordedRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]recordedRequest{}, g.requests...)
}

func newGatewayServer(t *testing.T, docs map[string]string) (*gatewayServer, *Client) {
	t.Helper()
	gs := &gatewayServer{docs: docs}
	server := httptest.NewServer(gs)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	client := New(Config{
		Host:     u.Hostname(),
		Port:     port,
		Password: testSmileID,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return gs, client
}

func newAdamServer(t *testing.T) (*gatewayServer, *Client) {
	t.Helper()
	return newGatewayServer(t, map[string]string{
		"/core/domain_objects": loadTestDoc(t, "adam_domain_objects.xml"),
		"/core/appliances":     loadTestDoc(t, "adam_appliances.xml"),
		"/core/locations":      loadTestDoc(t, "adam_locations.xml"),
		"/core/modules":        loadTestDoc(t, "adam_modules.xml"),
	})
}

func newP1LegacyServer(t *testing.T) (*gatewayServer, *Client) {
	t.Helper()
	return newGatewayServer(t, map[string]string{
		"/core/domain_objects": loadTestDoc(t, "p1v2_domain_objects.xml"),
		"/core/locations":      loadTestDoc(t, "p1v2_locations.xml"),
		"/core/modules":        loadTestDoc(t, "p1v2_modules.xml"),
		"/system/status.xml":   loadTestDoc(t, "p1v2_status.xml"),
	})
}

func newAnnaLegacyServer(t *testing.T) (*gatewayServer, *Client) {
	t.Helper()
	return newGatewayServer(t, map[string]string{
		"/core/domain_objects": loadTestDoc(t, "anna_v1_domain_objects.xml"),
		"/core/modules":        loadTestDoc(t, "anna_v1_modules.xml"),
		"/system/status.xml":   loadTestDoc(t, "anna_v1_status.xml"),
	})
}

func TestClient_Connect(t *testing.T) {
	_, client := newAdamServer(t)
	ctx := context.Background()

	require.NoError(t, client.Connect(ctx))

	caps := client.Capabilities()
	assert.Equal(t, "Adam", caps.SmileName)
	assert.Equal(t, "thermostat", caps.SmileType)
	assert.Equal(t, "3.0.15", caps.SmileVersion)
	assert.False(t, caps.Legacy)
	assert.True(t, caps.IsAdam())
	assert.True(t, caps.OpenThermDevice)
	assert.False(t, caps.OnOffDevice)
	assert.False(t, caps.CoolingPresent)
	assert.False(t, caps.Elga)
}

func TestClient_Connect_invalidAuthentication(t *testing.T) {
	gs := &gatewayServer{}
	server := httptest.NewServer(gs)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	client := New(Config{
		Host:     u.Hostname(),
		Port:     port,
		Password: "wrong",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	assert.ErrorIs(t, client.Connect(context.Background()), ErrInvalidAuthentication)
}

func TestClient_Connect_unsupportedDevice(t *testing.T) {
	_, client := newGatewayServer(t, map[string]string{
		"/core/domain_objects": `<domain_objects>
			<gateway>
				<vendor_model>frobnicator</vendor_model>
				<firmware_version>9.9.1</firmware_version>
				<hardware_version>1</hardware_version>
			</gateway>
			<module><vendor_name>Plugwise</vendor_name></module>
		</domain_objects>`,
	})
	assert.ErrorIs(t, client.Connect(context.Background()), ErrUnsupportedDevice)
}

func TestClient_Connect_annaBehindAdam(t *testing.T) {
	_, client := newGatewayServer(t, map[string]string{
		"/core/domain_objects": `<domain_objects>
			<gateway>
				<vendor_model>smile_thermo</vendor_model>
				<firmware_version>4.0.15</firmware_version>
				<hardware_version>1</hardware_version>
			</gateway>
			<module>
				<vendor_name>Plugwise</vendor_name>
				<vendor_model>159.2</vendor_model>
			</module>
		</domain_objects>`,
	})
	assert.ErrorIs(t, client.Connect(context.Background()), ErrInvalidSetup)
}

func TestClient_Update_notConnected(t *testing.T) {
	client := New(Config{Host: "127.0.0.1", Password: testSmileID})
	_, err := client.Update(context.Background())
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestClient_Update_adam(t *testing.T) {
	_, client := newAdamServer(t)
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))

	snapshot, err := client.Update(ctx)
	require.NoError(t, err)

	assert.Equal(t, "app-gw", snapshot.Gateway.GatewayID)
	assert.Equal(t, "app-gw", client.GatewayID())
	assert.Equal(t, "app-heater", snapshot.Gateway.HeaterID)
	assert.Equal(t, "Adam", snapshot.Gateway.SmileName)
	require.NotNil(t, snapshot.Gateway.CoolingPresent)
	assert.False(t, *snapshot.Gateway.CoolingPresent)
	assert.Len(t, snapshot.Gateway.Notifications, 1)

	// The gateway always leads, the heater comes second.
	require.Equal(t, []string{"app-gw", "app-heater", "app-lisa", "app-tom", "app-plug", "grp-1"}, snapshot.DeviceList)
	assert.Equal(t, 87, snapshot.Gateway.ItemCount)
	assert.Equal(t, 87, snapshot.ItemTotal())

	gateway := snapshot.Devices["app-gw"]
	require.NotNil(t, gateway)
	assert.Equal(t, "gateway", gateway.DevClass)
	assert.Equal(t, "Adam", gateway.Name)
	assert.Equal(t, "Plugwise", gateway.Vendor)
	assert.Equal(t, "3.0.15", gateway.Firmware)
	assert.True(t, gateway.BinarySensors["plugwise_notification"])
	assert.Equal(t, 8.61, gateway.Sensors["outdoor_temperature"])
	assert.Equal(t, []string{"heating", "off", "bleeding_cold"}, gateway.RegulationModes)
	assert.Equal(t, "heating", gateway.SelectRegulationMode)

	heater := snapshot.Devices["app-heater"]
	require.NotNil(t, heater)
	assert.Equal(t, "OpenTherm", heater.Name)
	assert.Equal(t, "Remeha", heater.Vendor)
	assert.Equal(t, "Avanta", heater.Model)
	assert.Equal(t, map[string]float64{
		"water_temperature":           45.6,
		"intended_boiler_temperature": 50,
		"modulation_level":            0,
		"water_pressure":              1.57,
	}, heater.Sensors)
	assert.Equal(t, map[string]bool{"flame_state": true}, heater.BinarySensors)
	assert.Equal(t, map[string]bool{"dhw_cm_switch": false}, heater.Switches)
	assert.Equal(t, Actuator{
		"lower_bound": 20.0,
		"upper_bound": 90.0,
		"resolution":  1.0,
		"setpoint":    70.0,
	}, heater.Actuators["maximum_boiler_temperature"])
	require.NotNil(t, heater.Available)
	assert.True(t, *heater.Available)

	lisa := snapshot.Devices["app-lisa"]
	require.NotNil(t, lisa)
	assert.Equal(t, "zone_thermostat", lisa.DevClass)
	assert.Equal(t, "Lisa", lisa.Model)
	assert.Equal(t, "Plugwise", lisa.Vendor)
	assert.Equal(t, "000D6F000123", lisa.ZigbeeMACAddress)
	assert.Equal(t, map[string]float64{
		"setpoint":    19.5,
		"temperature": 20.3,
		"battery":     67,
	}, lisa.Sensors)
	assert.Equal(t, Actuator{
		"lower_bound": 0.0,
		"upper_bound": 99.9,
		"resolution":  0.01,
		"setpoint":    19.5,
	}, lisa.Actuators["thermostat"])
	assert.Equal(t, Actuator{
		"lower_bound": -2.0,
		"upper_bound": 2.0,
		"resolution":  0.1,
		"setpoint":    0.0,
	}, lisa.Actuators["temperature_offset"])
	assert.Equal(t, []string{"home", "away", "asleep"}, lisa.PresetModes)
	assert.Equal(t, "home", lisa.ActivePreset)
	assert.Equal(t, []string{"Weekschema", "None"}, lisa.AvailableSchedules)
	assert.Equal(t, "Weekschema", lisa.SelectSchedule)
	assert.Equal(t, "heating", lisa.ControlState)
	assert.Equal(t, "auto", lisa.Mode)
	require.NotNil(t, lisa.Available)
	assert.True(t, *lisa.Available)

	// The radiator valve lost the ranking and serves as a passive sensor.
	tom := snapshot.Devices["app-tom"]
	require.NotNil(t, tom)
	assert.Equal(t, "thermo_sensor", tom.DevClass)
	assert.Equal(t, map[string]float64{
		"setpoint":       19.5,
		"temperature":    19.8,
		"valve_position": 0,
	}, tom.Sensors)
	assert.Empty(t, tom.Actuators)
	assert.Empty(t, tom.Mode)

	plug := snapshot.Devices["app-plug"]
	require.NotNil(t, plug)
	assert.Equal(t, "router", plug.DevClass)
	assert.Equal(t, "Router", plug.Model)
	assert.Equal(t, map[string]float64{
		"electricity_consumed":          8.5,
		"electricity_consumed_interval": 12,
	}, plug.Sensors)
	assert.Equal(t, map[string]bool{"relay": true, "lock": true}, plug.Switches)

	group := snapshot.Devices["grp-1"]
	require.NotNil(t, group)
	assert.Equal(t, "switching", group.DevClass)
	assert.Equal(t, "Switchgroup", group.Model)
	assert.Equal(t, []string{"app-plug"}, group.Members)
	assert.Equal(t, map[string]bool{"relay": true}, group.Switches)
}

func TestClient_Update_legacyAnna(t *testing.T) {
	_, client := newAnnaLegacyServer(t)
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))

	caps := client.Capabilities()
	assert.Equal(t, "Smile Anna", caps.SmileName)
	assert.Equal(t, "1.8.22", caps.SmileVersion)
	assert.True(t, caps.Legacy)
	assert.True(t, caps.IsAnna())
	assert.True(t, caps.OpenThermDevice)

	snapshot, err := client.Update(ctx)
	require.NoError(t, err)

	// Firmware 1.x exposes neither locations nor a gateway appliance; both
	// are synthesized under fixed ids.
	require.Equal(t, []string{fakeLocationID, "app-boiler", "app-anna"}, snapshot.DeviceList)
	assert.Equal(t, fakeLocationID, snapshot.Gateway.GatewayID)
	assert.Equal(t, "app-boiler", snapshot.Gateway.HeaterID)
	assert.Equal(t, "Smile Anna", snapshot.Gateway.SmileName)
	require.NotNil(t, snapshot.Gateway.CoolingPresent)
	assert.False(t, *snapshot.Gateway.CoolingPresent)
	assert.Empty(t, snapshot.Gateway.Notifications)
	assert.Equal(t, 42, snapshot.Gateway.ItemCount)

	gateway := snapshot.Devices[fakeLocationID]
	require.NotNil(t, gateway)
	assert.Equal(t, "gateway", gateway.DevClass)
	assert.Equal(t, "Smile Anna", gateway.Name)
	assert.Equal(t, "Gateway", gateway.Model)
	assert.Equal(t, "1.8.22", gateway.Firmware)
	assert.Equal(t, fakeLocationID, gateway.Location)
	assert.Equal(t, map[string]bool{"plugwise_notification": false}, gateway.BinarySensors)

	anna := snapshot.Devices["app-anna"]
	require.NotNil(t, anna)
	assert.Equal(t, "thermostat", anna.DevClass)
	assert.Equal(t, "ThermoTouch", anna.Model)
	assert.Equal(t, "Plugwise", anna.Vendor)
	assert.Equal(t, fakeLocationID, anna.Location)
	assert.Equal(t, map[string]float64{
		"setpoint":    20.5,
		"temperature": 21.3,
		"illuminance": 40.5,
	}, anna.Sensors)
	assert.Equal(t, map[string]Actuator{"thermostat": {
		"lower_bound": 4.0,
		"upper_bound": 30.0,
		"resolution":  0.1,
		"setpoint":    20.5,
	}}, anna.Actuators)
	assert.Equal(t, []string{"home", "away"}, anna.PresetModes)
	assert.Equal(t, "home", anna.ActivePreset)
	assert.Equal(t, []string{"Thermostat schedule"}, anna.AvailableSchedules)
	assert.Equal(t, "Thermostat schedule", anna.SelectSchedule)
	assert.Equal(t, "auto", anna.Mode)

	boiler := snapshot.Devices["app-boiler"]
	require.NotNil(t, boiler)
	assert.Equal(t, "heater_central", boiler.DevClass)
	assert.Equal(t, "OpenTherm", boiler.Name)
	assert.Equal(t, "Bosch", boiler.Vendor)
	assert.Equal(t, "Nefit", boiler.Model)
	assert.Equal(t, map[string]float64{"water_temperature": 52.2}, boiler.Sensors)
	// domestic_hot_water_state is unreliable on this firmware and is dropped.
	assert.Equal(t, map[string]bool{"flame_state": true}, boiler.BinarySensors)
	require.NotNil(t, boiler.Available)
	assert.True(t, *boiler.Available)
}

func TestClient_Update_concurrent(t *testing.T) {
	_, client := newAdamServer(t)
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))

	_, err := client.Update(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Update(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Reads the last-active schedule memory while the updates write it.
		assert.NoError(t, client.SetScheduleState(ctx, "loc-living", "", "off"))
	}()
	wg.Wait()
}

func TestClient_Update_isRepeatable(t *testing.T) {
	_, client := newAdamServer(t)
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))

	first, err := client.Update(ctx)
	require.NoError(t, err)
	second, err := client.Update(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
