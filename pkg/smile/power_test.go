package smile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Update_legacyP1(t *testing.T) {
	_, client := newP1LegacyServer(t)
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))

	caps := client.Capabilities()
	assert.Equal(t, "Smile P1", caps.SmileName)
	assert.Equal(t, "power", caps.SmileType)
	assert.Equal(t, "2.5.9", caps.SmileVersion)
	assert.True(t, caps.Legacy)

	snapshot, err := client.Update(ctx)
	require.NoError(t, err)

	// Legacy P1 firmwares expose no gateway appliance: one is synthesized
	// under a fixed id, and the smartmeter takes the meter location's id.
	require.Equal(t, []string{fakeApplianceID, "loc-p1"}, snapshot.DeviceList)
	assert.Equal(t, fakeApplianceID, snapshot.Gateway.GatewayID)
	assert.Empty(t, snapshot.Gateway.HeaterID)
	assert.Nil(t, snapshot.Gateway.CoolingPresent)

	gateway := snapshot.Devices[fakeApplianceID]
	require.NotNil(t, gateway)
	assert.Equal(t, "gateway", gateway.DevClass)
	assert.Equal(t, "Smile P1", gateway.Name)
	assert.Equal(t, "Gateway", gateway.Model)
	assert.Equal(t, "Plugwise", gateway.Vendor)
	assert.Equal(t, "2.5.9", gateway.Firmware)
	assert.Equal(t, "012345670002", gateway.MACAddress)
	assert.Equal(t, "loc-p1", gateway.Location)
	assert.Equal(t, map[string]bool{"plugwise_notification": false}, gateway.BinarySensors)

	meter := snapshot.Devices["loc-p1"]
	require.NotNil(t, meter)
	assert.Equal(t, "smartmeter", meter.DevClass)
	assert.Equal(t, "P1", meter.Name)
	assert.Equal(t, "Xemex", meter.Vendor)
	assert.Equal(t, "XMX5LGBBFG10", meter.Model)
	assert.Equal(t, "1.0", meter.Hardware)
	require.NotNil(t, meter.Available)
	assert.True(t, *meter.Available)
	assert.Equal(t, map[string]float64{
		"electricity_consumed_point":             470,
		"electricity_produced_point":             0,
		"electricity_consumed_peak_interval":     250,
		"electricity_consumed_off_peak_interval": 0,
		"electricity_consumed_peak_cumulative":   1234.567,
		"electricity_consumed_off_peak_cumulative": 1034.124,
		"gas_consumed_cumulative":                  112.73,
		"net_electricity_point":                    470,
		"net_electricity_cumulative":               2268.691,
	}, meter.Sensors)
}

func TestBuilder_netElectricity(t *testing.T) {
	b := &builder{}
	dev := &Device{}

	b.netElectricity(dev, "electricity_consumed", "net_electricity_point", 100)
	b.netElectricity(dev, "electricity_produced", "net_electricity_point", 30)
	assert.Equal(t, 70.0, dev.Sensors["net_electricity_point"])

	// Fractional contributions are kept at three decimals.
	b.netElectricity(dev, "electricity_consumed", "net_electricity_cumulative", 1234.567)
	b.netElectricity(dev, "electricity_consumed", "net_electricity_cumulative", 1034.124)
	assert.Equal(t, 2268.691, dev.Sensors["net_electricity_cumulative"])

	// Interval readings and phase quantities never contribute.
	b.netElectricity(dev, "electricity_consumed", "net_electricity_interval", 50)
	b.netElectricity(dev, "electricity_phase_one_consumed", "net_electricity_point", 50)
	_, ok := dev.Sensors["net_electricity_interval"]
	assert.False(t, ok)
	assert.Equal(t, 70.0, dev.Sensors["net_electricity_point"])
}
