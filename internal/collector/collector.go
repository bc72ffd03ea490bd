// Package collector exports the latest gateway snapshot as Prometheus
// metrics.
package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vhamers/smile-monitor/internal/poller"
	"github.com/vhamers/smile-monitor/pkg/smile"
)

var (
	smileDeviceSensor = prometheus.NewDesc(
		prometheus.BuildFQName("smile", "device", "sensor"),
		"Numeric sensor reading of a device",
		[]string{"device", "name", "dev_class", "sensor"},
		nil,
	)
	smileDeviceBinarySensor = prometheus.NewDesc(
		prometheus.BuildFQName("smile", "device", "binary_sensor"),
		"Binary sensor state of a device. 1 if the state is on",
		[]string{"device", "name", "dev_class", "sensor"},
		nil,
	)
	smileDeviceSwitch = prometheus.NewDesc(
		prometheus.BuildFQName("smile", "device", "switch"),
		"Switch state of a device. 1 if the switch is on",
		[]string{"device", "name", "dev_class", "switch"},
		nil,
	)
	smileDeviceAvailable = prometheus.NewDesc(
		prometheus.BuildFQName("smile", "device", "available"),
		"Whether the device is reachable. 1 if it is",
		[]string{"device", "name", "dev_class"},
		nil,
	)
	smileGatewayItems = prometheus.NewDesc(
		prometheus.BuildFQName("smile", "gateway", "item_count"),
		"Number of data points in the current snapshot",
		nil,
		nil,
	)
	smileGatewayNotifications = prometheus.NewDesc(
		prometheus.BuildFQName("smile", "gateway", "notifications"),
		"Number of active gateway notifications",
		nil,
		nil,
	)
	smileGatewayInfo = prometheus.NewDesc(
		prometheus.BuildFQName("smile", "gateway", "info"),
		"Gateway product info. Always 1. See the labels",
		[]string{"smile_name", "gateway_id"},
		nil,
	)
)

type Collector struct {
	Poller       poller.Poller
	Logger       *slog.Logger
	lock         sync.RWMutex
	lastSnapshot *smile.Snapshot
}

func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Poller.Subscribe()
	defer c.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot := <-ch:
			c.lock.Lock()
			c.lastSnapshot = snapshot
			c.lock.Unlock()
		}
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- smileDeviceSensor
	ch <- smileDeviceBinarySensor
	ch <- smileDeviceSwitch
	ch <- smileDeviceAvailable
	ch <- smileGatewayItems
	ch <- smileGatewayNotifications
	ch <- smileGatewayInfo
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.lastSnapshot == nil {
		return
	}
	c.collectGateway(ch)
	for _, id := range c.lastSnapshot.DeviceList {
		c.collectDevice(ch, id, c.lastSnapshot.Devices[id])
	}
}

func (c *Collector) collectGateway(ch chan<- prometheus.Metric) {
	gw := c.lastSnapshot.Gateway
	ch <- prometheus.MustNewConstMetric(smileGatewayItems, prometheus.GaugeValue, float64(gw.ItemCount))
	ch <- prometheus.MustNewConstMetric(smileGatewayNotifications, prometheus.GaugeValue, float64(len(gw.Notifications)))
	ch <- prometheus.MustNewConstMetric(smileGatewayInfo, prometheus.GaugeValue, 1, gw.SmileName, gw.GatewayID)
}

func (c *Collector) collectDevice(ch chan<- prometheus.Metric, id string, device *smile.Device) {
	if device == nil {
		c.Logger.Warn("device listed but not present in snapshot, skipping", "id", id)
		return
	}
	for sensor, value := range device.Sensors {
		ch <- prometheus.MustNewConstMetric(smileDeviceSensor, prometheus.GaugeValue, value, id, device.Name, device.DevClass, sensor)
	}
	for sensor, state := range device.BinarySensors {
		ch <- prometheus.MustNewConstMetric(smileDeviceBinarySensor, prometheus.GaugeValue, boolValue(state), id, device.Name, device.DevClass, sensor)
	}
	for name, state := range device.Switches {
		ch <- prometheus.MustNewConstMetric(smileDeviceSwitch, prometheus.GaugeValue, boolValue(state), id, device.Name, device.DevClass, name)
	}
	if device.Available != nil {
		ch <- prometheus.MustNewConstMetric(smileDeviceAvailable, prometheus.GaugeValue, boolValue(*device.Available), id, device.Name, device.DevClass)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
