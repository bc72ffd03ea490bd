package smile

import (
	"strings"

	"github.com/vhamers/smile-monitor/internal/xmltree"
)

// smartmeterData fills the P1 smartmeter device: modern gateways log under
// the home location, legacy ones under the meter module's services.
func (b *builder) smartmeterData(id string, dev *Device) error {
	if b.caps.Legacy {
		b.powerFromModules(dev)
	} else {
		b.powerFromLocation(dev)
	}

	available := true
	for _, messages := range b.notifications {
		for _, msg := range messages {
			if containsPhrase(msg, notifyNoP1Meter) {
				available = false
			}
		}
	}
	dev.Available = &available
	return nil
}

// powerFromLocation collects the smartmeter readings from the home location's
// logs: every measurement kind crossed with point/cumulative/interval logs and
// the two tariff buckets. Gas and phase quantities have no tariff dimension
// and fall back to an unqualified lookup.
func (b *builder) powerFromLocation(dev *Device) {
	location := b.docs.locations.Find(`./location[@id="` + dev.Location + `"]`)
	if location == nil {
		return
	}
	logs := location.Child("logs")
	if logs == nil {
		return
	}

	for meas, attrs := range p1Measurements {
		for _, logType := range []string{"point_log", "cumulative_log", "interval_log"} {
			for _, tariff := range []string{"nl_peak", "nl_offpeak"} {
				locator := `./` + logType + `[type="` + meas + `"]/period/measurement[@tariff="` + tariff + `"]`
				node := logs.Find(locator)
				if node == nil {
					if !strings.Contains(meas, "gas") && !strings.Contains(meas, "phase") && !strings.HasPrefix(meas, "voltage") {
						continue
					}
					// Untariffed quantity: process it once, on the peak pass.
					if tariff == "nl_offpeak" {
						continue
					}
					node = logs.Find(`./` + logType + `[type="` + meas + `"]/period/measurement`)
					if node == nil {
						continue
					}
				}

				logKind := strings.SplitN(logType, "_", 2)[0]
				key := powerKey(meas, tariff, logKind)
				value, ok := powerDataFormat(node.Text, key, attrs.unit)
				if !ok {
					continue
				}
				b.netElectricity(dev, meas, "net_electricity_"+logKind, value)
				b.setSensor(dev, key, value)
			}
		}
	}
}

// powerKey derives the published sensor key: electricity readings carry the
// tariff and log kind, gas drops the tariff, phase and voltage quantities use
// the bare measurement name.
func powerKey(meas string, tariff string, logKind string) string {
	if strings.Contains(meas, "phase") || strings.HasPrefix(meas, "voltage") {
		return meas
	}
	peak := "peak"
	if tariff == "nl_offpeak" {
		peak = "off_peak"
	}
	if strings.Contains(meas, "gas") {
		return meas + "_" + logKind
	}
	return meas + "_" + peak + "_" + logKind
}

// netElectricity maintains the running net consumption per log kind: consumed
// adds, produced subtracts. Integral arithmetic stays exact; fractional sums
// are kept at three decimals. Interval readings are excluded, their net value
// has no meaning across tariff buckets.
func (b *builder) netElectricity(dev *Device, meas string, netKey string, value float64) {
	if !strings.Contains(meas, "electricity") ||
		strings.Contains(meas, "phase") ||
		strings.Contains(netKey, "interval") {
		return
	}
	diff := value
	if strings.Contains(meas, "produced") {
		diff = -value
	}
	total := dev.Sensors[netKey] + diff
	if !isIntegral(dev.Sensors[netKey]) || !isIntegral(diff) {
		total = round(total, 3)
	}
	b.setSensor(dev, netKey, total)
}

// powerFromModules collects the legacy P1 readings from the meter services.
// Legacy point meters and gas meters lack a tariff indicator and fall back to
// a directionality-only lookup.
func (b *builder) powerFromModules(dev *Device) {
	var services []*xmltree.Node
	if b.docs.modules != nil {
		services = b.docs.modules.FindAll("./module/services")
	}

	for meas, attrs := range p1LegacyMeasurements {
		commodity, direction, ok := strings.Cut(meas, "_")
		if !ok {
			continue
		}
		for _, service := range services {
			for _, logType := range []string{"interval_meter", "cumulative_meter", "point_meter"} {
				for _, tariff := range []string{"nl_peak", "nl_offpeak"} {
					locator := `./` + commodity + `_` + logType +
						`/measurement[@directionality="` + direction + `"][@tariff_indicator="` + tariff + `"]`
					node := service.Find(locator)
					if node == nil {
						if logType != "point_meter" && !strings.Contains(meas, "gas") {
							continue
						}
						if tariff == "nl_offpeak" {
							continue
						}
						locator = `./` + commodity + `_` + logType + `/measurement[@directionality="` + direction + `"]`
						node = service.Find(locator)
						if node == nil {
							continue
						}
					}

					logKind := strings.SplitN(logType, "_", 2)[0]
					key := meas + "_" + legacyPeak(tariff) + "_" + logKind
					if strings.Contains(meas, "gas") || logType == "point_meter" {
						key = meas + "_" + logKind
					}
					value, ok := powerDataFormat(node.Text, key, attrs.unit)
					if !ok {
						continue
					}
					b.netElectricity(dev, meas, "net_electricity_"+logKind, value)
					b.setSensor(dev, key, value)
				}
			}
		}
	}
}

func legacyPeak(tariff string) string {
	if tariff == "nl_offpeak" {
		return "off_peak"
	}
	return "peak"
}
