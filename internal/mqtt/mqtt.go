// Package mqtt republishes gateway snapshots to an MQTT broker, so the
// readings can be picked up by home automation systems.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vhamers/smile-monitor/internal/poller"
	"github.com/vhamers/smile-monitor/pkg/smile"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
	payloadOn      = "on"
	payloadOff     = "off"

	tokenTimeout = 10 * time.Second
)

type Config struct {
	Broker    string // e.g. tcp://localhost:1883
	Username  string
	Password  string
	BaseTopic string // default "smile"
}

// Publisher forwards each snapshot to the broker. Sensor values go to
// <base>/<device id>/sensor/<name>/state, binary sensors and switches to
// their own subtrees, and <base>/bridge/state carries the bridge
// availability (with an MQTT will so the broker flips it to "offline" when
// the connection drops).
type Publisher struct {
	Poller poller.Poller
	logger *slog.Logger
	cfg    Config
	client pahomqtt.Client
}

func New(cfg Config, p poller.Poller, logger *slog.Logger) *Publisher {
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "smile"
	}
	publisher := Publisher{
		Poller: p,
		logger: logger,
		cfg:    cfg,
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(fmt.Sprintf("smile-monitor-%d", rand.IntN(1000)))
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.WillEnabled = true
	opts.WillTopic = publisher.bridgeStateTopic()
	opts.WillPayload = []byte(payloadOffline)
	opts.WillRetained = true
	opts.OnConnect = func(c pahomqtt.Client) {
		logger.Info("connected to broker", slog.String("broker", cfg.Broker))
		c.Publish(publisher.bridgeStateTopic(), 0, true, payloadOnline)
	}
	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		logger.Warn("lost connection to broker", slog.Any("err", err))
	}
	publisher.client = pahomqtt.NewClient(opts)

	return &publisher
}

func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Debug("started")
	defer p.logger.Debug("stopped")

	if token := p.client.Connect(); token.WaitTimeout(tokenTimeout) && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	ch := p.Poller.Subscribe()
	defer p.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			p.client.Publish(p.bridgeStateTopic(), 0, true, payloadOffline)
			p.client.Disconnect(uint(tokenTimeout.Milliseconds()))
			return nil
		case snapshot := <-ch:
			p.publish(snapshot)
		}
	}
}

func (p *Publisher) publish(snapshot *smile.Snapshot) {
	start := time.Now()
	var count int
	for _, id := range snapshot.DeviceList {
		device, ok := snapshot.Devices[id]
		if !ok {
			continue
		}
		count += p.publishDevice(id, device)
	}
	p.logger.Debug("snapshot published",
		slog.Int("messages", count),
		slog.Duration("duration", time.Since(start)),
	)
}

func (p *Publisher) publishDevice(id string, device *smile.Device) int {
	var count int
	for name, value := range device.Sensors {
		p.send(p.deviceTopic(id, "sensor", name), strconv.FormatFloat(value, 'f', -1, 64))
		count++
	}
	for name, state := range device.BinarySensors {
		p.send(p.deviceTopic(id, "binary_sensor", name), onOff(state))
		count++
	}
	for name, state := range device.Switches {
		p.send(p.deviceTopic(id, "switch", name), onOff(state))
		count++
	}
	if device.Available != nil {
		payload := payloadOffline
		if *device.Available {
			payload = payloadOnline
		}
		p.send(p.deviceTopic(id, "availability", "state"), payload)
		count++
	}
	return count
}

func (p *Publisher) send(topic string, payload string) {
	token := p.client.Publish(topic, 0, true, payload)
	go func() {
		if !token.WaitTimeout(tokenTimeout) {
			p.logger.Warn("publish timed out", slog.String("topic", topic))
		} else if err := token.Error(); err != nil {
			p.logger.Warn("publish failed", slog.String("topic", topic), slog.Any("err", err))
		}
	}()
}

func (p *Publisher) bridgeStateTopic() string {
	return p.cfg.BaseTopic + "/bridge/state"
}

func (p *Publisher) deviceTopic(deviceID, kind, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s/state", p.cfg.BaseTopic, deviceID, kind, name)
}

func onOff(b bool) string {
	if b {
		return payloadOn
	}
	return payloadOff
}
