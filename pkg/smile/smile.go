// Package smile provides a client for Plugwise Smile home-automation gateways
// (Adam, Anna, P1, Stretch).
//
// Using this package typically involves creating a Client and connecting:
//
//	client := smile.New(smile.Config{
//	    Host:     "192.168.1.2",
//	    Password: "your-smile-id",
//	})
//	if err := client.Connect(ctx); err != nil { ... }
//
// Once connected, Update fetches the gateway's XML documents and reconciles
// them into a Snapshot: a gateway summary plus a normalized device mapping
// with typed sensors, binary sensors, switches and actuators. Control
// operations (SetTemperature, SetPreset, SetSwitchState, ...) translate an
// intent into the gateway's XML command vocabulary and PUT it back.
package smile

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vhamers/smile-monitor/internal/xmltree"
)

const (
	// DefaultUsername is the factory account on all Smile gateways.
	DefaultUsername = "smile"
	// DefaultPort is the gateway's HTTP port.
	DefaultPort = 80
	// DefaultTimeout bounds a single document fetch.
	DefaultTimeout = 30 * time.Second
)

// Config holds the connection parameters for a Smile gateway.
type Config struct {
	Host       string
	Port       int           // default 80
	Username   string        // default "smile"
	Password   string        // the Smile ID printed on the gateway
	Timeout    time.Duration // default 30s
	HTTPClient *http.Client  // optional, e.g. an instrumented client
	Logger     *slog.Logger  // optional
}

// Client polls a Smile gateway and issues control commands. A Client is safe
// for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	logger     *slog.Logger

	mu             sync.Mutex
	caps           Capabilities
	prof           profile
	docs           *documents
	gatewayID      string
	heaterID       string
	lastActive     map[string]string            // zone -> last active schedule name
	oldStates      map[string]map[string]string // zone -> schedule -> on/off
	offsetFunc     map[string]struct{}          // devices with temperature_offset capability
	regModes       []string
	dhwModes       []string
	coolingOn      bool
	coolingPresent bool
	connected      bool
}

// New creates a Client for the given gateway. Connect must be called before
// Update or any control operation.
func New(cfg Config) *Client {
	host := cfg.Host
	if strings.Count(host, ":") > 1 && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	username := cfg.Username
	if username == "" {
		username = DefaultUsername
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    "http://" + host + ":" + strconv.Itoa(port),
		username:   username,
		password:   cfg.Password,
		logger:     logger,
		lastActive: make(map[string]string),
		oldStates:  make(map[string]map[string]string),
		offsetFunc: make(map[string]struct{}),
	}
}

// Connect identifies the gateway: it verifies the vendor markers, detects the
// product generation from the model and firmware version, and determines the
// installation's capabilities. Fatal errors (ErrUnsupportedDevice,
// ErrInvalidSetup) are not recoverable by retrying.
func (c *Client) Connect(ctx context.Context) error {
	result, err := c.request(ctx, http.MethodGet, endpointDomainObjects, "")
	if err != nil {
		return err
	}

	var vendorNames, vendorModels []string
	for _, name := range result.FindAll("./module/vendor_name") {
		vendorNames = append(vendorNames, name.Text)
	}
	for _, model := range result.FindAll("./module/vendor_model") {
		vendorModels = append(vendorModels, model.Text)
	}
	dsmrMain := result.Find("./module/protocols/dsmrmain")

	hasVendorMarker := false
	for _, name := range vendorNames {
		if strings.Contains(name, "Plugwise") {
			hasVendorMarker = true
		}
	}
	if !hasVendorMarker && dsmrMain == nil {
		c.logger.Error("connected but expected vendor marker not found")
		return fmt.Errorf("%w: no vendor marker in %s", ErrResponse, endpointDomainObjects)
	}

	caps, err := c.detect(result, vendorModels)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.caps = caps
	c.prof = selectProfile(caps)
	c.connected = true
	c.mu.Unlock()

	c.logger.Debug("gateway identified",
		slog.String("name", caps.SmileName),
		slog.String("type", caps.SmileType),
		slog.String("version", caps.SmileVersion),
		slog.Bool("legacy", caps.Legacy),
	)

	// First full fetch, so control operations work before the first Update.
	docs, err := c.prof.fetch(ctx, c)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.docs = docs
	c.mu.Unlock()
	return nil
}

// detect determines the gateway generation and capabilities from the domain
// document.
func (c *Client) detect(result *xmltree.Node, vendorModels []string) (Capabilities, error) {
	var caps Capabilities

	gateway := result.Find("./gateway")
	if gateway == nil {
		return caps, fmt.Errorf("%w: no gateway element", ErrUnsupportedDevice)
	}
	model := gateway.ChildText("vendor_model")
	caps.Firmware = gateway.ChildText("firmware_version")
	caps.Hardware = gateway.ChildText("hardware_version")
	caps.Hostname = gateway.ChildText("hostname")
	caps.MACAddress = gateway.ChildText("mac_address")
	if model == "" || caps.Firmware == "" {
		return caps, fmt.Errorf("%w: missing model or firmware version", ErrUnsupportedDevice)
	}

	// An Anna wired behind an Adam must not be added on its own.
	if model != "smile_open_therm" {
		for _, m := range vendorModels {
			if m == "159.2" {
				c.logger.Error("this thermostat is connected to an Adam, add the Adam instead")
				return caps, fmt.Errorf("%w: thermostat connected to an Adam", ErrInvalidSetup)
			}
		}
	}

	major, _, _ := strings.Cut(caps.Firmware, ".")
	target := model + "_v" + major
	product, ok := supportedSmiles[target]
	if !ok {
		c.logger.Error("unsupported gateway", slog.String("target", target))
		return caps, fmt.Errorf("%w: %s", ErrUnsupportedDevice, target)
	}

	caps.SmileModel = "Gateway"
	caps.SmileName = product.name
	caps.SmileType = product.smileType
	caps.SmileVersion = caps.Firmware
	caps.Legacy = product.legacy
	caps.IsThermostat = product.smileType == typeThermostat
	if target == "stretch_v2" {
		caps.StretchV2 = true
	}
	if target == "stretch_v3" {
		caps.StretchV3 = true
	}

	if caps.IsThermostat {
		// Find the connected heating/cooling device: heat pump or gas-fired.
		caps.OnOffDevice = result.Find("./module/protocols/onoff_boiler") != nil
		caps.OpenThermDevice = result.Find("./module/protocols/open_therm_boiler") != nil
		caps.CoolingPresent = result.Find("./gateway/features/cooling") != nil
		caps.Elga = result.Find("./gateway/features/elga_support") != nil
	}
	return caps, nil
}

// Capabilities returns the detected installation capabilities. Only valid
// after Connect.
func (c *Client) Capabilities() Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps
}

// GatewayID returns the device id of the gateway itself. Only valid after the
// first Update.
func (c *Client) GatewayID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gatewayID
}

func (c *Client) smile(name string) bool {
	return c.caps.SmileName == name
}

// Update fetches all documents for this generation and reconciles them into a
// fresh Snapshot. On failure the client's public state is left untouched and
// the caller keeps its previous snapshot.
func (c *Client) Update(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: not connected", ErrInvalidOperation)
	}
	prof, caps := c.prof, c.caps
	// The builder writes last-active schedules while it assembles the
	// snapshot: it works on its own copy, merged back below under the lock.
	lastActive := maps.Clone(c.lastActive)
	c.mu.Unlock()

	docs, err := prof.fetch(ctx, c)
	if err != nil {
		return nil, err
	}

	b := newBuilder(caps, prof, docs, lastActive, c.logger)
	snapshot, err := b.build()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.docs = docs
	c.gatewayID = snapshot.Gateway.GatewayID
	c.heaterID = snapshot.Gateway.HeaterID
	c.regModes = b.regModes
	c.dhwModes = b.dhwModes
	c.coolingOn = b.coolingEnabled
	c.coolingPresent = b.coolingAvailable()
	c.offsetFunc = b.offsetFunc
	for locID, name := range b.lastActive {
		c.lastActive[locID] = name
	}
	for locID, states := range b.oldStates {
		c.oldStates[locID] = states
	}
	c.mu.Unlock()

	return snapshot, nil
}
