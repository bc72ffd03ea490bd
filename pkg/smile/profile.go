package smile

import (
	"context"
	"net/http"
)

// profile captures the differences between gateway generations: which
// endpoints exist, and how the device walk starts. Everything downstream of
// collectDevices is shared.
type profile interface {
	fetch(ctx context.Context, c *Client) (*documents, error)
	collectDevices(b *builder) error
}

func selectProfile(caps Capabilities) profile {
	if !caps.Legacy {
		return modernProfile{power: caps.SmileType == typePower}
	}
	switch caps.SmileType {
	case typePower:
		return legacyP1Profile{}
	case typeStretch:
		return stretchProfile{}
	default:
		return legacyAnnaProfile{}
	}
}

// modernProfile covers Adam, current Annas and current P1 gateways.
type modernProfile struct {
	power bool
}

func (modernProfile) fetch(ctx context.Context, c *Client) (*documents, error) {
	docs := &documents{}
	var err error
	if docs.domainObjects, err = c.request(ctx, http.MethodGet, endpointDomainObjects, ""); err != nil {
		return nil, err
	}
	if docs.appliances, err = c.request(ctx, http.MethodGet, endpointAppliances, ""); err != nil {
		return nil, err
	}
	if docs.locations, err = c.request(ctx, http.MethodGet, endpointLocations, ""); err != nil {
		return nil, err
	}
	if docs.modules, err = c.request(ctx, http.MethodGet, endpointModules, ""); err != nil {
		return nil, err
	}
	return docs, nil
}

func (p modernProfile) collectDevices(b *builder) error {
	if err := b.collectAppliances(); err != nil {
		return err
	}
	if p.power {
		return b.p1SmartmeterInfo()
	}
	return nil
}

// legacyAnnaProfile covers firmware 1.x Annas, which only expose
// domain_objects: the appliance and location documents are aliases of it, and
// there is no gateway appliance to find.
type legacyAnnaProfile struct{}

func (legacyAnnaProfile) fetch(ctx context.Context, c *Client) (*documents, error) {
	docs := &documents{}
	var err error
	if docs.domainObjects, err = c.request(ctx, http.MethodGet, endpointDomainObjects, ""); err != nil {
		return nil, err
	}
	if docs.modules, err = c.request(ctx, http.MethodGet, endpointModules, ""); err != nil {
		return nil, err
	}
	if docs.status, err = c.request(ctx, http.MethodGet, endpointStatus, ""); err != nil {
		return nil, err
	}
	docs.appliances = docs.domainObjects
	docs.locations = docs.domainObjects
	return docs, nil
}

func (legacyAnnaProfile) collectDevices(b *builder) error {
	b.createLegacyGateway()
	return b.collectAppliances()
}

// legacyP1Profile covers firmware 2.x P1 gateways: no appliances document, the
// smartmeter is found through the module services instead.
type legacyP1Profile struct{}

func (legacyP1Profile) fetch(ctx context.Context, c *Client) (*documents, error) {
	docs := &documents{}
	var err error
	if docs.domainObjects, err = c.request(ctx, http.MethodGet, endpointDomainObjects, ""); err != nil {
		return nil, err
	}
	if docs.locations, err = c.request(ctx, http.MethodGet, endpointLocations, ""); err != nil {
		return nil, err
	}
	if docs.modules, err = c.request(ctx, http.MethodGet, endpointModules, ""); err != nil {
		return nil, err
	}
	if docs.status, err = c.request(ctx, http.MethodGet, endpointStatus, ""); err != nil {
		return nil, err
	}
	docs.appliances = docs.domainObjects
	return docs, nil
}

func (legacyP1Profile) collectDevices(b *builder) error {
	b.createLegacyGateway()
	return b.p1SmartmeterInfo()
}

// stretchProfile covers Stretch v2/v3 plug hubs.
type stretchProfile struct{}

func (stretchProfile) fetch(ctx context.Context, c *Client) (*documents, error) {
	docs := &documents{}
	var err error
	if docs.domainObjects, err = c.request(ctx, http.MethodGet, endpointDomainObjects, ""); err != nil {
		return nil, err
	}
	if docs.appliances, err = c.request(ctx, http.MethodGet, endpointAppliances, ""); err != nil {
		return nil, err
	}
	if docs.modules, err = c.request(ctx, http.MethodGet, endpointModules, ""); err != nil {
		return nil, err
	}
	if docs.status, err = c.request(ctx, http.MethodGet, endpointStatus, ""); err != nil {
		return nil, err
	}
	docs.locations = docs.domainObjects
	return docs, nil
}

func (stretchProfile) collectDevices(b *builder) error {
	b.createLegacyGateway()
	return b.collectAppliances()
}
