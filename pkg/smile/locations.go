package smile

import "github.com/vhamers/smile-monitor/internal/xmltree"

// collectLocations builds the location index from the locations document.
// Legacy Annas and Stretches have no locations at all: a single synthetic
// "Home" location is created instead. Legacy P1 gateways expose empty
// placeholder locations that are filtered out, and the remaining one is
// renamed to "Home" since it can contain privacy-sensitive user input.
func (b *builder) collectLocations() {
	var locations []*xmltree.Node
	if b.docs.locations != nil {
		locations = b.docs.locations.FindAll("./location")
	}
	if len(locations) == 0 && b.caps.Legacy {
		b.homeLocation = fakeLocationID
		b.addLocation(fakeLocationID, "Home")
		return
	}

	for _, location := range locations {
		name := location.ChildText("name")
		locID := location.Attr("id")
		if b.caps.Legacy && b.caps.SmileType == typePower {
			services := location.Child("services")
			if services == nil || len(services.Children) == 0 {
				continue
			}
			name = "Home"
		}
		if name == "Home" {
			b.homeLocation = locID
		}
		b.addLocation(locID, name)
	}
}

func (b *builder) addLocation(id string, name string) {
	if _, exists := b.locations[id]; !exists {
		b.locOrder = append(b.locOrder, id)
	}
	b.locations[id] = name
}
