package smile

import "github.com/vhamers/smile-monitor/internal/xmltree"

// documents holds the most recently fetched XML trees, keyed by endpoint.
// Refreshed wholesale each update cycle; legacy generations alias some
// documents to domain_objects because the endpoint does not exist there.
type documents struct {
	domainObjects *xmltree.Node
	appliances    *xmltree.Node
	locations     *xmltree.Node
	modules       *xmltree.Node
	status        *xmltree.Node
}

// notifications extracts the notification mapping from the domain document.
// Malformed notifications are skipped rather than failing the cycle.
func (d *documents) notifications() map[string]map[string]string {
	result := make(map[string]map[string]string)
	if d.domainObjects == nil {
		return result
	}
	for _, notification := range d.domainObjects.FindAll("./notification") {
		id := notification.Attr("id")
		msgType := notification.ChildText("type")
		msg := notification.ChildText("message")
		if id == "" || msgType == "" {
			continue
		}
		result[id] = map[string]string{msgType: msg}
	}
	return result
}
