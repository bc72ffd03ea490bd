// Package smiletools provides helpers to construct an instrumented Smile
// client.
package smiletools

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/go-common/http/roundtripper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vhamers/smile-monitor/pkg/smile"
)

// GetInstrumentedSmileClient returns a Smile client whose HTTP requests are
// measured through the provided request metrics.
func GetInstrumentedSmileClient(cfg smile.Config, requestMetrics metrics.RequestMetrics) *smile.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = smile.DefaultTimeout
	}
	cfg.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: getInstrumentedRoundTripper(http.DefaultTransport, requestMetrics),
	}
	return smile.New(cfg)
}

func getInstrumentedRoundTripper(rt http.RoundTripper, requestMetrics metrics.RequestMetrics) http.RoundTripper {
	return roundtripper.New(
		roundtripper.WithRequestMetrics(requestMetrics),
		roundtripper.WithRoundTripper(rt),
	)
}

// NewSmileCallMetrics returns the request metrics for calls to the gateway.
// Paths are collapsed to their first segment: the gateway's endpoints embed
// object ids that would otherwise explode the label cardinality.
func NewSmileCallMetrics(namespace, subsystem string, labels prometheus.Labels) metrics.RequestMetrics {
	return metrics.NewRequestMetrics(metrics.Options{
		Namespace:   namespace,
		Subsystem:   subsystem,
		ConstLabels: labels,
		LabelValues: func(request *http.Request, statusCode int) (string, string, string) {
			path := request.URL.Path
			if parts := strings.SplitN(path, "/", 3); len(parts) > 1 {
				path = "/" + parts[1]
			}
			if i := strings.IndexByte(path, ';'); i >= 0 {
				path = path[:i]
			}
			return request.Method, path, strconv.Itoa(statusCode)
		},
	})
}
