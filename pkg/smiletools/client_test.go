package smiletools

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/clambin/go-common/http/roundtripper"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInstrumentedSmileClient(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "root",
			path: "/",
			want: `
# HELP smile_monitor_http_requests_total total number of http requests
# TYPE smile_monitor_http_requests_total counter
smile_monitor_http_requests_total{application="smile",code="404",method="GET",path="/"} 1
`,
		},
		{
			name: "document",
			path: "/core/domain_objects",
			want: `
# HELP smile_monitor_http_requests_total total number of http requests
# TYPE smile_monitor_http_requests_total counter
smile_monitor_http_requests_total{application="smile",code="404",method="GET",path="/core"} 1
`,
		},
		{
			name: "command with embedded ids",
			path: "/core/appliances;id=abc/relay;id=def",
			want: `
# HELP smile_monitor_http_requests_total total number of http requests
# TYPE smile_monitor_http_requests_total counter
smile_monitor_http_requests_total{application="smile",code="404",method="GET",path="/core"} 1
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			requestMetrics := NewSmileCallMetrics("smile", "monitor", map[string]string{"application": "smile"})
			finalRoundTripper := roundtripper.RoundTripperFunc(func(request *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(&bytes.Buffer{})}, nil
			})

			c := http.Client{Transport: getInstrumentedRoundTripper(finalRoundTripper, requestMetrics)}

			_, err := c.Get("http://localhost" + tt.path)
			require.NoError(t, err)

			assert.NoError(t, testutil.CollectAndCompare(requestMetrics, strings.NewReader(tt.want), "smile_monitor_http_requests_total"))
		})
	}
}
