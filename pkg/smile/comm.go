package smile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vhamers/smile-monitor/internal/xmltree"
)

// transportRetries bounds the retry count on transient network failures.
// HTTP-level errors (auth, response shape) are never retried.
const transportRetries = 3

// request performs one HTTP exchange with the gateway and validates the
// response. GET returns the parsed document; PUT and DELETE return nil on
// success (the gateway answers 202, or 200 on some Stretch firmwares).
func (c *Client) request(ctx context.Context, method string, path string, body string) (*xmltree.Node, error) {
	url := c.baseURL + path

	var resp *http.Response
	var err error
	for attempt := 0; attempt <= transportRetries; attempt++ {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req, reqErr := http.NewRequestWithContext(ctx, method, url, reader)
		if reqErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, reqErr)
		}
		req.SetBasicAuth(c.username, c.password)
		switch method {
		case http.MethodGet:
			// Work-around for Stretch v2, harmless for the other gateways.
			req.Header.Set("Accept-Encoding", "gzip")
		case http.MethodPut:
			req.Header.Set("Content-Type", "text/xml")
		}

		resp, err = c.httpClient.Do(req)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
		}
		c.logger.Debug("request failed, retrying",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.Any("err", err),
		)
	}
	if err != nil {
		c.logger.Warn("giving up on gateway request",
			slog.String("method", method), slog.String("path", path), slog.Any("err", err))
		return nil, fmt.Errorf("%w: %s %s: %w", ErrConnectionFailed, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return c.validate(resp, method, path)
}

func (c *Client) validate(resp *http.Response, method string, path string) (*xmltree.Node, error) {
	// Command accepted gives an empty body with status 202. Some Stretch
	// firmwares answer 200 on PUT instead.
	if resp.StatusCode == http.StatusAccepted {
		return nil, nil
	}
	if method == http.MethodPut && resp.StatusCode == http.StatusOK {
		return nil, nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAuthentication, path)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, path, err)
	}
	text := string(raw)
	if text == "" || strings.Contains(text, "<error>") {
		c.logger.Warn("gateway response empty or error", slog.String("path", path))
		return nil, fmt.Errorf("%w: %s", ErrResponse, path)
	}

	doc, err := xmltree.ParseString(escapeIllegalXMLCharacters(text))
	if err != nil {
		c.logger.Warn("gateway returned invalid XML", slog.String("path", path))
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidXML, path, err)
	}
	return doc, nil
}

// escapeIllegalXMLCharacters replaces bare ampersands, which some legacy
// firmwares emit in user-chosen names.
func escapeIllegalXMLCharacters(text string) string {
	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] != '&' {
			sb.WriteByte(text[i])
			continue
		}
		rest := text[i:]
		if strings.HasPrefix(rest, "&amp;") || strings.HasPrefix(rest, "&lt;") ||
			strings.HasPrefix(rest, "&gt;") || strings.HasPrefix(rest, "&quot;") ||
			strings.HasPrefix(rest, "&apos;") {
			sb.WriteByte('&')
			continue
		}
		sb.WriteString("&amp;")
	}
	return sb.String()
}
