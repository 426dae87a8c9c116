package notion

import (
	"net/http"
	"strings"
	"time"

	"github.com/pagegate/pagegate/pkg/logging"
)

// debugTransport logs every upstream exchange with credentials masked.
// Bodies are not captured; they can hold workspace content.
type debugTransport struct {
	base   http.RoundTripper
	logger *logging.Logger
}

func (t *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	details := map[string]any{
		"method":      req.Method,
		"url":         req.URL.String(),
		"headers":     sanitizeHeaders(req.Header),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		details["error"] = err.Error()
		t.logger.Warn(logging.CategoryUpstream, "request_failed", "upstream request failed", details)
		return nil, err
	}
	details["status"] = resp.StatusCode
	t.logger.Debug(logging.CategoryUpstream, "request", "upstream exchange", details)
	return resp, nil
}

// sanitizeHeaders converts headers to a map, masking sensitive values
func sanitizeHeaders(headers http.Header) map[string]string {
	result := make(map[string]string)
	for key, values := range headers {
		lowerKey := strings.ToLower(key)
		if lowerKey == "authorization" || lowerKey == "x-api-key" {
			result[key] = "[REDACTED]"
		} else {
			result[key] = strings.Join(values, ", ")
		}
	}
	return result
}
