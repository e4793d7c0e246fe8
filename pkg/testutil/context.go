package testutil

import (
	"net/http"
	"time"

	"kycflow/pkg/requestcontext"
)

// WithRequestID adds a correlation id to the request context, as the
// metadata middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithTime pins the request clock so idle and verification timeouts are
// deterministic in handler tests.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
