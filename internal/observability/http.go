package observability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/csai/ctf-client/internal/metrics"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// WithRequestID pins the request id used for outbound calls made with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// Transport tags every outbound request with an X-Request-ID, logs it and
// records it in the metrics registry.
type Transport struct {
	Base      http.RoundTripper
	Logger    *slog.Logger
	Metrics   *metrics.Registry
	Clock     clockwork.Clock
	UserAgent string
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	clock := t.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	requestID := req.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = RequestIDFromContext(req.Context())
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req = req.Clone(req.Context())
	req.Header.Set("X-Request-ID", requestID)
	if t.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}

	start := clock.Now()
	if t.Metrics != nil {
		t.Metrics.IncRequest(req.URL.Path)
	}
	resp, err := base.RoundTrip(req)
	elapsed := clock.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if t.Metrics != nil {
		t.Metrics.ObserveRequestDuration(elapsed)
		if err != nil || status >= 400 {
			t.Metrics.IncError()
		}
	}
	if t.Logger != nil {
		attrs := []any{
			slog.String("request_id", requestID),
			slog.String("method", req.Method),
			slog.String("host", req.URL.Host),
			slog.String("path", req.URL.Path),
			slog.Int("status", status),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
		}
		if err != nil {
			t.Logger.Warn("http_request_failed", append(attrs, slog.String("error", err.Error()))...)
		} else {
			t.Logger.Debug("http_request", attrs...)
		}
	}
	return resp, err
}
