package instance

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/csai/ctf-client/internal/countdown"
)

// Result is the normalized outcome of a start request.
type Result struct {
	RemainingSeconds int
	Host             string
	AlreadyRunning   bool
	// Shape names the extractor that recognized the body; empty when none did.
	Shape string
}

// extractor reads the remaining lifetime out of one response shape.
type extractor struct {
	name string
	fn   func(v any, now time.Time) (int, bool)
}

// remainingExtractors are tried in order; the first recognized shape wins.
var remainingExtractors = []extractor{
	{name: "number", fn: bareNumber},
	{name: "timeout", fn: secondsField("timeout")},
	{name: "remaining", fn: secondsField("remaining")},
	{name: "lifetime", fn: secondsField("lifetime")},
	{name: "expiresAt", fn: deadlineField("expiresAt", "expires_at")},
}

var envelopeKeys = []string{"data", "instance"}

// Normalize turns a start response body into a Result. Bodies it cannot
// read normalize to zero remaining seconds and no host.
func Normalize(body []byte, now time.Time) Result {
	v, ok := decode(body)
	if !ok {
		return Result{}
	}
	candidates := []any{v}
	if obj, ok := v.(map[string]any); ok {
		for _, k := range envelopeKeys {
			if inner, ok := obj[k]; ok && inner != nil {
				candidates = append(candidates, inner)
			}
		}
	}

	var out Result
	for _, c := range candidates {
		if secs, shape, ok := extractRemaining(c, now); ok {
			out.RemainingSeconds = secs
			out.Shape = shape
			break
		}
	}
	for _, c := range candidates {
		if host := extractHost(c); host != "" {
			out.Host = host
			break
		}
	}
	for _, c := range candidates {
		if alreadyRunning(c) {
			out.AlreadyRunning = true
			break
		}
	}
	return out
}

func extractRemaining(v any, now time.Time) (int, string, bool) {
	for _, ex := range remainingExtractors {
		if secs, ok := ex.fn(v, now); ok {
			return clampSeconds(secs), ex.name, true
		}
	}
	return 0, "", false
}

func decode(body []byte) (any, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

func bareNumber(v any, _ time.Time) (int, bool) {
	f, ok := asNumber(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func secondsField(key string) func(any, time.Time) (int, bool) {
	return func(v any, _ time.Time) (int, bool) {
		obj, ok := v.(map[string]any)
		if !ok {
			return 0, false
		}
		f, ok := asNumber(obj[key])
		if !ok {
			return 0, false
		}
		return int(f), true
	}
}

func deadlineField(keys ...string) func(any, time.Time) (int, bool) {
	return func(v any, now time.Time) (int, bool) {
		obj, ok := v.(map[string]any)
		if !ok {
			return 0, false
		}
		for _, k := range keys {
			raw, present := obj[k]
			if !present || raw == nil {
				continue
			}
			if f, ok := asNumber(raw); ok {
				return countdown.RemainingFromMillis(epochMillis(f), now), true
			}
			if s, ok := raw.(string); ok {
				if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
					return countdown.Remaining(t, now), true
				}
			}
		}
		return 0, false
	}
}

// epochMillis accepts both millisecond and second epoch values.
func epochMillis(f float64) int64 {
	if f < 1e11 {
		return int64(f * 1000)
	}
	return int64(f)
}

func extractHost(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	host := ""
	for _, k := range []string{"host", "remote", "connection_info"} {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			host = strings.TrimSpace(s)
			break
		}
	}
	if host == "" {
		return ""
	}
	port, ok := asNumber(obj["port"])
	if !ok || port <= 0 || strings.Contains(host, "://") || hasPort(host) {
		return host
	}
	return host + ":" + strconv.Itoa(int(port))
}

func hasPort(host string) bool {
	if strings.HasPrefix(host, "[") {
		return strings.Contains(host, "]:")
	}
	i := strings.LastIndex(host, ":")
	if i < 0 || strings.Count(host, ":") > 1 {
		return false
	}
	_, err := strconv.Atoi(host[i+1:])
	return err == nil
}

func alreadyRunning(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if b, ok := obj["already_running"].(bool); ok && b {
		return true
	}
	status, _ := obj["status"].(string)
	return strings.EqualFold(status, "already_running")
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}

func clampSeconds(secs int) int {
	if secs < 0 {
		return 0
	}
	return secs
}
