package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/csai/ctf-client/internal/config"
)

const (
	headerTimestamp = "X-Agent-Timestamp"
	headerNonce     = "X-Agent-Nonce"
	headerSignature = "X-Agent-Signature"
)

// Transport authenticates outbound requests according to the configured mode:
// "token" sends a CTFd access token, "bearer" a bearer token and "hmac" signs
// the request with a timestamp and a one-time nonce.
type Transport struct {
	base  http.RoundTripper
	mode  string
	token string
	key   []byte
	clock clockwork.Clock
	nonce func() string
}

func NewTransport(cfg config.AuthConfig, base http.RoundTripper, clock clockwork.Clock) (*Transport, error) {
	if base == nil {
		base = http.DefaultTransport
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "none"
	}
	switch mode {
	case "none":
	case "token", "bearer":
		if cfg.Token == "" {
			return nil, fmt.Errorf("auth mode %s requires a token", mode)
		}
	case "hmac":
		if cfg.HMACSecret == "" {
			return nil, fmt.Errorf("auth mode hmac requires a secret")
		}
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
	return &Transport{
		base:  base,
		mode:  mode,
		token: cfg.Token,
		key:   []byte(cfg.HMACSecret),
		clock: clock,
		nonce: uuid.NewString,
	}, nil
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.mode == "none" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	switch t.mode {
	case "token":
		req.Header.Set("Authorization", "Token "+t.token)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+t.token)
	case "hmac":
		if err := t.sign(req); err != nil {
			return nil, err
		}
	}
	return t.base.RoundTrip(req)
}

func (t *Transport) sign(req *http.Request) error {
	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return fmt.Errorf("read body for signing: %w", err)
		}
		body = b
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	ts := strconv.FormatInt(t.clock.Now().UTC().Unix(), 10)
	nonce := t.nonce()
	req.Header.Set(headerTimestamp, ts)
	req.Header.Set(headerNonce, nonce)
	req.Header.Set(headerSignature, Signature(t.key, req.Method, req.URL.Path, ts, nonce, body))
	return nil
}

// Signature is hex(HMAC-SHA256(secret, method \n path \n timestamp \n nonce \n hex(sha256(body)))).
func Signature(secret []byte, method, path, timestamp, nonce string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	canonical := method + "\n" + path + "\n" + timestamp + "\n" + nonce + "\n" + hex.EncodeToString(bodyHash[:])
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}
