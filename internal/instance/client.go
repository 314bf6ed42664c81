package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"
)

const maxBodyBytes = 1 << 20

type startStopRequest struct {
	ChallengeID int `json:"chall_id"`
}

// Client issues start and stop requests to the orchestrator.
type Client struct {
	endpoint string
	http     *http.Client
	clock    clockwork.Clock
	logger   *slog.Logger
}

type Option func(*Client)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a client for the orchestrator at baseURL. instancesPath defaults to /instances.
func New(baseURL, instancesPath string, httpClient *http.Client, opts ...Option) *Client {
	if instancesPath == "" {
		instancesPath = "/instances"
	}
	if !strings.HasPrefix(instancesPath, "/") {
		instancesPath = "/" + instancesPath
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + instancesPath,
		http:     httpClient,
		clock:    clockwork.NewRealClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestStart asks the orchestrator to start the challenge's instance.
// An instance that is already running is a success.
func (c *Client) RequestStart(ctx context.Context, challengeID int) (Result, error) {
	status, body, err := c.do(ctx, http.MethodPost, challengeID)
	if err != nil {
		return Result{}, &OrchestratorError{Op: OpStart, Kind: KindNetwork, Message: FallbackStartMessage, Err: err}
	}
	if status < 200 || status >= 300 {
		return Result{}, rejected(OpStart, status, body)
	}
	res := Normalize(body, c.clock.Now())
	if res.Shape == "" {
		c.logger.Warn("instance_start_unrecognized_response",
			slog.Int("challenge_id", challengeID),
			slog.Int("status", status),
			slog.Int("body_bytes", len(body)),
		)
	}
	c.logger.Debug("instance_start_ok",
		slog.Int("challenge_id", challengeID),
		slog.Int("remaining_seconds", res.RemainingSeconds),
		slog.String("shape", res.Shape),
		slog.Bool("already_running", res.AlreadyRunning),
	)
	return res, nil
}

// RequestStop asks the orchestrator to destroy the challenge's instance.
func (c *Client) RequestStop(ctx context.Context, challengeID int) error {
	status, body, err := c.do(ctx, http.MethodDelete, challengeID)
	if err != nil {
		return &OrchestratorError{Op: OpStop, Kind: KindNetwork, Message: FallbackStopMessage, Err: err}
	}
	if status < 200 || status >= 300 {
		return rejected(OpStop, status, body)
	}
	c.logger.Debug("instance_stop_ok", slog.Int("challenge_id", challengeID))
	return nil
}

func (c *Client) do(ctx context.Context, method string, challengeID int) (int, []byte, error) {
	payload, err := json.Marshal(startStopRequest{ChallengeID: challengeID})
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, c.endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func rejected(op Op, status int, body []byte) *OrchestratorError {
	msg := errorMessage(body)
	if msg == "" {
		msg = fallbackMessage(op)
	}
	return &OrchestratorError{
		Op:         op,
		Kind:       KindRejected,
		StatusCode: status,
		Message:    msg,
		Err:        fmt.Errorf("orchestrator returned HTTP %d", status),
	}
}

// errorMessage reads {"message": ...}, {"error": {"message": ...}} or {"error": "..."}.
func errorMessage(body []byte) string {
	var envelope struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if m := strings.TrimSpace(envelope.Message); m != "" {
		return m
	}
	if len(envelope.Error) == 0 {
		return ""
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &nested); err == nil && strings.TrimSpace(nested.Message) != "" {
		return strings.TrimSpace(nested.Message)
	}
	var plain string
	if err := json.Unmarshal(envelope.Error, &plain); err == nil {
		return strings.TrimSpace(plain)
	}
	return ""
}
