package challenges

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

var ErrNotFound = errors.New("challenge not found")

// APIError is a non-success answer from the platform.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("platform returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Source is the read side of the platform API.
type Source interface {
	List(ctx context.Context) ([]Challenge, error)
	Get(ctx context.Context, id int) (Challenge, error)
	Solves(ctx context.Context) ([]Solve, error)
}

// API talks to a CTFd-style platform API.
type API struct {
	baseURL string
	http    *http.Client
}

var _ Source = (*API)(nil)

func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (a *API) List(ctx context.Context) ([]Challenge, error) {
	var out []Challenge
	if err := a.call(ctx, http.MethodGet, "/challenges", nil, &out); err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	for i := range out {
		out[i].normalize()
	}
	return out, nil
}

func (a *API) Get(ctx context.Context, id int) (Challenge, error) {
	var out Challenge
	if err := a.call(ctx, http.MethodGet, "/challenges/"+strconv.Itoa(id), nil, &out); err != nil {
		return Challenge{}, fmt.Errorf("get challenge %d: %w", id, err)
	}
	out.normalize()
	return out, nil
}

func (a *API) Solves(ctx context.Context) ([]Solve, error) {
	var out []Solve
	if err := a.call(ctx, http.MethodGet, "/teams/me/solves", nil, &out); err != nil {
		return nil, fmt.Errorf("list solves: %w", err)
	}
	return out, nil
}

type attemptRequest struct {
	ChallengeID int    `json:"challenge_id"`
	Submission  string `json:"submission"`
}

// Attempt submits a flag.
func (a *API) Attempt(ctx context.Context, id int, submission string) (AttemptResult, error) {
	var out AttemptResult
	req := attemptRequest{ChallengeID: id, Submission: submission}
	if err := a.call(ctx, http.MethodPost, "/challenges/attempt", req, &out); err != nil {
		return AttemptResult{}, fmt.Errorf("submit flag for challenge %d: %w", id, err)
	}
	return out, nil
}

func (a *API) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: env.message()}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.message()}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func (e envelope) message() string {
	return strings.TrimSpace(e.Message)
}

// Refresh fetches the challenge list and the team's solves concurrently
// and merges both into store.
func Refresh(ctx context.Context, src Source, store *Store) error {
	requestedAt := store.clock.Now()
	var (
		list   []Challenge
		solves []Solve
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = src.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		solves, err = src.Solves(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := store.Merge(list, requestedAt); err != nil {
		return fmt.Errorf("store challenges: %w", err)
	}
	store.MarkSolved(solves)
	return nil
}
