package instance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
)

type recordedCall struct {
	Method      string
	Path        string
	ChallengeID int
}

type fakeOrchestrator struct {
	mu     sync.Mutex
	calls  []recordedCall
	status int
	body   string
}

func (f *fakeOrchestrator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req startStopRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Method: r.Method, Path: r.URL.Path, ChallengeID: req.ChallengeID})
	status, body := f.status, f.body
	f.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeOrchestrator) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func (f *fakeOrchestrator) respond(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.body = status, body
}

func newTestClient(t *testing.T, f *fakeOrchestrator) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return New(srv.URL, "/api/v1/instances", srv.Client(), WithClock(clockwork.NewFakeClockAt(testNow)))
}

func TestRequestStartRoundTrip(t *testing.T) {
	f := &fakeOrchestrator{status: http.StatusCreated, body: `{"host":"h","port":1337,"timeout":1800}`}
	c := newTestClient(t, f)

	res, err := c.RequestStart(context.Background(), 7)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.RemainingSeconds != 1800 || res.Host != "h:1337" {
		t.Fatalf("unexpected result: %+v", res)
	}
	calls := f.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	call := calls[0]
	if call.Method != http.MethodPost || call.Path != "/api/v1/instances" || call.ChallengeID != 7 {
		t.Fatalf("unexpected call: %+v", call)
	}
}

func TestRequestStartAlreadyRunningIsSuccess(t *testing.T) {
	f := &fakeOrchestrator{status: http.StatusOK, body: `{"already_running":true,"timeout":900,"host":"h","port":1}`}
	c := newTestClient(t, f)

	res, err := c.RequestStart(context.Background(), 1)
	if err != nil {
		t.Fatalf("already running must not be an error: %v", err)
	}
	if !res.AlreadyRunning || res.RemainingSeconds != 900 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRequestStartMalformedSuccessIsZero(t *testing.T) {
	f := &fakeOrchestrator{status: http.StatusOK, body: `<html>ok</html>`}
	c := newTestClient(t, f)

	res, err := c.RequestStart(context.Background(), 1)
	if err != nil {
		t.Fatalf("malformed success body must not be an error: %v", err)
	}
	if res.RemainingSeconds != 0 {
		t.Fatalf("expected 0 remaining, got %d", res.RemainingSeconds)
	}
}

func TestRequestStartRejectedMessages(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"message":"No capacity left."}`, "No capacity left."},
		{`{"error":{"code":"capacity_full","message":"Max concurrent instances reached."}}`, "Max concurrent instances reached."},
		{`{"error":"quota exceeded"}`, "quota exceeded"},
		{`{}`, FallbackStartMessage},
		{`gateway timeout`, FallbackStartMessage},
	}
	for _, tc := range cases {
		f := &fakeOrchestrator{status: http.StatusServiceUnavailable, body: tc.body}
		c := newTestClient(t, f)
		_, err := c.RequestStart(context.Background(), 3)
		if err == nil {
			t.Fatalf("body %s: expected error", tc.body)
		}
		var oe *OrchestratorError
		if !errors.As(err, &oe) {
			t.Fatalf("expected *OrchestratorError, got %T", err)
		}
		if oe.Kind != KindRejected || oe.StatusCode != http.StatusServiceUnavailable || oe.Op != OpStart {
			t.Fatalf("unexpected error fields: %+v", oe)
		}
		if err.Error() != tc.want {
			t.Fatalf("body %s: message %q, want %q", tc.body, err.Error(), tc.want)
		}
		if !IsRejected(err) || IsNetwork(err) {
			t.Fatalf("kind helpers disagree for %v", err)
		}
	}
}

func TestRequestStartNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, "", nil)
	_, err := c.RequestStart(context.Background(), 1)
	if !IsNetwork(err) {
		t.Fatalf("expected network failure, got %v", err)
	}
	if err.Error() != FallbackStartMessage {
		t.Fatalf("unexpected message %q", err.Error())
	}

	err = c.RequestStop(context.Background(), 1)
	if !IsNetwork(err) || err.Error() != FallbackStopMessage {
		t.Fatalf("unexpected stop error %v", err)
	}
}

func TestRequestStop(t *testing.T) {
	f := &fakeOrchestrator{status: http.StatusOK}
	c := newTestClient(t, f)
	if err := c.RequestStop(context.Background(), 9); err != nil {
		t.Fatalf("stop: %v", err)
	}
	calls := f.Calls()
	if len(calls) != 1 || calls[0].Method != http.MethodDelete || calls[0].ChallengeID != 9 {
		t.Fatalf("unexpected calls: %+v", calls)
	}

	f.respond(http.StatusNotFound, ``)
	err := c.RequestStop(context.Background(), 9)
	if !IsRejected(err) || err.Error() != FallbackStopMessage {
		t.Fatalf("expected rejected stop with fallback message, got %v", err)
	}
}
