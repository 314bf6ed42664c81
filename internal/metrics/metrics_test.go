package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRenderPrometheus(t *testing.T) {
	r := New()
	r.IncRequest("/instances")
	r.IncRequest("/instances")
	r.IncRequest("/challenges")
	r.IncError()
	r.ObserveRequestDuration(3 * time.Millisecond)
	r.ObserveRequestDuration(200 * time.Millisecond)
	r.ObserveRequestDuration(time.Minute)
	r.IncInstanceOp("start", true)
	r.IncInstanceOp("start", false)
	r.IncInstanceOp("stop", true)
	r.IncFlagAttempt("correct")

	out := r.RenderPrometheus()
	for _, want := range []string{
		"ctf_client_requests_total 3\n",
		"ctf_client_request_errors_total 1\n",
		`ctf_client_requests_by_path_total{path="/instances"} 2` + "\n",
		`ctf_client_request_duration_seconds_bucket{le="0.005"} 1` + "\n",
		`ctf_client_request_duration_seconds_bucket{le="0.1"} 1` + "\n",
		`ctf_client_request_duration_seconds_bucket{le="0.25"} 2` + "\n",
		`ctf_client_request_duration_seconds_bucket{le="10"} 2` + "\n",
		`ctf_client_request_duration_seconds_bucket{le="+Inf"} 3` + "\n",
		"ctf_client_request_duration_seconds_count 3\n",
		`ctf_client_instance_ops_total{op="start",outcome="failed"} 1` + "\n",
		`ctf_client_instance_ops_total{op="start",outcome="ok"} 1` + "\n",
		`ctf_client_instance_ops_total{op="stop",outcome="ok"} 1` + "\n",
		`ctf_client_flag_attempts_total{status="correct"} 1` + "\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWriteFile(t *testing.T) {
	r := New()
	r.IncRequest("/challenges")
	path := filepath.Join(t.TempDir(), "textfile", "ctf_client.prom")
	if err := r.WriteFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "ctf_client_requests_total 1") {
		t.Fatalf("unexpected content: %s", b)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}
