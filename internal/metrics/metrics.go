package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var latencyBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Registry collects client-side counters for one process run.
type Registry struct {
	reqTotal   atomic.Uint64
	reqErrors  atomic.Uint64
	mu         sync.RWMutex
	pathCount  map[string]uint64
	latency    []uint64
	latencyInf uint64
	latencySum float64
	instOps    map[opKey]uint64
	attempts   map[string]uint64
}

type opKey struct {
	op      string
	outcome string
}

func New() *Registry {
	return &Registry{
		pathCount: map[string]uint64{},
		latency:   make([]uint64, len(latencyBounds)),
		instOps:   map[opKey]uint64{},
		attempts:  map[string]uint64{},
	}
}

func (r *Registry) IncRequest(path string) {
	r.reqTotal.Add(1)
	r.mu.Lock()
	r.pathCount[path]++
	r.mu.Unlock()
}

func (r *Registry) IncError() { r.reqErrors.Add(1) }

func (r *Registry) ObserveRequestDuration(d time.Duration) {
	secs := d.Seconds()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencySum += secs
	i := sort.SearchFloat64s(latencyBounds, secs)
	if i == len(latencyBounds) {
		r.latencyInf++
		return
	}
	r.latency[i]++
}

// IncInstanceOp counts a start or stop request by outcome.
func (r *Registry) IncInstanceOp(op string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	r.mu.Lock()
	r.instOps[opKey{op: op, outcome: outcome}]++
	r.mu.Unlock()
}

func (r *Registry) IncFlagAttempt(status string) {
	r.mu.Lock()
	r.attempts[status]++
	r.mu.Unlock()
}

func (r *Registry) RenderPrometheus() string {
	var b strings.Builder
	fmt.Fprintln(&b, "# HELP ctf_client_requests_total Total outbound API requests")
	fmt.Fprintln(&b, "# TYPE ctf_client_requests_total counter")
	fmt.Fprintf(&b, "ctf_client_requests_total %d\n", r.reqTotal.Load())
	fmt.Fprintln(&b, "# HELP ctf_client_request_errors_total Outbound requests that failed or returned an error status")
	fmt.Fprintln(&b, "# TYPE ctf_client_request_errors_total counter")
	fmt.Fprintf(&b, "ctf_client_request_errors_total %d\n", r.reqErrors.Load())

	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.pathCount))
	for k := range r.pathCount {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	fmt.Fprintln(&b, "# HELP ctf_client_requests_by_path_total Requests by path")
	fmt.Fprintln(&b, "# TYPE ctf_client_requests_by_path_total counter")
	for _, k := range paths {
		fmt.Fprintf(&b, "ctf_client_requests_by_path_total{path=%q} %d\n", k, r.pathCount[k])
	}

	fmt.Fprintln(&b, "# HELP ctf_client_request_duration_seconds Request duration histogram")
	fmt.Fprintln(&b, "# TYPE ctf_client_request_duration_seconds histogram")
	cumulative := uint64(0)
	for i, bound := range latencyBounds {
		cumulative += r.latency[i]
		fmt.Fprintf(&b, "ctf_client_request_duration_seconds_bucket{le=%q} %d\n", trimFloat(bound), cumulative)
	}
	fmt.Fprintf(&b, "ctf_client_request_duration_seconds_bucket{le=\"+Inf\"} %d\n", cumulative+r.latencyInf)
	fmt.Fprintf(&b, "ctf_client_request_duration_seconds_sum %s\n", trimFloat(r.latencySum))
	fmt.Fprintf(&b, "ctf_client_request_duration_seconds_count %d\n", cumulative+r.latencyInf)

	ops := make([]opKey, 0, len(r.instOps))
	for k := range r.instOps {
		ops = append(ops, k)
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].op != ops[j].op {
			return ops[i].op < ops[j].op
		}
		return ops[i].outcome < ops[j].outcome
	})
	fmt.Fprintln(&b, "# HELP ctf_client_instance_ops_total Instance start and stop requests by outcome")
	fmt.Fprintln(&b, "# TYPE ctf_client_instance_ops_total counter")
	for _, k := range ops {
		fmt.Fprintf(&b, "ctf_client_instance_ops_total{op=%q,outcome=%q} %d\n", k.op, k.outcome, r.instOps[k])
	}

	statuses := make([]string, 0, len(r.attempts))
	for k := range r.attempts {
		statuses = append(statuses, k)
	}
	sort.Strings(statuses)
	fmt.Fprintln(&b, "# HELP ctf_client_flag_attempts_total Flag submissions by result")
	fmt.Fprintln(&b, "# TYPE ctf_client_flag_attempts_total counter")
	for _, k := range statuses {
		fmt.Fprintf(&b, "ctf_client_flag_attempts_total{status=%q} %d\n", k, r.attempts[k])
	}
	return b.String()
}

// WriteFile writes the Prometheus text rendering to path for a textfile collector.
func (r *Registry) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(r.RenderPrometheus()), 0o644); err != nil {
		return fmt.Errorf("write temp metrics: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace metrics: %w", err)
	}
	return nil
}

func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}
