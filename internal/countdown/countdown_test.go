package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestFormatBoundaries(t *testing.T) {
	cases := map[int]string{
		0:     "0s",
		1:     "1s",
		59:    "59s",
		60:    "1:00",
		61:    "1:01",
		3599:  "59:59",
		3600:  "1:00:00",
		3661:  "1:01:01",
		86399: "23:59:59",
		-5:    "0s",
	}
	for in, want := range cases {
		if got := Format(in); got != want {
			t.Fatalf("Format(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestRemainingClampsPastDeadline(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := Remaining(now.Add(-time.Minute), now); got != 0 {
		t.Fatalf("expected 0 for past deadline, got %d", got)
	}
	if got := Format(Remaining(now.Add(-time.Minute), now)); got != "0s" {
		t.Fatalf("expected 0s, got %q", got)
	}
	if got := Remaining(now.Add(90*time.Second+500*time.Millisecond), now); got != 90 {
		t.Fatalf("expected 90, got %d", got)
	}
	if got := Remaining(time.Time{}, now); got != 0 {
		t.Fatalf("expected 0 for zero deadline, got %d", got)
	}
}

func TestRemainingFromMillis(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(10 * time.Minute).UnixMilli()
	if got := RemainingFromMillis(deadline, now); got != 600 {
		t.Fatalf("expected 600, got %d", got)
	}
	if got := RemainingFromMillis(0, now); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestDecay(t *testing.T) {
	captured := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := Decay(1800, captured, captured.Add(30*time.Second)); got != 1770 {
		t.Fatalf("expected 1770, got %d", got)
	}
	if got := Decay(10, captured, captured.Add(time.Hour)); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := Decay(42, time.Time{}, captured); got != 42 {
		t.Fatalf("expected undecayed 42 without capture time, got %d", got)
	}
}

func TestTickerTicksUntilStopped(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tk := NewTicker(clock)
	ticks := make(chan struct{}, 8)
	tk.Start(func() { ticks <- struct{}{} })
	tk.Start(func() { t.Error("second Start must not install another callback") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			t.Fatalf("ticker never registered: %v", err)
		}
		clock.Advance(Interval)
		select {
		case <-ticks:
		case <-ctx.Done():
			t.Fatalf("tick %d not delivered", i)
		}
	}

	tk.Stop()
	if tk.Running() {
		t.Fatal("expected ticker stopped")
	}
	clock.Advance(5 * Interval)
	select {
	case <-ticks:
		t.Fatal("tick delivered after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}
