package countdown

import (
	"fmt"
	"time"
)

// Remaining returns the whole seconds left until deadline, clamped at 0.
func Remaining(deadline, now time.Time) int {
	if deadline.IsZero() {
		return 0
	}
	secs := int(deadline.Sub(now) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// RemainingFromMillis is Remaining for a deadline expressed in milliseconds since the epoch.
func RemainingFromMillis(deadlineMs int64, now time.Time) int {
	if deadlineMs <= 0 {
		return 0
	}
	return Remaining(time.UnixMilli(deadlineMs), now)
}

// Decay returns a seconds count captured at capturedAt as seen at now.
func Decay(seconds int, capturedAt, now time.Time) int {
	if seconds <= 0 {
		return 0
	}
	if capturedAt.IsZero() {
		return seconds
	}
	return Remaining(capturedAt.Add(time.Duration(seconds)*time.Second), now)
}

// Format renders seconds as H:MM:SS, M:SS or Ns depending on the largest non-zero unit.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	case m > 0:
		return fmt.Sprintf("%d:%02d", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
