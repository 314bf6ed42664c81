package challenges

import (
	"strings"
	"time"

	"github.com/csai/ctf-client/internal/countdown"
)

type Challenge struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	Value       int    `json:"value"`
	Description string `json:"description,omitempty"`
	Solves      int    `json:"solves"`
	Solved      bool   `json:"solved_by_me"`
	Instanced   bool   `json:"instanced"`
	// Remote is the connection string of a running instance.
	Remote string `json:"remote,omitempty"`
	// Timeout is the remaining instance lifetime in seconds as of SyncedAt.
	Timeout  int       `json:"timeout,omitempty"`
	SyncedAt time.Time `json:"-"`
}

// IsInstanceType reports whether a challenge type provisions per-team instances.
func IsInstanceType(typ string) bool {
	switch strings.ToLower(typ) {
	case "container", "compose", "docker":
		return true
	}
	return false
}

// RemainingAt is Timeout decayed from SyncedAt to now.
func (c Challenge) RemainingAt(now time.Time) int {
	return countdown.Decay(c.Timeout, c.SyncedAt, now)
}

// Running reports whether the challenge has an instance that should still be up at now.
func (c Challenge) Running(now time.Time) bool {
	return c.Instanced && c.RemainingAt(now) > 0
}

func (c *Challenge) normalize() {
	if IsInstanceType(c.Type) {
		c.Instanced = true
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	c.Remote = strings.TrimSpace(c.Remote)
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Remote  *string
	Timeout *int
	Solved  *bool
}

func String(v string) *string { return &v }
func Int(v int) *int          { return &v }
func Bool(v bool) *bool       { return &v }

type Solve struct {
	ChallengeID int       `json:"challenge_id"`
	Date        time.Time `json:"date"`
}

type AttemptStatus string

const (
	AttemptCorrect       AttemptStatus = "correct"
	AttemptIncorrect     AttemptStatus = "incorrect"
	AttemptAlreadySolved AttemptStatus = "already_solved"
	AttemptPaused        AttemptStatus = "paused"
	AttemptRateLimited   AttemptStatus = "ratelimited"
)

type AttemptResult struct {
	Status  AttemptStatus `json:"status"`
	Message string        `json:"message"`
}
