package tui

import (
	"strings"
	"time"

	"github.com/muesli/termenv"

	"github.com/csai/ctf-client/internal/challenges"
	"github.com/csai/ctf-client/internal/countdown"
	"github.com/csai/ctf-client/internal/lifecycle"
)

const (
	LabelStart    = "Start Instance"
	LabelStarting = "Starting"
	LabelStop     = "■ Stop"
	LabelStopping = "Stopping"
	LabelRunning  = "Instance Running"
)

type Action int

const (
	ActionNone Action = iota
	ActionStart
	ActionStop
)

// View is everything the instance panel depends on.
type View struct {
	State lifecycle.State
	// Frame advances the busy ellipsis.
	Frame int
}

type Button struct {
	Label    string
	Action   Action
	Disabled bool
}

type Connection struct {
	Text string
	// Link is set only when the connection string carries a URL scheme.
	Link string
}

// Panel is the instance panel content for one View.
type Panel struct {
	Visible    bool
	Running    bool
	Connection Connection
	Countdown  string
	Button     Button
}

func Describe(v View) Panel {
	s := v.State
	if !s.Instanced {
		return Panel{}
	}
	p := Panel{Visible: true}
	if !s.Running() {
		p.Button = Button{Label: LabelStart, Action: ActionStart}
		if s.Starting {
			p.Button = Button{Label: LabelStarting + ellipsis(v.Frame), Action: ActionStart, Disabled: true}
		}
		return p
	}
	p.Running = true
	p.Connection = connection(s.Remote)
	p.Countdown = countdown.Format(s.Remaining)
	p.Button = Button{Label: LabelStop, Action: ActionStop}
	if s.Stopping {
		p.Button = Button{Label: LabelStopping + ellipsis(v.Frame), Action: ActionStop, Disabled: true}
	}
	return p
}

// Render draws the instance panel. It renders nothing for static challenges.
func Render(v View, st Styles) string {
	p := Describe(v)
	if !p.Visible {
		return ""
	}
	var b strings.Builder
	if p.Running {
		conn := st.Remote.Render(p.Connection.Text)
		if p.Connection.Link != "" {
			conn = termenv.Hyperlink(p.Connection.Link, conn)
		}
		b.WriteString(conn)
		b.WriteString("  ")
		b.WriteString(st.Countdown.Render(p.Countdown))
		b.WriteString("\n")
	}
	b.WriteString(renderButton(p.Button, st))
	return b.String()
}

func renderButton(btn Button, st Styles) string {
	label := "[ " + btn.Label + " ]"
	switch {
	case btn.Disabled:
		return st.Disabled.Render(label)
	case btn.Action == ActionStop:
		return st.Danger.Render(label)
	default:
		return st.Button.Render(label)
	}
}

func connection(remote string) Connection {
	remote = strings.TrimSpace(remote)
	switch {
	case remote == "":
		return Connection{Text: LabelRunning}
	case hasScheme(remote):
		return Connection{Text: remote, Link: remote}
	default:
		return Connection{Text: "//" + remote}
	}
}

func hasScheme(s string) bool {
	i := strings.Index(s, "://")
	if i <= 0 {
		return false
	}
	for j, r := range s[:i] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case j > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

func ellipsis(frame int) string {
	if frame < 0 {
		frame = -frame
	}
	return strings.Repeat(".", frame%4)
}

// Badge is the countdown shown next to a challenge in lists.
func Badge(c challenges.Challenge, now time.Time) string {
	if !c.Running(now) {
		return ""
	}
	return "⏱ " + countdown.Format(c.RemainingAt(now))
}
