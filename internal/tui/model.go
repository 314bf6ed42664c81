package tui

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csai/ctf-client/internal/challenges"
	"github.com/csai/ctf-client/internal/lifecycle"
)

// Controller is the part of lifecycle.Controller the watch screen drives.
type Controller interface {
	State() lifecycle.State
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type StateMsg lifecycle.State

type NoticeMsg lifecycle.Notice

type frameMsg struct{}

type toastExpiredMsg struct{ seq int }

type Options struct {
	Styles        Styles
	ToastFor      time.Duration
	EllipsisEvery time.Duration
	// Copy writes to the system clipboard. Defaults to clipboard.WriteAll.
	Copy func(string) error
}

// Model is the Bubble Tea screen for watching one challenge instance.
type Model struct {
	ctx       context.Context
	ctrl      Controller
	challenge challenges.Challenge
	opts      Options

	state    lifecycle.State
	frame    int
	toast    *lifecycle.Notice
	toastSeq int
}

func NewModel(ctx context.Context, ch challenges.Challenge, ctrl Controller, opts Options) Model {
	if opts.ToastFor <= 0 {
		opts.ToastFor = 4 * time.Second
	}
	if opts.EllipsisEvery <= 0 {
		opts.EllipsisEvery = 400 * time.Millisecond
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	return Model{ctx: ctx, ctrl: ctrl, challenge: ch, opts: opts, state: ctrl.State()}
}

func (m Model) Init() tea.Cmd {
	return m.nextFrame()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case StateMsg:
		m.state = lifecycle.State(msg)
		return m, nil
	case NoticeMsg:
		return m.showToast(lifecycle.Notice(msg))
	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil
	case frameMsg:
		if m.state.Starting || m.state.Stopping {
			m.frame++
		}
		return m, m.nextFrame()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "s":
		if !m.state.Instanced || m.state.Running() || m.state.Starting {
			return m, nil
		}
		return m, m.run(m.ctrl.Start)
	case "x":
		if !m.state.Running() || m.state.Stopping {
			return m, nil
		}
		return m, m.run(m.ctrl.Stop)
	case "c":
		if !m.state.Running() || m.state.Remote == "" {
			return m, nil
		}
		if err := m.opts.Copy(m.state.Remote); err != nil {
			return m.showToast(lifecycle.Notice{Level: lifecycle.LevelError, ChallengeID: m.state.ChallengeID, Message: "Could not copy to clipboard."})
		}
		return m.showToast(lifecycle.Notice{Level: lifecycle.LevelInfo, ChallengeID: m.state.ChallengeID, Message: "Copied " + m.state.Remote})
	}
	return m, nil
}

// run issues op off the UI loop. Its outcome arrives as StateMsg and NoticeMsg.
func (m Model) run(op func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_ = op(ctx)
		return nil
	}
}

func (m Model) showToast(n lifecycle.Notice) (tea.Model, tea.Cmd) {
	m.toastSeq++
	m.toast = &n
	seq := m.toastSeq
	return m, tea.Tick(m.opts.ToastFor, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} })
}

func (m Model) nextFrame() tea.Cmd {
	return tea.Tick(m.opts.EllipsisEvery, func(time.Time) tea.Msg { return frameMsg{} })
}

func (m Model) View() string {
	st := m.opts.Styles
	var b strings.Builder
	b.WriteString(st.Title.Render(m.challenge.Name))
	if m.challenge.Category != "" {
		b.WriteString(" " + st.Dim.Render("["+m.challenge.Category+"]"))
	}
	b.WriteString("\n\n")
	if panel := Render(View{State: m.state, Frame: m.frame}, st); panel != "" {
		b.WriteString(panel)
	} else {
		b.WriteString(st.Dim.Render("This challenge has no instance."))
	}
	b.WriteString("\n\n")
	if m.toast != nil {
		style := st.Info
		if m.toast.Level == lifecycle.LevelError {
			style = st.Error
		}
		b.WriteString(style.Render(m.toast.Message))
		b.WriteString("\n")
	}
	b.WriteString(st.Dim.Render("s start • x stop • c copy • q quit"))
	b.WriteString("\n")
	return b.String()
}

// Bridge forwards controller output into a running Bubble Tea program.
// Messages sent before Attach are queued.
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
	pending []tea.Msg
}

func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.program = p
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	for _, msg := range pending {
		p.Send(msg)
	}
}

func (b *Bridge) Notify(n lifecycle.Notice) { b.send(NoticeMsg(n)) }

func (b *Bridge) Publish(s lifecycle.State) { b.send(StateMsg(s)) }

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.program
	if p == nil {
		b.pending = append(b.pending, msg)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	p.Send(msg)
}
