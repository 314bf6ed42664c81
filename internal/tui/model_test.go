package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csai/ctf-client/internal/challenges"
	"github.com/csai/ctf-client/internal/lifecycle"
)

type fakeController struct {
	mu     sync.Mutex
	state  lifecycle.State
	starts int
	stops  int
}

func (f *fakeController) State() lifecycle.State { return f.state }

func (f *fakeController) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeController) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func newTestModel(state lifecycle.State, copy func(string) error) (Model, *fakeController) {
	ctrl := &fakeController{state: state}
	m := NewModel(context.Background(), challenges.Challenge{ID: state.ChallengeID, Name: "baby web", Category: "web"}, ctrl,
		Options{Styles: PlainStyles(), Copy: copy})
	return m, ctrl
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModelStartKeyRunsController(t *testing.T) {
	m, ctrl := newTestModel(lifecycle.State{ChallengeID: 1, Instanced: true}, nil)
	m, cmd := update(t, m, key('s'))
	if cmd == nil {
		t.Fatalf("expected a command for start")
	}
	cmd()
	if ctrl.starts != 1 {
		t.Fatalf("expected controller start, got %d", ctrl.starts)
	}

	m, _ = update(t, m, StateMsg(lifecycle.State{ChallengeID: 1, Instanced: true, Starting: true}))
	if _, cmd := update(t, m, key('s')); cmd != nil {
		t.Fatalf("start while starting must not issue a command")
	}
	if !strings.Contains(m.View(), LabelStarting) {
		t.Fatalf("expected starting label in view:\n%s", m.View())
	}
}

func TestModelStopKeyOnlyWhenRunning(t *testing.T) {
	m, ctrl := newTestModel(lifecycle.State{ChallengeID: 1, Instanced: true}, nil)
	if _, cmd := update(t, m, key('x')); cmd != nil {
		t.Fatalf("stop while idle must not issue a command")
	}
	m, _ = update(t, m, StateMsg(lifecycle.State{ChallengeID: 1, Instanced: true, Remaining: 100, Remote: "h:1"}))
	_, cmd := update(t, m, key('x'))
	if cmd == nil {
		t.Fatalf("expected a command for stop")
	}
	cmd()
	if ctrl.stops != 1 {
		t.Fatalf("expected controller stop")
	}
}

func TestModelToastExpires(t *testing.T) {
	m, _ := newTestModel(lifecycle.State{ChallengeID: 1, Instanced: true}, nil)
	m, cmd := update(t, m, NoticeMsg(lifecycle.Notice{Level: lifecycle.LevelError, Message: "No capacity left."}))
	if cmd == nil || !strings.Contains(m.View(), "No capacity left.") {
		t.Fatalf("expected toast in view")
	}
	m, _ = update(t, m, NoticeMsg(lifecycle.Notice{Level: lifecycle.LevelError, Message: "second"}))

	// the first toast's timer must not clear the second toast
	m, _ = update(t, m, toastExpiredMsg{seq: 1})
	if !strings.Contains(m.View(), "second") {
		t.Fatalf("newer toast cleared by an older timer")
	}
	m, _ = update(t, m, toastExpiredMsg{seq: 2})
	if strings.Contains(m.View(), "second") {
		t.Fatalf("toast not cleared")
	}
}

func TestModelCopy(t *testing.T) {
	var copied string
	m, _ := newTestModel(lifecycle.State{ChallengeID: 1, Instanced: true, Remaining: 10, Remote: "h:1337"}, func(s string) error {
		copied = s
		return nil
	})
	m, _ = update(t, m, key('c'))
	if copied != "h:1337" || !strings.Contains(m.View(), "Copied h:1337") {
		t.Fatalf("copy failed: %q\n%s", copied, m.View())
	}

	m, _ = newTestModel(lifecycle.State{ChallengeID: 1, Instanced: true, Remaining: 10, Remote: "h:1"}, func(string) error {
		return errors.New("no clipboard")
	})
	m, _ = update(t, m, key('c'))
	if !strings.Contains(m.View(), "Could not copy") {
		t.Fatalf("expected copy error toast:\n%s", m.View())
	}
}

func TestModelFrameAdvancesOnlyWhileBusy(t *testing.T) {
	m, _ := newTestModel(lifecycle.State{ChallengeID: 1, Instanced: true}, nil)
	m, cmd := update(t, m, frameMsg{})
	if m.frame != 0 || cmd == nil {
		t.Fatalf("idle frame advanced or tick dropped")
	}
	m, _ = update(t, m, StateMsg(lifecycle.State{ChallengeID: 1, Instanced: true, Starting: true}))
	m, _ = update(t, m, frameMsg{})
	if m.frame != 1 {
		t.Fatalf("expected frame to advance while starting")
	}
}

func TestModelQuit(t *testing.T) {
	m, _ := newTestModel(lifecycle.State{}, nil)
	_, cmd := update(t, m, key('q'))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestBridgeQueuesUntilAttached(t *testing.T) {
	var b Bridge
	b.Notify(lifecycle.Notice{Message: "early"})
	b.Publish(lifecycle.State{ChallengeID: 1})
	if len(b.pending) != 2 {
		t.Fatalf("expected queued messages, got %d", len(b.pending))
	}
}
