package lifecycle

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseRunning
	PhaseStopping
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// State is the per-challenge instance read model.
type State struct {
	ChallengeID int
	Instanced   bool
	Remaining   int
	Remote      string
	Starting    bool
	Stopping    bool
}

func (s State) Running() bool {
	return s.Instanced && s.Remaining > 0
}

func (s State) Phase() Phase {
	switch {
	case s.Starting:
		return PhaseStarting
	case s.Stopping:
		return PhaseStopping
	case s.Running():
		return PhaseRunning
	default:
		return PhaseIdle
	}
}

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a transient user-facing message.
type Notice struct {
	Level       Level
	ChallengeID int
	Message     string
}

type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }
