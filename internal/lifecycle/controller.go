package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/csai/ctf-client/internal/challenges"
	"github.com/csai/ctf-client/internal/countdown"
	"github.com/csai/ctf-client/internal/instance"
)

type CommandClient interface {
	RequestStart(ctx context.Context, challengeID int) (instance.Result, error)
	RequestStop(ctx context.Context, challengeID int) error
}

// ChallengeStore receives the write-through of every successful start and stop.
type ChallengeStore interface {
	UpdateChallenge(id int, p challenges.Patch) bool
}

type detachedStore struct{}

func (detachedStore) UpdateChallenge(int, challenges.Patch) bool { return false }

type Metrics interface {
	IncInstanceOp(op string, ok bool)
}

// Controller drives the instance of one challenge.
type Controller struct {
	id       int
	client   CommandClient
	store    ChallengeStore
	notifier Notifier
	logger   *slog.Logger
	clock    clockwork.Clock
	metrics  Metrics
	ticker   *countdown.Ticker

	mu     sync.Mutex
	state  State
	closed bool
	subs   map[int]func(State)
	subID  int
}

type Option func(*Controller)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithMetrics(m Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// New seeds a controller from ch. An instance that is still within its
// decayed lifetime starts counting down immediately.
func New(ch challenges.Challenge, client CommandClient, store ChallengeStore, opts ...Option) *Controller {
	c := &Controller{
		id:       ch.ID,
		client:   client,
		store:    store,
		notifier: NotifierFunc(func(Notice) {}),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:    clockwork.NewRealClock(),
		subs:     map[int]func(State){},
	}
	if c.store == nil {
		c.store = detachedStore{}
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ticker = countdown.NewTicker(c.clock)

	c.state = State{ChallengeID: ch.ID, Instanced: ch.Instanced}
	if ch.Instanced {
		c.state.Remaining = ch.RemainingAt(c.clock.Now())
		if c.state.Remaining > 0 {
			c.state.Remote = ch.Remote
			c.ticker.Start(c.tick)
		}
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for every state change and returns its cancel func.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subID++
	id := c.subID
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Start requests an instance. It returns nil without doing anything when the
// challenge is not instanced or a start or stop is already in flight.
// Failures are also reported through the Notifier.
func (c *Controller) Start(ctx context.Context) error {
	if !c.begin(func(s *State) bool {
		if !s.Instanced || s.Starting || s.Stopping {
			return false
		}
		s.Starting = true
		return true
	}) {
		return nil
	}

	apply := func(*State) {}
	defer func() {
		c.settle(func(s *State) {
			apply(s)
			s.Starting = false
		})
	}()

	id := c.id
	res, err := c.client.RequestStart(ctx, id)
	c.record(instance.OpStart, err)
	if err != nil {
		c.fail(instance.OpStart, err)
		return err
	}
	c.store.UpdateChallenge(id, challenges.Patch{
		Remote:  challenges.String(res.Host),
		Timeout: challenges.Int(res.RemainingSeconds),
	})
	c.logger.Info("instance_started",
		slog.Int("challenge_id", id),
		slog.Int("remaining_seconds", res.RemainingSeconds),
		slog.Bool("already_running", res.AlreadyRunning),
	)
	apply = func(s *State) {
		s.Remaining = res.RemainingSeconds
		s.Remote = res.Host
	}
	return nil
}

// Stop requests destruction of the instance. On failure the instance is
// assumed to still be up and keeps counting down.
func (c *Controller) Stop(ctx context.Context) error {
	if !c.begin(func(s *State) bool {
		if !s.Instanced || s.Stopping || s.Starting {
			return false
		}
		s.Stopping = true
		return true
	}) {
		return nil
	}

	apply := func(*State) {}
	defer func() {
		c.settle(func(s *State) {
			apply(s)
			s.Stopping = false
		})
	}()

	id := c.id
	err := c.client.RequestStop(ctx, id)
	c.record(instance.OpStop, err)
	if err != nil {
		c.fail(instance.OpStop, err)
		return err
	}
	c.store.UpdateChallenge(id, challenges.Patch{
		Remote:  challenges.String(""),
		Timeout: challenges.Int(0),
	})
	c.logger.Info("instance_stopped", slog.Int("challenge_id", id))
	apply = func(s *State) {
		s.Remaining = 0
		s.Remote = ""
	}
	return nil
}

// Close detaches the controller. Responses that arrive afterwards still
// reach the store but no longer change or publish controller state.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.subs = map[int]func(State){}
	c.ticker.Stop()
}

func (c *Controller) begin(guard func(*State) bool) bool {
	c.mu.Lock()
	if c.closed || !guard(&c.state) {
		c.mu.Unlock()
		return false
	}
	snap, subs := c.state, c.subscribersLocked()
	c.mu.Unlock()
	publish(subs, snap)
	return true
}

func (c *Controller) settle(fn func(*State)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn(&c.state)
	c.syncTickerLocked()
	snap, subs := c.state, c.subscribersLocked()
	c.mu.Unlock()
	publish(subs, snap)
}

func (c *Controller) tick() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state.Remaining > 0 {
		c.state.Remaining--
	}
	c.syncTickerLocked()
	snap, subs := c.state, c.subscribersLocked()
	c.mu.Unlock()
	publish(subs, snap)
}

// syncTickerLocked keeps a ticker alive exactly while the instance is running.
func (c *Controller) syncTickerLocked() {
	if c.state.Remaining < 0 {
		c.state.Remaining = 0
	}
	if c.state.Running() {
		c.ticker.Start(c.tick)
		return
	}
	c.ticker.Stop()
	c.state.Remote = ""
}

func (c *Controller) fail(op instance.Op, err error) {
	id := c.id
	kind := "unknown"
	if oe, ok := asOrchestratorError(err); ok {
		kind = oe.Kind.String()
	}
	c.logger.Error("instance_"+string(op)+"_failed",
		slog.Int("challenge_id", id),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
	c.notifier.Notify(Notice{Level: LevelError, ChallengeID: id, Message: userMessage(op, err)})
}

func (c *Controller) record(op instance.Op, err error) {
	if c.metrics != nil {
		c.metrics.IncInstanceOp(string(op), err == nil)
	}
}

func (c *Controller) subscribersLocked() []func(State) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(State), 0, len(ids))
	for _, id := range ids {
		out = append(out, c.subs[id])
	}
	return out
}

func publish(subs []func(State), s State) {
	for _, fn := range subs {
		fn(s)
	}
}
