package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Interval is the tick cadence of every countdown display.
const Interval = time.Second

// Ticker calls a function once per Interval between Start and Stop.
// No clock ticker exists while it is stopped.
type Ticker struct {
	clock clockwork.Clock

	mu   sync.Mutex
	done chan struct{}
}

func NewTicker(clock clockwork.Clock) *Ticker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ticker{clock: clock}
}

// Start begins ticking. It is a no-op when the ticker is already running.
func (t *Ticker) Start(onTick func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		return
	}
	done := make(chan struct{})
	t.done = done
	tk := t.clock.NewTicker(Interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-done:
				return
			case <-tk.Chan():
				select {
				case <-done:
					return
				default:
				}
				onTick()
			}
		}
	}()
}

// Stop releases the clock ticker. Safe to call from inside onTick.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		return
	}
	close(t.done)
	t.done = nil
}

func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done != nil
}
