package challenges

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Load when a newer Load for the same
// challenge started before this one finished.
var ErrSuperseded = errors.New("challenge fetch superseded")

// DetailLoader fetches challenge details with last-request-wins semantics.
type DetailLoader struct {
	src   Source
	store *Store

	mu       sync.Mutex
	seq      uint64
	inflight map[int]pendingFetch
}

type pendingFetch struct {
	seq    uint64
	cancel context.CancelFunc
}

func NewDetailLoader(src Source, store *Store) *DetailLoader {
	return &DetailLoader{src: src, store: store, inflight: map[int]pendingFetch{}}
}

// Load cancels any earlier fetch of id, fetches the challenge and merges it
// into the store. A superseded fetch never reaches the store.
func (l *DetailLoader) Load(ctx context.Context, id int) (Challenge, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if prev, ok := l.inflight[id]; ok {
		prev.cancel()
	}
	l.seq++
	mine := l.seq
	l.inflight[id] = pendingFetch{seq: mine, cancel: cancel}
	l.mu.Unlock()

	requestedAt := l.store.clock.Now()
	ch, err := l.src.Get(ctx, id)

	l.mu.Lock()
	cur, ok := l.inflight[id]
	latest := ok && cur.seq == mine
	if latest {
		delete(l.inflight, id)
	}
	l.mu.Unlock()

	if !latest {
		return Challenge{}, ErrSuperseded
	}
	if err != nil {
		return Challenge{}, err
	}
	if err := l.store.Merge([]Challenge{ch}, requestedAt); err != nil {
		return Challenge{}, err
	}
	stored, _ := l.store.Get(id)
	return stored, nil
}
