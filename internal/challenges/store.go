package challenges

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Store is the shared challenge collection. Every reader sees the same
// records; writers patch individual fields so concurrent updates to
// different fields of one challenge do not overwrite each other.
type Store struct {
	path  string
	clock clockwork.Clock

	mu    sync.RWMutex
	snap  Snapshot
	subs  map[int]func(Challenge)
	subID int
}

// Snapshot is the on-disk cache format.
type Snapshot struct {
	Challenges map[int]Challenge `json:"challenges"`
	Order      []int             `json:"order"`
	SyncedAt   map[int]time.Time `json:"synced_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NewStore loads the cache at path. An empty path keeps the store in memory only.
func NewStore(path string, clock clockwork.Clock) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Store{
		path:  path,
		clock: clock,
		snap:  emptySnapshot(),
		subs:  map[int]func(Challenge){},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func emptySnapshot() Snapshot {
	return Snapshot{Challenges: map[int]Challenge{}, SyncedAt: map[int]time.Time{}}
}

func (s *Store) Get(id int) (Challenge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.snap.Challenges[id]
	return c, ok
}

// List returns challenges in the order the platform listed them.
func (s *Store) List() []Challenge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Challenge, 0, len(s.snap.Order))
	for _, id := range s.snap.Order {
		if c, ok := s.snap.Challenges[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Merge stores fetched challenges. requestedAt is when the fetch was issued:
// instance fields patched after that moment are newer than the fetched copy
// and are kept.
func (s *Store) Merge(fetched []Challenge, requestedAt time.Time) error {
	s.mu.Lock()
	now := s.clock.Now()
	changed := make([]Challenge, 0, len(fetched))
	for _, c := range fetched {
		c.normalize()
		prev, exists := s.snap.Challenges[c.ID]
		if !exists {
			s.snap.Order = append(s.snap.Order, c.ID)
		}
		if exists && s.snap.SyncedAt[c.ID].After(requestedAt) {
			c.Remote, c.Timeout, c.SyncedAt = prev.Remote, prev.Timeout, prev.SyncedAt
		} else {
			c.SyncedAt = now
			s.snap.SyncedAt[c.ID] = now
		}
		if exists && prev.Solved {
			c.Solved = true
		}
		s.snap.Challenges[c.ID] = c
		changed = append(changed, c)
	}
	s.snap.UpdatedAt = now
	err := s.persistLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, c := range changed {
		notify(subs, c)
	}
	return err
}

// UpdateChallenge applies p to one challenge and reports whether it exists.
// Setting Timeout also records the sync time it decays from.
func (s *Store) UpdateChallenge(id int, p Patch) bool {
	s.mu.Lock()
	c, ok := s.snap.Challenges[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	now := s.clock.Now()
	if p.Remote != nil {
		c.Remote = *p.Remote
	}
	if p.Timeout != nil {
		c.Timeout = max(*p.Timeout, 0)
		c.SyncedAt = now
		s.snap.SyncedAt[id] = now
	}
	if p.Solved != nil {
		c.Solved = *p.Solved
	}
	s.snap.Challenges[id] = c
	s.snap.UpdatedAt = now
	// The cache is best effort; the in-memory record is authoritative.
	_ = s.persistLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, c)
	return true
}

// MarkSolved flags every listed challenge as solved.
func (s *Store) MarkSolved(solves []Solve) {
	for _, sv := range solves {
		s.UpdateChallenge(sv.ChallengeID, Patch{Solved: Bool(true)})
	}
}

// Subscribe registers fn for every record change and returns its cancel func.
// fn runs outside the store lock.
func (s *Store) Subscribe(fn func(Challenge)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subID++
	id := s.subID
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) subscribersLocked() []func(Challenge) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Challenge), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

func notify(subs []func(Challenge), c Challenge) {
	for _, fn := range subs {
		fn(c)
	}
}

func (s *Store) load() error {
	if s.path == "" {
		return nil
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read challenge cache: %w", err)
	}
	if len(b) == 0 {
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("parse challenge cache: %w", err)
	}
	if snap.Challenges == nil {
		snap.Challenges = map[int]Challenge{}
	}
	if snap.SyncedAt == nil {
		snap.SyncedAt = map[int]time.Time{}
	}
	for id, c := range snap.Challenges {
		c.SyncedAt = snap.SyncedAt[id]
		snap.Challenges[id] = c
	}
	s.snap = snap
	return nil
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	b, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal challenge cache: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write temp cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
