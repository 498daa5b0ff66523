package unlimited

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// MemoryDraftStore is an in-process DraftStore used by tests and single-node dev
// setups. Expired drafts are dropped lazily on access.
type MemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string]*Draft
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryDraftStore(ttl time.Duration, now func() time.Time) *MemoryDraftStore {
	if ttl <= 0 {
		ttl = DefaultConfig().DraftTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryDraftStore{
		drafts: make(map[string]*Draft),
		ttl:    ttl,
		now:    now,
	}
}

// lookup must be called with mu held.
func (s *MemoryDraftStore) lookup(id string) (*Draft, bool) {
	d, ok := s.drafts[id]
	if !ok {
		return nil, false
	}
	if !s.now().Before(d.ExpiresAt) {
		delete(s.drafts, id)
		return nil, false
	}
	return d, true
}

func (s *MemoryDraftStore) touch(d *Draft) {
	now := s.now().UTC()
	d.UpdatedAt = now
	d.ExpiresAt = now.Add(s.ttl)
}

func (s *MemoryDraftStore) Create(_ context.Context, d *Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(d.ID); ok {
		return fmt.Errorf("draft %s already exists", d.ID)
	}
	s.touch(d)
	if d.CreatedAt.IsZero() {
		d.CreatedAt = d.UpdatedAt
	}
	s.drafts[d.ID] = d.clone()
	return nil
}

func (s *MemoryDraftStore) Get(_ context.Context, id string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.lookup(id)
	if !ok {
		return nil, ErrDraftNotFound
	}
	return d.clone(), nil
}

func (s *MemoryDraftStore) Update(_ context.Context, id string, fn func(d *Draft) error) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.lookup(id)
	if !ok {
		return nil, ErrDraftNotFound
	}
	next := current.clone()
	if err := fn(next); err != nil {
		if errors.Is(err, errNoChange) {
			return current.clone(), nil
		}
		return nil, err
	}
	s.touch(next)
	s.drafts[id] = next
	return next.clone(), nil
}

func (s *MemoryDraftStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, id)
	return nil
}
