// Package memory is a thread-safe in-process store.Store, used in test mode
// and for local development without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/undeadops/snip/internal/store"
)

type entry struct {
	rec store.ShortURL
	seq uint64
}

// Store keeps records in maps guarded by a single RWMutex.
type Store struct {
	mu     sync.RWMutex
	byKey  map[string]*entry
	byFull map[string]string
	seq    uint64
	now    func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		byKey:  make(map[string]*entry),
		byFull: make(map[string]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) FindByFull(ctx context.Context, full string) (store.ShortURL, error) {
	if err := ctx.Err(); err != nil {
		return store.ShortURL{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	short, ok := s.byFull[full]
	if !ok {
		return store.ShortURL{}, store.ErrNotFound
	}
	return s.byKey[short].rec, nil
}

func (s *Store) FindByShort(ctx context.Context, short string) (store.ShortURL, error) {
	if err := ctx.Err(); err != nil {
		return store.ShortURL{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byKey[short]
	if !ok {
		return store.ShortURL{}, store.ErrNotFound
	}
	return e.rec, nil
}

func (s *Store) Create(ctx context.Context, full, short string) (store.ShortURL, error) {
	if err := ctx.Err(); err != nil {
		return store.ShortURL{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[short]; exists {
		return store.ShortURL{}, store.ErrShortExists
	}

	now := s.now()
	s.seq++
	rec := store.ShortURL{
		ID:        uuid.NewString(),
		Full:      full,
		Short:     short,
		Clicks:    0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byKey[short] = &entry{rec: rec, seq: s.seq}
	// first writer wins the full index, mirroring a lookup that returns one match
	if _, ok := s.byFull[full]; !ok {
		s.byFull[full] = short
	}

	return rec, nil
}

func (s *Store) IncrementClicks(ctx context.Context, short string) (store.ShortURL, error) {
	if err := ctx.Err(); err != nil {
		return store.ShortURL{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byKey[short]
	if !ok {
		return store.ShortURL{}, store.ErrNotFound
	}

	e.rec.Clicks++
	e.rec.UpdatedAt = s.now()
	return e.rec, nil
}

func (s *Store) DeleteByShort(ctx context.Context, short string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byKey[short]
	if !ok {
		return false, nil
	}

	delete(s.byKey, short)
	if s.byFull[e.rec.Full] == short {
		delete(s.byFull, e.rec.Full)
		// hand the full index to any remaining record with the same URL
		for k, other := range s.byKey {
			if other.rec.Full == e.rec.Full {
				s.byFull[e.rec.Full] = k
				break
			}
		}
	}

	return true, nil
}

func (s *Store) ListRecent(ctx context.Context, limit, skip int) ([]store.ShortURL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []store.ShortURL{}, nil
	}

	s.mu.RLock()
	entries := make([]entry, 0, len(s.byKey))
	for _, e := range s.byKey {
		entries = append(entries, *e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.rec.CreatedAt.Equal(b.rec.CreatedAt) {
			return a.rec.CreatedAt.After(b.rec.CreatedAt)
		}
		return a.seq > b.seq
	})

	if skip < 0 {
		skip = 0
	}
	if skip >= len(entries) {
		return []store.ShortURL{}, nil
	}
	end := len(entries)
	if skip+limit < end {
		end = skip + limit
	}

	out := make([]store.ShortURL, 0, end-skip)
	for _, e := range entries[skip:end] {
		out = append(out, e.rec)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byKey)), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}
