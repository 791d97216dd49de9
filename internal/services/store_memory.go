package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	version   int64
	expiresAt time.Time
}

// MemoryStore implements Store in process. It backs tests and ENV=memory
// development runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

// SetNow replaces the clock used for expiry.
func (s *MemoryStore) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// live returns the entry at key, dropping it if expired. Caller holds mu.
func (s *MemoryStore) live(key string) (memEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return memEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return nil, ErrNotFound
	}
	return &Entry{Key: key, Value: append([]byte(nil), e.value...), Version: e.version}, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.Commit(ctx, nil, []Mutation{{Key: key, Value: value, TTL: ttl}})
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	return s.Commit(ctx, nil, []Mutation{{Key: key, Delete: true}})
}

func (s *MemoryStore) Commit(ctx context.Context, checks []Check, mutations []Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range checks {
		e, _ := s.live(c.Key)
		if e.version != c.Version {
			return ErrVersionConflict
		}
	}

	for _, m := range mutations {
		if m.Delete {
			delete(s.entries, m.Key)
			continue
		}
		prev, _ := s.live(m.Key)
		next := memEntry{
			value:   append([]byte(nil), m.Value...),
			version: prev.version + 1,
		}
		if m.TTL > 0 {
			next.expiresAt = s.now().Add(m.TTL)
		}
		s.entries[m.Key] = next
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0)
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		e, ok := s.live(k)
		if !ok {
			continue
		}
		out = append(out, Entry{Key: k, Value: append([]byte(nil), e.value...), Version: e.version})
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}
