package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("store: key not found")
	ErrVersionConflict = errors.New("store: version conflict")
)

// Entry is a stored value with its version. Version 0 means absent; every
// write bumps it.
type Entry struct {
	Key     string
	Value   []byte
	Version int64
}

// Check conditions a commit on Key still being at Version.
type Check struct {
	Key     string
	Version int64
}

// Mutation is one write of a commit. A zero TTL stores without expiry.
type Mutation struct {
	Key    string
	Value  []byte
	TTL    time.Duration
	Delete bool
}

// Store is the transactional key-value store the ledger runs on.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Commit applies all mutations atomically if every check holds, and
	// returns ErrVersionConflict without writing anything otherwise.
	Commit(ctx context.Context, checks []Check, mutations []Mutation) error
	// List returns live entries under prefix in key order.
	List(ctx context.Context, prefix string) ([]Entry, error)
	Ping(ctx context.Context) error
	Close() error
}

func putJSON(key string, v any, ttl time.Duration) (Mutation, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Mutation{}, err
	}
	return Mutation{Key: key, Value: data, TTL: ttl}, nil
}

// getJSON decodes the entry at key into v and returns its version.
func getJSON(ctx context.Context, s Store, key string, v any) (int64, error) {
	e, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(e.Value, v); err != nil {
		return 0, err
	}
	return e.Version, nil
}
