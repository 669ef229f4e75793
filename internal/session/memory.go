package session

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps session state in-process with TTL expiry. It is the
// default store for a single-instance console.
type MemoryStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewMemoryStore builds a store whose entries expire after ttl of inactivity.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryStore{
		cache: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (m *MemoryStore) Get(id string) (*State, bool, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, false, nil
	}
	st, ok := v.(*State)
	if !ok {
		return nil, false, nil
	}
	return st.Clone(), true, nil
}

// Put stores a deep copy so callers holding the original pointer cannot race
// with later readers; the redis backend gets the same isolation from its JSON
// round-trip.
func (m *MemoryStore) Put(st *State) error {
	m.cache.Set(st.ID, st.Clone(), m.ttl)
	return nil
}

func (m *MemoryStore) Delete(id string) error {
	m.cache.Delete(id)
	return nil
}
