package quota

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Bound on distinct identifiers tracked at once; least recently used windows
// are evicted beyond this.
const maxTrackedIdentifiers = 65536

type window struct {
	count int
}

// MemoryStore keeps per-identifier windows in an expiring LRU. The TTL
// matches the quota window, so an entry ages out exactly when its window
// elapses and the next request starts a fresh one. Entries are mutated in
// place on increment; re-adding would reset their expiry.
type MemoryStore struct {
	mu      sync.Mutex
	limit   int
	windows *expirable.LRU[string, *window]
}

func NewMemoryStore(limit int, windowDuration time.Duration) *MemoryStore {
	return &MemoryStore{
		limit:   limit,
		windows: expirable.NewLRU[string, *window](maxTrackedIdentifiers, nil, windowDuration),
	}
}

func (s *MemoryStore) Take(_ context.Context, identifier string) (bool, error) {
	if s.limit <= 0 {
		return true, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.windows.Get(identifier); ok {
		if w.count >= s.limit {
			return false, nil
		}
		w.count++
		return true, nil
	}

	s.windows.Add(identifier, &window{count: 1})
	return true, nil
}
