// Package quota caps how many completions an identifier may request inside a
// fixed window. The window starts at the identifier's first request and
// resets once it elapses; there is no sliding count.
package quota

import (
	"context"
	"log"
)

// Store records one request for an identifier and reports whether it fit
// under the limit. Implementations must make the count-and-compare atomic per
// identifier so two concurrent requests cannot both take the last slot.
type Store interface {
	Take(ctx context.Context, identifier string) (bool, error)
}

// Guard is the admission check run before any network call.
type Guard struct {
	store Store
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Admit reports whether a request from identifier may proceed. When the
// counter store is unreachable the request is admitted anyway: quota is a
// cost control, not a correctness guarantee, and chat stays available while
// the store is down.
func (g *Guard) Admit(ctx context.Context, identifier string) bool {
	admitted, err := g.store.Take(ctx, identifier)
	if err != nil {
		log.Printf("quota store unavailable for %q, admitting: %v", identifier, err)
		return true
	}
	return admitted
}
