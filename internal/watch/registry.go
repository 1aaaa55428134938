// Package watch provides the read-side view of configured watchlists.
package watch

import (
	"context"
	"fmt"
	"strings"

	"mempool-sentinel/internal/storage"
)

// Set is a merged, read-only snapshot of every watchlist's addresses and
// tokens, lower-cased for case-insensitive matching.
type Set struct {
	addresses map[string]struct{}
	tokens    map[string]struct{}
}

// MatchesAddress reports whether addr appears in any watchlist.
func (s *Set) MatchesAddress(addr string) bool {
	if s == nil {
		return false
	}
	_, ok := s.addresses[strings.ToLower(addr)]
	return ok
}

// MatchesToken reports whether a token contract appears in any watchlist.
func (s *Set) MatchesToken(token string) bool {
	if s == nil {
		return false
	}
	_, ok := s.tokens[strings.ToLower(token)]
	return ok
}

// Empty reports whether the snapshot watches nothing.
func (s *Set) Empty() bool {
	return s == nil || (len(s.addresses) == 0 && len(s.tokens) == 0)
}

// Registry reads watchlists from persistence. Each Snapshot is a fresh
// fetch; a watchlist update becoming visible with some delay is acceptable.
type Registry struct {
	store storage.WatchlistStore
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store storage.WatchlistStore) *Registry {
	return &Registry{store: store}
}

// Snapshot loads all watchlists and merges them into one matchable set.
func (r *Registry) Snapshot(ctx context.Context) (*Set, error) {
	lists, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list watchlists: %w", err)
	}

	set := &Set{
		addresses: make(map[string]struct{}),
		tokens:    make(map[string]struct{}),
	}
	for _, w := range lists {
		for _, a := range w.Addresses {
			set.addresses[strings.ToLower(a)] = struct{}{}
		}
		for _, tok := range w.Tokens {
			set.tokens[strings.ToLower(tok)] = struct{}{}
		}
	}
	return set, nil
}
