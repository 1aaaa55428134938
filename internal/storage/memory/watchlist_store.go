package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"mempool-sentinel/internal/domain"
	"mempool-sentinel/internal/storage"
)

// WatchlistStore is an in-memory implementation of storage.WatchlistStore.
type WatchlistStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Watchlist // keyed by name
	nextID int64
}

// NewWatchlistStore creates a new in-memory watchlist store.
func NewWatchlistStore() *WatchlistStore {
	return &WatchlistStore{
		data: make(map[string]*domain.Watchlist),
	}
}

// lowerAll returns a copy of values with every entry lower-cased.
func lowerAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func cloneWatchlist(w *domain.Watchlist) *domain.Watchlist {
	copy := *w
	copy.Addresses = append([]string(nil), w.Addresses...)
	copy.Tokens = append([]string(nil), w.Tokens...)
	return &copy
}

// Insert adds a new watchlist. Returns ErrDuplicateKey if the name exists.
// Addresses and tokens are stored lower-cased.
func (s *WatchlistStore) Insert(_ context.Context, w *domain.Watchlist) error {
	if w == nil || w.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[w.Name]; exists {
		return storage.ErrDuplicateKey
	}

	s.nextID++
	w.ID = s.nextID
	stored := cloneWatchlist(w)
	stored.Addresses = lowerAll(stored.Addresses)
	stored.Tokens = lowerAll(stored.Tokens)
	s.data[w.Name] = stored
	return nil
}

// GetByName retrieves a watchlist by name. Returns ErrNotFound if not exists.
func (s *WatchlistStore) GetByName(_ context.Context, name string) (*domain.Watchlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.data[name]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneWatchlist(w), nil
}

// List retrieves all watchlists, ordered by creation time ASC.
func (s *WatchlistStore) List(_ context.Context) ([]*domain.Watchlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Watchlist, 0, len(s.data))
	for _, w := range s.data {
		result = append(result, cloneWatchlist(w))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

var _ storage.WatchlistStore = (*WatchlistStore)(nil)
