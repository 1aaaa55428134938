package memory

import (
	"context"
	"sort"
	"sync"

	"mempool-sentinel/internal/domain"
	"mempool-sentinel/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.Alert
	nextID int64
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		data: make(map[int64]*domain.Alert),
	}
}

// cloneAlert copies an alert including its raw context map, so stored records
// cannot be mutated through the caller's reference.
func cloneAlert(a *domain.Alert) *domain.Alert {
	copy := *a
	if a.RawContext != nil {
		copy.RawContext = make(map[string]any, len(a.RawContext))
		for k, v := range a.RawContext {
			copy.RawContext[k] = v
		}
	}
	return &copy
}

// Insert persists a new alert and assigns its sequential ID on the passed struct.
func (s *AlertStore) Insert(_ context.Context, a *domain.Alert) error {
	if a == nil || a.TxHash == "" || a.EventType == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	a.ID = s.nextID
	s.data[a.ID] = cloneAlert(a)
	return nil
}

// GetByID retrieves an alert by its ID. Returns ErrNotFound if not exists.
func (s *AlertStore) GetByID(_ context.Context, id int64) (*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneAlert(a), nil
}

// ListRecent retrieves up to limit alerts, newest first.
func (s *AlertStore) ListRecent(_ context.Context, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Alert, 0, len(s.data))
	for _, a := range s.data {
		result = append(result, cloneAlert(a))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the total number of stored alerts.
func (s *AlertStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.data)), nil
}

var _ storage.AlertStore = (*AlertStore)(nil)
