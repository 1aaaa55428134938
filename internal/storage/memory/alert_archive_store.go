package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mempool-sentinel/internal/domain"
	"mempool-sentinel/internal/storage"
)

// AlertArchiveStore is an in-memory implementation of storage.AlertArchiveStore.
// Used in --memory mode, where the primary store and the archive are both local.
type AlertArchiveStore struct {
	mu   sync.RWMutex
	data []*domain.Alert
}

// NewAlertArchiveStore creates a new in-memory alert archive store.
func NewAlertArchiveStore() *AlertArchiveStore {
	return &AlertArchiveStore{}
}

// Insert appends an alert to the archive.
func (s *AlertArchiveStore) Insert(_ context.Context, a *domain.Alert) error {
	if a == nil || a.TxHash == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(s.data, cloneAlert(a))
	return nil
}

// CountBySeverity returns alert counts grouped by severity score.
func (s *AlertArchiveStore) CountBySeverity(_ context.Context, since time.Time) (map[int]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int]int64)
	for _, a := range s.data {
		if a.CreatedAt.Before(since) {
			continue
		}
		counts[a.Severity]++
	}
	return counts, nil
}

// TopByValue retrieves up to limit alerts ordered by USD value DESC.
func (s *AlertArchiveStore) TopByValue(_ context.Context, since time.Time, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Alert
	for _, a := range s.data {
		if a.CreatedAt.Before(since) {
			continue
		}
		result = append(result, cloneAlert(a))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].USDValue != result[j].USDValue {
			return result[i].USDValue > result[j].USDValue
		}
		return result[i].ID < result[j].ID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// TotalUSD returns the summed USD value of alerts created at or after since.
func (s *AlertArchiveStore) TotalUSD(_ context.Context, since time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, a := range s.data {
		if a.CreatedAt.Before(since) {
			continue
		}
		total += a.USDValue
	}
	return total, nil
}

var _ storage.AlertArchiveStore = (*AlertArchiveStore)(nil)
