package storage

import (
	"context"
	"time"

	"mempool-sentinel/internal/domain"
)

// AlertStore provides access to alerts storage.
type AlertStore interface {
	// Insert persists a new alert and assigns its sequential ID on the passed
	// struct. IDs are strictly increasing and unique under concurrent inserts.
	Insert(ctx context.Context, a *domain.Alert) error

	// GetByID retrieves an alert by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Alert, error)

	// ListRecent retrieves up to limit alerts, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.Alert, error)

	// Count returns the total number of stored alerts.
	Count(ctx context.Context) (int64, error)
}

// WatchlistStore provides access to watchlists storage.
type WatchlistStore interface {
	// Insert adds a new watchlist. Returns ErrDuplicateKey if the name exists.
	Insert(ctx context.Context, w *domain.Watchlist) error

	// GetByName retrieves a watchlist by name. Returns ErrNotFound if not exists.
	GetByName(ctx context.Context, name string) (*domain.Watchlist, error)

	// List retrieves all watchlists, ordered by creation time ASC.
	List(ctx context.Context) ([]*domain.Watchlist, error)
}

// AlertArchiveStore provides access to the analytical alert archive.
// Appends are best-effort duplicates of the primary alerts table, used for
// digest reporting; the archive never gates alert delivery.
type AlertArchiveStore interface {
	// Insert appends an alert to the archive.
	Insert(ctx context.Context, a *domain.Alert) error

	// CountBySeverity returns alert counts grouped by severity score for
	// alerts created at or after since.
	CountBySeverity(ctx context.Context, since time.Time) (map[int]int64, error)

	// TopByValue retrieves up to limit alerts created at or after since,
	// ordered by USD value DESC.
	TopByValue(ctx context.Context, since time.Time, limit int) ([]*domain.Alert, error)

	// TotalUSD returns the summed USD value of alerts created at or after since.
	TotalUSD(ctx context.Context, since time.Time) (float64, error)
}
