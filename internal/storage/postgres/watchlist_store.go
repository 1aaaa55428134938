package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"mempool-sentinel/internal/domain"
	"mempool-sentinel/internal/storage"
)

// WatchlistStore implements storage.WatchlistStore using PostgreSQL.
type WatchlistStore struct {
	pool *Pool
}

// NewWatchlistStore creates a new WatchlistStore.
func NewWatchlistStore(pool *Pool) *WatchlistStore {
	return &WatchlistStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WatchlistStore = (*WatchlistStore)(nil)

// Insert adds a new watchlist. Returns ErrDuplicateKey if the name exists.
// Addresses and tokens are stored lower-cased.
func (s *WatchlistStore) Insert(ctx context.Context, w *domain.Watchlist) error {
	if w == nil || w.Name == "" {
		return storage.ErrInvalidInput
	}

	addresses := make([]string, len(w.Addresses))
	for i, a := range w.Addresses {
		addresses[i] = strings.ToLower(a)
	}
	tokens := make([]string, len(w.Tokens))
	for i, tok := range w.Tokens {
		tokens[i] = strings.ToLower(tok)
	}

	query := `
		INSERT INTO watchlists (name, addresses, tokens, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query, w.Name, addresses, tokens, w.CreatedAt).Scan(&w.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert watchlist: %w", err)
	}
	return nil
}

// GetByName retrieves a watchlist by name. Returns ErrNotFound if not exists.
func (s *WatchlistStore) GetByName(ctx context.Context, name string) (*domain.Watchlist, error) {
	query := `
		SELECT id, name, addresses, tokens, created_at
		FROM watchlists
		WHERE name = $1
	`

	row := s.pool.QueryRow(ctx, query, name)
	w, err := scanWatchlist(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get watchlist by name: %w", err)
	}
	return w, nil
}

// List retrieves all watchlists, ordered by creation time ASC.
func (s *WatchlistStore) List(ctx context.Context) ([]*domain.Watchlist, error) {
	query := `
		SELECT id, name, addresses, tokens, created_at
		FROM watchlists
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list watchlists: %w", err)
	}
	defer rows.Close()

	var lists []*domain.Watchlist
	for rows.Next() {
		w, err := scanWatchlist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watchlist row: %w", err)
		}
		lists = append(lists, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchlist rows: %w", err)
	}

	return lists, nil
}

// scanWatchlist scans a single row into a Watchlist.
func scanWatchlist(row pgx.Row) (*domain.Watchlist, error) {
	var w domain.Watchlist
	err := row.Scan(&w.ID, &w.Name, &w.Addresses, &w.Tokens, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
