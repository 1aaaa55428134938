package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mempool-sentinel/internal/domain"
	"mempool-sentinel/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
// Sequential IDs come from the alerts BIGSERIAL column, so uniqueness and
// ordering hold across processes sharing the database.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert persists a new alert and assigns its sequential ID on the passed struct.
func (s *AlertStore) Insert(ctx context.Context, a *domain.Alert) error {
	if a == nil || a.TxHash == "" || a.EventType == "" {
		return storage.ErrInvalidInput
	}

	rawContext, err := json.Marshal(a.RawContext)
	if err != nil {
		return fmt.Errorf("marshal raw context: %w", err)
	}

	query := `
		INSERT INTO alerts (
			chain, event_type, severity, usd_value, tx_hash, raw_context, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err = s.pool.QueryRow(ctx, query,
		a.Chain,
		a.EventType,
		a.Severity,
		a.USDValue,
		a.TxHash,
		rawContext,
		a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetByID retrieves an alert by its ID. Returns ErrNotFound if not exists.
func (s *AlertStore) GetByID(ctx context.Context, id int64) (*domain.Alert, error) {
	query := `
		SELECT id, chain, event_type, severity, usd_value, tx_hash, raw_context, created_at
		FROM alerts
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	a, err := scanAlert(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get alert by id: %w", err)
	}
	return a, nil
}

// ListRecent retrieves up to limit alerts, newest first.
func (s *AlertStore) ListRecent(ctx context.Context, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, chain, event_type, severity, usd_value, tx_hash, raw_context, created_at
		FROM alerts
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// Count returns the total number of stored alerts.
func (s *AlertStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return count, nil
}

// scanAlert scans a single row into an Alert.
func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var a domain.Alert
	var rawContext []byte

	err := row.Scan(
		&a.ID,
		&a.Chain,
		&a.EventType,
		&a.Severity,
		&a.USDValue,
		&a.TxHash,
		&rawContext,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(rawContext) > 0 {
		if err := json.Unmarshal(rawContext, &a.RawContext); err != nil {
			return nil, fmt.Errorf("unmarshal raw context: %w", err)
		}
	}
	return &a, nil
}

// scanAlerts scans multiple rows into a slice of Alert.
func scanAlerts(rows pgx.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert

	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}

	return alerts, nil
}
