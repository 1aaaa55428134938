package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mempool-sentinel/internal/domain"
	"mempool-sentinel/internal/storage"
)

// AlertArchiveStore implements storage.AlertArchiveStore using ClickHouse.
// MergeTree rows never update, which matches the append-only archive contract.
type AlertArchiveStore struct {
	conn *Conn
}

// NewAlertArchiveStore creates a new AlertArchiveStore.
func NewAlertArchiveStore(conn *Conn) *AlertArchiveStore {
	return &AlertArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AlertArchiveStore = (*AlertArchiveStore)(nil)

// Insert appends an alert to the archive.
func (s *AlertArchiveStore) Insert(ctx context.Context, a *domain.Alert) error {
	if a == nil || a.TxHash == "" {
		return storage.ErrInvalidInput
	}

	rawContext, err := json.Marshal(a.RawContext)
	if err != nil {
		return fmt.Errorf("marshal raw context: %w", err)
	}

	query := `
		INSERT INTO alert_archive (
			alert_id, chain, event_type, severity, usd_value, tx_hash, raw_context, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		uint64(a.ID),
		a.Chain,
		a.EventType,
		uint8(a.Severity),
		a.USDValue,
		a.TxHash,
		string(rawContext),
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert archive row: %w", err)
	}
	return nil
}

// CountBySeverity returns alert counts grouped by severity score.
func (s *AlertArchiveStore) CountBySeverity(ctx context.Context, since time.Time) (map[int]int64, error) {
	query := `
		SELECT severity, count(*)
		FROM alert_archive
		WHERE created_at >= ?
		GROUP BY severity
	`

	rows, err := s.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("count by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var severity uint8
		var count uint64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("scan severity count row: %w", err)
		}
		counts[int(severity)] = int64(count)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate severity count rows: %w", err)
	}

	return counts, nil
}

// TopByValue retrieves up to limit alerts ordered by USD value DESC.
func (s *AlertArchiveStore) TopByValue(ctx context.Context, since time.Time, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT alert_id, chain, event_type, severity, usd_value, tx_hash, raw_context, created_at
		FROM alert_archive
		WHERE created_at >= ?
		ORDER BY usd_value DESC, alert_id ASC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, since, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query top by value: %w", err)
	}
	defer rows.Close()

	return scanArchiveAlerts(rows)
}

// TotalUSD returns the summed USD value of alerts created at or after since.
func (s *AlertArchiveStore) TotalUSD(ctx context.Context, since time.Time) (float64, error) {
	query := `
		SELECT sum(usd_value)
		FROM alert_archive
		WHERE created_at >= ?
	`

	var total float64
	err := s.conn.QueryRow(ctx, query, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total usd: %w", err)
	}
	return total, nil
}

// chRows is the subset of driver.Rows the scan helpers need.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// scanArchiveAlerts scans multiple rows.
func scanArchiveAlerts(rows chRows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert

	for rows.Next() {
		var a domain.Alert
		var alertID uint64
		var severity uint8
		var rawContext string

		err := rows.Scan(
			&alertID, &a.Chain, &a.EventType, &severity,
			&a.USDValue, &a.TxHash, &rawContext, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert archive row: %w", err)
		}

		a.ID = int64(alertID)
		a.Severity = int(severity)
		if rawContext != "" {
			if err := json.Unmarshal([]byte(rawContext), &a.RawContext); err != nil {
				return nil, fmt.Errorf("unmarshal raw context: %w", err)
			}
		}
		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert archive rows: %w", err)
	}

	return alerts, nil
}
