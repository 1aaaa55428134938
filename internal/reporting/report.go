// Package reporting builds alert digests from the analytical archive.
package reporting

import "time"

// Digest summarizes alert activity over a time window.
type Digest struct {
	GeneratedAt time.Time
	Since       time.Time
	Window      time.Duration

	TotalAlerts int64
	TotalUSD    float64

	// SeverityHistogram is sorted by severity ascending.
	SeverityHistogram []SeverityBucketRow

	// TopAlerts is sorted by USD value descending.
	TopAlerts []TopAlertRow
}

// SeverityBucketRow is one histogram bucket.
type SeverityBucketRow struct {
	Severity int
	Count    int64
}

// TopAlertRow is one row in the top-alerts table.
type TopAlertRow struct {
	ID        int64
	TxHash    string
	EventType string
	Severity  int
	USDValue  float64
	CreatedAt time.Time
}
