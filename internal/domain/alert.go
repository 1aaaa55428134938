package domain

import "time"

// EventPendingLargeSwap is the event type assigned to every alert raised from
// the pending-transaction feed, watched-address hits included.
const EventPendingLargeSwap = "pending_large_swap"

// Alert represents one qualifying pending-transaction observation.
// Corresponds to the alerts table in PostgreSQL. Immutable once persisted.
type Alert struct {
	ID         int64          `json:"id"`          // sequential, assigned by the store
	Chain      string         `json:"chain"`       // e.g. "ethereum"
	EventType  string         `json:"event_type"`  // EventPendingLargeSwap
	Severity   int            `json:"severity"`    // 0-99
	USDValue   float64        `json:"usd_value"`   // estimated exposure
	TxHash     string         `json:"tx_hash"`     // pending transaction hash
	RawContext map[string]any `json:"raw_context"` // opaque display/audit bag
	CreatedAt  time.Time      `json:"created_at"`
}
