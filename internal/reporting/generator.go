package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mempool-sentinel/internal/storage"
)

// DefaultTopLimit is how many top alerts a digest includes.
const DefaultTopLimit = 10

// Generator assembles digests from the alert archive.
type Generator struct {
	archive storage.AlertArchiveStore

	// nowFn is swappable for tests.
	nowFn func() time.Time
}

// NewGenerator creates a digest generator.
func NewGenerator(archive storage.AlertArchiveStore) *Generator {
	return &Generator{archive: archive, nowFn: time.Now}
}

// Generate builds a digest for the trailing window. topLimit <= 0 uses the
// default.
func (g *Generator) Generate(ctx context.Context, window time.Duration, topLimit int) (*Digest, error) {
	if topLimit <= 0 {
		topLimit = DefaultTopLimit
	}

	now := g.nowFn().UTC()
	since := now.Add(-window)

	counts, err := g.archive.CountBySeverity(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count by severity: %w", err)
	}

	totalUSD, err := g.archive.TotalUSD(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("total usd: %w", err)
	}

	top, err := g.archive.TopByValue(ctx, since, topLimit)
	if err != nil {
		return nil, fmt.Errorf("top by value: %w", err)
	}

	digest := &Digest{
		GeneratedAt: now,
		Since:       since,
		Window:      window,
		TotalUSD:    totalUSD,
	}

	severities := make([]int, 0, len(counts))
	for sev := range counts {
		severities = append(severities, sev)
	}
	sort.Ints(severities)
	for _, sev := range severities {
		digest.SeverityHistogram = append(digest.SeverityHistogram, SeverityBucketRow{
			Severity: sev,
			Count:    counts[sev],
		})
		digest.TotalAlerts += counts[sev]
	}

	for _, a := range top {
		digest.TopAlerts = append(digest.TopAlerts, TopAlertRow{
			ID:        a.ID,
			TxHash:    a.TxHash,
			EventType: a.EventType,
			Severity:  a.Severity,
			USDValue:  a.USDValue,
			CreatedAt: a.CreatedAt,
		})
	}

	return digest, nil
}
