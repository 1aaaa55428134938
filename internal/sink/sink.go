// Package sink persists qualified alerts and fans them out to live
// subscribers and notification channels.
package sink

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mempool-sentinel/internal/domain"
	"mempool-sentinel/internal/hub"
	"mempool-sentinel/internal/notify"
	"mempool-sentinel/internal/observability"
	"mempool-sentinel/internal/storage"
)

// dispatchTimeout bounds each best-effort notification send. Dispatches run
// detached from the pipeline context: the triggering run never waits on them.
const dispatchTimeout = 15 * time.Second

// Payload is a qualified alert decision handed off by the pipeline.
type Payload struct {
	EventType  string
	Severity   int
	USDValue   float64
	TxHash     string
	RawContext map[string]any
	IsWatched  bool
	Summary    string
}

// Options configures a Sink.
type Options struct {
	// Chain identifier stamped on every alert, e.g. "ethereum".
	Chain string

	// AlertStore is the primary persistence; required. The store assigns
	// the sequential alert id.
	AlertStore storage.AlertStore

	// ArchiveStore receives best-effort copies for digest reporting. Optional.
	ArchiveStore storage.AlertArchiveStore

	// Hub broadcasts to live subscribers. Optional.
	Hub *hub.Hub

	// Notifiers are the configured notification channels.
	Notifiers []notify.Notifier

	Logger *zap.Logger
}

// Sink implements the persist-then-fan-out step.
type Sink struct {
	chain     string
	alerts    storage.AlertStore
	archive   storage.AlertArchiveStore
	hub       *hub.Hub
	notifiers []notify.Notifier
	logger    *zap.Logger

	// nowFn is swappable for tests.
	nowFn func() time.Time
}

// New creates a Sink.
func New(opts Options) *Sink {
	if opts.Chain == "" {
		opts.Chain = "ethereum"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Sink{
		chain:     opts.Chain,
		alerts:    opts.AlertStore,
		archive:   opts.ArchiveStore,
		hub:       opts.Hub,
		notifiers: opts.Notifiers,
		logger:    opts.Logger,
		nowFn:     time.Now,
	}
}

// Publish persists the alert, then dispatches it to the hub, the archive,
// and every notifier without blocking on any of them. Persistence failure is
// the only surfaced error; the alert is lost in that case (no retry queue).
func (s *Sink) Publish(ctx context.Context, p Payload) (*domain.Alert, error) {
	raw := make(map[string]any, len(p.RawContext)+2)
	for k, v := range p.RawContext {
		raw[k] = v
	}
	raw["summary"] = p.Summary
	raw["is_watched"] = p.IsWatched

	alert := &domain.Alert{
		Chain:      s.chain,
		EventType:  p.EventType,
		Severity:   p.Severity,
		USDValue:   p.USDValue,
		TxHash:     p.TxHash,
		RawContext: raw,
		CreatedAt:  s.nowFn().UTC(),
	}

	if err := s.alerts.Insert(ctx, alert); err != nil {
		observability.RecordDBInsertError("alerts")
		s.logger.Error("persist alert failed, alert lost",
			zap.String("tx_hash", p.TxHash),
			zap.Float64("usd_value", p.USDValue),
			zap.Error(err))
		return nil, fmt.Errorf("persist alert: %w", err)
	}

	observability.RecordAlertEmitted(alert.Severity, alert.USDValue)
	s.logger.Info("alert emitted",
		zap.Int64("id", alert.ID),
		zap.Int("severity", alert.Severity),
		zap.Float64("usd_value", alert.USDValue),
		zap.String("tx_hash", alert.TxHash),
		zap.Bool("watched", p.IsWatched))

	if s.hub != nil {
		s.hub.Broadcast(alert)
	}

	if s.archive != nil {
		go s.appendArchive(alert)
	}

	for _, n := range s.notifiers {
		go s.dispatch(n, alert)
	}

	return alert, nil
}

// dispatch delivers the alert to one channel. Failures are logged, counted,
// and otherwise swallowed.
func (s *Sink) dispatch(n notify.Notifier, alert *domain.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	err := n.Send(ctx, alert)
	observability.RecordNotifierDispatch(n.Name(), err)
	if err != nil {
		s.logger.Warn("notification dispatch failed",
			zap.String("channel", n.Name()),
			zap.Int64("alert_id", alert.ID),
			zap.Error(err))
	}
}

// appendArchive copies the alert into the analytical archive.
func (s *Sink) appendArchive(alert *domain.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if err := s.archive.Insert(ctx, alert); err != nil {
		observability.RecordDBInsertError("alert_archive")
		s.logger.Warn("archive append failed",
			zap.Int64("alert_id", alert.ID),
			zap.Error(err))
	}
}
