// Package pipeline drives one pending transaction from hash to alert
// decision: lookup, classification, valuation, watch matching, qualification,
// and hand-off to the sink.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mempool-sentinel/internal/classify"
	"mempool-sentinel/internal/domain"
	"mempool-sentinel/internal/ethereum"
	"mempool-sentinel/internal/exposure"
	"mempool-sentinel/internal/observability"
	"mempool-sentinel/internal/sink"
	"mempool-sentinel/internal/watch"
)

// Default thresholds.
const (
	// DefaultUSDThreshold qualifies an observation for alerting on size alone.
	DefaultUSDThreshold = 50000.0
	// DefaultMinInterestUSD drops observations too small to evaluate further.
	DefaultMinInterestUSD = 100.0
)

// Terminal outcomes of one pipeline run.
const (
	OutcomeLookupMiss   = "lookup_miss"
	OutcomeLookupError  = "lookup_error"
	OutcomeUnclassified = "unclassified"
	OutcomeBelowFloor   = "below_floor"
	OutcomeNotQualified = "not_qualified"
	OutcomeSinkError    = "sink_error"
	OutcomeAlerted      = "alerted"
)

// Options configures a Pipeline.
type Options struct {
	Fetcher   ethereum.TransactionFetcher
	Evaluator *exposure.Evaluator
	Watch     *watch.Registry
	Sink      *sink.Sink

	// USDThreshold is the qualification threshold; 0 means the default.
	USDThreshold float64
	// MinInterestUSD is the minimum-interest floor; 0 means the default.
	MinInterestUSD float64

	Logger *zap.Logger
}

// Pipeline processes pending transactions independently and concurrently.
// It holds no per-transaction state; everything transient lives on the stack
// of one Process call.
type Pipeline struct {
	fetcher   ethereum.TransactionFetcher
	evaluator *exposure.Evaluator
	watch     *watch.Registry
	sink      *sink.Sink

	threshold float64
	minFloor  float64

	logger *zap.Logger
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	if opts.USDThreshold <= 0 {
		opts.USDThreshold = DefaultUSDThreshold
	}
	if opts.MinInterestUSD <= 0 {
		opts.MinInterestUSD = DefaultMinInterestUSD
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:   opts.Fetcher,
		evaluator: opts.Evaluator,
		watch:     opts.Watch,
		sink:      opts.Sink,
		threshold: opts.USDThreshold,
		minFloor:  opts.MinInterestUSD,
		logger:    opts.Logger,
	}
}

// Process runs the full state machine for one transaction hash and returns
// the terminal outcome label. Every failure is contained here: a malformed or
// unsupported transaction never affects the feed or sibling runs.
func (p *Pipeline) Process(ctx context.Context, hash string) string {
	start := time.Now()
	outcome := p.run(ctx, hash)
	observability.RecordPipelineRun(outcome, time.Since(start).Seconds())
	return outcome
}

// run executes the terminal-at-each-step decision chain and returns the
// outcome label.
func (p *Pipeline) run(ctx context.Context, hash string) string {
	tx, err := p.fetcher.TransactionByHash(ctx, hash)
	if err != nil {
		p.logger.Debug("transaction lookup failed",
			zap.String("tx_hash", hash),
			zap.Error(err))
		return OutcomeLookupError
	}
	if tx == nil {
		// Pending transactions evaporate; not an error.
		return OutcomeLookupMiss
	}

	decoded := classify.Classify(tx)
	if decoded == nil || decoded.Kind == classify.KindUnrecognized {
		return OutcomeUnclassified
	}

	result := p.evaluator.Evaluate(ctx, decoded)
	if result.USDValue < p.minFloor {
		return OutcomeBelowFloor
	}

	isWatched := p.isWatched(ctx, decoded, result)

	if result.USDValue < p.threshold && !isWatched {
		return OutcomeNotQualified
	}

	payload := sink.Payload{
		EventType:  domain.EventPendingLargeSwap,
		Severity:   result.Severity,
		USDValue:   result.USDValue,
		TxHash:     tx.Hash,
		RawContext: rawContext(tx, decoded, result),
		IsWatched:  isWatched,
		Summary:    result.Summary,
	}

	if _, err := p.sink.Publish(ctx, payload); err != nil {
		return OutcomeSinkError
	}
	return OutcomeAlerted
}

// isWatched loads a fresh watch snapshot and matches the sender address and,
// for token-in swaps only, the first-hop token. A snapshot failure degrades
// to threshold-only qualification.
func (p *Pipeline) isWatched(ctx context.Context, d *classify.Decoded, r exposure.Result) bool {
	if p.watch == nil {
		return false
	}

	set, err := p.watch.Snapshot(ctx)
	if err != nil {
		p.logger.Warn("watchlist snapshot failed", zap.Error(err))
		return false
	}

	if set.MatchesAddress(d.From) {
		return true
	}
	if d.Kind == classify.KindSwapTokenIn && r.Token != "" && set.MatchesToken(r.Token) {
		return true
	}
	return false
}

// rawContext builds the opaque display/audit bag stored with the alert.
func rawContext(tx *ethereum.Transaction, d *classify.Decoded, r exposure.Result) map[string]any {
	raw := map[string]any{
		"kind":      d.Kind.String(),
		"from":      d.From,
		"to":        d.To,
		"value_wei": tx.Value,
	}
	if d.Router != "" {
		raw["router"] = d.Router
	}
	if len(d.Path) > 0 {
		raw["path"] = d.Path
	}
	if d.AmountIn != nil {
		raw["amount_in"] = d.AmountIn.String()
	}
	if r.Token != "" {
		raw["token"] = r.Token
	}
	return raw
}
