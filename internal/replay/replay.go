// Package replay feeds a capture file of raw pending transactions through the
// full classification and alerting path, without a node connection.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"mempool-sentinel/internal/ethereum"
	"mempool-sentinel/internal/ethereum/stub"
	"mempool-sentinel/internal/pipeline"
)

// maxLineBytes bounds one capture line; calldata-heavy transactions get large.
const maxLineBytes = 1 << 20

// Stats summarizes one replay run.
type Stats struct {
	Lines     int            `json:"lines"`
	Malformed int            `json:"malformed"`
	Outcomes  map[string]int `json:"outcomes"`
}

// Alerted returns how many lines produced an alert.
func (s *Stats) Alerted() int { return s.Outcomes[pipeline.OutcomeAlerted] }

// Runner replays captured transactions one at a time, in file order.
type Runner struct {
	pipeline *pipeline.Pipeline
	rpc      *stub.RPCClient
	logger   *zap.Logger
}

// NewRunner creates a replay runner. The stub client must be the pipeline's
// transaction fetcher so replayed transactions resolve during lookup.
func NewRunner(p *pipeline.Pipeline, rpc *stub.RPCClient, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{pipeline: p, rpc: rpc, logger: logger}
}

// Run processes one JSONL capture stream: each line is one transaction in the
// node's own JSON shape. Malformed lines are counted and skipped; a read
// failure aborts the run.
func (r *Runner) Run(ctx context.Context, capture io.Reader) (*Stats, error) {
	stats := &Stats{Outcomes: make(map[string]int)}

	scanner := bufio.NewScanner(capture)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		var tx ethereum.Transaction
		if err := json.Unmarshal(line, &tx); err != nil || tx.Hash == "" {
			stats.Malformed++
			r.logger.Warn("skipping malformed capture line",
				zap.Int("line", stats.Lines),
				zap.Error(err))
			continue
		}

		r.rpc.Add(&tx)
		outcome := r.pipeline.Process(ctx, tx.Hash)
		stats.Outcomes[outcome]++

		r.logger.Debug("replayed transaction",
			zap.String("tx_hash", tx.Hash),
			zap.String("outcome", outcome))
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read capture: %w", err)
	}

	return stats, nil
}
