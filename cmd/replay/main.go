// Package main replays a JSONL capture of pending transactions through the
// full alerting path with in-memory storage, for demos and offline
// verification.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"mempool-sentinel/internal/ethereum/stub"
	"mempool-sentinel/internal/exposure"
	"mempool-sentinel/internal/logging"
	"mempool-sentinel/internal/pipeline"
	"mempool-sentinel/internal/pricing"
	"mempool-sentinel/internal/replay"
	"mempool-sentinel/internal/sink"
	"mempool-sentinel/internal/storage/memory"
	"mempool-sentinel/internal/watch"
)

func main() {
	file := flag.String("file", "", "JSONL capture file to replay (required)")
	threshold := flag.Float64("threshold", pipeline.DefaultUSDThreshold, "USD alert threshold")
	nativeUSD := flag.Float64("native-usd", pricing.DefaultFallbackNativeUSD, "Native asset price used for valuation")
	outputJSON := flag.Bool("json", false, "Output summary as JSON")
	logLevel := flag.String("log-level", "warn", "Log level")

	flag.Parse()

	logger, err := logging.New(*logLevel, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *file == "" {
		logger.Fatal("-file is required")
	}

	capture, err := os.Open(*file)
	if err != nil {
		logger.Fatal("open capture", zap.Error(err))
	}
	defer capture.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rpc := stub.NewRPCClient()
	alerts := memory.NewAlertStore()

	resolver := pricing.NewResolver(pricing.Options{
		FallbackNativeUSD: *nativeUSD,
		Logger:            logger.Named("pricing"),
	})

	p := pipeline.New(pipeline.Options{
		Fetcher:      rpc,
		Evaluator:    exposure.NewEvaluator(resolver),
		Watch:        watch.NewRegistry(memory.NewWatchlistStore()),
		Sink:         sink.New(sink.Options{AlertStore: alerts, Logger: logger.Named("sink")}),
		USDThreshold: *threshold,
		Logger:       logger.Named("pipeline"),
	})

	runner := replay.NewRunner(p, rpc, logger.Named("replay"))
	stats, err := runner.Run(ctx, capture)
	if err != nil {
		logger.Fatal("replay failed", zap.Error(err))
	}

	if *outputJSON {
		out, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("\n=== Replay Summary ===\n")
	fmt.Printf("Lines:      %d\n", stats.Lines)
	fmt.Printf("Malformed:  %d\n", stats.Malformed)
	fmt.Printf("Alerted:    %d\n", stats.Alerted())

	outcomes := make([]string, 0, len(stats.Outcomes))
	for o := range stats.Outcomes {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Printf("  %-14s %d\n", o, stats.Outcomes[o])
	}
}
