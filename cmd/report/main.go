// Package main generates the alert digest report from the analytical archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mempool-sentinel/internal/logging"
	"mempool-sentinel/internal/reporting"
	chstore "mempool-sentinel/internal/storage/clickhouse"
)

func main() {
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (required)")
	window := flag.Duration("window", 24*time.Hour, "Trailing window to report on")
	top := flag.Int("top", reporting.DefaultTopLimit, "Number of top alerts to include")
	outputDir := flag.String("output-dir", "output", "Output directory for DIGEST.md and top_alerts.csv")
	stdout := flag.Bool("stdout", false, "Print the Markdown digest instead of writing files")
	logLevel := flag.String("log-level", "info", "Log level")

	flag.Parse()

	logger, err := logging.New(*logLevel, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *clickhouseDSN == "" {
		logger.Fatal("-clickhouse-dsn is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatal("connect to clickhouse", zap.Error(err))
	}
	defer conn.Close()

	generator := reporting.NewGenerator(chstore.NewAlertArchiveStore(conn))
	digest, err := generator.Generate(ctx, *window, *top)
	if err != nil {
		logger.Fatal("generate digest", zap.Error(err))
	}

	markdown := reporting.RenderMarkdown(digest)

	if *stdout {
		fmt.Print(markdown)
		return
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatal("create output directory", zap.Error(err))
	}

	mdPath := filepath.Join(*outputDir, "DIGEST.md")
	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		logger.Fatal("write digest", zap.Error(err))
	}

	csvPath := filepath.Join(*outputDir, "top_alerts.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(digest.TopAlerts)), 0o644); err != nil {
		logger.Fatal("write csv", zap.Error(err))
	}

	logger.Info("digest written",
		zap.String("markdown", mdPath),
		zap.String("csv", csvPath),
		zap.Int64("alerts", digest.TotalAlerts),
		zap.Float64("total_usd", digest.TotalUSD))
}
