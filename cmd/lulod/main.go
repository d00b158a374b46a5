package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lulo-labs/lulo-sc/config"
	"github.com/lulo-labs/lulo-sc/core"
	"github.com/lulo-labs/lulo-sc/core/genesis"
	"github.com/lulo-labs/lulo-sc/indexer"
	"github.com/lulo-labs/lulo-sc/observability/logging"
	telemetry "github.com/lulo-labs/lulo-sc/observability/otel"
	"github.com/lulo-labs/lulo-sc/rpc"
	"github.com/lulo-labs/lulo-sc/storage"
	"github.com/lulo-labs/lulo-sc/storage/eventlog"
)

const genesisPathEnv = "LULO_GENESIS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to the genesis JSON file (overrides LULO_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, closer := logging.Setup(logging.Options{
		Service:    "lulod",
		Env:        cfg.Logging.Environment,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	genesisPath := resolveGenesisPath(*genesisFlag, cfg.GenesisFile, os.LookupEnv)
	if err := run(ctx, cfg, genesisPath, logger); err != nil {
		logger.Error("lulod stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("lulod stopped")
}

// resolveGenesisPath picks the flag, then the environment, then the config
// file value.
func resolveGenesisPath(flagValue, configValue string, lookup func(string) (string, bool)) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if lookup != nil {
		if v, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(configValue)
}

func run(ctx context.Context, cfg *config.Config, genesisPath string, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Logging.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.StateDir())
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	node, err := core.NewNode(db, core.Config{ChainID: cfg.ChainID, RequireApproval: cfg.RequireApproval}, core.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	var journal *eventlog.Journal
	if !cfg.Journal.Disabled {
		journal, err = eventlog.Open(cfg.JournalDir())
		if err != nil {
			return fmt.Errorf("open event journal: %w", err)
		}
		defer journal.Close()
		node.AddSink(journal)
	}

	var idx *indexer.Indexer
	switch {
	case cfg.Indexer.Disabled:
	case journal == nil:
		logger.Warn("contract indexer requires the event journal; indexer disabled")
	default:
		idx, err = indexer.Open(cfg.IndexerDSN())
		if err != nil {
			return fmt.Errorf("open contract indexer: %w", err)
		}
		defer idx.Close()
	}

	// Background workers stop before the stores above are closed.
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	if idx != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := idx.Follow(ctx, journal, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("contract indexer stopped", slog.Any("error", err))
			}
		}()
	}

	if err := ensureGenesis(node, genesisPath, logger); err != nil {
		return err
	}

	token := ""
	if cfg.RPCTokenEnv != "" {
		token = strings.TrimSpace(os.Getenv(cfg.RPCTokenEnv))
	}
	if token == "" {
		logger.Warn("rpc authentication disabled; lulo_sendTransaction accepts unauthenticated requests",
			slog.String("env", cfg.RPCTokenEnv))
	}

	server := rpc.NewServer(node, rpc.ServerConfig{
		AuthToken:         token,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		ReadHeaderTimeout: seconds(cfg.RPCReadHeaderTimeout),
		ReadTimeout:       seconds(cfg.RPCReadTimeout),
		WriteTimeout:      seconds(cfg.RPCWriteTimeout),
		IdleTimeout:       seconds(cfg.RPCIdleTimeout),
		Journal:           journal,
		Indexer:           idx,
		Logger:            logger,
	})
	logger.Info("lulod started",
		slog.Uint64("chain_id", node.ChainID()),
		slog.Uint64("height", node.Height()),
		slog.String("root", node.Root().Hex()),
		slog.String("rpc", cfg.RPCAddress))
	return server.Start(ctx, cfg.RPCAddress)
}

func ensureGenesis(node *core.Node, path string, logger *slog.Logger) error {
	if node.GenesisApplied() {
		if path != "" {
			logger.Debug("genesis already applied; ignoring genesis file", slog.String("path", path))
		}
		return nil
	}
	if path == "" {
		return fmt.Errorf("genesis file required for an empty data directory; set GenesisFile, %s or -genesis", genesisPathEnv)
	}
	spec, err := genesis.LoadSpec(path)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	if err := node.ApplyGenesis(spec); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("genesis applied", slog.String("path", path), slog.String("root", node.Root().Hex()))
	return nil
}

func seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
}
