// Command valuestore runs the embedded value-storage engine behind a small
// CLI, wiring configuration, the on-disk engine, optional Prometheus
// metrics, and the domain commands together into a single binary.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	urfave "github.com/urfave/cli/v3"

	"github.com/oarkflow/valuestore"
	"github.com/oarkflow/valuestore/cli"
	"github.com/oarkflow/valuestore/config"
	"github.com/oarkflow/valuestore/engine"
	"github.com/oarkflow/valuestore/keymanager"
	"github.com/oarkflow/valuestore/lease"
	"github.com/oarkflow/valuestore/logging"
	"github.com/oarkflow/valuestore/metrics"
)

// Table prefixes distinguishing the namespaces within the single physical
// engine backing the postlist, termlist, and merge-lease tables.
const (
	postlistPrefix byte = 0x01
	termlistPrefix byte = 0x02
	leasePrefix    byte = 0x03
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "valuestore:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("VALUESTORE_CONFIG"))
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting valuestore", "data_dir", cfg.Store.DataDir)

	explicitKey, err := cfg.Store.EncryptionKey()
	if err != nil {
		return err
	}
	key, err := keymanager.Resolve(explicitKey, keymanager.ShamirConfig{
		Enabled:     cfg.Store.ShamirShares.Enabled,
		Threshold:   cfg.Store.ShamirShares.Threshold,
		TotalShares: cfg.Store.ShamirShares.TotalShares,
		SharesPath:  cfg.Store.ShamirShares.SharesPath,
	}, keymanager.DefaultPrompt)
	if err != nil {
		return fmt.Errorf("resolving encryption key: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	if err := os.MkdirAll(cfg.Store.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	eng, err := engine.Open(engine.Options{
		Dir:                    cfg.Store.DataDir,
		EncryptionKey:          key,
		MemTableFlushThreshold: cfg.Store.MemTableFlushThreshold,
		BlockCacheBytes:        cfg.Store.BlockCacheBytes,
		OnFlush: func(segmentPath string, entries int) {
			logging.WithComponent("engine").Info("flushed segment", "entries", entries, "path", segmentPath)
		},
	})
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	valuestore.ChunkSizeThreshold = cfg.Store.ChunkSizeThreshold

	postlist := engine.NewTable(eng, postlistPrefix)
	termlist := engine.NewTable(eng, termlistPrefix)
	leaseTable := engine.NewTable(eng, leasePrefix)
	leaseMgr := lease.NewManager(lease.NewTableLocker(leaseTable))

	var managerOpts []valuestore.ManagerOption
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		observer := metrics.NewPrometheusObserver(reg)
		managerOpts = append(managerOpts, valuestore.WithMetricsObserver(observer))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.WithComponent("metrics").Error("metrics server stopped", "error", err)
			}
		}()
		defer server.Close()
	}

	mgr := valuestore.NewManager(postlist, termlist, managerOpts...)

	registry := cli.NewRegistry()
	registry.RegisterMiddleware(func(next urfave.ActionFunc) urfave.ActionFunc {
		return func(ctx context.Context, cmd *urfave.Command) error {
			if !eng.IsOpen() {
				return fmt.Errorf("engine is closed")
			}
			return next(ctx, cmd)
		}
	})

	commands := []cli.CommandBuilder{
		cli.NewAddDocumentCommand(mgr, leaseMgr),
		cli.NewGetValueCommand(mgr),
		cli.NewDumpDocumentCommand(mgr),
		cli.NewStatsCommand(mgr),
		cli.NewForceMergeCommand(mgr, eng, leaseMgr),
	}
	for _, c := range commands {
		if err := registry.Register(c); err != nil {
			return err
		}
	}

	app := &urfave.Command{
		Name:     "valuestore",
		Usage:    "inspect and mutate a valuestore data directory",
		Commands: registry.GetCommands(),
	}
	return app.Run(context.Background(), os.Args)
}
