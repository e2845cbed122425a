package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"nethead/internal/config"
	"nethead/internal/handler"
	"nethead/internal/loader"
	"nethead/internal/service"
	"nethead/internal/transport/coap"
	"nethead/internal/watcher"
)

type serveOptions struct {
	listen    string
	dbPath    string
	inventory string
	watch     bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the CoAP bridge",
		Long: `Starts the CoAP listeners and serves /nh/lo and /nh/rss until SIGINT or
SIGTERM. Listeners are stopped first, then relay sinks and the directory
are closed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := root.loadConfig()
			if err != nil {
				return err
			}
			if opts.listen != "" {
				cfg.CoAP.Listen = opts.listen
			}
			if opts.dbPath != "" {
				cfg.Directory.Backend = config.BackendSQLite
				cfg.Directory.Path = opts.dbPath
			}
			if opts.inventory != "" {
				cfg.Inventory.Path = opts.inventory
			}
			if opts.watch {
				cfg.Inventory.Watch = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, path, changedFlags(cmd))
		},
	}

	cmd.Flags().StringVarP(&opts.listen, "listen", "l", "", "CoAP UDP listen address (default :5683)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database path (selects the sqlite backend)")
	cmd.Flags().StringVar(&opts.inventory, "inventory", "", "mote inventory YAML to import at startup")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "re-import the inventory when it changes")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, path string, overrides []string) error {
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	if path == "" {
		path = "defaults"
	}
	logger.Info("starting nethead", "version", version, "config", path, "summary", cfg.Summary())
	if len(overrides) > 0 {
		logger.Debug("flag overrides", "flags", overrides)
	}

	dir, err := openDirectory(cfg.Directory)
	if err != nil {
		return err
	}
	defer func() {
		if err := dir.Close(); err != nil {
			logger.Error("failed to close directory", "error", err)
		}
	}()
	logger.Info("directory opened", "backend", cfg.Directory.Backend)

	chain, err := buildRelay(cfg.Relay, logger)
	if err != nil {
		return fmt.Errorf("failed to build relay: %w", err)
	}
	defer func() {
		if err := chain.Close(); err != nil {
			logger.Error("failed to close relay", "error", err)
		}
	}()

	svc := service.NewDirectoryService(dir, chain, logger.With("component", "directory"))
	router := handler.NewRouter(svc, logger.With("component", "router"))

	// Stopped before the deferred closes above run
	watchCtx, stopWatch := context.WithCancel(ctx)
	var watchers sync.WaitGroup
	defer func() {
		stopWatch()
		watchers.Wait()
	}()

	if cfg.Inventory.Path != "" {
		importInventory(ctx, svc, cfg.Inventory.Path, logger)
		if cfg.Inventory.Watch {
			startInventoryWatch(watchCtx, &watchers, svc, cfg.Inventory.Path, logger)
		}
	}

	coapCfg := coap.Config{Listen: cfg.CoAP.Listen}
	if d := cfg.CoAP.DTLS; d != nil {
		coapCfg.DTLSListen = d.Listen
		coapCfg.PSKIdentity = d.Identity
		coapCfg.PSKKey = []byte(d.Key)
	}
	srv := coap.New(coapCfg, router, logger.With("component", "coap"))

	if err := srv.Serve(ctx); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// startInventoryWatch re-imports path on change until ctx ends. wg is done
// once no import can still be running.
func startInventoryWatch(ctx context.Context, wg *sync.WaitGroup, svc *service.DirectoryService, path string, logger *slog.Logger) {
	w := watcher.New(path, func(ctx context.Context) {
		importInventory(ctx, svc, path, logger)
	}, logger.With("component", "watcher"))

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("inventory watcher stopped", "error", err)
		}
	}()
}

// importInventory loads path into the directory. Failures are logged so a
// bad edit never stops a running bridge.
func importInventory(ctx context.Context, svc *service.DirectoryService, path string, logger *slog.Logger) {
	hosts, err := loader.LoadYAML(path)
	if err != nil {
		logger.Error("failed to load inventory", "path", path, "error", err)
		return
	}
	if _, err := svc.ImportHosts(ctx, hosts); err != nil {
		logger.Error("failed to import inventory", "path", path, "error", err)
	}
}
