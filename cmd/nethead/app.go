package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"nethead/internal/config"
	"nethead/internal/relay"
	"nethead/internal/relay/nsca"
	"nethead/internal/relay/redisstream"
	"nethead/internal/repository"
	"nethead/internal/repository/memory"
	"nethead/internal/repository/sqlite"
)

// newLogger builds the process logger from the log section
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch cfg.Format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), nil
}

// openDirectory opens the configured directory backend
func openDirectory(cfg config.DirectoryConfig) (repository.Directory, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSQLite:
		repo, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return repo, nil
	}
	return nil, fmt.Errorf("unknown directory backend %q", cfg.Backend)
}

// relayChain is the assembled relay plus whatever must be closed on shutdown
type relayChain struct {
	relay.Relay
	closers []io.Closer
}

// Close closes every sink that holds a connection
func (c *relayChain) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildRelay wires the configured sinks into one relay
func buildRelay(cfg config.RelayConfig, logger *slog.Logger) (*relayChain, error) {
	chain := &relayChain{}
	var sinks relay.Fanout

	if n := cfg.NSCA; n != nil {
		method, err := nsca.ParseEncryption(n.Encryption)
		if err != nil {
			return nil, err
		}
		client, err := nsca.New(nsca.Config{
			Address:      n.Address,
			Password:     n.Password,
			Encryption:   method,
			DialTimeout:  n.DialTimeout.Duration(),
			IOTimeout:    n.IOTimeout.Duration(),
			OutputLength: n.OutputLength,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, client)
		logger.Info("relay sink", "type", "nsca", "address", n.Address, "encryption", method.String())
	}

	if r := cfg.Redis; r != nil {
		sink, err := redisstream.New(redisstream.Config{URL: r.URL, Stream: r.Stream, MaxLen: r.MaxLen})
		if err != nil {
			chain.Close()
			return nil, err
		}
		sinks = append(sinks, sink)
		chain.closers = append(chain.closers, sink)
		logger.Info("relay sink", "type", "redis", "stream", r.Stream)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := sink.Ping(ctx); err != nil {
			// Submissions retry the connection; readings fail until it is back
			logger.Warn("redis unreachable", "error", err)
		}
		cancel()
	}

	if cfg.Log || !cfg.HasSinks() {
		sinks = append(sinks, relay.LogSink{Logger: logger.With("component", "relay")})
	}

	var r relay.Relay = sinks
	if len(sinks) == 1 {
		r = sinks[0]
	}
	if rc := cfg.Rate; rc != nil {
		r = relay.NewRateLimited(r, rc.PerSecond, rc.Burst)
	}
	chain.Relay = r
	return chain, nil
}
