// Package redisstream appends check results to a Redis stream so other
// consumers (dashboards, archivers) see every reading the bridge relays.
package redisstream

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"nethead/internal/domain"
	"nethead/internal/relay"
)

// DefaultStream is the stream key used when none is configured
const DefaultStream = "nethead:rss"

// Config holds the Redis connection settings
type Config struct {
	// URL is a redis:// or rediss:// connection URL
	URL string

	// Password overrides the password in URL (optional)
	Password string

	// Stream is the stream key (default: nethead:rss)
	Stream string

	// MaxLen caps the stream length with approximate trimming; 0 keeps all
	MaxLen int64
}

// Sink implements relay.Relay with XADD
type Sink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// New parses cfg.URL and creates a sink. The connection is established lazily.
func New(cfg Config) (*Sink, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	return NewWithClient(redis.NewClient(opts), cfg.Stream, cfg.MaxLen), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, stream string, maxLen int64) *Sink {
	if stream == "" {
		stream = DefaultStream
	}
	return &Sink{client: client, stream: stream, maxLen: maxLen}
}

// Ping checks connectivity
func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Submit appends req to the stream
func (s *Sink) Submit(ctx context.Context, req domain.RelayRequest) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"host":      req.HostName,
			"service":   req.ServiceKey,
			"reading":   strconv.Itoa(req.Reading),
			"severity":  req.Severity.String(),
			"output":    relay.PerfData(req),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis XADD %s: %w", s.stream, err)
	}
	return nil
}

// Close closes the Redis client
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ relay.Relay = (*Sink)(nil)
