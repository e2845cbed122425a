// Package relay forwards check results to the monitoring backend.
//
// The core only sees the Relay interface. Submit is synchronous: it returns
// once the result was handed to every sink or failed. Callers log failures
// and never retry.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"nethead/internal/domain"
)

// Relay submits a passive check result
type Relay interface {
	Submit(ctx context.Context, req domain.RelayRequest) error
}

// Func adapts a function to the Relay interface
type Func func(ctx context.Context, req domain.RelayRequest) error

// Submit calls f
func (f Func) Submit(ctx context.Context, req domain.RelayRequest) error {
	return f(ctx, req)
}

// Fanout submits every request to all sinks
type Fanout []Relay

// Submit delivers req to each sink and joins their errors
func (f Fanout) Submit(ctx context.Context, req domain.RelayRequest) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Submit(ctx, req); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RateLimited throttles submissions to the wrapped relay
type RateLimited struct {
	next    Relay
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond submissions with the given burst
func NewRateLimited(next Relay, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Submit waits for a token and forwards req
func (r *RateLimited) Submit(ctx context.Context, req domain.RelayRequest) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Submit(ctx, req)
}

// LogSink only logs the check result
type LogSink struct {
	Logger *slog.Logger
}

// Submit logs req at info level
func (s LogSink) Submit(ctx context.Context, req domain.RelayRequest) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "check result",
		"host", req.HostName,
		"service", req.ServiceKey,
		"reading", req.Reading,
		"severity", req.Severity.String())
	return nil
}

// PerfData renders the plugin output for an RSS reading, including the
// performance data range the backend graphs against.
func PerfData(req domain.RelayRequest) string {
	return fmt.Sprintf("Received RSS|rss=%ddBm;;;-100;-20", req.Reading)
}
