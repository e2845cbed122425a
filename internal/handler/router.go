package handler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"

	"nethead/internal/codec"
	"nethead/internal/domain"
	"nethead/internal/service"
)

// Resource paths served by the router
const (
	PathRegister  = "/nh/lo"
	PathTelemetry = "/nh/rss"
)

// Directory is the part of the directory service the router drives
type Directory interface {
	Register(ctx context.Context, address string, hello domain.Hello) (bool, error)
	LookupHost(ctx context.Context, address string) (*domain.Host, error)
	RecordTelemetry(ctx context.Context, address string, batch *domain.TelemetryBatch) (service.TelemetryResult, error)
}

// routeFunc handles one resource and returns the success code to report
type routeFunc func(ctx context.Context, req *domain.Request, logger *slog.Logger) (domain.ResultCode, error)

// Router dispatches requests by method and exact path
type Router struct {
	dir    Directory
	logger *slog.Logger
	routes map[string]routeFunc
}

// NewRouter creates a router backed by dir
func NewRouter(dir Directory, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Router{dir: dir, logger: logger}
	rt.routes = map[string]routeFunc{
		PathRegister:  rt.register,
		PathTelemetry: rt.telemetry,
	}
	return rt
}

// Handle dispatches on the request method
func (rt *Router) Handle(ctx context.Context, req *domain.Request) {
	switch req.Method {
	case domain.MethodGet:
		rt.HandleGet(ctx, req)
	case domain.MethodPost:
		rt.HandlePost(ctx, req)
	default:
		logger := rt.requestLogger(req)
		rt.finish(logger, req, 0, &domain.ValidationError{Field: "method", Reason: fmt.Sprintf("%q not supported", req.Method)})
	}
}

// HandleGet acknowledges a read. No resource has readable state.
func (rt *Router) HandleGet(ctx context.Context, req *domain.Request) {
	logger := rt.requestLogger(req)
	logger.Info("get request")
	req.SetResult(domain.ClassSuccess, domain.CodeContent)
}

// HandlePost runs the handler registered for req.Path
func (rt *Router) HandlePost(ctx context.Context, req *domain.Request) {
	logger := rt.requestLogger(req)

	defer func() {
		if p := recover(); p != nil {
			logger.Error("handler panic", "panic", p, "stack", string(debug.Stack()))
			req.SetResult(domain.ClassServerError, domain.CodeInternalServerError)
		}
	}()

	route, ok := rt.routes[req.Path]
	if !ok {
		rt.finish(logger, req, 0, fmt.Errorf("%s: %w", req.Path, domain.ErrUnknownRoute))
		return
	}

	code, err := route(ctx, req, logger)
	rt.finish(logger, req, code, err)
}

func (rt *Router) requestLogger(req *domain.Request) *slog.Logger {
	return rt.logger.With(
		"request_id", uuid.NewString(),
		"method", string(req.Method),
		"path", req.Path,
		"source", req.SourceAddress,
	)
}

// finish writes the outcome onto req
func (rt *Router) finish(logger *slog.Logger, req *domain.Request, code domain.ResultCode, err error) {
	if err == nil {
		req.SetResult(domain.ClassSuccess, code)
		logger.Debug("request handled", "code", code.String())
		return
	}

	class, code := domain.Classify(err)
	req.SetResult(class, code)
	if class == domain.ClassServerError {
		logger.Error("request failed", "code", code.String(), "error", err)
		return
	}
	logger.Warn("request rejected", "code", code.String(), "error", err)
}

func (rt *Router) register(ctx context.Context, req *domain.Request, logger *slog.Logger) (domain.ResultCode, error) {
	hello, err := codec.DecodeHello(req.Payload, req.ContentFormat)
	if err != nil {
		return 0, err
	}

	created, err := rt.dir.Register(ctx, req.SourceAddress, *hello)
	if err != nil {
		return 0, err
	}
	if created {
		return domain.CodeCreated, nil
	}
	return domain.CodeChanged, nil
}

// telemetry requires a registered sender before it looks at the payload
func (rt *Router) telemetry(ctx context.Context, req *domain.Request, logger *slog.Logger) (domain.ResultCode, error) {
	if _, err := rt.dir.LookupHost(ctx, req.SourceAddress); err != nil {
		return 0, err
	}

	batch, err := codec.DecodeTelemetry(req.Payload, req.ContentFormat)
	if err != nil {
		return 0, err
	}

	result, err := rt.dir.RecordTelemetry(ctx, req.SourceAddress, batch)
	if err != nil {
		return 0, err
	}

	logger.Info("telemetry processed",
		"readings", len(batch.Readings),
		"services_created", result.ServicesCreated,
		"relayed", result.Relayed,
		"skipped", result.Skipped,
		"relay_failures", result.RelayFailures,
	)

	if result.ServicesCreated > 0 {
		return domain.CodeCreated, nil
	}
	return domain.CodeChanged, nil
}
