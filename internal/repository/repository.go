package repository

import (
	"context"
	"errors"

	"nethead/internal/domain"
)

// ErrDuplicateKey is returned when an insert would break the one-record-per-key
// rule: one Host per address, one Service per (address, neighbor key).
var ErrDuplicateKey = errors.New("duplicate key")

// Directory defines data access for hosts and their per-neighbor services.
// Find methods return nil, nil when no record matches.
type Directory interface {
	// Read operations
	FindHostByAddress(ctx context.Context, address string) (*domain.Host, error)
	FindService(ctx context.Context, hostAddress, neighborKey string) (*domain.Service, error)
	ListHosts(ctx context.Context) ([]domain.Host, error)
	ListServices(ctx context.Context, hostAddress string) ([]domain.Service, error)

	// Write operations
	InsertHost(ctx context.Context, host *domain.Host) error
	InsertService(ctx context.Context, svc *domain.Service) error

	// Close releases resources
	Close() error
}
