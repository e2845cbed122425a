package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"nethead/internal/domain"
	"nethead/internal/repository"
)

// Repository implements repository.Directory in process memory
type Repository struct {
	mu       sync.RWMutex
	hosts    map[string]domain.Host
	services map[serviceID]domain.Service
	closed   bool
}

type serviceID struct {
	hostAddress string
	neighborKey string
}

// New creates an empty in-memory directory
func New() *Repository {
	return &Repository{
		hosts:    make(map[string]domain.Host),
		services: make(map[serviceID]domain.Service),
	}
}

// FindHostByAddress returns the host registered for address
func (r *Repository) FindHostByAddress(ctx context.Context, address string) (*domain.Host, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, errClosed
	}
	host, ok := r.hosts[address]
	if !ok {
		return nil, nil
	}
	return &host, nil
}

// FindService returns the service for a host's neighbor
func (r *Repository) FindService(ctx context.Context, hostAddress, neighborKey string) (*domain.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, errClosed
	}
	svc, ok := r.services[serviceID{hostAddress, neighborKey}]
	if !ok {
		return nil, nil
	}
	return &svc, nil
}

// ListHosts returns all hosts ordered by address
func (r *Repository) ListHosts(ctx context.Context) ([]domain.Host, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, errClosed
	}
	hosts := make([]domain.Host, 0, len(r.hosts))
	for _, h := range r.hosts {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Address < hosts[j].Address })
	return hosts, nil
}

// ListServices returns a host's services ordered by neighbor key
func (r *Repository) ListServices(ctx context.Context, hostAddress string) ([]domain.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, errClosed
	}
	var services []domain.Service
	for id, svc := range r.services {
		if id.hostAddress == hostAddress {
			services = append(services, svc)
		}
	}
	sort.Slice(services, func(i, j int) bool { return services[i].NeighborKey < services[j].NeighborKey })
	return services, nil
}

// InsertHost adds a host, failing with ErrDuplicateKey if the address is taken
func (r *Repository) InsertHost(ctx context.Context, host *domain.Host) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errClosed
	}
	if _, exists := r.hosts[host.Address]; exists {
		return fmt.Errorf("host %s: %w", host.Address, repository.ErrDuplicateKey)
	}
	r.hosts[host.Address] = *host
	return nil
}

// InsertService adds a service, failing with ErrDuplicateKey if one exists
// for the same host and neighbor
func (r *Repository) InsertService(ctx context.Context, svc *domain.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errClosed
	}
	if _, ok := r.hosts[svc.HostAddress]; !ok {
		return fmt.Errorf("service %s: unknown host %s", svc.Key, svc.HostAddress)
	}
	id := serviceID{svc.HostAddress, svc.NeighborKey}
	if _, exists := r.services[id]; exists {
		return fmt.Errorf("service %s on %s: %w", svc.Key, svc.HostAddress, repository.ErrDuplicateKey)
	}
	r.services[id] = *svc
	return nil
}

// Close drops all records; later calls fail
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.hosts = nil
	r.services = nil
	return nil
}

var errClosed = errors.New("directory closed")

var _ repository.Directory = (*Repository)(nil)
