package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"nethead/internal/codec"
	"nethead/internal/domain"
	"nethead/internal/relay"
	"nethead/internal/repository"
)

// DirectoryService reconciles hello and telemetry requests against the
// host/service directory and forwards readings to the relay
type DirectoryService struct {
	dir    repository.Directory
	relay  relay.Relay
	logger *slog.Logger

	hostLocks    *keyLock
	serviceLocks *keyLock
}

// NewDirectoryService creates a new directory service
func NewDirectoryService(dir repository.Directory, r relay.Relay, logger *slog.Logger) *DirectoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryService{
		dir:          dir,
		relay:        r,
		logger:       logger,
		hostLocks:    newKeyLock(),
		serviceLocks: newKeyLock(),
	}
}

// Register makes sure a host exists for address. It reports created=true only
// for the call that inserted the host; replays are no-ops.
func (s *DirectoryService) Register(ctx context.Context, address string, hello domain.Hello) (bool, error) {
	if err := validateAddress(address); err != nil {
		return false, err
	}

	unlock := s.hostLocks.Lock(address)
	defer unlock()

	existing, err := s.dir.FindHostByAddress(ctx, address)
	if err != nil {
		return false, &domain.PersistenceError{Op: "find host", Err: err}
	}
	if existing != nil {
		s.logger.Debug("host already registered", "address", address, "name", existing.Name)
		return false, nil
	}

	host := domain.NewHost(address)
	host.InterfaceID = hello.InterfaceID
	if err := s.dir.InsertHost(ctx, host); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// Another process sharing the store won the race
			s.logger.Info("host registered concurrently", "address", address)
			return false, nil
		}
		return false, &domain.PersistenceError{Op: "insert host", Err: err}
	}

	s.logger.Info("host created", "address", address, "name", host.Name)
	return true, nil
}

// LookupHost returns the registered host for address. An unknown address,
// including one that could never register, fails with ErrNotRegistered.
func (s *DirectoryService) LookupHost(ctx context.Context, address string) (*domain.Host, error) {
	host, err := s.dir.FindHostByAddress(ctx, address)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "find host", Err: err}
	}
	if host == nil {
		return nil, fmt.Errorf("telemetry from %q: %w", address, domain.ErrNotRegistered)
	}
	return host, nil
}

// TelemetryResult summarizes how a batch was processed
type TelemetryResult struct {
	ServicesCreated int
	Relayed         int
	Skipped         int
	RelayFailures   int
}

// RecordTelemetry resolves the sending host, then resolves (creating when
// needed) a service per reading and relays each reading. A failure on one
// entry never stops the others.
func (s *DirectoryService) RecordTelemetry(ctx context.Context, address string, batch *domain.TelemetryBatch) (TelemetryResult, error) {
	var result TelemetryResult

	host, err := s.LookupHost(ctx, address)
	if err != nil {
		return result, err
	}

	for _, reading := range batch.Readings {
		svc, created, err := s.resolveService(ctx, host, reading.NeighborKey)
		if err != nil {
			s.logger.Error("skipping reading", "host", host.Name, "neighbor", reading.NeighborKey, "error", err)
			result.Skipped++
			continue
		}
		if created {
			result.ServicesCreated++
		}

		req := domain.NewRelayRequest(host, svc, reading.DBm)
		if err := s.relay.Submit(ctx, req); err != nil {
			rerr := &domain.RelayError{Host: req.HostName, Service: req.ServiceKey, Err: err}
			s.logger.Warn("relay failed", "error", rerr)
			result.RelayFailures++
			continue
		}
		s.logger.Debug("relayed reading", "host", req.HostName, "service", req.ServiceKey, "dbm", req.Reading)
		result.Relayed++
	}

	return result, nil
}

// resolveService finds or creates the service under the per-service lock.
// The lock is released before the caller relays.
func (s *DirectoryService) resolveService(ctx context.Context, host *domain.Host, neighborKey string) (*domain.Service, bool, error) {
	unlock := s.serviceLocks.Lock(host.Address + "|" + neighborKey)
	defer unlock()

	svc, err := s.dir.FindService(ctx, host.Address, neighborKey)
	if err != nil {
		return nil, false, &domain.PersistenceError{Op: "find service", Err: err}
	}
	if svc != nil {
		return svc, false, nil
	}

	svc = domain.NewService(host.Address, neighborKey)
	if err := s.dir.InsertService(ctx, svc); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			existing, ferr := s.dir.FindService(ctx, host.Address, neighborKey)
			if ferr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, &domain.PersistenceError{Op: "insert service", Err: err}
	}

	s.logger.Info("service created", "host", host.Name, "service", svc.Key)
	return svc, true, nil
}

// ImportResult summarizes an inventory import
type ImportResult struct {
	HostsCreated  int
	HostsExisting int
}

// ImportHosts inserts inventory hosts that are not registered yet. Existing
// hosts are left untouched.
func (s *DirectoryService) ImportHosts(ctx context.Context, hosts []domain.Host) (ImportResult, error) {
	var result ImportResult

	for i := range hosts {
		host := hosts[i]
		if err := validateAddress(host.Address); err != nil {
			return result, err
		}

		created, err := s.importHost(ctx, &host)
		if err != nil {
			return result, err
		}
		if created {
			result.HostsCreated++
		} else {
			result.HostsExisting++
		}
	}

	s.logger.Info("inventory imported", "created", result.HostsCreated, "existing", result.HostsExisting)
	return result, nil
}

func (s *DirectoryService) importHost(ctx context.Context, host *domain.Host) (bool, error) {
	unlock := s.hostLocks.Lock(host.Address)
	defer unlock()

	existing, err := s.dir.FindHostByAddress(ctx, host.Address)
	if err != nil {
		return false, &domain.PersistenceError{Op: "find host", Err: err}
	}
	if existing != nil {
		return false, nil
	}

	if err := s.dir.InsertHost(ctx, host); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return false, nil
		}
		return false, &domain.PersistenceError{Op: "insert host", Err: err}
	}
	return true, nil
}

// Listing returns every host with its services, ordered by address
func (s *DirectoryService) Listing(ctx context.Context) (*codec.Listing, error) {
	hosts, err := s.dir.ListHosts(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list hosts", Err: err}
	}

	listing := &codec.Listing{Hosts: make([]codec.HostEntry, 0, len(hosts))}
	for _, host := range hosts {
		services, err := s.dir.ListServices(ctx, host.Address)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "list services", Err: err}
		}
		listing.Hosts = append(listing.Hosts, codec.HostEntry{Host: host, Services: services})
	}
	return listing, nil
}

func validateAddress(address string) error {
	if address == "" {
		return &domain.ValidationError{Field: "address", Reason: "empty source address"}
	}
	if domain.IsUnspecified(address) {
		return &domain.ValidationError{Field: "address", Reason: fmt.Sprintf("%s is the unspecified address", address)}
	}
	return nil
}
