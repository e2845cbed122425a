package domain

import (
	"strings"
	"time"
)

// Fixed monitoring policy for per-neighbor services. The monitoring backend
// never polls these checks; the values only describe the service record.
const (
	ServiceKeyPrefix = "rss-"
	CheckInterval    = 5 * time.Minute
	MaxCheckAttempts = 1
)

// Host represents one mote known to the directory
type Host struct {
	Address     string    `json:"address" yaml:"address"`
	Name        string    `json:"name" yaml:"name"`
	InterfaceID string    `json:"interface_id,omitempty" yaml:"interface_id,omitempty"`
	Coords      *Coords   `json:"coords,omitempty" yaml:"coords,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Coords is the physical placement of a mote
type Coords struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Altitude  float64 `json:"altitude,omitempty" yaml:"altitude,omitempty"`
}

// NewHost creates a host for address with its canonical name
func NewHost(address string) *Host {
	return &Host{
		Address:   address,
		Name:      CanonicalName(address),
		CreatedAt: time.Now().UTC(),
	}
}

// Service is a per-neighbor telemetry channel owned by a host
type Service struct {
	HostAddress string    `json:"host_address" yaml:"host_address"`
	NeighborKey string    `json:"neighbor_key" yaml:"neighbor_key"`
	Key         string    `json:"key" yaml:"key"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// NewService creates the service for a host's neighbor
func NewService(hostAddress, neighborKey string) *Service {
	return &Service{
		HostAddress: hostAddress,
		NeighborKey: neighborKey,
		Key:         ServiceKey(neighborKey),
		CreatedAt:   time.Now().UTC(),
	}
}

// ServiceKey returns the service key for a neighbor key
func ServiceKey(neighborKey string) string {
	return ServiceKeyPrefix + neighborKey
}

// PassiveOnly reports that the service is fed by submitted check results.
func (s *Service) PassiveOnly() bool {
	return true
}

// IsUnspecified reports whether address uses the unspecified-address
// convention. Transports substitute "::" when the real source is unknown.
func IsUnspecified(address string) bool {
	return strings.HasPrefix(address, "::")
}
