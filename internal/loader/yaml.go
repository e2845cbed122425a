package loader

import (
	"fmt"
	"os"
	"strings"

	"nethead/internal/domain"

	"gopkg.in/yaml.v3"
)

// InventoryYAML represents the mote inventory file structure
type InventoryYAML struct {
	Version  string        `yaml:"version"`
	Metadata *MetadataYAML `yaml:"metadata,omitempty"`
	Motes    []MoteYAML    `yaml:"motes"`
}

// MetadataYAML represents the metadata section
type MetadataYAML struct {
	Deployment  string `yaml:"deployment,omitempty"`
	Description string `yaml:"description,omitempty"`
	LastUpdated string `yaml:"last_updated,omitempty"`
}

// MoteYAML represents one deployed mote
type MoteYAML struct {
	Address     string      `yaml:"address"`
	InterfaceID string      `yaml:"interface_id,omitempty"`
	Coords      *CoordsYAML `yaml:"coords,omitempty"`
}

// CoordsYAML represents a mote's placement
type CoordsYAML struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Altitude  float64 `yaml:"altitude,omitempty"`
}

// LoadYAML loads a mote inventory from a YAML file
func LoadYAML(path string) ([]domain.Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return ParseYAML(data)
}

// ParseYAML parses a mote inventory from YAML bytes
func ParseYAML(data []byte) ([]domain.Host, error) {
	var inv InventoryYAML
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return convertInventory(&inv)
}

func convertInventory(inv *InventoryYAML) ([]domain.Host, error) {
	hosts := make([]domain.Host, 0, len(inv.Motes))
	seen := make(map[string]bool, len(inv.Motes))

	for i, m := range inv.Motes {
		address := strings.TrimSpace(m.Address)
		if address == "" {
			return nil, fmt.Errorf("mote %d: address is required", i)
		}
		if domain.IsUnspecified(address) {
			return nil, fmt.Errorf("mote %d: %s is not a routable address", i, address)
		}
		if seen[address] {
			return nil, fmt.Errorf("mote %d: duplicate address %s", i, address)
		}
		seen[address] = true

		host := domain.NewHost(address)
		host.InterfaceID = m.InterfaceID
		if m.Coords != nil {
			host.Coords = &domain.Coords{
				Latitude:  m.Coords.Latitude,
				Longitude: m.Coords.Longitude,
				Altitude:  m.Coords.Altitude,
			}
		}
		hosts = append(hosts, *host)
	}

	return hosts, nil
}

// ExportYAML renders hosts as an inventory file that LoadYAML accepts
func ExportYAML(hosts []domain.Host) ([]byte, error) {
	inv := InventoryYAML{
		Version: "1",
		Motes:   make([]MoteYAML, 0, len(hosts)),
	}

	for _, h := range hosts {
		m := MoteYAML{Address: h.Address, InterfaceID: h.InterfaceID}
		if h.Coords != nil {
			m.Coords = &CoordsYAML{
				Latitude:  h.Coords.Latitude,
				Longitude: h.Coords.Longitude,
				Altitude:  h.Coords.Altitude,
			}
		}
		inv.Motes = append(inv.Motes, m)
	}

	data, err := yaml.Marshal(&inv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}
