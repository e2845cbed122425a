package codec

import (
	"fmt"
	"io"
	"time"

	"nethead/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec exports directory listings as YAML
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Name returns the output format identifier
func (c *YAMLCodec) Name() string {
	return "yaml"
}

// yamlListing is the YAML shape of a listing. Services nest under their host
// and drop the redundant host address.
type yamlListing struct {
	Hosts []yamlHost `yaml:"hosts"`
}

type yamlHost struct {
	Address     string         `yaml:"address"`
	Name        string         `yaml:"name"`
	InterfaceID string         `yaml:"interface_id,omitempty"`
	Coords      *domain.Coords `yaml:"coords,omitempty"`
	CreatedAt   string         `yaml:"created_at"`
	Services    []yamlService  `yaml:"services,omitempty"`
}

type yamlService struct {
	Key              string `yaml:"key"`
	NeighborKey      string `yaml:"neighbor_key"`
	Passive          bool   `yaml:"passive"`
	CheckInterval    string `yaml:"check_interval"`
	MaxCheckAttempts int    `yaml:"max_check_attempts"`
	CreatedAt        string `yaml:"created_at"`
}

// Export writes the listing as YAML
func (c *YAMLCodec) Export(listing *Listing, w io.Writer) error {
	yl := yamlListing{Hosts: make([]yamlHost, 0, len(listing.Hosts))}

	for _, entry := range listing.Hosts {
		yh := yamlHost{
			Address:     entry.Host.Address,
			Name:        entry.Host.Name,
			InterfaceID: entry.Host.InterfaceID,
			Coords:      entry.Host.Coords,
			CreatedAt:   entry.Host.CreatedAt.Format(time.RFC3339),
		}
		for _, svc := range entry.Services {
			yh.Services = append(yh.Services, yamlService{
				Key:              svc.Key,
				NeighborKey:      svc.NeighborKey,
				Passive:          svc.PassiveOnly(),
				CheckInterval:    domain.CheckInterval.String(),
				MaxCheckAttempts: domain.MaxCheckAttempts,
				CreatedAt:        svc.CreatedAt.Format(time.RFC3339),
			})
		}
		yl.Hosts = append(yl.Hosts, yh)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&yl); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}

// ExporterFor returns the exporter for an output format name
func ExporterFor(name string) (Exporter, error) {
	switch name {
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	}
	return nil, fmt.Errorf("unsupported output format %q", name)
}
