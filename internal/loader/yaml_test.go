package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nethead/internal/domain"
)

const sampleInventory = `
version: "1"
metadata:
  deployment: greenhouse-east
motes:
  - address: "fd00::212:4b00:615:a3f1"
    interface_id: "0212:4b00:0615:a3f1"
    coords:
      latitude: 52.5163
      longitude: 13.3777
      altitude: 34
  - address: "fd00::212:4b00:615:0042"
`

func TestParseYAML(t *testing.T) {
	hosts, err := ParseYAML([]byte(sampleInventory))
	if err != nil {
		t.Fatalf("ParseYAML failed: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(hosts))
	}

	first := hosts[0]
	if first.Name != "mote-a3f1" {
		t.Errorf("expected name mote-a3f1, got %s", first.Name)
	}
	if first.InterfaceID != "0212:4b00:0615:a3f1" {
		t.Errorf("unexpected interface id %q", first.InterfaceID)
	}
	if first.Coords == nil || first.Coords.Latitude != 52.5163 || first.Coords.Altitude != 34 {
		t.Errorf("unexpected coords %+v", first.Coords)
	}

	if hosts[1].Name != "mote-0042" {
		t.Errorf("expected name mote-0042, got %s", hosts[1].Name)
	}
	if hosts[1].Coords != nil {
		t.Errorf("expected no coords, got %+v", hosts[1].Coords)
	}
}

func TestParseYAMLRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"missing address", "motes:\n  - interface_id: x\n", "address is required"},
		{"unspecified address", "motes:\n  - address: \"::\"\n", "not a routable address"},
		{"duplicate", "motes:\n  - address: fd00::1\n  - address: fd00::1\n", "duplicate address"},
		{"malformed", "motes: [", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadYAMLRoundTrip(t *testing.T) {
	hosts, err := ParseYAML([]byte(sampleInventory))
	if err != nil {
		t.Fatalf("ParseYAML failed: %v", err)
	}

	data, err := ExportYAML(hosts)
	if err != nil {
		t.Fatalf("ExportYAML failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "motes.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}
	if len(loaded) != len(hosts) {
		t.Fatalf("expected %d hosts, got %d", len(hosts), len(loaded))
	}
	for i := range hosts {
		if loaded[i].Address != hosts[i].Address || loaded[i].Name != hosts[i].Name {
			t.Errorf("host %d: got %s/%s, want %s/%s", i, loaded[i].Address, loaded[i].Name, hosts[i].Address, hosts[i].Name)
		}
	}
	if *loaded[0].Coords != (domain.Coords{Latitude: 52.5163, Longitude: 13.3777, Altitude: 34}) {
		t.Errorf("coords lost: %+v", loaded[0].Coords)
	}
}

func TestLoadYAMLMissingFile(t *testing.T) {
	if _, err := LoadYAML(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
