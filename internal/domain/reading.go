package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Severity is a passive check return code
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityUnknown
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

// Reading is one neighbor's received signal strength in dBm
type Reading struct {
	NeighborKey string
	DBm         int
}

// RelayRequest is a check result forwarded to the monitoring backend
type RelayRequest struct {
	HostName   string
	ServiceKey string
	Reading    int
	Severity   Severity
}

// NewRelayRequest builds the OK check result for a reading
func NewRelayRequest(host *Host, svc *Service, dbm int) RelayRequest {
	return RelayRequest{
		HostName:   host.Name,
		ServiceKey: svc.Key,
		Reading:    dbm,
		Severity:   SeverityOK,
	}
}

// Hello is the registration payload
type Hello struct {
	InterfaceID string
}

// MaxNeighborKeyLen is the length of a neighbor key (16 bits in hex)
const MaxNeighborKeyLen = 4

// TelemetryBatch is a validated set of readings from one mote
type TelemetryBatch struct {
	Readings []Reading
}

// NewTelemetryBatch validates neighbor keys and returns the readings sorted
// by key so processing order is deterministic.
func NewTelemetryBatch(values map[string]int) (*TelemetryBatch, error) {
	batch := &TelemetryBatch{Readings: make([]Reading, 0, len(values))}
	seen := make(map[string]string, len(values))
	for key, dbm := range values {
		if err := ValidateNeighborKey(key); err != nil {
			return nil, err
		}
		// Keys are stored in the upper-case form NeighborKey derives
		norm := strings.ToUpper(key)
		if prev, dup := seen[norm]; dup {
			return nil, &ValidationError{Field: "neighbor key", Reason: fmt.Sprintf("%q and %q name the same neighbor", prev, key)}
		}
		seen[norm] = key
		batch.Readings = append(batch.Readings, Reading{NeighborKey: norm, DBm: dbm})
	}
	sort.Slice(batch.Readings, func(i, j int) bool {
		return batch.Readings[i].NeighborKey < batch.Readings[j].NeighborKey
	})
	return batch, nil
}

// ValidateNeighborKey checks that key is 1-4 hex characters
func ValidateNeighborKey(key string) error {
	if key == "" || len(key) > MaxNeighborKeyLen {
		return &ValidationError{Field: "neighbor key", Reason: fmt.Sprintf("%q must be 1-%d hex characters", key, MaxNeighborKeyLen)}
	}
	for _, c := range key {
		if !isHex(c) {
			return &ValidationError{Field: "neighbor key", Reason: fmt.Sprintf("%q is not hexadecimal", key)}
		}
	}
	return nil
}

func isHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
