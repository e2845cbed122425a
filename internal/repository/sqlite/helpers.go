package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"nethead/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// floatToNull converts a coordinate to a nullable column value
func floatToNull(f float64, valid bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: valid}
}

// formatTime stores timestamps as RFC 3339 text so they sort lexically
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// ============================================================================
// Row Scanners
// ============================================================================
//
// CRITICAL: Column order must match between:
// - hostColumns / serviceColumns constants
// - scanArgs() return slice
// - *InsertArgs() return slice

const hostColumns = `address, name, latitude, longitude, altitude, created_at, interface_id`

// hostRow holds all columns from a host query for scanning
type hostRow struct {
	Address     string
	Name        string
	Latitude    sql.NullFloat64
	Longitude   sql.NullFloat64
	Altitude    sql.NullFloat64
	CreatedAt   string
	InterfaceID sql.NullString
}

func (r *hostRow) scanArgs() []any {
	return []any{
		&r.Address,
		&r.Name,
		&r.Latitude,
		&r.Longitude,
		&r.Altitude,
		&r.CreatedAt,
		&r.InterfaceID,
	}
}

func (r *hostRow) toDomain() (*domain.Host, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("host %s: %w", r.Address, err)
	}

	host := &domain.Host{
		Address:     r.Address,
		Name:        r.Name,
		InterfaceID: nullToString(r.InterfaceID),
		CreatedAt:   createdAt,
	}
	if r.Latitude.Valid && r.Longitude.Valid {
		host.Coords = &domain.Coords{
			Latitude:  r.Latitude.Float64,
			Longitude: r.Longitude.Float64,
			Altitude:  r.Altitude.Float64,
		}
	}
	return host, nil
}

func hostInsertArgs(h *domain.Host) []any {
	var lat, long, alt sql.NullFloat64
	if h.Coords != nil {
		lat = floatToNull(h.Coords.Latitude, true)
		long = floatToNull(h.Coords.Longitude, true)
		alt = floatToNull(h.Coords.Altitude, true)
	}
	return []any{
		h.Address,
		h.Name,
		lat,
		long,
		alt,
		formatTime(h.CreatedAt),
		stringToNull(h.InterfaceID),
	}
}

const serviceColumns = `host_address, neighbor_key, service_key, created_at`

// serviceRow holds all columns from a service query for scanning
type serviceRow struct {
	HostAddress string
	NeighborKey string
	ServiceKey  string
	CreatedAt   string
}

func (r *serviceRow) scanArgs() []any {
	return []any{&r.HostAddress, &r.NeighborKey, &r.ServiceKey, &r.CreatedAt}
}

func (r *serviceRow) toDomain() (*domain.Service, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", r.ServiceKey, err)
	}
	return &domain.Service{
		HostAddress: r.HostAddress,
		NeighborKey: r.NeighborKey,
		Key:         r.ServiceKey,
		CreatedAt:   createdAt,
	}, nil
}

func serviceInsertArgs(s *domain.Service) []any {
	return []any{s.HostAddress, s.NeighborKey, s.Key, formatTime(s.CreatedAt)}
}
