package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"nethead/internal/domain"
	"nethead/internal/repository"
)

// Repository implements repository.Directory using SQLite
type Repository struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite directory at dbPath
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if dbPath == ":memory:" {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hosts (
		address TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		latitude REAL,
		longitude REAL,
		altitude REAL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS services (
		host_address TEXT NOT NULL,
		neighbor_key TEXT NOT NULL,
		service_key TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (host_address, neighbor_key),
		FOREIGN KEY (host_address) REFERENCES hosts(address) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_hosts_name ON hosts(name);
	`

	if _, err := r.db.Exec(schema); err != nil {
		return err
	}

	// Columns added after the first release
	return r.addColumnIfNotExists("hosts", "interface_id", "TEXT")
}

func (r *Repository) addColumnIfNotExists(table, column, definition string) error {
	rows, err := r.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("failed to read %s schema: %w", table, err)
	}

	found := false
	for rows.Next() {
		var (
			cid        int
			name, kind string
			notNull    int
			dflt       sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &kind, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan %s schema: %w", table, err)
		}
		if strings.EqualFold(name, column) {
			found = true
		}
	}
	err = rows.Err()
	// Release the connection before ALTER; in-memory databases have only one
	rows.Close()
	if err != nil || found {
		return err
	}

	_, err = r.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}

// FindHostByAddress retrieves the host registered for address
func (r *Repository) FindHostByAddress(ctx context.Context, address string) (*domain.Host, error) {
	var row hostRow
	err := r.db.QueryRowContext(ctx, `
		SELECT `+hostColumns+` FROM hosts WHERE address = ?
	`, address).Scan(row.scanArgs()...)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query host: %w", err)
	}

	return row.toDomain()
}

// FindService retrieves the service for a host's neighbor
func (r *Repository) FindService(ctx context.Context, hostAddress, neighborKey string) (*domain.Service, error) {
	var row serviceRow
	err := r.db.QueryRowContext(ctx, `
		SELECT `+serviceColumns+` FROM services WHERE host_address = ? AND neighbor_key = ?
	`, hostAddress, neighborKey).Scan(row.scanArgs()...)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query service: %w", err)
	}

	return row.toDomain()
}

// ListHosts returns all hosts ordered by address
func (r *Repository) ListHosts(ctx context.Context) ([]domain.Host, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+hostColumns+` FROM hosts ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hosts: %w", err)
	}
	defer rows.Close()

	var hosts []domain.Host
	for rows.Next() {
		var row hostRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		host, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, *host)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hosts: %w", err)
	}

	return hosts, nil
}

// ListServices returns a host's services ordered by neighbor key
func (r *Repository) ListServices(ctx context.Context, hostAddress string) ([]domain.Service, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+serviceColumns+` FROM services WHERE host_address = ? ORDER BY neighbor_key
	`, hostAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	var services []domain.Service
	for rows.Next() {
		var row serviceRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		svc, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		services = append(services, *svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating services: %w", err)
	}

	return services, nil
}

// InsertHost adds a host; a second host for the same address fails with
// repository.ErrDuplicateKey
func (r *Repository) InsertHost(ctx context.Context, host *domain.Host) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO hosts (`+hostColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, hostInsertArgs(host)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("host %s: %w", host.Address, repository.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert host: %w", err)
	}
	return nil
}

// InsertService adds a service; a second service for the same host and
// neighbor fails with repository.ErrDuplicateKey
func (r *Repository) InsertService(ctx context.Context, svc *domain.Service) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO services (`+serviceColumns+`)
		VALUES (?, ?, ?, ?)
	`, serviceInsertArgs(svc)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("service %s on %s: %w", svc.Key, svc.HostAddress, repository.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert service: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	var serr *msqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(serr.Error(), "UNIQUE constraint failed")
	}
	return false
}

var _ repository.Directory = (*Repository)(nil)
