// Package sqlstore persists compiled images, tasks and script log entries in PostgreSQL or
// SQLite through database/sql.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/store"
	_ "github.com/lib/pq"           // registers the "postgres" driver
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

//go:embed schema.sql
var schemaSQL string

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// ErrUnsupportedDriver indicates a driver name other than postgres or sqlite3.
var ErrUnsupportedDriver = fmt.Errorf("%w: unsupported driver", store.ErrStore)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns a connection pool. Methods taking a DbContext run inside it when it is a *sql.Tx or
// *sql.DB and fall back to the pool otherwise.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogHandler sets a custom log handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(s *Store) {
		if handler != nil {
			s.logger = slog.New(handler)
		}
	}
}

// Open connects with driver and dsn and verifies the connection.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	return New(db, opts...), nil
}

// New wraps an open pool. Close releases it.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		now:    time.Now,
		logger: slog.Default().WithGroup("sqlstore.Store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for stmt := range strings.SplitSeq(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) conn(db domain.DbContext) querier {
	switch v := db.(type) {
	case *sql.Tx:
		return v
	case *sql.DB:
		return v
	default:
		return s.db
	}
}

func (s *Store) GetBinary(
	ctx context.Context,
	db domain.DbContext,
	tenantID int,
	typ domain.ObjectType,
	objectID int64,
	scriptHash int64,
) ([]byte, error) {
	if err := store.ValidateKey(tenantID, typ.String(), objectID, scriptHash); err != nil {
		return nil, err
	}
	var image []byte
	err := s.conn(db).QueryRowContext(ctx,
		`SELECT image FROM script_binaries
		WHERE tenant_id = $1 AND object_type = $2 AND object_id = $3 AND script_hash = $4`,
		tenantID, typ.String(), objectID, scriptHash,
	).Scan(&image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrBinaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query binary: %w", err)
	}
	return image, nil
}

func (s *Store) SaveBinary(
	ctx context.Context,
	db domain.DbContext,
	tenantID int,
	typ domain.ObjectType,
	objectID int64,
	scriptHash int64,
	binary []byte,
) error {
	if err := store.ValidateKey(tenantID, typ.String(), objectID, scriptHash); err != nil {
		return err
	}
	if len(binary) == 0 {
		return fmt.Errorf("%w: empty binary", store.ErrInvalidArgument)
	}
	_, err := s.conn(db).ExecContext(ctx,
		`INSERT INTO script_binaries (tenant_id, object_type, object_id, script_hash, image, updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, object_type, object_id, script_hash)
		DO UPDATE SET image = excluded.image, updated = excluded.updated`,
		tenantID, typ.String(), objectID, scriptHash, binary, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save binary: %w", err)
	}
	return nil
}

// DeleteTenant removes every image of a tenant and returns how many rows were removed.
func (s *Store) DeleteTenant(ctx context.Context, db domain.DbContext, tenantID int) (int64, error) {
	res, err := s.conn(db).ExecContext(ctx, `DELETE FROM script_binaries WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tenant binaries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted binaries: %w", err)
	}
	s.logger.Debug("Tenant binaries deleted", "tenant_id", tenantID, "rows", n)
	return n, nil
}
