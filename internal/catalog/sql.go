package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	apperrors "github.com/jittakal/geobin/internal/errors"
)

const ddlSchemas = `CREATE TABLE IF NOT EXISTS geobin_schemas (
	type_name  TEXT PRIMARY KEY,
	spec       TEXT NOT NULL,
	updated_at BIGINT NOT NULL
)`

// dialect holds the statements for one SQL backend.
type dialect struct {
	put    string
	get    string
	list   string
	delete string
}

var sqliteDialect = dialect{
	put: `INSERT INTO geobin_schemas (type_name, spec, updated_at) VALUES (?, ?, ?)
ON CONFLICT (type_name) DO UPDATE SET spec = excluded.spec, updated_at = excluded.updated_at`,
	get:    `SELECT spec FROM geobin_schemas WHERE type_name = ?`,
	list:   `SELECT type_name FROM geobin_schemas`,
	delete: `DELETE FROM geobin_schemas WHERE type_name = ?`,
}

var postgresDialect = dialect{
	put: `INSERT INTO geobin_schemas (type_name, spec, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (type_name) DO UPDATE SET spec = excluded.spec, updated_at = excluded.updated_at`,
	get:    `SELECT spec FROM geobin_schemas WHERE type_name = $1`,
	list:   `SELECT type_name FROM geobin_schemas`,
	delete: `DELETE FROM geobin_schemas WHERE type_name = $1`,
}

// SQLStore keeps specs in a single table of a SQLite or PostgreSQL database.
type SQLStore struct {
	db  *sql.DB
	sql dialect
	now func() time.Time
}

// Ensure implementation satisfies interface at compile time.
var _ Store = (*SQLStore)(nil)

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&_pragma=busy_timeout(5000)"
	} else {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases consistent.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, sqliteDialect)
}

// OpenPostgres connects through the pgx database/sql driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	return newSQLStore(ctx, stdlib.OpenDB(*cfg), postgresDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, ddlSchemas); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema table: %w", err)
	}
	return &SQLStore{db: db, sql: d, now: time.Now}, nil
}

func (s *SQLStore) Put(ctx context.Context, typeName, spec string) error {
	_, err := s.db.ExecContext(ctx, s.sql.put, typeName, spec, s.now().UnixMilli())
	return err
}

func (s *SQLStore) Get(ctx context.Context, typeName string) (string, error) {
	var spec string
	err := s.db.QueryRowContext(ctx, s.sql.get, typeName).Scan(&spec)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.ErrSchemaNotFound
	}
	return spec, err
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.sql.list)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLStore) Delete(ctx context.Context, typeName string) error {
	res, err := s.db.ExecContext(ctx, s.sql.delete, typeName)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrSchemaNotFound
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
