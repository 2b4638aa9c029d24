// Package postgres provides the Postgres-backed readings store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/cme-volume-scraper/internal/storage"
	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

// Config controls the Postgres connection pool used for readings.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// ReadingStore appends readings to a Postgres table.
type ReadingStore struct {
	pool  pool
	table string
}

// New connects to Postgres and makes sure the readings table exists.
func New(ctx context.Context, cfg Config) (*ReadingStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres_dsn is required")
	}
	table, err := storage.TableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &ReadingStore{pool: p, table: table}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*ReadingStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := storage.TableName(table)
	if err != nil {
		return nil, err
	}
	return &ReadingStore{pool: p, table: table}, nil
}

// EnsureSchema creates the readings table when missing.
func (s *ReadingStore) EnsureSchema(ctx context.Context) error {
	ddl := storage.CreateTableSQL(s.table, "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ")
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Latest returns the row with the highest id.
func (s *ReadingStore) Latest(ctx context.Context) (volume.Reading, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id DESC LIMIT 1`, storage.SelectColumns(), s.table)
	var r volume.Reading
	if err := s.pool.QueryRow(ctx, query).Scan(storage.ScanTargets(&r, &r.ScrapedAt)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return volume.Reading{}, volume.ErrNoReadings
		}
		return volume.Reading{}, fmt.Errorf("select latest reading: %w", err)
	}
	r.ScrapedAt = r.ScrapedAt.UTC()
	return r, nil
}

// Insert appends a row and returns the reading with its generated id.
func (s *ReadingStore) Insert(ctx context.Context, reading volume.Reading) (volume.Reading, error) {
	cols := storage.ValueColumns()
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING id`,
		s.table, strings.Join(cols, ", "), storage.Placeholders("$", len(cols)))
	if err := s.pool.QueryRow(ctx, query, storage.InsertArgs(reading, reading.ScrapedAt)...).Scan(&reading.ID); err != nil {
		return volume.Reading{}, fmt.Errorf("insert reading: %w", err)
	}
	return reading, nil
}

// List returns up to limit rows, newest first. A non-positive limit returns
// every row.
func (s *ReadingStore) List(ctx context.Context, limit int) ([]volume.Reading, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id DESC LIMIT $1`, storage.SelectColumns(), s.table)
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}
	rows, err := s.pool.Query(ctx, query, limitArg)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var readings []volume.Reading
	for rows.Next() {
		var r volume.Reading
		if err := rows.Scan(storage.ScanTargets(&r, &r.ScrapedAt)...); err != nil {
			return nil, fmt.Errorf("scan reading row: %w", err)
		}
		r.ScrapedAt = r.ScrapedAt.UTC()
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reading rows: %w", err)
	}
	return readings, nil
}

// Close releases the underlying pool resources.
func (s *ReadingStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
