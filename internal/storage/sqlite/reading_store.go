// Package sqlite provides the SQLite-backed readings store used for
// single-host deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/cme-volume-scraper/internal/storage"
	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

// Config locates the database file.
type Config struct {
	Path  string
	Table string
}

// ReadingStore appends readings to a SQLite table.
type ReadingStore struct {
	db    *sql.DB
	table string
}

// New opens (creating if needed) the database and the readings table.
func New(ctx context.Context, cfg Config) (*ReadingStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("storage.sqlite_path is required")
	}
	table, err := storage.TableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	// Single connection: SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	store := &ReadingStore{db: db, table: table}
	ddl := storage.CreateTableSQL(table, "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT")
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return store, nil
}

// Latest returns the row with the highest id.
func (s *ReadingStore) Latest(ctx context.Context) (volume.Reading, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id DESC LIMIT 1`, storage.SelectColumns(), s.table)
	r, err := scanReading(s.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return volume.Reading{}, volume.ErrNoReadings
		}
		return volume.Reading{}, fmt.Errorf("select latest reading: %w", err)
	}
	return r, nil
}

// Insert appends a row and returns the reading with its generated id.
func (s *ReadingStore) Insert(ctx context.Context, reading volume.Reading) (volume.Reading, error) {
	cols := storage.ValueColumns()
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		s.table, strings.Join(cols, ", "), storage.Placeholders("?", len(cols)))
	scrapedAt := reading.ScrapedAt.UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, query, storage.InsertArgs(reading, scrapedAt)...)
	if err != nil {
		return volume.Reading{}, fmt.Errorf("insert reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return volume.Reading{}, fmt.Errorf("read inserted id: %w", err)
	}
	reading.ID = id
	return reading, nil
}

// List returns up to limit rows, newest first. A non-positive limit returns
// every row.
func (s *ReadingStore) List(ctx context.Context, limit int) ([]volume.Reading, error) {
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id DESC LIMIT ?`, storage.SelectColumns(), s.table)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var readings []volume.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading row: %w", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reading rows: %w", err)
	}
	return readings, nil
}

// Close closes the database handle.
func (s *ReadingStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (volume.Reading, error) {
	var (
		r         volume.Reading
		scrapedAt string
	)
	if err := row.Scan(storage.ScanTargets(&r, &scrapedAt)...); err != nil {
		return volume.Reading{}, err //nolint:wrapcheck // callers wrap with context
	}
	ts, err := time.Parse(time.RFC3339Nano, scrapedAt)
	if err != nil {
		return volume.Reading{}, fmt.Errorf("parse scraped_at %q: %w", scrapedAt, err)
	}
	r.ScrapedAt = ts.UTC()
	return r, nil
}
