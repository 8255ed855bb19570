// Package sqlstore is a storage.Repository on database/sql, backed by SQLite
// (modernc.org/sqlite) or PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Tiliavir/timereg/internal/model"
	"github.com/Tiliavir/timereg/internal/storage"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS time_entries (
	id          BIGINT PRIMARY KEY,
	date        TEXT NOT NULL,
	project     TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	hours       DOUBLE PRECISION NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
)`

const columns = "id, date, project, category, description, hours, created_at, updated_at"

type Store struct {
	driver string
	db     *sql.DB
	now    func() time.Time
}

var _ storage.Repository = (*Store)(nil)

// DefaultPath returns ~/.treg/treg.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".treg", "treg.db"), nil
}

// Open connects to the database and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer at a time.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{driver: driver, db: db, now: time.Now}, nil
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (model.TimeEntry, error) {
	var e model.TimeEntry
	var created, updated string
	if err := row.Scan(&e.ID, &e.Date, &e.Project, &e.Category, &e.Description, &e.Hours, &created, &updated); err != nil {
		return model.TimeEntry{}, err
	}
	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return model.TimeEntry{}, fmt.Errorf("entry %d: parsing created_at: %w", e.ID, err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return model.TimeEntry{}, fmt.Errorf("entry %d: parsing updated_at: %w", e.ID, err)
	}
	return e, nil
}

func (s *Store) List(ctx context.Context) ([]model.TimeEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+columns+" FROM time_entries ORDER BY substr(date, 1, 10), id")
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer rows.Close()

	out := []model.TimeEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id int64) (model.TimeEntry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+columns+" FROM time_entries WHERE id = ?"), id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TimeEntry{}, storage.ErrNotFound
	}
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("failed to get time entry %d: %w", id, err)
	}
	return e, nil
}

func (s *Store) Create(ctx context.Context, e model.TimeEntry) (model.TimeEntry, error) {
	if _, err := timecalc.ParseDate(e.Date, time.UTC); err != nil {
		return model.TimeEntry{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if e.ID == 0 {
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) + 1 FROM time_entries").Scan(&e.ID); err != nil {
			return model.TimeEntry{}, fmt.Errorf("failed to allocate id: %w", err)
		}
	} else {
		var n int
		if err := tx.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM time_entries WHERE id = ?"), e.ID).Scan(&n); err != nil {
			return model.TimeEntry{}, fmt.Errorf("failed to check id: %w", err)
		}
		if n > 0 {
			return model.TimeEntry{}, storage.ErrConflict
		}
	}

	now := s.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	_, err = tx.ExecContext(ctx,
		s.rebind("INSERT INTO time_entries ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		e.ID, e.Date, e.Project, e.Category, e.Description, e.Hours,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("failed to insert time entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.TimeEntry{}, fmt.Errorf("failed to commit: %w", err)
	}
	return e, nil
}

func (s *Store) Update(ctx context.Context, e model.TimeEntry) (model.TimeEntry, error) {
	if _, err := timecalc.ParseDate(e.Date, time.UTC); err != nil {
		return model.TimeEntry{}, err
	}
	old, err := s.Get(ctx, e.ID)
	if err != nil {
		return model.TimeEntry{}, err
	}
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = s.now().UTC()

	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE time_entries SET date = ?, project = ?, category = ?, description = ?, hours = ?, updated_at = ? WHERE id = ?"),
		e.Date, e.Project, e.Category, e.Description, e.Hours, e.UpdatedAt.Format(time.RFC3339Nano), e.ID)
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("failed to update time entry %d: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.TimeEntry{}, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM time_entries WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete time entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete time entry %d: %w", id, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
