package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kalambet/logbook/internal/dbx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding log records and auxiliary lists.
type Store struct {
	db  *sql.DB
	loc *time.Location
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLocation sets the location used to derive DateKey. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the clock used for CreatedAt bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string, opts ...Option) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, unavailable("creating data directory", err)
		}
		dsn = filepath.Join(dataDir, "logbook.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable("opening database", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	// It also keeps an in-memory database alive for the lifetime of the Store.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, unavailable("pinging database", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, unavailable("setting busy timeout", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, unavailable("setting journal mode", err)
	}

	s := &Store{db: db, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	return s, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for packages that run their own queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Location returns the location DateKey is derived in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
// Each migration runs in its own transaction together with its schema_version row,
// so a failure leaves the database at the last fully applied version.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SchemaVersion returns the highest applied migration, or 0 for an unversioned database.
func (s *Store) SchemaVersion() (int, error) {
	var v sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// --- Records ---

const recordColumns = `id, occurred_at, date_key, category, gender_tag, explicitness_tag, moisture_tag, person_name, created_at`

// DateKey returns the calendar date of t in the store's location.
func (s *Store) DateKey(t time.Time) string {
	return t.In(s.loc).Format(DateKeyLayout)
}

// Add validates and inserts a record and returns its freshly assigned id.
// Ids come from AUTOINCREMENT and are never reused, even after deletion.
func (s *Store) Add(ctx context.Context, in RecordInput) (int64, error) {
	if !ValidInstant(in.OccurredAt) {
		return 0, ErrInvalidTimestamp
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO records (occurred_at, date_key, category, gender_tag, explicitness_tag, moisture_tag, person_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.OccurredAt.UnixMilli(), s.DateKey(in.OccurredAt),
		in.Category, in.GenderTag, in.ExplicitnessTag, in.MoistureTag,
		strings.TrimSpace(in.PersonName), s.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}
	return id, nil
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row, s.loc)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

// ListAll returns every record. Callers must not rely on the order.
// An empty store yields an empty, non-nil slice.
func (s *Store) ListAll(ctx context.Context) ([]Record, error) {
	return s.queryRecords(ctx, `SELECT `+recordColumns+` FROM records ORDER BY id ASC`)
}

// ListByDateRange returns records whose DateKey lies in [from, to]. An empty bound is open.
func (s *Store) ListByDateRange(ctx context.Context, from, to string) ([]Record, error) {
	if from == "" {
		from = "0000-00-00"
	}
	if to == "" {
		to = "9999-99-99"
	}
	return s.queryRecords(ctx, `SELECT `+recordColumns+` FROM records
		WHERE date_key >= ? AND date_key <= ?
		ORDER BY date_key ASC, id ASC`, from, to)
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteByID removes the record if present. Deleting a missing id is a no-op.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting record %d: %w", id, err)
	}
	return nil
}

// ClearAll irreversibly removes every record and auxiliary list and resets id
// assignment. The schema stays at its current version.
func (s *Store) ClearAll(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
			return fmt.Errorf("clearing records: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'records'`); err != nil {
			return fmt.Errorf("resetting record ids: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM lists`); err != nil {
			return fmt.Errorf("clearing lists: %w", err)
		}
		return nil
	})
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting records: %w", err)
	}
	defer rows.Close()

	results := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows, s.loc)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, loc *time.Location) (Record, error) {
	var r Record
	var occurredAt, createdAt int64
	if err := row.Scan(&r.ID, &occurredAt, &r.DateKey, &r.Category, &r.GenderTag,
		&r.ExplicitnessTag, &r.MoistureTag, &r.PersonName, &createdAt); err != nil {
		return Record{}, err
	}
	r.OccurredAt = time.UnixMilli(occurredAt).In(loc)
	if createdAt > 0 {
		r.CreatedAt = time.UnixMilli(createdAt).In(loc)
	}
	return r, nil
}
