package collector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/MeKo-Tech/bibwatch/internal/result"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

const createResultsTable = `
CREATE TABLE IF NOT EXISTS results (
  identity     TEXT PRIMARY KEY,
  category     INTEGER NOT NULL,
  state        TEXT NOT NULL,
  numbers      TEXT NOT NULL DEFAULT '',
  capture_time TEXT NOT NULL DEFAULT '',
  position     INTEGER NOT NULL
)`

// SQLStore keeps results in a single table. It works with sqlite and
// PostgreSQL through database/sql.
type SQLStore struct {
	db     *sql.DB
	pool   *pgxpool.Pool
	driver string
	logger *slog.Logger
}

// OpenSQLStore connects to dsn and creates the results table if needed.
func OpenSQLStore(ctx context.Context, driver, dsn string, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		db   *sql.DB
		pool *pgxpool.Pool
		err  error
	)
	switch driver {
	case DriverSQLite:
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		// A single connection keeps ":memory:" databases shared.
		db.SetMaxOpenConns(1)
	case DriverPostgres:
		pc, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "bibwatch"
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err = pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		db = stdlib.OpenDBFromPool(pool)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	s := &SQLStore{db: db, pool: pool, driver: driver, logger: logger}
	if _, err := db.ExecContext(ctx, createResultsTable); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create results table: %w", err)
	}
	logger.Info("result store ready", "driver", driver)
	return s, nil
}

// NewSQLStore wraps an open sqlite database. Used by tests.
func NewSQLStore(ctx context.Context, db *sql.DB, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLStore{db: db, driver: DriverSQLite, logger: logger}
	if _, err := db.ExecContext(ctx, createResultsTable); err != nil {
		return nil, fmt.Errorf("create results table: %w", err)
	}
	return s, nil
}

// Load returns all rows in registration order. Rows that cannot be decoded
// are skipped with a warning.
func (s *SQLStore) Load(ctx context.Context) ([]result.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, category, state, numbers, capture_time FROM results ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []result.Snapshot
	for rows.Next() {
		var (
			id, state, numbers, captured string
			category                     int
		)
		if err := rows.Scan(&id, &category, &state, &numbers, &captured); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		snap, err := decodeSQLRow(id, category, state, numbers, captured)
		if err != nil {
			s.logger.Warn("skipping result row", "identity", id, "error", err)
			continue
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func decodeSQLRow(id string, category int, state, numbers, captured string) (result.Snapshot, error) {
	snap := result.Snapshot{Identity: id}
	var err error
	if snap.Category, err = result.ParseCategory(strconv.Itoa(category)); err != nil {
		return snap, err
	}
	if snap.State, err = result.ParseState(state); err != nil {
		return snap, err
	}
	if snap.Numbers, err = result.ParseNumbers(numbers); err != nil {
		return snap, err
	}
	if captured != "" {
		t, err := time.Parse(time.RFC3339, captured)
		if err != nil {
			return snap, fmt.Errorf("capture time: %w", err)
		}
		snap.CaptureTime = t.UTC()
	}
	return snap, nil
}

// Save upserts every snapshot in one transaction.
func (s *SQLStore) Save(ctx context.Context, snapshots []result.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.upsertQuery())
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, snap := range snapshots {
		captured := ""
		if !snap.CaptureTime.IsZero() {
			captured = snap.CaptureTime.UTC().Format(time.RFC3339)
		}
		if _, err := stmt.ExecContext(ctx,
			snap.Identity,
			int(snap.Category),
			snap.State.String(),
			result.FormatNumbers(snap.Numbers),
			captured,
			i,
		); err != nil {
			return fmt.Errorf("save %s: %w", snap.Identity, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (s *SQLStore) upsertQuery() string {
	cols := []string{"identity", "category", "state", "numbers", "capture_time", "position"}
	ph := make([]string, len(cols))
	set := make([]string, 0, len(cols)-1)
	for i, c := range cols {
		if s.driver == DriverPostgres {
			ph[i] = "$" + strconv.Itoa(i+1)
		} else {
			ph[i] = "?"
		}
		if i > 0 {
			set = append(set, c+" = excluded."+c)
		}
	}
	return "INSERT INTO results (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(ph, ", ") +
		") ON CONFLICT(identity) DO UPDATE SET " + strings.Join(set, ", ")
}

// Close releases the database and, for postgres, the pool.
func (s *SQLStore) Close() error {
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}
