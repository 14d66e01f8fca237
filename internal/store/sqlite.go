package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	fwerrors "github.com/rileyhilliard/fleetwatch/internal/errors"
)

// Options tunes the SQLite connection pool.
type Options struct {
	MaxConns    int
	BusyTimeout time.Duration
}

// DefaultOptions matches the settings defaults.
func DefaultOptions() Options {
	return Options{MaxConns: 5, BusyTimeout: 5 * time.Second}
}

// SQLiteStore is the production Store. WAL mode lets dashboard reads run
// alongside the server's writes.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path and brings its schema
// up to date.
func OpenSQLite(ctx context.Context, path string, opts Options) (*SQLiteStore, error) {
	if opts.MaxConns <= 0 {
		opts.MaxConns = DefaultOptions().MaxConns
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fwerrors.WrapWithCode(err, fwerrors.ErrStore,
				"Cannot create database directory "+dir,
				"Check directory permissions")
		}
	}

	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(opts.BusyTimeout.Milliseconds()))
	q.Set("_journal_mode", "WAL")
	q.Set("_foreign_keys", "on")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fwerrors.WrapWithCode(err, fwerrors.ErrStore,
			"Cannot open database "+path,
			"Check the file is a SQLite database and is readable")
	}
	db.SetMaxOpenConns(opts.MaxConns)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fwerrors.WrapWithCode(err, fwerrors.ErrStore,
			"Cannot read database schema version",
			"Check the file is a SQLite database")
	}
	if version > schemaVersion {
		return fwerrors.New(fwerrors.ErrStore,
			fmt.Sprintf("Database schema is version %d, this build knows up to %d", version, schemaVersion),
			"Upgrade fleetwatch")
	}

	for v := version; v < schemaVersion; v++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot start migration", "")
		}
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			tx.Rollback()
			return fwerrors.WrapWithCode(err, fwerrors.ErrStore,
				fmt.Sprintf("Schema migration %d failed", v+1), "")
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot record schema version", "")
		}
		if err := tx.Commit(); err != nil {
			return fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot commit migration", "")
		}
	}
	return nil
}

func (s *SQLiteStore) InsertSample(ctx context.Context, smp Sample) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO samples ("+sampleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		smp.DeviceID, smp.DeviceName, smp.RAMUsed, smp.RAMTotal, smp.CPUUsage,
		smp.Processes, smp.NetworkIn, smp.NetworkOut, smp.Time)
	if err != nil {
		return fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot insert sample", "")
	}
	return nil
}

func (s *SQLiteStore) DistinctDeviceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT device_id FROM samples ORDER BY device_id")
	if err != nil {
		return nil, fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot list devices", "")
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot read device id", "")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeviceName returns the name on the device's most recent row.
func (s *SQLiteStore) DeviceName(ctx context.Context, id string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT device_name FROM samples WHERE device_id = ? ORDER BY time DESC, id DESC LIMIT 1", id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot look up device name", "")
	}
	return name, nil
}

func (s *SQLiteStore) SamplesSince(ctx context.Context, id string, minTime int64) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sampleColumns+" FROM samples WHERE device_id = ? AND time >= ? ORDER BY time ASC, id ASC",
		id, minTime)
	if err != nil {
		return nil, fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot query samples", "")
	}
	defer rows.Close()

	out := []Sample{}
	for rows.Next() {
		smp, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LatestSample(ctx context.Context, id string) (Sample, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sampleColumns+" FROM samples WHERE device_id = ? ORDER BY time DESC, id DESC LIMIT 1", id)
	smp, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Sample{}, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return smp, err
}

func (s *SQLiteStore) DeviceExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM samples WHERE device_id = ? LIMIT 1", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot check device", "")
	}
	return true, nil
}

func (s *SQLiteStore) DeleteAllFor(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM samples WHERE device_id = ?", id)
	if err != nil {
		return 0, fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot delete samples", "")
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) RenameDevice(ctx context.Context, id, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE samples SET device_name = ? WHERE device_id = ?", name, id)
	if err != nil {
		return 0, fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot rename device", "")
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSample(r scanner) (Sample, error) {
	var smp Sample
	err := r.Scan(&smp.DeviceID, &smp.DeviceName, &smp.RAMUsed, &smp.RAMTotal, &smp.CPUUsage,
		&smp.Processes, &smp.NetworkIn, &smp.NetworkOut, &smp.Time)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Sample{}, fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot read sample", "")
	}
	return smp, err
}
