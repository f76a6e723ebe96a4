// Package changelog implements the change-log store (C3): a version-ordered
// record of every change event the server has accepted, backed by SQLite.
package changelog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/tonimelisma/hcs-server/internal/config"
	"github.com/tonimelisma/hcs-server/internal/protocol"
)

// ErrStorage marks any failure from the underlying database driver, so
// callers can distinguish a storage failure from a protocol violation or
// transport error (spec §7 class 3: storage errors are session-fatal).
var ErrStorage = errors.New("changelog: storage error")

// Record is a persisted (version, ChangeEvent) pair.
type Record struct {
	Version uint64
	Event   protocol.ChangeEvent
}

// Store is the change-log store's contract (spec §4.3). Implementations
// must serialize Insert so that version assignment is total across
// concurrent sessions.
type Store interface {
	// CurrentVersion returns the highest version inserted so far, or 0 if
	// the log is empty.
	CurrentVersion(ctx context.Context) (uint64, error)

	// Insert appends event, atomically assigning it a version strictly
	// greater than all prior versions, and returns that version.
	Insert(ctx context.Context, event protocol.ChangeEvent) (uint64, error)

	// ChangesIn returns every record with clientVersion < version <=
	// serverVersion, in ascending version order.
	ChangesIn(ctx context.Context, clientVersion, serverVersion uint64) ([]Record, error)

	Close() error
}

// SQLiteStore is the production Store, backed by a database/sql pool using
// the pure-Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB

	// mu serializes Insert so version assignment is total even though
	// SQLite's own autoincrement already guarantees atomicity per
	// statement — the mutex is what makes "the store serializes inserts"
	// (spec §4.3, §5) an explicit property of this type rather than an
	// incidental one of the chosen driver.
	mu sync.Mutex
}

// Open connects to the SQLite database described by cfg and runs pending
// migrations.
func Open(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("changelog: opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("changelog: connecting to database: %w", err)
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()

		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// OpenInMemory opens an ephemeral in-memory store, for tests.
func OpenInMemory(ctx context.Context, logger *slog.Logger) (*SQLiteStore, error) {
	return Open(ctx, config.DBConfig{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1}, logger)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CurrentVersion(ctx context.Context) (uint64, error) {
	var version sql.NullInt64

	err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM change_log`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("%w: querying current version: %w", ErrStorage, err)
	}

	if !version.Valid {
		return 0, nil
	}

	return uint64(version.Int64), nil
}

func (s *SQLiteStore) Insert(ctx context.Context, event protocol.ChangeEvent) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO change_log (category, kind, path, to_path, size) VALUES (?, ?, ?, ?, ?)`,
		int(event.Category), int(event.Kind), event.Path, event.ToPath, event.Size,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: inserting change event: %w", ErrStorage, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: reading assigned version: %w", ErrStorage, err)
	}

	return uint64(id), nil
}

func (s *SQLiteStore) ChangesIn(ctx context.Context, clientVersion, serverVersion uint64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, category, kind, path, to_path, size
		 FROM change_log
		 WHERE version > ? AND version <= ?
		 ORDER BY version ASC`,
		clientVersion, serverVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying changes: %w", ErrStorage, err)
	}
	defer rows.Close()

	var records []Record

	for rows.Next() {
		var (
			version        uint64
			category, kind int
			path, toPath   string
			size           uint64
		)

		if err := rows.Scan(&version, &category, &kind, &path, &toPath, &size); err != nil {
			return nil, fmt.Errorf("%w: scanning change row: %w", ErrStorage, err)
		}

		records = append(records, Record{
			Version: version,
			Event: protocol.ChangeEvent{
				Category: protocol.Category(category),
				Kind:     protocol.EventKind(kind),
				Path:     path,
				ToPath:   toPath,
				Size:     size,
			},
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating changes: %w", ErrStorage, err)
	}

	return records, nil
}
