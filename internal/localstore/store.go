package localstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/teamsync/internal/backend"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added idx_documents_collection_seq
const currentSchemaVersion = 1

// IDGenerator produces document IDs for Add.
type IDGenerator interface {
	Generate() string
}

// Store is a local document database.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	db    *sql.DB
	ids   IDGenerator
	now   func() time.Time
	clock clock

	// writeMu serializes read-modify-write sequences (Update) with the
	// seq assignment of plain writes.
	writeMu sync.Mutex

	hub *hub

	// pollInterval is how often commits by other connections are checked
	// for. dataVersion is guarded by writeMu.
	pollInterval time.Duration
	dataVersion  int64
	watchDone    chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// DefaultPollInterval is how often a file-backed store checks for writes
// committed by other processes.
const DefaultPollInterval = 250 * time.Millisecond

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the generator used by CollectionRef.Add.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithPollInterval sets how often the store checks for writes committed
// by other connections. Zero disables the check.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		s.pollInterval = d
	}
}

// WithNow sets the wall clock recorded in update_time.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// Use ":memory:" for a throwaway store; the single connection keeps the
// in-memory database alive until Close. File-backed stores also watch for
// writes committed by other processes (see WithPollInterval).
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db, path); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	var maxSeq sql.NullInt64
	if err := db.QueryRow("SELECT MAX(seq) FROM documents").Scan(&maxSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to restore clock: %w", err)
	}

	s := &Store{
		db:           db,
		ids:          UUIDv7Generator{},
		now:          time.Now,
		pollInterval: DefaultPollInterval,
		watchDone:    make(chan struct{}),
		closed:       make(chan struct{}),
	}
	s.clock.seq.Store(maxSeq.Int64)
	for _, opt := range opts {
		opt(s)
	}
	if err := db.QueryRow("PRAGMA data_version").Scan(&s.dataVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read data_version: %w", err)
	}
	s.hub = newHub(s)

	if path == ":memory:" || s.pollInterval <= 0 {
		close(s.watchDone)
	} else {
		go s.watch(s.pollInterval)
	}

	slog.Debug("opened local store", "path", path, "seq", maxSeq.Int64)
	return s, nil
}

// Close stops listener delivery and closes the database connection.
// Operations after Close fail with backend.ErrClosed.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		<-s.watchDone
		s.hub.close()
		err = s.db.Close()
	})
	return err
}

// Collection returns a reference to the collection at path.
func (s *Store) Collection(path string) backend.CollectionRef {
	return newCollection(s, path)
}

// Flush blocks until every snapshot queued before the call has been
// delivered. It returns the number of deliveries it waited for.
func (s *Store) Flush(ctx context.Context) (int, error) {
	return s.hub.flush(ctx)
}

// Seq returns the logical clock value of the last write.
func (s *Store) Seq() int64 {
	return s.clock.current()
}

func (s *Store) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Store) checkOpen() error {
	if s.isClosed() {
		return backend.ErrClosed
	}
	return nil
}

// mapErr translates driver errors after Close into backend.ErrClosed.
func (s *Store) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if s.isClosed() || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", backend.ErrClosed, err)
	}
	return err
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, path string) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if path == ":memory:" {
		// WAL is not available for in-memory databases.
		pragmas = pragmas[1:]
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the per-collection seq index for databases created
// before the index was part of schema.sql.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_documents_collection_seq
		ON documents(collection, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
