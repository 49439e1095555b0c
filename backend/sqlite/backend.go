package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/mwantia/secstore/backend"
	serrors "github.com/mwantia/secstore/data/errors"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteBackend stores items and their meta records in a SQLite database:
//
// Table 1: secstore_items for item content keyed by normalized path
// Table 2: secstore_meta for persisted tracker records
//
// Both tables live in the same file, so a restored database file brings its
// own (possibly stale) meta records along.
type SQLiteBackend struct {
	mu sync.RWMutex
	db *sql.DB

	config *SQLiteBackendConfig
}

// SQLiteBackendConfig contains configuration options for the SQLite backend.
type SQLiteBackendConfig struct {
	// Path of the database file, ":memory:" keeps everything in memory
	Path string

	// Quota limits the stored bytes (default: 4 MiB)
	Quota int64

	// MaxObjectSize limits a single item (0 = unlimited)
	MaxObjectSize int64
}

// NewSQLiteBackend creates a new SQLite-backed storage backend.
func NewSQLiteBackend(config *SQLiteBackendConfig) (*SQLiteBackend, error) {
	if config == nil || config.Path == "" {
		return nil, serrors.InvalidPath(nil, "")
	}
	if config.Quota <= 0 {
		config.Quota = 4 << 20
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, err
	}

	// A single connection keeps ":memory:" databases consistent
	db.SetMaxOpenConns(1)

	sb := &SQLiteBackend{
		db:     db,
		config: config,
	}

	if err := sb.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return sb, nil
}

// initSchema creates the database schema.
func (sb *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS secstore_items (
		key TEXT PRIMARY KEY,
		content BLOB NOT NULL,
		size INTEGER NOT NULL CHECK(size >= 0),
		modify_time INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS secstore_meta (
		path TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		size INTEGER NOT NULL,
		checksum TEXT NOT NULL,
		modify_time INTEGER NOT NULL
	);
	`

	_, err := sb.db.Exec(schema)
	return err
}

// Name returns the identifier name defined for this backend.
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// Verify database connection
	if err := sb.db.PingContext(ctx); err != nil {
		return serrors.BackendUnavailable(err, sb.Name())
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return sb.db.Close()
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SQLiteBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityStorage,
			backend.CapabilityMetadata,
		},
		MaxObjectSize: sb.config.MaxObjectSize,
	}
}

func (sb *SQLiteBackend) mapError(err error) error {
	if err == nil {
		return nil
	}

	// database/sql reports a closed handle with a plain error
	if strings.Contains(err.Error(), "database is closed") {
		return serrors.BackendUnavailable(err, sb.Name())
	}

	return serrors.Classify(err)
}
