package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mwantia/secstore/backend"
	serrors "github.com/mwantia/secstore/data/errors"
	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

var (
	bucketItems = []byte("items")
	bucketStats = []byte("stats")

	keyUsed = []byte("used")
)

// BoltBackend stores items in a single bbolt database file, which suits
// flash-backed partitions on embedded devices.
//
// Layout:
// - "items": normalized path -> raw content
// - "stats": bookkeeping such as the number of bytes in use
//
// The database is only opened by Open; until then every call reports the
// backend as unavailable.
type BoltBackend struct {
	mu sync.RWMutex
	db *bbolt.DB

	config *BoltBackendConfig
}

// BoltBackendConfig contains configuration options for the bolt backend.
type BoltBackendConfig struct {
	// Path of the database file
	Path string

	// Quota limits the stored bytes (default: 4 MiB)
	Quota int64

	// MaxObjectSize limits a single item (0 = unlimited)
	MaxObjectSize int64

	// Timeout for acquiring the file lock (default: 1s)
	Timeout time.Duration
}

func NewBoltBackend(config *BoltBackendConfig) (*BoltBackend, error) {
	if config == nil || config.Path == "" {
		return nil, serrors.InvalidPath(nil, "")
	}

	if config.Quota <= 0 {
		config.Quota = 4 << 20
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Second
	}

	return &BoltBackend{
		config: config,
	}, nil
}

// Name returns the identifier name defined for this backend.
func (*BoltBackend) Name() string {
	return "bolt"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (bb *BoltBackend) Open(ctx context.Context) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if bb.db != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(bb.config.Path), 0700); err != nil {
		return serrors.BackendFault(err, bb.Name())
	}

	db, err := bbolt.Open(bb.config.Path, 0600, &bbolt.Options{Timeout: bb.config.Timeout})
	if err != nil {
		return bb.mapError(err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketItems, bucketStats} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return bb.mapError(err)
	}

	bb.db = db
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (bb *BoltBackend) Close(ctx context.Context) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if bb.db == nil {
		return nil
	}

	err := bb.db.Close()
	bb.db = nil

	return err
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (bb *BoltBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityStorage,
		},
		MaxObjectSize: bb.config.MaxObjectSize,
	}
}

// database returns the open handle or reports the backend unavailable.
// Callers must hold bb.mu.
func (bb *BoltBackend) database() (*bbolt.DB, error) {
	if bb.db == nil {
		return nil, serrors.BackendUnavailable(berrors.ErrDatabaseNotOpen, bb.Name())
	}

	return bb.db, nil
}

func (bb *BoltBackend) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, berrors.ErrDatabaseNotOpen),
		errors.Is(err, berrors.ErrTimeout):
		return serrors.BackendUnavailable(err, bb.Name())
	case errors.Is(err, berrors.ErrDatabaseReadOnly):
		return serrors.BackendNoSpace(err, bb.Name(), 0, 0)
	default:
		return serrors.Classify(err)
	}
}

func readUsed(tx *bbolt.Tx) int64 {
	raw := tx.Bucket(bucketStats).Get(keyUsed)
	if len(raw) != 8 {
		return 0
	}

	return int64(binary.BigEndian.Uint64(raw))
}

func writeUsed(tx *bbolt.Tx, used int64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(max(used, 0)))

	return tx.Bucket(bucketStats).Put(keyUsed, raw)
}
