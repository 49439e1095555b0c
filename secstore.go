// Package secstore is a hierarchical, path addressed store for small blobs
// such as credentials, certificates and configuration secrets. It sits above
// a non-volatile storage backend and keeps a metadata tracker in sync with
// the stored items.
package secstore

import (
	"context"
	"sync"

	"github.com/mwantia/secstore/backend"
	serrors "github.com/mwantia/secstore/data/errors"
	"github.com/mwantia/secstore/log"
	"github.com/mwantia/secstore/meta"
	"github.com/mwantia/secstore/metrics"
	"github.com/mwantia/secstore/restore"
	"golang.org/x/sync/singleflight"
)

// Engine implements the storage operations on top of a StorageBackend.
// All structural changes are serialized through a single engine-wide lock.
type Engine struct {
	mu sync.RWMutex

	storage  backend.StorageBackend
	metadata backend.MetadataBackend
	tracker  *meta.Tracker
	channel  *restore.Channel
	metrics  *metrics.Metrics
	logger   *log.Logger

	stateMu sync.Mutex
	state   State
	init    singleflight.Group
}

// New creates an engine for storage. The engine starts uninitialized; the
// first operation builds the metadata tracker from the stored items.
func New(storage backend.StorageBackend, opts ...Option) (*Engine, error) {
	if storage == nil {
		return nil, serrors.BackendFault(nil, "<nil>")
	}

	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = log.NewLogger("secstore", options.LogLevel, options.LogFile, options.NoTerminalLog)
	}

	channel := options.Channel
	if channel == nil {
		channel = restore.NewChannel(logger.Named("restore"))
	}

	trackerOpts := []meta.TrackerOption{meta.WithLogger(logger.Named("meta"))}
	if options.Metadata != nil {
		trackerOpts = append(trackerOpts, meta.WithStore(options.Metadata))
	}

	return &Engine{
		storage:  storage,
		metadata: options.Metadata,
		tracker:  meta.NewTracker(trackerOpts...),
		channel:  channel,
		metrics:  options.Metrics,
		logger:   logger,
		state:    StateUninitialized,
	}, nil
}

// Open opens the configured backends and loads persisted metadata records.
func (e *Engine) Open(ctx context.Context) error {
	if err := e.storage.Open(ctx); err != nil {
		return serrors.Classify(err)
	}
	e.logger.Info("Opened storage backend '%s'", e.storage.Name())

	if e.metadata == nil {
		return nil
	}

	if !e.sharedMetadata() {
		if err := e.metadata.Open(ctx); err != nil {
			return serrors.Classify(err)
		}
	}

	if err := e.tracker.Load(ctx); err != nil {
		e.logger.Warn("Unable to load persisted metadata: %v", err)
	}
	return nil
}

// Close closes all backends opened by Open.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs serrors.Errors
	if e.metadata != nil && !e.sharedMetadata() {
		errs.Add(e.metadata.Close(ctx))
	}
	errs.Add(e.storage.Close(ctx))

	return errs.Errors()
}

// Tracker exposes the metadata tracker for diagnostics.
func (e *Engine) Tracker() *meta.Tracker {
	return e.tracker
}

// sharedMetadata reports whether storage also serves as metadata backend.
func (e *Engine) sharedMetadata() bool {
	return backend.Backend(e.metadata) == backend.Backend(e.storage)
}

func (e *Engine) updateTracked() {
	if e.metrics == nil {
		return
	}

	size, _ := e.tracker.Size("/")
	e.metrics.SetTracked(e.tracker.Len(), size)
}
