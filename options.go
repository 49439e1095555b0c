package secstore

import (
	"fmt"

	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/log"
	"github.com/mwantia/secstore/metrics"
	"github.com/mwantia/secstore/restore"
)

type Options struct {
	LogLevel      log.LogLevel
	LogFile       string
	NoTerminalLog bool

	Logger   *log.Logger
	Metadata backend.MetadataBackend
	Metrics  *metrics.Metrics
	Channel  *restore.Channel
}

type Option func(*Options) error

func newDefaultOptions() *Options {
	return &Options{
		LogLevel: log.Info,
	}
}

func WithLogLevel(logLevel log.LogLevel) Option {
	return func(opts *Options) error {
		opts.LogLevel = logLevel
		return nil
	}
}

func WithoutTerminalLog() Option {
	return func(opts *Options) error {
		opts.NoTerminalLog = true
		return nil
	}
}

func WithLogFile(logFile string) Option {
	return func(opts *Options) error {
		opts.LogFile = logFile
		return nil
	}
}

// WithLogger replaces the logger created from the log options.
func WithLogger(logger *log.Logger) Option {
	return func(opts *Options) error {
		opts.Logger = logger
		return nil
	}
}

// WithMetadataBackend persists tracker records through metadata. The backend
// may be the storage backend itself.
func WithMetadataBackend(metadata backend.MetadataBackend) Option {
	return func(opts *Options) error {
		if metadata != nil && !metadata.GetCapabilities().Contains(backend.CapabilityMetadata) {
			return fmt.Errorf("backend '%s' does not support metadata", metadata.Name())
		}

		opts.Metadata = metadata
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(opts *Options) error {
		opts.Metrics = m
		return nil
	}
}

// WithRestoreChannel shares a restore channel between multiple engines.
func WithRestoreChannel(channel *restore.Channel) Option {
	return func(opts *Options) error {
		opts.Channel = channel
		return nil
	}
}
