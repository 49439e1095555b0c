package config

import (
	"fmt"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/backend/bolt"
	"github.com/mwantia/secstore/backend/consul"
	"github.com/mwantia/secstore/backend/local"
	"github.com/mwantia/secstore/backend/memory"
	"github.com/mwantia/secstore/backend/postgres"
	"github.com/mwantia/secstore/backend/s3"
	"github.com/mwantia/secstore/backend/sqlite"
)

// NewStorageBackend creates the configured storage backend. It is not opened.
func NewStorageBackend(cfg *StorageConfig) (backend.StorageBackend, error) {
	switch cfg.Backend {
	case BackendMemory:
		opts := []memory.MemoryOption{memory.WithMaxObjectSize(cfg.Memory.MaxObjectSize)}
		if cfg.Memory.Quota > 0 {
			opts = append(opts, memory.WithQuota(cfg.Memory.Quota))
		}
		return memory.NewMemoryBackend(opts...), nil

	case BackendBolt:
		return bolt.NewBoltBackend(&bolt.BoltBackendConfig{
			Path:          cfg.Bolt.Path,
			Quota:         cfg.Bolt.Quota,
			MaxObjectSize: cfg.Bolt.MaxObjectSize,
			Timeout:       cfg.Bolt.Timeout,
		})

	case BackendSQLite:
		return sqlite.NewSQLiteBackend(&sqlite.SQLiteBackendConfig{
			Path:          cfg.SQLite.Path,
			Quota:         cfg.SQLite.Quota,
			MaxObjectSize: cfg.SQLite.MaxObjectSize,
		})

	case BackendPostgres:
		return postgres.NewPostgresBackend(&postgres.PostgresBackendConfig{
			ConnString:    cfg.Postgres.ConnString,
			Table:         cfg.Postgres.Table,
			Quota:         cfg.Postgres.Quota,
			MaxObjectSize: cfg.Postgres.MaxObjectSize,
		})

	case BackendConsul:
		return consul.NewConsulBackend(cfg.Consul.backendConfig())

	case BackendS3:
		return s3.NewS3Backend(&s3.S3BackendConfig{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Prefix:    cfg.S3.Prefix,
			Quota:     cfg.S3.Quota,
		})

	case BackendLocal:
		var opts []local.LocalOption
		if cfg.Local.Quota > 0 {
			opts = append(opts, local.WithQuota(cfg.Local.Quota))
		}
		if cfg.Local.MaxObjectSize > 0 {
			opts = append(opts, local.WithMaxObjectSize(cfg.Local.MaxObjectSize))
		}
		return local.NewLocalBackend(cfg.Local.Path, opts...), nil
	}

	return nil, fmt.Errorf("unknown storage backend '%s'", cfg.Backend)
}

// NewMetadataBackend creates the backend for tracker records. It returns nil
// when records are not persisted.
func NewMetadataBackend(cfg *MetadataConfig, storage backend.StorageBackend) (backend.MetadataBackend, error) {
	switch cfg.Mode {
	case "", MetadataNone:
		return nil, nil

	case MetadataStorage:
		metadata, ok := storage.(backend.MetadataBackend)
		if !ok || !storage.GetCapabilities().Contains(backend.CapabilityMetadata) {
			return nil, fmt.Errorf("storage backend '%s' does not support metadata", storage.Name())
		}
		return metadata, nil

	case MetadataSQLite:
		return sqlite.NewSQLiteBackend(&sqlite.SQLiteBackendConfig{Path: cfg.SQLite})
	}

	return nil, fmt.Errorf("unknown metadata mode '%s'", cfg.Mode)
}

// NewConsulClient creates a client from the consul storage section.
func NewConsulClient(cfg *StorageConfig) (*api.Client, error) {
	return consul.NewClient(cfg.Consul.backendConfig())
}

func (c *ConsulConfig) backendConfig() *consul.ConsulBackendConfig {
	return &consul.ConsulBackendConfig{
		Address:    c.Address,
		Token:      c.Token,
		Datacenter: c.Datacenter,
		Namespace:  c.Namespace,
		Prefix:     c.Prefix,
		Quota:      c.Quota,
	}
}
