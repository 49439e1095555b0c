// Package config loads the secstore YAML configuration and builds the
// configured backends from it.
package config

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mwantia/secstore/log"
	"gopkg.in/yaml.v3"
)

// Storage backend names.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendConsul   = "consul"
	BackendS3       = "s3"
	BackendLocal    = "local"
)

// Metadata modes. "storage" reuses the storage backend when it supports
// metadata.
const (
	MetadataNone    = "none"
	MetadataStorage = "storage"
	MetadataSQLite  = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Metadata MetadataConfig `yaml:"metadata"`
	Restore  RestoreConfig  `yaml:"restore"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Metadata.Validate(); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if err := c.Restore.Validate(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return c.HTTP.Validate()
}

type LogConfig struct {
	Level  log.LogLevel `yaml:"level"`
	File   string       `yaml:"file"`
	JSON   bool         `yaml:"json"`
	NoTerm bool         `yaml:"no_terminal"`
}

// NewLogger creates a logger with file rotation when a file is configured.
func (c *LogConfig) NewLogger(name string) *log.Logger {
	return log.New(name, log.LoggerConfig{
		Level:      c.Level,
		File:       c.File,
		NoTerminal: c.NoTerm,
		JSON:       c.JSON,
	})
}

// StorageConfig selects one storage backend. Only the section matching
// Backend is used.
type StorageConfig struct {
	Backend string `yaml:"backend"`

	Memory   MemoryConfig   `yaml:"memory"`
	Bolt     BoltConfig     `yaml:"bolt"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	Consul   ConsulConfig   `yaml:"consul"`
	S3       S3Config       `yaml:"s3"`
	Local    LocalConfig    `yaml:"local"`
}

func (c *StorageConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(
			BackendMemory, BackendBolt, BackendSQLite, BackendPostgres, BackendConsul, BackendS3, BackendLocal)),
	); err != nil {
		return err
	}

	switch c.Backend {
	case BackendBolt:
		return validation.ValidateStruct(&c.Bolt, validation.Field(&c.Bolt.Path, validation.Required))
	case BackendSQLite:
		return validation.ValidateStruct(&c.SQLite, validation.Field(&c.SQLite.Path, validation.Required))
	case BackendPostgres:
		return validation.ValidateStruct(&c.Postgres, validation.Field(&c.Postgres.ConnString, validation.Required))
	case BackendS3:
		return validation.ValidateStruct(&c.S3,
			validation.Field(&c.S3.Endpoint, validation.Required),
			validation.Field(&c.S3.Bucket, validation.Required),
		)
	case BackendLocal:
		return validation.ValidateStruct(&c.Local, validation.Field(&c.Local.Path, validation.Required))
	}

	return nil
}

// Limits are shared by all quota based backends. Zero keeps the backend default.
type Limits struct {
	Quota         int64 `yaml:"quota"`
	MaxObjectSize int64 `yaml:"max_object_size"`
}

type MemoryConfig struct {
	Limits `yaml:",inline"`
}

type BoltConfig struct {
	Limits  `yaml:",inline"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

type SQLiteConfig struct {
	Limits `yaml:",inline"`
	Path   string `yaml:"path"`
}

type PostgresConfig struct {
	Limits     `yaml:",inline"`
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type ConsulConfig struct {
	Limits     `yaml:",inline"`
	Address    string `yaml:"address"`
	Token      string `yaml:"token"`
	Datacenter string `yaml:"datacenter"`
	Namespace  string `yaml:"namespace"`
	Prefix     string `yaml:"prefix"`
}

type S3Config struct {
	Limits    `yaml:",inline"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

type LocalConfig struct {
	Limits `yaml:",inline"`
	Path   string `yaml:"path"`
}

// MetadataConfig controls where tracker records are persisted.
type MetadataConfig struct {
	Mode   string `yaml:"mode"`
	SQLite string `yaml:"sqlite"`
}

func (c *MetadataConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = MetadataNone
	}

	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(MetadataNone, MetadataStorage, MetadataSQLite)),
		validation.Field(&c.SQLite, validation.When(c.Mode == MetadataSQLite, validation.Required)),
	)
}

// RestoreConfig configures the restore signal sources used by serve.
type RestoreConfig struct {
	// Marker is a file written by the restore tool once a restore completed.
	Marker       string        `yaml:"marker"`
	RemoveMarker bool          `yaml:"remove_marker"`
	Debounce     time.Duration `yaml:"debounce"`

	// ConsulKey is watched for ModifyIndex changes. It uses the consul
	// section of the storage configuration for the connection.
	ConsulKey string `yaml:"consul_key"`
}

func (c *RestoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Address, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: log.Info,
		},
		Storage: StorageConfig{
			Backend: BackendBolt,
			Bolt: BoltConfig{
				Path:    "./secstore.db",
				Timeout: time.Second,
			},
		},
		Metadata: MetadataConfig{
			Mode: MetadataNone,
		},
		HTTP: HTTPConfig{
			Address: "127.0.0.1:8420",
		},
	}
}

// Load reads a YAML file with environment variable expansion into cfg and
// validates the result.
func Load(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}
