package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/log"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	return path
}

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("SECSTORE_TEST_DIR", "/var/lib/secstore")

	path := writeConfig(t, `
log:
  level: debug
storage:
  backend: local
  local:
    path: ${SECSTORE_TEST_DIR}/items
    quota: 2048
metadata:
  mode: sqlite
  sqlite: ${SECSTORE_TEST_DIR}/meta.db
restore:
  marker: /run/secstore/restored
  debounce: 500ms
`)

	cfg := NewDefaultConfig()
	if err := Load(path, cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != log.Debug {
		t.Errorf("level = %v, want debug", cfg.Log.Level)
	}
	if cfg.Storage.Local.Path != "/var/lib/secstore/items" || cfg.Storage.Local.Quota != 2048 {
		t.Errorf("unexpected local config: %+v", cfg.Storage.Local)
	}
	if cfg.Metadata.SQLite != "/var/lib/secstore/meta.db" {
		t.Errorf("unexpected metadata path: %s", cfg.Metadata.SQLite)
	}
	if cfg.Restore.Debounce.Milliseconds() != 500 {
		t.Errorf("unexpected debounce: %s", cfg.Restore.Debounce)
	}
	// Defaults survive for omitted sections
	if cfg.HTTP.Address == "" {
		t.Errorf("expected default http address")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown backend":  "storage:\n  backend: tape\n",
		"missing s3":       "storage:\n  backend: s3\n",
		"missing local":    "storage:\n  backend: local\n",
		"metadata sqlite":  "metadata:\n  mode: sqlite\n",
		"metadata mode":    "metadata:\n  mode: tape\n",
		"bad log level":    "log:\n  level: loud\n",
		"missing postgres": "storage:\n  backend: postgres\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			if err := Load(writeConfig(t, content), cfg); err == nil {
				t.Errorf("expected error for %q", content)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "missing.yaml"), NewDefaultConfig())
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewStorageBackend(t *testing.T) {
	tests := map[string]func(cfg *StorageConfig){
		BackendMemory: func(cfg *StorageConfig) {},
		BackendBolt: func(cfg *StorageConfig) {
			cfg.Bolt.Path = filepath.Join(t.TempDir(), "secstore.db")
		},
		BackendSQLite: func(cfg *StorageConfig) {
			cfg.SQLite.Path = ":memory:"
		},
		BackendLocal: func(cfg *StorageConfig) {
			cfg.Local.Path = t.TempDir()
		},
		BackendConsul: func(cfg *StorageConfig) {},
	}

	for name, setup := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := &StorageConfig{Backend: name}
			setup(cfg)

			storage, err := NewStorageBackend(cfg)
			if err != nil {
				t.Fatalf("NewStorageBackend failed: %v", err)
			}
			if storage.Name() != name {
				t.Errorf("name = %s, want %s", storage.Name(), name)
			}
			if !storage.GetCapabilities().Contains(backend.CapabilityStorage) {
				t.Errorf("expected storage capability")
			}
		})
	}

	if _, err := NewStorageBackend(&StorageConfig{Backend: "tape"}); err == nil {
		t.Errorf("expected error for unknown backend")
	}
}

func TestNewMetadataBackend(t *testing.T) {
	storage, _ := NewStorageBackend(&StorageConfig{Backend: BackendMemory})

	metadata, err := NewMetadataBackend(&MetadataConfig{Mode: MetadataStorage}, storage)
	if err != nil || metadata == nil {
		t.Fatalf("expected memory backend to serve metadata, got %v", err)
	}

	local, _ := NewStorageBackend(&StorageConfig{Backend: BackendLocal, Local: LocalConfig{Path: t.TempDir()}})
	if _, err := NewMetadataBackend(&MetadataConfig{Mode: MetadataStorage}, local); err == nil {
		t.Errorf("expected error for backend without metadata support")
	}

	if metadata, err := NewMetadataBackend(&MetadataConfig{Mode: MetadataNone}, storage); err != nil || metadata != nil {
		t.Errorf("expected no metadata backend, got %v, %v", metadata, err)
	}
}
