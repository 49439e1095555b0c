package backend_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/backend/bolt"
	"github.com/mwantia/secstore/backend/consul"
	"github.com/mwantia/secstore/backend/local"
	"github.com/mwantia/secstore/backend/memory"
	"github.com/mwantia/secstore/backend/postgres"
	"github.com/mwantia/secstore/backend/s3"
	"github.com/mwantia/secstore/backend/sqlite"
	serrors "github.com/mwantia/secstore/data/errors"
)

// TestBackendFactory creates a new backend instance for testing.
type TestBackendFactory func(t *testing.T, quota int64) (backend.StorageBackend, error)

// GetTestBackendFactories returns all backend implementations to test.
// Network backends are only included when their environment is configured.
func GetTestBackendFactories() map[string]TestBackendFactory {
	factories := map[string]TestBackendFactory{
		"memory": func(t *testing.T, quota int64) (backend.StorageBackend, error) {
			return memory.NewMemoryBackend(memory.WithQuota(quota)), nil
		},
		"bolt": func(t *testing.T, quota int64) (backend.StorageBackend, error) {
			return bolt.NewBoltBackend(&bolt.BoltBackendConfig{
				Path:  filepath.Join(t.TempDir(), "secstore.db"),
				Quota: quota,
			})
		},
		"sqlite": func(t *testing.T, quota int64) (backend.StorageBackend, error) {
			return sqlite.NewSQLiteBackend(&sqlite.SQLiteBackendConfig{
				Path:  ":memory:",
				Quota: quota,
			})
		},
		"local": func(t *testing.T, quota int64) (backend.StorageBackend, error) {
			return local.NewLocalBackend(t.TempDir(), local.WithQuota(quota)), nil
		},
	}

	if dsn := os.Getenv("SECSTORE_TEST_POSTGRES_DSN"); dsn != "" {
		factories["postgres"] = func(t *testing.T, quota int64) (backend.StorageBackend, error) {
			return postgres.NewPostgresBackend(&postgres.PostgresBackendConfig{
				ConnString: dsn,
				Table:      "secstore_test_" + uuid.NewString()[:8],
				Quota:      quota,
			})
		}
	}

	if addr := os.Getenv("SECSTORE_TEST_CONSUL_ADDR"); addr != "" {
		factories["consul"] = func(t *testing.T, quota int64) (backend.StorageBackend, error) {
			return consul.NewConsulBackend(&consul.ConsulBackendConfig{
				Address: addr,
				Prefix:  "secstore-test/" + uuid.NewString(),
				Quota:   quota,
			})
		}
	}

	if endpoint := os.Getenv("SECSTORE_TEST_S3_ENDPOINT"); endpoint != "" {
		factories["s3"] = func(t *testing.T, quota int64) (backend.StorageBackend, error) {
			return s3.NewS3Backend(&s3.S3BackendConfig{
				Endpoint:  endpoint,
				Bucket:    os.Getenv("SECSTORE_TEST_S3_BUCKET"),
				AccessKey: os.Getenv("SECSTORE_TEST_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("SECSTORE_TEST_S3_SECRET_KEY"),
				Prefix:    "secstore-test/" + uuid.NewString(),
				Quota:     quota,
			})
		}
	}

	return factories
}

func openBackend(t *testing.T, factory TestBackendFactory, quota int64) backend.StorageBackend {
	t.Helper()

	b, err := factory(t, quota)
	if err != nil {
		t.Fatalf("Backend init failed: %v", err)
	}

	if err := b.Open(t.Context()); err != nil {
		t.Fatalf("Backend open failed: %v", err)
	}
	t.Cleanup(func() {
		b.DeleteItem(t.Context(), "/")
		b.Close(t.Context())
	})

	return b
}

// TestAllBackends_ItemOperations verifies put, get, stat and overwrite
// across all backend implementations.
func TestAllBackends_ItemOperations(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			b := openBackend(tst, factory, 1<<20)

			if _, err := b.GetItem(ctx, "/certs/dev.pem"); !errors.Is(err, serrors.ErrNotFound) {
				tst.Fatalf("Expected ErrNotFound before write, got %v", err)
			}

			buffer := []byte("-----BEGIN CERTIFICATE-----")
			if err := b.PutItem(ctx, "/certs/dev.pem", buffer); err != nil {
				tst.Fatalf("PutItem failed: %v", err)
			}

			got, err := b.GetItem(ctx, "/certs/dev.pem")
			if err != nil {
				tst.Fatalf("GetItem failed: %v", err)
			}
			if !bytes.Equal(got, buffer) {
				tst.Errorf("Expected %q, got %q", buffer, got)
			}

			stat, err := b.StatItem(ctx, "/certs/dev.pem")
			if err != nil {
				tst.Fatalf("StatItem failed: %v", err)
			}
			if stat.Size != int64(len(buffer)) {
				tst.Errorf("Expected size %d, got %d", len(buffer), stat.Size)
			}

			// Overwrite in place
			if err := b.PutItem(ctx, "/certs/dev.pem", []byte("short")); err != nil {
				tst.Fatalf("Overwrite failed: %v", err)
			}
			got, _ = b.GetItem(ctx, "/certs/dev.pem")
			if string(got) != "short" {
				tst.Errorf("Expected overwritten content, got %q", got)
			}

			// Containers are not items
			if _, err := b.StatItem(ctx, "/certs"); !errors.Is(err, serrors.ErrNotFound) {
				tst.Errorf("Expected ErrNotFound for container stat, got %v", err)
			}
		})
	}
}

// TestAllBackends_Hierarchy verifies listing and recursive deletes
// across all backend implementations.
func TestAllBackends_Hierarchy(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			b := openBackend(tst, factory, 1<<20)

			for _, key := range []string{"/certs/dev.pem", "/certs/ca.pem", "/certs/sub/a", "/config"} {
				if err := b.PutItem(ctx, key, []byte(key)); err != nil {
					tst.Fatalf("PutItem(%s) failed: %v", key, err)
				}
			}

			names, err := b.ListChildren(ctx, "/")
			if err != nil {
				tst.Fatalf("ListChildren(/) failed: %v", err)
			}
			if !slices.Equal(names, []string{"certs", "config"}) {
				tst.Errorf("Unexpected root children: %v", names)
			}

			names, err = b.ListChildren(ctx, "/certs")
			if err != nil {
				tst.Fatalf("ListChildren(/certs) failed: %v", err)
			}
			if !slices.Equal(names, []string{"ca.pem", "dev.pem", "sub"}) {
				tst.Errorf("Unexpected /certs children: %v", names)
			}

			names, err = b.ListChildren(ctx, "/missing")
			if err != nil || len(names) != 0 {
				tst.Errorf("Expected no children for missing path, got %v, %v", names, err)
			}

			if err := b.DeleteItem(ctx, "/certs"); err != nil {
				tst.Fatalf("DeleteItem(/certs) failed: %v", err)
			}
			if _, err := b.GetItem(ctx, "/certs/sub/a"); !errors.Is(err, serrors.ErrNotFound) {
				tst.Errorf("Expected nested item removed, got %v", err)
			}
			if _, err := b.GetItem(ctx, "/config"); err != nil {
				tst.Errorf("Sibling item must survive, got %v", err)
			}

			names, _ = b.ListChildren(ctx, "/")
			if !slices.Equal(names, []string{"config"}) {
				tst.Errorf("Unexpected root children after delete: %v", names)
			}

			if err := b.DeleteItem(ctx, "/certs"); !errors.Is(err, serrors.ErrNotFound) {
				tst.Errorf("Expected ErrNotFound on second delete, got %v", err)
			}
		})
	}
}

// TestAllBackends_Space verifies quota accounting across all backend implementations.
func TestAllBackends_Space(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			b := openBackend(tst, factory, 100)

			if err := b.PutItem(ctx, "/a", make([]byte, 60)); err != nil {
				tst.Fatalf("PutItem failed: %v", err)
			}

			stat, err := b.StatAll(ctx)
			if err != nil {
				tst.Fatalf("StatAll failed: %v", err)
			}
			if stat.Total != 100 || stat.Free != 40 {
				tst.Errorf("Expected 100/40, got %d/%d", stat.Total, stat.Free)
			}

			if err := b.PutItem(ctx, "/b", make([]byte, 50)); !errors.Is(err, serrors.ErrNoSpace) {
				tst.Fatalf("Expected ErrNoSpace, got %v", err)
			}
			if _, err := b.GetItem(ctx, "/b"); !errors.Is(err, serrors.ErrNotFound) {
				tst.Errorf("Failed put must leave no item, got %v", err)
			}

			// Overwriting counts only the difference
			if err := b.PutItem(ctx, "/a", make([]byte, 100)); err != nil {
				tst.Errorf("Overwrite within quota failed: %v", err)
			}
		})
	}
}

func TestMemoryBackend_Unavailable(t *testing.T) {
	ctx := t.Context()
	b := memory.NewMemoryBackend()

	if err := b.PutItem(ctx, "/a", []byte("x")); err != nil {
		t.Fatalf("PutItem failed: %v", err)
	}

	b.SetAvailable(false)
	if _, err := b.GetItem(ctx, "/a"); !errors.Is(err, serrors.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if _, err := b.ListChildren(ctx, "/"); !errors.Is(err, serrors.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}

	b.SetAvailable(true)
	if _, err := b.GetItem(ctx, "/a"); err != nil {
		t.Errorf("Expected item after recovery, got %v", err)
	}
}

func TestBoltBackend_UnavailableUntilOpened(t *testing.T) {
	b, err := bolt.NewBoltBackend(&bolt.BoltBackendConfig{
		Path: filepath.Join(t.TempDir(), "nv", "secstore.db"),
	})
	if err != nil {
		t.Fatalf("NewBoltBackend failed: %v", err)
	}

	if _, err := b.ListChildren(t.Context(), "/"); !errors.Is(err, serrors.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable before Open, got %v", err)
	}

	if err := b.Open(t.Context()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer b.Close(t.Context())

	if err := b.PutItem(t.Context(), "/empty", nil); err != nil {
		t.Fatalf("PutItem(empty) failed: %v", err)
	}
	got, err := b.GetItem(t.Context(), "/empty")
	if err != nil || len(got) != 0 {
		t.Errorf("Expected empty item, got %q, %v", got, err)
	}
}

func TestLocalBackend_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "flash")
	b := local.NewLocalBackend(root)

	if err := b.Open(t.Context()); !errors.Is(err, serrors.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable for unmounted root, got %v", err)
	}

	if err := os.MkdirAll(root, 0700); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := b.Open(t.Context()); err != nil {
		t.Errorf("Expected Open to succeed once mounted, got %v", err)
	}
}

func TestMemoryBackend_Metadata(t *testing.T) {
	ctx := t.Context()
	b := memory.NewMemoryBackend()

	records := []*backend.MetaRecord{
		{ID: "1", Path: "/certs/a", Size: 1, Checksum: "aa"},
		{ID: "2", Path: "/certs/b", Size: 2, Checksum: "bb"},
		{ID: "3", Path: "/other", Size: 3, Checksum: "cc"},
	}
	if err := b.ReplaceAllMeta(ctx, records); err != nil {
		t.Fatalf("ReplaceAllMeta failed: %v", err)
	}

	if err := b.DeleteMetaTree(ctx, "/certs"); err != nil {
		t.Fatalf("DeleteMetaTree failed: %v", err)
	}

	got, err := b.ReadAllMeta(ctx)
	if err != nil {
		t.Fatalf("ReadAllMeta failed: %v", err)
	}
	if len(got) != 1 || got[0].Path != "/other" {
		t.Errorf("Unexpected records: %+v", got)
	}
}

func TestSQLiteBackend_Metadata(t *testing.T) {
	ctx := t.Context()
	b, err := sqlite.NewSQLiteBackend(&sqlite.SQLiteBackendConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("NewSQLiteBackend failed: %v", err)
	}
	defer b.Close(ctx)

	if err := b.PutMeta(ctx, &backend.MetaRecord{ID: "1", Path: "/a", Size: 1, Checksum: "aa"}); err != nil {
		t.Fatalf("PutMeta failed: %v", err)
	}
	if err := b.PutMeta(ctx, &backend.MetaRecord{ID: "1", Path: "/a", Size: 5, Checksum: "ff"}); err != nil {
		t.Fatalf("PutMeta overwrite failed: %v", err)
	}
	if err := b.PutMeta(ctx, &backend.MetaRecord{ID: "2", Path: "/ab", Size: 2, Checksum: "bb"}); err != nil {
		t.Fatalf("PutMeta failed: %v", err)
	}

	if err := b.DeleteMetaTree(ctx, "/a"); err != nil {
		t.Fatalf("DeleteMetaTree failed: %v", err)
	}

	got, err := b.ReadAllMeta(ctx)
	if err != nil {
		t.Fatalf("ReadAllMeta failed: %v", err)
	}
	if len(got) != 1 || got[0].Path != "/ab" {
		t.Errorf("Sibling with shared prefix must survive, got %+v", got)
	}
}

func TestLocalBackend_ReservedNames(t *testing.T) {
	ctx := t.Context()
	b := local.NewLocalBackend(t.TempDir(), local.WithQuota(100))
	if err := b.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for _, key := range []string{"/.secstore-tmp-key", "/certs/.secstore-tmp-x/leaf"} {
		if err := b.PutItem(ctx, key, []byte("x")); !errors.Is(err, serrors.ErrBadPath) {
			t.Errorf("PutItem(%s): expected ErrBadPath, got %v", key, err)
		}
		if _, err := b.GetItem(ctx, key); !errors.Is(err, serrors.ErrBadPath) {
			t.Errorf("GetItem(%s): expected ErrBadPath, got %v", key, err)
		}
		if _, err := b.StatItem(ctx, key); !errors.Is(err, serrors.ErrBadPath) {
			t.Errorf("StatItem(%s): expected ErrBadPath, got %v", key, err)
		}
		if err := b.DeleteItem(ctx, key); !errors.Is(err, serrors.ErrBadPath) {
			t.Errorf("DeleteItem(%s): expected ErrBadPath, got %v", key, err)
		}
	}

	stat, err := b.StatAll(ctx)
	if err != nil {
		t.Fatalf("StatAll failed: %v", err)
	}
	if stat.Free != 100 {
		t.Errorf("Expected untouched quota, got %d free", stat.Free)
	}
}
