package local

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/data"
	serrors "github.com/mwantia/secstore/data/errors"
)

// tempPrefix marks files that are still being written.
const tempPrefix = ".secstore-tmp-"

// LocalBackend maps items onto files below a root directory, typically a
// mounted flash partition. Containers are plain directories that are pruned
// once they no longer hold any item.
type LocalBackend struct {
	mu   sync.RWMutex
	path string

	quota     int64
	maxObject int64
}

type LocalOption func(*LocalBackend)

// WithQuota limits the total number of stored bytes.
func WithQuota(quota int64) LocalOption {
	return func(lb *LocalBackend) {
		lb.quota = quota
	}
}

// WithMaxObjectSize limits the size of a single item.
func WithMaxObjectSize(size int64) LocalOption {
	return func(lb *LocalBackend) {
		lb.maxObject = size
	}
}

func NewLocalBackend(path string, opts ...LocalOption) *LocalBackend {
	lb := &LocalBackend{
		path:  filepath.Clean(path),
		quota: 4 << 20,
	}

	for _, opt := range opts {
		opt(lb)
	}

	return lb
}

// Name returns the identifier name defined for this backend.
func (*LocalBackend) Name() string {
	return "local"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (lb *LocalBackend) Open(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	return lb.checkRoot()
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (lb *LocalBackend) Close(ctx context.Context) error {
	// The underlying filesystem persists independently
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (lb *LocalBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityStorage,
		},
		MaxObjectSize: lb.maxObject,
	}
}

// checkRoot reports the backend unavailable while the root directory is
// missing, e.g. when the partition is not mounted.
func (lb *LocalBackend) checkRoot() error {
	info, err := os.Stat(lb.path)
	if err != nil {
		return serrors.BackendUnavailable(err, lb.Name())
	}

	// Ensure the root is a directory
	if !info.IsDir() {
		return serrors.BackendFault(errors.New("root is not a directory"), lb.Name())
	}

	return nil
}

// checkKey rejects keys that would collide with files still being written.
func checkKey(key string) error {
	for _, segment := range data.Segments(key) {
		if strings.HasPrefix(segment, tempPrefix) {
			return serrors.InvalidPath(nil, key)
		}
	}

	return nil
}

// resolvePath joins the backend path with a normalized key.
func (lb *LocalBackend) resolvePath(key string) string {
	return filepath.Join(lb.path, filepath.FromSlash(strings.TrimPrefix(key, "/")))
}

// walkItems visits every stored file at or below dir.
func walkItems(dir string, visit func(path string, size int64)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || isNotDirError(err) {
				return nil
			}
			return err
		}

		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		visit(path, info.Size())
		return nil
	})
}

func hasItems(dir string) (bool, error) {
	found := false
	err := walkItems(dir, func(string, int64) {
		found = true
	})

	return found, err
}

func (lb *LocalBackend) usedBytes() (int64, error) {
	var used int64
	err := walkItems(lb.path, func(_ string, size int64) {
		used += size
	})

	return used, err
}

// pruneParents removes empty directories from dir up to the root.
func (lb *LocalBackend) pruneParents(dir string) {
	for dir != lb.path && strings.HasPrefix(dir, lb.path) {
		if err := os.Remove(dir); err != nil {
			// Not empty or already gone
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (lb *LocalBackend) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ENOSPC):
		return serrors.BackendNoSpace(err, lb.Name(), 0, 0)
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EIO), errors.Is(err, syscall.EROFS):
		return serrors.BackendUnavailable(err, lb.Name())
	default:
		return serrors.Classify(err)
	}
}

func isDirError(err error) bool {
	return errors.Is(err, syscall.EISDIR)
}

func isNotDirError(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}
