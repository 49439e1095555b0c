package local

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwantia/secstore/data"
	serrors "github.com/mwantia/secstore/data/errors"
)

func (lb *LocalBackend) GetItem(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if err := lb.checkRoot(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(lb.resolvePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isDirError(err) || isNotDirError(err) {
			return nil, serrors.PathNotFound(nil, key)
		}
		return nil, lb.mapError(err)
	}

	return content, nil
}

func (lb *LocalBackend) PutItem(ctx context.Context, key string, dat []byte) error {
	if data.IsRoot(key) {
		return serrors.PathIsContainer(key)
	}
	if err := checkKey(key); err != nil {
		return err
	}

	size := int64(len(dat))
	if lb.maxObject > 0 && size > lb.maxObject {
		return serrors.ObjectTooLarge(lb.Name(), size, lb.maxObject)
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	if err := lb.checkRoot(); err != nil {
		return err
	}

	target := lb.resolvePath(key)
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return serrors.PathIsContainer(key)
	}

	used, err := lb.usedBytes()
	if err != nil {
		return lb.mapError(err)
	}

	var previous int64
	if info, err := os.Stat(target); err == nil {
		previous = info.Size()
	}

	if used-previous+size > lb.quota {
		return serrors.BackendNoSpace(nil, lb.Name(), size, lb.quota-used+previous)
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0700); err != nil {
		if isNotDirError(err) {
			return serrors.PathBelowItem(key, data.ParentPath(key))
		}
		return lb.mapError(err)
	}

	// Write into a temporary file first, the rename makes the update atomic
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return lb.mapError(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(dat); err != nil {
		tmp.Close()
		return lb.mapError(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return lb.mapError(err)
	}
	if err := tmp.Close(); err != nil {
		return lb.mapError(err)
	}

	return lb.mapError(os.Rename(tmp.Name(), target))
}

func (lb *LocalBackend) DeleteItem(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	if err := lb.checkRoot(); err != nil {
		return err
	}

	target := lb.resolvePath(key)
	found, err := hasItems(target)
	if err != nil {
		return lb.mapError(err)
	}
	if !found {
		return serrors.PathNotFound(nil, key)
	}

	if data.IsRoot(key) {
		entries, err := os.ReadDir(lb.path)
		if err != nil {
			return lb.mapError(err)
		}
		for _, entry := range entries {
			if err := os.RemoveAll(filepath.Join(lb.path, entry.Name())); err != nil {
				return lb.mapError(err)
			}
		}
		return nil
	}

	if err := os.RemoveAll(target); err != nil {
		return lb.mapError(err)
	}

	lb.pruneParents(filepath.Dir(target))
	return nil
}

func (lb *LocalBackend) ListChildren(ctx context.Context, key string) ([]string, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if err := lb.checkRoot(); err != nil {
		return nil, err
	}

	dir := lb.resolvePath(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDirError(err) {
			return []string{}, nil
		}
		return nil, lb.mapError(err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}

		if entry.IsDir() {
			// Leftover empty directories are not containers
			found, err := hasItems(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, lb.mapError(err)
			}
			if !found {
				continue
			}
		}

		names = append(names, entry.Name())
	}

	// os.ReadDir already sorts by filename
	return names, nil
}

func (lb *LocalBackend) StatItem(ctx context.Context, key string) (*data.ItemStat, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if err := lb.checkRoot(); err != nil {
		return nil, err
	}

	info, err := os.Stat(lb.resolvePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDirError(err) {
			return nil, serrors.PathNotFound(nil, key)
		}
		return nil, lb.mapError(err)
	}
	if info.IsDir() {
		return nil, serrors.PathNotFound(nil, key)
	}

	return &data.ItemStat{
		Path:       key,
		Size:       info.Size(),
		ModifyTime: info.ModTime(),
	}, nil
}

func (lb *LocalBackend) StatAll(ctx context.Context) (*data.SpaceStat, error) {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if err := lb.checkRoot(); err != nil {
		return nil, err
	}

	used, err := lb.usedBytes()
	if err != nil {
		return nil, lb.mapError(err)
	}

	return data.NewSpaceStat(lb.quota, used), nil
}
