package s3

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/secstore/data"
	serrors "github.com/mwantia/secstore/data/errors"
)

func (sb *S3Backend) GetItem(ctx context.Context, key string) ([]byte, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	obj, err := sb.client.GetObject(ctx, sb.config.Bucket, sb.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, sb.mapKeyError(err, key)
	}
	defer obj.Close()

	// GetObject is lazy, errors such as NoSuchKey surface on the first read
	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, sb.mapKeyError(err, key)
	}

	return content, nil
}

func (sb *S3Backend) PutItem(ctx context.Context, key string, dat []byte) error {
	if data.IsRoot(key) {
		return serrors.PathIsContainer(key)
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	size := int64(len(dat))
	used, err := sb.usedBytes(ctx)
	if err != nil {
		return err
	}

	var previous int64
	if info, err := sb.client.StatObject(ctx, sb.config.Bucket, sb.objectKey(key), minio.StatObjectOptions{}); err == nil {
		previous = info.Size
	}

	if used-previous+size > sb.config.Quota {
		return serrors.BackendNoSpace(nil, sb.Name(), size, sb.config.Quota-used+previous)
	}

	// Single-part uploads replace the object atomically
	_, err = sb.client.PutObject(ctx, sb.config.Bucket, sb.objectKey(key), bytes.NewReader(dat), size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})

	return sb.mapError(err)
}

func (sb *S3Backend) DeleteItem(ctx context.Context, key string) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	var names []string
	if !data.IsRoot(key) {
		if _, err := sb.client.StatObject(ctx, sb.config.Bucket, sb.objectKey(key), minio.StatObjectOptions{}); err == nil {
			names = append(names, sb.objectKey(key))
		}
	}

	for info := range sb.client.ListObjects(ctx, sb.config.Bucket, minio.ListObjectsOptions{
		Prefix:    sb.objectPrefix(key),
		Recursive: true,
	}) {
		if info.Err != nil {
			return sb.mapError(info.Err)
		}
		names = append(names, info.Key)
	}

	if len(names) == 0 {
		return serrors.PathNotFound(nil, key)
	}

	objects := make(chan minio.ObjectInfo, len(names))
	for _, name := range names {
		objects <- minio.ObjectInfo{Key: name}
	}
	close(objects)

	for result := range sb.client.RemoveObjects(ctx, sb.config.Bucket, objects, minio.RemoveObjectsOptions{}) {
		if result.Err != nil {
			return sb.mapError(result.Err)
		}
	}

	return nil
}

func (sb *S3Backend) ListChildren(ctx context.Context, key string) ([]string, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	var keys []string
	for info := range sb.client.ListObjects(ctx, sb.config.Bucket, minio.ListObjectsOptions{
		Prefix:    sb.objectPrefix(key),
		Recursive: false,
	}) {
		if info.Err != nil {
			return nil, sb.mapError(info.Err)
		}

		// Common prefixes carry a trailing "/"
		rel := strings.TrimSuffix(strings.TrimPrefix(info.Key, sb.config.Prefix), "/")
		keys = append(keys, "/"+rel)
	}

	return data.ChildNames(key, keys), nil
}

func (sb *S3Backend) StatItem(ctx context.Context, key string) (*data.ItemStat, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	info, err := sb.client.StatObject(ctx, sb.config.Bucket, sb.objectKey(key), minio.StatObjectOptions{})
	if err != nil {
		return nil, sb.mapKeyError(err, key)
	}

	return &data.ItemStat{
		Path:       key,
		Size:       info.Size,
		ModifyTime: info.LastModified,
	}, nil
}

func (sb *S3Backend) StatAll(ctx context.Context) (*data.SpaceStat, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	used, err := sb.usedBytes(ctx)
	if err != nil {
		return nil, err
	}

	return data.NewSpaceStat(sb.config.Quota, used), nil
}

func (sb *S3Backend) usedBytes(ctx context.Context) (int64, error) {
	var used int64
	for info := range sb.client.ListObjects(ctx, sb.config.Bucket, minio.ListObjectsOptions{
		Prefix:    sb.config.Prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return 0, sb.mapError(info.Err)
		}
		used += info.Size
	}

	return used, nil
}

// mapKeyError reports missing objects with the requested path.
func (sb *S3Backend) mapKeyError(err error, key string) error {
	response := minio.ToErrorResponse(err)
	if response.Code == "NoSuchKey" || response.StatusCode == 404 {
		return serrors.PathNotFound(nil, key)
	}

	return sb.mapError(err)
}
