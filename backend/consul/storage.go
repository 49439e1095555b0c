package consul

import (
	"context"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/secstore/data"
	serrors "github.com/mwantia/secstore/data/errors"
)

// GetItem reads the value stored below the key
func (cb *ConsulBackend) GetItem(ctx context.Context, key string) ([]byte, error) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	pair, _, err := cb.kv.Get(cb.buildKey(key), queryOptions(ctx))
	if err != nil {
		return nil, cb.mapError(err)
	}
	if pair == nil {
		return nil, serrors.PathNotFound(nil, key)
	}

	if pair.Value == nil {
		return []byte{}, nil
	}

	return pair.Value, nil
}

// PutItem replaces the value below the key
func (cb *ConsulBackend) PutItem(ctx context.Context, key string, dat []byte) error {
	if data.IsRoot(key) {
		return serrors.PathIsContainer(key)
	}

	size := int64(len(dat))
	capabilities := cb.GetCapabilities()
	if !capabilities.Allows(size) {
		return serrors.ObjectTooLarge(cb.Name(), size, capabilities.MaxObjectSize)
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	used, err := cb.usedBytes(ctx)
	if err != nil {
		return err
	}

	consulKey := cb.buildKey(key)
	var previous int64
	pair, _, err := cb.kv.Get(consulKey, queryOptions(ctx))
	if err != nil {
		return cb.mapError(err)
	}
	if pair != nil {
		previous = int64(len(pair.Value))
	}

	if used-previous+size > cb.config.Quota {
		return serrors.BackendNoSpace(nil, cb.Name(), size, cb.config.Quota-used+previous)
	}

	// A single KV put is atomic within Consul
	if _, err := cb.kv.Put(&api.KVPair{Key: consulKey, Value: dat}, writeOptions(ctx)); err != nil {
		return cb.mapError(err)
	}

	return nil
}

// DeleteItem removes the key and all children through DeleteTree
func (cb *ConsulBackend) DeleteItem(ctx context.Context, key string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	exists := false
	if !data.IsRoot(key) {
		pair, _, err := cb.kv.Get(cb.buildKey(key), queryOptions(ctx))
		if err != nil {
			return cb.mapError(err)
		}
		exists = pair != nil
	}

	prefix := cb.buildPrefix(key)
	keys, _, err := cb.kv.Keys(prefix, "", queryOptions(ctx))
	if err != nil {
		return cb.mapError(err)
	}

	if !exists && len(keys) == 0 {
		return serrors.PathNotFound(nil, key)
	}

	if len(keys) > 0 {
		if _, err := cb.kv.DeleteTree(prefix, writeOptions(ctx)); err != nil {
			return cb.mapError(err)
		}
	}

	if exists {
		if _, err := cb.kv.Delete(cb.buildKey(key), writeOptions(ctx)); err != nil {
			return cb.mapError(err)
		}
	}

	return nil
}

// ListChildren lists the direct children below the key
func (cb *ConsulBackend) ListChildren(ctx context.Context, key string) ([]string, error) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	prefix := cb.buildPrefix(key)
	// Separator "/" tells Consul to only return one level
	consulKeys, _, err := cb.kv.Keys(prefix, "/", queryOptions(ctx))
	if err != nil {
		return nil, cb.mapError(err)
	}

	keys := make([]string, 0, len(consulKeys))
	for _, consulKey := range consulKeys {
		// Virtual directories carry a trailing "/"
		rel := strings.TrimSuffix(strings.TrimPrefix(consulKey, cb.config.Prefix), "/")
		keys = append(keys, "/"+rel)
	}

	return data.ChildNames(key, keys), nil
}

// StatItem returns the size of the value below the key
func (cb *ConsulBackend) StatItem(ctx context.Context, key string) (*data.ItemStat, error) {
	content, err := cb.GetItem(ctx, key)
	if err != nil {
		return nil, err
	}

	return &data.ItemStat{
		Path: key,
		Size: int64(len(content)),
	}, nil
}

// StatAll reports the configured quota and the bytes below the prefix
func (cb *ConsulBackend) StatAll(ctx context.Context) (*data.SpaceStat, error) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	used, err := cb.usedBytes(ctx)
	if err != nil {
		return nil, err
	}

	return data.NewSpaceStat(cb.config.Quota, used), nil
}

func (cb *ConsulBackend) usedBytes(ctx context.Context) (int64, error) {
	pairs, _, err := cb.kv.List(cb.config.Prefix, queryOptions(ctx))
	if err != nil {
		return 0, cb.mapError(err)
	}

	var used int64
	for _, pair := range pairs {
		used += int64(len(pair.Value))
	}

	return used, nil
}

func queryOptions(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{}).WithContext(ctx)
}

func writeOptions(ctx context.Context) *api.WriteOptions {
	return (&api.WriteOptions{}).WithContext(ctx)
}
