package watch

import (
	"context"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/secstore/log"
)

// ConsulWatcher signals a restore whenever the ModifyIndex of a KV key
// advances. The first observed index only sets the baseline.
type ConsulWatcher struct {
	client   *api.Client
	key      string
	notifier Notifier
	logger   *log.Logger

	WaitTime   time.Duration
	RetryDelay time.Duration
}

func NewConsulWatcher(client *api.Client, key string, notifier Notifier, logger *log.Logger) *ConsulWatcher {
	if logger == nil {
		logger = log.Discard()
	}

	return &ConsulWatcher{
		client:     client,
		key:        key,
		notifier:   notifier,
		logger:     logger,
		WaitTime:   5 * time.Minute,
		RetryDelay: 5 * time.Second,
	}
}

// Run performs blocking queries on the key until ctx is cancelled.
func (cw *ConsulWatcher) Run(ctx context.Context) error {
	cw.logger.Info("Watching consul key '%s' for restore signals", cw.key)

	var (
		lastIndex  uint64
		lastModify uint64
		baseline   bool
	)

	for {
		opts := (&api.QueryOptions{
			WaitIndex: lastIndex,
			WaitTime:  cw.WaitTime,
		}).WithContext(ctx)

		pair, meta, err := cw.client.KV().Get(cw.key, opts)
		if err != nil {
			if ctx.Err() != nil {
				cw.logger.Info("Stopped watching consul key '%s'", cw.key)
				return nil
			}

			cw.logger.Warn("Consul watch on '%s' failed: %v", cw.key, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(cw.RetryDelay):
			}
			continue
		}

		// Reset on index going backwards, see consul blocking query docs.
		if meta.LastIndex < lastIndex {
			lastIndex = 0
		} else {
			lastIndex = meta.LastIndex
		}

		var modify uint64
		if pair != nil {
			modify = pair.ModifyIndex
		}

		if !baseline {
			baseline = true
			lastModify = modify
			continue
		}

		if pair != nil && modify != lastModify {
			lastModify = modify
			if err := cw.notifier.HandleRestore(ctx, "consul:"+cw.key); err != nil {
				cw.logger.Warn("Restore from consul key '%s' failed: %v", cw.key, err)
			}
		}
	}
}
