package consul

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/secstore/backend"
	serrors "github.com/mwantia/secstore/data/errors"
)

// ConsulBackend provides a storage backend using the HashiCorp Consul KV store.
//
// Architecture:
// - Items are stored directly in Consul KV below a configurable prefix
// - Containers are virtual and only exist as key prefixes
// - Recursive deletes map onto DeleteTree
//
// Limitations:
// - Consul KV has a 512KB limit per value
// - Free space is derived from the configured quota, Consul has no notion of it
type ConsulBackend struct {
	mu     sync.RWMutex
	client *api.Client
	kv     *api.KV

	// Configuration
	config *ConsulBackendConfig
}

// ConsulBackendConfig contains configuration options for the Consul backend
type ConsulBackendConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// Namespace for Consul Enterprise (optional)
	Namespace string

	// Prefix for all keys in Consul KV (default: "secstore/")
	Prefix string

	// Quota limits the stored bytes (default: 16 MiB)
	Quota int64
}

// NewConsulBackend creates a new Consul-backed storage backend
func NewConsulBackend(config *ConsulBackendConfig) (*ConsulBackend, error) {
	if config == nil {
		config = &ConsulBackendConfig{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}
	if config.Prefix == "" {
		config.Prefix = "secstore/"
	}
	if !strings.HasSuffix(config.Prefix, "/") {
		config.Prefix += "/"
	}
	config.Prefix = strings.TrimPrefix(config.Prefix, "/")
	if config.Quota <= 0 {
		config.Quota = 16 << 20
	}

	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}

	return &ConsulBackend{
		client: client,
		kv:     client.KV(),
		config: config,
	}, nil
}

// NewClient creates a Consul API client from the backend configuration.
func NewClient(config *ConsulBackendConfig) (*api.Client, error) {
	clientConfig := api.DefaultConfig()
	if config.Address != "" {
		clientConfig.Address = config.Address
	}
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}
	if config.Namespace != "" {
		clientConfig.Namespace = config.Namespace
	}

	return api.NewClient(clientConfig)
}

// Name returns the identifier name defined for this backend
func (*ConsulBackend) Name() string {
	return "consul"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend
func (cb *ConsulBackend) Open(ctx context.Context) error {
	// Verify the agent answers, the client itself is stateless
	if _, err := cb.client.Status().Leader(); err != nil {
		return cb.mapError(err)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend
func (cb *ConsulBackend) Close(ctx context.Context) error {
	// Nothing to clean up - Consul client is stateless
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend
func (cb *ConsulBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityStorage,
		},
		// Consul KV has a default limit of 512KB per value
		MaxObjectSize: 512 * 1024,
	}
}

// buildKey constructs the full Consul KV key from a normalized path
func (cb *ConsulBackend) buildKey(key string) string {
	return cb.config.Prefix + strings.TrimPrefix(key, "/")
}

// buildPrefix constructs the Consul KV prefix of everything below key
func (cb *ConsulBackend) buildPrefix(key string) string {
	k := cb.buildKey(key)
	if strings.HasSuffix(k, "/") {
		return k
	}

	return k + "/"
}

func (cb *ConsulBackend) mapError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	var netErr net.Error
	var statusErr api.StatusError

	switch {
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return serrors.BackendUnavailable(err, cb.Name())
	case errors.As(err, &statusErr) && statusErr.Code >= 500:
		return serrors.BackendUnavailable(err, cb.Name())
	default:
		return serrors.Classify(err)
	}
}
