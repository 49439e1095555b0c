package s3

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/secstore/backend"
	serrors "github.com/mwantia/secstore/data/errors"
)

// S3Backend stores every item as an object in an S3-compatible bucket.
// Containers are virtual and derived from object key prefixes.
type S3Backend struct {
	mu sync.RWMutex

	client *minio.Client
	config *S3BackendConfig
}

// S3BackendConfig contains configuration options for the S3 backend.
type S3BackendConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// Prefix for all object keys (optional)
	Prefix string

	// Quota limits the stored bytes (default: 64 MiB)
	Quota int64
}

func NewS3Backend(config *S3BackendConfig) (*S3Backend, error) {
	if config == nil || config.Endpoint == "" || config.Bucket == "" {
		return nil, errors.New("s3: endpoint and bucket required")
	}

	config.Prefix = strings.Trim(config.Prefix, "/")
	if config.Prefix != "" {
		config.Prefix += "/"
	}
	if config.Quota <= 0 {
		config.Quota = 64 << 20
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &S3Backend{
		client: client,
		config: config,
	}, nil
}

// Name returns the identifier name defined for this backend.
func (*S3Backend) Name() string {
	return "s3"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *S3Backend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	exists, err := sb.client.BucketExists(ctx, sb.config.Bucket)
	if err != nil {
		return sb.mapError(err)
	}

	if !exists {
		return serrors.BackendFault(errors.New("bucket does not exist"), sb.Name())
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *S3Backend) Close(ctx context.Context) error {
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *S3Backend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityStorage,
		},
	}
}

func (sb *S3Backend) objectKey(key string) string {
	return sb.config.Prefix + strings.TrimPrefix(key, "/")
}

func (sb *S3Backend) objectPrefix(key string) string {
	k := sb.objectKey(key)
	if k == "" || strings.HasSuffix(k, "/") {
		return k
	}

	return k + "/"
}

func (sb *S3Backend) mapError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	var netErr net.Error

	response := minio.ToErrorResponse(err)
	switch {
	case response.Code == "NoSuchKey":
		return serrors.PathNotFound(err, "")
	case response.StatusCode == http.StatusServiceUnavailable, response.Code == "SlowDown":
		return serrors.BackendUnavailable(err, sb.Name())
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return serrors.BackendUnavailable(err, sb.Name())
	default:
		return serrors.Classify(err)
	}
}
