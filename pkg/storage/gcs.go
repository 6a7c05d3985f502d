package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/stagecopy/pkg/config"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
)

// GCSClient implements Client on Google Cloud Storage. It serves gs://
// locations used by Snowflake external stages.
type GCSClient struct {
	client *storage.Client
	logger *zap.Logger
}

// NewGCSClient creates a GCS client, using cfg.CredentialsFile when set and
// application default credentials otherwise.
func NewGCSClient(ctx context.Context, cfg config.StorageConfig) (*GCSClient, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCredentials, "failed to create GCS client")
	}
	return &GCSClient{client: client, logger: logger.With(zap.String("component", "gcs"))}, nil
}

// Scheme implements Client.
func (c *GCSClient) Scheme() string { return SchemeGCS }

// Close releases the underlying client.
func (c *GCSClient) Close() error { return c.client.Close() }

// Put implements Client. KMSKeyID is applied as a customer-managed key name.
func (c *GCSClient) Put(ctx context.Context, localPath, bucket, key string, opts PutOptions) (int64, error) {
	f, err := os.Open(localPath) //nolint:gosec // G304: caller-supplied path
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := c.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if opts.KMSKeyID != "" {
		w.KMSKeyName = opts.KMSKeyID
	}
	n, err := io.Copy(w, f)
	if err != nil {
		_ = w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	c.logger.Debug("uploaded object", zap.String("bucket", bucket), zap.String("key", key), zap.Int64("bytes", n))
	return n, nil
}

// Get implements Client.
func (c *GCSClient) Get(ctx context.Context, bucket, key, localPath string) (int64, error) {
	r, err := c.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(localPath) //nolint:gosec // G304: caller-supplied path
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(localPath)
		return 0, err
	}
	return n, nil
}

// List implements Client.
func (c *GCSClient) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	it := c.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// Delete implements Client.
func (c *GCSClient) Delete(ctx context.Context, bucket string, keys []string) error {
	var failures []error
	for _, k := range keys {
		if err := c.client.Bucket(bucket).Object(k).Delete(ctx); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", k, err))
		}
	}
	return errors.Aggregate(errors.ErrorTypeDeletion, "failed to delete objects", failures...)
}
