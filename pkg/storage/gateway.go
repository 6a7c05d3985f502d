package storage

import (
	"context"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
	"github.com/ajitpratap0/stagecopy/pkg/metrics"
)

// DefaultConcurrency bounds list uploads and downloads.
const DefaultConcurrency = 5

// Gateway wraps a Client with typed errors, ordered list transfers and
// metrics.
type Gateway struct {
	client      Client
	concurrency int
	kmsKeyID    string
	metrics     *metrics.Collector
	logger      *zap.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithConcurrency bounds the number of transfers in flight for list calls.
func WithConcurrency(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithKMSKey sets the default KMS key used by uploads.
func WithKMSKey(id string) GatewayOption {
	return func(g *Gateway) { g.kmsKeyID = id }
}

// WithLogger sets the gateway logger.
func WithLogger(l *zap.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = logger.OrDefault(l) }
}

// NewGateway returns a Gateway over client.
func NewGateway(client Client, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		client:      client,
		concurrency: DefaultConcurrency,
		logger:      logger.Get(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Client returns the wrapped client.
func (g *Gateway) Client() Client { return g.client }

// KMSKeyID returns the default upload KMS key.
func (g *Gateway) KMSKeyID() string { return g.kmsKeyID }

// WithMetrics returns a shallow copy of g recording into c. A nil gateway
// stays nil.
func (g *Gateway) WithMetrics(c *metrics.Collector) *Gateway {
	if g == nil {
		return nil
	}
	cp := *g
	cp.metrics = c
	return &cp
}

// Upload streams localPath to bucket/key. kmsKeyID overrides the gateway
// default when non-empty.
func (g *Gateway) Upload(ctx context.Context, localPath, bucket, key, kmsKeyID string) error {
	if kmsKeyID == "" {
		kmsKeyID = g.kmsKeyID
	}
	n, err := g.client.Put(ctx, localPath, bucket, key, PutOptions{KMSKeyID: kmsKeyID})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeUpload, "failed to upload file").
			WithDetail("path", localPath).
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	g.metrics.AddFiles("upload", 1)
	g.metrics.AddBytes("upload", n)
	logger.WithContext(ctx, g.logger).Debug("uploaded file", zap.String("path", localPath), zap.String("bucket", bucket), zap.String("key", key))
	return nil
}

// UploadURL is Upload addressed by a scheme://bucket/key URL.
func (g *Gateway) UploadURL(ctx context.Context, localPath, rawURL, kmsKeyID string) error {
	u, err := ParseURL(rawURL)
	if err != nil {
		return err
	}
	return g.Upload(ctx, localPath, u.Bucket, u.Key, kmsKeyID)
}

// UploadList uploads each path to folder/<base name> and returns the keys in
// input order. The first failure cancels transfers not yet started; the keys
// that were stored before it are returned with the error.
func (g *Gateway) UploadList(ctx context.Context, paths []string, bucket, folder, kmsKeyID string) ([]string, error) {
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = JoinKey(folder, filepath.Base(p))
	}

	done := make([]bool, len(paths))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.concurrency)
	for i := range paths {
		i := i
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := g.Upload(gctx, paths[i], bucket, keys[i], kmsKeyID); err != nil {
				return err
			}
			done[i] = true
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		var stored []string
		for i, ok := range done {
			if ok {
				stored = append(stored, keys[i])
			}
		}
		return stored, err
	}
	logger.WithContext(ctx, g.logger).Info("uploaded files", zap.Int("count", len(paths)), zap.String("bucket", bucket), zap.String("folder", folder))
	return keys, nil
}

// Download fetches bucket/key into localPath.
func (g *Gateway) Download(ctx context.Context, bucket, key, localPath string) error {
	n, err := g.client.Get(ctx, bucket, key, localPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeDownload, "failed to download object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	g.metrics.AddFiles("download", 1)
	g.metrics.AddBytes("download", n)
	return nil
}

// DownloadURL is Download addressed by a scheme://bucket/key URL.
func (g *Gateway) DownloadURL(ctx context.Context, rawURL, localPath string) error {
	u, err := ParseURL(rawURL)
	if err != nil {
		return err
	}
	return g.Download(ctx, u.Bucket, u.Key, localPath)
}

// DownloadList downloads keys into dir, naming each file after the key's
// base name, and returns the local paths in key order.
func (g *Gateway) DownloadList(ctx context.Context, bucket string, keys []string, dir string) ([]string, error) {
	paths := make([]string, len(keys))
	seen := make(map[string]string, len(keys))
	for i, k := range keys {
		name := BaseName(k)
		if prev, dup := seen[name]; dup {
			return nil, errors.Newf(errors.ErrorTypeDownload, "keys %q and %q map to the same local file", prev, k)
		}
		seen[name] = k
		paths[i] = filepath.Join(dir, name)
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.concurrency)
	for i := range keys {
		i := i
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return g.Download(gctx, bucket, keys[i], paths[i])
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// ListKeys returns every key under prefix in lexicographic order.
func (g *Gateway) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	keys, err := g.client.List(ctx, bucket, prefix)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDownload, "failed to list objects").
			WithDetail("bucket", bucket).
			WithDetail("prefix", prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteObjects removes keys from bucket. Any failure, including a partial
// one, is reported as a single deletion error.
func (g *Gateway) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := g.client.Delete(ctx, bucket, keys); err != nil {
		return errors.Wrap(err, errors.ErrorTypeDeletion, "failed to delete objects").
			WithDetail("bucket", bucket).
			WithDetail("keys", len(keys))
	}
	g.metrics.AddFiles("delete", len(keys))
	logger.WithContext(ctx, g.logger).Debug("deleted objects", zap.String("bucket", bucket), zap.Int("count", len(keys)))
	return nil
}

// DeleteURLs deletes scheme://bucket/key locations, grouped per bucket.
func (g *Gateway) DeleteURLs(ctx context.Context, urls []string) error {
	byBucket := make(map[string][]string)
	var order []string
	for _, raw := range urls {
		u, err := ParseURL(raw)
		if err != nil {
			return err
		}
		if _, ok := byBucket[u.Bucket]; !ok {
			order = append(order, u.Bucket)
		}
		byBucket[u.Bucket] = append(byBucket[u.Bucket], u.Key)
	}

	var failures []error
	for _, bucket := range order {
		if err := g.DeleteObjects(ctx, bucket, byBucket[bucket]); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Aggregate(errors.ErrorTypeDeletion, "failed to delete objects", failures...)
}
