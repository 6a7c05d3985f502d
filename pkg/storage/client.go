// Package storage is the object-storage gateway used to stage bulk loads and
// collect bulk exports. A Client performs single object operations against a
// concrete store (S3, GCS, memory); the Gateway layers typed errors, list
// operations with a bounded worker pool, and metrics on top.
package storage

import "context"

// PutOptions carries per-object upload settings.
type PutOptions struct {
	// KMSKeyID requests server-side encryption with this key. When empty the
	// store's default server-side encryption is requested.
	KMSKeyID string
}

// Client is the minimal object-store capability set.
type Client interface {
	// Put uploads the file at localPath to bucket/key and returns the bytes sent.
	Put(ctx context.Context, localPath, bucket, key string, opts PutOptions) (int64, error)
	// Get downloads bucket/key into localPath and returns the bytes written.
	Get(ctx context.Context, bucket, key, localPath string) (int64, error)
	// List returns every key under prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	// Delete removes keys. Partial failures are reported as one error.
	Delete(ctx context.Context, bucket string, keys []string) error
	// Scheme is the URL scheme served by the client.
	Scheme() string
}
