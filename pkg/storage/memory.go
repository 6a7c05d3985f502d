package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ajitpratap0/stagecopy/pkg/errors"
)

// MemoryObject is an object held by MemoryClient.
type MemoryObject struct {
	Data []byte
	Opts PutOptions
}

// MemoryClient is an in-process Client. It is safe for concurrent use and
// supports failure injection per key.
type MemoryClient struct {
	mu      sync.Mutex
	buckets map[string]map[string]MemoryObject
	deletes []string

	// FailPut, FailGet and FailDelete make the named keys fail.
	FailPut    map[string]error
	FailGet    map[string]error
	FailDelete map[string]error
	// FailList makes every List call fail.
	FailList error
}

// NewMemoryClient returns an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{buckets: make(map[string]map[string]MemoryObject)}
}

// Scheme implements Client.
func (m *MemoryClient) Scheme() string { return SchemeS3 }

// PutObject stores data directly.
func (m *MemoryClient) PutObject(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string]MemoryObject)
		m.buckets[bucket] = b
	}
	b[key] = MemoryObject{Data: append([]byte(nil), data...)}
}

// Object returns a stored object.
func (m *MemoryClient) Object(bucket, key string) (MemoryObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.buckets[bucket][key]
	return obj, ok
}

// Keys returns every key in bucket, sorted.
func (m *MemoryClient) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Put implements Client.
func (m *MemoryClient) Put(ctx context.Context, localPath, bucket, key string, opts PutOptions) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := m.FailPut[key]; err != nil {
		return 0, err
	}
	data, err := os.ReadFile(localPath) //nolint:gosec // G304: caller-supplied path
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string]MemoryObject)
		m.buckets[bucket] = b
	}
	b[key] = MemoryObject{Data: data, Opts: opts}
	return int64(len(data)), nil
}

// Get implements Client.
func (m *MemoryClient) Get(ctx context.Context, bucket, key, localPath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := m.FailGet[key]; err != nil {
		return 0, err
	}
	obj, ok := m.Object(bucket, key)
	if !ok {
		return 0, fmt.Errorf("no such key: %s/%s", bucket, key)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(localPath, obj.Data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(obj.Data)), nil
}

// List implements Client.
func (m *MemoryClient) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.FailList != nil {
		return nil, m.FailList
	}
	var keys []string
	for _, k := range m.Keys(bucket) {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// DeleteRequests returns every bucket/key passed to Delete, in call order.
func (m *MemoryClient) DeleteRequests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

// Delete implements Client. Keys without an injected failure are removed
// even when others fail.
func (m *MemoryClient) Delete(ctx context.Context, bucket string, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var failures []error
	for _, k := range keys {
		m.deletes = append(m.deletes, bucket+"/"+k)
		if err := m.FailDelete[k]; err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", k, err))
			continue
		}
		delete(m.buckets[bucket], k)
	}
	return errors.Aggregate(errors.ErrorTypeDeletion, "failed to delete objects", failures...)
}
