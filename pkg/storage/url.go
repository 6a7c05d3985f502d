package storage

import (
	"path"
	"strings"

	"github.com/ajitpratap0/stagecopy/pkg/errors"
)

// Schemes understood by ParseURL.
const (
	SchemeS3  = "s3"
	SchemeGCS = "gs"
)

// URL is a parsed object location.
type URL struct {
	Scheme string
	Bucket string
	Key    string
}

// ParseURL splits "scheme://bucket/key" (or a bare "bucket/key") into its
// parts. The key may be empty; the bucket may not.
func ParseURL(raw string) (URL, error) {
	u := URL{Scheme: SchemeS3}
	rest := strings.TrimSpace(raw)
	if i := strings.Index(rest, "://"); i >= 0 {
		u.Scheme = strings.ToLower(rest[:i])
		rest = rest[i+3:]
	}
	switch u.Scheme {
	case SchemeS3, "s3a", "s3n":
		u.Scheme = SchemeS3
	case SchemeGCS, "gcs":
		u.Scheme = SchemeGCS
	default:
		return URL{}, errors.Newf(errors.ErrorTypeStorageConfig, "unsupported storage scheme %q in %q", u.Scheme, raw)
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return URL{}, errors.Newf(errors.ErrorTypeStorageConfig, "no bucket in storage url %q", raw)
	}
	u.Bucket = bucket
	u.Key = key
	return u, nil
}

// String renders the URL as scheme://bucket/key.
func (u URL) String() string {
	scheme := u.Scheme
	if scheme == "" {
		scheme = SchemeS3
	}
	if u.Key == "" {
		return scheme + "://" + u.Bucket
	}
	return scheme + "://" + u.Bucket + "/" + u.Key
}

// JoinKey joins a folder and an object name with a single slash. An empty
// folder yields name unchanged.
func JoinKey(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// BaseName returns the last path element of key.
func BaseName(key string) string {
	return path.Base(key)
}
