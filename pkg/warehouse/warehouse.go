// Package warehouse defines the minimal cursor-based access contract used to
// talk to a warehouse, and its database/sql implementations for Redshift
// (pgx) and Snowflake (gosnowflake).
//
// Callers only ever issue plain SQL text through a Cursor; nothing here knows
// about bulk loading.
package warehouse

import (
	"context"
	"strings"

	"github.com/ajitpratap0/stagecopy/pkg/config"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
)

// Column describes one result column.
type Column struct {
	Name         string
	DatabaseType string
	Nullable     bool
}

// Row is one fetched result row.
type Row []interface{}

// Cursor executes statements and fetches their results.
type Cursor interface {
	// Execute runs query. Any previous result set is discarded.
	Execute(ctx context.Context, query string) error
	// FetchMany returns up to n rows of the current result set; an empty
	// slice means the set is exhausted.
	FetchMany(n int) ([]Row, error)
	// FetchAll returns every remaining row.
	FetchAll() ([]Row, error)
	// Description describes the columns of the current result set.
	Description() []Column
	Close() error
}

// Connection is an open warehouse session.
type Connection interface {
	Cursor() Cursor
	Close() error
}

// Driver opens connections.
type Driver interface {
	Name() string
	Connect(ctx context.Context, cfg config.Connection) (Connection, error)
}

// ForKind returns the driver for a warehouse kind.
func ForKind(kind string) (Driver, error) {
	switch strings.ToLower(kind) {
	case config.KindRedshift:
		return NewRedshiftDriver(), nil
	case config.KindSnowflake:
		return NewSnowflakeDriver(), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported warehouse kind %q", kind)
	}
}
