package command

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/stagecopy/pkg/compression"
	"github.com/ajitpratap0/stagecopy/pkg/config"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
)

// LoadRequest describes a bulk load from staged objects.
type LoadRequest struct {
	Table string
	// Location is the storage prefix (s3://bucket/prefix) or a stage (@name/path)
	Location string
	// Delimiter is omitted from the statement when empty
	Delimiter string
	// Options are copy options; they override the dialect defaults by keyword
	Options []string
	// FormatOptions go inside Snowflake's FILE_FORMAT clause
	FormatOptions []string
	// HeaderRows is the number of leading rows to skip
	HeaderRows  int
	Compression compression.Algorithm
	Auth        Auth
}

// UnloadRequest describes a bulk export to storage.
type UnloadRequest struct {
	Query string
	// Location is the storage prefix the warehouse writes under
	Location    string
	Delimiter   string
	Options     []string
	ParallelOff bool
	Header      bool
	Compression compression.Algorithm
	Auth        Auth
}

// Dialect builds warehouse-specific statements.
type Dialect interface {
	// Name is the warehouse kind (redshift, snowflake).
	Name() string
	// DefaultLoadOptions are the copy options applied unless overridden.
	DefaultLoadOptions() []string
	// LoadStatement builds the bulk-load statement.
	LoadStatement(req LoadRequest) (Statement, error)
	// UnloadStatement builds the bulk-export statement.
	UnloadStatement(req UnloadRequest) (Statement, error)
	// UnloadLocation returns where an export rooted at prefix is written; the
	// objects produced all start with the returned key.
	UnloadLocation(prefix string, req UnloadRequest) string
	// PostConnect lists statements run right after connecting.
	PostConnect(conn config.Connection) []string
	// ColumnNamesQuery returns a query yielding query's columns and no rows.
	ColumnNamesQuery(query string) string
}

// ForKind returns the dialect for a warehouse kind.
func ForKind(kind string) (Dialect, error) {
	switch strings.ToLower(kind) {
	case config.KindRedshift:
		return Redshift{}, nil
	case config.KindSnowflake:
		return Snowflake{}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported warehouse kind %q", kind)
	}
}

func columnNamesQuery(query string) string {
	return fmt.Sprintf("SELECT * FROM (%s) WHERE 1 = 0", strings.TrimRight(strings.TrimSpace(query), ";"))
}
