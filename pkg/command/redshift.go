package command

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/stagecopy/pkg/compression"
	"github.com/ajitpratap0/stagecopy/pkg/config"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
)

// Redshift builds COPY and UNLOAD statements for Amazon Redshift.
type Redshift struct{}

// Name implements Dialect.
func (Redshift) Name() string { return config.KindRedshift }

// DefaultLoadOptions implements Dialect.
func (Redshift) DefaultLoadOptions() []string { return DefaultLoadOptions() }

// PostConnect implements Dialect.
func (Redshift) PostConnect(config.Connection) []string { return nil }

// ColumnNamesQuery implements Dialect.
func (Redshift) ColumnNamesQuery(query string) string { return columnNamesQuery(query) }

// LoadStatement implements Dialect. Defaults are merged in unless the load is
// PARQUET; a DELIMITER option replaces the request delimiter.
func (Redshift) LoadStatement(req LoadRequest) (Statement, error) {
	if err := validateLoad(req); err != nil {
		return Statement{}, err
	}

	opts := append([]string(nil), req.Options...)
	parquet := ContainsWord(opts, "PARQUET")
	if !parquet {
		opts = MergeOptions(DefaultLoadOptions(), opts)
		opts = appendIfMissing(opts, compression.Keyword(req.Compression))
		if req.HeaderRows > 0 {
			opts = appendIfMissing(opts, fmt.Sprintf("IGNOREHEADER %d", req.HeaderRows))
		}
	}

	delimiter := req.Delimiter
	if parquet || HasKeyword(opts, "DELIMITER") {
		delimiter = ""
	}

	creds := redshiftCredentials(req.Auth)
	sql := BuildLoadStatement(req.Table, req.Location, delimiter, opts, creds) + ";"
	return Statement{SQL: sql, secrets: req.Auth.secrets()}, nil
}

// UnloadStatement implements Dialect. Single quotes in the query are escaped
// with a backslash as UNLOAD requires.
func (Redshift) UnloadStatement(req UnloadRequest) (Statement, error) {
	if err := validateUnload(req); err != nil {
		return Statement{}, err
	}

	opts := append([]string(nil), req.Options...)
	if req.ParallelOff {
		opts = appendIfMissing(opts, "PARALLEL OFF")
	}
	if req.Header {
		opts = appendIfMissing(opts, "HEADER")
	}
	opts = appendIfMissing(opts, compression.Keyword(req.Compression))

	delimiter := req.Delimiter
	if HasKeyword(opts, "DELIMITER") || ContainsWord(opts, "PARQUET") {
		delimiter = ""
	}

	query := strings.ReplaceAll(strings.TrimRight(strings.TrimSpace(req.Query), ";"), "'", `\'`)
	sql := BuildUnloadStatement(query, req.Location, delimiter, opts, redshiftCredentials(req.Auth)) + ";"
	return Statement{SQL: sql, secrets: req.Auth.secrets()}, nil
}

// UnloadLocation implements Dialect. Redshift appends part suffixes to the
// prefix itself.
func (Redshift) UnloadLocation(prefix string, _ UnloadRequest) string { return prefix }

func redshiftCredentials(a Auth) string {
	switch {
	case a.RoleARN != "":
		return fmt.Sprintf("IAM_ROLE '%s'", a.RoleARN)
	case a.Keys != nil:
		return fmt.Sprintf("CREDENTIALS '%s'", CredentialsString(*a.Keys))
	default:
		return ""
	}
}

func validateLoad(req LoadRequest) error {
	if strings.TrimSpace(req.Table) == "" {
		return errors.New(errors.ErrorTypeValidation, "load requires a table name")
	}
	if strings.TrimSpace(req.Location) == "" {
		return errors.New(errors.ErrorTypeValidation, "load requires a source location")
	}
	return nil
}

func validateUnload(req UnloadRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return errors.New(errors.ErrorTypeValidation, "unload requires a query")
	}
	if strings.TrimSpace(req.Location) == "" {
		return errors.New(errors.ErrorTypeValidation, "unload requires a target location")
	}
	return nil
}
