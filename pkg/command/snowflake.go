package command

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/stagecopy/pkg/compression"
	"github.com/ajitpratap0/stagecopy/pkg/config"
)

// Snowflake builds COPY INTO statements for Snowflake, reading from and
// writing to external locations or named stages.
type Snowflake struct{}

// snowflakeFormatDefaults go inside FILE_FORMAT unless overridden.
var snowflakeFormatDefaults = []string{"DATE_FORMAT = 'AUTO'", "TIMESTAMP_FORMAT = 'AUTO'"}

// Name implements Dialect.
func (Snowflake) Name() string { return config.KindSnowflake }

// DefaultLoadOptions implements Dialect.
func (Snowflake) DefaultLoadOptions() []string { return []string{"TRUNCATECOLUMNS = TRUE"} }

// PostConnect implements Dialect. The session is pointed at the configured
// warehouse and database.
func (Snowflake) PostConnect(conn config.Connection) []string {
	var stmts []string
	if conn.Warehouse != "" {
		stmts = append(stmts, "USE WAREHOUSE "+conn.Warehouse)
	}
	if conn.Database != "" {
		stmts = append(stmts, "USE DATABASE "+conn.Database)
	}
	if conn.Schema != "" {
		stmts = append(stmts, "USE SCHEMA "+conn.Schema)
	}
	return stmts
}

// ColumnNamesQuery implements Dialect.
func (Snowflake) ColumnNamesQuery(query string) string { return columnNamesQuery(query) }

// LoadStatement implements Dialect. IGNOREHEADER options are translated to
// SKIP_HEADER so callers can use one header syntax for both warehouses.
func (s Snowflake) LoadStatement(req LoadRequest) (Statement, error) {
	if err := validateLoad(req); err != nil {
		return Statement{}, err
	}

	format := s.fileFormat(req.Delimiter, req.HeaderRows, req.Compression, req.FormatOptions)
	copyOpts := MergeOptions(s.DefaultLoadOptions(), withoutKeyword(req.Options, "IGNOREHEADER"))

	b := newSQLBuilder(256)
	defer b.Close()
	b.Clause("COPY INTO " + req.Table).
		Clause(fmt.Sprintf("FROM '%s'", req.Location)).
		Clause(snowflakeCredentials(req.Location, req.Auth)).
		Clause(format)
	for _, o := range copyOpts {
		b.Clause(o)
	}
	return Statement{SQL: b.String(), secrets: req.Auth.secrets()}, nil
}

// UnloadStatement implements Dialect. The query is embedded as a subquery.
func (s Snowflake) UnloadStatement(req UnloadRequest) (Statement, error) {
	if err := validateUnload(req); err != nil {
		return Statement{}, err
	}

	algo := req.Compression
	b := newSQLBuilder(256)
	defer b.Close()
	b.Clause(fmt.Sprintf("COPY INTO '%s'", s.UnloadLocation(req.Location, req))).
		Clause(fmt.Sprintf("FROM (%s)", strings.TrimRight(strings.TrimSpace(req.Query), ";"))).
		Clause(snowflakeCredentials(req.Location, req.Auth))

	format := []string{"TYPE = CSV"}
	if req.Delimiter != "" && !HasKeyword(req.Options, "FIELD_DELIMITER") {
		format = append(format, fmt.Sprintf("FIELD_DELIMITER = '%s'", req.Delimiter))
	}
	if kw := compression.Keyword(algo); kw != "" {
		format = append(format, "COMPRESSION = "+kw)
	} else {
		format = append(format, "COMPRESSION = NONE")
	}
	b.Clause("FILE_FORMAT = (" + strings.Join(format, " ") + ")")

	opts := append([]string(nil), req.Options...)
	if req.Header {
		opts = appendIfMissing(opts, "HEADER = TRUE")
	}
	if req.ParallelOff {
		opts = appendIfMissing(opts, "SINGLE = TRUE")
	}
	for _, o := range opts {
		b.Clause(o)
	}
	return Statement{SQL: b.String(), secrets: req.Auth.secrets()}, nil
}

// UnloadLocation implements Dialect. A single-file export is written to
// exactly the given path, so the compression extension is added to it.
func (Snowflake) UnloadLocation(prefix string, req UnloadRequest) string {
	if req.ParallelOff {
		return prefix + ".csv" + compression.Extension(req.Compression)
	}
	return prefix
}

// PutStatement uploads a local file to an internal stage.
func (Snowflake) PutStatement(localPath, stage string, parallel int, overwrite bool) Statement {
	if parallel <= 0 {
		parallel = 4
	}
	return Statement{SQL: fmt.Sprintf("PUT 'file://%s' %s PARALLEL=%d AUTO_COMPRESS=FALSE OVERWRITE=%s",
		localPath, stageRef(stage), parallel, strings.ToUpper(fmt.Sprint(overwrite)))}
}

// GetStatement downloads the files under stage into localDir.
func (Snowflake) GetStatement(stage, localDir string, parallel int) Statement {
	if parallel <= 0 {
		parallel = 4
	}
	return Statement{SQL: fmt.Sprintf("GET %s 'file://%s/' PARALLEL=%d",
		stageRef(stage), strings.TrimRight(localDir, "/"), parallel)}
}

// RemoveStatement deletes the files under stage.
func (Snowflake) RemoveStatement(stage string) Statement {
	return Statement{SQL: "REMOVE " + stageRef(stage)}
}

func (Snowflake) fileFormat(delimiter string, headerRows int, algo compression.Algorithm, formatOpts []string) string {
	base := []string{"TYPE = CSV"}
	if delimiter != "" {
		base = append(base, fmt.Sprintf("FIELD_DELIMITER = '%s'", delimiter))
	}
	if headerRows > 0 {
		base = append(base, fmt.Sprintf("SKIP_HEADER = %d", headerRows))
	}
	if kw := compression.Keyword(algo); kw != "" {
		base = append(base, "COMPRESSION = "+kw)
	}
	opts := MergeOptions(append(base, snowflakeFormatDefaults...), formatOpts)
	return "FILE_FORMAT = (" + strings.Join(opts, " ") + ")"
}

func snowflakeCredentials(location string, a Auth) string {
	if strings.HasPrefix(location, "@") {
		return ""
	}
	switch {
	case a.StorageIntegration != "":
		return "STORAGE_INTEGRATION = " + a.StorageIntegration
	case a.Keys != nil:
		c := fmt.Sprintf("CREDENTIALS = (AWS_KEY_ID='%s' AWS_SECRET_KEY='%s'", a.Keys.AccessKeyID, a.Keys.SecretAccessKey)
		if a.Keys.SessionToken != "" {
			c += fmt.Sprintf(" AWS_TOKEN='%s'", a.Keys.SessionToken)
		}
		return c + ")"
	default:
		return ""
	}
}

func stageRef(stage string) string {
	if strings.HasPrefix(stage, "@") {
		return stage
	}
	return "@" + stage
}

func withoutKeyword(options []string, keyword string) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		if Keyword(o) != keyword {
			out = append(out, o)
		}
	}
	return out
}
