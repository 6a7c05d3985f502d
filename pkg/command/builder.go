// Package command assembles warehouse bulk-load and bulk-export statements.
//
// Statements are literal SQL text: bulk commands cannot be parameterized, so
// table names, locations, delimiters and queries are inserted verbatim. The
// caller is responsible for trusting that input.
package command

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/stagecopy/pkg/storage"
)

// Statement is generated SQL plus the secrets embedded in it.
type Statement struct {
	SQL     string
	secrets []string
}

// String returns the SQL text.
func (s Statement) String() string { return s.SQL }

// Redacted returns the SQL with embedded secrets masked, for logging.
func (s Statement) Redacted() string {
	out := s.SQL
	for _, secret := range s.secrets {
		if secret != "" {
			out = strings.ReplaceAll(out, secret, "****")
		}
	}
	return out
}

// Auth describes how the warehouse reaches object storage. At most one of
// the fields is used, in the order RoleARN, StorageIntegration, Keys.
type Auth struct {
	// Keys are live storage credentials
	Keys *storage.Credentials
	// RoleARN is an IAM role attached to a Redshift cluster
	RoleARN string
	// StorageIntegration is a Snowflake storage integration name
	StorageIntegration string
}

func (a Auth) secrets() []string {
	if a.Keys == nil {
		return nil
	}
	return []string{a.Keys.SecretAccessKey, a.Keys.SessionToken}
}

// CredentialsString renders keys as
// aws_access_key_id=..;aws_secret_access_key=..[;token=..].
func CredentialsString(c storage.Credentials) string {
	s := fmt.Sprintf("aws_access_key_id=%s;aws_secret_access_key=%s", c.AccessKeyID, c.SecretAccessKey)
	if c.SessionToken != "" {
		s += ";token=" + c.SessionToken
	}
	return s
}

// BuildLoadStatement emits
// COPY <table> FROM '<location>' <credentials> DELIMITER '<delimiter>' <options...>.
// An empty delimiter or credentials clause is omitted.
func BuildLoadStatement(table, location, delimiter string, options []string, credentials string) string {
	parts := []string{fmt.Sprintf("COPY %s FROM '%s'", table, location)}
	if credentials != "" {
		parts = append(parts, credentials)
	}
	if delimiter != "" {
		parts = append(parts, fmt.Sprintf("DELIMITER '%s'", delimiter))
	}
	parts = append(parts, options...)
	return strings.Join(parts, " ")
}

// BuildUnloadStatement emits
// UNLOAD ('<query>') TO '<location>' <credentials> DELIMITER '<delimiter>' <options...>
// one clause per line. query is inserted as given.
func BuildUnloadStatement(query, location, delimiter string, options []string, credentials string) string {
	lines := []string{
		fmt.Sprintf("UNLOAD ('%s')", query),
		fmt.Sprintf("TO '%s'", location),
	}
	if credentials != "" {
		lines = append(lines, credentials)
	}
	opts := options
	if delimiter != "" {
		opts = append([]string{fmt.Sprintf("DELIMITER '%s'", delimiter)}, options...)
	}
	if len(opts) > 0 {
		lines = append(lines, strings.Join(opts, " "))
	}
	return strings.Join(lines, "\n")
}
