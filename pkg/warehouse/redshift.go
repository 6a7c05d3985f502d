package warehouse

import (
	"database/sql"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ajitpratap0/stagecopy/pkg/config"
)

// NewRedshiftDriver returns a Driver speaking the Postgres wire protocol
// through pgx. Statements use the simple protocol since Redshift does not
// support every extended-protocol describe.
func NewRedshiftDriver() *SQLDriver {
	return NewSQLDriver(config.KindRedshift, func(cfg config.Connection) (*sql.DB, error) {
		connCfg, err := pgx.ParseConfig(RedshiftDSN(cfg))
		if err != nil {
			return nil, err
		}
		connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
		return stdlib.OpenDB(*connCfg), nil
	})
}

// RedshiftDSN renders cfg as a postgres:// URL. Extra keys become query
// parameters.
func RedshiftDSN(cfg config.Connection) string {
	port := cfg.Port
	if port == 0 {
		port = config.DefaultRedshiftPort
	}

	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	for _, k := range cfg.ExtraKeys() {
		q.Set(k, cfg.Extra[k])
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}
