package warehouse

import (
	"database/sql"

	"github.com/snowflakedb/gosnowflake"

	"github.com/ajitpratap0/stagecopy/pkg/config"
)

// NewSnowflakeDriver returns a Driver backed by gosnowflake.
func NewSnowflakeDriver() *SQLDriver {
	return NewSQLDriver(config.KindSnowflake, func(cfg config.Connection) (*sql.DB, error) {
		dsn, err := SnowflakeDSN(cfg)
		if err != nil {
			return nil, err
		}
		return sql.Open("snowflake", dsn)
	})
}

// SnowflakeDSN renders cfg through gosnowflake. Extra keys are passed as
// session parameters.
func SnowflakeDSN(cfg config.Connection) (string, error) {
	sf := &gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
		Host:      cfg.Host,
		Port:      cfg.Port,
	}
	if len(cfg.Extra) > 0 {
		sf.Params = make(map[string]*string, len(cfg.Extra))
		for _, k := range cfg.ExtraKeys() {
			v := cfg.Extra[k]
			sf.Params[k] = &v
		}
	}
	return gosnowflake.DSN(sf)
}
