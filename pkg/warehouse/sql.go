package warehouse

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/config"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
)

// SQLDriver adapts a database/sql driver to Driver.
type SQLDriver struct {
	name   string
	open   func(cfg config.Connection) (*sql.DB, error)
	logger *zap.Logger
}

// NewSQLDriver wraps open, which must return an unconnected *sql.DB for cfg.
func NewSQLDriver(name string, open func(cfg config.Connection) (*sql.DB, error)) *SQLDriver {
	return &SQLDriver{name: name, open: open}
}

// WithLogger sets the driver's logger.
func (d *SQLDriver) WithLogger(l *zap.Logger) *SQLDriver {
	d.logger = l
	return d
}

// Name implements Driver.
func (d *SQLDriver) Name() string { return d.name }

// Connect implements Driver. All statements of the returned connection run on
// one pinned session so session state (USE WAREHOUSE...) persists.
func (d *SQLDriver) Connect(ctx context.Context, cfg config.Connection) (Connection, error) {
	log := logger.OrDefault(d.logger)

	db, err := d.open(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open database handle").
			WithDetail("driver", d.name)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close() // Ignore close error when connection already failed
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect").
			WithDetail("driver", d.name).
			WithDetail("host", cfg.Host)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "database ping failed").
			WithDetail("driver", d.name)
	}

	log.Info("connected to warehouse",
		zap.String("driver", d.name),
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))
	return NewSQLConnection(db, conn), nil
}

// SQLConnection is a Connection backed by a pinned *sql.Conn.
type SQLConnection struct {
	db   *sql.DB
	conn *sql.Conn
}

// NewSQLConnection wraps conn; db, when non-nil, is closed with it.
func NewSQLConnection(db *sql.DB, conn *sql.Conn) *SQLConnection {
	return &SQLConnection{db: db, conn: conn}
}

// Cursor implements Connection.
func (c *SQLConnection) Cursor() Cursor {
	return &sqlCursor{conn: c.conn}
}

// Close implements Connection.
func (c *SQLConnection) Close() error {
	var errs []error
	if err := c.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Aggregate(errors.ErrorTypeConnection, "failed to close connection", errs...)
}

type sqlCursor struct {
	conn    *sql.Conn
	rows    *sql.Rows
	columns []Column
}

func (c *sqlCursor) Execute(ctx context.Context, query string) error {
	c.reset()

	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "statement execution failed")
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to read result columns")
	}

	c.rows = rows
	c.columns = make([]Column, len(types))
	for i, t := range types {
		nullable, _ := t.Nullable()
		c.columns[i] = Column{Name: t.Name(), DatabaseType: t.DatabaseTypeName(), Nullable: nullable}
	}
	return nil
}

func (c *sqlCursor) FetchMany(n int) ([]Row, error) {
	if c.rows == nil {
		return nil, errors.New(errors.ErrorTypeQuery, "no result set to fetch from")
	}

	var out []Row
	for n < 0 || len(out) < n {
		if !c.rows.Next() {
			if err := c.rows.Err(); err != nil {
				return out, errors.Wrap(err, errors.ErrorTypeQuery, "failed to fetch rows")
			}
			break
		}
		values := make([]interface{}, len(c.columns))
		ptrs := make([]interface{}, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := c.rows.Scan(ptrs...); err != nil {
			return out, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan row")
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	return out, nil
}

func (c *sqlCursor) FetchAll() ([]Row, error) {
	return c.FetchMany(-1)
}

func (c *sqlCursor) Description() []Column {
	return c.columns
}

func (c *sqlCursor) Close() error {
	return c.reset()
}

func (c *sqlCursor) reset() error {
	c.columns = nil
	if c.rows == nil {
		return nil
	}
	err := c.rows.Close()
	c.rows = nil
	return err
}
