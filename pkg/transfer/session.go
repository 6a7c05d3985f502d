// Package transfer moves tabular data between local files, object storage
// and a warehouse using bulk COPY/UNLOAD statements.
//
// A Session holds one warehouse connection and the storage gateway used for
// staging; the dialect decides the SQL. Load and Unload run as a sequence of
// stages with first-failure-wins error reporting and best-effort cleanup.
//
//	err := transfer.WithSession(ctx, driver, command.Redshift{}, gateway, cfg, func(s *transfer.Session) error {
//	    _, err := s.Load(ctx, transfer.LoadOptions{Source: "events.csv", Table: "events", Bucket: "staging"})
//	    return err
//	})
package transfer

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/command"
	"github.com/ajitpratap0/stagecopy/pkg/config"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
	"github.com/ajitpratap0/stagecopy/pkg/metrics"
	"github.com/ajitpratap0/stagecopy/pkg/storage"
	"github.com/ajitpratap0/stagecopy/pkg/warehouse"
)

// Session is an open warehouse connection paired with a staging gateway. It
// is not safe for concurrent use.
type Session struct {
	cfg     *config.Config
	driver  warehouse.Driver
	dialect command.Dialect
	gateway *storage.Gateway
	creds   storage.CredentialsProvider
	logger  *zap.Logger

	conn   warehouse.Connection
	cursor warehouse.Cursor
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithCredentials sets where the storage credentials handed to the warehouse
// come from. By default the gateway's client is used when it can provide
// them.
func WithCredentials(p storage.CredentialsProvider) Option {
	return func(s *Session) { s.creds = p }
}

// Open connects through driver and runs the dialect's post-connect
// statements.
func Open(ctx context.Context, driver warehouse.Driver, dialect command.Dialect, gateway *storage.Gateway, cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.NewConfig(dialect.Name())
	}
	s := &Session{
		cfg:     cfg,
		driver:  driver,
		dialect: dialect,
		gateway: gateway,
	}
	if gateway != nil {
		if p, ok := gateway.Client().(storage.CredentialsProvider); ok {
			s.creds = p
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrDefault(s.logger)
	ctx = s.withWarehouse(ctx)

	conn, err := driver.Connect(ctx, cfg.Connection)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "error creating connection").
			WithDetail("warehouse", dialect.Name())
	}
	s.conn = conn
	s.cursor = conn.Cursor()
	metrics.ActiveSessions.WithLabelValues(dialect.Name()).Inc()
	s.log(ctx).Info("connected to warehouse")

	for _, stmt := range dialect.PostConnect(cfg.Connection) {
		if err := s.Execute(ctx, stmt); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// WithSession opens a session, runs fn and closes the session on every exit
// path. A close failure is returned only when fn succeeded.
func WithSession(ctx context.Context, driver warehouse.Driver, dialect command.Dialect, gateway *storage.Gateway, cfg *config.Config, fn func(*Session) error, opts ...Option) (err error) {
	s, err := Open(ctx, driver, dialect, gateway, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			if err == nil {
				err = cerr
			} else {
				s.log(ctx).Warn("error closing session", zap.Error(cerr))
			}
		}
	}()
	return fn(s)
}

// Close releases the cursor and the connection. It is safe to call twice.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	var errs []error
	if s.cursor != nil {
		if err := s.cursor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	s.conn, s.cursor = nil, nil
	metrics.ActiveSessions.WithLabelValues(s.dialect.Name()).Dec()
	s.log(context.Background()).Info("disconnected from warehouse")
	return errors.Aggregate(errors.ErrorTypeConnection, "error disconnecting", errs...)
}

// withWarehouse names the session's warehouse in ctx for logging.
func (s *Session) withWarehouse(ctx context.Context) context.Context {
	if ctx.Value(logger.WarehouseKey) != nil {
		return ctx
	}
	return logger.ContextWith(ctx, logger.WarehouseKey, s.dialect.Name())
}

// log returns the session logger with the transfer fields of ctx.
func (s *Session) log(ctx context.Context) *zap.Logger {
	return logger.WithContext(s.withWarehouse(ctx), s.logger)
}

// Dialect returns the session's SQL dialect.
func (s *Session) Dialect() command.Dialect { return s.dialect }

// Gateway returns the staging gateway.
func (s *Session) Gateway() *storage.Gateway { return s.gateway }

// Execute runs sql on the session cursor.
func (s *Session) Execute(ctx context.Context, sql string) error {
	return s.execute(ctx, command.Statement{SQL: sql})
}

func (s *Session) execute(ctx context.Context, stmt command.Statement) error {
	if s.cursor == nil {
		return errors.New(errors.ErrorTypeConnection, "cannot execute query on a closed session")
	}
	log := s.log(ctx)
	log.Debug("running statement", zap.String("sql", stmt.Redacted()))

	start := time.Now()
	if err := s.cursor.Execute(ctx, stmt.SQL); err != nil {
		log.Error("error running statement", zap.String("sql", stmt.Redacted()), zap.Error(err))
		if errors.IsType(err, errors.ErrorTypeQuery) {
			return err
		}
		return errors.Wrap(err, errors.ErrorTypeQuery, "error running statement")
	}
	log.Info("statement completed", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// ColumnNames returns the lower-cased column names of the current result.
func (s *Session) ColumnNames() []string {
	if s.cursor == nil {
		return nil
	}
	desc := s.cursor.Description()
	names := make([]string, len(desc))
	for i, c := range desc {
		names[i] = strings.ToLower(c.Name)
	}
	return names
}

// FetchAll returns every remaining row of the current result.
func (s *Session) FetchAll() ([]warehouse.Row, error) {
	if s.cursor == nil {
		return nil, errors.New(errors.ErrorTypeConnection, "cannot fetch from a closed session")
	}
	return s.cursor.FetchAll()
}

// FetchMany returns up to n rows of the current result.
func (s *Session) FetchMany(n int) ([]warehouse.Row, error) {
	if s.cursor == nil {
		return nil, errors.New(errors.ErrorTypeConnection, "cannot fetch from a closed session")
	}
	return s.cursor.FetchMany(n)
}

// auth decides how the warehouse reaches storage: a warehouse-side role or
// integration when configured, otherwise the current storage keys.
func (s *Session) auth(ctx context.Context) (command.Auth, error) {
	st := s.cfg.Storage
	switch s.dialect.Name() {
	case config.KindRedshift:
		if st.WarehouseRoleARN != "" {
			return command.Auth{RoleARN: st.WarehouseRoleARN}, nil
		}
	case config.KindSnowflake:
		if st.StorageIntegration != "" {
			return command.Auth{StorageIntegration: st.StorageIntegration}, nil
		}
	}
	if s.creds == nil {
		return command.Auth{}, errors.New(errors.ErrorTypeCredentials, "no storage credentials available for the warehouse")
	}
	c, err := s.creds.Credentials(ctx)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeCredentials) {
			return command.Auth{}, err
		}
		return command.Auth{}, errors.Wrap(err, errors.ErrorTypeCredentials, "failed to retrieve storage credentials")
	}
	return command.Auth{Keys: &c}, nil
}

func (s *Session) scheme() string {
	if s.gateway == nil {
		return storage.SchemeS3
	}
	return s.gateway.Client().Scheme()
}
