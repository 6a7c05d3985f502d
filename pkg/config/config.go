// Package config provides the explicit configuration structure for stagecopy.
// A single Config value describes how to reach a warehouse, how to reach the
// object store used for staging, and how the process logs and reports.
//
// The configuration is organized into logical sections:
//   - Connection: warehouse endpoint and login, plus driver passthrough extras
//   - Storage: object-store credentials, region, encryption and transfer tuning
//   - Logging: zap logger settings
//   - Observability: metrics and tracing switches
//
// Example usage:
//
//	cfg := config.NewConfig(config.KindRedshift)
//	cfg.Connection.Host = "cluster.example.us-east-1.redshift.amazonaws.com"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Warehouse kinds understood by stagecopy.
const (
	KindRedshift  = "redshift"
	KindSnowflake = "snowflake"
)

// DefaultRedshiftPort is used when a Redshift connection names no port.
const DefaultRedshiftPort = 5439

// Config is the full configuration of a stagecopy process.
type Config struct {
	// Kind selects the warehouse dialect: redshift or snowflake
	Kind string `yaml:"kind" json:"kind"`

	Connection    Connection          `yaml:"connection" json:"connection"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// Connection holds warehouse connection parameters. Keys the driver
// understands but stagecopy does not model are kept in Extra and passed
// through to the driver untouched.
type Connection struct {
	Host      string `yaml:"host,omitempty" json:"host,omitempty"`
	Port      int    `yaml:"port,omitempty" json:"port,omitempty"`
	Database  string `yaml:"database,omitempty" json:"database,omitempty"`
	User      string `yaml:"user,omitempty" json:"user,omitempty"`
	Password  string `yaml:"password,omitempty" json:"-"`
	Account   string `yaml:"account,omitempty" json:"account,omitempty"`
	Warehouse string `yaml:"warehouse,omitempty" json:"warehouse,omitempty"`
	Schema    string `yaml:"schema,omitempty" json:"schema,omitempty"`
	Role      string `yaml:"role,omitempty" json:"role,omitempty"`
	SSLMode   string `yaml:"sslmode,omitempty" json:"sslmode,omitempty"`

	Extra map[string]string `yaml:",inline" json:"extra,omitempty"`
}

// StorageConfig holds object-store settings used for staging.
type StorageConfig struct {
	// Profile names a shared-config profile
	Profile         string `yaml:"profile,omitempty" json:"profile,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"-"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"-"`
	SessionToken    string `yaml:"session_token,omitempty" json:"-"`
	// RoleARN is assumed through STS when set
	RoleARN    string `yaml:"role_arn,omitempty" json:"role_arn,omitempty"`
	ExternalID string `yaml:"external_id,omitempty" json:"external_id,omitempty"`
	Region     string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint   string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	// KMSKeyID switches upload encryption from AES256 to aws:kms
	KMSKeyID string `yaml:"kms_key_id,omitempty" json:"kms_key_id,omitempty"`
	// WarehouseRoleARN is an IAM role attached to the Redshift cluster; when
	// set, COPY and UNLOAD use IAM_ROLE instead of inline keys
	WarehouseRoleARN string `yaml:"warehouse_role_arn,omitempty" json:"warehouse_role_arn,omitempty"`
	// StorageIntegration is used by Snowflake instead of inline keys
	StorageIntegration string `yaml:"storage_integration,omitempty" json:"storage_integration,omitempty"`
	// CredentialsFile is a GCS service-account key
	CredentialsFile string `yaml:"credentials_file,omitempty" json:"credentials_file,omitempty"`
	UsePathStyle    bool   `yaml:"use_path_style,omitempty" json:"use_path_style,omitempty"`
	Concurrency     int    `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	PartSizeMB      int64  `yaml:"part_size_mb,omitempty" json:"part_size_mb,omitempty"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Encoding    string `yaml:"encoding" json:"encoding"`
	Development bool   `yaml:"development" json:"development"`
}

// ObservabilityConfig toggles metrics and tracing.
type ObservabilityConfig struct {
	EnableMetrics     bool    `yaml:"enable_metrics" json:"enable_metrics"`
	EnableTracing     bool    `yaml:"enable_tracing" json:"enable_tracing"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
	ServiceName       string  `yaml:"service_name" json:"service_name"`
}

// NewConfig returns a Config for kind with defaults applied.
func NewConfig(kind string) *Config {
	cfg := &Config{Kind: kind}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	c.Kind = strings.ToLower(strings.TrimSpace(c.Kind))
	c.Connection.normalize()
	if c.Kind == KindRedshift {
		if c.Connection.Port == 0 {
			c.Connection.Port = DefaultRedshiftPort
		}
		if c.Connection.SSLMode == "" {
			c.Connection.SSLMode = "require"
		}
	}
	if c.Storage.Concurrency <= 0 {
		c.Storage.Concurrency = 5
	}
	if c.Storage.PartSizeMB <= 0 {
		c.Storage.PartSizeMB = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "json"
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "stagecopy"
	}
	if c.Observability.TracingSampleRate == 0 {
		c.Observability.TracingSampleRate = 1.0
	}
}

// Validate checks required fields for the configured warehouse kind.
func (c *Config) Validate() error {
	switch c.Kind {
	case KindRedshift:
		if c.Connection.Host == "" {
			return fmt.Errorf("connection.host is required for redshift")
		}
		if c.Connection.Database == "" {
			return fmt.Errorf("connection.database is required for redshift")
		}
		if c.Connection.User == "" {
			return fmt.Errorf("connection.user is required for redshift")
		}
	case KindSnowflake:
		if c.Connection.Account == "" {
			return fmt.Errorf("connection.account is required for snowflake")
		}
		if c.Connection.User == "" {
			return fmt.Errorf("connection.user is required for snowflake")
		}
	default:
		return fmt.Errorf("unsupported warehouse kind %q", c.Kind)
	}
	if c.Connection.Port < 0 || c.Connection.Port > 65535 {
		return fmt.Errorf("connection.port %d out of range", c.Connection.Port)
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		return fmt.Errorf("observability.tracing_sample_rate must be within [0, 1]")
	}
	return nil
}

// HasStaticKeys reports whether explicit storage keys are configured.
func (s *StorageConfig) HasStaticKeys() bool {
	return s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// PartSizeBytes returns the multipart size in bytes.
func (s *StorageConfig) PartSizeBytes() int64 {
	return s.PartSizeMB * 1024 * 1024
}

// ExtraKeys returns the passthrough keys in sorted order.
func (c *Connection) ExtraKeys() []string {
	keys := make([]string, 0, len(c.Extra))
	for k := range c.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalize folds the dbname/username aliases into their canonical fields.
func (c *Connection) normalize() {
	aliases := map[string]*string{"dbname": &c.Database, "username": &c.User}
	for alias, field := range aliases {
		v, ok := c.Extra[alias]
		if !ok {
			continue
		}
		if *field == "" {
			*field = v
		}
		delete(c.Extra, alias)
	}
	if v, ok := c.Extra["port"]; ok && c.Port == 0 {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
			delete(c.Extra, "port")
		}
	}
}

// ConnectionFromMap builds a Connection from the flat mapping returned by
// ReadConfig. Unknown keys become passthrough extras.
func ConnectionFromMap(m map[string]interface{}) (Connection, error) {
	var c Connection
	for k, v := range m {
		s := scalarString(v)
		switch strings.ToLower(k) {
		case "host":
			c.Host = s
		case "port":
			if s == "" {
				continue
			}
			p, err := strconv.Atoi(s)
			if err != nil {
				return c, fmt.Errorf("invalid port %q: %w", s, err)
			}
			c.Port = p
		case "database", "dbname":
			c.Database = s
		case "user", "username":
			c.User = s
		case "password":
			c.Password = s
		case "account":
			c.Account = s
		case "warehouse":
			c.Warehouse = s
		case "schema":
			c.Schema = s
		case "role":
			c.Role = s
		case "sslmode":
			c.SSLMode = s
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]string)
			}
			c.Extra[k] = s
		}
	}
	return c, nil
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
