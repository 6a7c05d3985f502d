package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/stagecopy/pkg/errors"
)

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	content, err := readExpanded(filePath)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(content, config); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").
			WithDetail("path", filePath)
	}

	return nil
}

// ReadConfig parses a YAML document into a flat key/value mapping. It fails
// when the file is missing, unparseable, or not a mapping at the top level.
func ReadConfig(filePath string) (map[string]interface{}, error) {
	content, err := readExpanded(filePath)
	if err != nil {
		return nil, err
	}

	var doc interface{}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").
			WithDetail("path", filePath)
	}
	m, ok := doc.(map[string]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "config %s is not a key/value mapping", filePath)
	}
	return m, nil
}

// LoadFile reads a Config from filePath. Both the sectioned layout
// (kind/connection/storage/...) and a flat mapping of connection keys are
// accepted; kind is only used when the file does not name one itself.
func LoadFile(filePath, kind string) (*Config, error) {
	m, err := ReadConfig(filePath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if isSectioned(m) {
		if err := Load(filePath, cfg); err != nil {
			return nil, err
		}
	} else {
		conn, err := ConnectionFromMap(m)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid connection settings").
				WithDetail("path", filePath)
		}
		cfg.Connection = conn
	}
	if cfg.Kind == "" {
		cfg.Kind = kind
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Save writes cfg to filePath as sectioned YAML that LoadFile reads back.
// The file may hold secrets and is created owner-only.
func Save(filePath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to encode config")
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write config file").
			WithDetail("path", filePath)
	}
	return nil
}

func isSectioned(m map[string]interface{}) bool {
	for _, k := range []string{"kind", "connection", "storage", "logging", "observability"} {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func readExpanded(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}
	return []byte(substituteEnvVars(string(data))), nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
