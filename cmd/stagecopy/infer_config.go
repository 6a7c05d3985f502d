package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/stagecopy/pkg/config"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
)

func newInferConfigCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer-config",
		Short: "Print the key/value mapping read from --config",
		Long: `Print the key/value mapping read from --config with secrets masked.
With --write, the resolved configuration (defaults applied, flat files moved
into sections) is also saved as YAML.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString("config")
			if path == "" {
				return errors.New(errors.ErrorTypeConfig, "--config is required")
			}
			m, err := config.ReadConfig(path)
			if err != nil {
				return err
			}
			if out, _ := cmd.Flags().GetString("write"); out != "" {
				cfg, err := config.LoadFile(path, v.GetString("warehouse"))
				if err != nil {
					return err
				}
				if err := config.Save(out, cfg); err != nil {
					return err
				}
			}
			masked := make(map[string]interface{}, len(m))
			for k, val := range m {
				masked[k] = maskSecrets(k, val)
			}
			format := v.GetString("output")
			if format == "text" {
				format = "json"
			}
			return printResult(cmd.OutOrStdout(), format, masked)
		},
	}
	cmd.Flags().String("write", "", "Save the resolved configuration to this YAML file")
	return cmd
}

var secretKeys = map[string]bool{
	"password":          true,
	"secret_access_key": true,
	"session_token":     true,
	"access_key_id":     true,
}

func maskSecrets(key string, val interface{}) interface{} {
	if secretKeys[key] {
		return "****"
	}
	if nested, ok := val.(map[string]interface{}); ok {
		out := make(map[string]interface{}, len(nested))
		for k, v := range nested {
			out[k] = maskSecrets(k, v)
		}
		return out
	}
	return val
}
