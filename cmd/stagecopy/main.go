package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/command"
	"github.com/ajitpratap0/stagecopy/pkg/config"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
	"github.com/ajitpratap0/stagecopy/pkg/observability"
	"github.com/ajitpratap0/stagecopy/pkg/storage"
	"github.com/ajitpratap0/stagecopy/pkg/transfer"
	"github.com/ajitpratap0/stagecopy/pkg/warehouse"
)

var version = "0.1.0"

func main() {
	err := newRootCommand().Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("STAGECOPY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "stagecopy",
		Short: "Bulk load and unload warehouse tables through object storage",
		Long: `stagecopy moves delimited files into Redshift or Snowflake by staging them
in S3 or GCS and issuing COPY, and exports query results back out with UNLOAD.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return logger.Init(logger.Config{Level: v.GetString("log-level"), Encoding: "console"})
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to the YAML connection config")
	root.PersistentFlags().StringP("warehouse", "w", config.KindRedshift, "Warehouse kind (redshift, snowflake)")
	root.PersistentFlags().StringP("output", "o", "text", "Result format (text, json)")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Duration("timeout", 2*time.Hour, "Transfer timeout")

	root.AddCommand(
		newLoadCommand(v),
		newUnloadCommand(v),
		newInferConfigCommand(v),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "stagecopy v%s\n", version)
				fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
				fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
	)
	return root
}

// loadConfig reads the config file named by --config, or starts from
// defaults for --warehouse when there is none.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	kind := strings.ToLower(v.GetString("warehouse"))
	path := v.GetString("config")
	if path == "" {
		return config.NewConfig(kind), nil
	}
	cfg, err := config.LoadFile(path, kind)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid config").WithDetail("path", path)
	}
	return cfg, nil
}

// newClient builds the object-store client for the scheme of a bucket URL.
func newClient(ctx context.Context, cfg *config.Config, scheme string) (storage.Client, func() error, error) {
	switch scheme {
	case storage.SchemeGCS:
		c, err := storage.NewGCSClient(ctx, cfg.Storage)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		c, err := storage.NewS3Client(ctx, cfg.Storage)
		if err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	}
}

// runTransfer resolves config, storage and warehouse, opens a session and
// hands it to fn along with the parsed bucket location.
func runTransfer(cmd *cobra.Command, v *viper.Viper, fn func(ctx context.Context, s *transfer.Session, loc storage.URL) (interface{}, error)) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	loc, err := storage.ParseURL(v.GetString("bucket"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, v.GetDuration("timeout"))
	defer cancel()

	ctx = logger.ContextWith(ctx, logger.WarehouseKey, cfg.Kind)
	base := logger.With(zap.String("component", "stagecopy-cli"))
	log := logger.WithContext(ctx, base)

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.Init(observability.Config{
			ServiceName:    cfg.Observability.ServiceName,
			ServiceVersion: version,
			SampleRate:     cfg.Observability.TracingSampleRate,
			Writer:         os.Stderr,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}

	dialect, err := command.ForKind(cfg.Kind)
	if err != nil {
		return err
	}
	driver, err := warehouse.ForKind(cfg.Kind)
	if err != nil {
		return err
	}
	client, closeClient, err := newClient(ctx, cfg, loc.Scheme)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeClient(); err != nil {
			log.Warn("failed to close storage client", zap.Error(err))
		}
	}()
	gw := storage.NewGateway(client,
		storage.WithConcurrency(cfg.Storage.Concurrency),
		storage.WithKMSKey(cfg.Storage.KMSKeyID),
		storage.WithLogger(base))

	return transfer.WithSession(ctx, driver, dialect, gw, cfg, func(s *transfer.Session) error {
		res, err := fn(ctx, s, loc)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), v.GetString("output"), res)
	}, transfer.WithLogger(base))
}

// folderFor joins a key prefix given in the bucket URL with --folder.
func folderFor(loc storage.URL, folder string) string {
	if loc.Key == "" {
		return folder
	}
	if folder == "" {
		return strings.TrimSuffix(loc.Key, "/")
	}
	return storage.JoinKey(loc.Key, folder)
}
