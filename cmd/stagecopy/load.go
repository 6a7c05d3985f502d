package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/stagecopy/pkg/command"
	"github.com/ajitpratap0/stagecopy/pkg/compression"
	"github.com/ajitpratap0/stagecopy/pkg/storage"
	"github.com/ajitpratap0/stagecopy/pkg/transfer"
)

func newLoadCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Stage a local file or directory and COPY it into a table",
		Example: `  stagecopy load --config redshift.yaml --file events.csv --bucket s3://staging/loads \
    --table public.events --splits 4 --header --copy-option "DELIMITER ','"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptionsFrom(cmd, v)
			if err != nil {
				return err
			}
			return runTransfer(cmd, v, func(ctx context.Context, s *transfer.Session, loc storage.URL) (interface{}, error) {
				opts.Bucket = loc.Bucket
				opts.Folder = folderFor(loc, opts.Folder)
				return s.Load(ctx, opts)
			})
		},
	}

	f := cmd.Flags()
	f.StringP("file", "f", "", "Local file or directory to load (required)")
	f.StringP("table", "t", "", "Target table (required)")
	f.StringP("bucket", "b", "", "Staging bucket, optionally as s3://bucket/prefix or gs://bucket/prefix (required)")
	f.String("folder", "", "Key prefix for staged files")
	f.StringP("delimiter", "d", transfer.DefaultLoadDelimiter, "Field delimiter")
	f.Int("splits", 1, "Split a single file into this many parts before upload")
	f.Bool("no-compress", false, "Upload files uncompressed")
	f.String("compression", "gzip", "Compression for staged files (gzip, zstd)")
	f.Bool("keep-storage", false, "Keep staged files after the load")
	f.Bool("header", false, "Source files start with a header line")
	f.StringArray("copy-option", nil, "COPY option overriding the defaults by keyword (repeatable)")
	f.StringArray("format-option", nil, "Snowflake FILE_FORMAT option (repeatable)")
	f.String("work-dir", "", "Directory for intermediate files")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("bucket")
	return cmd
}

// loadOptionsFrom reads the load flags. Repeatable options are read from the
// flag set directly since viper splits them as CSV.
func loadOptionsFrom(cmd *cobra.Command, v *viper.Viper) (transfer.LoadOptions, error) {
	algo, err := compression.ParseAlgorithm(v.GetString("compression"))
	if err != nil {
		return transfer.LoadOptions{}, err
	}
	copyOpts, _ := cmd.Flags().GetStringArray("copy-option")
	formatOpts, _ := cmd.Flags().GetStringArray("format-option")
	if v.GetBool("header") && !command.HasKeyword(copyOpts, "IGNOREHEADER") {
		copyOpts = append(copyOpts, "IGNOREHEADER 1")
	}
	return transfer.LoadOptions{
		Source:        v.GetString("file"),
		Table:         v.GetString("table"),
		Folder:        v.GetString("folder"),
		Delimiter:     v.GetString("delimiter"),
		Splits:        v.GetInt("splits"),
		NoCompress:    v.GetBool("no-compress"),
		Compression:   algo,
		KeepStorage:   v.GetBool("keep-storage"),
		CopyOptions:   copyOpts,
		FormatOptions: formatOpts,
		WorkDir:       v.GetString("work-dir"),
	}, nil
}
