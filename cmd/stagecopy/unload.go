package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/stagecopy/pkg/compression"
	"github.com/ajitpratap0/stagecopy/pkg/storage"
	"github.com/ajitpratap0/stagecopy/pkg/transfer"
)

func newUnloadCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unload",
		Short: "UNLOAD a query result to object storage and optionally to a local file",
		Example: `  stagecopy unload --config redshift.yaml --query "SELECT * FROM public.events" \
    --bucket s3://exports --export-path events.csv --parallel-off --header`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := unloadOptionsFrom(cmd, v)
			if err != nil {
				return err
			}
			return runTransfer(cmd, v, func(ctx context.Context, s *transfer.Session, loc storage.URL) (interface{}, error) {
				opts.Bucket = loc.Bucket
				opts.Folder = folderFor(loc, opts.Folder)
				return s.Unload(ctx, opts)
			})
		},
	}

	f := cmd.Flags()
	f.StringP("query", "q", "", "Query whose result is exported (required)")
	f.StringP("bucket", "b", "", "Export bucket, optionally as s3://bucket/prefix (required)")
	f.String("folder", "", "Key prefix for exported files")
	f.String("file-prefix", "", "Name prefix of exported files; unique per run by default")
	f.StringP("export-path", "e", "", "Download and join the export into this local file")
	f.StringP("delimiter", "d", transfer.DefaultUnloadDelimiter, "Field delimiter")
	f.Bool("parallel-off", false, "Export to a single file")
	f.Bool("header", false, "Write column names as the first line")
	f.Bool("keep-storage", false, "Keep exported files after a local export")
	f.String("compression", "gzip", "Compression of exported files (gzip, zstd, none)")
	f.StringArray("unload-option", nil, "Extra UNLOAD option (repeatable)")
	f.String("raw-unload-dir", "", "Directory for downloaded parts")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("bucket")
	return cmd
}

func unloadOptionsFrom(cmd *cobra.Command, v *viper.Viper) (transfer.UnloadOptions, error) {
	algo, err := compression.ParseAlgorithm(v.GetString("compression"))
	if err != nil {
		return transfer.UnloadOptions{}, err
	}
	unloadOpts, _ := cmd.Flags().GetStringArray("unload-option")
	return transfer.UnloadOptions{
		Query:         v.GetString("query"),
		Folder:        v.GetString("folder"),
		FilePrefix:    v.GetString("file-prefix"),
		ExportPath:    v.GetString("export-path"),
		Delimiter:     v.GetString("delimiter"),
		ParallelOff:   v.GetBool("parallel-off"),
		IncludeHeader: v.GetBool("header"),
		KeepStorage:   v.GetBool("keep-storage"),
		Options:       unloadOpts,
		RawUnloadDir:  v.GetString("raw-unload-dir"),
		Compression:   algo,
	}, nil
}
