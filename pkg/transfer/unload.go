package transfer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/internal/pipeline"
	"github.com/ajitpratap0/stagecopy/pkg/command"
	"github.com/ajitpratap0/stagecopy/pkg/compression"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/fileutil"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
	"github.com/ajitpratap0/stagecopy/pkg/metrics"
	"github.com/ajitpratap0/stagecopy/pkg/storage"
)

// DefaultUnloadDelimiter separates fields of exported files when none is given.
const DefaultUnloadDelimiter = ","

// UnloadOptions describes one export of a query result.
type UnloadOptions struct {
	Query  string
	Bucket string
	Folder string
	// FilePrefix names the exported objects; unique per transfer by default
	FilePrefix string
	// ExportPath, when set, receives the concatenated result locally
	ExportPath string
	// Delimiter defaults to DefaultUnloadDelimiter
	Delimiter string
	// ParallelOff asks the warehouse for a single output object
	ParallelOff bool
	// Options are passed through to the UNLOAD statement
	Options []string
	// IncludeHeader writes the column names as the first line
	IncludeHeader bool
	// KeepStorage leaves the exported objects in place after a local export
	KeepStorage bool
	// RawUnloadDir receives downloaded parts; a temporary directory by default
	RawUnloadDir string
	// Compression of the exported objects, gzip by default
	Compression compression.Algorithm
}

// UnloadResult describes a completed unload.
type UnloadResult struct {
	TransferID string
	// Location is the storage prefix the warehouse wrote to
	Location string
	// Keys are the objects found under Location after the export
	Keys []string
	// Columns is set when a header was requested
	Columns []string
	// ExportPath is the local file written, if any
	ExportPath string
	Statement  string
	Stages     []pipeline.StageResult
}

type unloadState struct {
	opts     UnloadOptions
	prefix   string
	location string
	listKey  string
	columns  []string
	stmt     command.Statement
	keys     []string
	parts    []string
	plain    []string
}

// Unload exports the result of opts.Query to object storage and, when
// ExportPath is set, downloads the parts and joins them into one local file.
// Exported objects are removed only after a successful local export. When
// the download or the concatenation fails they stay in storage.
func (s *Session) Unload(ctx context.Context, opts UnloadOptions) (*UnloadResult, error) {
	id := uuid.NewString()
	ctx = s.withWarehouse(logger.ContextWith(ctx, logger.TransferIDKey, id))
	collector := metrics.NewCollector("unload")
	gw := s.gateway.WithMetrics(collector)

	st := &unloadState{opts: opts}
	p := pipeline.New(pipeline.Config{Flow: "unload", Warehouse: s.dialect.Name(), Logger: s.logger, Metrics: collector})

	p.AddStage(StagePrepare, func(context.Context) error {
		return s.prepareUnload(st, id)
	})
	if opts.IncludeHeader && opts.ExportPath != "" {
		p.AddStage(StageDescribe, func(ctx context.Context) error {
			cols, err := s.describe(ctx, st.opts.Query)
			st.columns = cols
			return err
		})
	}
	p.AddStage(StageBuildCommand, func(ctx context.Context) error {
		auth, err := s.auth(ctx)
		if err != nil {
			return err
		}
		req := command.UnloadRequest{
			Query:       st.opts.Query,
			Location:    st.prefix,
			Delimiter:   st.opts.Delimiter,
			Options:     st.opts.Options,
			ParallelOff: st.opts.ParallelOff,
			// a local export gets a single header line written here instead
			Header:      st.opts.IncludeHeader && st.opts.ExportPath == "",
			Compression: st.opts.Compression,
			Auth:        auth,
		}
		loc := s.dialect.UnloadLocation(st.prefix, req)
		u, err := storage.ParseURL(loc)
		if err != nil {
			return err
		}
		st.location, st.listKey = loc, u.Key
		st.stmt, err = s.dialect.UnloadStatement(req)
		return err
	})
	p.AddStage(StageExecute, func(ctx context.Context) error {
		return s.execute(ctx, st.stmt)
	})

	if opts.ExportPath != "" {
		p.AddStage(StageDownload, func(ctx context.Context) error {
			return s.downloadParts(ctx, gw, st, p)
		})
		p.AddStage(StageDecompress, func(context.Context) error {
			return decompressParts(st)
		})
		p.AddStage(StageConcatenate, func(context.Context) error {
			return concatenateParts(st)
		})
		if !opts.KeepStorage {
			p.AddStage(StageDelete, func(ctx context.Context) error {
				return gw.DeleteObjects(ctx, st.opts.Bucket, st.keys)
			})
		}
	}

	result, err := p.Run(ctx)
	res := &UnloadResult{
		TransferID: id,
		Location:   st.location,
		Keys:       st.keys,
		Columns:    st.columns,
		ExportPath: st.opts.ExportPath,
		Statement:  st.stmt.Redacted(),
		Stages:     result.Stages,
	}
	if err != nil {
		return res, err
	}
	s.log(ctx).Info("unload completed", zap.String("location", st.location), zap.Duration("elapsed", result.Elapsed))
	return res, nil
}

func (s *Session) prepareUnload(st *unloadState, id string) error {
	o := &st.opts
	if strings.TrimSpace(o.Query) == "" {
		return errors.New(errors.ErrorTypeValidation, "query is required")
	}
	if strings.TrimSpace(o.Bucket) == "" {
		return errors.New(errors.ErrorTypeValidation, "bucket is required")
	}
	if o.ExportPath != "" && s.gateway == nil {
		return errors.New(errors.ErrorTypeStorageConfig, "a local export requires a storage gateway")
	}
	if o.Delimiter == "" {
		o.Delimiter = DefaultUnloadDelimiter
	}
	if o.Compression == "" {
		o.Compression = compression.Gzip
	}
	if o.FilePrefix == "" {
		o.FilePrefix = "unload_" + id + "_"
	}
	st.prefix = storage.URL{Scheme: s.scheme(), Bucket: o.Bucket, Key: storage.JoinKey(o.Folder, o.FilePrefix)}.String()
	return nil
}

// describe returns the lower-cased column names query would produce.
func (s *Session) describe(ctx context.Context, query string) ([]string, error) {
	if err := s.Execute(ctx, s.dialect.ColumnNamesQuery(query)); err != nil {
		return nil, err
	}
	cols := s.ColumnNames()
	if len(cols) == 0 {
		return nil, errors.New(errors.ErrorTypeQuery, "query returned no columns")
	}
	return cols, nil
}

func (s *Session) downloadParts(ctx context.Context, gw *storage.Gateway, st *unloadState, p *pipeline.Pipeline) error {
	keys, err := gw.ListKeys(ctx, st.opts.Bucket, st.listKey)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return errors.Newf(errors.ErrorTypeDownload, "no objects found under %s", st.location)
	}
	st.keys = keys

	if st.opts.RawUnloadDir == "" {
		dir, err := os.MkdirTemp("", "stagecopy-unload-*")
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create download directory")
		}
		st.opts.RawUnloadDir = dir
		p.Defer("remove_download_dir", func(context.Context, error) error {
			return removeAll(dir)
		})
	} else if err := os.MkdirAll(st.opts.RawUnloadDir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create download directory").
			WithDetail("dir", st.opts.RawUnloadDir)
	}

	local := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		path := filepath.Join(st.opts.RawUnloadDir, storage.BaseName(k))
		local = append(local, path)
		if algo := compression.Detect(path); algo != compression.None {
			local = append(local, strings.TrimSuffix(path, compression.Extension(algo)))
		}
	}
	p.Defer("remove_downloaded_parts", func(context.Context, error) error {
		return removeFiles(local)
	})
	parts, err := gw.DownloadList(ctx, st.opts.Bucket, keys, st.opts.RawUnloadDir)
	st.parts = parts
	return err
}

// decompressParts expands compressed parts next to themselves and removes
// the compressed copies. Uncompressed parts pass through.
func decompressParts(st *unloadState) error {
	st.plain = make([]string, 0, len(st.parts))
	for _, part := range st.parts {
		algo := compression.Detect(part)
		if algo == compression.None {
			st.plain = append(st.plain, part)
			continue
		}
		out := strings.TrimSuffix(part, compression.Extension(algo))
		if err := fileutil.Decompress(part, out); err != nil {
			return err
		}
		if err := os.Remove(part); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to remove compressed part").WithDetail("path", part)
		}
		st.plain = append(st.plain, out)
	}
	return nil
}

// concatenateParts writes the header line (or truncates) and appends every
// part in key order.
func concatenateParts(st *unloadState) error {
	export := st.opts.ExportPath
	if dir := filepath.Dir(export); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create export directory").WithDetail("dir", dir)
		}
	}
	var header [][]interface{}
	if len(st.columns) > 0 {
		row := make([]interface{}, len(st.columns))
		for i, c := range st.columns {
			row[i] = c
		}
		header = [][]interface{}{row}
	}
	if err := fileutil.WriteFile(header, st.opts.Delimiter, export, fileutil.Truncate); err != nil {
		return err
	}
	return fileutil.Concatenate(st.plain, export)
}
