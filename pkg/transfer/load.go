package transfer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
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

// Stage names reported on errors, spans and metrics.
const (
	StagePrepare      = "prepare"
	StageDescribe     = "describe"
	StageSplit        = "split"
	StageCompress     = "compress"
	StageUpload       = "upload"
	StageBuildCommand = "build_command"
	StageExecute      = "execute"
	StageDownload     = "download"
	StageDecompress   = "decompress"
	StageConcatenate  = "concatenate"
	StageDelete       = "delete"
)

// DefaultLoadDelimiter separates fields of files loaded when none is given.
const DefaultLoadDelimiter = "|"

// LoadOptions describes one load of local data into a warehouse table.
type LoadOptions struct {
	// Source is a file, or a directory whose regular files are all loaded
	Source string
	Table  string
	Bucket string
	// Folder is the key prefix the files are staged under
	Folder string
	// Delimiter defaults to DefaultLoadDelimiter
	Delimiter string
	// Splits > 1 splits a single source file into that many parts
	Splits int
	// NoCompress uploads files as they are
	NoCompress bool
	// Compression defaults to gzip
	Compression compression.Algorithm
	// CopyOptions override the dialect defaults by keyword
	CopyOptions []string
	// FormatOptions go inside Snowflake's FILE_FORMAT clause
	FormatOptions []string
	// KeepStorage leaves the staged objects in place after the load
	KeepStorage bool
	// KMSKeyID overrides the gateway's upload key
	KMSKeyID string
	// WorkDir receives intermediate files; a temporary directory by default
	WorkDir string
}

// LoadResult describes a completed load.
type LoadResult struct {
	TransferID string
	// Keys are the staged object keys, in upload order
	Keys []string
	// Location is the storage prefix the COPY read from
	Location string
	// Statement is the executed SQL with secrets masked
	Statement string
	Stages    []pipeline.StageResult
}

// loadState is the data handed from one load stage to the next.
type loadState struct {
	opts      LoadOptions
	inputs    []string
	prefix    string
	headers   int
	copyOpts  []string
	files     []string
	keys      []string
	location  string
	algorithm compression.Algorithm
	stmt      command.Statement
}

// Load stages opts.Source in object storage and bulk-loads it into
// opts.Table. Staged objects are deleted afterwards, whatever the outcome,
// unless KeepStorage is set. The source file itself is never modified.
func (s *Session) Load(ctx context.Context, opts LoadOptions) (*LoadResult, error) {
	id := uuid.NewString()
	ctx = s.withWarehouse(logger.ContextWith(ctx, logger.TransferIDKey, id))
	base := s.logger.With(zap.String("table", opts.Table))
	collector := metrics.NewCollector("load")
	gw := s.gateway.WithMetrics(collector)

	st := &loadState{opts: opts}
	p := pipeline.New(pipeline.Config{Flow: "load", Warehouse: s.dialect.Name(), Logger: base, Metrics: collector})

	p.AddStage(StagePrepare, func(ctx context.Context) error {
		return s.prepareLoad(st, p)
	})
	p.AddStage(StageSplit, func(ctx context.Context) error {
		return splitInputs(st, p)
	})
	p.AddStage(StageCompress, func(ctx context.Context) error {
		return compressInputs(st, p)
	})
	p.AddStage(StageUpload, func(ctx context.Context) error {
		if !st.opts.KeepStorage {
			p.Defer("delete_staged_objects", func(ctx context.Context, _ error) error {
				if len(st.keys) == 0 {
					return nil
				}
				return gw.DeleteObjects(ctx, st.opts.Bucket, st.keys)
			})
		}
		keys, err := gw.UploadList(ctx, st.files, st.opts.Bucket, st.opts.Folder, st.opts.KMSKeyID)
		st.keys = keys
		return err
	})
	p.AddStage(StageBuildCommand, func(ctx context.Context) error {
		auth, err := s.auth(ctx)
		if err != nil {
			return err
		}
		st.location = storage.URL{Scheme: s.scheme(), Bucket: st.opts.Bucket, Key: st.prefix}.String()
		st.stmt, err = s.dialect.LoadStatement(command.LoadRequest{
			Table:         st.opts.Table,
			Location:      st.location,
			Delimiter:     st.opts.Delimiter,
			Options:       st.copyOpts,
			FormatOptions: st.opts.FormatOptions,
			HeaderRows:    st.headers,
			Compression:   st.algorithm,
			Auth:          auth,
		})
		return err
	})
	p.AddStage(StageExecute, func(ctx context.Context) error {
		return s.execute(ctx, st.stmt)
	})

	result, err := p.Run(ctx)
	res := &LoadResult{
		TransferID: id,
		Keys:       st.keys,
		Location:   st.location,
		Statement:  st.stmt.Redacted(),
		Stages:     result.Stages,
	}
	if err != nil {
		return res, err
	}
	logger.WithContext(ctx, base).Info("load completed", zap.Strings("keys", st.keys), zap.Duration("elapsed", result.Elapsed))
	return res, nil
}

func (s *Session) prepareLoad(st *loadState, p *pipeline.Pipeline) error {
	o := &st.opts
	if strings.TrimSpace(o.Table) == "" {
		return errors.New(errors.ErrorTypeValidation, "table name is required")
	}
	if strings.TrimSpace(o.Bucket) == "" {
		return errors.New(errors.ErrorTypeValidation, "bucket is required")
	}
	if o.Splits < 0 {
		return errors.Newf(errors.ErrorTypeSplit, "number of splits must be a positive integer, got %d", o.Splits)
	}
	if o.Splits == 0 {
		o.Splits = 1
	}
	if o.Delimiter == "" {
		o.Delimiter = DefaultLoadDelimiter
	}
	if o.Compression == "" {
		o.Compression = compression.Gzip
	}
	if s.gateway == nil {
		return errors.New(errors.ErrorTypeStorageConfig, "load requires a storage gateway")
	}

	info, err := os.Stat(o.Source)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "source does not exist").WithDetail("source", o.Source)
	}
	if info.IsDir() {
		inputs, err := regularFiles(o.Source)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return errors.Newf(errors.ErrorTypeValidation, "source directory %q has no files", o.Source)
		}
		st.inputs = inputs
		st.prefix = storage.JoinKey(o.Folder, "")
		o.Splits = 1
	} else {
		st.inputs = []string{o.Source}
		st.prefix = storage.JoinKey(o.Folder, filepath.Base(o.Source))
	}

	st.headers, err = fileutil.IgnoreHeaderNumber(o.CopyOptions)
	if err != nil {
		return err
	}
	st.copyOpts = o.CopyOptions

	if o.WorkDir == "" {
		dir, err := os.MkdirTemp("", "stagecopy-load-*")
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create work directory")
		}
		o.WorkDir = dir
		p.Defer("remove_work_dir", func(context.Context, error) error {
			return removeAll(dir)
		})
	}
	return nil
}

// splitInputs splits a single source file into WorkDir. The header lines
// named by IGNOREHEADER are dropped from the parts, so the option is removed
// from the statement.
func splitInputs(st *loadState, p *pipeline.Pipeline) error {
	st.files = st.inputs
	if st.opts.Splits <= 1 {
		return nil
	}
	parts, err := fileutil.SplitTo(st.inputs[0], st.opts.WorkDir, st.opts.Splits, st.headers)
	if err != nil {
		return err
	}
	p.Defer("remove_split_parts", func(context.Context, error) error {
		return removeFiles(parts)
	})
	st.files = parts
	st.copyOpts = fileutil.WithoutIgnoreHeader(st.copyOpts)
	st.headers = 0
	return nil
}

// compressInputs compresses each file. Split parts are intermediates and are
// replaced by their compressed copy; original inputs are compressed into
// WorkDir and left untouched.
func compressInputs(st *loadState, p *pipeline.Pipeline) error {
	st.algorithm = compression.None
	if st.opts.NoCompress || st.opts.Compression == compression.None {
		return nil
	}
	codec, err := compression.NewCompressor(&compression.Config{Algorithm: st.opts.Compression, Level: compression.Default})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeCompression, "unsupported compression")
	}

	var out []string
	if st.opts.Splits > 1 {
		out, err = fileutil.CompressList(st.files, codec)
		if err != nil {
			return err
		}
	} else {
		out = make([]string, 0, len(st.files))
		for _, f := range st.files {
			dst := filepath.Join(st.opts.WorkDir, filepath.Base(f)+codec.Extension())
			if err := fileutil.CompressFile(f, dst, codec); err != nil {
				return err
			}
			out = append(out, dst)
		}
	}
	p.Defer("remove_compressed", func(context.Context, error) error {
		return removeFiles(out)
	})
	st.files = out
	st.algorithm = st.opts.Compression
	return nil
}

func regularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read source directory").WithDetail("dir", dir)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// removeFiles removes paths, ignoring ones already gone.
func removeFiles(paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Aggregate(errors.ErrorTypeFile, "failed to remove intermediate files", errs...)
}

func removeAll(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to remove work directory").WithDetail("dir", dir)
	}
	return nil
}
