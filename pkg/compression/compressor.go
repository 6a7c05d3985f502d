// Package compression provides the file codecs used when staging data.
//
// # Overview
//
// Staged files are compressed before upload and unloaded parts are
// decompressed after download. Two codecs are supported:
//   - Gzip: the default, written with parallel block compression (pgzip)
//     and read with klauspost/compress/gzip. Suffix ".gz", COPY keyword GZIP.
//   - Zstd: klauspost/compress/zstd. Suffix ".zst", COPY keyword ZSTD.
//
// # Basic Usage
//
//	comp, err := compression.NewCompressor(&compression.Config{
//	    Algorithm: compression.Gzip,
//	    Level:     compression.Default,
//	})
//
//	err = comp.CompressStream(dst, src)
package compression

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// Compressor provides compression and decompression functionality.
// All implementations are safe for concurrent use.
type Compressor interface {
	// CompressStream compresses from reader to writer.
	CompressStream(dst io.Writer, src io.Reader) error

	// DecompressStream decompresses from reader to writer.
	DecompressStream(dst io.Writer, src io.Reader) error

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm

	// Level returns the compression level configured.
	Level() Level

	// Extension is the file suffix appended to compressed files.
	Extension() string
}

// Config represents compressor configuration.
type Config struct {
	Algorithm   Algorithm // Compression algorithm to use
	Level       Level     // Compression level
	BlockSize   int       // Block size for parallel gzip
	Concurrency int       // Blocks compressed in parallel
}

// DefaultConfig returns the gzip configuration used for staged files.
func DefaultConfig() *Config {
	return &Config{
		Algorithm:   Gzip,
		Level:       Default,
		BlockSize:   1 << 20,
		Concurrency: runtime.GOMAXPROCS(0),
	}
}

// NewCompressor creates a new compressor based on the provided configuration.
// If config is nil, default configuration is used.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Algorithm {
	case None:
		return &noneCompressor{baseCompressor{algorithm: None}}, nil
	case Gzip, "":
		return newGzipCompressor(config), nil
	case Zstd:
		return newZstdCompressor(config), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

// ParseAlgorithm maps a user-facing name (gzip, gz, zstd, zst, none) to an
// Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gzip", "gz", "":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	case "none", "off":
		return None, nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm: %s", name)
	}
}

// Extension returns the file suffix for a.
func Extension(a Algorithm) string {
	switch a {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// Keyword returns the bulk-load option keyword for a, or "" for None.
func Keyword(a Algorithm) string {
	switch a {
	case Gzip:
		return "GZIP"
	case Zstd:
		return "ZSTD"
	default:
		return ""
	}
}

// Detect returns the algorithm implied by a file name or object key suffix.
func Detect(name string) Algorithm {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return Gzip
	case strings.HasSuffix(lower, ".zst"):
		return Zstd
	default:
		return None
	}
}

// Base compressor implementation
type baseCompressor struct {
	algorithm Algorithm
	level     Level
}

// Algorithm returns the compression algorithm
func (bc *baseCompressor) Algorithm() Algorithm {
	return bc.algorithm
}

// Level returns the compression level
func (bc *baseCompressor) Level() Level {
	return bc.level
}

// Extension returns the file suffix of the algorithm
func (bc *baseCompressor) Extension() string {
	return Extension(bc.algorithm)
}

// None compressor (no compression)
type noneCompressor struct {
	baseCompressor
}

func (nc *noneCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

func (nc *noneCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

// Gzip compressor. Writes go through pgzip so large staged files are
// compressed block-parallel; output is a standard gzip stream.
type gzipCompressor struct {
	baseCompressor
	gzLevel     int
	blockSize   int
	concurrency int
	readerPool  sync.Pool
}

func newGzipCompressor(config *Config) *gzipCompressor {
	gc := &gzipCompressor{
		baseCompressor: baseCompressor{algorithm: Gzip, level: config.Level},
		gzLevel:        mapGzipLevel(config.Level),
		blockSize:      config.BlockSize,
		concurrency:    config.Concurrency,
	}
	if gc.blockSize <= 0 {
		gc.blockSize = 1 << 20
	}
	if gc.concurrency <= 0 {
		gc.concurrency = runtime.GOMAXPROCS(0)
	}
	gc.readerPool.New = func() interface{} {
		return new(gzip.Reader)
	}
	return gc
}

func (gc *gzipCompressor) newWriter(dst io.Writer) (*pgzip.Writer, error) {
	w, err := pgzip.NewWriterLevel(dst, gc.gzLevel)
	if err != nil {
		return nil, err
	}
	if err := w.SetConcurrency(gc.blockSize, gc.concurrency); err != nil {
		return nil, err
	}
	return w, nil
}

func (gc *gzipCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w, err := gc.newWriter(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (gc *gzipCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r := gc.readerPool.Get().(*gzip.Reader)
	defer gc.readerPool.Put(r)

	if err := r.Reset(src); err != nil {
		return err
	}
	// Unload parts may be multi-member streams.
	r.Multistream(true)

	_, err := io.Copy(dst, r) //nolint:gosec // G110: input is our own unload output
	return err
}

// Zstd compressor. Encoders are created per stream; staged files are
// compressed once each.
type zstdCompressor struct {
	baseCompressor
	zLevel zstd.EncoderLevel
}

func newZstdCompressor(config *Config) *zstdCompressor {
	return &zstdCompressor{
		baseCompressor: baseCompressor{algorithm: Zstd, level: config.Level},
		zLevel:         mapZstdLevel(config.Level),
	}
}

func (zc *zstdCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zc.zLevel))
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (zc *zstdCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r, err := zstd.NewReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = io.Copy(dst, r)
	return err
}

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Better:
		return 7
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
