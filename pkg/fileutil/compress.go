// Package fileutil prepares local files for bulk transfer: compression,
// splitting, concatenation, header handling, delimited writes and column type
// inference. Every operation works only on its explicit inputs.
package fileutil

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/compression"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
)

var (
	defaultCodec     compression.Compressor
	defaultCodecOnce sync.Once
)

// DefaultCodec returns the shared gzip compressor.
func DefaultCodec() compression.Compressor {
	defaultCodecOnce.Do(func() {
		defaultCodec, _ = compression.NewCompressor(compression.DefaultConfig())
	})
	return defaultCodec
}

// Compress writes a gzip copy of input to input+".gz" and removes input once
// the compressed file is fully written.
func Compress(input string) (string, error) {
	return CompressWith(input, nil, false)
}

// CompressWith compresses input with codec (gzip when nil) into
// input+codec.Extension(). The input is removed after success unless
// keepInput is set.
func CompressWith(input string, codec compression.Compressor, keepInput bool) (string, error) {
	if codec == nil {
		codec = DefaultCodec()
	}
	if codec.Extension() == "" {
		return "", errors.Newf(errors.ErrorTypeCompression, "codec %s does not produce compressed files", codec.Algorithm())
	}
	output := input + codec.Extension()
	if err := CompressFile(input, output, codec); err != nil {
		return "", err
	}
	if !keepInput {
		if err := os.Remove(input); err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeCompression, "failed to remove uncompressed input").
				WithDetail("path", input)
		}
	}
	return output, nil
}

// CompressList compresses each path in order and returns the compressed
// paths in the same order. The first failure aborts the remaining files.
func CompressList(inputs []string, codec compression.Compressor) ([]string, error) {
	outputs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		out, err := CompressWith(in, codec, false)
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// CompressFile compresses input into output. A partially written output is
// removed on failure; input is left untouched.
func CompressFile(input, output string, codec compression.Compressor) error {
	if codec == nil {
		codec = DefaultCodec()
	}
	logger.Get().Debug("compressing file",
		zap.String("input", input),
		zap.String("output", output),
		zap.String("algorithm", string(codec.Algorithm())))

	err := transform(input, output, codec.CompressStream)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeCompression, "error compressing the file").
			WithDetail("input", input)
	}
	return nil
}

// Decompress expands input into output using the codec implied by the input
// suffix. Inputs without a known suffix are copied as-is. input is kept.
func Decompress(input, output string) error {
	algorithm := compression.Detect(input)
	codec, err := compression.NewCompressor(&compression.Config{Algorithm: algorithm})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeCompression, "unsupported codec").WithDetail("input", input)
	}
	if err := transform(input, output, codec.DecompressStream); err != nil {
		return errors.Wrap(err, errors.ErrorTypeCompression, "error decompressing the file").
			WithDetail("input", input)
	}
	return nil
}

func transform(input, output string, fn func(io.Writer, io.Reader) error) (err error) {
	in, err := os.Open(input) //nolint:gosec // G304: caller-supplied path
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(output) //nolint:gosec // G304: caller-supplied path
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(output)
		}
	}()

	if err = fn(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err = out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
