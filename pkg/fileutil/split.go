package fileutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
)

// PartName returns the name of split part index for base: the base name
// followed by a 7-digit zero-padded index.
func PartName(base string, index int) string {
	return fmt.Sprintf("%s%07d", base, index)
}

// Split partitions the lines of input into numSplits files next to it. When
// hasHeader is set the first line is dropped rather than copied into every
// part. A single split returns input unchanged.
func Split(input string, numSplits int, hasHeader bool) ([]string, error) {
	skip := 0
	if hasHeader {
		skip = 1
	}
	return SplitTo(input, "", numSplits, skip)
}

// SplitTo is Split writing parts into dir (input's directory when empty) and
// skipping skipLines leading lines. Lines are dealt round-robin so part sizes
// differ by at most one line, with the remainder going to the earliest parts.
// Any part already created is removed on failure.
func SplitTo(input, dir string, numSplits, skipLines int) (paths []string, err error) {
	if numSplits <= 0 {
		return nil, errors.Newf(errors.ErrorTypeSplit, "number of splits must be a positive integer, got %d", numSplits)
	}
	if numSplits == 1 {
		return []string{input}, nil
	}
	if dir == "" {
		dir = filepath.Dir(input)
	}

	in, err := os.Open(input) //nolint:gosec // G304: caller-supplied path
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSplit, "error splitting the file").WithDetail("input", input)
	}
	defer in.Close()

	logger.Get().Info("splitting file", zap.String("input", input), zap.Int("splits", numSplits))

	files := make([]*os.File, 0, numSplits)
	writers := make([]*bufio.Writer, 0, numSplits)
	defer func() {
		if err == nil {
			return
		}
		for _, f := range files {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
		logger.Get().Error("cleaned up partial split files", zap.String("input", input), zap.Error(err))
	}()

	base := filepath.Join(dir, filepath.Base(input))
	for i := 0; i < numSplits; i++ {
		f, createErr := os.Create(PartName(base, i))
		if createErr != nil {
			return nil, errors.Wrap(createErr, errors.ErrorTypeSplit, "error splitting the file").WithDetail("input", input)
		}
		files = append(files, f)
		writers = append(writers, bufio.NewWriter(f))
	}

	r := bufio.NewReader(in)
	for line, skipped := 0, 0; ; {
		chunk, readErr := r.ReadBytes('\n')
		if len(chunk) > 0 {
			if skipped < skipLines {
				skipped++
			} else {
				if _, err = writers[line%numSplits].Write(chunk); err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeSplit, "error splitting the file").WithDetail("input", input)
				}
				line++
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			err = errors.Wrap(readErr, errors.ErrorTypeSplit, "error splitting the file").WithDetail("input", input)
			return nil, err
		}
	}

	paths = make([]string, 0, numSplits)
	for i, w := range writers {
		if err = w.Flush(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSplit, "error flushing split part").WithDetail("input", input)
		}
		if err = files[i].Close(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSplit, "error closing split part").WithDetail("input", input)
		}
		paths = append(paths, files[i].Name())
	}
	return paths, nil
}
