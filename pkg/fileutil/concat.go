package fileutil

import (
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
)

// Concatenate appends each input, in order, to output and removes every input
// once it has been copied. output is opened in append mode so callers can
// write a header line before concatenating parts. A partially written output
// is left in place on failure.
func Concatenate(inputs []string, output string) error {
	if len(inputs) == 0 {
		return errors.New(errors.ErrorTypeConcat, "input list is empty")
	}

	out, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // G304: caller-supplied path
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConcat, "error opening concatenation output").
			WithDetail("output", output)
	}

	for _, in := range inputs {
		if err := appendFile(out, in); err != nil {
			_ = out.Close()
			return errors.Wrap(err, errors.ErrorTypeConcat, "error concatenating files").
				WithDetail("input", in).
				WithDetail("output", output)
		}
		if err := os.Remove(in); err != nil {
			_ = out.Close()
			return errors.Wrap(err, errors.ErrorTypeConcat, "error removing concatenated input").
				WithDetail("input", in)
		}
	}

	if err := out.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConcat, "error closing concatenation output").
			WithDetail("output", output)
	}
	logger.Get().Debug("concatenated files", zap.Int("inputs", len(inputs)), zap.String("output", output))
	return nil
}

func appendFile(dst io.Writer, path string) error {
	f, err := os.Open(path) //nolint:gosec // G304: caller-supplied path
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}
