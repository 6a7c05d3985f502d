package fileutil

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ajitpratap0/stagecopy/pkg/errors"
)

// WriteMode selects whether WriteFile truncates or appends.
type WriteMode int

const (
	// Truncate replaces any existing content
	Truncate WriteMode = iota
	// Append adds rows after existing content
	Append
)

// WriteFile writes rows to path, one row per line with fields joined by
// delimiter. nil fields are written as empty strings.
func WriteFile(rows [][]interface{}, delimiter, path string, mode WriteMode) error {
	flags := os.O_CREATE | os.O_WRONLY
	if mode == Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644) //nolint:gosec // G304: caller-supplied path
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "unable to open output file").WithDetail("path", path)
	}

	w := bufio.NewWriter(f)
	fields := make([]string, 0, 16)
	for _, row := range rows {
		fields = fields[:0]
		for _, v := range row {
			fields = append(fields, formatField(v))
		}
		if _, err := w.WriteString(strings.Join(fields, delimiter) + "\n"); err != nil {
			_ = f.Close()
			return errors.Wrap(err, errors.ErrorTypeFile, "unable to write rows").WithDetail("path", path)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "unable to write rows").WithDetail("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "unable to close output file").WithDetail("path", path)
	}
	return nil
}

func formatField(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
