package fileutil

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/stagecopy/pkg/errors"
)

const ignoreHeaderKeyword = "IGNOREHEADER"

// IgnoreHeaderCount returns the header-skip count for rows. Zero maps to one:
// with nothing else known the single header row is skipped.
func IgnoreHeaderCount(rows int) int {
	if rows == 0 {
		return 1
	}
	return rows
}

// IgnoreHeaderNumber reads n from an "IGNOREHEADER [AS] n" option. It returns
// 0 when no such option is present and fails if more than one is.
func IgnoreHeaderNumber(options []string) (int, error) {
	found := -1
	n := 0
	for i, opt := range options {
		fields := strings.Fields(opt)
		if len(fields) == 0 || !strings.EqualFold(fields[0], ignoreHeaderKeyword) {
			continue
		}
		if found >= 0 {
			return 0, errors.New(errors.ErrorTypeIgnoreHeader, "found more than one IGNOREHEADER option")
		}
		found = i
		args := fields[1:]
		if len(args) > 0 && strings.EqualFold(args[0], "AS") {
			args = args[1:]
		}
		if len(args) != 1 {
			return 0, errors.Newf(errors.ErrorTypeIgnoreHeader, "malformed option %q", opt)
		}
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return 0, errors.Newf(errors.ErrorTypeIgnoreHeader, "malformed option %q", opt)
		}
		n = v
	}
	return n, nil
}

// WithoutIgnoreHeader returns options minus any IGNOREHEADER entry.
func WithoutIgnoreHeader(options []string) []string {
	out := make([]string, 0, len(options))
	for _, opt := range options {
		fields := strings.Fields(opt)
		if len(fields) > 0 && strings.EqualFold(fields[0], ignoreHeaderKeyword) {
			continue
		}
		out = append(out, opt)
	}
	return out
}
