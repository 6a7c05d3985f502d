package fileutil

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/stagecopy/pkg/compression"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
)

func writeLines(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	trimmed := strings.TrimSuffix(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func numbered(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("%d|row-%d", i, i)
	}
	return lines
}

func TestCompress(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("a|b|c\n", 500)
	input := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(input, []byte(content), 0o644))

	out, err := Compress(input)
	require.NoError(t, err)
	assert.Equal(t, input+".gz", out)
	assert.NoFileExists(t, input)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	r, err := gzip.NewReader(f)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestCompressMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := Compress(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCompression))
	assert.NoFileExists(t, filepath.Join(dir, "missing.csv.gz"))
}

func TestCompressWithKeepAndZstd(t *testing.T) {
	dir := t.TempDir()
	input := writeLines(t, dir, "keep.csv", numbered(20)...)

	codec, err := compression.NewCompressor(&compression.Config{Algorithm: compression.Zstd})
	require.NoError(t, err)

	out, err := CompressWith(input, codec, true)
	require.NoError(t, err)
	assert.Equal(t, input+".zst", out)
	assert.FileExists(t, input)

	restored := filepath.Join(dir, "restored.csv")
	require.NoError(t, Decompress(out, restored))
	assert.Equal(t, readLines(t, input), readLines(t, restored))

	none, err := compression.NewCompressor(&compression.Config{Algorithm: compression.None})
	require.NoError(t, err)
	_, err = CompressWith(input, none, true)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCompression))
}

func TestCompressList(t *testing.T) {
	dir := t.TempDir()
	a := writeLines(t, dir, "a.csv", "1")
	b := writeLines(t, dir, "b.csv", "2")

	out, err := CompressList([]string{a, b}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{a + ".gz", b + ".gz"}, out)

	c := writeLines(t, dir, "c.csv", "3")
	d := writeLines(t, dir, "d.csv", "4")
	out, err = CompressList([]string{c, filepath.Join(dir, "gone.csv"), d}, nil)
	require.Error(t, err)
	assert.Equal(t, []string{c + ".gz"}, out)
	assert.FileExists(t, d, "files after the failure are not processed")
	assert.NoFileExists(t, d+".gz")
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name      string
		lines     int
		splits    int
		header    bool
		wantSizes []int
	}{
		{"even", 9, 3, false, []int{3, 3, 3}},
		{"remainder to earliest", 10, 3, false, []int{4, 3, 3}},
		{"header dropped", 10, 3, true, []int{3, 3, 3}},
		{"more splits than lines", 2, 4, false, []int{1, 1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := writeLines(t, dir, "orders.csv", numbered(tt.lines)...)

			parts, err := Split(input, tt.splits, tt.header)
			require.NoError(t, err)
			require.Len(t, parts, tt.splits)

			var all []string
			for i, p := range parts {
				assert.Equal(t, filepath.Join(dir, fmt.Sprintf("orders.csv%07d", i)), p)
				lines := readLines(t, p)
				assert.Len(t, lines, tt.wantSizes[i])
				all = append(all, lines...)
			}

			want := numbered(tt.lines)
			if tt.header {
				want = want[1:]
			}
			assert.ElementsMatch(t, want, all)
			assert.FileExists(t, input)
		})
	}
}

func TestSplitRoundRobinOrder(t *testing.T) {
	dir := t.TempDir()
	input := writeLines(t, dir, "rr.csv", "a", "b", "c", "d", "e")

	parts, err := Split(input, 2, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "e"}, readLines(t, parts[0]))
	assert.Equal(t, []string{"b", "d"}, readLines(t, parts[1]))
}

func TestSplitSingleReturnsInput(t *testing.T) {
	dir := t.TempDir()
	input := writeLines(t, dir, "one.csv", "h", "1")
	parts, err := Split(input, 1, true)
	require.NoError(t, err)
	assert.Equal(t, []string{input}, parts)
	assert.Equal(t, []string{"h", "1"}, readLines(t, input))
}

func TestSplitErrors(t *testing.T) {
	dir := t.TempDir()
	input := writeLines(t, dir, "x.csv", "1")

	for _, n := range []int{0, -2} {
		_, err := Split(input, n, false)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeSplit))
	}

	_, err := Split(filepath.Join(dir, "missing.csv"), 3, false)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSplit))
	matches, _ := filepath.Glob(filepath.Join(dir, "missing.csv*"))
	assert.Empty(t, matches)
}

func TestSplitToDirAndSkip(t *testing.T) {
	src := t.TempDir()
	work := t.TempDir()
	input := writeLines(t, src, "skip.csv", "h1", "h2", "1", "2", "3")

	parts, err := SplitTo(input, work, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "skip.csv0000000"), parts[0])
	assert.Equal(t, []string{"1", "3"}, readLines(t, parts[0]))
	assert.Equal(t, []string{"2"}, readLines(t, parts[1]))
}

func TestSplitLastLineWithoutNewline(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "nonl.csv")
	require.NoError(t, os.WriteFile(input, []byte("a\nb\nc"), 0o644))

	parts, err := Split(input, 2, false)
	require.NoError(t, err)
	first, err := os.ReadFile(parts[0])
	require.NoError(t, err)
	assert.Equal(t, "a\nc", string(first))
}

func TestConcatenate(t *testing.T) {
	dir := t.TempDir()
	a := writeLines(t, dir, "a", "1", "2")
	b := writeLines(t, dir, "b", "3")
	c := writeLines(t, dir, "c", "4", "5")
	out := filepath.Join(dir, "out.csv")

	require.NoError(t, Concatenate([]string{a, b, c}, out))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, readLines(t, out))
	for _, p := range []string{a, b, c} {
		assert.NoFileExists(t, p)
	}
}

func TestConcatenateAppendsToExistingOutput(t *testing.T) {
	dir := t.TempDir()
	out := writeLines(t, dir, "out.csv", "id,name")
	part := writeLines(t, dir, "part", "1,x")

	require.NoError(t, Concatenate([]string{part}, out))
	assert.Equal(t, []string{"id,name", "1,x"}, readLines(t, out))
}

func TestConcatenateErrors(t *testing.T) {
	dir := t.TempDir()
	err := Concatenate(nil, filepath.Join(dir, "out"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConcat))

	a := writeLines(t, dir, "a", "1")
	err = Concatenate([]string{a, filepath.Join(dir, "missing")}, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConcat))
	assert.NoFileExists(t, a, "inputs copied before the failure are already removed")
}

func TestIgnoreHeaderCount(t *testing.T) {
	// Zero means "skip the single header row", not "skip nothing".
	assert.Equal(t, 1, IgnoreHeaderCount(0))
	assert.Equal(t, 1, IgnoreHeaderCount(1))
	assert.Equal(t, 5, IgnoreHeaderCount(5))
}

func TestIgnoreHeaderNumber(t *testing.T) {
	tests := []struct {
		name      string
		options   []string
		want      int
		wantError bool
	}{
		{"absent", []string{"DATEFORMAT 'auto'"}, 0, false},
		{"plain", []string{"COMPUPDATE ON", "IGNOREHEADER 1"}, 1, false},
		{"with as", []string{"ignoreheader as 3"}, 3, false},
		{"duplicate", []string{"IGNOREHEADER 1", "IGNOREHEADER 2"}, 0, true},
		{"malformed", []string{"IGNOREHEADER x"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IgnoreHeaderNumber(tt.options)
			if tt.wantError {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeIgnoreHeader))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []string{"GZIP"}, WithoutIgnoreHeader([]string{"IGNOREHEADER 1", "GZIP"}))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.txt")

	require.NoError(t, WriteFile([][]interface{}{{"id", "name"}, {1, "a"}}, "|", path, Truncate))
	require.NoError(t, WriteFile([][]interface{}{{2, nil}, {3.5, []byte("c")}}, "|", path, Append))
	assert.Equal(t, []string{"id|name", "1|a", "2|", "3.5|c"}, readLines(t, path))

	require.NoError(t, WriteFile([][]interface{}{{"x"}}, "|", path, Truncate))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("x\n"), data))

	err = WriteFile(nil, ",", filepath.Join(dir, "no", "such", "dir.txt"), Truncate)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}
