package transfer

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/fileutil"
)

// DefaultChunkSize is the number of rows ExportQuery fetches per round trip.
const DefaultChunkSize = 10000

// ExportQuery runs query and writes its result to path directly from the
// cursor: a header line of column names, then the rows in chunks of
// chunkSize. It suits results too small to justify an UNLOAD.
func (s *Session) ExportQuery(ctx context.Context, query, path, delimiter string, chunkSize int) (int, error) {
	if delimiter == "" {
		delimiter = DefaultUnloadDelimiter
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if err := s.Execute(ctx, query); err != nil {
		return 0, err
	}

	cols := s.ColumnNames()
	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := fileutil.WriteFile([][]interface{}{header}, delimiter, path, fileutil.Truncate); err != nil {
		return 0, err
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		rows, err := s.FetchMany(chunkSize)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			break
		}
		chunk := make([][]interface{}, len(rows))
		for i, r := range rows {
			chunk[i] = r
		}
		if err := fileutil.WriteFile(chunk, delimiter, path, fileutil.Append); err != nil {
			return total, err
		}
		total += len(rows)
	}
	s.log(ctx).Info("exported query result", zap.String("path", path), zap.Int("rows", total))
	return total, nil
}
