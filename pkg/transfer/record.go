package transfer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/fileutil"
	"github.com/ajitpratap0/stagecopy/pkg/warehouse"
)

// DefaultInsertBatchSize is the number of rows per INSERT statement.
const DefaultInsertBatchSize = 1000

var timestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// FetchRecord reads up to size rows of the current result into an arrow
// record; size <= 0 reads everything. Column types follow the first non-null
// value of each column, strings otherwise. The caller releases the record.
func (s *Session) FetchRecord(size int) (arrow.Record, error) {
	var (
		rows []warehouse.Row
		err  error
	)
	if size > 0 {
		rows, err = s.FetchMany(size)
	} else {
		rows, err = s.FetchAll()
	}
	if err != nil {
		return nil, err
	}

	names := s.ColumnNames()
	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: arrowTypeOf(rows, i), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	for _, row := range rows {
		for i := range fields {
			var v interface{}
			if i < len(row) {
				v = row[i]
			}
			appendValue(b.Field(i), v)
		}
	}
	return b.NewRecord(), nil
}

func arrowTypeOf(rows []warehouse.Row, col int) arrow.DataType {
	for _, row := range rows {
		if col >= len(row) || row[col] == nil {
			continue
		}
		switch row[col].(type) {
		case bool:
			return arrow.FixedWidthTypes.Boolean
		case int, int8, int16, int32, int64, uint8, uint16, uint32:
			return arrow.PrimitiveTypes.Int64
		case float32, float64:
			return arrow.PrimitiveTypes.Float64
		case time.Time:
			return timestampType
		default:
			return arrow.BinaryTypes.String
		}
	}
	return arrow.BinaryTypes.String
}

func appendValue(b array.Builder, val interface{}) {
	if val == nil {
		b.AppendNull()
		return
	}
	switch builder := b.(type) {
	case *array.BooleanBuilder:
		if v, ok := val.(bool); ok {
			builder.Append(v)
		} else {
			builder.AppendNull()
		}
	case *array.Int64Builder:
		if v, ok := toInt64(val); ok {
			builder.Append(v)
		} else {
			builder.AppendNull()
		}
	case *array.Float64Builder:
		switch v := val.(type) {
		case float64:
			builder.Append(v)
		case float32:
			builder.Append(float64(v))
		default:
			builder.AppendNull()
		}
	case *array.TimestampBuilder:
		if v, ok := val.(time.Time); ok {
			builder.Append(arrow.Timestamp(v.UnixMicro()))
		} else {
			builder.AppendNull()
		}
	case *array.StringBuilder:
		if v, ok := val.([]byte); ok {
			builder.Append(string(v))
		} else {
			builder.Append(fmt.Sprint(val))
		}
	default:
		b.AppendNull()
	}
}

func toInt64(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	}
	return 0, false
}

// InsertOptions controls InsertRecord.
type InsertOptions struct {
	// Create issues CREATE TABLE IF NOT EXISTS with inferred column types first
	Create bool
	// Columns renames the record's fields, in order
	Columns []string
	// BatchSize is the number of rows per INSERT; DefaultInsertBatchSize when 0
	BatchSize int
}

// InsertRecord writes rec into table with literal multi-row INSERT
// statements. It suits small frames; large data should go through Load.
func (s *Session) InsertRecord(ctx context.Context, table string, rec arrow.Record, opts InsertOptions) error {
	if strings.TrimSpace(table) == "" {
		return errors.New(errors.ErrorTypeValidation, "table name is required")
	}
	ncols := int(rec.NumCols())
	columns := opts.Columns
	if len(columns) == 0 {
		columns = make([]string, ncols)
		for i, f := range rec.Schema().Fields() {
			columns[i] = f.Name
		}
	}
	if len(columns) != ncols {
		return errors.Newf(errors.ErrorTypeValidation, "got %d column names for %d columns", len(columns), ncols)
	}

	if opts.Create {
		types, err := fileutil.FindColumnTypes(rec, s.dialect.Name())
		if err != nil {
			return err
		}
		defs := make([]string, ncols)
		for i, t := range types {
			defs[i] = columns[i] + " " + t.SQLType
		}
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
		if err := s.Execute(ctx, ddl); err != nil {
			return err
		}
	}

	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultInsertBatchSize
	}
	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))
	nrows := int(rec.NumRows())
	for start := 0; start < nrows; start += batch {
		end := min(start+batch, nrows)
		var sb strings.Builder
		sb.WriteString(head)
		for r := start; r < end; r++ {
			if r > start {
				sb.WriteString(", ")
			}
			sb.WriteByte('(')
			for c := 0; c < ncols; c++ {
				if c > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(sqlLiteral(rec.Column(c), r))
			}
			sb.WriteByte(')')
		}
		if err := s.Execute(ctx, sb.String()); err != nil {
			return err
		}
	}
	s.log(ctx).Info("inserted rows", zap.String("table", table), zap.Int("rows", nrows))
	return nil
}

func sqlLiteral(col arrow.Array, i int) string {
	if col.IsNull(i) {
		return "NULL"
	}
	switch a := col.(type) {
	case *array.Boolean:
		if a.Value(i) {
			return "TRUE"
		}
		return "FALSE"
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return quote(a.Value(i).ToTime(unit).UTC().Format("2006-01-02 15:04:05.999999"))
	case *array.Date32:
		return quote(a.Value(i).ToTime().Format("2006-01-02"))
	case *array.Date64:
		return quote(a.Value(i).ToTime().Format("2006-01-02"))
	}
	switch col.DataType().ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64, arrow.DECIMAL128, arrow.DECIMAL256:
		return col.ValueStr(i)
	}
	return quote(col.ValueStr(i))
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
