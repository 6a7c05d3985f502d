package fileutil

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
)

// ColumnClass is the coarse type of a column used for warehouse type hints.
type ColumnClass string

const (
	ClassNumeric  ColumnClass = "numeric"
	ClassDatetime ColumnClass = "datetime"
	ClassString   ColumnClass = "string"
)

// InferColumnTypes classifies each field of schema by its element type:
// integer and floating-point fields are numeric, date/time fields are
// datetime, everything else is string.
func InferColumnTypes(schema *arrow.Schema) map[string]ColumnClass {
	out := make(map[string]ColumnClass, schema.NumFields())
	for _, f := range schema.Fields() {
		out[f.Name] = classify(f.Type)
	}
	return out
}

func classify(dt arrow.DataType) ColumnClass {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return ClassNumeric
	case arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP, arrow.TIME32, arrow.TIME64:
		return ClassDatetime
	default:
		return ClassString
	}
}

// ColumnType pairs a column name with the SQL type used to create it.
type ColumnType struct {
	Name    string
	SQLType string
}

var (
	clockPattern = regexp.MustCompile(`\d+:\d+:\d+`)
	datePattern  = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})|(\d{2}-[A-Z]{3}-\d{4})|(\d{2}/\d{2}/\d{4})`)

	dateLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"01/02/2006 15:04:05",
		"01/02/2006",
		"02-Jan-2006",
	}
)

// FindColumnTypes maps each column of rec to a SQL type (int, float,
// timestamp, date, boolean, varchar) for the given warehouse. String columns
// are probed: all-numeric values become float, parseable dates become date or
// timestamp. Columns with no non-null values are varchar.
func FindColumnTypes(rec arrow.Record, warehouse string) ([]ColumnType, error) {
	warehouse = strings.ToLower(warehouse)
	if warehouse != "redshift" && warehouse != "snowflake" {
		return nil, errors.Newf(errors.ErrorTypeValidation, "warehouse must be redshift or snowflake, got %q", warehouse)
	}

	schema := rec.Schema()
	out := make([]ColumnType, 0, schema.NumFields())
	for i, f := range schema.Fields() {
		col := rec.Column(i)
		sqlType := "varchar"
		if col.Len()-col.NullN() > 0 {
			sqlType = sqlTypeOf(f.Type, col, warehouse)
		}
		logger.Get().Debug("parsed column type", zap.String("column", f.Name), zap.String("type", sqlType))
		out = append(out, ColumnType{Name: f.Name, SQLType: sqlType})
	}
	return out, nil
}

type stringValues interface {
	arrow.Array
	Value(i int) string
}

func sqlTypeOf(dt arrow.DataType, col arrow.Array, warehouse string) string {
	switch dt.ID() {
	case arrow.TIMESTAMP:
		return "timestamp"
	case arrow.DATE32, arrow.DATE64:
		return "date"
	case arrow.BOOL:
		return "boolean"
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return "int"
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64, arrow.DECIMAL128, arrow.DECIMAL256:
		return "float"
	case arrow.STRING, arrow.LARGE_STRING:
		if sv, ok := col.(stringValues); ok {
			return probeStrings(sv, warehouse)
		}
	}
	return "varchar"
}

func probeStrings(col stringValues, warehouse string) string {
	values := make([]string, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		if !col.IsNull(i) {
			values = append(values, col.Value(i))
		}
	}

	if all(values, isNumber) {
		return "float"
	}
	if !all(values, isDate) {
		return "varchar"
	}
	sample := values[0]
	switch {
	case clockPattern.MatchString(sample):
		return "timestamp"
	case warehouse == "redshift" || datePattern.MatchString(sample):
		return "date"
	default:
		return "varchar"
	}
}

func all(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

func isDate(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
