package transfer

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/stagecopy/pkg/command"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/testutil"
	"github.com/ajitpratap0/stagecopy/pkg/warehouse"
)

func (s *TransferTestSuite) TestFetchRecord() {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	s.Driver.Respond("FROM orders", testutil.FakeResult{
		Columns: []string{"ID", "Price", "Paid", "Created", "Note"},
		Rows: []warehouse.Row{
			{int64(1), 9.5, true, ts, nil},
			{int64(2), nil, false, ts, "gift"},
		},
	})
	sess := s.open(command.Redshift{})
	s.Require().NoError(sess.Execute(s.Context(), "SELECT * FROM orders"))

	rec, err := sess.FetchRecord(0)
	s.Require().NoError(err)
	defer rec.Release()

	s.EqualValues(2, rec.NumRows())
	schema := rec.Schema()
	s.Equal(arrow.INT64, schema.Field(0).Type.ID())
	s.Equal(arrow.FLOAT64, schema.Field(1).Type.ID())
	s.Equal(arrow.BOOL, schema.Field(2).Type.ID())
	s.Equal(arrow.TIMESTAMP, schema.Field(3).Type.ID())
	s.Equal(arrow.STRING, schema.Field(4).Type.ID())
	s.Equal("created", schema.Field(3).Name)

	s.True(rec.Column(1).IsNull(1))
	s.Equal("gift", rec.Column(4).(*array.String).Value(1))
	s.True(ts.Equal(rec.Column(3).(*array.Timestamp).Value(0).ToTime(arrow.Microsecond)))
}

func (s *TransferTestSuite) TestInsertRecord() {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	names := b.Field(1).(*array.StringBuilder)
	names.Append("o'brien")
	names.AppendNull()
	names.Append("c")
	rec := b.NewRecord()
	defer rec.Release()

	sess := s.open(command.Redshift{})
	err := sess.InsertRecord(s.Context(), "people", rec, InsertOptions{Create: true, BatchSize: 2})
	s.Require().NoError(err)

	stmts := s.Driver.Statements()
	s.Require().Len(stmts, 3)
	s.Equal("CREATE TABLE IF NOT EXISTS people (id int, name varchar)", stmts[0])
	s.Equal("INSERT INTO people (id, name) VALUES (1, 'o''brien'), (2, NULL)", stmts[1])
	s.Equal("INSERT INTO people (id, name) VALUES (3, 'c')", stmts[2])
}

func (s *TransferTestSuite) TestInsertRecordColumnMismatch() {
	schema := arrow.NewSchema([]arrow.Field{{Name: "id", Type: arrow.PrimitiveTypes.Int64}}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).Append(1)
	rec := b.NewRecord()
	defer rec.Release()

	sess := s.open(command.Redshift{})
	err := sess.InsertRecord(s.Context(), "t", rec, InsertOptions{Columns: []string{"a", "b"}})
	s.True(errors.IsType(err, errors.ErrorTypeValidation))
	s.Empty(s.Driver.Statements())
}

func (s *TransferTestSuite) TestExportQuery() {
	rows := make([]warehouse.Row, 0, 5)
	for i := 1; i <= 5; i++ {
		rows = append(rows, warehouse.Row{i, strings.Repeat("x", i)})
	}
	s.Driver.Respond("FROM t", testutil.FakeResult{Columns: []string{"N", "S"}, Rows: rows})
	path := filepath.Join(s.Dir(), "t.csv")

	sess := s.open(command.Redshift{})
	n, err := sess.ExportQuery(s.Context(), "SELECT n, s FROM t", path, "|", 2)
	s.Require().NoError(err)
	s.Equal(5, n)
	s.Equal([]string{"n|s", "1|x", "2|xx", "3|xxx", "4|xxxx", "5|xxxxx"}, testutil.ReadLines(s.T(), path))
}

func (s *TransferTestSuite) TestSnowflakeStageTransfers() {
	s.cfg = newSnowflakeConfig()
	local := s.CreateFile("part.csv.gz", []byte("data"))
	sess := s.open(command.Snowflake{})

	s.Require().NoError(sess.UploadToStage(s.Context(), local, "my_stage/in", StageOptions{Overwrite: true}))
	s.Require().NoError(sess.DownloadFromStage(s.Context(), "@my_stage/out", filepath.Join(s.Dir(), "got"), StageOptions{Parallel: 8}))
	s.Require().NoError(sess.RemoveFromStage(s.Context(), "@my_stage/in"))

	stmts := s.Driver.Statements()
	s.Require().Len(stmts, 3)
	s.Equal("PUT 'file://"+local+"' @my_stage/in PARALLEL=4 AUTO_COMPRESS=FALSE OVERWRITE=TRUE", stmts[0])
	s.Equal("GET @my_stage/out 'file://"+filepath.Join(s.Dir(), "got")+"/' PARALLEL=8", stmts[1])
	s.Equal("REMOVE @my_stage/in", stmts[2])
	s.DirExists(filepath.Join(s.Dir(), "got"))
}

func (s *TransferTestSuite) TestStageTransfersRequireSnowflake() {
	local := s.CreateFile("part.csv", []byte("data"))
	sess := s.open(command.Redshift{})

	err := sess.UploadToStage(s.Context(), local, "@stage", StageOptions{})
	s.True(errors.IsType(err, errors.ErrorTypeValidation))
	s.Empty(s.Driver.Statements())
}
