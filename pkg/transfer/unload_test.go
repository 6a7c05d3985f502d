package transfer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/stagecopy/pkg/command"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/testutil"
)

// exportOn makes statements containing match write objects to the store, the
// way a warehouse export would.
func (s *TransferTestSuite) exportOn(match string, objects map[string][]byte) {
	s.Driver.OnExecute = func(_ context.Context, query string) error {
		if strings.Contains(query, match) {
			for k, v := range objects {
				s.Store.PutObject(testBucket, k, v)
			}
		}
		return nil
	}
}

func (s *TransferTestSuite) TestUnloadParallelOffExport() {
	s.exportOn("UNLOAD", map[string][]byte{
		"exports/orders_000.gz": gzipBytes(s.T(), "1,widget\n2,gadget\n"),
	})
	s.Driver.Respond("WHERE 1 = 0", testutil.FakeResult{Columns: []string{"ID", "Product"}})
	export := filepath.Join(s.Dir(), "out", "orders.csv")
	raw := filepath.Join(s.Dir(), "raw")

	sess := s.open(command.Redshift{})
	res, err := sess.Unload(s.Context(), UnloadOptions{
		Query:         "SELECT id, product FROM orders WHERE status = 'open'",
		Bucket:        testBucket,
		Folder:        "exports",
		FilePrefix:    "orders_",
		ExportPath:    export,
		ParallelOff:   true,
		IncludeHeader: true,
		RawUnloadDir:  raw,
	})
	s.Require().NoError(err)

	s.Equal([]string{"id,product", "1,widget", "2,gadget"}, testutil.ReadLines(s.T(), export))
	s.Equal([]string{"exports/orders_000.gz"}, res.Keys)
	s.Equal([]string{"id", "product"}, res.Columns)
	s.Equal("s3://staging/exports/orders_", res.Location)
	s.Contains(res.Statement, `WHERE status = \'open\'`)
	s.Contains(res.Statement, "PARALLEL OFF")
	s.NotContains(res.Statement, "HEADER")
	s.Empty(s.Store.Keys(testBucket))
	s.Empty(testutil.Files(s.T(), raw))
}

func (s *TransferTestSuite) TestUnloadMultiplePartsKeepStorage() {
	s.exportOn("UNLOAD", map[string][]byte{
		"exports/run_0000_part_00.gz": gzipBytes(s.T(), "1|a\n2|b\n"),
		"exports/run_0001_part_00.gz": gzipBytes(s.T(), "3|c\n"),
		"exports/other_0000_part_00":  []byte("not mine\n"),
	})
	export := filepath.Join(s.Dir(), "run.csv")
	s.Require().NoError(os.WriteFile(export, []byte("stale\n"), 0o644))

	sess := s.open(command.Redshift{})
	res, err := sess.Unload(s.Context(), UnloadOptions{
		Query:       "SELECT * FROM t",
		Bucket:      testBucket,
		Folder:      "exports",
		FilePrefix:  "run_",
		ExportPath:  export,
		Delimiter:   "|",
		KeepStorage: true,
	})
	s.Require().NoError(err)

	s.Equal([]string{"1|a", "2|b", "3|c"}, testutil.ReadLines(s.T(), export))
	s.Len(res.Keys, 2)
	s.Len(s.Store.Keys(testBucket), 3)
}

func (s *TransferTestSuite) TestUnloadWithoutExport() {
	sess := s.open(command.Redshift{})
	res, err := sess.Unload(s.Context(), UnloadOptions{
		Query:         "SELECT 1",
		Bucket:        testBucket,
		IncludeHeader: true,
	})
	s.Require().NoError(err)

	s.True(strings.HasPrefix(res.Location, "s3://staging/unload_"+res.TransferID))
	s.Contains(res.Statement, "HEADER")
	s.False(s.Driver.Executed("WHERE 1 = 0"))
	names := make([]string, len(res.Stages))
	for i, st := range res.Stages {
		names[i] = st.Name
	}
	s.Equal([]string{StagePrepare, StageBuildCommand, StageExecute}, names)
}

func (s *TransferTestSuite) TestUnloadWithoutGateway() {
	sess, err := Open(s.Context(), s.Driver, command.Redshift{}, nil, s.cfg, WithCredentials(testKeys))
	s.Require().NoError(err)
	defer sess.Close()

	res, err := sess.Unload(s.Context(), UnloadOptions{Query: "select 1", Bucket: testBucket})
	s.Require().NoError(err)
	s.True(strings.HasPrefix(res.Location, "s3://staging/unload_"+res.TransferID))
	s.True(s.Driver.Executed("UNLOAD ('select 1')"))
	s.Empty(res.Keys)

	_, err = sess.Unload(s.Context(), UnloadOptions{Query: "select 1", Bucket: testBucket, ExportPath: s.Dir() + "/out.csv"})
	s.Require().Error(err)
	s.Equal(StagePrepare, errors.Stage(err))
	s.True(errors.IsType(err, errors.ErrorTypeStorageConfig))
}

func (s *TransferTestSuite) TestUnloadSnowflakeSingleFile() {
	s.cfg = newSnowflakeConfig()
	s.cfg.Storage.StorageIntegration = "s3_int"
	s.exportOn("COPY INTO", map[string][]byte{
		"exports/daily.csv.gz": gzipBytes(s.T(), "x,1\n"),
	})
	export := filepath.Join(s.Dir(), "daily.csv")

	sess := s.open(command.Snowflake{})
	res, err := sess.Unload(s.Context(), UnloadOptions{
		Query:       "SELECT name, n FROM daily",
		Bucket:      testBucket,
		Folder:      "exports",
		FilePrefix:  "daily",
		ExportPath:  export,
		ParallelOff: true,
	})
	s.Require().NoError(err)

	s.Equal("s3://staging/exports/daily.csv.gz", res.Location)
	s.Contains(res.Statement, "COPY INTO 's3://staging/exports/daily.csv.gz'")
	s.Contains(res.Statement, "STORAGE_INTEGRATION = s3_int")
	s.Contains(res.Statement, "SINGLE = TRUE")
	s.Equal([]string{"x,1"}, testutil.ReadLines(s.T(), export))
}

func (s *TransferTestSuite) TestUnloadFailures() {
	tests := []struct {
		name      string
		setup     func()
		stage     string
		errType   errors.ErrorType
		remaining int
	}{
		{
			name:    "unload statement fails",
			setup:   func() { s.Driver.FailOn("UNLOAD", io.ErrUnexpectedEOF) },
			stage:   StageExecute,
			errType: errors.ErrorTypeQuery,
		},
		{
			name:    "nothing exported",
			stage:   StageDownload,
			errType: errors.ErrorTypeDownload,
		},
		{
			name: "download fails",
			setup: func() {
				s.exportOn("UNLOAD", map[string][]byte{"exports/f_000.gz": gzipBytes(s.T(), "1\n")})
				s.Store.FailGet = map[string]error{"exports/f_000.gz": io.ErrUnexpectedEOF}
			},
			stage:     StageDownload,
			errType:   errors.ErrorTypeDownload,
			remaining: 1,
		},
		{
			name: "corrupt part",
			setup: func() {
				s.exportOn("UNLOAD", map[string][]byte{"exports/f_000.gz": []byte("not gzip")})
			},
			stage:     StageDecompress,
			errType:   errors.ErrorTypeCompression,
			remaining: 1,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			if tt.setup != nil {
				tt.setup()
			}
			export := filepath.Join(s.Dir(), "f.csv")
			sess := s.open(command.Redshift{})

			_, err := sess.Unload(s.Context(), UnloadOptions{
				Query:      "SELECT 1",
				Bucket:     testBucket,
				Folder:     "exports",
				FilePrefix: "f_",
				ExportPath: export,
			})
			s.Require().Error(err)
			s.Equal(tt.stage, errors.Stage(err))
			s.True(errors.IsType(err, tt.errType), "got %v", err)
			s.Len(s.Store.Keys(testBucket), tt.remaining)
		})
	}
}

func (s *TransferTestSuite) TestUnloadValidation() {
	sess := s.open(command.Redshift{})
	_, err := sess.Unload(s.Context(), UnloadOptions{Bucket: testBucket})
	s.Require().Error(err)
	s.Equal(StagePrepare, errors.Stage(err))
	s.True(errors.IsType(err, errors.ErrorTypeValidation))
}
