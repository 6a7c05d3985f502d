package transfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/stagecopy/pkg/command"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/storage"
	"github.com/ajitpratap0/stagecopy/pkg/testutil"
)

func (s *TransferTestSuite) eventsFile(rows int) string {
	lines := []string{"id,name"}
	for i := 1; i <= rows; i++ {
		lines = append(lines, fmt.Sprintf("%d,event-%d", i, i))
	}
	return testutil.WriteLines(s.T(), s.Dir(), "events.csv", lines...)
}

func (s *TransferTestSuite) TestLoadSplitCompressed() {
	src := s.eventsFile(10)
	before, err := os.ReadFile(src)
	s.Require().NoError(err)
	work := filepath.Join(s.Dir(), "work")
	s.Require().NoError(os.Mkdir(work, 0o755))
	staged := s.snapshot("COPY")

	sess := s.open(command.Redshift{})
	res, err := sess.Load(s.Context(), LoadOptions{
		Source:      src,
		Table:       "events",
		Bucket:      testBucket,
		Folder:      "loads",
		Splits:      3,
		CopyOptions: []string{"DELIMITER ','", "IGNOREHEADER 1"},
		WorkDir:     work,
	})
	s.Require().NoError(err)

	s.Equal([]string{
		"loads/events.csv0000000.gz",
		"loads/events.csv0000001.gz",
		"loads/events.csv0000002.gz",
	}, res.Keys)
	s.Equal("s3://staging/loads/events.csv", res.Location)

	s.Require().Len(staged, 3)
	var rows []string
	for _, k := range res.Keys {
		rows = append(rows, strings.Split(strings.TrimSpace(gunzip(s.T(), staged[k])), "\n")...)
	}
	s.Len(rows, 10)
	s.NotContains(rows, "id,name")

	s.Contains(res.Statement, "COPY events FROM 's3://staging/loads/events.csv'")
	s.Contains(res.Statement, "DELIMITER ','")
	s.Contains(res.Statement, "GZIP")
	s.NotContains(res.Statement, "IGNOREHEADER")
	s.NotContains(res.Statement, "DELIMITER '|'")
	s.NotContains(res.Statement, testKeys.SecretAccessKey)

	s.Empty(s.Store.Keys(testBucket))
	s.Empty(testutil.Files(s.T(), work))
	after, err := os.ReadFile(src)
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *TransferTestSuite) TestLoadSingleFileKeepStorage() {
	src := s.eventsFile(3)
	sess := s.open(command.Redshift{})

	res, err := sess.Load(s.Context(), LoadOptions{
		Source:      src,
		Table:       "events",
		Bucket:      testBucket,
		NoCompress:  true,
		KeepStorage: true,
		CopyOptions: []string{"IGNOREHEADER 1"},
	})
	s.Require().NoError(err)

	s.Equal([]string{"events.csv"}, res.Keys)
	obj, ok := s.Store.Object(testBucket, "events.csv")
	s.Require().True(ok)
	s.Equal(4, strings.Count(string(obj.Data), "\n"))
	s.Contains(res.Statement, "DELIMITER '|'")
	s.Contains(res.Statement, "IGNOREHEADER 1")
	s.NotContains(res.Statement, "GZIP")
	s.Contains(res.Statement, "aws_secret_access_key=****")
	s.FileExists(src)
}

func (s *TransferTestSuite) TestLoadDirectory() {
	dir := filepath.Join(s.Dir(), "batch")
	s.Require().NoError(os.Mkdir(dir, 0o755))
	testutil.WriteLines(s.T(), dir, "a.csv", "1|a")
	testutil.WriteLines(s.T(), dir, "b.csv", "2|b")
	staged := s.snapshot("COPY")

	sess := s.open(command.Redshift{})
	res, err := sess.Load(s.Context(), LoadOptions{Source: dir, Table: "events", Bucket: testBucket, Folder: "batch"})
	s.Require().NoError(err)

	s.Equal([]string{"batch/a.csv.gz", "batch/b.csv.gz"}, res.Keys)
	s.Len(staged, 2)
	s.Equal("s3://staging/batch/", res.Location)
	s.Equal([]string{"a.csv", "b.csv"}, testutil.Files(s.T(), dir))
}

func (s *TransferTestSuite) TestLoadWarehouseRole() {
	s.cfg.Storage.WarehouseRoleARN = "arn:aws:iam::123456789012:role/loader"
	src := s.eventsFile(1)

	sess, err := Open(s.Context(), s.Driver, command.Redshift{}, storageGateway(s), s.cfg)
	s.Require().NoError(err)
	defer sess.Close()

	res, err := sess.Load(s.Context(), LoadOptions{Source: src, Table: "events", Bucket: testBucket})
	s.Require().NoError(err)
	s.Contains(res.Statement, "IAM_ROLE 'arn:aws:iam::123456789012:role/loader'")
}

func (s *TransferTestSuite) TestLoadFailures() {
	tests := []struct {
		name    string
		setup   func()
		opts    func(src string) LoadOptions
		stage   string
		errType errors.ErrorType
	}{
		{
			name:    "missing source",
			opts:    func(string) LoadOptions { return LoadOptions{Source: "/does/not/exist", Table: "t", Bucket: testBucket} },
			stage:   StagePrepare,
			errType: errors.ErrorTypeValidation,
		},
		{
			name:    "missing table",
			opts:    func(src string) LoadOptions { return LoadOptions{Source: src, Bucket: testBucket} },
			stage:   StagePrepare,
			errType: errors.ErrorTypeValidation,
		},
		{
			name: "duplicate ignoreheader",
			opts: func(src string) LoadOptions {
				return LoadOptions{Source: src, Table: "t", Bucket: testBucket, CopyOptions: []string{"IGNOREHEADER 1", "IGNOREHEADER 2"}}
			},
			stage:   StagePrepare,
			errType: errors.ErrorTypeIgnoreHeader,
		},
		{
			name:    "upload failure",
			setup:   func() { s.Store.FailPut = map[string]error{"events.csv0000001.gz": io.ErrUnexpectedEOF} },
			opts:    func(src string) LoadOptions { return LoadOptions{Source: src, Table: "t", Bucket: testBucket, Splits: 2} },
			stage:   StageUpload,
			errType: errors.ErrorTypeUpload,
		},
		{
			name:    "copy failure",
			setup:   func() { s.Driver.FailOn("COPY", io.ErrUnexpectedEOF) },
			opts:    func(src string) LoadOptions { return LoadOptions{Source: src, Table: "t", Bucket: testBucket} },
			stage:   StageExecute,
			errType: errors.ErrorTypeQuery,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			if tt.setup != nil {
				tt.setup()
			}
			src := s.eventsFile(4)
			sess := s.open(command.Redshift{})

			_, err := sess.Load(s.Context(), tt.opts(src))
			s.Require().Error(err)
			s.Equal(tt.stage, errors.Stage(err))
			s.True(errors.IsType(err, tt.errType), "got %v", err)
			s.Empty(s.Store.Keys(testBucket))
			s.FileExists(src)
		})
	}
}

func (s *TransferTestSuite) TestLoadPartialUploadDeletesOnlyStoredKeys() {
	src := s.eventsFile(6)
	s.Store.FailPut = map[string]error{"events.csv0000002.gz": io.ErrUnexpectedEOF}
	gw := storage.NewGateway(s.Store, storage.WithConcurrency(1), storage.WithLogger(testutil.TestLogger(s.T())))
	sess, err := Open(s.Context(), s.Driver, command.Redshift{}, gw, s.cfg, WithCredentials(testKeys))
	s.Require().NoError(err)
	defer sess.Close()

	res, err := sess.Load(s.Context(), LoadOptions{Source: src, Table: "events", Bucket: testBucket, Splits: 3})
	s.Require().Error(err)
	s.Equal(StageUpload, errors.Stage(err))
	s.Equal([]string{"events.csv0000000.gz", "events.csv0000001.gz"}, res.Keys)
	s.Equal([]string{"staging/events.csv0000000.gz", "staging/events.csv0000001.gz"}, s.Store.DeleteRequests())
	s.Empty(s.Store.Keys(testBucket))
	s.False(s.Driver.Executed("COPY"))
}

func (s *TransferTestSuite) TestLoadLogsCarryTransferFields() {
	core, logs := observer.New(zapcore.DebugLevel)
	src := s.eventsFile(2)
	sess, err := Open(s.Context(), s.Driver, command.Redshift{}, storage.NewGateway(s.Store), s.cfg,
		WithLogger(zap.New(core)), WithCredentials(testKeys))
	s.Require().NoError(err)
	defer sess.Close()

	res, err := sess.Load(s.Context(), LoadOptions{Source: src, Table: "events", Bucket: testBucket})
	s.Require().NoError(err)

	connected := logs.FilterMessage("connected to warehouse").All()
	s.Require().Len(connected, 1)
	s.Equal("redshift", connected[0].ContextMap()["warehouse"])

	executed := logs.FilterMessage("statement completed").FilterField(zap.String("stage", StageExecute)).All()
	s.Require().Len(executed, 1)
	fields := executed[0].ContextMap()
	s.Equal(res.TransferID, fields["transfer_id"])
	s.Equal("redshift", fields["warehouse"])

	staged := logs.FilterMessage("stage completed").FilterField(zap.String("stage", StageUpload)).All()
	s.Require().Len(staged, 1)
	s.Equal("events", staged[0].ContextMap()["table"])
	s.Equal(res.TransferID, staged[0].ContextMap()["transfer_id"])
}

func (s *TransferTestSuite) TestLoadWithoutGateway() {
	src := s.eventsFile(2)
	sess, err := Open(s.Context(), s.Driver, command.Redshift{}, nil, s.cfg, WithCredentials(testKeys))
	s.Require().NoError(err)
	defer sess.Close()

	res, err := sess.Load(s.Context(), LoadOptions{Source: src, Table: "events", Bucket: testBucket})
	s.Require().Error(err)
	s.Equal(StagePrepare, errors.Stage(err))
	s.True(errors.IsType(err, errors.ErrorTypeStorageConfig), "got %v", err)
	s.NotNil(res)
	s.False(s.Driver.Executed("COPY"))
	s.FileExists(src)
}

func (s *TransferTestSuite) TestLoadWithoutCredentials() {
	src := s.eventsFile(1)
	sess, err := Open(s.Context(), s.Driver, command.Redshift{}, storageGateway(s), s.cfg)
	s.Require().NoError(err)
	defer sess.Close()

	_, err = sess.Load(s.Context(), LoadOptions{Source: src, Table: "events", Bucket: testBucket})
	s.Require().Error(err)
	s.Equal(StageBuildCommand, errors.Stage(err))
	s.True(errors.IsType(err, errors.ErrorTypeCredentials))
	s.False(s.Driver.Executed("COPY"))
	s.Empty(s.Store.Keys(testBucket))
}

func (s *TransferTestSuite) TestLoadCleanupFailureSurfaces() {
	src := s.eventsFile(1)
	s.Store.FailDelete = map[string]error{"events.csv.gz": io.ErrUnexpectedEOF}
	sess := s.open(command.Redshift{})

	_, err := sess.Load(s.Context(), LoadOptions{Source: src, Table: "events", Bucket: testBucket})
	s.Require().Error(err)
	s.Equal("cleanup", errors.Stage(err))
	s.True(s.Driver.Executed("COPY events"))
}

func (s *TransferTestSuite) TestLoadSnowflake() {
	s.cfg = newSnowflakeConfig()
	src := s.eventsFile(2)
	sess := s.open(command.Snowflake{})

	res, err := sess.Load(s.Context(), LoadOptions{
		Source:      src,
		Table:       "events",
		Bucket:      testBucket,
		Delimiter:   ",",
		CopyOptions: []string{"IGNOREHEADER 1"},
	})
	s.Require().NoError(err)
	s.Contains(res.Statement, "COPY INTO events FROM 's3://staging/events.csv'")
	s.Contains(res.Statement, "SKIP_HEADER = 1")
	s.Contains(res.Statement, "COMPRESSION = GZIP")
	s.NotContains(res.Statement, "IGNOREHEADER")
}
