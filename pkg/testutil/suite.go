package testutil

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/stagecopy/pkg/storage"
)

// TransferSuite provides a fresh working directory, in-memory object store
// and recording warehouse driver for every test.
type TransferSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
	dir    string

	Store  *storage.MemoryClient
	Driver *FakeDriver
}

// SetupTest runs before each test in the suite
func (s *TransferSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), time.Minute)
	s.dir = s.T().TempDir()
	s.Store = storage.NewMemoryClient()
	s.Driver = NewFakeDriver("redshift")
}

// TearDownTest runs after each test in the suite
func (s *TransferSuite) TearDownTest() {
	s.cancel()
}

// Context returns the test context
func (s *TransferSuite) Context() context.Context {
	return s.ctx
}

// Dir returns the per-test working directory
func (s *TransferSuite) Dir() string {
	return s.dir
}

// CreateFile writes content to name under the working directory.
func (s *TransferSuite) CreateFile(name string, content []byte) string {
	path := filepath.Join(s.dir, name)
	require.NoError(s.T(), os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(s.T(), os.WriteFile(path, content, 0o644))
	return path
}
