package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/stagecopy/pkg/config"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
)

// isolateAWSEnv points the SDK at empty shared files and disables IMDS so no
// ambient credentials can be found.
func isolateAWSEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONTAINER_CREDENTIALS_FULL_URI", "")
	t.Setenv("AWS_CONTAINER_CREDENTIALS_RELATIVE_URI", "")
	t.Setenv("AWS_WEB_IDENTITY_TOKEN_FILE", "")
}

func TestResolveAWSConfigStatic(t *testing.T) {
	isolateAWSEnv(t)
	cfg, source, err := ResolveAWSConfig(context.Background(), config.StorageConfig{
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		SessionToken:    "token",
		Region:          "us-east-1",
	})
	require.NoError(t, err)
	assert.Equal(t, SourceStatic, source)
	assert.Equal(t, "us-east-1", cfg.Region)

	creds, err := awsCredentials{provider: cfg.Credentials, source: source}.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Credentials{"AKIDEXAMPLE", "secret", "token", SourceStatic}, creds)
}

func TestResolveAWSConfigNoCredentials(t *testing.T) {
	isolateAWSEnv(t)
	_, _, err := ResolveAWSConfig(context.Background(), config.StorageConfig{Region: "us-east-1"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCredentials))
}

func TestResolveAWSConfigUnknownProfile(t *testing.T) {
	isolateAWSEnv(t)
	_, _, err := ResolveAWSConfig(context.Background(), config.StorageConfig{Profile: "does-not-exist"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCredentials))
}

func TestNewS3ClientFailsWithoutCredentials(t *testing.T) {
	isolateAWSEnv(t)
	_, err := NewS3Client(context.Background(), config.StorageConfig{Region: "us-east-1"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeCredentials))
}

func TestStaticCredentials(t *testing.T) {
	_, err := StaticCredentials{AccessKeyID: "a"}.Credentials(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeCredentials))

	c, err := StaticCredentials{AccessKeyID: "a", SecretAccessKey: "b"}.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", c.AccessKeyID)
}
