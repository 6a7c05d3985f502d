package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/config"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
)

// maxDeleteBatch is the DeleteObjects per-request key limit.
const maxDeleteBatch = 1000

// S3Client implements Client on Amazon S3 (or an S3-compatible endpoint).
type S3Client struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	creds      awsCredentials
	region     string
	logger     *zap.Logger
}

// NewS3Client resolves credentials and builds an S3 client. It fails with a
// credentials error before any storage call when nothing resolves.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*S3Client, error) {
	awsCfg, source, err := ResolveAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	partSize := cfg.PartSizeBytes()
	if partSize < manager.MinUploadPartSize {
		partSize = manager.MinUploadPartSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = manager.DefaultUploadConcurrency
	}

	return &S3Client{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = partSize
			u.Concurrency = concurrency
		}),
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.PartSize = partSize
			d.Concurrency = concurrency
		}),
		creds:  awsCredentials{provider: awsCfg.Credentials, source: source},
		region: awsCfg.Region,
		logger: logger.With(zap.String("component", "s3")),
	}, nil
}

// Scheme implements Client.
func (c *S3Client) Scheme() string { return SchemeS3 }

// Region is the resolved AWS region.
func (c *S3Client) Region() string { return c.region }

// Credentials implements CredentialsProvider with the client's live
// credentials.
func (c *S3Client) Credentials(ctx context.Context) (Credentials, error) {
	return c.creds.Credentials(ctx)
}

// Put implements Client.
func (c *S3Client) Put(ctx context.Context, localPath, bucket, key string, opts PutOptions) (int64, error) {
	f, err := os.Open(localPath) //nolint:gosec // G304: caller-supplied path
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if opts.KMSKeyID != "" {
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(opts.KMSKeyID)
	} else {
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	}

	c.logger.Debug("uploading object",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("bytes", info.Size()))

	if _, err := c.uploader.Upload(ctx, input); err != nil {
		return 0, s3Error("put", bucket, key, err)
	}
	return info.Size(), nil
}

// Get implements Client.
func (c *S3Client) Get(ctx context.Context, bucket, key, localPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(localPath) //nolint:gosec // G304: caller-supplied path
	if err != nil {
		return 0, err
	}

	n, err := c.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(localPath)
		return 0, s3Error("get", bucket, key, err)
	}
	return n, nil
}

// List implements Client.
func (c *S3Client) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s3Error("list", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Delete implements Client. Keys are removed in batches of 1000; per-key
// failures reported by S3 are folded into a single error.
func (c *S3Client) Delete(ctx context.Context, bucket string, keys []string) error {
	var failures []error
	for batch := range slices.Chunk(keys, maxDeleteBatch) {
		ids := make([]types.ObjectIdentifier, 0, len(batch))
		for _, k := range batch {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			failures = append(failures, fmt.Errorf("deleting batch of %d objects: %w", len(batch), err))
			continue
		}
		for _, e := range out.Errors {
			failures = append(failures, fmt.Errorf("%s: %s: %s",
				aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message)))
		}
	}
	return errors.Aggregate(errors.ErrorTypeDeletion, "failed to delete objects", failures...)
}

// s3Error prefixes err with the operation, the object and, when S3 answered
// with an API error, its error code.
func s3Error(op, bucket, key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s s3://%s/%s: %s: %w", op, bucket, key, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("%s s3://%s/%s: %w", op, bucket, key, err)
}
