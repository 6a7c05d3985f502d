package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/config"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
)

// Credentials are the live object-store credentials handed to a warehouse
// in a bulk command's credentials clause.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Source names where the credentials came from (static, profile, role...)
	Source string
}

// CredentialsProvider yields the current credentials. Implementations must
// return fresh values after rotation.
type CredentialsProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticCredentials is a fixed CredentialsProvider.
type StaticCredentials Credentials

// Credentials implements CredentialsProvider.
func (s StaticCredentials) Credentials(context.Context) (Credentials, error) {
	if s.AccessKeyID == "" || s.SecretAccessKey == "" {
		return Credentials{}, errors.New(errors.ErrorTypeCredentials, "static credentials are incomplete")
	}
	return Credentials(s), nil
}

// Credential sources, in resolution priority order.
const (
	SourceStatic  = "static"
	SourceProfile = "profile"
	SourceRole    = "assume_role"
	SourceAmbient = "ambient"
)

var loadDefaultConfig = awsconfig.LoadDefaultConfig

// ResolveAWSConfig builds an aws.Config from cfg. Credentials are taken, in
// priority order, from explicit key/secret/token, a named profile, or the
// ambient environment; RoleARN, when set, is assumed on top of whichever
// source resolved. The credentials are retrieved once so that a process with
// no usable credentials fails here, before any storage call.
func ResolveAWSConfig(ctx context.Context, cfg config.StorageConfig) (aws.Config, string, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	source := SourceAmbient
	switch {
	case cfg.HasStaticKeys():
		source = SourceStatic
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	case cfg.Profile != "":
		source = SourceProfile
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := loadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, "", errors.Wrap(err, errors.ErrorTypeCredentials, "failed to load AWS configuration").
			WithDetail("source", source)
	}

	if cfg.RoleARN != "" {
		source = SourceRole
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.RoleARN,
			func(o *stscreds.AssumeRoleOptions) {
				o.RoleSessionName = fmt.Sprintf("stagecopy-%d", time.Now().Unix())
				if cfg.ExternalID != "" {
					o.ExternalID = aws.String(cfg.ExternalID)
				}
			})
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}

	if awsCfg.Credentials == nil {
		return aws.Config{}, "", errors.New(errors.ErrorTypeCredentials, "no AWS credentials resolved")
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return aws.Config{}, "", errors.Wrap(err, errors.ErrorTypeCredentials, "no AWS credentials resolved").
			WithDetail("source", source)
	}

	logger.Get().Debug("resolved AWS credentials", zap.String("source", source), zap.String("region", awsCfg.Region))
	return awsCfg, source, nil
}

// awsCredentials adapts an aws.CredentialsProvider to CredentialsProvider.
type awsCredentials struct {
	provider aws.CredentialsProvider
	source   string
}

func (a awsCredentials) Credentials(ctx context.Context) (Credentials, error) {
	c, err := a.provider.Retrieve(ctx)
	if err != nil {
		return Credentials{}, errors.Wrap(err, errors.ErrorTypeCredentials, "failed to retrieve AWS credentials")
	}
	return Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		Source:          a.source,
	}, nil
}
