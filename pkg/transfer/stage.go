package transfer

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/command"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
)

// StageOptions controls transfers to and from a Snowflake internal stage.
type StageOptions struct {
	// Parallel is the number of threads the driver uses; 4 when 0
	Parallel int
	// Overwrite replaces files already on the stage
	Overwrite bool
}

func (s *Session) snowflake() (command.Snowflake, error) {
	sf, ok := s.dialect.(command.Snowflake)
	if !ok {
		return command.Snowflake{}, errors.Newf(errors.ErrorTypeValidation,
			"internal stages are only supported on snowflake, not %s", s.dialect.Name())
	}
	return sf, nil
}

// UploadToStage PUTs a local file onto a Snowflake internal stage such as
// "@my_stage/path". The file is sent as-is.
func (s *Session) UploadToStage(ctx context.Context, localPath, stage string, opts StageOptions) error {
	sf, err := s.snowflake()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "invalid local path").WithDetail("path", localPath)
	}
	if _, err := os.Stat(abs); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "file does not exist").WithDetail("path", localPath)
	}
	if err := s.execute(ctx, sf.PutStatement(abs, stage, opts.Parallel, opts.Overwrite)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeUpload, "failed to put file on stage").WithDetail("stage", stage)
	}
	s.log(ctx).Info("uploaded file to stage", zap.String("path", abs), zap.String("internal_stage", stage))
	return nil
}

// DownloadFromStage GETs every file under stage into localDir, creating the
// directory when needed.
func (s *Session) DownloadFromStage(ctx context.Context, stage, localDir string, opts StageOptions) error {
	sf, err := s.snowflake()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(localDir)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "invalid local directory").WithDetail("dir", localDir)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create local directory").WithDetail("dir", abs)
	}
	if err := s.execute(ctx, sf.GetStatement(stage, abs, opts.Parallel)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeDownload, "failed to get files from stage").WithDetail("stage", stage)
	}
	s.log(ctx).Info("downloaded stage files", zap.String("internal_stage", stage), zap.String("dir", abs))
	return nil
}

// RemoveFromStage deletes the files under stage.
func (s *Session) RemoveFromStage(ctx context.Context, stage string) error {
	sf, err := s.snowflake()
	if err != nil {
		return err
	}
	if err := s.execute(ctx, sf.RemoveStatement(stage)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeDeletion, "failed to remove stage files").WithDetail("stage", stage)
	}
	return nil
}
