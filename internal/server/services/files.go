package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/drivelink/internal/common"
	"github.com/dmitrijs2005/drivelink/internal/logging"
	sc "github.com/dmitrijs2005/drivelink/internal/server/config"
	"github.com/dmitrijs2005/drivelink/internal/server/drive"
	"github.com/google/uuid"
)

// RecentFilesCount is how many files the dashboard lists.
const RecentFilesCount = 5

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// DriveAPI is the Drive pass-through surface FileService depends on.
type DriveAPI interface {
	ListFiles(ctx context.Context, accessToken string) ([]drive.File, error)
	ListByMimeType(ctx context.Context, accessToken, mimeType string) ([]drive.File, error)
	Recent(ctx context.Context, accessToken string, n int64) ([]drive.File, error)
	About(ctx context.Context, accessToken string) (*drive.About, error)
	Download(ctx context.Context, accessToken, fileID string) (*drive.Download, error)
	Upload(ctx context.Context, accessToken, name, mimeType, parentID string, content io.Reader) (*drive.File, error)
	Trash(ctx context.Context, accessToken, fileID string) error
}

// FileService forwards file and dashboard operations to Drive. When a bucket
// is configured, downloads are staged to object storage and handed out as
// presigned GET URLs instead of being streamed through the gateway.
type FileService struct {
	drive  DriveAPI
	config *sc.Config
	logger logging.Logger
}

func NewFileService(d DriveAPI, config *sc.Config, logger logging.Logger) *FileService {
	return &FileService{drive: d, config: config, logger: logger.With("module", "files")}
}

func requireParams(values ...string) error {
	for _, v := range values {
		if v == "" {
			return common.ErrMissingParameter
		}
	}
	return nil
}

func (s *FileService) List(ctx context.Context, accessToken string) ([]drive.File, error) {
	if err := requireParams(accessToken); err != nil {
		return nil, err
	}
	return s.drive.ListFiles(ctx, accessToken)
}

func (s *FileService) ListByType(ctx context.Context, accessToken, mimeType string) ([]drive.File, error) {
	if err := requireParams(accessToken, mimeType); err != nil {
		return nil, err
	}
	return s.drive.ListByMimeType(ctx, accessToken, mimeType)
}

func (s *FileService) Recent(ctx context.Context, accessToken string) ([]drive.File, error) {
	if err := requireParams(accessToken); err != nil {
		return nil, err
	}
	return s.drive.Recent(ctx, accessToken, RecentFilesCount)
}

func (s *FileService) DriveInfo(ctx context.Context, accessToken string) (*drive.About, error) {
	if err := requireParams(accessToken); err != nil {
		return nil, err
	}
	return s.drive.About(ctx, accessToken)
}

// Download opens the file for streaming. The caller closes the body.
func (s *FileService) Download(ctx context.Context, accessToken, fileID string) (*drive.Download, error) {
	if err := requireParams(accessToken, fileID); err != nil {
		return nil, err
	}
	return s.drive.Download(ctx, accessToken, fileID)
}

func (s *FileService) Upload(ctx context.Context, accessToken, name, mimeType, parentID string, content io.Reader) (*drive.File, error) {
	if err := requireParams(accessToken, name); err != nil {
		return nil, err
	}
	return s.drive.Upload(ctx, accessToken, name, mimeType, parentID, content)
}

func (s *FileService) Trash(ctx context.Context, accessToken, fileID string) error {
	if err := requireParams(accessToken, fileID); err != nil {
		return err
	}
	return s.drive.Trash(ctx, accessToken, fileID)
}

// StagingEnabled reports whether StageDownload can be used.
func (s *FileService) StagingEnabled() bool {
	return s.config.StagingEnabled()
}

// GetStagingKey returns a fresh object key for a staged copy of name.
func GetStagingKey(name string) string {
	d := time.Now()
	return fmt.Sprintf("downloads/%d/%d/%d/%v/%s", d.Year(), d.Month(), d.Day(), uuid.New(), path.Base(name))
}

func (s *FileService) getS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// StageDownload copies the Drive file into the bucket and returns a presigned
// GET URL for it.
func (s *FileService) StageDownload(ctx context.Context, accessToken, fileID string) (string, error) {
	d, err := s.Download(ctx, accessToken, fileID)
	if err != nil {
		return "", err
	}
	defer d.Body.Close()

	content, err := io.ReadAll(d.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read drive content: %w", common.ErrUpstream, err)
	}

	client, err := s.getS3Client(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: s3 client: %w", common.ErrorInternal, err)
	}

	bucket := s.config.S3Bucket
	key := GetStagingKey(d.Name)

	in := &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
	}
	if d.MimeType != "" {
		in.ContentType = aws.String(d.MimeType)
	}
	if _, err := putObject(client, ctx, in); err != nil {
		return "", fmt.Errorf("%w: stage object: %w", common.ErrorInternal, err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.S3PresignValidity))
	if err != nil {
		return "", fmt.Errorf("%w: presign: %w", common.ErrorInternal, err)
	}

	s.logger.Debug(ctx, "download staged", "file_id", fileID, "key", key, "size", len(content))
	return req.URL, nil
}
