package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/picvault/picvault/internal/common"
	"github.com/picvault/picvault/internal/logging"
	sc "github.com/picvault/picvault/internal/server/config"
	"github.com/picvault/picvault/internal/server/models"
	"github.com/picvault/picvault/internal/server/repositories/repomanager"
)

const presignValidity = 15 * time.Minute

// Seams for testing the AWS SDK interactions.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in)
	}
)

// ImageUpload bundles the stored metadata with the presigned URL the client
// uses to PUT the picture bytes.
type ImageUpload struct {
	Image     *models.Image
	UploadURL string
}

// ImageService manages picture metadata and the object-storage backend.
// Binary content never flows through this server: uploads and downloads go
// through presigned URLs.
type ImageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger
}

func NewImageService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, logger logging.Logger) *ImageService {
	return &ImageService{
		db:          db,
		repomanager: m,
		config:      cfg,
		logger:      logger.With("module", "image_service"),
	}
}

// RandomStorageKey builds a date-partitioned object key for a new upload.
func RandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("users/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ImageService) getS3Client() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
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
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	}), nil
}

// RequestUpload stores metadata for a new picture owned by the user with the
// given email and returns a presigned PUT URL for the content.
func (s *ImageService) RequestUpload(ctx context.Context, email, fileName, contentType string, sizeBytes int64) (*ImageUpload, error) {
	owner, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	client, err := s.getS3Client()
	if err != nil {
		s.logger.Error(ctx, "s3 client init failed", "error", err)
		return nil, common.ErrorInternal
	}

	bucket := s.config.S3Bucket
	key := RandomStorageKey()

	req, err := presignPutObject(newS3PresignClient(client), ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &contentType,
	}, s3.WithPresignExpires(presignValidity))
	if err != nil {
		s.logger.Error(ctx, "presigned PUT failed", "error", err)
		return nil, common.ErrorInternal
	}

	image, err := s.repomanager.Images(s.db).Create(ctx, &models.Image{
		UserID:      owner.ID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		StorageKey:  key,
		Visibility:  models.VisibilityPrivate,
	})
	if err != nil {
		s.logger.Error(ctx, "image metadata creation failed", "error", err)
		return nil, common.ErrorInternal
	}

	return &ImageUpload{Image: image, UploadURL: req.URL}, nil
}

// ViewURL returns a presigned GET URL for the picture. Private pictures are
// visible to their owner only; absence and denial are indistinguishable to
// the caller.
func (s *ImageService) ViewURL(ctx context.Context, email, imageID string) (string, error) {
	image, viewer, err := s.loadImageAndViewer(ctx, email, imageID)
	if err != nil {
		return "", err
	}

	if image.Visibility != models.VisibilityPublic && image.UserID != viewer.ID {
		return "", common.ErrorNotFound
	}

	client, err := s.getS3Client()
	if err != nil {
		s.logger.Error(ctx, "s3 client init failed", "error", err)
		return "", common.ErrorInternal
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &image.StorageKey,
	}, s3.WithPresignExpires(presignValidity))
	if err != nil {
		s.logger.Error(ctx, "presigned GET failed", "error", err)
		return "", common.ErrorInternal
	}

	return req.URL, nil
}

// List returns the caller's pictures, newest first.
func (s *ImageService) List(ctx context.Context, email string, limit, offset int) ([]*models.Image, error) {
	owner, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Images(s.db).ListByUser(ctx, owner.ID, limit, offset)
}

// UpdateMetadata renames a picture and/or changes its visibility. Only the
// owner may update.
func (s *ImageService) UpdateMetadata(ctx context.Context, email, imageID, fileName, visibility string) (*models.Image, error) {
	image, viewer, err := s.loadImageAndViewer(ctx, email, imageID)
	if err != nil {
		return nil, err
	}
	if image.UserID != viewer.ID {
		return nil, common.ErrorNotFound
	}

	if fileName != "" {
		image.FileName = fileName
	}
	if visibility == models.VisibilityPublic || visibility == models.VisibilityPrivate {
		image.Visibility = visibility
	}

	return s.repomanager.Images(s.db).Update(ctx, image)
}

// Delete removes the stored object and the metadata row. Only the owner may
// delete.
func (s *ImageService) Delete(ctx context.Context, email, imageID string) error {
	image, viewer, err := s.loadImageAndViewer(ctx, email, imageID)
	if err != nil {
		return err
	}
	if image.UserID != viewer.ID {
		return common.ErrorNotFound
	}

	client, err := s.getS3Client()
	if err != nil {
		s.logger.Error(ctx, "s3 client init failed", "error", err)
		return common.ErrorInternal
	}

	bucket := s.config.S3Bucket
	if _, err := deleteObject(client, ctx, &s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &image.StorageKey,
	}); err != nil {
		s.logger.Error(ctx, "object deletion failed", "key", image.StorageKey, "error", err)
		return common.ErrorInternal
	}

	return s.repomanager.Images(s.db).Delete(ctx, imageID)
}

func (s *ImageService) loadImageAndViewer(ctx context.Context, email, imageID string) (*models.Image, *models.User, error) {
	image, err := s.repomanager.Images(s.db).GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, err
	}

	viewer, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}

	return image, viewer, nil
}
