package blob

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/go-classroom-api/internal/config"
	"github.com/go-classroom-api/internal/domain"
	"github.com/go-classroom-api/internal/pkg/id"
)

// S3Store uploads attachments to an S3 bucket instead of the local volume.
// The relocation is upload-then-remove; there is no cross-device rename hazard
// but also no atomicity, so the temp file is only removed after a successful put.
type S3Store struct {
	client   *s3.Client
	bucket   string
	maxBytes int64
	logger   *zap.Logger
}

// NewS3Client creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewS3Client(cfg *config.Config) *s3.Client {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}

	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		panic("failed to load AWS config for S3: " + err.Error())
	}

	clientOpts := []func(*s3.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...)
}

func NewS3Store(client *s3.Client, bucket string, maxBytes int64, logger *zap.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, maxBytes: maxBytes, logger: logger}
}

func (s *S3Store) Relocate(ctx context.Context, up Upload) (*domain.Attachment, error) {
	if up.Size > s.maxBytes {
		s.discardTemp(up.TempPath)
		return nil, fmt.Errorf("attachment is %d bytes, limit %d: %w", up.Size, s.maxBytes, domain.ErrPayloadTooLarge)
	}

	storedName := fmt.Sprintf("%s_%s", id.New(), sanitizeFilename(up.OriginalName))
	key := fmt.Sprintf("attachments/%s", storedName)

	f, err := os.Open(up.TempPath)
	if err != nil {
		return nil, fmt.Errorf("open temp upload: %v: %w", err, domain.ErrStorage)
	}
	defer f.Close()

	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.discardTemp(up.TempPath)
		return nil, fmt.Errorf("s3 put object: %v: %w", err, domain.ErrStorage)
	}
	s.discardTemp(up.TempPath)

	return &domain.Attachment{
		Filename: storedName,
		Path:     fmt.Sprintf("s3://%s/%s", s.bucket, key),
		MimeType: contentType,
		Size:     up.Size,
	}, nil
}

// Open resolves a stored name to a presigned GET URL; the transport layer
// redirects the client there instead of proxying the object body.
func (s *S3Store) Open(ctx context.Context, storedName string) (string, error) {
	key := fmt.Sprintf("attachments/%s", sanitizeFilename(storedName))
	presigner := s3.NewPresignClient(s.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}
	return req.URL, nil
}

func (s *S3Store) discardTemp(tempPath string) {
	if tempPath == "" {
		return
	}
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("temp upload left behind", zap.String("path", tempPath), zap.Error(err))
	}
}
