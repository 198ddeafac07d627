package reliability

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Mirror is remote storage for backup copies
type Mirror interface {
	Upload(ctx context.Context, name string, data []byte, checksum string) error
	List(ctx context.Context) ([]MirrorObject, error)
	Delete(ctx context.Context, name string) error
}

// MirrorObject is one stored backup copy
type MirrorObject struct {
	Name         string
	SizeBytes    int64
	LastModified time.Time
}

// MirrorConfig locates an S3-compatible bucket (AWS, R2, MinIO)
type MirrorConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3Mirror uploads backups with the S3 transfer manager
type S3Mirror struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewS3Mirror builds the client from static credentials. A custom endpoint
// switches to path-style addressing.
func NewS3Mirror(ctx context.Context, cfg MirrorConfig, log zerolog.Logger) (*S3Mirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backup bucket not configured")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Mirror{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		log:      log.With().Str("service", "s3_mirror").Logger(),
	}, nil
}

// Upload stores data under prefix+name
func (m *S3Mirror) Upload(ctx context.Context, name string, data []byte, checksum string) error {
	key := m.prefix + name
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"checksum": checksum},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	m.log.Info().Str("key", key).Int("bytes", len(data)).Msg("Backup mirrored")
	return nil
}

// List returns the mirrored backups under the prefix
func (m *S3Mirror) List(ctx context.Context) ([]MirrorObject, error) {
	var out []MirrorObject
	p := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(m.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list mirror: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			o := MirrorObject{Name: strings.TrimPrefix(*obj.Key, m.prefix)}
			if obj.Size != nil {
				o.SizeBytes = *obj.Size
			}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			out = append(out, o)
		}
	}
	return out, nil
}

// Delete removes prefix+name
func (m *S3Mirror) Delete(ctx context.Context, name string) error {
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.prefix + name),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}
