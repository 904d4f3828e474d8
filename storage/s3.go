package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"orquidea/config"
)

// S3Options describes an S3-compatible endpoint.
type S3Options struct {
	URL    string
	Region string
	Key    string
	Secret string
}

// NewS3Client creates an S3 client. An empty URL uses the AWS default endpoints.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loaders := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.Key, opts.Secret, "")),
	}
	if opts.URL != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               opts.URL,
					SigningRegion:     opts.Region,
					HostnameImmutable: true,
				}, nil
			},
		)
		loaders = append(loaders, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg), nil
}

// Archive uploads snapshots of fetched work lists.
type Archive struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// NewArchive builds the snapshot archive from cfg.
func NewArchive(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Archive, error) {
	client, err := NewS3Client(ctx, S3Options{
		URL:    cfg.S3URL,
		Region: cfg.S3Region,
		Key:    cfg.S3Key,
		Secret: cfg.S3Secret,
	})
	if err != nil {
		return nil, err
	}
	return &Archive{client: client, bucket: cfg.S3Bucket, logger: logger}, nil
}

// SnapshotKey is the object key for a researcher's snapshot taken at t.
func SnapshotKey(orcidID string, t time.Time) string {
	return fmt.Sprintf("snapshots/%s/%s.json", orcidID, t.UTC().Format("2006-01-02T15-04-05Z"))
}

// PutSnapshot stores the JSON document and returns its object key.
func (a *Archive) PutSnapshot(ctx context.Context, orcidID string, at time.Time, data []byte) (string, error) {
	key := SnapshotKey(orcidID, at)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", err
	}
	a.logger.Debug("Snapshot uploaded", zap.String("bucket", a.bucket), zap.String("key", key))
	return key, nil
}
