package source

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jobrunner/tilevault/internal/domain"
)

// S3Source implements TileSource for tile mirrors stored in AWS S3.
// Objects are keyed <prefix>/<z>/<x>/<y>.png.
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config holds S3 tile source configuration.
type S3Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Source creates a new S3 tile source adapter.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(cfg.Region))

	// Use explicit credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Source{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// URL returns a descriptive s3:// URL for the tile object.
func (s *S3Source) URL(tile domain.TileCoordinate) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key(tile))
}

// Fetch downloads a tile object from S3.
func (s *S3Source) Fetch(ctx context.Context, tile domain.TileCoordinate) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(tile)),
	})
	if err != nil {
		return nil, &domain.FetchError{Coordinate: tile, URL: s.URL(tile), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{Coordinate: tile, URL: s.URL(tile), Err: err}
	}

	return data, nil
}

// key returns the full S3 key including prefix.
func (s *S3Source) key(tile domain.TileCoordinate) string {
	key := tile.Key() + ".png"
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}
