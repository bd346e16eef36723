package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Config configures the S3 fetcher. Empty credentials fall back to the
// default AWS credential chain.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string

	MaxBytes int64
	TempDir  string
}

// S3Downloader is the part of the transfer manager the fetcher uses.
type S3Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// S3Fetcher downloads s3://bucket/key locators.
type S3Fetcher struct {
	downloader S3Downloader
	cfg        S3Config
	logger     zerolog.Logger
}

// NewS3Fetcher builds a fetcher backed by the AWS SDK. A custom endpoint
// switches to path-style addressing for S3 compatible stores.
func NewS3Fetcher(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Fetcher, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3FetcherWithDownloader(manager.NewDownloader(client), cfg, logger), nil
}

// NewS3FetcherWithDownloader builds a fetcher around an existing downloader.
func NewS3FetcherWithDownloader(downloader S3Downloader, cfg S3Config, logger zerolog.Logger) *S3Fetcher {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	return &S3Fetcher{
		downloader: downloader,
		cfg:        cfg,
		logger:     logger.With().Str("component", "s3_fetcher").Logger(),
	}
}

// Fetch implements Fetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, locator string) (*Artifact, error) {
	bucket, key, err := ParseS3Locator(locator)
	if err != nil {
		return nil, err
	}

	artifact, file, err := createArtifact(f.cfg.TempDir)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	n, err := f.downloader.Download(ctx, cappedWriterAt{w: file, max: f.cfg.MaxBytes}, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		discard(artifact, file)
		return nil, s3FetchError(err)
	}

	if err := file.Close(); err != nil {
		_ = artifact.Release()
		return nil, &FetchError{Err: fmt.Errorf("failed to close temporary file: %w", withoutPath(err))}
	}

	artifact.Size = n
	f.logger.Debug().Str("bucket", bucket).Int64("bytes", n).Msg("source downloaded")

	return artifact, nil
}

func s3FetchError(err error) error {
	fetchErr := &FetchError{Err: fmt.Errorf("failed to download object: %w", withoutPath(err))}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		fetchErr.StatusCode = respErr.HTTPStatusCode()
	}

	return fetchErr
}

// cappedWriterAt rejects writes past max bytes.
type cappedWriterAt struct {
	w   io.WriterAt
	max int64
}

func (c cappedWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if off+int64(len(p)) > c.max {
		return 0, fmt.Errorf("%w (limit %d bytes)", ErrTooLarge, c.max)
	}
	return c.w.WriteAt(p, off)
}
