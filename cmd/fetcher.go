package cmd

import (
	"context"
	"fmt"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/source"
)

// newFetcher builds the remote source fetcher from the fetch settings. S3 is
// only wired when a region or endpoint is configured.
func newFetcher(ctx context.Context) (source.Fetcher, error) {
	fc := mainConfig.Fetch

	router := &source.Router{
		Drive: source.NewDriveFetcher(source.DriveConfig{
			DownloadURL: fc.DriveDownloadURL,
			Timeout:     fc.Timeout,
			MaxRetries:  fc.MaxRetries,
			MaxBytes:    fc.MaxBytes,
			TempDir:     fc.TempDir,
		}, nil, log),
	}

	if fc.S3Region != "" || fc.S3Endpoint != "" {
		s3Fetcher, err := source.NewS3Fetcher(ctx, source.S3Config{
			Region:          fc.S3Region,
			Endpoint:        fc.S3Endpoint,
			AccessKeyID:     fc.S3AccessKeyID,
			SecretAccessKey: fc.S3SecretAccessKey,
			MaxBytes:        fc.MaxBytes,
			TempDir:         fc.TempDir,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to set up s3 source: %w", err)
		}
		router.S3 = s3Fetcher
	}

	return router, nil
}
