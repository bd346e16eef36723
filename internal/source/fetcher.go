// =============================================================================
// Voucher XML Converter - Source Fetchers
// =============================================================================
//
// This package turns a remote locator into a local temporary file. Supported
// locators:
//   - Google Drive share links (https://drive.google.com/file/d/<id>/view)
//   - S3 objects (s3://bucket/key)
//
// Every fetch downloads into its own uniquely named file, so concurrent
// requests never share an artifact. Nothing is cached between fetches.
//
// =============================================================================

package source

//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks -source=fetcher.go Fetcher

import (
	"context"
	"strings"
)

// Fetcher retrieves the document a locator points to.
type Fetcher interface {
	// Fetch downloads the document into a fresh temporary artifact.
	//
	// RETURNS:
	//   - The artifact. The caller must Release it.
	//   - An error wrapping ErrInvalidLocator when the locator is malformed,
	//     or a *FetchError when the download fails.
	Fetch(ctx context.Context, locator string) (*Artifact, error)
}

// Router dispatches a locator to the fetcher serving its scheme.
type Router struct {
	Drive Fetcher
	S3    Fetcher
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, locator string) (*Artifact, error) {
	next := r.Drive
	if strings.HasPrefix(locator, S3Scheme) {
		next = r.S3
	}

	if next == nil {
		return nil, &FetchError{Err: ErrUnavailable}
	}

	return next.Fetch(ctx, locator)
}
