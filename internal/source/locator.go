package source

import (
	"net/url"
	"regexp"
	"strings"
)

// DefaultDriveDownloadURL is the direct download endpoint share links are
// rewritten to.
const DefaultDriveDownloadURL = "https://drive.google.com/uc"

// S3Scheme prefixes locators served from S3 compatible storage.
const S3Scheme = "s3://"

// driveIDPattern matches the file id segment of a share link,
// e.g. https://drive.google.com/file/d/<id>/view.
var driveIDPattern = regexp.MustCompile(`d/([a-zA-Z0-9_-]+)`)

// ResolveDriveURL rewrites a share link into a direct download URL of the
// form <base>?id=<id>. base defaults to DefaultDriveDownloadURL.
//
// RETURNS:
//   - The download URL.
//   - An error wrapping ErrInvalidLocator if no file id is found.
func ResolveDriveURL(locator, base string) (string, error) {
	match := driveIDPattern.FindStringSubmatch(locator)
	if match == nil {
		return "", invalidLocator("no file id in %q", locator)
	}

	if base == "" {
		base = DefaultDriveDownloadURL
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", invalidLocator("bad download endpoint %q", base)
	}

	query := u.Query()
	query.Set("id", match[1])
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// ParseS3Locator splits s3://bucket/key into its parts.
func ParseS3Locator(locator string) (bucket, key string, err error) {
	if !strings.HasPrefix(locator, S3Scheme) {
		return "", "", invalidLocator("not an s3 locator")
	}

	bucket, key, _ = strings.Cut(strings.TrimPrefix(locator, S3Scheme), "/")
	if bucket == "" || key == "" {
		return "", "", invalidLocator("s3 locator needs a bucket and a key")
	}

	return bucket, key, nil
}
