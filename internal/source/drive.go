package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

const (
	// DefaultMaxBytes caps a single download.
	DefaultMaxBytes int64 = 64 << 20

	defaultRetryInterval = 250 * time.Millisecond

	// maxInterstitialBytes bounds how much of an HTML page is inspected for
	// a download confirmation link.
	maxInterstitialBytes = 1 << 20
)

// DriveConfig configures the Drive fetcher. Zero values select defaults.
type DriveConfig struct {
	// DownloadURL is the direct download endpoint. Default:
	// DefaultDriveDownloadURL.
	DownloadURL string

	// Timeout bounds each HTTP request when no client is supplied.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// RetryInterval is the first backoff delay.
	RetryInterval time.Duration

	// MaxBytes caps the download size. Default: DefaultMaxBytes.
	MaxBytes int64

	// TempDir holds the artifacts. Default: the system temp directory.
	TempDir string
}

// DriveFetcher downloads share links over HTTP.
type DriveFetcher struct {
	cfg    DriveConfig
	client *http.Client
	logger zerolog.Logger
}

// NewDriveFetcher returns a Drive fetcher. A nil client gets a default one
// with cfg.Timeout.
func NewDriveFetcher(cfg DriveConfig, client *http.Client, logger zerolog.Logger) *DriveFetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &DriveFetcher{
		cfg:    cfg,
		client: client,
		logger: logger.With().Str("component", "drive_fetcher").Logger(),
	}
}

// Fetch implements Fetcher. The locator is resolved before any request is
// sent, so a malformed link never reaches the network.
func (d *DriveFetcher) Fetch(ctx context.Context, locator string) (*Artifact, error) {
	downloadURL, err := ResolveDriveURL(locator, d.cfg.DownloadURL)
	if err != nil {
		return nil, err
	}

	artifact, file, err := createArtifact(d.cfg.TempDir)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	size, err := d.downloadWithRetry(ctx, downloadURL, file)
	if err != nil {
		discard(artifact, file)
		return nil, err
	}

	if err := file.Close(); err != nil {
		_ = artifact.Release()
		return nil, &FetchError{Err: fmt.Errorf("failed to close temporary file: %w", withoutPath(err))}
	}

	artifact.Size = size
	d.logger.Debug().Int64("bytes", size).Msg("source downloaded")

	return artifact, nil
}

// downloadWithRetry retries transport failures, 429 and 5xx responses with
// exponential backoff. Other failures end the loop at once.
func (d *DriveFetcher) downloadWithRetry(ctx context.Context, downloadURL string, file *os.File) (int64, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.RetryInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.cfg.MaxRetries)), ctx)

	var (
		size    int64
		attempt int
	)

	err := backoff.RetryNotify(func() error {
		attempt++

		// Each attempt starts from an empty file.
		if err := rewind(file); err != nil {
			return backoff.Permanent(&FetchError{Err: err})
		}

		n, err := d.download(ctx, downloadURL, file)
		if err == nil {
			size = n
			return nil
		}

		var fetchErr *FetchError
		if errors.As(err, &fetchErr) && !fetchErr.Retryable() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		return err
	}, policy, func(err error, wait time.Duration) {
		d.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("download failed, retrying")
	})

	if err != nil {
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			err = &FetchError{Err: err}
		}
		return 0, err
	}

	return size, nil
}

// download performs one attempt. An HTML reply is checked for a download
// confirmation form, which is followed at most once.
func (d *DriveFetcher) download(ctx context.Context, downloadURL string, w io.Writer) (int64, error) {
	resp, err := d.get(ctx, downloadURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if !isHTML(resp) {
		return d.save(w, resp.Body, resp.ContentLength)
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxInterstitialBytes))
	if err != nil {
		return 0, &FetchError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	next := confirmURL(downloadURL, page)
	if next == "" {
		// Not an interstitial. Keep the body; parsing decides what it is.
		return d.save(w, io.MultiReader(bytes.NewReader(page), resp.Body), resp.ContentLength)
	}

	d.logger.Debug().Msg("following download confirmation page")

	confirmed, err := d.get(ctx, next)
	if err != nil {
		return 0, err
	}
	defer confirmed.Body.Close()

	return d.save(w, confirmed.Body, confirmed.ContentLength)
}

// get sends a GET that bypasses intermediate caches. Non-2xx responses are
// returned as *FetchError with the body closed.
func (d *DriveFetcher) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(&FetchError{Err: fmt.Errorf("failed to build request: %w", err)})
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("User-Agent", "vchconv")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &FetchError{StatusCode: resp.StatusCode}
	}

	return resp, nil
}

// save copies body to w, enforcing the size cap.
func (d *DriveFetcher) save(w io.Writer, body io.Reader, contentLength int64) (int64, error) {
	tooLarge := &FetchError{Err: fmt.Errorf("%w (limit %d bytes)", ErrTooLarge, d.cfg.MaxBytes)}

	if contentLength > d.cfg.MaxBytes {
		return 0, tooLarge
	}

	n, err := io.Copy(w, io.LimitReader(body, d.cfg.MaxBytes+1))
	if err != nil {
		return n, &FetchError{Err: fmt.Errorf("failed to read response body: %w", withoutPath(err))}
	}
	if n > d.cfg.MaxBytes {
		return n, tooLarge
	}

	return n, nil
}

func rewind(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("failed to reset temporary file: %w", withoutPath(err))
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset temporary file: %w", withoutPath(err))
	}
	return nil
}

func isHTML(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mediaType == "text/html"
}

// =============================================================================
// CONFIRMATION PAGE
// =============================================================================

// confirmURL looks for the download form Drive shows for files it cannot
// virus scan, or failing that a link carrying a confirm token. It returns ""
// when the page has neither.
func confirmURL(pageURL string, page []byte) string {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return ""
	}

	if form := findElement(doc, "form", func(n *html.Node) bool { return attr(n, "action") != "" }); form != nil {
		target, err := resolveRef(pageURL, attr(form, "action"))
		if err != nil {
			return ""
		}

		query := target.Query()
		walk(form, func(n *html.Node) {
			if n.Type == html.ElementNode && n.Data == "input" && attr(n, "name") != "" && attr(n, "type") != "submit" {
				query.Set(attr(n, "name"), attr(n, "value"))
			}
		})
		target.RawQuery = query.Encode()

		return target.String()
	}

	link := findElement(doc, "a", func(n *html.Node) bool { return strings.Contains(attr(n, "href"), "confirm=") })
	if link == nil {
		return ""
	}

	target, err := resolveRef(pageURL, attr(link, "href"))
	if err != nil {
		return ""
	}
	return target.String()
}

func resolveRef(base, ref string) (*url.URL, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return baseURL.ResolveReference(refURL), nil
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func findElement(root *html.Node, tag string, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) {
		if found == nil && n.Type == html.ElementNode && n.Data == tag && match(n) {
			found = n
		}
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
