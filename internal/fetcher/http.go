package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// defaultFileName is used when a URL has no usable last path segment.
const defaultFileName = "uspvdb.csv"

// HTTPOptions configures HTTPFetcher.
type HTTPOptions struct {
	UserAgent         string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	RetryWait         time.Duration // base backoff, doubled on each retry
}

// HTTPFetcher fetches dataset files over HTTP. Transport failures, 429 and
// 5xx responses are retried with exponential backoff.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher, filling unset options with defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "solar-cli/1.0"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
}

// Fetch downloads url into dir. The body goes to a temporary file that is
// renamed into place once complete, so a failed download never leaves a
// truncated dataset under the final name.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dir string) (*Download, error) {
	name, err := fileName(rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := f.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "fetcher: create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, name+".*.part")
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create temp file")
	}

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, eris.Wrapf(err, "fetcher: save %s", rawURL)
	}

	dest := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, eris.Wrapf(err, "fetcher: move download to %s", dest)
	}

	zap.L().Debug("fetcher: downloaded",
		zap.String("url", rawURL),
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return &Download{Path: dest, Bytes: n, ETag: resp.Header.Get("ETag")}, nil
}

// Revision issues a HEAD request and returns the ETag header. A non-2xx
// response is an error, so the tag of an error page is never reported.
func (f *HTTPFetcher) Revision(ctx context.Context, rawURL string) (string, error) {
	resp, err := f.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return "", err
	}
	_ = resp.Body.Close()
	return resp.Header.Get("ETag"), nil
}

// do sends one request, retrying transient failures. Non-retryable non-2xx
// responses come back as a *StatusError.
func (f *HTTPFetcher) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if attempt > 0 {
			if err := f.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: build %s request", method)
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, eris.Wrapf(ctx.Err(), "fetcher: %s %s", method, rawURL)
			}
			lastErr = eris.Wrapf(err, "fetcher: %s %s", method, rawURL)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = &StatusError{Method: method, URL: rawURL, StatusCode: resp.StatusCode}
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			_ = resp.Body.Close()
			return nil, &StatusError{Method: method, URL: rawURL, StatusCode: resp.StatusCode}
		default:
			return resp, nil
		}

		zap.L().Warn("fetcher: request failed",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return nil, eris.Wrapf(lastErr, "fetcher: giving up after %d attempts", f.opts.MaxRetries)
}

// backoff sleeps RetryWait * 2^(attempt-1), capped at 30s, plus jitter.
func (f *HTTPFetcher) backoff(ctx context.Context, attempt int) error {
	d := f.opts.RetryWait << (attempt - 1)
	if d > 30*time.Second || d <= 0 {
		d = 30 * time.Second
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "fetcher: backoff")
	case <-t.C:
		return nil
	}
}

// fileName returns the last path segment of rawURL.
func fileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return defaultFileName, nil
	}
	return name, nil
}
