package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-photos-archiver/internal/helpers"

	log "github.com/sirupsen/logrus"
)

// Custom Downloader Errors
var (
	// ErrTransient marks failures worth retrying: connection errors, timeouts,
	// truncated bodies, 5xx and 429 responses.
	ErrTransient    = errors.New("transient download error")
	ErrHttpStatus   = errors.New("unexpected HTTP status code")
	ErrHttpRequest  = errors.New("HTTP request creation/execution error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("media item bytes not found")
)

// Downloader fetches media item bytes over HTTP.
type Downloader struct {
	client      *http.Client
	accessToken string
	logger      log.FieldLogger
}

// NewDownloader creates a new Downloader instance. A nil client gets a
// default with a generous timeout, since videos can be large.
func NewDownloader(client *http.Client, accessToken string, logger log.FieldLogger) *Downloader {
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Minute,
		}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Downloader{
		client:      client,
		accessToken: accessToken,
		logger:      logger,
	}
}

// Fetch returns the full response body for url. Errors wrapping ErrTransient
// may succeed when retried; anything else will not.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request for %s: %w", ErrHttpRequest, url, err)
	}
	if d.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+d.accessToken)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if helpers.IsNetworkFailure(err) {
			return nil, fmt.Errorf("%w: %w: %w", ErrTransient, ErrHttpRequest, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrHttpRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, classifyStatus(resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: reading body: %w", ErrTransient, err)
	}
	if resp.ContentLength >= 0 && int64(len(data)) != resp.ContentLength {
		return nil, fmt.Errorf("%w: %w: got %d of %d bytes", ErrTransient, io.ErrUnexpectedEOF, len(data), resp.ContentLength)
	}

	d.logger.WithFields(log.Fields{
		"bytes":    len(data),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("Fetched media item bytes")
	return data, nil
}

func classifyStatus(code int, url string) error {
	status := fmt.Errorf("%w: %d %s", ErrHttpStatus, code, http.StatusText(code))
	switch {
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: %w", ErrTransient, status)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUnauthorized, status)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s: %w", ErrNotFound, url, status)
	default:
		return status
	}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
