package archiver

import (
	"context"
	"fmt"
	"time"

	"go-photos-archiver/internal/downloader"
	"go-photos-archiver/internal/models"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = time.Second
)

// RetryPolicy bounds how often a transient fetch failure is retried.
// MaxAttempts counts every try, the first one included.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultRetryDelay}
}

// Fetch downloads item's bytes, retrying only transient errors. When every
// attempt fails transiently the error wraps ErrMaxAttempts and names the
// item's filename. onRetry, when set, runs before each retry.
func (p RetryPolicy) Fetch(ctx context.Context, fetcher Fetcher, item models.MediaItem, logger log.FieldLogger, onRetry func()) ([]byte, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	var (
		data    []byte
		attempt int
	)
	operation := func() error {
		attempt++
		b, err := fetcher.Fetch(ctx, item.DownloadURL())
		if err != nil {
			if downloader.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		data = b
		return nil
	}
	notify := func(err error, next time.Duration) {
		logger.WithError(err).Warnf("Attempt %d/%d failed, retrying in %s", attempt, attempts, next)
		if onRetry != nil {
			onRetry()
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(operation, policy, notify)
	switch {
	case err == nil:
		return data, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case downloader.IsTransient(err):
		return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrMaxAttempts, item.Filename, attempt, err)
	default:
		return nil, fmt.Errorf("fetching %s: %w", item.Filename, err)
	}
}
