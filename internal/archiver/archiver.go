// Package archiver turns media item descriptors into archived bytes. An
// Archiver handles one item; the Engine fans items out over a bounded pool of
// workers and collects one Outcome per item.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-photos-archiver/internal/helpers"
	"go-photos-archiver/internal/ledger"
	"go-photos-archiver/internal/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	ErrMaxAttempts = errors.New("max attempts reached")
	ErrFileSystem  = errors.New("filesystem error")
	ErrObjectStore = errors.New("object store error")
	ErrLedger      = errors.New("ledger error")
	ErrInvalidItem = errors.New("invalid media item")
	ErrNoWorkers   = errors.New("worker count must be positive")
)

// Archiver archives a single media item. It returns true when the item was
// newly archived, false when it was skipped, or an error.
type Archiver interface {
	Archive(ctx context.Context, item models.MediaItem, albumPath string) (bool, error)
}

// Fetcher returns the raw bytes behind a URL. Errors for which
// downloader.IsTransient is true are retried.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Destination is where archived bytes land: a directory tree or a bucket.
type Destination interface {
	// ResolvePath derives the canonical location from the item's creation
	// date and filename, preparing any parent containers.
	ResolvePath(item models.MediaItem) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Write stores data at path, replacing anything already there.
	Write(ctx context.Context, path string, data []byte) error
	// LinkIntoAlbum adds a reference to canonicalPath under albumPath. An
	// existing reference is left alone.
	LinkIntoAlbum(ctx context.Context, albumPath, canonicalPath, filename string) error
}

// locator is implemented by destinations whose paths are not local files.
type locator interface {
	// Location returns the ledger form of path, such as an s3:// URL.
	Location(path string) string
}

func (a *TaskArchiver) location(target string) string {
	if l, ok := a.dest.(locator); ok {
		return l.Location(target)
	}
	return target
}

// Indexer receives every newly archived item. Failures are logged only.
type Indexer interface {
	IndexArchived(item models.MediaItem, path, album string) error
}

type Options struct {
	Logger  log.FieldLogger
	Retry   RetryPolicy
	Metrics *Metrics
	Indexer Indexer
}

// TaskArchiver runs the per-item algorithm against a Destination, a Ledger
// and a Fetcher.
type TaskArchiver struct {
	dest    Destination
	ledger  ledger.Ledger
	fetcher Fetcher
	retry   RetryPolicy
	logger  log.FieldLogger
	metrics *Metrics
	indexer Indexer

	// inflight collapses concurrent tasks for the same media item ID into
	// one fetch and write.
	inflight singleflight.Group
}

func NewTaskArchiver(dest Destination, l ledger.Ledger, fetcher Fetcher, opts Options) *TaskArchiver {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	return &TaskArchiver{
		dest:    dest,
		ledger:  l,
		fetcher: fetcher,
		retry:   opts.Retry,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		indexer: opts.Indexer,
	}
}

func (a *TaskArchiver) Archive(ctx context.Context, item models.MediaItem, albumPath string) (bool, error) {
	logger := a.logger.WithFields(log.Fields{"mediaItemId": item.ID, "filename": item.Filename})

	if !item.IsReady() {
		logger.Debug("Media item not ready, skipping")
		return false, nil
	}

	target, err := a.dest.ResolvePath(item)
	if err != nil {
		return false, fmt.Errorf("resolving path for %s: %w", item.Filename, err)
	}

	if albumPath != "" {
		if err := a.dest.LinkIntoAlbum(ctx, albumPath, target, item.Filename); err != nil {
			return false, fmt.Errorf("linking %s into album: %w", item.Filename, err)
		}
	}

	var executed bool
	v, err, shared := a.inflight.Do(item.ID, func() (any, error) {
		executed = true
		return a.archive(ctx, item, target, albumPath, logger)
	})
	if err != nil {
		return false, err
	}
	if shared && !executed {
		logger.Debug("Media item archived by a concurrent task")
		return false, nil
	}
	return v.(bool), nil
}

func (a *TaskArchiver) archive(ctx context.Context, item models.MediaItem, target, albumPath string, logger log.FieldLogger) (bool, error) {
	exists, err := a.dest.Exists(ctx, target)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", target, err)
	}
	if exists {
		recorded, err := a.ledger.Contains(ctx, item.ID)
		if err != nil {
			return false, fmt.Errorf("%w: looking up %s: %w", ErrLedger, item.Filename, err)
		}
		if recorded {
			logger.Debug("Already archived, skipping")
			return false, nil
		}
		logger.Info("File present but not recorded, downloading again")
	}

	data, err := a.retry.Fetch(ctx, a.fetcher, item, logger, a.metrics.retried)
	if err != nil {
		return false, err
	}

	if err := a.dest.Write(ctx, target, data); err != nil {
		return false, fmt.Errorf("writing %s: %w", item.Filename, err)
	}
	a.metrics.wrote(len(data))

	rec := ledger.Record{
		ID:         item.ID,
		Filename:   item.Filename,
		Path:       a.location(target),
		Checksum:   helpers.Checksum(data),
		ArchivedAt: time.Now().UTC(),
	}
	if err := a.ledger.Insert(ctx, rec); err != nil {
		// The file stays on disk; the next run sees it unrecorded and fetches again.
		logger.WithError(err).Warn("Written but not recorded in ledger")
		return false, fmt.Errorf("%w: recording %s: %w", ErrLedger, item.Filename, err)
	}

	if a.indexer != nil {
		if err := a.indexer.IndexArchived(item, target, albumPath); err != nil {
			logger.WithError(err).Warn("Failed to index archived media item")
		}
	}

	logger.WithField("bytes", helpers.BytesToSize(uint64(len(data)))).Info("Archived media item")
	return true, nil
}

// NullArchiver records what it is asked to archive and writes nothing. Every
// item is reported as skipped.
type NullArchiver struct {
	mu    sync.Mutex
	calls []NullCall
}

type NullCall struct {
	Item      models.MediaItem
	AlbumPath string
}

func (n *NullArchiver) Archive(_ context.Context, item models.MediaItem, albumPath string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, NullCall{Item: item, AlbumPath: albumPath})
	return false, nil
}

func (n *NullArchiver) Calls() []NullCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NullCall(nil), n.calls...)
}
