package archiver

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"go-photos-archiver/internal/downloader"
	"go-photos-archiver/internal/ledger"
	"go-photos-archiver/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves "bytes of <url>" and can fail a URL a set number of
// times first.
type fakeFetcher struct {
	mu       sync.Mutex
	failures map[string]int
	failWith error
	calls    map[string]int
	delay    time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		failures: map[string]int{},
		calls:    map[string]int{},
		failWith: fmt.Errorf("%w: connection reset by peer", downloader.ErrTransient),
	}
}

func (f *fakeFetcher) failTimes(item models.MediaItem, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[item.DownloadURL()] = n
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.failures[url] > 0 {
		f.failures[url]--
		return nil, f.failWith
	}
	return []byte("bytes of " + url), nil
}

func (f *fakeFetcher) callsFor(item models.MediaItem) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[item.DownloadURL()]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// flakyLedger fails inserts while failInsert is set.
type flakyLedger struct {
	ledger.Ledger
	mu         sync.Mutex
	failInsert bool
}

var errDiskFull = errors.New("disk full")

func (l *flakyLedger) Insert(ctx context.Context, rec ledger.Record) error {
	l.mu.Lock()
	fail := l.failInsert
	l.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: %w", ledger.ErrLedgerUnavailable, errDiskFull)
	}
	return l.Ledger.Insert(ctx, rec)
}

type recordingIndexer struct {
	mu    sync.Mutex
	items []string
	err   error
}

func (r *recordingIndexer) IndexArchived(item models.MediaItem, path, album string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item.ID+"|"+album)
	return r.err
}

func newMemoryLedger(t *testing.T) *ledger.Memory {
	t.Helper()
	l, err := ledger.NewMemory()
	require.NoError(t, err)
	return l
}

func quietLogger() log.FieldLogger {
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return l
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}
}

func photo(id string) models.MediaItem {
	return models.MediaItem{
		ID:       id,
		BaseURL:  "https://lh3.example/" + id,
		MimeType: "image/jpeg",
		Filename: id + ".jpg",
		MediaMetadata: models.MediaMetadata{
			CreationTime: "2021-03-09T10:20:30Z",
			Photo:        &models.PhotoMetadata{CameraMake: "Canon"},
		},
	}
}

func video(id string, status models.VideoProcessingStatus) models.MediaItem {
	return models.MediaItem{
		ID:       id,
		BaseURL:  "https://lh3.example/" + id,
		MimeType: "video/mp4",
		Filename: id + ".mp4",
		MediaMetadata: models.MediaMetadata{
			CreationTime: "2020-12-31T23:59:59Z",
			Video:        &models.VideoMetadata{Status: status},
		},
	}
}

func seq(items ...models.MediaItem) iter.Seq2[models.MediaItem, error] {
	return func(yield func(models.MediaItem, error) bool) {
		for _, it := range items {
			if !yield(it, nil) {
				return
			}
		}
	}
}
