// Package ledger records which media items have been archived so that later
// runs can skip them. Every backend offers atomic point lookups and
// idempotent inserts keyed by the media item ID.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrLedgerUnavailable wraps any storage-level failure.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrUnknownBackend    = errors.New("unknown ledger backend")
)

const (
	BackendSQLite  = "sqlite"
	BackendBitcask = "bitcask"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Record is one archived media item. Only ID is required; the other fields
// are informational and may be empty for rows written by older versions.
type Record struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename,omitempty"`
	Path       string    `json:"path,omitempty"`
	Checksum   string    `json:"checksum,omitempty"`
	ArchivedAt time.Time `json:"archivedAt"`
}

type Ledger interface {
	// Contains reports whether id has been recorded.
	Contains(ctx context.Context, id string) (bool, error)
	// Get returns the record for id. found is false when id is absent.
	Get(ctx context.Context, id string) (rec Record, found bool, err error)
	// Insert records rec. Inserting an ID that is already present is a no-op.
	Insert(ctx context.Context, rec Record) error
	// Records returns every entry ordered by ID.
	Records(ctx context.Context) ([]Record, error)
	Close() error
}

// Open creates or opens the ledger for the named backend. path is ignored by
// the memory backend.
func Open(ctx context.Context, backend, path string, logger log.FieldLogger) (Ledger, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger = logger.WithField("ledger", backend)

	var (
		l   Ledger
		err error
	)
	switch strings.ToLower(backend) {
	case BackendSQLite, "":
		l, err = OpenSQLite(ctx, path, logger)
	case BackendBitcask:
		l, err = OpenBitcask(path, logger)
	case BackendBolt:
		l, err = OpenBolt(path, logger)
	case BackendMemory:
		l, err = NewMemory()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLedgerUnavailable, op, err)
}
