package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"go-photos-archiver/internal/database"

	log "github.com/sirupsen/logrus"
)

var bitcaskKeyPrefix = []byte("media_item:")

// Bitcask stores one JSON encoded Record per key in a bitcask directory.
type Bitcask struct {
	db     *database.DB
	logger log.FieldLogger
}

func OpenBitcask(path string, logger log.FieldLogger) (*Bitcask, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	db, err := database.Open(path)
	if err != nil {
		return nil, unavailable("open", err)
	}
	return &Bitcask{db: db, logger: logger}, nil
}

func bitcaskKey(id string) []byte {
	return append(append([]byte{}, bitcaskKeyPrefix...), id...)
}

func (b *Bitcask) Contains(_ context.Context, id string) (bool, error) {
	return b.db.Has(bitcaskKey(id)), nil
}

func (b *Bitcask) Get(_ context.Context, id string) (Record, bool, error) {
	value, err := b.db.Get(bitcaskKey(id))
	if errors.Is(err, database.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, unavailable("get", err)
	}
	var rec Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return Record{}, false, unavailable("decode", err)
	}
	return rec, true, nil
}

func (b *Bitcask) Insert(_ context.Context, rec Record) error {
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return unavailable("encode", err)
	}
	written, err := b.db.PutIfAbsent(bitcaskKey(rec.ID), value)
	if err != nil {
		return unavailable("insert", err)
	}
	if !written {
		b.logger.WithField("mediaItemId", rec.ID).Debug("Already recorded")
	}
	return nil
}

func (b *Bitcask) Records(_ context.Context) ([]Record, error) {
	var records []Record
	err := b.db.Fold(func(key, value []byte) error {
		if !bytes.HasPrefix(key, bitcaskKeyPrefix) {
			return nil
		}
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			b.logger.WithError(err).Warnf("Skipping undecodable record %s", string(key))
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, unavailable("records", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (b *Bitcask) Close() error {
	return b.db.Close()
}
