package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var mediaItemsBucket = []byte("media_items")

// Bolt keeps records in a single bbolt bucket. bbolt allows one writer at a
// time, and each Insert is one read-write transaction.
type Bolt struct {
	db     *bolt.DB
	logger log.FieldLogger
}

func OpenBolt(path string, logger log.FieldLogger) (*Bolt, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, unavailable("create directory", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, unavailable("open", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(mediaItemsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, unavailable("create bucket", err)
	}

	logger.Debugf("Bolt ledger opened at %s", path)
	return &Bolt{db: db, logger: logger}, nil
}

func (b *Bolt) Contains(_ context.Context, id string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(mediaItemsBucket).Get([]byte(id)) != nil
		return nil
	})
	if err != nil {
		return false, unavailable("contains", err)
	}
	return found, nil
}

func (b *Bolt) Get(_ context.Context, id string) (Record, bool, error) {
	var (
		rec   Record
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(mediaItemsBucket).Get([]byte(id))
		if value == nil {
			return nil
		}
		found = true
		return json.Unmarshal(value, &rec)
	})
	if err != nil {
		return Record{}, false, unavailable("get", err)
	}
	return rec, found, nil
}

func (b *Bolt) Insert(_ context.Context, rec Record) error {
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return unavailable("encode", err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(mediaItemsBucket)
		if bucket.Get([]byte(rec.ID)) != nil {
			return nil
		}
		return bucket.Put([]byte(rec.ID), value)
	})
	if err != nil {
		return unavailable("insert", err)
	}
	return nil
}

// Records walks the bucket in key order, which is ID order.
func (b *Bolt) Records(_ context.Context) ([]Record, error) {
	var records []Record
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(mediaItemsBucket).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				b.logger.WithError(err).Warnf("Skipping undecodable record %s", string(k))
				return nil
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, unavailable("records", err)
	}
	return records, nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
