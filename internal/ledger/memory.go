package ledger

import (
	"context"
	"time"

	"github.com/hashicorp/go-memdb"
)

const mediaItemsTable = "media_items"

var memorySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		mediaItemsTable: {
			Name: mediaItemsTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		},
	},
}

// Memory is a process-local ledger for tests and dry runs. go-memdb allows a
// single write transaction at a time, which makes check-and-insert atomic.
type Memory struct {
	db *memdb.MemDB
}

func NewMemory() (*Memory, error) {
	db, err := memdb.NewMemDB(memorySchema)
	if err != nil {
		return nil, unavailable("create", err)
	}
	return &Memory{db: db}, nil
}

func (m *Memory) Contains(_ context.Context, id string) (bool, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(mediaItemsTable, "id", id)
	if err != nil {
		return false, unavailable("contains", err)
	}
	return raw != nil, nil
}

func (m *Memory) Get(_ context.Context, id string) (Record, bool, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(mediaItemsTable, "id", id)
	if err != nil {
		return Record{}, false, unavailable("get", err)
	}
	if raw == nil {
		return Record{}, false, nil
	}
	return *raw.(*Record), true, nil
}

func (m *Memory) Insert(_ context.Context, rec Record) error {
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}

	txn := m.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(mediaItemsTable, "id", rec.ID)
	if err != nil {
		return unavailable("insert", err)
	}
	if existing != nil {
		return nil
	}
	if err := txn.Insert(mediaItemsTable, &rec); err != nil {
		return unavailable("insert", err)
	}
	txn.Commit()
	return nil
}

func (m *Memory) Records(_ context.Context) ([]Record, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(mediaItemsTable, "id")
	if err != nil {
		return nil, unavailable("records", err)
	}
	var records []Record
	for raw := it.Next(); raw != nil; raw = it.Next() {
		records = append(records, *raw.(*Record))
	}
	return records, nil
}

func (m *Memory) Close() error { return nil }
