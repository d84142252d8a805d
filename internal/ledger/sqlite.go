package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

const (
	containsQuery = `SELECT 1 FROM media_items WHERE media_item_id = ?`
	insertQuery   = `INSERT INTO media_items (media_item_id, filename, local_path, checksum, archived_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(media_item_id) DO NOTHING`
	selectColumns = `SELECT media_item_id, COALESCE(filename, ''), COALESCE(local_path, ''),
       COALESCE(checksum, ''), COALESCE(archived_at, '')
FROM media_items`
	getQuery     = selectColumns + ` WHERE media_item_id = ?`
	recordsQuery = selectColumns + ` ORDER BY media_item_id`
)

// SQLite is the default ledger: a single file holding the media_items table.
// Concurrent writers are serialised by SQLite's own locking; busy_timeout
// makes them wait instead of failing with SQLITE_BUSY.
type SQLite struct {
	db     *sql.DB
	logger log.FieldLogger
}

func OpenSQLite(ctx context.Context, path string, logger log.FieldLogger) (*SQLite, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, unavailable("create directory", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable("open", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, unavailable("ping", err)
	}

	if err := migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, unavailable("migrate", err)
	}

	logger.Debugf("SQLite ledger opened at %s", path)
	return &SQLite{db: db, logger: logger}, nil
}

func migrate(ctx context.Context, db *sql.DB, logger log.FieldLogger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(logger)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *SQLite) Contains(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, containsQuery, id).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, unavailable("contains", err)
	}
	return true, nil
}

func (s *SQLite) Insert(ctx context.Context, rec Record) error {
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, insertQuery,
		rec.ID, rec.Filename, rec.Path, rec.Checksum, rec.ArchivedAt.Format(time.RFC3339Nano))
	if err != nil {
		return unavailable("insert", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (Record, bool, error) {
	rec, err := s.scan(s.db.QueryRowContext(ctx, getQuery, id))
	switch {
	case err == sql.ErrNoRows:
		return Record{}, false, nil
	case err != nil:
		return Record{}, false, unavailable("get", err)
	}
	return rec, true, nil
}

func (s *SQLite) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, recordsQuery)
	if err != nil {
		return nil, unavailable("records", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, unavailable("records", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("records", err)
	}
	return records, nil
}

func (s *SQLite) scan(row interface{ Scan(...any) error }) (Record, error) {
	var (
		rec        Record
		archivedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.Path, &rec.Checksum, &archivedAt); err != nil {
		return Record{}, err
	}
	if archivedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, archivedAt); err == nil {
			rec.ArchivedAt = t
		} else {
			s.logger.WithError(err).Warnf("Unparseable archived_at for %s", rec.ID)
		}
	}
	return rec, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
