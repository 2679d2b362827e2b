// Package sqlite provides a SQLite-backed kv.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"keepsake/internal/kv"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
    bucket TEXT NOT NULL,
    key    BLOB NOT NULL,
    value  BLOB NOT NULL,
    PRIMARY KEY (bucket, key)
) WITHOUT ROWID;
`

// Store persists buckets as rows of a single SQLite table.
type Store struct {
	sqlDB *sql.DB
}

var _ kv.Store = (*Store)(nil)

// Open opens a SQLite store at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serialises writers and keeps transactions simple.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Get(bucket, key []byte) ([]byte, error) {
	return getValue(context.Background(), s.sqlDB, bucket, key)
}

func (s *Store) Set(bucket, key, value []byte) error {
	return s.Update(bucket, func(b kv.Bucket) error {
		return b.Put(key, value)
	})
}

func (s *Store) Delete(bucket, key []byte) error {
	_, err := s.sqlDB.Exec(`DELETE FROM entries WHERE bucket = ? AND key = ?`, string(bucket), key)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// ForEach reads the whole bucket before calling fn, so fn may call back
// into the store without deadlocking on the single connection.
func (s *Store) ForEach(bucket []byte, fn func(key, value []byte) error) error {
	rows, err := loadBucket(context.Background(), s.sqlDB, bucket)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := fn(r.key, r.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Snapshot(bucket []byte) (map[string][]byte, error) {
	rows, err := loadBucket(context.Background(), s.sqlDB, bucket)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(rows))
	for _, r := range rows {
		result[string(r.key)] = r.value
	}
	return result, nil
}

func (s *Store) Keys(bucket []byte) ([]string, error) {
	rows, err := s.sqlDB.Query(`SELECT key FROM entries WHERE bucket = ? ORDER BY key`, string(bucket))
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k []byte
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, string(k))
	}
	return keys, rows.Err()
}

func (s *Store) Update(bucket []byte, fn func(b kv.Bucket) error) error {
	ctx := context.Background()
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	b := &txBucket{ctx: ctx, tx: tx, bucket: string(bucket)}
	if err := fn(b); err != nil {
		_ = tx.Rollback()
		return err
	}
	if b.err != nil {
		_ = tx.Rollback()
		return b.err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) DropBucket(bucket []byte) error {
	_, err := s.sqlDB.Exec(`DELETE FROM entries WHERE bucket = ?`, string(bucket))
	if err != nil {
		return fmt.Errorf("drop bucket: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type entry struct {
	key   []byte
	value []byte
}

func getValue(ctx context.Context, q querier, bucket, key []byte) ([]byte, error) {
	var val []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM entries WHERE bucket = ? AND key = ?`, string(bucket), key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if val == nil {
		val = []byte{}
	}
	return val, nil
}

func loadBucket(ctx context.Context, q querier, bucket []byte) ([]entry, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, value FROM entries WHERE bucket = ?`, string(bucket))
	if err != nil {
		return nil, fmt.Errorf("load bucket: %w", err)
	}
	defer rows.Close()
	var out []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.value); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.value == nil {
			e.value = []byte{}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// txBucket adapts a SQL transaction to kv.Bucket. Read failures cannot be
// returned through Get, so the first one is kept in err and fails the
// surrounding Update.
type txBucket struct {
	ctx    context.Context
	tx     *sql.Tx
	bucket string
	err    error
}

func (b *txBucket) Get(key []byte) []byte {
	val, err := getValue(b.ctx, b.tx, []byte(b.bucket), key)
	if err != nil && b.err == nil {
		b.err = err
	}
	return val
}

func (b *txBucket) Put(key, value []byte) error {
	if len(key) == 0 {
		return errors.New("key required")
	}
	if value == nil {
		value = []byte{}
	}
	_, err := b.tx.ExecContext(b.ctx,
		`INSERT INTO entries (bucket, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (bucket, key) DO UPDATE SET value = excluded.value`,
		b.bucket, key, value)
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	return nil
}

func (b *txBucket) Delete(key []byte) error {
	_, err := b.tx.ExecContext(b.ctx, `DELETE FROM entries WHERE bucket = ? AND key = ?`, b.bucket, key)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func (b *txBucket) ForEach(fn func(key, value []byte) error) error {
	rows, err := loadBucket(b.ctx, b.tx, []byte(b.bucket))
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := fn(r.key, r.value); err != nil {
			return err
		}
	}
	return nil
}
