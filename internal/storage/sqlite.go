package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thisdougb/telemetry/internal/metrics"
)

// SQLiteBackend implements Backend using a SQLite database file. Every write
// runs in its own committed transaction so it is durable when the call returns.
type SQLiteBackend struct {
	db *sql.DB
}

// SQLiteConfig holds configuration for SQLite backend
type SQLiteConfig struct {
	DBPath      string
	Synchronous string // SQLite synchronous pragma, FULL unless overridden
}

// NewSQLiteBackend creates a new SQLite storage backend
func NewSQLiteBackend(config SQLiteConfig) (*SQLiteBackend, error) {
	if dir := filepath.Dir(config.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	sync := config.Synchronous
	if sync == "" {
		sync = "FULL"
	}
	params := url.Values{}
	params.Set("_synchronous", sync)
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	dsn := "file:" + config.DBPath + "?" + params.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runSQLiteMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Get(store string, lifetime metrics.Lifetime, identifier string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM metrics WHERE store = ? AND lifetime = ? AND identifier = ?`,
		store, lifetime.String(), identifier).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read metric: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteBackend) Update(store string, lifetime metrics.Lifetime, identifier string, fn UpdateFunc) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var old []byte
	ok := true
	err = tx.QueryRow(`SELECT value FROM metrics WHERE store = ? AND lifetime = ? AND identifier = ?`,
		store, lifetime.String(), identifier).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		ok = false
	} else if err != nil {
		return fmt.Errorf("failed to read metric: %w", err)
	}

	next, err := fn(old, ok)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`INSERT INTO metrics (store, lifetime, identifier, value, updated_at)
		VALUES (?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT (store, lifetime, identifier) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		store, lifetime.String(), identifier, next)
	if err != nil {
		return fmt.Errorf("failed to write metric: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteBackend) Rows(store string) ([]Row, error) {
	query := `SELECT store, lifetime, identifier, value FROM metrics ORDER BY store, identifier, lifetime`
	var args []interface{}
	if store != "" {
		query = `SELECT store, lifetime, identifier, value FROM metrics WHERE store = ? ORDER BY identifier, lifetime`
		args = append(args, store)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var r Row
		var lifetime string
		if err := rows.Scan(&r.Store, &lifetime, &r.Identifier, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		if r.Lifetime, err = metrics.ParseLifetime(lifetime); err != nil {
			return nil, err
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	// keep the memory backend ordering for lifetimes
	sortRows(result)
	return result, nil
}

func (s *SQLiteBackend) Delete(store string, lifetimes []metrics.Lifetime) error {
	if len(lifetimes) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, l := range lifetimes {
		if store == "" {
			_, err = tx.Exec(`DELETE FROM metrics WHERE lifetime = ?`, l.String())
		} else {
			_, err = tx.Exec(`DELETE FROM metrics WHERE store = ? AND lifetime = ?`, store, l.String())
		}
		if err != nil {
			return fmt.Errorf("failed to clear %s metrics: %w", l, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteBackend) DeleteRow(store string, lifetime metrics.Lifetime, identifier string) error {
	_, err := s.db.Exec(`DELETE FROM metrics WHERE store = ? AND lifetime = ? AND identifier = ?`,
		store, lifetime.String(), identifier)
	if err != nil {
		return fmt.Errorf("failed to delete metric: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) NextSequence(ping string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRow(`SELECT seq FROM ping_sequences WHERE ping = ?`, ping).Scan(&seq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read sequence: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO ping_sequences (ping, seq) VALUES (?, ?)
		ON CONFLICT (ping) DO UPDATE SET seq = excluded.seq`, ping, seq+1)
	if err != nil {
		return 0, fmt.Errorf("failed to write sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence: %w", err)
	}
	return seq, nil
}

func (s *SQLiteBackend) AddUpload(rec UploadRecord) (int64, error) {
	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return 0, fmt.Errorf("failed to encode headers: %w", err)
	}

	res, err := s.db.Exec(`INSERT INTO pending_uploads
		(document_id, ping_name, path, body, headers, attempts, not_before, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DocumentID, rec.PingName, rec.Path, rec.Body, string(headers),
		rec.Attempts, unixNano(rec.NotBefore), unixNano(rec.EnqueuedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to queue upload: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteBackend) Uploads() ([]UploadRecord, error) {
	rows, err := s.db.Query(`SELECT id, document_id, ping_name, path, body, headers, attempts, not_before, enqueued_at
		FROM pending_uploads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	var result []UploadRecord
	for rows.Next() {
		var rec UploadRecord
		var headers string
		var notBefore, enqueuedAt int64
		err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.PingName, &rec.Path, &rec.Body,
			&headers, &rec.Attempts, &notBefore, &enqueuedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		if err := json.Unmarshal([]byte(headers), &rec.Headers); err != nil {
			result = append(result, UploadRecord{ID: rec.ID, DocumentID: rec.DocumentID, PingName: rec.PingName, Corrupt: true})
			continue
		}
		rec.NotBefore = fromUnixNano(notBefore)
		rec.EnqueuedAt = fromUnixNano(enqueuedAt)
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

func (s *SQLiteBackend) RequeueUpload(rec UploadRecord) (int64, error) {
	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return 0, fmt.Errorf("failed to encode headers: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var body []byte
	var enqueuedAt int64
	err = tx.QueryRow(`SELECT body, enqueued_at FROM pending_uploads WHERE document_id = ?`,
		rec.DocumentID).Scan(&body, &enqueuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read upload: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM pending_uploads WHERE document_id = ?`, rec.DocumentID); err != nil {
		return 0, fmt.Errorf("failed to requeue upload: %w", err)
	}
	res, err := tx.Exec(`INSERT INTO pending_uploads
		(document_id, ping_name, path, body, headers, attempts, not_before, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DocumentID, rec.PingName, rec.Path, body, string(headers),
		rec.Attempts, unixNano(rec.NotBefore), enqueuedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	return id, tx.Commit()
}

func (s *SQLiteBackend) RemoveUpload(documentID string) error {
	res, err := s.db.Exec(`DELETE FROM pending_uploads WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteBackend) ClearUploads() error {
	if _, err := s.db.Exec(`DELETE FROM pending_uploads`); err != nil {
		return fmt.Errorf("failed to clear uploads: %w", err)
	}
	return nil
}

// Close gracefully shuts down the SQLite backend
func (s *SQLiteBackend) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
