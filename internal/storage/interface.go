package storage

import (
	"errors"
	"time"

	"github.com/thisdougb/telemetry/internal/metrics"
)

var (
	// ErrNotFound is returned when a pending upload does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("storage: backend closed")
)

// Backend defines the CRUD operations every storage implementation provides.
// Business rules (lifetimes, merging, decoding) live in Engine.
type Backend interface {
	Get(store string, lifetime metrics.Lifetime, identifier string) ([]byte, bool, error)
	// Update atomically replaces one row with the result of fn.
	Update(store string, lifetime metrics.Lifetime, identifier string, fn UpdateFunc) error
	// Rows lists the rows of a store ordered by identifier, or of every store when store is "".
	Rows(store string) ([]Row, error)
	// Delete removes all rows of a store (every store when "") having one of the lifetimes.
	Delete(store string, lifetimes []metrics.Lifetime) error
	DeleteRow(store string, lifetime metrics.Lifetime, identifier string) error

	// NextSequence returns the current sequence number of a ping and persists its successor.
	NextSequence(ping string) (int64, error)

	AddUpload(rec UploadRecord) (int64, error)
	// Uploads lists pending uploads in queue order. Rows that cannot be decoded
	// are returned with Corrupt set instead of failing the whole listing.
	Uploads() ([]UploadRecord, error)
	// RequeueUpload stores new attempt state and moves the upload to the tail of the queue.
	RequeueUpload(rec UploadRecord) (int64, error)
	RemoveUpload(documentID string) error
	ClearUploads() error

	Close() error
}

// UpdateFunc receives the current encoded value, if any, and returns the replacement.
type UpdateFunc func(old []byte, ok bool) ([]byte, error)

// Row is one persisted metric entry.
type Row struct {
	Store      string
	Lifetime   metrics.Lifetime
	Identifier string
	Value      []byte
}

// Header is a single HTTP header, kept in order.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UploadRecord is a ping waiting for delivery.
type UploadRecord struct {
	ID         int64     `json:"id"` // assigned by the backend, increases with queue position
	DocumentID string    `json:"document_id"`
	PingName   string    `json:"ping_name"`
	Path       string    `json:"path"`
	Body       []byte    `json:"-"`
	Headers    []Header  `json:"headers"`
	Attempts   int       `json:"attempts"`
	NotBefore  time.Time `json:"not_before"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Corrupt    bool      `json:"-"` // row could not be decoded; only the ids are set
}
