// Package upload delivers pending ping documents, one at a time, retrying
// recoverable failures with backoff.
package upload

import (
	"context"
	"fmt"

	"github.com/thisdougb/telemetry/internal/storage"
)

// Header is a request header sent with an upload.
type Header = storage.Header

// Uploader performs a single delivery attempt.
type Uploader interface {
	Upload(ctx context.Context, url string, body []byte, headers []Header) Outcome
}

// Outcome is one of Success, RecoverableFailure or UnrecoverableFailure.
type Outcome interface {
	isOutcome()
}

// Success means the server accepted the document.
type Success struct {
	Status int
}

// RecoverableFailure means the attempt may be retried later.
type RecoverableFailure struct {
	Err error
}

// UnrecoverableFailure means the document will never be accepted.
type UnrecoverableFailure struct {
	Err error
}

func (Success) isOutcome()              {}
func (RecoverableFailure) isOutcome()   {}
func (UnrecoverableFailure) isOutcome() {}

func (s Success) String() string { return fmt.Sprintf("success (%d)", s.Status) }

func (f RecoverableFailure) String() string {
	return fmt.Sprintf("recoverable failure: %v", f.Err)
}

func (f UnrecoverableFailure) String() string {
	return fmt.Sprintf("unrecoverable failure: %v", f.Err)
}

// UploaderFunc adapts a function to the Uploader interface.
type UploaderFunc func(ctx context.Context, url string, body []byte, headers []Header) Outcome

func (f UploaderFunc) Upload(ctx context.Context, url string, body []byte, headers []Header) Outcome {
	return f(ctx, url, body, headers)
}
