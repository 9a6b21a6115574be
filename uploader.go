package telemetry

import (
	"time"

	"github.com/thisdougb/telemetry/internal/upload"
)

// Uploader delivers one ping document. Implementations report every attempt
// as exactly one of UploadSuccess, RecoverableFailure or
// UnrecoverableFailure; anything else is treated as recoverable.
type Uploader = upload.Uploader

// UploadOutcome is the result of one delivery attempt.
type UploadOutcome = upload.Outcome

// Header is a request header sent with a ping.
type Header = upload.Header

// UploadSuccess means the server accepted the ping.
type UploadSuccess = upload.Success

// RecoverableFailure means the ping stays queued and is retried with backoff.
type RecoverableFailure = upload.RecoverableFailure

// UnrecoverableFailure means the ping is dropped and the drop is recorded.
type UnrecoverableFailure = upload.UnrecoverableFailure

// UploaderFunc adapts a function to Uploader.
type UploaderFunc = upload.UploaderFunc

// NewHTTPUploader returns the default uploader, posting over HTTP with the
// given request timeout.
func NewHTTPUploader(timeout time.Duration) Uploader {
	return upload.NewHTTPUploader(timeout)
}
