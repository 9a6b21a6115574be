package ping

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"net/http"
	"time"

	"github.com/thisdougb/telemetry/internal/metrics"
	"github.com/thisdougb/telemetry/internal/storage"
)

// Path returns the submission path of a document.
func Path(appID, ping, documentID string) string {
	return fmt.Sprintf("/submit/%s/%s/1/%s", appID, ping, documentID)
}

// NewJob serializes and compresses a document into a pending upload.
func NewJob(doc *Document, appID string, now time.Time) (storage.UploadRecord, error) {
	raw, err := doc.Marshal()
	if err != nil {
		return storage.UploadRecord{}, fmt.Errorf("marshal: %w", err)
	}

	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	if _, err = zw.Write(raw); err != nil {
		return storage.UploadRecord{}, fmt.Errorf("gzip write: %w", err)
	}
	if err = zw.Close(); err != nil {
		return storage.UploadRecord{}, fmt.Errorf("gzip close: %w", err)
	}

	return storage.UploadRecord{
		DocumentID: doc.PingInfo.DocumentID,
		PingName:   doc.Name,
		Path:       Path(appID, doc.Name, doc.PingInfo.DocumentID),
		Body:       body.Bytes(),
		Headers: []storage.Header{
			{Name: "Content-Type", Value: "application/json; charset=utf-8"},
			{Name: "Content-Encoding", Value: "gzip"},
			{Name: "Date", Value: now.UTC().Format(http.TimeFormat)},
			{Name: "X-Telemetry-Agent", Value: "telemetry-go/" + metrics.System().SDKBuild},
		},
		EnqueuedAt: now,
	}, nil
}
