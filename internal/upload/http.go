package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPUploader posts documents with net/http.
type HTTPUploader struct {
	client *http.Client
}

// NewHTTPUploader returns an uploader whose requests give up after timeout.
func NewHTTPUploader(timeout time.Duration) *HTTPUploader {
	return &HTTPUploader{client: &http.Client{Timeout: timeout}}
}

// Upload classifies the response: 2xx is a success, 4xx can never succeed,
// anything else including transport errors is worth retrying.
func (u *HTTPUploader) Upload(ctx context.Context, url string, body []byte, headers []Header) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return UnrecoverableFailure{Err: fmt.Errorf("new request: %w", err)}
	}
	for _, h := range headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return RecoverableFailure{Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Success{Status: resp.StatusCode}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return UnrecoverableFailure{Err: fmt.Errorf("unexpected status: %d", resp.StatusCode)}
	default:
		return RecoverableFailure{Err: fmt.Errorf("unexpected status: %d", resp.StatusCode)}
	}
}
