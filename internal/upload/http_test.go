package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPUploaderOutcomes(t *testing.T) {
	tests := []struct {
		status int
		want   Outcome
	}{
		{http.StatusOK, Success{Status: http.StatusOK}},
		{http.StatusAccepted, Success{Status: http.StatusAccepted}},
		{http.StatusBadRequest, UnrecoverableFailure{}},
		{http.StatusRequestEntityTooLarge, UnrecoverableFailure{}},
		{http.StatusInternalServerError, RecoverableFailure{}},
		{http.StatusServiceUnavailable, RecoverableFailure{}},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			got := NewHTTPUploader(time.Second).Upload(context.Background(), srv.URL+"/submit", []byte("x"), nil)
			assert.IsType(t, tt.want, got)
			if s, ok := got.(Success); ok {
				assert.Equal(t, tt.status, s.Status)
			}
		})
	}
}

func TestHTTPUploaderSendsHeadersAndBody(t *testing.T) {
	var gotPath, gotEncoding, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotEncoding = r.Header.Get("Content-Encoding")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	out := NewHTTPUploader(time.Second).Upload(context.Background(), srv.URL+"/submit/app/custom/1/abc",
		[]byte("payload"), []Header{{Name: "Content-Encoding", Value: "gzip"}})

	assert.Equal(t, Success{Status: http.StatusOK}, out)
	assert.Equal(t, "/submit/app/custom/1/abc", gotPath)
	assert.Equal(t, "gzip", gotEncoding)
	assert.Equal(t, "payload", gotBody)
}

func TestHTTPUploaderTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	out := NewHTTPUploader(time.Second).Upload(context.Background(), url, nil, nil)
	assert.IsType(t, RecoverableFailure{}, out)

	out = NewHTTPUploader(time.Second).Upload(context.Background(), "://bad url", nil, nil)
	assert.IsType(t, UnrecoverableFailure{}, out)
}
