package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisdougb/telemetry/internal/metrics"
)

// backendFactories runs the same behaviour checks against every backend.
func backendFactories(t *testing.T) map[string]func() Backend {
	return map[string]func() Backend{
		"memory": func() Backend { return NewMemoryBackend() },
		"sqlite": func() Backend {
			b, err := NewSQLiteBackend(SQLiteConfig{DBPath: filepath.Join(t.TempDir(), "test.db")})
			require.NoError(t, err)
			return b
		},
	}
}

func put(t *testing.T, b Backend, store string, l metrics.Lifetime, id, value string) {
	t.Helper()
	require.NoError(t, b.Update(store, l, id, func([]byte, bool) ([]byte, error) {
		return []byte(value), nil
	}))
}

func TestBackendUpdateAndGet(t *testing.T) {
	for name, factory := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			b := factory()
			defer b.Close()

			_, ok, err := b.Get("p", metrics.Ping, "a.b")
			require.NoError(t, err)
			assert.False(t, ok)

			var sawOld bool
			put(t, b, "p", metrics.Ping, "a.b", "1")
			require.NoError(t, b.Update("p", metrics.Ping, "a.b", func(old []byte, ok bool) ([]byte, error) {
				sawOld = ok && string(old) == "1"
				return []byte("2"), nil
			}))
			assert.True(t, sawOld)

			v, ok, err := b.Get("p", metrics.Ping, "a.b")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "2", string(v))

			// same identifier, other lifetime is a separate slot
			_, ok, err = b.Get("p", metrics.User, "a.b")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBackendUpdateErrorKeepsValue(t *testing.T) {
	for name, factory := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			b := factory()
			defer b.Close()

			put(t, b, "p", metrics.Ping, "a.b", "1")
			err := b.Update("p", metrics.Ping, "a.b", func([]byte, bool) ([]byte, error) {
				return nil, assert.AnError
			})
			assert.ErrorIs(t, err, assert.AnError)

			v, _, err := b.Get("p", metrics.Ping, "a.b")
			require.NoError(t, err)
			assert.Equal(t, "1", string(v))
		})
	}
}

func TestBackendRowsAndDelete(t *testing.T) {
	for name, factory := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			b := factory()
			defer b.Close()

			put(t, b, "one", metrics.Ping, "z", "1")
			put(t, b, "one", metrics.Application, "a", "2")
			put(t, b, "one", metrics.User, "m", "3")
			put(t, b, "two", metrics.Ping, "a", "4")

			rows, err := b.Rows("one")
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, []string{"a", "m", "z"}, []string{rows[0].Identifier, rows[1].Identifier, rows[2].Identifier})

			all, err := b.Rows("")
			require.NoError(t, err)
			assert.Len(t, all, 4)

			require.NoError(t, b.Delete("one", []metrics.Lifetime{metrics.Ping}))
			rows, err = b.Rows("one")
			require.NoError(t, err)
			assert.Len(t, rows, 2)

			require.NoError(t, b.Delete("", []metrics.Lifetime{metrics.Application, metrics.Ping}))
			all, err = b.Rows("")
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, metrics.User, all[0].Lifetime)

			require.NoError(t, b.DeleteRow("one", metrics.User, "m"))
			all, err = b.Rows("")
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestBackendSequences(t *testing.T) {
	for name, factory := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			b := factory()
			defer b.Close()

			for want := int64(0); want < 3; want++ {
				seq, err := b.NextSequence("custom")
				require.NoError(t, err)
				assert.Equal(t, want, seq)
			}

			seq, err := b.NextSequence("other")
			require.NoError(t, err)
			assert.Zero(t, seq)
		})
	}
}

func TestBackendUploadQueue(t *testing.T) {
	for name, factory := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			b := factory()
			defer b.Close()

			now := time.Now()
			for _, id := range []string{"doc-1", "doc-2"} {
				_, err := b.AddUpload(UploadRecord{
					DocumentID: id,
					PingName:   "custom",
					Path:       "/submit/app/custom/1/" + id,
					Body:       []byte("body-" + id),
					Headers:    []Header{{Name: "Content-Encoding", Value: "gzip"}},
					EnqueuedAt: now,
				})
				require.NoError(t, err)
			}

			_, err := b.AddUpload(UploadRecord{DocumentID: "doc-1", EnqueuedAt: now})
			assert.Error(t, err, "document ids are unique")

			uploads, err := b.Uploads()
			require.NoError(t, err)
			require.Len(t, uploads, 2)
			assert.Equal(t, "doc-1", uploads[0].DocumentID)
			assert.Equal(t, []byte("body-doc-1"), uploads[0].Body)
			assert.Equal(t, "gzip", uploads[0].Headers[0].Value)
			assert.True(t, uploads[0].NotBefore.IsZero())

			// requeue moves to the tail and keeps the body
			rec := uploads[0]
			rec.Attempts = 1
			rec.NotBefore = now.Add(time.Second)
			rec.Body = nil
			_, err = b.RequeueUpload(rec)
			require.NoError(t, err)

			uploads, err = b.Uploads()
			require.NoError(t, err)
			require.Len(t, uploads, 2)
			assert.Equal(t, "doc-2", uploads[0].DocumentID)
			assert.Equal(t, "doc-1", uploads[1].DocumentID)
			assert.Equal(t, 1, uploads[1].Attempts)
			assert.Equal(t, []byte("body-doc-1"), uploads[1].Body)
			assert.WithinDuration(t, now.Add(time.Second), uploads[1].NotBefore, time.Millisecond)
			assert.Less(t, uploads[0].ID, uploads[1].ID)

			require.NoError(t, b.RemoveUpload("doc-2"))
			assert.ErrorIs(t, b.RemoveUpload("doc-2"), ErrNotFound)
			_, err = b.RequeueUpload(UploadRecord{DocumentID: "missing"})
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.ClearUploads())
			uploads, err = b.Uploads()
			require.NoError(t, err)
			assert.Empty(t, uploads)
		})
	}
}
