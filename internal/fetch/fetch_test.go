package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pdfchat-backend/internal/shared/apperr"
)

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func TestHTTPFetcherReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	}))
	defer srv.Close()

	data, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL+"/doc.pdf")
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 body", string(data))
}

func TestHTTPFetcherNonOKIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, apperr.ErrFetch)
	require.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestHTTPFetcherEnforcesMaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(time.Second)
	f.MaxBytes = 16
	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, apperr.ErrFetch)
}

func TestFileFetcherStaysInsideBaseDir(t *testing.T) {
	base := t.TempDir()
	inside := filepath.Join(base, "owner", "a.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(inside), 0o755))
	require.NoError(t, os.WriteFile(inside, []byte("pdf"), 0o644))

	outside := filepath.Join(t.TempDir(), "b.pdf")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	f := &FileFetcher{BaseDir: base}
	data, err := f.Fetch(context.Background(), fileURL(inside))
	require.NoError(t, err)
	require.Equal(t, "pdf", string(data))

	_, err = f.Fetch(context.Background(), fileURL(outside))
	require.ErrorIs(t, err, apperr.ErrFetch)
}

func TestMuxDispatchesByScheme(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "c.pdf")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o644))

	m := NewMux(nil, &FileFetcher{BaseDir: base})
	data, err := m.Fetch(context.Background(), fileURL(path))
	require.NoError(t, err)
	require.Equal(t, "local", string(data))

	_, err = m.Fetch(context.Background(), "https://example.invalid/x.pdf")
	require.ErrorIs(t, err, apperr.ErrFetch)
}

func TestFetchCancellationIsNotUpstream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&FileFetcher{}).Fetch(ctx, "file:///tmp/x.pdf")
	require.True(t, errors.Is(err, context.Canceled))
	require.False(t, errors.Is(err, apperr.ErrUpstream))
}
