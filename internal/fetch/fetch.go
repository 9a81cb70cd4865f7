// Package fetch downloads source documents by URL.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdfchat-backend/internal/shared/apperr"
)

// DefaultMaxBytes caps a single download. It sits above the largest tier
// file-size limit.
const DefaultMaxBytes int64 = 32 << 20

// Fetcher returns the bytes behind a source URL.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) ([]byte, error)
}

// HTTPFetcher downloads http and https URLs, including presigned S3 links.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// NewHTTPFetcher builds an HTTPFetcher with a request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: DefaultMaxBytes,
	}
}

// Fetch performs a GET and returns the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, apperr.Upstream(apperr.ErrFetch, "build request", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, apperr.Upstream(apperr.ErrFetch, "download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(apperr.ErrFetch, "download", fmt.Errorf("status %d", resp.StatusCode))
	}
	return readLimited(resp.Body, f.maxBytes())
}

func (f *HTTPFetcher) maxBytes() int64 {
	if f.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return f.MaxBytes
}

// FileFetcher reads file:// URLs rooted at BaseDir. Paths outside BaseDir are
// rejected.
type FileFetcher struct {
	BaseDir  string
	MaxBytes int64
}

// Fetch reads the file behind a file:// URL.
func (f *FileFetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(sourceURL)
	if err != nil || u.Scheme != "file" {
		return nil, apperr.Upstream(apperr.ErrFetch, "parse file url", fmt.Errorf("invalid file url %q", sourceURL))
	}
	path := filepath.Clean(filepath.FromSlash(u.Path))
	if f.BaseDir != "" {
		base, err := filepath.Abs(f.BaseDir)
		if err != nil {
			return nil, apperr.Upstream(apperr.ErrFetch, "resolve base dir", err)
		}
		rel, err := filepath.Rel(base, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, apperr.Upstream(apperr.ErrFetch, "open", fmt.Errorf("path outside store"))
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, apperr.Upstream(apperr.ErrFetch, "open", err)
	}
	defer file.Close()

	max := f.MaxBytes
	if max <= 0 {
		max = DefaultMaxBytes
	}
	return readLimited(file, max)
}

// Mux dispatches on the URL scheme.
type Mux struct {
	byScheme map[string]Fetcher
}

// NewMux routes http and https to web and file to files. Either may be nil.
func NewMux(web Fetcher, files Fetcher) *Mux {
	m := &Mux{byScheme: map[string]Fetcher{}}
	if web != nil {
		m.byScheme["http"] = web
		m.byScheme["https"] = web
	}
	if files != nil {
		m.byScheme["file"] = files
	}
	return m
}

// Fetch forwards to the fetcher registered for the URL scheme.
func (m *Mux) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return nil, apperr.Upstream(apperr.ErrFetch, "parse url", err)
	}
	f, ok := m.byScheme[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, apperr.Upstream(apperr.ErrFetch, "dispatch", fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	return f.Fetch(ctx, sourceURL)
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, apperr.Upstream(apperr.ErrFetch, "read body", err)
	}
	if int64(len(data)) > max {
		return nil, apperr.Upstream(apperr.ErrFetch, "read body", fmt.Errorf("body exceeds %d bytes", max))
	}
	return data, nil
}
