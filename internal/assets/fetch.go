package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// MaxImageBytes bounds how much of a response or file is read.
const MaxImageBytes = 16 << 20

// FetchFunc returns the raw encoded bytes behind an image reference.
type FetchFunc func(ctx context.Context, ref string) ([]byte, error)

// Fetcher resolves http(s) URLs with an HTTP client and anything else as a
// local path. A file:// prefix is accepted.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher whose HTTP client gives up after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch implements FetchFunc.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return f.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		return readFile(strings.TrimPrefix(ref, "file://"))
	default:
		return readFile(ref)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.Size() > MaxImageBytes {
		return nil, fmt.Errorf("reading %s: %d bytes exceeds limit", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
