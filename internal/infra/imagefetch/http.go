// Package imagefetch re-downloads stored meal photos so later chat turns can
// ground their answers in the original image.
package imagefetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yanqian/meal-insight/internal/infra/imaging"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxBytes = 8 * 1024 * 1024
	defaultMaxDim   = 1024
	defaultQuality  = 80
)

// HTTPFetcher downloads an image over HTTP and re-encodes it to a bounded
// JPEG before handing it to the model layer.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	maxDim   int
	quality  int
	logger   *slog.Logger
}

// NewHTTPFetcher constructs a fetcher with sane bounds.
func NewHTTPFetcher(logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: defaultTimeout},
		maxBytes: defaultMaxBytes,
		maxDim:   defaultMaxDim,
		quality:  defaultQuality,
		logger:   logger.With("component", "imagefetch.http"),
	}
}

// WithBounds overrides the re-encode limits. Zero values keep the defaults.
func (f *HTTPFetcher) WithBounds(maxDim, quality int) *HTTPFetcher {
	if maxDim > 0 {
		f.maxDim = maxDim
	}
	if quality > 0 {
		f.quality = quality
	}
	return f
}

// Fetch downloads url and returns re-encoded JPEG bytes with the mime type.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, "", fmt.Errorf("unsupported image url scheme: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch image: status=%d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}
	if int64(len(raw)) > f.maxBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}

	data, mimeType, err := imaging.Reencode(raw, f.maxDim, f.quality)
	if err != nil {
		return nil, "", fmt.Errorf("reencode image: %w", err)
	}
	return data, mimeType, nil
}
