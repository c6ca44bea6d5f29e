package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

const (
	downloadTimeout  = 15 * time.Second
	maxImageBytes    = 20 << 20
	defaultImageExt  = ".jpg"
	objectPathPrefix = "orders"
)

// ImageCache re-hosts listing images into a Cloud Storage bucket so orders
// survive the source listing going offline. Caching is opportunistic: any
// failure leaves the original external URL in place.
type ImageCache struct {
	client        *gcs.Client
	bucket        string
	publicBaseURL string
	httpClient    *http.Client
	logger        func(context.Context, string, map[string]any)
}

// ImageCacheDeps bundles the cache's dependencies.
type ImageCacheDeps struct {
	Client        *gcs.Client
	Bucket        string
	PublicBaseURL string
	HTTPClient    *http.Client
	Logger        func(context.Context, string, map[string]any)
}

// NewImageCache validates dependencies and builds the cache.
func NewImageCache(deps ImageCacheDeps) (*ImageCache, error) {
	if deps.Client == nil {
		return nil, errors.New("image cache: storage client is required")
	}
	if strings.TrimSpace(deps.Bucket) == "" {
		return nil, errors.New("image cache: bucket is required")
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: downloadTimeout}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &ImageCache{
		client:        deps.Client,
		bucket:        strings.TrimSpace(deps.Bucket),
		publicBaseURL: strings.TrimRight(deps.PublicBaseURL, "/"),
		httpClient:    httpClient,
		logger:        logger,
	}, nil
}

// CacheImages re-hosts each URL and returns the resulting list in the same
// order. A URL that cannot be downloaded or uploaded stays as-is.
func (c *ImageCache) CacheImages(ctx context.Context, orderCode string, urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	cached := make([]string, 0, len(urls))
	for i, source := range urls {
		hosted, err := c.cacheOne(ctx, orderCode, i, source)
		if err != nil {
			c.logger(ctx, "image_cache.upload_failed", map[string]any{
				"order_code": orderCode,
				"source":     source,
				"error":      err.Error(),
			})
			cached = append(cached, source)
			continue
		}
		cached = append(cached, hosted)
	}
	return cached
}

func (c *ImageCache) cacheOne(ctx context.Context, orderCode string, index int, source string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download image: unexpected status %d", resp.StatusCode)
	}

	object := objectName(orderCode, index, source)
	writer := c.client.Bucket(c.bucket).Object(object).NewWriter(ctx)
	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("upload image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize image upload: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, c.bucket, object), nil
}

// objectName derives a stable bucket path so re-caching the same order
// overwrites instead of accumulating copies.
func objectName(orderCode string, index int, source string) string {
	ext := defaultImageExt
	if parsed, err := url.Parse(source); err == nil {
		if e := strings.ToLower(path.Ext(parsed.Path)); e != "" && len(e) <= 5 {
			ext = e
		}
	}
	return fmt.Sprintf("%s/%s/%d%s", objectPathPrefix, orderCode, index, ext)
}
