package source

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"MemeCurator/internal/domain"
	"MemeCurator/internal/ports"
)

const defaultMaxContentBytes = 8 << 20

// HTTPContentFetcher downloads candidate images for evaluation.
type HTTPContentFetcher struct {
	client   *http.Client
	maxBytes int64
}

var _ ports.ContentFetcher = (*HTTPContentFetcher)(nil)

// NewHTTPContentFetcher wires an HTTP client; a nil client gets a 20s timeout.
func NewHTTPContentFetcher(client *http.Client) *HTTPContentFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPContentFetcher{client: client, maxBytes: defaultMaxContentBytes}
}

// Fetch returns the image bytes at url with their MIME type.
func (f *HTTPContentFetcher) Fetch(ctx context.Context, url string) (domain.Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Content{}, domain.NewAdapterError("fetch content", domain.KindConfig, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Content{}, domain.NewAdapterError("fetch content", domain.KindTransport, fmt.Errorf("request image: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Content{}, domain.NewAdapterError("fetch content", domain.KindTransport, fmt.Errorf("image returned %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return domain.Content{}, domain.NewAdapterError("fetch content", domain.KindTransport, fmt.Errorf("read image: %w", err))
	}
	if int64(len(data)) > f.maxBytes {
		return domain.Content{}, domain.NewAdapterError("fetch content", domain.KindMalformed, fmt.Errorf("image exceeds %d bytes", f.maxBytes))
	}
	if len(data) == 0 {
		return domain.Content{}, domain.NewAdapterError("fetch content", domain.KindMalformed, fmt.Errorf("empty image body"))
	}

	mimeType := detectImageType(resp.Header.Get("Content-Type"), data)
	if mimeType == "" {
		return domain.Content{}, domain.NewAdapterError("fetch content", domain.KindMalformed, fmt.Errorf("content at %s is not an image", url))
	}

	return domain.Content{Data: data, MIMEType: mimeType}, nil
}

// detectImageType trusts an image Content-Type header and otherwise sniffs
// the payload. Anything that is not an image yields "".
func detectImageType(header string, data []byte) string {
	if mediaType, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mediaType, "image/") {
		return mediaType
	}
	sniffed := mimetype.Detect(data).String()
	if mediaType, _, err := mime.ParseMediaType(sniffed); err == nil && strings.HasPrefix(mediaType, "image/") {
		return mediaType
	}
	return ""
}
