package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"MemeCurator/internal/domain"
	"MemeCurator/internal/scanner"
)

// RSSScanner pulls image items from RSS/Atom feeds. Feeds carry no vote
// count, so an item's Ups is its reverse position in the feed.
type RSSScanner struct {
	client *http.Client
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner wires an HTTP client; a nil client gets a 15s timeout.
func NewRSSScanner(client *http.Client, logger *slog.Logger) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RSSScanner{client: client, parser: gofeed.NewParser(), logger: logger}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan parses the feed at req.Target and keeps items that reference an image.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	if strings.TrimSpace(req.Target) == "" {
		return nil, domain.NewAdapterError("rss scan", domain.KindConfig, fmt.Errorf("feed %s has no url", req.FeedName))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Target, nil)
	if err != nil {
		return nil, domain.NewAdapterError("rss scan", domain.KindConfig, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, domain.NewAdapterError("rss scan", domain.KindTransport, fmt.Errorf("request feed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewAdapterError("rss scan", domain.KindTransport, fmt.Errorf("feed returned %s", resp.Status))
	}

	feed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, domain.NewAdapterError("rss scan", domain.KindMalformed, fmt.Errorf("parse feed: %w", err))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}

	candidates := make([]domain.Candidate, 0, limit)
	for i, item := range feed.Items {
		if len(candidates) >= limit {
			break
		}
		imageURL := itemImage(item)
		if imageURL == "" {
			continue
		}

		key := strings.TrimSpace(item.GUID)
		if key == "" {
			key = strings.TrimSpace(item.Link)
		}
		if key == "" {
			key = imageURL
		}

		author := ""
		if item.Author != nil {
			author = item.Author.Name
		}

		candidates = append(candidates, domain.Candidate{
			ID:        req.FeedName + ":" + key,
			Title:     strings.TrimSpace(item.Title),
			URL:       imageURL,
			Source:    req.FeedName,
			Ups:       len(feed.Items) - i,
			Permalink: strings.TrimSpace(item.Link),
			Author:    author,
		})
	}

	if r.logger != nil {
		r.logger.Debug("feed scanned", "feed", req.FeedName, "items", len(feed.Items), "images", len(candidates))
	}
	return candidates, nil
}

func itemImage(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && strings.HasPrefix(enclosure.Type, "image/") && enclosure.URL != "" {
			return enclosure.URL
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, html := range []string{item.Content, item.Description} {
		if src := firstImageSrc(html, item.Link); src != "" {
			return src
		}
	}
	return ""
}

func firstImageSrc(html, base string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	src, ok := doc.Find("img[src]").First().Attr("src")
	if !ok {
		return ""
	}
	src = strings.TrimSpace(src)

	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return src
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}
