package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"MemeCurator/internal/domain"
	"MemeCurator/internal/scanner"
)

const (
	redditBaseURL      = "https://www.reddit.com"
	redditPermalinkURL = "https://reddit.com"
	defaultFeedLimit   = 10
	userAgent          = "MemeCurator/1.0"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png"}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Subreddit string `json:"subreddit"`
	Ups       int    `json:"ups"`
	Permalink string `json:"permalink"`
	Author    string `json:"author"`
	IsSelf    bool   `json:"is_self"`
	IsVideo   bool   `json:"is_video"`
}

// RedditScanner reads the daily top listing of a subreddit.
type RedditScanner struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

var _ scanner.Scanner = (*RedditScanner)(nil)

// NewRedditScanner wires an HTTP client; a nil client gets a 15s timeout.
func NewRedditScanner(client *http.Client, logger *slog.Logger) *RedditScanner {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RedditScanner{client: client, baseURL: redditBaseURL, logger: logger}
}

// Name identifies the strategy inside the registry.
func (r *RedditScanner) Name() string {
	return "reddit"
}

// Scan returns image posts from the subreddit's top-of-day listing.
func (r *RedditScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	sub := strings.TrimPrefix(strings.TrimSpace(req.Target), "r/")
	if sub == "" {
		return nil, domain.NewAdapterError("reddit scan", domain.KindConfig, fmt.Errorf("feed %s has no subreddit", req.FeedName))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}

	listingURL, err := buildListingURL(r.baseURL, sub, limit)
	if err != nil {
		return nil, domain.NewAdapterError("reddit scan", domain.KindConfig, err)
	}

	listing, err := r.fetchListing(ctx, listingURL)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if !isImagePost(post) {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			ID:        post.ID,
			Title:     post.Title,
			URL:       post.URL,
			Source:    post.Subreddit,
			Ups:       post.Ups,
			Permalink: redditPermalinkURL + post.Permalink,
			Author:    post.Author,
		})
	}

	if r.logger != nil {
		r.logger.Debug("subreddit scanned", "subreddit", sub, "posts", len(listing.Data.Children), "images", len(candidates))
	}
	return candidates, nil
}

func (r *RedditScanner) fetchListing(ctx context.Context, listingURL string) (redditListing, error) {
	var listing redditListing

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return listing, domain.NewAdapterError("reddit scan", domain.KindConfig, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return listing, domain.NewAdapterError("reddit scan", domain.KindTransport, fmt.Errorf("request listing: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		kind := domain.KindTransport
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = domain.KindQuota
		}
		return listing, domain.NewAdapterError("reddit scan", kind, fmt.Errorf("reddit returned %s", resp.Status))
	}

	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return listing, domain.NewAdapterError("reddit scan", domain.KindMalformed, fmt.Errorf("decode listing: %w", err))
	}
	return listing, nil
}

func isImagePost(post redditPost) bool {
	if post.IsSelf || post.IsVideo || post.ID == "" {
		return false
	}
	return isImageURL(post.URL)
}

func isImageURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	for _, allowed := range imageExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func buildListingURL(base, sub string, limit int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid reddit base url %s: %w", base, err)
	}
	if strings.ContainsAny(sub, "/?#") {
		return "", errors.New("invalid subreddit name " + sub)
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/r/" + sub + "/top.json"
	query := parsed.Query()
	query.Set("t", "day")
	query.Set("limit", strconv.Itoa(limit))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
