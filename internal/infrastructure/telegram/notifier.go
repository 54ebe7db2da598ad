package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"MemeCurator/internal/domain"
	"MemeCurator/internal/ports"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	captionLimit   = 1024
)

// Notifier sends curated images to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	baseURL  string
	client   *http.Client
	retries  uint64
	backoff  time.Duration
}

var _ ports.Publisher = (*Notifier)(nil)

// NewNotifier registers the bot token.
func NewNotifier(botToken string) *Notifier {
	return &Notifier{
		botToken: botToken,
		baseURL:  defaultBaseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		retries:  3,
		backoff:  time.Second,
	}
}

// Publish posts the image URL with a caption to chatID.
func (n *Notifier) Publish(ctx context.Context, chatID string, item domain.ScoredItem) error {
	if n.botToken == "" || chatID == "" || n.client == nil {
		return domain.NewAdapterError("telegram publish", domain.KindConfig, fmt.Errorf("telegram notifier misconfigured"))
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendPhoto", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("photo", item.Candidate.URL)
	form.Set("caption", caption(item))

	kind := domain.KindTransport
	backoff := retry.WithMaxRetries(n.retries, retry.NewFibonacci(n.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			kind = domain.KindConfig
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := n.client.Do(req)
		if err != nil {
			kind = domain.KindTransport
			return retry.RetryableError(fmt.Errorf("do request: %w", err))
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

		switch {
		case resp.StatusCode == http.StatusOK:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			kind = domain.KindQuota
			return retry.RetryableError(fmt.Errorf("telegram error: %s", resp.Status))
		case resp.StatusCode >= http.StatusInternalServerError:
			kind = domain.KindTransport
			return retry.RetryableError(fmt.Errorf("telegram error: %s", resp.Status))
		default:
			kind = domain.KindRejected
			return fmt.Errorf("telegram error: %s", resp.Status)
		}
	})
	if err != nil {
		return domain.NewAdapterError("telegram publish", kind, err)
	}
	return nil
}

func caption(item domain.ScoredItem) string {
	text := item.Candidate.Title + "\n" + item.ScoreLine() + "\n" + item.Footer()
	if item.Candidate.Permalink != "" {
		text += "\n" + item.Candidate.Permalink
	}
	runes := []rune(text)
	if len(runes) > captionLimit {
		runes = runes[:captionLimit]
	}
	return string(runes)
}
