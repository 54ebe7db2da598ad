package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"MemeCurator/internal/domain"
	"MemeCurator/internal/ports"
)

const (
	defaultBaseURL  = "https://discord.com/api/v10"
	embedColor      = 5814783
	recentMessages  = 20
	defaultRetries  = 3
	defaultBackoff  = time.Second
	maxErrorPayload = 1024
)

var negativeReactions = map[string]struct{}{
	"❌":  {},
	"👎":  {},
	"💩":  {},
	"🤮":  {},
	"x_": {},
}

// Client talks to the Discord REST API with bot credentials.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
	retries uint64
	backoff time.Duration
	logger  *slog.Logger
}

var (
	_ ports.Publisher      = (*Client)(nil)
	_ ports.FeedbackSource = (*Client)(nil)
)

// NewClient registers the bot token.
func NewClient(token string, logger *slog.Logger) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		retries: defaultRetries,
		backoff: defaultBackoff,
		logger:  logger,
	}
}

type embedImage struct {
	URL string `json:"url"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Image  *embedImage  `json:"image,omitempty"`
	Footer *embedFooter `json:"footer,omitempty"`
	Color  int          `json:"color,omitempty"`
}

type messagePayload struct {
	Content string  `json:"content"`
	Embeds  []embed `json:"embeds"`
}

type message struct {
	Content string `json:"content"`
	Author  struct {
		Bot bool `json:"bot"`
	} `json:"author"`
	Embeds    []embed `json:"embeds"`
	Reactions []struct {
		Emoji struct {
			Name string `json:"name"`
		} `json:"emoji"`
	} `json:"reactions"`
}

// Publish posts the item as a message with one image embed. Rate limits and
// server errors are retried with Fibonacci backoff.
func (c *Client) Publish(ctx context.Context, channelID string, item domain.ScoredItem) error {
	if c.token == "" || channelID == "" {
		return domain.NewAdapterError("discord publish", domain.KindConfig, fmt.Errorf("discord publisher misconfigured"))
	}

	body, err := json.Marshal(messagePayload{
		Content: fmt.Sprintf("**%s**\n*%s*", item.Candidate.Title, item.ScoreLine()),
		Embeds: []embed{{
			Image:  &embedImage{URL: item.Candidate.URL},
			Footer: &embedFooter{Text: item.Footer()},
			Color:  embedColor,
		}},
	})
	if err != nil {
		return domain.NewAdapterError("discord publish", domain.KindMalformed, fmt.Errorf("marshal payload: %w", err))
	}

	endpoint := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, url.PathEscape(channelID))

	kind := domain.KindTransport
	backoff := retry.WithMaxRetries(c.retries, retry.NewFibonacci(c.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			kind = domain.KindConfig
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Authorization", "Bot "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			kind = domain.KindTransport
			return retry.RetryableError(fmt.Errorf("do request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode < http.StatusMultipleChoices {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}

		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorPayload))
		statusErr := fmt.Errorf("discord error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			kind = domain.KindQuota
			c.debug("discord rate limited, retrying", "channel", channelID)
			return retry.RetryableError(statusErr)
		case resp.StatusCode >= http.StatusInternalServerError:
			kind = domain.KindTransport
			return retry.RetryableError(statusErr)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			kind = domain.KindConfig
			return statusErr
		default:
			kind = domain.KindRejected
			return statusErr
		}
	})
	if err != nil {
		return domain.NewAdapterError("discord publish", kind, err)
	}
	return nil
}

// RecentDislikes inspects the latest channel messages and returns the caption
// (or body) of every bot message carrying a negative reaction.
func (c *Client) RecentDislikes(ctx context.Context, channelID string) ([]string, error) {
	if c.token == "" || channelID == "" {
		return nil, domain.NewAdapterError("discord feedback", domain.KindConfig, fmt.Errorf("discord feedback misconfigured"))
	}

	endpoint := fmt.Sprintf("%s/channels/%s/messages?limit=%d", c.baseURL, url.PathEscape(channelID), recentMessages)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewAdapterError("discord feedback", domain.KindConfig, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", "Bot "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewAdapterError("discord feedback", domain.KindTransport, fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewAdapterError("discord feedback", domain.KindTransport, fmt.Errorf("discord error: %s", resp.Status))
	}

	var messages []message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, domain.NewAdapterError("discord feedback", domain.KindMalformed, fmt.Errorf("decode messages: %w", err))
	}

	var dislikes []string
	for _, msg := range messages {
		if !msg.Author.Bot || !hasNegativeReaction(msg) {
			continue
		}
		if len(msg.Embeds) > 0 && msg.Embeds[0].Footer != nil && msg.Embeds[0].Footer.Text != "" {
			dislikes = append(dislikes, msg.Embeds[0].Footer.Text)
			continue
		}
		if msg.Content != "" {
			dislikes = append(dislikes, msg.Content)
		}
	}
	return dislikes, nil
}

func hasNegativeReaction(msg message) bool {
	for _, reaction := range msg.Reactions {
		if _, ok := negativeReactions[reaction.Emoji.Name]; ok {
			return true
		}
	}
	return false
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
