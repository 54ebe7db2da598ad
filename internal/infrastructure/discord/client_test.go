package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"MemeCurator/internal/domain"
)

func newTestClient(server *httptest.Server) *Client {
	c := NewClient("token", nil)
	c.baseURL = server.URL
	c.client = server.Client()
	c.backoff = time.Millisecond
	return c
}

func winner() domain.ScoredItem {
	return domain.ScoredItem{
		Candidate: domain.Candidate{
			ID:        "a",
			Title:     "Cat tax",
			URL:       "https://i.redd.it/a.jpg",
			Source:    "memes",
			Ups:       50,
			Permalink: "https://reddit.com/r/memes/comments/a/",
		},
		Verdict: &domain.Verdict{Acceptable: true, Score: 8, Explanation: strings.Repeat("x", 150)},
		Status:  domain.StatusAnalyzed,
	}
}

func TestPublishSendsEmbed(t *testing.T) {
	t.Parallel()

	var got messagePayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/42/messages" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bot token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestClient(server).Publish(context.Background(), "42", winner()); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	if got.Content != "**Cat tax**\n*Curated from r/memes (Score: 8/10)*" {
		t.Fatalf("unexpected content %q", got.Content)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Image.URL != "https://i.redd.it/a.jpg" || got.Embeds[0].Color != embedColor {
		t.Fatalf("unexpected embeds %+v", got.Embeds)
	}
	footer := got.Embeds[0].Footer.Text
	if footer != "AI Analysis: "+strings.Repeat("x", 100)+"..." {
		t.Fatalf("unexpected footer %q", footer)
	}
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestClient(server).Publish(context.Background(), "42", winner()); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestPublishDoesNotRetryPermanentFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := newTestClient(server).Publish(context.Background(), "42", winner())
	if domain.KindOf(err) != domain.KindConfig {
		t.Fatalf("expected config kind, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestPublishGivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := newTestClient(server).Publish(context.Background(), "42", winner())
	if domain.KindOf(err) != domain.KindQuota {
		t.Fatalf("expected quota kind, got %v", err)
	}
	if calls.Load() != defaultRetries+1 {
		t.Fatalf("expected %d attempts, got %d", defaultRetries+1, calls.Load())
	}
}

func TestPublishCancelledContextIsTransport(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestClient(server).Publish(ctx, "42", winner())
	if domain.KindOf(err) != domain.KindTransport {
		t.Fatalf("expected transport kind, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request, got %d", calls.Load())
	}
}

func TestRecentDislikes(t *testing.T) {
	t.Parallel()

	const messages = `[
	  {"content":"**A**","author":{"bot":true},"embeds":[{"footer":{"text":"AI Analysis: cats..."}}],"reactions":[{"emoji":{"name":"👎"}}]},
	  {"content":"**B**","author":{"bot":true},"embeds":[],"reactions":[{"emoji":{"name":"x_"}}]},
	  {"content":"**C**","author":{"bot":true},"embeds":[{"footer":{"text":"loved"}}],"reactions":[{"emoji":{"name":"😂"}}]},
	  {"content":"human post","author":{"bot":false},"reactions":[{"emoji":{"name":"❌"}}]}
	]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "20" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(messages))
	}))
	defer server.Close()

	dislikes, err := newTestClient(server).RecentDislikes(context.Background(), "42")
	if err != nil {
		t.Fatalf("RecentDislikes error: %v", err)
	}
	if strings.Join(dislikes, "|") != "AI Analysis: cats...|**B**" {
		t.Fatalf("unexpected dislikes %v", dislikes)
	}
}

func TestRecentDislikesReportsTransportErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dislikes, err := newTestClient(server).RecentDislikes(context.Background(), "42")
	if err == nil || len(dislikes) != 0 {
		t.Fatalf("expected error and no dislikes, got %v %v", dislikes, err)
	}
}
