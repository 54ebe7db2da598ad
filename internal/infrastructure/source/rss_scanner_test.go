package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"MemeCurator/internal/scanner"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Comics</title>
    <link>https://comics.example.org/</link>
    <item>
      <title>Enclosed</title>
      <link>https://comics.example.org/1</link>
      <guid>c-1</guid>
      <enclosure url="https://cdn.example.org/1.png" type="image/png" length="10"/>
    </item>
    <item>
      <title>Text only</title>
      <link>https://comics.example.org/2</link>
      <guid>c-2</guid>
      <description>No pictures here.</description>
    </item>
    <item>
      <title>Embedded</title>
      <link>https://comics.example.org/3</link>
      <description><![CDATA[<p>Look</p><img src="/img/3.jpg" alt="three">]]></description>
    </item>
  </channel>
</rss>`

func TestFirstImageSrc(t *testing.T) {
	t.Parallel()

	got := firstImageSrc(`<div><img alt="x"><img src="pics/a.jpg"></div>`, "https://example.org/posts/1")
	if got != "https://example.org/posts/pics/a.jpg" {
		t.Fatalf("unexpected resolved src: %s", got)
	}
	if firstImageSrc(`<p>none</p>`, "https://example.org") != "" {
		t.Fatalf("expected empty src")
	}
	if firstImageSrc(`<img src="rel.png">`, "") != "" {
		t.Fatalf("relative src without base should be dropped")
	}
}

func TestRSSScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
	defer server.Close()

	sc := NewRSSScanner(server.Client(), nil)
	candidates, err := sc.Scan(context.Background(), scanner.Request{FeedName: "comics", Target: server.URL})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(candidates), candidates)
	}

	first := candidates[0]
	if first.ID != "comics:c-1" || first.URL != "https://cdn.example.org/1.png" || first.Ups != 3 {
		t.Fatalf("unexpected first candidate: %+v", first)
	}

	second := candidates[1]
	if second.ID != "comics:https://comics.example.org/3" {
		t.Fatalf("unexpected id fallback: %s", second.ID)
	}
	if second.URL != "https://comics.example.org/img/3.jpg" || second.Ups != 1 {
		t.Fatalf("unexpected second candidate: %+v", second)
	}
	if second.Source != "comics" {
		t.Fatalf("unexpected source: %s", second.Source)
	}
}

func TestRSSScannerRejectsGarbage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("definitely not a feed"))
	}))
	defer server.Close()

	sc := NewRSSScanner(server.Client(), nil)
	if _, err := sc.Scan(context.Background(), scanner.Request{FeedName: "x", Target: server.URL}); err == nil {
		t.Fatalf("expected parse error")
	}
}
