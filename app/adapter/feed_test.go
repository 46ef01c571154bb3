package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const testRSS = `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <item>
      <title>Episode 2</title>
      <link>https://example.com/episodes/2</link>
      <description>&lt;p&gt;Second &lt;img src="/inline.jpg"&gt;&lt;/p&gt;</description>
      <guid>episode-2</guid>
      <pubDate>Tue, 04 Jul 2023 10:00:00 GMT</pubDate>
      <author>host@example.com (The Host)</author>
      <category>Podcasts</category>
      <enclosure url="https://cdn.example.com/ep2.mp3" length="12345" type="audio/mpeg"/>
      <itunes:image href="https://cdn.example.com/ep2-cover.jpg"/>
    </item>
    <item>
      <title>Episode 1</title>
      <link>https://example.com/episodes/1</link>
      <description>First</description>
      <guid>episode-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <media:group>
        <media:content url="https://cdn.example.com/ep1.mp4" type="video/mp4" fileSize="999"/>
        <media:thumbnail url="https://cdn.example.com/ep1.jpg"/>
      </media:group>
    </item>
  </channel>
</rss>`

const testAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <id>urn:uuid:feed</id>
  <updated>2023-07-03T12:00:00Z</updated>
  <entry>
    <title>Atom Entry</title>
    <link href="https://example.com/atom/1"/>
    <id>urn:uuid:entry-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
    <summary>Atom summary</summary>
    <content type="html">&lt;p&gt;Atom body&lt;/p&gt;</content>
    <author><name>Writer</name></author>
  </entry>
</feed>`

func newFeedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestFeedAdapterParsesRSS(t *testing.T) {
	server := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "Content Comb/test" {
			t.Errorf("Expected user agent to be sent, got: %s", r.Header.Get("User-Agent"))
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Tue, 04 Jul 2023 10:00:00 GMT")
		w.Write([]byte(testRSS))
	})

	adapter := NewFeedAdapter(server.Client(), "Content Comb/test", 5*time.Second)
	result, err := adapter.Fetch(context.Background(), Request{SourceID: "pod", Endpoint: server.URL})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.NotModified {
		t.Error("Expected a modified result")
	}
	if result.ETag != `"v1"` || result.LastModified != "Tue, 04 Jul 2023 10:00:00 GMT" {
		t.Errorf("Expected conditional token from response, got: %s / %s", result.ETag, result.LastModified)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got: %d", len(result.Entries))
	}

	first := result.Entries[0]
	if first.ExternalID != "episode-2" {
		t.Errorf("Expected upstream order to be kept, got: %s", first.ExternalID)
	}
	if first.PublishedAt == nil || !first.PublishedAt.Equal(time.Date(2023, 7, 4, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected parsed publish time, got: %v", first.PublishedAt)
	}
	if len(first.Enclosures) != 1 || first.Enclosures[0].Length != 12345 || first.Enclosures[0].Type != "audio/mpeg" {
		t.Errorf("Expected audio enclosure, got: %+v", first.Enclosures)
	}
	if first.ImageURL != "https://cdn.example.com/ep2-cover.jpg" {
		t.Errorf("Expected itunes image as structured image, got: %s", first.ImageURL)
	}
	if len(first.Authors) != 1 || len(first.Categories) != 1 {
		t.Errorf("Expected author and category, got: %v %v", first.Authors, first.Categories)
	}

	second := result.Entries[1]
	if second.ImageURL != "" {
		t.Errorf("Expected no structured image from body markup, got: %s", second.ImageURL)
	}
	if len(second.Media) != 2 {
		t.Fatalf("Expected media content and thumbnail, got: %+v", second.Media)
	}
	if second.Media[0].URL != "https://cdn.example.com/ep1.mp4" || second.Media[0].Length != 999 {
		t.Errorf("Expected video media content, got: %+v", second.Media[0])
	}
	if second.Media[1].Type != "image" {
		t.Errorf("Expected thumbnail to be typed as image, got: %+v", second.Media[1])
	}
}

func TestFeedAdapterParsesAtom(t *testing.T) {
	server := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testAtom))
	})

	adapter := NewFeedAdapter(server.Client(), "Content Comb/test", 5*time.Second)
	result, err := adapter.Fetch(context.Background(), Request{SourceID: "atom", Endpoint: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(result.Entries))
	}
	entry := result.Entries[0]
	if entry.Link != "https://example.com/atom/1" || entry.Summary != "Atom summary" || entry.Body != "<p>Atom body</p>" {
		t.Errorf("Unexpected atom entry: %+v", entry)
	}
	if entry.PublishedAt == nil {
		t.Error("Expected updated time to stand in for missing published time")
	}
}

func TestFeedAdapterConditionalGet(t *testing.T) {
	var conditional atomic.Int32
	server := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(testRSS))
	})

	adapter := NewFeedAdapter(server.Client(), "Content Comb/test", 5*time.Second)

	result, err := adapter.Fetch(context.Background(), Request{SourceID: "pod", Endpoint: server.URL, ETag: `"v1"`})
	if err != nil {
		t.Fatal(err)
	}
	if !result.NotModified || len(result.Entries) != 0 {
		t.Errorf("Expected not modified without entries, got: %+v", result)
	}

	result, err = adapter.Fetch(context.Background(), Request{SourceID: "pod", Endpoint: server.URL, ETag: `"v1"`, Backfill: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.NotModified || len(result.Entries) != 2 {
		t.Errorf("Expected backfill to bypass the conditional token, got: %+v", result)
	}

	if conditional.Load() != 1 {
		t.Errorf("Expected exactly one conditional request, got: %d", conditional.Load())
	}
}

func TestFeedAdapterErrors(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		timeout   time.Duration
		transport bool
		status    int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			transport: true,
			status:    http.StatusBadGateway,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout:   50 * time.Millisecond,
			transport: true,
		},
		{
			name: "not a feed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html><body>maintenance</body></html>"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFeedServer(t, tt.handler)
			adapter := NewFeedAdapter(server.Client(), "Content Comb/test", 5*time.Second)

			_, err := adapter.Fetch(context.Background(), Request{SourceID: "broken", Endpoint: server.URL, Timeout: tt.timeout})
			if err == nil {
				t.Fatal("Expected error, got none")
			}

			var transportErr *TransportError
			var parseErr *ParseError
			if tt.transport {
				if !errors.As(err, &transportErr) {
					t.Fatalf("Expected TransportError, got: %v", err)
				}
				if transportErr.StatusCode != tt.status {
					t.Errorf("Expected status %d, got: %d", tt.status, transportErr.StatusCode)
				}
			} else if !errors.As(err, &parseErr) {
				t.Errorf("Expected ParseError, got: %v", err)
			}
		})
	}
}
