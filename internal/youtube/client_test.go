package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulsedash/pulse/pkg/config"
)

const testChannelID = "UCabcdefghijklmnopqrst"

// fakeAPI serves channels.list and search.list for a single known channel
func fakeAPI(t *testing.T, knownUsername string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("key") == "" {
			t.Error("Expected api key on every request")
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/channels":
			id := r.URL.Query().Get("id")
			username := r.URL.Query().Get("forUsername")
			if id == testChannelID || (username != "" && username == knownUsername) {
				w.Write([]byte(`{"items": [{
					"id": "` + testChannelID + `",
					"snippet": {"title": "Test Channel", "description": "desc", "country": "US",
						"thumbnails": {"default": {"url": "http://example.com/t.jpg"}}},
					"statistics": {"viewCount": "1000000", "subscriberCount": "50001", "videoCount": "321"}
				}]}`))
				return
			}
			w.Write([]byte(`{"items": []}`))
		case "/search":
			if r.URL.Query().Get("q") == "testchannel" {
				w.Write([]byte(`{"items": [{"id": {"channelId": "` + testChannelID + `"}}]}`))
				return
			}
			w.Write([]byte(`{"items": []}`))
		default:
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
	}))
	return server, &calls
}

func newTestYouTubeClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(&config.YouTubeConfig{
		Enabled: true,
		BaseURL: baseURL,
		APIKey:  "test-key",
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestChannelStats(t *testing.T) {
	server, _ := fakeAPI(t, "")
	defer server.Close()

	client := newTestYouTubeClient(t, server.URL)
	stats, err := client.ChannelStats(context.Background(), testChannelID)
	if err != nil {
		t.Fatalf("ChannelStats failed: %v", err)
	}

	if stats.ChannelID != testChannelID {
		t.Errorf("Expected channel id %s, got %s", testChannelID, stats.ChannelID)
	}
	if stats.ViewCount != 1000000 || stats.SubscriberCount != 50001 || stats.VideoCount != 321 {
		t.Errorf("Unexpected counts: %+v", stats)
	}
	if stats.Country != "US" {
		t.Errorf("Expected country US, got %s", stats.Country)
	}
}

func TestChannelStats_NotFound(t *testing.T) {
	server, _ := fakeAPI(t, "")
	defer server.Close()

	client := newTestYouTubeClient(t, server.URL)
	_, err := client.ChannelStats(context.Background(), "UCdoesnotexist0000000000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"native id", testChannelID},
		{"handle", "@testchannel"},
		{"bare query", "testchannel"},
		{"legacy username", "legacyname"},
		{"url with channel id", "https://youtube.com/channel/" + testChannelID},
		{"url with handle", "https://youtube.com/@testchannel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := fakeAPI(t, "legacyname")
			defer server.Close()

			client := newTestYouTubeClient(t, server.URL)
			stats, err := client.Resolve(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.query, err)
			}
			if stats.ChannelID != testChannelID {
				t.Errorf("Resolve(%q) = %s, want %s", tt.query, stats.ChannelID, testChannelID)
			}
		})
	}
}

func TestResolve_ExhaustionIsNotFound(t *testing.T) {
	server, _ := fakeAPI(t, "")
	defer server.Close()

	client := newTestYouTubeClient(t, server.URL)
	_, err := client.Resolve(context.Background(), "no such channel anywhere")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestResolve_URLRetryIsBounded(t *testing.T) {
	// A URL whose extracted handle resolves nowhere must terminate after a
	// single extra attempt rather than recursing on the handle's URL shape.
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"items": []}`))
	}))
	defer server.Close()

	client := newTestYouTubeClient(t, server.URL)
	_, err := client.Resolve(context.Background(), "https://youtube.com/@ghosthandle")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got: %v", err)
	}
	// Two attempts, two strategies each (search + forUsername)
	if calls > 4 {
		t.Errorf("Expected bounded resolution, saw %d API calls", calls)
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(&config.YouTubeConfig{BaseURL: "https://example.com"}, nil)
	if err == nil {
		t.Error("Expected error for missing api key")
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in       string
		expected int64
	}{
		{"", 0},
		{"0", 0},
		{"123456", 123456},
		{"not a number", 0},
	}

	for _, tt := range tests {
		if got := parseCount(tt.in); got != tt.expected {
			t.Errorf("parseCount(%q) = %d, want %d", tt.in, got, tt.expected)
		}
	}
}
