package twitter

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulsedash/pulse/internal/models"
	"github.com/pulsedash/pulse/pkg/config"
)

func testIdentity() *models.Identity {
	return &models.Identity{
		UserID:            1,
		Provider:          models.ProviderTwitter,
		ProviderID:        "12345",
		AccessToken:       "token",
		AccessTokenSecret: sql.NullString{String: "secret", Valid: true},
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(&config.TwitterConfig{
		Enabled:        true,
		BaseURL:        baseURL,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		PageSize:       10,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestRecentTweets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/12345/tweets" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("max_results") != "10" {
			t.Errorf("Expected max_results=10, got: %s", r.URL.Query().Get("max_results"))
		}
		if r.Header.Get("Authorization") == "" {
			t.Error("Expected OAuth Authorization header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"id": "100", "text": "first", "created_at": "2024-03-01T10:00:00Z",
				 "public_metrics": {"like_count": 5, "retweet_count": 2, "reply_count": 1, "quote_count": 0}},
				{"id": "99", "text": "second", "created_at": "2024-02-28T09:00:00Z",
				 "public_metrics": {"like_count": 1, "retweet_count": 0, "reply_count": 0, "quote_count": 0}}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	items := client.RecentTweets(context.Background(), testIdentity())

	if len(items) != 2 {
		t.Fatalf("Expected 2 tweets, got %d", len(items))
	}
	if items[0].ID != "100" || items[0].Text != "first" {
		t.Errorf("Unexpected first item: %+v", items[0])
	}
	if len(items[0].Payload) == 0 {
		t.Error("Expected raw payload to be preserved")
	}
}

func TestRecentTweets_EmptyOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "auth error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"title": "Unauthorized"}`))
			},
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := newTestClient(t, server.URL)
			items := client.RecentTweets(context.Background(), testIdentity())
			if len(items) != 0 {
				t.Errorf("Expected empty page on failure, got %d items", len(items))
			}
		})
	}
}

func TestRecentTweets_SkipsItemsWithoutID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"text": "no id here"}, {"id": "7", "text": "ok", "created_at": "2024-03-01T10:00:00Z"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	items := client.RecentTweets(context.Background(), testIdentity())
	if len(items) != 1 || items[0].ID != "7" {
		t.Errorf("Expected only the item with an id, got: %+v", items)
	}
}

func TestNew_RequiresConsumerKeys(t *testing.T) {
	_, err := New(&config.TwitterConfig{BaseURL: "https://api.twitter.com", PageSize: 10})
	if err == nil {
		t.Error("Expected error for missing consumer keys")
	}
}
