package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchboard/internal/config"
)

func TestScrapeActorParsesDatasetItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "run-sync-get-dataset-items")
		assert.Equal(t, "tok", r.URL.Query().Get("token"))

		var input map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		assert.Equal(t, []interface{}{"https://instagram.com/p/x/"}, input["directUrls"])

		json.NewEncoder(w).Encode([]map[string]interface{}{{
			"ownerUsername":  "nasa",
			"caption":        "a galaxy far away",
			"likesCount":     120000,
			"commentsCount":  900,
			"videoViewCount": 2000000,
			"isVideo":        true,
			"displayUrl":     "https://cdn.example/img.jpg",
		}})
	}))
	defer srv.Close()

	cfg := config.DefaultApifyConfig()
	cfg.BaseURL = srv.URL
	cfg.Token = "tok"
	s := NewScraper(cfg)

	m, err := s.Scrape(context.Background(), "https://instagram.com/p/x/")
	require.NoError(t, err)
	assert.Equal(t, "nasa", m.Username)
	assert.Equal(t, 120000, m.Likes)
	assert.Equal(t, 900, m.Comments)
	assert.Equal(t, 2000000, m.Views)
	assert.True(t, m.IsVideo)
	assert.Equal(t, []string{"https://cdn.example/img.jpg"}, m.MediaURLs)
	assert.False(t, m.Degraded)
}

func TestScrapeFallsBackToMarkup(t *testing.T) {
	page := `<!doctype html><html><head>
		<meta property="og:description" content="1,234 likes, 56 comments - someuser on March 1, 2026" />
		<meta property="og:image" content="https://cdn.example/photo.jpg" />
		<meta property="og:title" content="someuser on Instagram: caption text" />
	</head><body></body></html>`

	// The same server plays both roles: the actor endpoint fails, the
	// post URL serves markup.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/acts/") {
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte(`{"error":"plan limit reached"}`))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	cfg := config.DefaultApifyConfig()
	cfg.BaseURL = srv.URL
	cfg.Token = "tok"
	s := NewScraper(cfg)

	m, err := s.Scrape(context.Background(), srv.URL+"/p/abc/")
	require.NoError(t, err)
	assert.True(t, m.Degraded)
	assert.Equal(t, 1234, m.Likes)
	assert.Equal(t, 56, m.Comments)
	assert.Equal(t, "someuser", m.Username)
	assert.Zero(t, m.Views, "views are not recoverable from markup")
	assert.Equal(t, []string{"https://cdn.example/photo.jpg"}, m.MediaURLs)
}

func TestScrapeWithoutTokenSkipsActor(t *testing.T) {
	page := `<html><head><meta property="og:description" content="10 likes, 2 comments - tiny_account"/></head></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotContains(t, r.URL.Path, "/acts/", "actor must not be called without a token")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	cfg := config.DefaultApifyConfig()
	cfg.BaseURL = srv.URL
	s := NewScraper(cfg)

	m, err := s.Scrape(context.Background(), srv.URL+"/p/abc/")
	require.NoError(t, err)
	assert.True(t, m.Degraded)
	assert.Equal(t, 10, m.Likes)
}

func TestParseCount(t *testing.T) {
	cases := map[string]int{
		"1,234": 1234,
		"12.5K": 12500,
		"3M":    3000000,
		"0":     0,
		"junk":  0,
	}
	for in, want := range cases {
		if got := parseCount(in); got != want {
			t.Errorf("parseCount(%q) = %d, want %d", in, got, want)
		}
	}
}
