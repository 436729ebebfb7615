// Package content dispatches content-analysis intents: it scrapes
// engagement metrics for Instagram posts and profiles and turns them
// into a generated report. Scraping goes through a hosted actor; when
// the actor is unreachable the page's Open Graph metadata provides a
// reduced metric set.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"switchboard/internal/config"
	"switchboard/internal/logging"
)

// PostMetrics is the engagement data extracted for one URL.
type PostMetrics struct {
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Likes    int    `json:"likes"`
	Comments int    `json:"comments"`
	// Views is only available through the actor; the markup fallback
	// cannot recover it.
	Views     int      `json:"views,omitempty"`
	IsVideo   bool     `json:"is_video,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`

	// Degraded marks metrics recovered from page markup instead of the
	// actor. Degraded metrics carry fewer fields and lower fidelity.
	Degraded bool `json:"degraded,omitempty"`

	raw json.RawMessage
}

// Scraper fetches post metrics, preferring the hosted actor and falling
// back to Open Graph markup.
type Scraper struct {
	cfg        config.ApifyConfig
	httpClient *http.Client
}

// NewScraper builds a scraper for the configured actor.
func NewScraper(cfg config.ApifyConfig) *Scraper {
	timeout := 120 * time.Second
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}
	return &Scraper{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Scrape returns metrics for the URL. The actor path requires a token;
// without one, or when the actor call fails, the markup fallback runs.
func (s *Scraper) Scrape(ctx context.Context, postURL string) (*PostMetrics, error) {
	if s.cfg.Token != "" {
		metrics, err := s.scrapeActor(ctx, postURL)
		if err == nil {
			return metrics, nil
		}
		logging.ContentWarn("actor scrape of %s failed, trying markup fallback: %v", postURL, err)
	} else {
		logging.Content("no scraper token configured, using markup fallback for %s", postURL)
	}
	return s.scrapeMarkup(ctx, postURL)
}

// actorItem mirrors the dataset items the scraping actor emits.
type actorItem struct {
	URL            string   `json:"url"`
	OwnerUsername  string   `json:"ownerUsername"`
	Caption        string   `json:"caption"`
	LikesCount     int      `json:"likesCount"`
	CommentsCount  int      `json:"commentsCount"`
	VideoViewCount int      `json:"videoViewCount"`
	IsVideo        bool     `json:"isVideo"`
	DisplayURL     string   `json:"displayUrl"`
	Images         []string `json:"images"`
}

func (s *Scraper) scrapeActor(ctx context.Context, postURL string) (*PostMetrics, error) {
	input := map[string]interface{}{
		"directUrls":   []string{postURL},
		"resultsType":  "posts",
		"resultsLimit": 1,
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode actor input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items?token=%s",
		s.cfg.BaseURL, s.cfg.ActorID, url.QueryEscape(s.cfg.Token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create actor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("actor request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read actor response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("actor request failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	logging.ContentDebug("actor returned %d bytes for %s in %v", len(respBody), postURL, time.Since(start).Round(time.Millisecond))

	var items []actorItem
	if err := json.Unmarshal(respBody, &items); err != nil {
		return nil, fmt.Errorf("failed to parse actor response: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("actor returned no items for %s", postURL)
	}

	item := items[0]
	media := item.Images
	if len(media) == 0 && item.DisplayURL != "" {
		media = []string{item.DisplayURL}
	}
	return &PostMetrics{
		URL:       postURL,
		Username:  item.OwnerUsername,
		Caption:   item.Caption,
		Likes:     item.LikesCount,
		Comments:  item.CommentsCount,
		Views:     item.VideoViewCount,
		IsVideo:   item.IsVideo,
		MediaURLs: media,
		raw:       respBody,
	}, nil
}

// scrapeMarkup extracts what it can from the page's Open Graph and
// description metadata. Instagram embeds an engagement summary in the
// og:description tag ("1,234 likes, 56 comments - username ...").
func (s *Scraper) scrapeMarkup(ctx context.Context, postURL string) (*PostMetrics, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, postURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create page request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; switchboard/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("page fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("page fetch failed with status %d", resp.StatusCode)
	}

	meta, err := parseMetaTags(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page markup: %w", err)
	}

	metrics := &PostMetrics{URL: postURL, Degraded: true}
	if desc := meta["og:description"]; desc != "" {
		likes, comments, username := parseEngagementSummary(desc)
		metrics.Likes = likes
		metrics.Comments = comments
		metrics.Username = username
		metrics.Caption = desc
	}
	if title := meta["og:title"]; title != "" && metrics.Username == "" {
		metrics.Username = usernameFromTitle(title)
	}
	if img := meta["og:image"]; img != "" {
		metrics.MediaURLs = []string{img}
	}
	if meta["og:video"] != "" {
		metrics.IsVideo = true
	}
	return metrics, nil
}

// parseMetaTags collects property/name -> content pairs from <meta> tags.
func parseMetaTags(r io.Reader) (map[string]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	meta := make(map[string]string)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var key, content string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "property", "name":
					key = attr.Val
				case "content":
					content = attr.Val
				}
			}
			if key != "" && content != "" {
				meta[key] = content
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return meta, nil
}

// parseEngagementSummary pulls likes, comments and the username out of
// an og:description like "1,234 likes, 56 comments - someuser on ...".
func parseEngagementSummary(desc string) (likes, comments int, username string) {
	fields := strings.Fields(desc)
	for i, f := range fields {
		lower := strings.ToLower(strings.Trim(f, ",."))
		switch {
		case strings.HasPrefix(lower, "like") && i > 0:
			likes = parseCount(fields[i-1])
		case strings.HasPrefix(lower, "comment") && i > 0:
			comments = parseCount(fields[i-1])
		case f == "-" && i+1 < len(fields) && username == "":
			username = strings.Trim(fields[i+1], ",.")
		}
	}
	return likes, comments, username
}

// parseCount parses "1,234", "12.5K" or "3M" style counts.
func parseCount(s string) int {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}
	mult := 1.0
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1_000
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1_000_000
		s = s[:len(s)-1]
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%f", &v); err != nil {
		return 0
	}
	return int(v * mult)
}

// usernameFromTitle extracts the leading handle from a title like
// "someuser on Instagram: ...".
func usernameFromTitle(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], "@:")
}
