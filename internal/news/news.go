// Package news fetches recent headlines for a place from SerpAPI's Google
// News engine and filters them down to a small, fresh set.
package news

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/citybrief/citybrief/internal/httpx"
	cbotel "github.com/citybrief/citybrief/internal/otel"
)

var tracer = cbotel.Tracer("github.com/citybrief/citybrief/internal/news")

// Result-set shaping: only headlines whose date parses AND falls within
// MaxAge survive, newest first, at most MaxItems.
const (
	MaxItems = 3
	MaxAge   = 7 * 24 * time.Hour
)

// Item is one filtered headline.
type Item struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	Link        string    `json:"link"`
	Snippet     string    `json:"snippet,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Line renders the single-line form used in chat briefs.
func (i Item) Line() string {
	if i.Source == "" {
		return i.Title
	}
	return fmt.Sprintf("%s (%s)", i.Title, i.Source)
}

// Lines renders items one per line, prefixed with a dash.
func Lines(items []Item) string {
	var b strings.Builder
	for n, it := range items {
		if n > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(it.Line())
	}
	return b.String()
}

// Client fetches headlines from SerpAPI.
type Client struct {
	http    *httpx.Client
	serpURL string
	apiKey  string

	now func() time.Time // injectable for tests
}

// NewClient creates a news client. An empty apiKey makes every fetch fail
// with an explicit error rather than an upstream 401.
func NewClient(httpClient *httpx.Client, serpURL, apiKey string) *Client {
	return &Client{
		http:    httpClient,
		serpURL: serpURL,
		apiKey:  apiKey,
		now:     time.Now,
	}
}

type serpResponse struct {
	NewsResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Date    string `json:"date"`
		Snippet string `json:"snippet"`
		Source  struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"news_results"`
}

// Fetch returns up to MaxItems fresh headlines for the place. countryCode is
// an ISO country code used as the Google market hint; blank falls back to "us".
func (c *Client) Fetch(ctx context.Context, place, countryCode string) ([]Item, error) {
	ctx, span := tracer.Start(ctx, "news.fetch",
		trace.WithAttributes(
			attribute.String("place", place),
			attribute.String("country_code", countryCode),
		))
	defer span.End()

	if c.apiKey == "" {
		return nil, fmt.Errorf("news fetch for %q: SerpAPI key not configured", place)
	}

	gl := strings.ToLower(strings.TrimSpace(countryCode))
	if gl == "" {
		gl = "us"
	}

	params := url.Values{}
	params.Set("engine", "google_news")
	params.Set("q", place)
	params.Set("gl", gl)
	params.Set("hl", "en")
	params.Set("api_key", c.apiKey)

	var resp serpResponse
	if err := c.http.GetJSON(ctx, c.serpURL, params, &resp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetching news for %q: %w", place, err)
	}

	now := c.now()
	items := make([]Item, 0, len(resp.NewsResults))
	for _, r := range resp.NewsResults {
		published, ok := ParseDate(r.Date, now)
		if !ok {
			continue
		}
		if now.Sub(published) > MaxAge {
			continue
		}
		items = append(items, Item{
			Title:       r.Title,
			Source:      r.Source.Name,
			Link:        r.Link,
			Snippet:     r.Snippet,
			PublishedAt: published,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > MaxItems {
		items = items[:MaxItems]
	}

	span.SetAttributes(attribute.Int("news.item_count", len(items)))
	return items, nil
}

// absoluteLayouts are tried against the leading date portion of a headline
// timestamp, after any ", HH:MM ..." tail is cut off.
var absoluteLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
}

// ParseDate parses the free-form date strings Google News emits: absolute
// dates in a handful of layouts, or relative forms like "3 hours ago".
// The bool is false when nothing matches.
func ParseDate(raw string, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if t, ok := parseRelative(s, now); ok {
		return t, true
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
		// Retry with any trailing time-of-day cut off
		// ("08/21/2026, 10:30 AM, +0000 UTC").
		if cut := cutTimeTail(s); cut != s {
			if t, err := time.Parse(layout, cut); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// cutTimeTail removes a trailing ", HH:MM..." portion.
func cutTimeTail(s string) string {
	parts := strings.Split(s, ",")
	kept := parts[:0:0]
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if looksLikeTime(trimmed) {
			break
		}
		kept = append(kept, p)
	}
	return strings.TrimSpace(strings.Join(kept, ","))
}

func looksLikeTime(s string) bool {
	if !strings.Contains(s, ":") {
		return false
	}
	return len(s) > 0 && s[0] >= '0' && s[0] <= '9'
}

func parseRelative(s string, now time.Time) (time.Time, bool) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) != 3 || fields[2] != "ago" {
		return time.Time{}, false
	}
	var n int
	if _, err := fmt.Sscanf(fields[0], "%d", &n); err != nil || n < 0 {
		return time.Time{}, false
	}
	unit := strings.TrimSuffix(fields[1], "s")
	switch unit {
	case "minute", "min":
		return now.Add(-time.Duration(n) * time.Minute), true
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour), true
	case "day":
		return now.AddDate(0, 0, -n), true
	case "week":
		return now.AddDate(0, 0, -7*n), true
	case "month":
		return now.AddDate(0, -n, 0), true
	}
	return time.Time{}, false
}
