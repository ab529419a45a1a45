package tools

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/citybrief/citybrief/internal/cache"
	"github.com/citybrief/citybrief/internal/news"
	"github.com/citybrief/citybrief/internal/ratelimit"
	"github.com/citybrief/citybrief/internal/weather"
)

// NewsTool returns recent local headlines for a place. The place is geocoded
// first so the news query targets the right country market; geocode failures
// degrade to the default market rather than failing the tool.
type NewsTool struct {
	newsClient    *news.Client
	weatherClient *weather.Client
	cache         *cache.ToolCache
	limiter       *ratelimit.Bucket
}

// NewNewsTool wires the news capability.
func NewNewsTool(newsClient *news.Client, weatherClient *weather.Client, toolCache *cache.ToolCache, limiter *ratelimit.Bucket) *NewsTool {
	return &NewsTool{
		newsClient:    newsClient,
		weatherClient: weatherClient,
		cache:         toolCache,
		limiter:       limiter,
	}
}

func (t *NewsTool) Name() string { return "news" }

func (t *NewsTool) Description() string {
	return "Get up to three recent local news headlines for a place."
}

func (t *NewsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"place": map[string]interface{}{
				"type":        "string",
				"description": "City or place name",
			},
		},
		"required": []string{"place"},
	}
}

func (t *NewsTool) Execute(ctx context.Context, args map[string]interface{}) string {
	place, ok := stringArg(args, "place")
	if !ok {
		return "ERROR: news tool requires a place"
	}

	key := cache.ToolKey("news_lines", place)
	if v, hit := t.cache.GetString(ctx, key); hit {
		return v
	}

	countryCode := ""
	if loc, err := t.weatherClient.Geocode(ctx, place); err == nil {
		countryCode = loc.CountryCode
	}

	t.limiter.Acquire()
	items, err := t.newsClient.Fetch(ctx, place, countryCode)
	if err != nil {
		log.Debug().Err(err).Str("place", place).Msg("news_tool_failed")
		return "ERROR: news unavailable: " + err.Error()
	}
	if len(items) == 0 {
		return "No recent local news found for " + place + "."
	}

	lines := news.Lines(items)
	t.cache.SetString(ctx, key, lines)
	return lines
}
