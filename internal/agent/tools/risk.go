package tools

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/citybrief/citybrief/internal/cache"
	"github.com/citybrief/citybrief/internal/news"
	"github.com/citybrief/citybrief/internal/ratelimit"
	"github.com/citybrief/citybrief/internal/risk"
	"github.com/citybrief/citybrief/internal/weather"
)

// CityRiskTool combines the weather and news signals into a LOW/MEDIUM/HIGH
// assessment. Either signal may be missing: a failed fetch contributes
// nothing instead of failing the assessment.
type CityRiskTool struct {
	weatherClient  *weather.Client
	newsClient     *news.Client
	scorer         *risk.Scorer
	cache          *cache.ToolCache
	weatherLimiter *ratelimit.Bucket
	newsLimiter    *ratelimit.Bucket
}

// NewCityRiskTool wires the risk capability. The limiters are the same
// instances the weather/news tools use, so all upstream traffic shares one
// budget per signal class.
func NewCityRiskTool(
	weatherClient *weather.Client,
	newsClient *news.Client,
	scorer *risk.Scorer,
	toolCache *cache.ToolCache,
	weatherLimiter, newsLimiter *ratelimit.Bucket,
) *CityRiskTool {
	return &CityRiskTool{
		weatherClient:  weatherClient,
		newsClient:     newsClient,
		scorer:         scorer,
		cache:          toolCache,
		weatherLimiter: weatherLimiter,
		newsLimiter:    newsLimiter,
	}
}

func (t *CityRiskTool) Name() string { return "city_risk" }

func (t *CityRiskTool) Description() string {
	return "Assess the overall risk (LOW/MEDIUM/HIGH) of being in a place, combining weather and local news. Optionally consider a planned activity."
}

func (t *CityRiskTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"place": map[string]interface{}{
				"type":        "string",
				"description": "City or place name",
			},
			"horizon": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"today", "tomorrow"},
				"description": "Which day to assess (default today)",
			},
			"activity": map[string]interface{}{
				"type":        "string",
				"description": "Planned activity to mention in the assessment",
			},
		},
		"required": []string{"place"},
	}
}

func (t *CityRiskTool) Execute(ctx context.Context, args map[string]interface{}) string {
	place, ok := stringArg(args, "place")
	if !ok {
		return "ERROR: city_risk tool requires a place"
	}
	horizonArg, _ := stringArg(args, "horizon")
	horizon := weather.ParseHorizon(horizonArg)
	activity, _ := stringArg(args, "activity")

	// Activity-specific assessments bypass the message memo (the suffix
	// varies), but the per-signal fetch memos below still apply.
	key := ""
	if activity == "" {
		key = cache.ToolKey("city_risk", place, string(horizon))
		if v, hit := t.cache.GetString(ctx, key); hit {
			return v
		}
	}

	summary, countryCode := t.fetchSummary(ctx, place, horizon)
	headlines := t.fetchHeadlines(ctx, place, countryCode)

	msg := t.scorer.Score(summary, headlines, place, activity).Message()
	if key != "" {
		t.cache.SetString(ctx, key, msg)
	}
	return msg
}

// riskWeatherMemo is the cached weather signal. The country code rides along
// because the news fetch needs it for market localization.
type riskWeatherMemo struct {
	Summary     *weather.Summary `json:"summary"`
	CountryCode string           `json:"country_code"`
}

// fetchSummary returns the memoized weather signal for a place/horizon,
// fetching on miss. Failures return nil and are never cached.
func (t *CityRiskTool) fetchSummary(ctx context.Context, place string, horizon weather.Horizon) (*weather.Summary, string) {
	key := cache.ToolKey("risk_weather", place, string(horizon))
	var memo riskWeatherMemo
	if t.cache.GetJSON(ctx, key, &memo) && memo.Summary != nil {
		return memo.Summary, memo.CountryCode
	}

	t.weatherLimiter.Acquire()
	loc, err := t.weatherClient.Geocode(ctx, place)
	if err != nil {
		log.Debug().Err(err).Str("place", place).Msg("risk_geocode_failed")
		return nil, ""
	}
	summary, err := t.weatherClient.SummaryAt(ctx, loc, horizon)
	if err != nil {
		log.Debug().Err(err).Str("place", place).Msg("risk_weather_fetch_failed")
		return nil, loc.CountryCode
	}

	t.cache.SetJSON(ctx, key, riskWeatherMemo{Summary: summary, CountryCode: loc.CountryCode})
	return summary, loc.CountryCode
}

// fetchHeadlines returns the memoized news signal for a place, fetching on
// miss. Failures return nil and are never cached.
func (t *CityRiskTool) fetchHeadlines(ctx context.Context, place, countryCode string) []news.Item {
	key := cache.ToolKey("risk_news", place)
	var cached []news.Item
	if t.cache.GetJSON(ctx, key, &cached) {
		return cached
	}

	t.newsLimiter.Acquire()
	items, err := t.newsClient.Fetch(ctx, place, countryCode)
	if err != nil {
		log.Debug().Err(err).Str("place", place).Msg("risk_news_fetch_failed")
		return nil
	}
	if items == nil {
		items = []news.Item{}
	}

	t.cache.SetJSON(ctx, key, items)
	return items
}
