package tools

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/citybrief/citybrief/internal/cache"
	"github.com/citybrief/citybrief/internal/ratelimit"
	"github.com/citybrief/citybrief/internal/weather"
)

// WeatherTool returns a one-line current-conditions summary for a place.
type WeatherTool struct {
	client  *weather.Client
	cache   *cache.ToolCache
	limiter *ratelimit.Bucket
}

// NewWeatherTool wires the weather capability. The limiter is shared with
// every other consumer of the weather upstream so the class throttles as one.
func NewWeatherTool(client *weather.Client, toolCache *cache.ToolCache, limiter *ratelimit.Bucket) *WeatherTool {
	return &WeatherTool{client: client, cache: toolCache, limiter: limiter}
}

func (t *WeatherTool) Name() string { return "weather" }

func (t *WeatherTool) Description() string {
	return "Get the current weather and forecast summary for a place. Use horizon \"tomorrow\" for tomorrow's outlook."
}

func (t *WeatherTool) InputSchema() map[string]interface{} {
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
				"description": "Which day to summarize (default today)",
			},
		},
		"required": []string{"place"},
	}
}

func (t *WeatherTool) Execute(ctx context.Context, args map[string]interface{}) string {
	place, ok := stringArg(args, "place")
	if !ok {
		return "ERROR: weather tool requires a place"
	}
	horizonArg, _ := stringArg(args, "horizon")
	horizon := weather.ParseHorizon(horizonArg)

	key := cache.ToolKey("weather_line", place, string(horizon))
	line, err := t.cache.GetOrCompute(ctx, key, t.cache.TTL(), func() (string, error) {
		t.limiter.Acquire()
		summary, err := t.client.Summary(ctx, place, horizon)
		if err != nil {
			return "", err
		}
		return summary.Line(), nil
	})
	if err != nil {
		log.Debug().Err(err).Str("place", place).Msg("weather_tool_failed")
		return "ERROR: weather unavailable: " + err.Error()
	}
	return line
}
