// Package weather fetches geocoding and forecast data from Open-Meteo and
// condenses it into the summary shape the risk scorer and agent tools consume.
package weather

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/citybrief/citybrief/internal/httpx"
	cbotel "github.com/citybrief/citybrief/internal/otel"
)

var tracer = cbotel.Tracer("github.com/citybrief/citybrief/internal/weather")

// Horizon selects which forecast day a summary describes.
type Horizon string

const (
	HorizonToday    Horizon = "today"
	HorizonTomorrow Horizon = "tomorrow"
)

// dayIndex maps a horizon onto the Open-Meteo daily arrays.
func (h Horizon) dayIndex() int {
	if h == HorizonTomorrow {
		return 1
	}
	return 0
}

// ParseHorizon normalizes a user-supplied horizon, defaulting to today.
func ParseHorizon(s string) Horizon {
	if strings.EqualFold(strings.TrimSpace(s), string(HorizonTomorrow)) {
		return HorizonTomorrow
	}
	return HorizonToday
}

// Location is a geocoded place.
type Location struct {
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
}

// Label returns "Name, Country" or just the name when the country is unknown.
func (l Location) Label() string {
	if l.Country == "" {
		return l.Name
	}
	return l.Name + ", " + l.Country
}

// Current holds present-moment conditions.
type Current struct {
	TempC        float64 `json:"temp_c"`
	FeelsLikeC   float64 `json:"feels_like_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	PrecipMM     float64 `json:"precip_mm"`
	WindSpeedKmh float64 `json:"wind_speed_kmh"`
	WeatherCode  *int    `json:"weather_code"`
	WeatherText  string  `json:"weather_text"`
}

// Day holds the daily aggregates for the requested horizon. Pointer fields
// are nil when the upstream omits the value; the scorer skips nil signals.
type Day struct {
	Label           string   `json:"label"`
	TminC           *float64 `json:"tmin_c"`
	TmaxC           *float64 `json:"tmax_c"`
	PrecipMM        *float64 `json:"precip_mm"`
	UVIndexMax      *float64 `json:"uv_index_max"`
	WindSpeedMaxKmh *float64 `json:"wind_speed_max_kmh"`
}

// Summary is the condensed forecast for one place and horizon.
type Summary struct {
	PlaceLabel string  `json:"place_label"`
	Horizon    Horizon `json:"horizon"`
	Current    Current `json:"current"`
	Day        Day     `json:"day"`
}

// Line renders the one-line form used in chat briefs.
func (s *Summary) Line() string {
	return fmt.Sprintf("%s: %s, %s°C", s.PlaceLabel, s.Current.WeatherText, formatTemp(s.Current.TempC))
}

func formatTemp(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

// Client fetches geocoding and forecast data.
type Client struct {
	http        *httpx.Client
	geocodeURL  string
	forecastURL string
}

// NewClient creates a weather client against the given Open-Meteo endpoints.
func NewClient(httpClient *httpx.Client, geocodeURL, forecastURL string) *Client {
	return &Client{
		http:        httpClient,
		geocodeURL:  geocodeURL,
		forecastURL: forecastURL,
	}
}

type geocodeResponse struct {
	Results []Location `json:"results"`
}

// Geocode resolves a place name to its best-match location.
func (c *Client) Geocode(ctx context.Context, place string) (*Location, error) {
	ctx, span := tracer.Start(ctx, "weather.geocode",
		trace.WithAttributes(attribute.String("place", place)))
	defer span.End()

	params := url.Values{}
	params.Set("name", place)
	params.Set("count", "1")
	params.Set("language", "en")
	params.Set("format", "json")

	var resp geocodeResponse
	if err := c.http.GetJSON(ctx, c.geocodeURL, params, &resp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("geocoding %q: %w", place, err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("no location found for %q", place)
	}
	loc := resp.Results[0]
	span.SetAttributes(
		attribute.String("location.name", loc.Name),
		attribute.String("location.country_code", loc.CountryCode),
	)
	return &loc, nil
}

type forecastResponse struct {
	Current struct {
		Temperature2m       float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		RelativeHumidity2m  float64 `json:"relative_humidity_2m"`
		Precipitation       float64 `json:"precipitation"`
		WeatherCode         *int    `json:"weather_code"`
		WindSpeed10m        float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		Time             []string   `json:"time"`
		Temperature2mMax []*float64 `json:"temperature_2m_max"`
		Temperature2mMin []*float64 `json:"temperature_2m_min"`
		PrecipitationSum []*float64 `json:"precipitation_sum"`
		UVIndexMax       []*float64 `json:"uv_index_max"`
		WindSpeed10mMax  []*float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// Summary geocodes the place and fetches its forecast, condensed down to the
// requested horizon.
func (c *Client) Summary(ctx context.Context, place string, horizon Horizon) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "weather.summary",
		trace.WithAttributes(
			attribute.String("place", place),
			attribute.String("horizon", string(horizon)),
		))
	defer span.End()

	loc, err := c.Geocode(ctx, place)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return c.SummaryAt(ctx, loc, horizon)
}

// SummaryAt fetches the forecast for an already-geocoded location.
func (c *Client) SummaryAt(ctx context.Context, loc *Location, horizon Horizon) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "weather.forecast",
		trace.WithAttributes(attribute.String("place", loc.Name)))
	defer span.End()

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	params.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,precipitation,weather_code,wind_speed_10m")
	params.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,uv_index_max,wind_speed_10m_max")
	params.Set("timezone", "auto")
	params.Set("forecast_days", "2")

	var resp forecastResponse
	if err := c.http.GetJSON(ctx, c.forecastURL, params, &resp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetching forecast for %q: %w", loc.Name, err)
	}

	idx := horizon.dayIndex()
	day := Day{Label: string(horizon)}
	if idx < len(resp.Daily.Time) {
		day.Label = resp.Daily.Time[idx]
	}
	day.TmaxC = dailyAt(resp.Daily.Temperature2mMax, idx)
	day.TminC = dailyAt(resp.Daily.Temperature2mMin, idx)
	day.PrecipMM = dailyAt(resp.Daily.PrecipitationSum, idx)
	day.UVIndexMax = dailyAt(resp.Daily.UVIndexMax, idx)
	day.WindSpeedMaxKmh = dailyAt(resp.Daily.WindSpeed10mMax, idx)

	return &Summary{
		PlaceLabel: loc.Label(),
		Horizon:    horizon,
		Current: Current{
			TempC:        resp.Current.Temperature2m,
			FeelsLikeC:   resp.Current.ApparentTemperature,
			HumidityPct:  resp.Current.RelativeHumidity2m,
			PrecipMM:     resp.Current.Precipitation,
			WindSpeedKmh: resp.Current.WindSpeed10m,
			WeatherCode:  resp.Current.WeatherCode,
			WeatherText:  CodeText(resp.Current.WeatherCode),
		},
		Day: day,
	}, nil
}

func dailyAt(vals []*float64, idx int) *float64 {
	if idx < len(vals) {
		return vals[idx]
	}
	return nil
}
