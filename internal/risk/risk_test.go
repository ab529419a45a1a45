package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/citybrief/citybrief/internal/news"
	"github.com/citybrief/citybrief/internal/weather"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func summaryWith(code int, windMax, precip, tmax, tmin float64) *weather.Summary {
	return &weather.Summary{
		PlaceLabel: "Berlin, Germany",
		Current:    weather.Current{WeatherCode: intp(code), WeatherText: weather.CodeText(intp(code))},
		Day: weather.Day{
			WindSpeedMaxKmh: floatp(windMax),
			PrecipMM:        floatp(precip),
			TmaxC:           floatp(tmax),
			TminC:           floatp(tmin),
		},
	}
}

func TestScore_SevereWeatherNoNews(t *testing.T) {
	s := NewScorer(DefaultConfig())

	// Thunderstorm +3, wind 75 +3, precip 40 +2, tmax 36 +2.
	a := s.Score(summaryWith(95, 75, 40, 36, 2), nil, "Berlin", "")

	assert.Equal(t, 10, a.Score)
	assert.Equal(t, LevelHigh, a.Level)
	assert.Equal(t, []string{
		"thunderstorms expected",
		"damaging winds",
		"heavy precipitation",
		"extreme heat",
	}, a.Reasons)
}

func TestScore_NewsOnlyDisruption(t *testing.T) {
	s := NewScorer(DefaultConfig())

	headlines := []news.Item{
		{Title: "Berlin transit strike enters second day", Source: "Herald"},
	}
	a := s.Score(nil, headlines, "Berlin", "")

	assert.Equal(t, 2, a.Score)
	assert.Equal(t, LevelMedium, a.Level)
	assert.Equal(t, []string{"local disruption reported"}, a.Reasons)
}

func TestScore_ClearWeatherNoMatches(t *testing.T) {
	s := NewScorer(DefaultConfig())

	headlines := []news.Item{
		{Title: "Hamburg flood warning", Source: "Gazette"}, // other place
	}
	a := s.Score(summaryWith(0, 10, 0, 22, 12), headlines, "Berlin", "")

	assert.Equal(t, 0, a.Score)
	assert.Equal(t, LevelLow, a.Level)
	assert.Empty(t, a.Reasons)
}

func TestScore_WindTiersAreExclusive(t *testing.T) {
	s := NewScorer(DefaultConfig())

	cases := []struct {
		wind float64
		want int
	}{
		{75, 3},
		{70, 3},
		{55, 2},
		{50, 2},
		{35, 1},
		{30, 1},
		{29, 0},
	}
	for _, tc := range cases {
		a := s.Score(summaryWith(0, tc.wind, 0, 20, 10), nil, "Berlin", "")
		assert.Equal(t, tc.want, a.Score, "wind=%v", tc.wind)
	}
}

func TestScore_PrecipTiersAreExclusive(t *testing.T) {
	s := NewScorer(DefaultConfig())

	assert.Equal(t, 2, s.Score(summaryWith(0, 0, 30, 20, 10), nil, "x", "").Score)
	assert.Equal(t, 1, s.Score(summaryWith(0, 0, 5, 20, 10), nil, "x", "").Score)
	assert.Equal(t, 0, s.Score(summaryWith(0, 0, 4.9, 20, 10), nil, "x", "").Score)
}

func TestScore_HeatAndColdAreIndependent(t *testing.T) {
	s := NewScorer(DefaultConfig())

	// Both thresholds firing in one evaluation (desert swing): +2 +2.
	a := s.Score(summaryWith(0, 0, 0, 36, -6), nil, "x", "")
	assert.Equal(t, 4, a.Score)
	assert.Equal(t, []string{"extreme heat", "severe cold"}, a.Reasons)
}

func TestScore_SevereBeatsDisruption(t *testing.T) {
	s := NewScorer(DefaultConfig())

	headlines := []news.Item{
		{Title: "Oslo flood and transit strike chaos"},
	}
	a := s.Score(nil, headlines, "Oslo", "")

	assert.Equal(t, 3, a.Score, "severe keyword wins; bonuses never stack")
	assert.Equal(t, []string{"severe local incident reported"}, a.Reasons)
}

func TestScore_IrrelevantHeadlinesContributeNothing(t *testing.T) {
	s := NewScorer(DefaultConfig())

	headlines := []news.Item{
		{Title: "Flood emergency declared"}, // no place mention
		{Title: "Evacuation ordered in the region"},
	}
	a := s.Score(nil, headlines, "Berlin", "")
	assert.Equal(t, 0, a.Score)
}

func TestScore_SnippetCountsForRelevance(t *testing.T) {
	s := NewScorer(DefaultConfig())

	headlines := []news.Item{
		{Title: "Major road closure", Snippet: "Traffic rerouted across central Berlin"},
	}
	a := s.Score(nil, headlines, "berlin", "")
	assert.Equal(t, 2, a.Score)
}

func TestScore_NilEverythingIsLow(t *testing.T) {
	s := NewScorer(DefaultConfig())

	a := s.Score(nil, nil, "Berlin", "")
	assert.Equal(t, 0, a.Score)
	assert.Equal(t, LevelLow, a.Level)
	assert.Empty(t, a.Reasons)
}

func TestScore_MissingDayValuesSkipped(t *testing.T) {
	s := NewScorer(DefaultConfig())

	sum := &weather.Summary{
		Current: weather.Current{WeatherCode: intp(61)},
	}
	a := s.Score(sum, nil, "Berlin", "")
	assert.Equal(t, 1, a.Score, "only the code category can fire without daily data")
}

func TestMessage(t *testing.T) {
	a := Assessment{
		Level:   LevelHigh,
		Score:   10,
		Reasons: []string{"thunderstorms expected", "damaging winds"},
	}
	assert.Equal(t, "Risk level: HIGH. Key factors: thunderstorms expected; damaging winds.", a.Message())

	a.Activity = "cycling"
	assert.Equal(t, "Risk level: HIGH. Key factors: thunderstorms expected; damaging winds. Activity: cycling.", a.Message())

	low := Assessment{Level: LevelLow}
	assert.Equal(t, "Risk level: LOW. No notable risk factors.", low.Message())
}

func TestZeroConfigFallsBackToDefaults(t *testing.T) {
	s := NewScorer(Config{})
	a := s.Score(summaryWith(95, 0, 0, 20, 10), nil, "x", "")
	assert.Equal(t, 3, a.Score)
}
