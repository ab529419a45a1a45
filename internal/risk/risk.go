// Package risk derives a coarse LOW/MEDIUM/HIGH assessment from a weather
// summary and filtered local headlines. Scoring is a pure function of its
// inputs: no I/O, no clock, fully deterministic.
package risk

import (
	"fmt"
	"strings"

	"github.com/citybrief/citybrief/internal/news"
	"github.com/citybrief/citybrief/internal/weather"
)

// Level is the coarse ordinal risk tier.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Assessment is the scorer's output.
type Assessment struct {
	Level    Level    `json:"level"`
	Score    int      `json:"score"`
	Reasons  []string `json:"reasons"`
	Activity string   `json:"activity,omitempty"`
}

// Message renders the assessment in the fixed chat form.
func (a Assessment) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Risk level: %s.", a.Level)
	if len(a.Reasons) > 0 {
		b.WriteString(" Key factors: ")
		b.WriteString(strings.Join(a.Reasons, "; "))
		b.WriteString(".")
	} else {
		b.WriteString(" No notable risk factors.")
	}
	if a.Activity != "" {
		fmt.Fprintf(&b, " Activity: %s.", a.Activity)
	}
	return b.String()
}

// Config holds the scoring deltas and thresholds. The numbers are tuning
// knobs, not law; deployments that need different tiers construct a Scorer
// with their own values.
type Config struct {
	CategoryPoints map[weather.Category]int

	WindSevereKmh   float64
	WindHighKmh     float64
	WindNotableKmh  float64
	WindSeverePts   int
	WindHighPts     int
	WindNotablePts  int

	PrecipHeavyMM  float64
	PrecipSomeMM   float64
	PrecipHeavyPts int
	PrecipSomePts  int

	HeatThresholdC float64
	ColdThresholdC float64
	HeatPts        int
	ColdPts        int

	SevereKeywords     []string
	DisruptionKeywords []string
	SeverePts          int
	DisruptionPts      int

	HighAt   int
	MediumAt int
}

// DefaultConfig returns the standard scoring table.
func DefaultConfig() Config {
	return Config{
		CategoryPoints: map[weather.Category]int{
			weather.CategoryThunderstorm: 3,
			weather.CategoryHeavyRain:    2,
			weather.CategoryRain:         1,
			weather.CategorySnow:         2,
			weather.CategoryFog:          1,
		},

		WindSevereKmh:  70,
		WindHighKmh:    50,
		WindNotableKmh: 30,
		WindSeverePts:  3,
		WindHighPts:    2,
		WindNotablePts: 1,

		PrecipHeavyMM:  30,
		PrecipSomeMM:   5,
		PrecipHeavyPts: 2,
		PrecipSomePts:  1,

		HeatThresholdC: 35,
		ColdThresholdC: -5,
		HeatPts:        2,
		ColdPts:        2,

		SevereKeywords:     []string{"flood", "landslide", "evacuation", "emergency"},
		DisruptionKeywords: []string{"protest", "strike", "closure", "outage", "traffic"},
		SeverePts:          3,
		DisruptionPts:      2,

		HighAt:   5,
		MediumAt: 2,
	}
}

var categoryReasons = map[weather.Category]string{
	weather.CategoryThunderstorm: "thunderstorms expected",
	weather.CategoryHeavyRain:    "heavy rain expected",
	weather.CategoryRain:         "rain expected",
	weather.CategorySnow:         "snow expected",
	weather.CategoryFog:          "fog reducing visibility",
}

// Scorer evaluates risk with a fixed configuration.
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer; a zero-value config falls back to defaults.
func NewScorer(cfg Config) *Scorer {
	if cfg.CategoryPoints == nil {
		cfg = DefaultConfig()
	}
	return &Scorer{cfg: cfg}
}

// Score evaluates risk for a place. Either input may be absent: a nil summary
// contributes nothing (news-only assessment) and an empty headline list
// contributes nothing (weather-only). The worst case is a LOW assessment
// with no reasons.
func (s *Scorer) Score(summary *weather.Summary, headlines []news.Item, place, activity string) Assessment {
	score := 0
	var reasons []string
	add := func(pts int, reason string) {
		score += pts
		reasons = append(reasons, reason)
	}

	if summary != nil {
		cat := weather.ClassifyCode(summary.Current.WeatherCode)
		if pts, ok := s.cfg.CategoryPoints[cat]; ok && pts > 0 {
			add(pts, categoryReasons[cat])
		}

		// Each of the remaining checks is a single step function: exactly
		// one tier fires per signal.
		if w := summary.Day.WindSpeedMaxKmh; w != nil {
			switch {
			case *w >= s.cfg.WindSevereKmh:
				add(s.cfg.WindSeverePts, "damaging winds")
			case *w >= s.cfg.WindHighKmh:
				add(s.cfg.WindHighPts, "strong winds")
			case *w >= s.cfg.WindNotableKmh:
				add(s.cfg.WindNotablePts, "windy conditions")
			}
		}

		if p := summary.Day.PrecipMM; p != nil {
			switch {
			case *p >= s.cfg.PrecipHeavyMM:
				add(s.cfg.PrecipHeavyPts, "heavy precipitation")
			case *p >= s.cfg.PrecipSomeMM:
				add(s.cfg.PrecipSomePts, "notable precipitation")
			}
		}

		if t := summary.Day.TmaxC; t != nil && *t >= s.cfg.HeatThresholdC {
			add(s.cfg.HeatPts, "extreme heat")
		}
		if t := summary.Day.TminC; t != nil && *t <= s.cfg.ColdThresholdC {
			add(s.cfg.ColdPts, "severe cold")
		}
	}

	relevant := relevantText(headlines, place)
	if relevant != "" {
		if containsAny(relevant, s.cfg.SevereKeywords) {
			add(s.cfg.SeverePts, "severe local incident reported")
		} else if containsAny(relevant, s.cfg.DisruptionKeywords) {
			add(s.cfg.DisruptionPts, "local disruption reported")
		}
	}

	return Assessment{
		Level:    s.level(score),
		Score:    score,
		Reasons:  dedupe(reasons),
		Activity: activity,
	}
}

func (s *Scorer) level(score int) Level {
	switch {
	case score >= s.cfg.HighAt:
		return LevelHigh
	case score >= s.cfg.MediumAt:
		return LevelMedium
	default:
		return LevelLow
	}
}

// relevantText concatenates title+snippet of every headline that mentions
// the place, case-folded.
func relevantText(headlines []news.Item, place string) string {
	needle := strings.ToLower(strings.TrimSpace(place))
	if needle == "" {
		return ""
	}
	var b strings.Builder
	for _, h := range headlines {
		text := strings.ToLower(h.Title + " " + h.Snippet)
		if strings.Contains(text, needle) {
			b.WriteString(text)
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// dedupe removes repeats while preserving first-occurrence order.
func dedupe(reasons []string) []string {
	seen := make(map[string]struct{}, len(reasons))
	out := reasons[:0]
	for _, r := range reasons {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
