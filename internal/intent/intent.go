// Package intent detects which signal classes a user question asks for.
//
// Detection is keyword-substring matching, which is inherently heuristic, so
// the Classifier interface keeps the gating state machine decoupled from the
// detection strategy: a smarter classifier can be swapped in without touching
// the orchestrator.
package intent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Result is the per-turn intent signal. Force flags record the literal words
// "weather"/"news" appearing in the question; they override session
// suppression downstream.
type Result struct {
	WantsWeather bool
	WantsNews    bool
	ForceWeather bool
	ForceNews    bool
}

// Classifier maps free text to an intent result.
type Classifier interface {
	Classify(question string) Result
}

// Default keyword sets. Membership is case-folded substring matching.
var (
	defaultWeatherKeywords = []string{
		"weather", "rain", "snow", "wind", "temperature", "forecast",
		"sunny", "cloudy", "storm", "umbrella", "hot", "cold", "humid",
	}
	defaultNewsKeywords = []string{
		"news", "headline", "happening", "event", "protest", "strike",
		"traffic", "closure", "disruption", "incident", "local", "city",
	}
)

// KeywordClassifier detects intent by scanning for keyword substrings.
type KeywordClassifier struct {
	weatherKeywords []string
	newsKeywords    []string
}

// NewKeywordClassifier builds a classifier with the default keyword sets.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		weatherKeywords: defaultWeatherKeywords,
		newsKeywords:    defaultNewsKeywords,
	}
}

// Classify scans the question. When neither set matches, both wants default
// to true: ambiguous or general requests get full capability.
func (c *KeywordClassifier) Classify(question string) Result {
	q := strings.ToLower(question)

	res := Result{
		WantsWeather: containsAny(q, c.weatherKeywords),
		WantsNews:    containsAny(q, c.newsKeywords),
		ForceWeather: strings.Contains(q, "weather"),
		ForceNews:    strings.Contains(q, "news"),
	}
	if !res.WantsWeather && !res.WantsNews {
		res.WantsWeather = true
		res.WantsNews = true
	}
	return res
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// keywordFile is the YAML override schema. Either list, when present and
// non-empty, replaces the corresponding default set wholesale.
type keywordFile struct {
	WeatherKeywords []string `yaml:"weather_keywords"`
	NewsKeywords    []string `yaml:"news_keywords"`
}

// LoadKeywordOverrides reads a YAML keyword-override file and returns a
// classifier using it. A missing file is not an error: the defaults apply.
func LoadKeywordOverrides(path string) (*KeywordClassifier, error) {
	c := NewKeywordClassifier()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading keyword file %s: %w", path, err)
	}

	var kf keywordFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parsing keyword file %s: %w", path, err)
	}

	if len(kf.WeatherKeywords) > 0 {
		c.weatherKeywords = lowerAll(kf.WeatherKeywords)
	}
	if len(kf.NewsKeywords) > 0 {
		c.newsKeywords = lowerAll(kf.NewsKeywords)
	}
	return c, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
