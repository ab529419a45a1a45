package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citybrief/citybrief/internal/config"
	"github.com/citybrief/citybrief/internal/intent"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:        t.TempDir(),
		SessionSecret:  "0123456789abcdef0123456789abcdef",
		Model:          "llama3",
		OllamaBaseURL:  "http://localhost:11434",
		GeocodeURL:     config.DefaultGeocodeURL,
		ForecastURL:    config.DefaultForecastURL,
		SerpURL:        config.DefaultSerpURL,
		SuppressWindow: time.Hour,
		SessionTTL:     24 * time.Hour,
		ToolCacheTTL:   time.Hour,
		ViewCacheTTL:   3 * time.Minute,
	}
}

func TestResolvedVersion(t *testing.T) {
	assert.NotEmpty(t, resolvedVersion())
}

func TestBuildDeps(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.EnsureDataDir())

	d, err := buildDeps(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.store.Close() })

	assert.NotNil(t, d.weatherClient)
	assert.NotNil(t, d.newsClient)
	assert.NotNil(t, d.scorer)
}

func TestBuildOrchestrator(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.EnsureDataDir())

	d, err := buildDeps(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.store.Close() })

	orch, err := buildOrchestrator(cfg, d, intent.NewKeywordClassifier())
	require.NoError(t, err)
	assert.NotNil(t, orch)
}

func TestBuildOrchestrator_OpenAIModelNeedsKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model = "gpt-4o-mini"
	require.NoError(t, cfg.EnsureDataDir())

	d, err := buildDeps(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.store.Close() })

	_, err = buildOrchestrator(cfg, d, intent.NewKeywordClassifier())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}
