// Package config holds OPERATOR-LEVEL configuration for a CityBrief process.
//
// This is infrastructure config set by whoever deploys the service: data
// directory, upstream API endpoints and keys, LLM model selection, session
// signing secret, and the tuning knobs for suppression windows and cache TTLs.
// Set via env vars (CITYBRIEF_*) or a config file (citybrief.config.yaml).
//
// Scoring thresholds deliberately live in internal/risk defaults, not here;
// deployments that need different risk tiers override them in code when
// constructing the scorer.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the CITYBRIEF_ prefix
// (e.g. "session_secret" → CITYBRIEF_SESSION_SECRET) and to a YAML field
// in citybrief.config.yaml.
const (
	KeyDataDir       = "data_dir"
	KeySessionSecret = "session_secret"
	KeySerpAPIKey    = "serp_api_key"
	KeyOpenAIAPIKey  = "openai_api_key"
	KeyModel         = "model"
	KeyLLMBaseURL    = "llm_base_url"
	KeyOllamaBaseURL = "ollama_base_url"
	KeyGeocodeURL    = "geocode_url"
	KeyForecastURL   = "forecast_url"
	KeySerpURL       = "serp_url"

	KeySuppressWindowSec = "suppress_window_sec"
	KeySessionTTLSec     = "session_ttl_sec"
	KeyToolCacheTTLSec   = "tool_cache_ttl_sec"
	KeyViewCacheTTLSec   = "view_cache_ttl_sec"
)

// Defaults that do NOT involve crypto material. The session secret
// intentionally has no baked-in default — when unset we generate a
// deterministic per-machine fallback and warn loudly.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	DefaultSerpURL     = "https://serpapi.com/search.json"

	DefaultSuppressWindowSec = 3600
	DefaultSessionTTLSec     = 86400
	DefaultToolCacheTTLSec   = 3600
	DefaultViewCacheTTLSec   = 180
)

// Config holds resolved operator-level configuration for a CityBrief process.
type Config struct {
	DataDir       string // base directory for all state (~/.citybrief)
	SessionSecret string // HMAC key for session tokens (≥32 bytes)
	SerpAPIKey    string // SerpAPI key for the news fetcher
	OpenAIAPIKey  string // OpenAI-compatible API key for the agent executor
	Model         string // LLM model identifier
	LLMBaseURL    string // optional OpenAI-compatible base URL override
	OllamaBaseURL string // Ollama endpoint when routing bare-name models
	GeocodeURL    string // Open-Meteo geocoding endpoint
	ForecastURL   string // Open-Meteo forecast endpoint
	SerpURL       string // SerpAPI search endpoint

	SuppressWindow time.Duration // minimum gap before a signal repeats in a session
	SessionTTL     time.Duration // session record lifetime, reset on every write
	ToolCacheTTL   time.Duration // fetcher-level memo TTL
	ViewCacheTTL   time.Duration // lightweight endpoint view-cache TTL

	usingDefaultSessionSecret bool
}

// UsingDefaultSessionSecret returns true if the session signing secret was
// derived (not set explicitly). Commands should warn when this is the case.
func (c *Config) UsingDefaultSessionSecret() bool {
	return c.usingDefaultSessionSecret
}

// StoreDBPath returns the full path to the session/cache SQLite database.
func (c *Config) StoreDBPath() string {
	return filepath.Join(c.DataDir, "citybrief.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// WarnIfDefaultSecret logs a warning when the session secret is not explicitly set.
func (c *Config) WarnIfDefaultSecret() {
	if c.usingDefaultSessionSecret {
		log.Warn().Msg("Using generated default CITYBRIEF_SESSION_SECRET — set via env var or config file for production")
	}
}

func init() {
	viper.SetEnvPrefix("CITYBRIEF")
	viper.AutomaticEnv()
	viper.SetDefault(KeyModel, DefaultModel)
	viper.SetDefault(KeyOllamaBaseURL, DefaultOllamaURL)
	viper.SetDefault(KeyGeocodeURL, DefaultGeocodeURL)
	viper.SetDefault(KeyForecastURL, DefaultForecastURL)
	viper.SetDefault(KeySerpURL, DefaultSerpURL)
	viper.SetDefault(KeySuppressWindowSec, DefaultSuppressWindowSec)
	viper.SetDefault(KeySessionTTLSec, DefaultSessionTTLSec)
	viper.SetDefault(KeyToolCacheTTLSec, DefaultToolCacheTTLSec)
	viper.SetDefault(KeyViewCacheTTLSec, DefaultViewCacheTTLSec)
}

// Load reads configuration from Viper (which merges env vars, config file,
// and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:       resolveDataDir(),
		SessionSecret: viper.GetString(KeySessionSecret),
		SerpAPIKey:    viper.GetString(KeySerpAPIKey),
		OpenAIAPIKey:  viper.GetString(KeyOpenAIAPIKey),
		Model:         viper.GetString(KeyModel),
		LLMBaseURL:    viper.GetString(KeyLLMBaseURL),
		OllamaBaseURL: viper.GetString(KeyOllamaBaseURL),
		GeocodeURL:    viper.GetString(KeyGeocodeURL),
		ForecastURL:   viper.GetString(KeyForecastURL),
		SerpURL:       viper.GetString(KeySerpURL),

		SuppressWindow: time.Duration(viper.GetInt(KeySuppressWindowSec)) * time.Second,
		SessionTTL:     time.Duration(viper.GetInt(KeySessionTTLSec)) * time.Second,
		ToolCacheTTL:   time.Duration(viper.GetInt(KeyToolCacheTTLSec)) * time.Second,
		ViewCacheTTL:   time.Duration(viper.GetInt(KeyViewCacheTTLSec)) * time.Second,
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = deriveDefaultSecret(cfg.DataDir)
		cfg.usingDefaultSessionSecret = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".citybrief"
	}
	return filepath.Join(home, ".citybrief")
}

// deriveDefaultSecret produces a deterministic 32-byte fallback key from the
// data directory path. This is NOT cryptographically strong — it exists so
// `citybrief serve` works out of the box while still signing session tokens
// with a per-machine-unique key.
func deriveDefaultSecret(dataDir string) string {
	h := sha256.Sum256([]byte("citybrief:" + dataDir + ":session-signing"))
	return hex.EncodeToString(h[:])
}

func (c *Config) validate() error {
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("session_secret must be at least 32 bytes (got %d); set CITYBRIEF_SESSION_SECRET", len(c.SessionSecret))
	}
	if c.SuppressWindow <= 0 {
		return fmt.Errorf("suppress_window_sec must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl_sec must be positive")
	}
	if c.ToolCacheTTL <= 0 || c.ViewCacheTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	return nil
}
