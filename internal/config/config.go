// Package config loads process configuration from the environment once at
// startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvMongoURI            = "MONGODB_URI"
	EnvMongoDB             = "MONGODB_DB"
	EnvAPIKey              = "WYAT_API_KEY"
	EnvOpenAISecret        = "OPENAI_API_SECRET"
	EnvGeminiModel         = "GEMINI_MODEL"
	EnvOuraToken           = "OURA_TOKEN"
	EnvOuraAPIURL          = "OURA_API_URL"
	EnvYahooAPIURL         = "YAHOO_FINANCE_API_URL"
	EnvYahooAPIKey         = "YAHOO_FINANCE_API_KEY"
	EnvYahooAPIKeyHeader   = "YAHOO_FINANCE_API_KEY_HEADER"
	EnvCoinGeckoAPIURL     = "COINGECKO_API_URL"
	EnvCoinGeckoAPIKey     = "COINGECKO_API_KEY"
	EnvCoinGeckoKeyHeader  = "COINGECKO_API_KEY_HEADER"
	EnvFeedStalenessMinute = "DATA_FEED_MAX_STALENESS_MINUTES"
	EnvFrontendOrigin      = "FRONTEND_ORIGIN"
	EnvGCSBucket           = "GCS_BUCKET"
	EnvGCPProject          = "GCP_PROJECT"
	EnvBQDataset           = "BQ_DATASET"
	EnvNotionToken         = "NOTION_TOKEN"
	EnvNotionEnvelopesDB   = "NOTION_ENVELOPES_DB"
	EnvLogLevel            = "LOG_LEVEL"
	EnvPort                = "PORT"
)

// Defaults for optional settings.
const (
	DefaultMongoDB          = "wyat"
	DefaultGeminiModel      = "gemini-2.5-flash"
	DefaultBQDataset        = "capital"
	DefaultPort             = "8080"
	DefaultStalenessMinutes = 5
)

// Feed holds the connection settings for an external data feed.
type Feed struct {
	URL       string
	APIKey    string
	KeyHeader string
}

// Config is the process configuration.
type Config struct {
	MongoURI      string
	MongoDB       string
	APIKey        string
	OpenAISecret  string
	GeminiModel   string
	OuraToken     string
	OuraAPIURL    string
	Yahoo         Feed
	CoinGecko     Feed
	FeedStaleness time.Duration

	FrontendOrigin string
	GCSBucket      string
	GCPProject     string
	BQDataset      string

	NotionToken       string
	NotionEnvelopesDB string

	LogLevel string
	Port     string

	raw map[string]string
}

// MissingConfigError reports a required variable that is not set.
type MissingConfigError struct {
	Name string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing configuration: %s is not set", e.Name)
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads the configuration through lookup.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	raw := make(map[string]string)
	get := func(name, def string) string {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return def
		}
		raw[name] = v
		return v
	}

	c := &Config{
		MongoURI:     get(EnvMongoURI, ""),
		MongoDB:      get(EnvMongoDB, DefaultMongoDB),
		APIKey:       get(EnvAPIKey, ""),
		OpenAISecret: get(EnvOpenAISecret, ""),
		GeminiModel:  get(EnvGeminiModel, DefaultGeminiModel),
		OuraToken:    get(EnvOuraToken, ""),
		OuraAPIURL:   get(EnvOuraAPIURL, ""),
		Yahoo: Feed{
			URL:       get(EnvYahooAPIURL, ""),
			APIKey:    get(EnvYahooAPIKey, ""),
			KeyHeader: get(EnvYahooAPIKeyHeader, ""),
		},
		CoinGecko: Feed{
			URL:       get(EnvCoinGeckoAPIURL, ""),
			APIKey:    get(EnvCoinGeckoAPIKey, ""),
			KeyHeader: get(EnvCoinGeckoKeyHeader, ""),
		},
		FrontendOrigin:    get(EnvFrontendOrigin, ""),
		GCSBucket:         get(EnvGCSBucket, ""),
		GCPProject:        get(EnvGCPProject, ""),
		BQDataset:         get(EnvBQDataset, DefaultBQDataset),
		NotionToken:       get(EnvNotionToken, ""),
		NotionEnvelopesDB: get(EnvNotionEnvelopesDB, ""),
		LogLevel:          get(EnvLogLevel, "info"),
		Port:              get(EnvPort, DefaultPort),
		raw:               raw,
	}

	minutes := DefaultStalenessMinutes
	if v := get(EnvFeedStalenessMinute, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("config: %s must be a non-negative integer, got %q", EnvFeedStalenessMinute, v)
		}
		minutes = n
	}
	c.FeedStaleness = time.Duration(minutes) * time.Minute

	return c, nil
}

// Require returns a MissingConfigError for the first name that was not set
// in the environment. Defaults do not count as set.
func (c *Config) Require(names ...string) error {
	for _, n := range names {
		if _, ok := c.raw[n]; !ok {
			return &MissingConfigError{Name: n}
		}
	}
	return nil
}
