package config

import (
	"errors"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	c, err := LoadFrom(lookupFrom(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if c.MongoDB != DefaultMongoDB {
		t.Errorf("MongoDB = %q, want %q", c.MongoDB, DefaultMongoDB)
	}
	if c.BQDataset != DefaultBQDataset {
		t.Errorf("BQDataset = %q, want %q", c.BQDataset, DefaultBQDataset)
	}
	if c.FeedStaleness != 5*time.Minute {
		t.Errorf("FeedStaleness = %s, want 5m", c.FeedStaleness)
	}
	if c.Port != DefaultPort {
		t.Errorf("Port = %q, want %q", c.Port, DefaultPort)
	}
}

func TestLoadFrom_Values(t *testing.T) {
	c, err := LoadFrom(lookupFrom(map[string]string{
		EnvMongoURI:            "mongodb://localhost:27017",
		EnvMongoDB:             " wyat_test ",
		EnvFeedStalenessMinute: "12",
		EnvCoinGeckoAPIKey:     "cg-key",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if c.MongoDB != "wyat_test" {
		t.Errorf("MongoDB = %q, want trimmed value", c.MongoDB)
	}
	if c.FeedStaleness != 12*time.Minute {
		t.Errorf("FeedStaleness = %s, want 12m", c.FeedStaleness)
	}
	if c.CoinGecko.APIKey != "cg-key" {
		t.Errorf("CoinGecko.APIKey = %q", c.CoinGecko.APIKey)
	}
}

func TestLoadFrom_InvalidStaleness(t *testing.T) {
	_, err := LoadFrom(lookupFrom(map[string]string{EnvFeedStalenessMinute: "soon"}))
	if err == nil {
		t.Fatal("expected error for non-numeric staleness")
	}
}

func TestRequire(t *testing.T) {
	c, err := LoadFrom(lookupFrom(map[string]string{EnvMongoURI: "mongodb://x"}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if err := c.Require(EnvMongoURI); err != nil {
		t.Errorf("Require(MONGODB_URI) error = %v", err)
	}

	err = c.Require(EnvMongoURI, EnvMongoDB, EnvAPIKey)
	var missing *MissingConfigError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingConfigError, got %v", err)
	}
	if missing.Name != EnvMongoDB {
		t.Errorf("missing.Name = %q, want %q (defaults do not satisfy Require)", missing.Name, EnvMongoDB)
	}
}
