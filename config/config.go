package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TomlServer holds HTTP server settings
type TomlServer struct {
	Port            int    `toml:"port"`
	AllowOrigins    string `toml:"allow_origins"`
	DefaultPageSize int    `toml:"default_page_size"`
	MaxPageSize     int    `toml:"max_page_size"`
}

// TomlRanking holds the feed scoring parameters
type TomlRanking struct {
	// CandidateWindow bounds how many recent posts are pulled from the
	// store before ranking.
	CandidateWindow int `toml:"candidate_window"`

	// TrendingHours bounds the engagement window for the explore feed's
	// trending subset.
	TrendingHours int `toml:"trending_hours"`

	// TrendingWindow bounds how many trending posts are blended into
	// the explore candidate set.
	TrendingWindow int `toml:"trending_window"`

	RecencyHalfLifeHours float64 `toml:"recency_half_life_hours"`
	AffinityBoost        float64 `toml:"affinity_boost"`
	EngagementWeight     float64 `toml:"engagement_weight"`
	EngagementCap        int64   `toml:"engagement_cap"`

	// Epsilon is the score distance under which two posts are treated
	// as tied and ordered by (created_at desc, id asc) instead.
	Epsilon float64 `toml:"epsilon"`
}

// TomlSeen holds the seen-item ledger policy
type TomlSeen struct {
	// WindowHours is how long a seen mark suppresses an item.
	WindowHours int `toml:"window_hours"`

	// Policy is "exclude" or "demote". Exclude drops recently seen
	// items from the page, demote multiplies their score by
	// DemoteFactor so they resurface lower instead of vanishing.
	Policy       string  `toml:"policy"`
	DemoteFactor float64 `toml:"demote_factor"`

	// RetentionDays bounds ledger growth; the tidy sweep deletes older
	// records.
	RetentionDays        int `toml:"retention_days"`
	WriteTimeoutMillis   int `toml:"write_timeout_ms"`
	SweepIntervalMinutes int `toml:"sweep_interval_minutes"`
}

// TomlRateLimit holds the fixed-window budget for the feed endpoints
type TomlRateLimit struct {
	Requests      int `toml:"requests"`
	WindowSeconds int `toml:"window_seconds"`
}

// Config represents the top-level configuration
type Config struct {
	Server    TomlServer    `toml:"server"`
	Ranking   TomlRanking   `toml:"ranking"`
	Seen      TomlSeen      `toml:"seen"`
	RateLimit TomlRateLimit `toml:"rate_limit"`
}

const (
	SeenPolicyExclude = "exclude"
	SeenPolicyDemote  = "demote"
)

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Server: TomlServer{
			Port:            3000,
			AllowOrigins:    "*",
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Ranking: TomlRanking{
			CandidateWindow:      200,
			TrendingHours:        48,
			TrendingWindow:       50,
			RecencyHalfLifeHours: 24,
			AffinityBoost:        1.5,
			EngagementWeight:     0.5,
			EngagementCap:        100,
			Epsilon:              1e-9,
		},
		Seen: TomlSeen{
			WindowHours:          24,
			Policy:               SeenPolicyDemote,
			DemoteFactor:         0.5,
			RetentionDays:        7,
			WriteTimeoutMillis:   500,
			SweepIntervalMinutes: 60,
		},
		RateLimit: TomlRateLimit{
			Requests:      120,
			WindowSeconds: 60,
		},
	}
}

// LoadConfig reads a TOML config file and overlays it on the defaults.
func LoadConfig(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects configurations the feed service cannot run with.
func (c *Config) Validate() error {
	if c.Seen.Policy != SeenPolicyExclude && c.Seen.Policy != SeenPolicyDemote {
		return fmt.Errorf("invalid seen policy %q: must be %q or %q",
			c.Seen.Policy, SeenPolicyExclude, SeenPolicyDemote)
	}
	if c.Seen.DemoteFactor < 0 || c.Seen.DemoteFactor > 1 {
		return fmt.Errorf("invalid demote factor %f: must be in [0, 1]", c.Seen.DemoteFactor)
	}
	if c.Server.DefaultPageSize < 1 || c.Server.DefaultPageSize > c.Server.MaxPageSize {
		return fmt.Errorf("invalid default page size %d", c.Server.DefaultPageSize)
	}
	if c.RateLimit.Requests < 1 || c.RateLimit.WindowSeconds < 1 {
		return fmt.Errorf("invalid rate limit %d/%ds", c.RateLimit.Requests, c.RateLimit.WindowSeconds)
	}
	return nil
}
