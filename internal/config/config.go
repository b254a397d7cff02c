package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"leadscout-engine/internal/domain"
)

type SiteConfig struct {
	Enabled         bool    `yaml:"enabled"`
	RequestInterval float64 `yaml:"request_interval_seconds"` // min spacing between page fetches
	MaxInFlight     int     `yaml:"max_in_flight"`            // concurrent requests per site
	SearchURL       string  `yaml:"search_url,omitempty"`     // override base URL (tests, mirrors)
	LoginAccount    string  `yaml:"login_account,omitempty"`  // keychain account, if the site needs auth
}

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Crawl struct {
		Keyword            string  `yaml:"keyword"`
		Location           string  `yaml:"location"`
		MaxDurationMinutes int     `yaml:"max_duration_minutes"`
		MaxConcurrency     int     `yaml:"max_concurrency"` // 0 = one task per selected site
		DedupThreshold     int     `yaml:"dedup_threshold"`
		DedupEnabled       bool    `yaml:"dedup_enabled"`
		ProgressIntervalMs int     `yaml:"progress_interval_ms"`
		AutoIntervalHours  float64 `yaml:"auto_interval_hours"` // 0 = manual runs only
	} `yaml:"crawl"`

	Sites map[string]SiteConfig `yaml:"sites"`

	NGKeywords []string `yaml:"ng_keywords"`

	Sweep struct {
		StaleAfterDays int `yaml:"stale_after_days"`
		IntervalHours  int `yaml:"interval_hours"`
	} `yaml:"sweep"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// Site returns the config block for a source; a missing block behaves like a
// disabled site.
func (c Config) Site(s domain.Source) SiteConfig {
	if sc, ok := c.Sites[string(s)]; ok {
		return sc
	}
	return SiteConfig{}
}

// EnabledSources lists the sources selected for crawling, in canonical order.
func (c Config) EnabledSources() []domain.Source {
	var out []domain.Source
	for _, s := range domain.AllSources {
		if c.Site(s).Enabled {
			out = append(out, s)
		}
	}
	return out
}

func (c Config) MaxDuration() time.Duration {
	if c.Crawl.MaxDurationMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Crawl.MaxDurationMinutes) * time.Minute
}
