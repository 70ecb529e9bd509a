package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListen       = "127.0.0.1:8080"
	DefaultSourceURL    = "https://wikimedia.org.uk/w/api.php?action=parse&page=Events&prop=text&disablepp&format=json"
	DefaultSiteOrigin   = "https://wikimedia.org.uk"
	DefaultUIDDomain    = "wikimedia.org.uk"
	DefaultProductID    = "-//hacksw/handcal//NONSGML v1.0//EN"
	DefaultUserAgent    = "wikical/1.0 (+https://wikimedia.org.uk/wiki/Events)"
	DefaultFetchTimeout = 15 * time.Second
	DefaultRefreshCron  = "*/30 * * * *"
	DefaultOutputPath   = "calendar.ics"
)

// Config is the top-level application configuration. Every field has a
// default, so running without a config file reproduces the fixed Wikimedia
// UK feed.
type Config struct {
	// Listen is the HTTP listen address for the feed server.
	Listen string `yaml:"listen" json:"listen"`

	// SourceURL is the MediaWiki parse API endpoint returning the events page.
	SourceURL string `yaml:"source_url" json:"source_url"`

	// SiteOrigin is prefixed to site-relative /wiki/ links.
	SiteOrigin string `yaml:"site_origin" json:"site_origin"`

	// UIDDomain is appended to every generated UID.
	UIDDomain string `yaml:"uid_domain" json:"uid_domain"`

	ProductID string        `yaml:"product_id" json:"product_id"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Timeout   time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`

	// RefreshCron is the cron schedule used by the file publisher
	// (e.g. "*/30 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// OutputPath is where the publisher writes the rendered calendar.
	OutputPath string `yaml:"output_path" json:"output_path"`

	// Metrics exposes /metrics on the feed server.
	Metrics bool `yaml:"metrics" json:"metrics"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      DefaultListen,
		SourceURL:   DefaultSourceURL,
		SiteOrigin:  DefaultSiteOrigin,
		UIDDomain:   DefaultUIDDomain,
		ProductID:   DefaultProductID,
		UserAgent:   DefaultUserAgent,
		Timeout:     DefaultFetchTimeout,
		RefreshCron: DefaultRefreshCron,
		OutputPath:  DefaultOutputPath,
		Metrics:     true,
		LogLevel:    "info",
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave like the defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.SourceURL == "" {
		c.SourceURL = DefaultSourceURL
	}
	if c.SiteOrigin == "" {
		c.SiteOrigin = DefaultSiteOrigin
	}
	if c.UIDDomain == "" {
		c.UIDDomain = DefaultUIDDomain
	}
	if c.ProductID == "" {
		c.ProductID = DefaultProductID
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultFetchTimeout
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefreshCron
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If path is empty, the defaults are returned and nothing is written.
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled over the defaults and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, so readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
