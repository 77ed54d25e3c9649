package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// TomlServer holds HTTP server settings
type TomlServer struct {
	Listen       string   `toml:"listen"`
	AllowOrigins []string `toml:"allow_origins,omitempty"`
}

// TomlDatabase holds the SQLite database location
type TomlDatabase struct {
	Path string `toml:"path"`
}

// TomlFeeds holds feed processing configuration
type TomlFeeds struct {
	DefaultFeeds       []string `toml:"default_feeds,omitempty"`
	FetchInterval      int      `toml:"fetch_interval"`
	MaxArticlesPerFeed int      `toml:"max_articles_per_feed"`
	RequestTimeout     int      `toml:"request_timeout"`
	ItemsPerPage       int      `toml:"items_per_page"`
	DetectLanguage     bool     `toml:"detect_language"`
}

// TomlScraper holds content extraction configuration
type TomlScraper struct {
	MaxContentLength int `toml:"max_content_length"`
	RequestTimeout   int `toml:"request_timeout"`
}

// TomlAI holds summarization configuration. The API key itself never
// lives in the config file, only in the environment or the key file.
type TomlAI struct {
	SelectedModel      string  `toml:"selected_model"`
	MaxSummaryLength   int     `toml:"max_summary_length"`
	Temperature        float64 `toml:"temperature"`
	Timeout            int     `toml:"timeout"`
	BulkSummarizeLimit int     `toml:"bulk_summarize_limit"`
	KeyFile            string  `toml:"key_file"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Server   TomlServer   `toml:"server"`
	Database TomlDatabase `toml:"database"`
	Feeds    TomlFeeds    `toml:"feeds"`
	Scraper  TomlScraper  `toml:"scraper"`
	AI       TomlAI       `toml:"ai"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *TomlConfig {
	return &TomlConfig{
		Server: TomlServer{
			Listen: ":8080",
		},
		Database: TomlDatabase{
			Path: "news.db",
		},
		Feeds: TomlFeeds{
			DefaultFeeds: []string{
				"https://feeds.bbci.co.uk/news/rss.xml",
				"https://rss.cnn.com/rss/edition.rss",
				"https://feeds.reuters.com/reuters/topNews",
				"https://techcrunch.com/feed/",
				"https://feeds.npr.org/1001/rss.xml",
			},
			FetchInterval:      3600,
			MaxArticlesPerFeed: 100,
			RequestTimeout:     30,
			ItemsPerPage:       20,
			DetectLanguage:     false,
		},
		Scraper: TomlScraper{
			MaxContentLength: 10000,
			RequestTimeout:   30,
		},
		AI: TomlAI{
			SelectedModel:      "gpt-4o-mini",
			MaxSummaryLength:   500,
			Temperature:        0.3,
			Timeout:            30,
			BulkSummarizeLimit: 10,
			KeyFile:            ".api_key_cache.json",
		},
	}
}

// LoadConfig reads a TOML file over the defaults
func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

// FeedRequestTimeout is the HTTP timeout for fetching feed documents
func (c *TomlConfig) FeedRequestTimeout() time.Duration {
	return time.Duration(c.Feeds.RequestTimeout) * time.Second
}

// ScrapeRequestTimeout is the HTTP timeout for fetching article pages
func (c *TomlConfig) ScrapeRequestTimeout() time.Duration {
	return time.Duration(c.Scraper.RequestTimeout) * time.Second
}

// AITimeout is the per request timeout for completion calls
func (c *TomlConfig) AITimeout() time.Duration {
	return time.Duration(c.AI.Timeout) * time.Second
}
