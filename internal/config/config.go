// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata" // embeds the zone database for crawler.timezone

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. JOBCRAWLER_DB_DSN.
const EnvPrefix = "JOBCRAWLER"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site       SiteConfig       `mapstructure:"site"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Delays     DelaysConfig     `mapstructure:"delays"`
	Navigator  NavigatorConfig  `mapstructure:"navigator"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	DB         DBConfig         `mapstructure:"db"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Export     ExportConfig     `mapstructure:"export"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SiteConfig describes the listings site.
type SiteConfig struct {
	BaseURL             string `mapstructure:"base_url"`
	RemoteURL           string `mapstructure:"remote_url"`
	UseRemote           bool   `mapstructure:"use_remote"`
	SearchInputSelector string `mapstructure:"search_input_selector"`
	ResultLinkSelector  string `mapstructure:"result_link_selector"`
	NextPageSelector    string `mapstructure:"next_page_selector"`
	KeywordsParam       string `mapstructure:"keywords_param"`
	PageParam           string `mapstructure:"page_param"`
	TitleSelector       string `mapstructure:"title_selector"`
	EmployerSelector    string `mapstructure:"employer_selector"`
	LocationSelector    string `mapstructure:"location_selector"`
	WorkTypeSelector    string `mapstructure:"work_type_selector"`
	SalarySelector      string `mapstructure:"salary_selector"`
	PostedSelector      string `mapstructure:"posted_selector"`
}

// ListingURL returns the remote listing URL when selected, else the base URL.
func (s SiteConfig) ListingURL() string {
	if s.UseRemote && s.RemoteURL != "" {
		return s.RemoteURL
	}
	return s.BaseURL
}

// CrawlerConfig governs the crawl workflow.
type CrawlerConfig struct {
	SearchTerms  []string `mapstructure:"search_terms"`
	UserAgent    string   `mapstructure:"user_agent"`
	Timezone     string   `mapstructure:"timezone"`
	ShowProgress bool     `mapstructure:"show_progress"`
}

// Location resolves the configured timezone.
func (c CrawlerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("crawler.timezone: %w", err)
	}
	return loc, nil
}

// DelaysConfig controls pacing and retries of every fetch.
type DelaysConfig struct {
	Interaction     time.Duration `mapstructure:"interaction"`
	SuccessiveFetch time.Duration `mapstructure:"successive_fetch"`
	Retry           time.Duration `mapstructure:"retry"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
}

// NavigatorConfig tunes result link collection.
type NavigatorConfig struct {
	StaleRetries    int     `mapstructure:"stale_retries"`
	StaleTolerance  int     `mapstructure:"stale_tolerance"`
	MinPartialRatio float64 `mapstructure:"min_partial_ratio"`
}

// BrowserConfig configures the Chrome session.
type BrowserConfig struct {
	Headless   bool          `mapstructure:"headless"`
	NavTimeout time.Duration `mapstructure:"nav_timeout"`
	ExecPath   string        `mapstructure:"exec_path"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory store.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// Checkpoint backends.
const (
	CheckpointFile  = "file"
	CheckpointRedis = "redis"
)

// CheckpointConfig selects where the resumption cursor lives.
type CheckpointConfig struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url"`
	RedisKey string `mapstructure:"redis_key"`
}

// MetricsConfig exposes Prometheus metrics when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// PubSubConfig holds metadata for new-job notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether notifications are configured.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.Topic != ""
}

// ExportConfig sets the default export destination.
type ExportConfig struct {
	Path string `mapstructure:"path"`
}

// ScheduleConfig holds the cron spec for periodic crawls.
type ScheduleConfig struct {
	Spec string `mapstructure:"spec"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from an optional file, a .env file and the
// environment, in increasing precedence.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.seek.com.au/jobs/in-All-Melbourne-VIC")
	v.SetDefault("site.remote_url", "")
	v.SetDefault("site.use_remote", false)
	v.SetDefault("site.search_input_selector", "#keywords-input")
	v.SetDefault("site.result_link_selector", `a[href*="/job/"]`)
	v.SetDefault("site.next_page_selector", `a[data-automation^="page-"][aria-label="Next"]`)
	v.SetDefault("site.keywords_param", "keywords")
	v.SetDefault("site.page_param", "page")
	v.SetDefault("site.title_selector", `h1[data-automation="job-detail-title"]`)
	v.SetDefault("site.employer_selector", `span[data-automation="advertiser-name"]`)
	v.SetDefault("site.location_selector", `span[data-automation="job-detail-location"]`)
	v.SetDefault("site.work_type_selector", `span[data-automation="job-detail-work-type"]`)
	v.SetDefault("site.salary_selector", `span[data-automation="job-detail-salary"]`)
	v.SetDefault("site.posted_selector", "")
	v.SetDefault("crawler.search_terms", []string{})
	v.SetDefault("crawler.user_agent", "jobsearch-crawler/0.1")
	v.SetDefault("crawler.timezone", "Australia/Melbourne")
	v.SetDefault("crawler.show_progress", true)
	v.SetDefault("delays.interaction", "1s")
	v.SetDefault("delays.successive_fetch", "3s")
	v.SetDefault("delays.retry", "5s")
	v.SetDefault("delays.request_timeout", "10s")
	v.SetDefault("delays.max_attempts", 4)
	v.SetDefault("navigator.stale_retries", 3)
	v.SetDefault("navigator.stale_tolerance", 2)
	v.SetDefault("navigator.min_partial_ratio", 0.5)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout", "45s")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("checkpoint.backend", CheckpointFile)
	v.SetDefault("checkpoint.path", "crawl_cursor.json")
	v.SetDefault("checkpoint.redis_url", "")
	v.SetDefault("checkpoint.redis_key", "jobcrawler:cursor")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("export.path", "jobs.csv")
	v.SetDefault("schedule.spec", "@every 24h")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Site.BaseURL) == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Site.UseRemote && strings.TrimSpace(c.Site.RemoteURL) == "" {
		return fmt.Errorf("site.remote_url must be set when site.use_remote is enabled")
	}
	if c.Site.SearchInputSelector == "" || c.Site.ResultLinkSelector == "" || c.Site.NextPageSelector == "" {
		return fmt.Errorf("site selectors must not be empty")
	}
	if c.Site.KeywordsParam == "" || c.Site.PageParam == "" {
		return fmt.Errorf("site.keywords_param and site.page_param are required")
	}
	if c.Delays.MaxAttempts <= 0 {
		return fmt.Errorf("delays.max_attempts must be > 0")
	}
	if c.Delays.Interaction < 0 || c.Delays.SuccessiveFetch < 0 || c.Delays.Retry < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.Delays.RequestTimeout <= 0 {
		return fmt.Errorf("delays.request_timeout must be > 0")
	}
	if c.Navigator.StaleRetries < 0 || c.Navigator.StaleTolerance < 0 {
		return fmt.Errorf("navigator stale settings must not be negative")
	}
	if c.Navigator.MinPartialRatio <= 0 || c.Navigator.MinPartialRatio > 1 {
		return fmt.Errorf("navigator.min_partial_ratio must be in (0, 1]")
	}
	switch c.Checkpoint.Backend {
	case CheckpointFile:
		if c.Checkpoint.Path == "" {
			return fmt.Errorf("checkpoint.path is required for the file backend")
		}
	case CheckpointRedis:
		if c.Checkpoint.RedisURL == "" {
			return fmt.Errorf("checkpoint.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("checkpoint.backend must be %q or %q", CheckpointFile, CheckpointRedis)
	}
	if _, err := c.Crawler.Location(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Crawler.SearchTerms))
	for _, term := range c.Crawler.SearchTerms {
		if strings.TrimSpace(term) == "" {
			return fmt.Errorf("crawler.search_terms must not contain blank terms")
		}
		if _, dup := seen[term]; dup {
			return fmt.Errorf("crawler.search_terms lists %q twice", term)
		}
		seen[term] = struct{}{}
	}
	return nil
}
