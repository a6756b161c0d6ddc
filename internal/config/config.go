// Package config loads and validates jobscout configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mattsolle/jobscout/internal/jobs"
	"github.com/mattsolle/jobscout/internal/scraper/source"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	App       AppConfig        `mapstructure:"app"`
	Server    ServerConfig     `mapstructure:"server"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	DB        DBConfig         `mapstructure:"db"`
	Scraper   ScraperConfig    `mapstructure:"scraper"`
	Archive   ArchiveConfig    `mapstructure:"archive"`
	Events    EventsConfig     `mapstructure:"events"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Schedules []StandingSearch `mapstructure:"standing_searches"`
}

// AppConfig names the service and its environment tag.
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig controls log level and encoding. JSON output uses the zap
// production encoder; console output uses the development encoder.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// DBConfig controls access to the Postgres database. PoolSize and
// PoolMaxOverflow follow the original deployment's semantics: the pool may
// grow to PoolSize+PoolMaxOverflow connections under load.
type DBConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	PoolSize        int    `mapstructure:"pool_size"`
	PoolMaxOverflow int    `mapstructure:"pool_max_overflow"`
}

// DSN renders the pgx connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// MaxConns is the hard pool ceiling.
func (c DBConfig) MaxConns() int32 {
	return int32(c.PoolSize + c.PoolMaxOverflow)
}

// MinConns is the number of connections kept warm.
func (c DBConfig) MinConns() int32 {
	return int32(c.PoolSize)
}

// ScraperConfig governs the source registry and shared fetch behavior.
type ScraperConfig struct {
	UserAgent      string                   `mapstructure:"user_agent"`
	TimeoutSeconds int                      `mapstructure:"timeout_seconds"`
	Boards         map[string]BoardSettings `mapstructure:"boards"`
}

// Timeout converts the configured seconds into a duration.
func (c ScraperConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BoardSettings describes one scrapeable job board. Kind selects the source
// implementation: "api" (JSON search API), "html" (server-rendered listing
// scraped with colly) or "rendered" (headless Chrome).
type BoardSettings struct {
	Kind              string                `mapstructure:"kind"`
	BaseURL           string                `mapstructure:"base_url"`
	SearchURL         string                `mapstructure:"search_url"`
	AppID             string                `mapstructure:"app_id"`
	AppKey            string                `mapstructure:"app_key"`
	Country           string                `mapstructure:"country"`
	PageSize          int                   `mapstructure:"page_size"`
	NavTimeoutSeconds int                   `mapstructure:"nav_timeout_seconds"`
	MaxParallel       int                   `mapstructure:"max_parallel"`
	Selectors         source.BoardSelectors `mapstructure:"selectors"`
}

// ArchiveConfig sets where raw scrape batches are dumped.
type ArchiveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// EventsConfig holds metadata for scrape-completed notifications.
type EventsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// CacheConfig controls the Redis seen-URL cache.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	RedisURL string `mapstructure:"redis_url"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// TTL converts the configured hours into a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// StandingSearch is a scrape request run on a cron schedule.
type StandingSearch struct {
	Schedule          string   `mapstructure:"schedule"`
	Sites             []string `mapstructure:"sites"`
	SearchTerm        string   `mapstructure:"search_term"`
	GoogleSearchTerm  string   `mapstructure:"google_search_term"`
	Location          string   `mapstructure:"location"`
	ResultsWanted     int      `mapstructure:"results_wanted"`
	HoursOld          int      `mapstructure:"hours_old"`
	Country           string   `mapstructure:"country"`
	FetchDescriptions bool     `mapstructure:"fetch_descriptions"`
}

// Request converts the standing search into a scrape request.
func (s StandingSearch) Request() jobs.ScrapeRequest {
	return jobs.ScrapeRequest{
		Sites:             s.Sites,
		SearchTerm:        s.SearchTerm,
		GoogleSearchTerm:  s.GoogleSearchTerm,
		Location:          s.Location,
		ResultsWanted:     s.ResultsWanted,
		HoursOld:          s.HoursOld,
		Country:           s.Country,
		FetchDescriptions: s.FetchDescriptions,
	}.WithDefaults()
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBSCOUT")
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
	v.SetDefault("app.name", "jobscout")
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.port", 8000)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", true)
	v.SetDefault("db.host", "db")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "jobs")
	v.SetDefault("db.password", "jobs_pw")
	v.SetDefault("db.name", "jobsdb")
	v.SetDefault("db.pool_size", 10)
	v.SetDefault("db.pool_max_overflow", 20)
	v.SetDefault("scraper.user_agent", "jobscout-bot/1.0 (+https://github.com/mattsolle/jobscout)")
	v.SetDefault("scraper.timeout_seconds", 15)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.provider", "local")
	v.SetDefault("archive.base_dir", "data/archive")
	v.SetDefault("archive.prefix", "scrapes")
	v.SetDefault("events.enabled", false)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl_hours", 24)

	// Bundled board definitions; override or extend via config file.
	v.SetDefault("scraper.boards.indeed.kind", "html")
	v.SetDefault("scraper.boards.indeed.search_url",
		"https://www.indeed.com/jobs?q={term}&l={location}")
	v.SetDefault("scraper.boards.indeed.selectors.row", ".job_seen_beacon")
	v.SetDefault("scraper.boards.indeed.selectors.title", "h2.jobTitle span")
	v.SetDefault("scraper.boards.indeed.selectors.company", "[data-testid=company-name]")
	v.SetDefault("scraper.boards.indeed.selectors.location", "[data-testid=text-location]")
	v.SetDefault("scraper.boards.indeed.selectors.url", "h2.jobTitle a")
	v.SetDefault("scraper.boards.indeed.selectors.salary", ".salary-snippet-container")
	v.SetDefault("scraper.boards.linkedin.kind", "html")
	v.SetDefault("scraper.boards.linkedin.search_url",
		"https://www.linkedin.com/jobs/search?keywords={term}&location={location}")
	v.SetDefault("scraper.boards.linkedin.selectors.row", ".base-search-card")
	v.SetDefault("scraper.boards.linkedin.selectors.title", ".base-search-card__title")
	v.SetDefault("scraper.boards.linkedin.selectors.company", ".base-search-card__subtitle")
	v.SetDefault("scraper.boards.linkedin.selectors.location", ".job-search-card__location")
	v.SetDefault("scraper.boards.linkedin.selectors.url", "a.base-card__full-link")
	v.SetDefault("scraper.boards.linkedin.selectors.date", "time.job-search-card__listdate")
	v.SetDefault("scraper.boards.linkedin.selectors.description", ".show-more-less-html__markup")
	v.SetDefault("scraper.boards.google.kind", "rendered")
	v.SetDefault("scraper.boards.google.search_url",
		"https://www.google.com/search?q={term}&ibp=htl;jobs")
	v.SetDefault("scraper.boards.google.selectors.row", ".iFjolb")
	v.SetDefault("scraper.boards.google.selectors.title", ".BjJfJf")
	v.SetDefault("scraper.boards.google.selectors.company", ".vNEEBe")
	v.SetDefault("scraper.boards.google.selectors.location", ".Qk80Jf")
	v.SetDefault("scraper.boards.google.selectors.url", "a")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.DB.Host == "" || c.DB.Name == "" {
		return fmt.Errorf("db.host and db.name are required")
	}
	if c.DB.PoolSize <= 0 {
		return fmt.Errorf("db.pool_size must be > 0")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	for name, board := range c.Scraper.Boards {
		switch board.Kind {
		case "api":
			if board.BaseURL == "" {
				return fmt.Errorf("scraper.boards.%s.base_url is required for api boards", name)
			}
		case "html", "rendered":
			if board.SearchURL == "" {
				return fmt.Errorf("scraper.boards.%s.search_url is required", name)
			}
			if board.Selectors.Row == "" {
				return fmt.Errorf("scraper.boards.%s.selectors.row is required", name)
			}
		default:
			return fmt.Errorf("scraper.boards.%s.kind must be api, html or rendered", name)
		}
	}
	if c.Archive.Enabled {
		switch c.Archive.Provider {
		case "local":
			if c.Archive.BaseDir == "" {
				return fmt.Errorf("archive.base_dir is required for the local provider")
			}
		case "gcs":
			if c.Archive.Bucket == "" {
				return fmt.Errorf("archive.bucket is required for the gcs provider")
			}
		default:
			return fmt.Errorf("archive.provider must be local or gcs")
		}
	}
	if c.Events.Enabled && (c.Events.ProjectID == "" || c.Events.Topic == "") {
		return fmt.Errorf("events.project_id and events.topic are required when events are enabled")
	}
	if c.Cache.Enabled && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url is required when the cache is enabled")
	}
	for i, sched := range c.Schedules {
		if sched.Schedule == "" || sched.SearchTerm == "" {
			return fmt.Errorf("standing_searches[%d] needs schedule and search_term", i)
		}
	}
	return nil
}
