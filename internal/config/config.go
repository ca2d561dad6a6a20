package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	VisitedMemory = "memory"
	VisitedRedis  = "redis"
)

type Config struct {
	Crawl    CrawlConfig
	Browser  BrowserConfig
	Output   OutputConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type CrawlConfig struct {
	MaxPages           int
	MaxResults         int
	MaxDepth           int
	Concurrency        int
	PageTimeout        time.Duration
	DelayMin           time.Duration
	DelayMax           time.Duration
	SitePauseMin       time.Duration
	SitePauseMax       time.Duration
	ProductTokenMinLen int
	VariantParams      []string
	VisitedBackend     string
	VisitedTTL         time.Duration
}

type BrowserConfig struct {
	Headless       bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	AcceptLanguage string
	Timeout        time.Duration
}

type OutputConfig struct {
	Path string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// DSN returns the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig configures the optional redis client. StreamMaxLen
// approximately caps the record stream; 0 disables trimming.
type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	StreamMaxLen int64
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Crawl: CrawlConfig{
			MaxPages:           getIntOrDefault("CRAWL_MAX_PAGES", 200),
			MaxResults:         getIntOrDefault("CRAWL_MAX_RESULTS", 0),
			MaxDepth:           getIntOrDefault("CRAWL_MAX_DEPTH", 2),
			Concurrency:        getIntOrDefault("CRAWL_CONCURRENCY", 6),
			PageTimeout:        getDurationOrDefault("CRAWL_PAGE_TIMEOUT", 30*time.Second),
			DelayMin:           getDurationOrDefault("CRAWL_DELAY_MIN", 200*time.Millisecond),
			DelayMax:           getDurationOrDefault("CRAWL_DELAY_MAX", time.Second),
			SitePauseMin:       getDurationOrDefault("CRAWL_SITE_PAUSE_MIN", 200*time.Millisecond),
			SitePauseMax:       getDurationOrDefault("CRAWL_SITE_PAUSE_MAX", time.Second),
			ProductTokenMinLen: getIntOrDefault("CRAWL_PRODUCT_TOKEN_MIN_LEN", 6),
			VariantParams:      getStringSliceOrDefault("CRAWL_VARIANT_PARAMS", []string{"fnode", "variant", "product", "sku"}),
			VisitedBackend:     strings.ToLower(getEnvOrDefault("CRAWL_VISITED_BACKEND", VisitedMemory)),
			VisitedTTL:         getDurationOrDefault("CRAWL_VISITED_TTL", 24*time.Hour),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", "Mozilla/5.0 (compatible; RefurbCrawler/1.0)"),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1366),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 900),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
		},
		Output: OutputConfig{
			Path: getEnvOrDefault("OUTPUT_PATH", "refurbs_by_country_playwright.json"),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "refurb_crawler"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Enabled:      getBoolOrDefault("REDIS_ENABLED", false),
			Addr:         getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:     getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:           getIntOrDefault("REDIS_DB", 0),
			StreamMaxLen: int64(getIntOrDefault("REDIS_STREAM_MAX_LEN", 100000)),
		},
		Server: ServerConfig{
			Port:            getIntOrDefault("PORT", 8084),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Crawl.Concurrency < 1 {
		return fmt.Errorf("CRAWL_CONCURRENCY must be at least 1")
	}

	if c.Crawl.MaxDepth < 1 {
		return fmt.Errorf("CRAWL_MAX_DEPTH must be at least 1")
	}

	if c.Crawl.MaxPages < 0 || c.Crawl.MaxResults < 0 {
		return fmt.Errorf("crawl caps cannot be negative")
	}

	if c.Crawl.DelayMin > c.Crawl.DelayMax {
		return fmt.Errorf("CRAWL_DELAY_MIN cannot be greater than CRAWL_DELAY_MAX")
	}

	if c.Crawl.SitePauseMin > c.Crawl.SitePauseMax {
		return fmt.Errorf("CRAWL_SITE_PAUSE_MIN cannot be greater than CRAWL_SITE_PAUSE_MAX")
	}

	if c.Crawl.ProductTokenMinLen < 1 {
		return fmt.Errorf("CRAWL_PRODUCT_TOKEN_MIN_LEN must be at least 1")
	}

	if c.Crawl.PageTimeout <= 0 {
		return fmt.Errorf("CRAWL_PAGE_TIMEOUT must be positive")
	}

	switch c.Crawl.VisitedBackend {
	case VisitedMemory:
	case VisitedRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("CRAWL_VISITED_BACKEND=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unknown visited backend: %q", c.Crawl.VisitedBackend)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Enabled && c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
