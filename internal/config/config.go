// Package config loads settings from the environment (optionally a .env file)
// and the YAML seed file with initial sources and admins.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Telegram settings
	TelegramToken string
	AdminChatIDs  []string

	// Storage
	DatabaseURL        string
	ElasticsearchURLs  []string
	ElasticsearchUser  string
	ElasticsearchPass  string
	ElasticsearchIndex string
	ArticlesFile       string
	SourcesFile        string

	// LLM and image search
	LLMProvider      string // "openai" or "gemini"
	OpenAIAPIKey     string
	GeminiAPIKey     string
	PostLanguage     string
	SerpAPIKey       string
	MaxLLMRequests   int // per day, 0 = unlimited
	MaxImageRequests int

	// Crawling
	CrawlInterval     time.Duration
	RefreshInterval   time.Duration
	FetchTimeout      time.Duration
	FetchAttempts     int
	FetchMinWait      time.Duration
	FetchMaxWait      time.Duration
	ScrapeConcurrency int
	MaxJobInstances   int
	GenericFallback   bool

	// App settings
	HTTPAddr  string
	Debug     bool
	LogFormat string
}

// Load reads the configuration and validates it for the long-running service.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Read reads .env (when present) and the environment without validating.
// One-shot commands that never talk to Telegram use it directly.
func Read() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		AdminChatIDs:  getEnvList("ADMIN_CHAT_IDS"),

		DatabaseURL:        os.Getenv("DATABASE_URL"),
		ElasticsearchURLs:  getEnvList("ELASTICSEARCH_URLS"),
		ElasticsearchUser:  os.Getenv("ELASTICSEARCH_USERNAME"),
		ElasticsearchPass:  os.Getenv("ELASTICSEARCH_PASSWORD"),
		ElasticsearchIndex: getEnvOrDefault("ELASTICSEARCH_INDEX", "news"),
		ArticlesFile:       getEnvOrDefault("ARTICLES_FILE", "articles.json"),
		SourcesFile:        getEnvOrDefault("SOURCES_FILE", "configs/sources.yaml"),

		LLMProvider:      strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		PostLanguage:     getEnvOrDefault("POST_LANGUAGE", "Russian"),
		SerpAPIKey:       os.Getenv("SERPAPI_KEY"),
		MaxLLMRequests:   getEnvIntOrDefault("MAX_LLM_REQUESTS", 50),
		MaxImageRequests: getEnvIntOrDefault("MAX_IMAGE_REQUESTS", 50),

		CrawlInterval:     getEnvDurationOrDefault("CRAWL_INTERVAL", 6*time.Hour),
		RefreshInterval:   getEnvDurationOrDefault("REFRESH_INTERVAL", time.Hour),
		FetchTimeout:      getEnvDurationOrDefault("FETCH_TIMEOUT", 15*time.Second),
		FetchAttempts:     getEnvIntOrDefault("FETCH_ATTEMPTS", 5),
		FetchMinWait:      getEnvDurationOrDefault("FETCH_MIN_WAIT", 3*time.Second),
		FetchMaxWait:      getEnvDurationOrDefault("FETCH_MAX_WAIT", 30*time.Second),
		ScrapeConcurrency: getEnvIntOrDefault("SCRAPE_CONCURRENCY", 4),
		MaxJobInstances:   getEnvIntOrDefault("MAX_JOB_INSTANCES", 1),
		GenericFallback:   getEnvBoolOrDefault("GENERIC_FALLBACK", true),

		HTTPAddr:  getEnvOrDefault("HTTP_ADDR", ":8080"),
		Debug:     getEnvBoolOrDefault("DEBUG", false),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.TelegramToken == "" {
		result = multierror.Append(result, errors.New("TELEGRAM_TOKEN is required"))
	}
	switch c.LLMProvider {
	case "openai", "gemini", "none":
	default:
		result = multierror.Append(result, fmt.Errorf("LLM_PROVIDER must be openai, gemini or none, got %q", c.LLMProvider))
	}
	if c.CrawlInterval < time.Minute {
		result = multierror.Append(result, fmt.Errorf("CRAWL_INTERVAL must be at least 1m, got %s", c.CrawlInterval))
	}
	if c.RefreshInterval < time.Minute {
		result = multierror.Append(result, fmt.Errorf("REFRESH_INTERVAL must be at least 1m, got %s", c.RefreshInterval))
	}
	if c.FetchAttempts < 1 {
		result = multierror.Append(result, errors.New("FETCH_ATTEMPTS must be positive"))
	}
	if c.FetchMaxWait < c.FetchMinWait {
		result = multierror.Append(result, errors.New("FETCH_MAX_WAIT must not be below FETCH_MIN_WAIT"))
	}
	if c.MaxJobInstances < 1 || c.MaxJobInstances > 6 {
		result = multierror.Append(result, fmt.Errorf("MAX_JOB_INSTANCES must be between 1 and 6, got %d", c.MaxJobInstances))
	}
	if c.ScrapeConcurrency < 1 {
		result = multierror.Append(result, errors.New("SCRAPE_CONCURRENCY must be positive"))
	}

	return result.ErrorOrNil()
}

// Seeds are the sources and admins imported into the registry at startup.
type Seeds struct {
	Sources []string    `yaml:"sources"`
	Admins  []AdminSeed `yaml:"admins"`
}

type AdminSeed struct {
	UserID string `yaml:"user_id"`
	Name   string `yaml:"name"`
}

// LoadSeeds reads path. A missing file yields empty seeds.
func LoadSeeds(path string) (*Seeds, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Seeds{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seeds: %w", err)
	}

	var s Seeds
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &s, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
