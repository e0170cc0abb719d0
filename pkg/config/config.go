package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Pipeline holds the knobs of the verification and scheduling pipeline.
// Values come from the environment and may be overridden by the YAML file
// named in PIPELINE_CONFIG.
type Pipeline struct {
	MinReviews     int           `yaml:"min_reviews"`
	RadiusKm       float64       `yaml:"radius_km"`
	TargetSpots    int           `yaml:"target_spots"`
	MinSpots       int           `yaml:"min_spots"`
	MaxAuditRounds int           `yaml:"max_audit_rounds"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	Cooldown       time.Duration `yaml:"cooldown"`
	JobTimeout     time.Duration `yaml:"job_timeout"`
	RunTimeout     time.Duration `yaml:"run_timeout"`

	CatalogPath string `yaml:"catalog_path"`
	LibraryDir  string `yaml:"library_dir"`
	DocsDir     string `yaml:"docs_dir"`
	GenerateBin string `yaml:"generate_bin"`
	RepoDir     string `yaml:"repo_dir"`
	Publish     bool   `yaml:"publish"`
	GitRemote   string `yaml:"git_remote"`
	GitBranch   string `yaml:"git_branch"`

	AggregatorDomain string `yaml:"aggregator_domain"`
	SearchFeedURL    string `yaml:"search_feed_url"`
	ImageSearchURL   string `yaml:"image_search_url"`
}

type Config struct {
	Port      string
	AdminPort string
	Env       string // development, staging, production

	// External systems
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float64
	OpenAITimeout     time.Duration
	GoogleMapsAPIKey  string
	MapSource         string // "browser" or "places"
	UserAgent         string

	// Storage
	DatabaseURL       string // MySQL DSN for run history and events; empty disables
	EventsDSN         string // postgres:// URL selects the pgx event store
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Logging
	LogLevel  string
	LogFormat string // "json" or "text"
	LogFile   string // empty = stdout

	// Observability
	MetricsEnabled   bool
	MetricsPath      string
	ProfilingEnabled bool
	HealthCheckPath  string

	PromptDir  string // external prompt templates; empty = embedded only
	GalleryURL string // public gallery linked from the remote page

	// OperatorsPath names a YAML allowlist of trigger operators; empty
	// leaves the remote page open to anyone who can reach the port.
	OperatorsPath string

	OverlayPath string
	Pipeline    Pipeline
}

// Load reads configuration from the environment and applies the optional
// YAML overlay. Overlay errors are returned; env parse errors fall back to
// defaults and are caught by Validate.
func Load() (*Config, error) {
	env := strings.ToLower(getEnv("ENV", "development"))
	devLike := env == "development" || env == "staging"

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		AdminPort: getEnv("ADMIN_PORT", "6060"),
		Env:       env,

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAITemperature: getFloat("OPENAI_TEMPERATURE", 0.7),
		OpenAITimeout:     getDuration("OPENAI_TIMEOUT", 90*time.Second),
		GoogleMapsAPIKey:  getEnv("GOOGLE_MAPS_API_KEY", ""),
		MapSource:         strings.ToLower(getEnv("MAP_SOURCE", "browser")),
		UserAgent:         getEnv("USER_AGENT", defaultUserAgent),

		DatabaseURL:       getEnv("DATABASE_URL", ""),
		EventsDSN:         getEnv("EVENTS_DSN", ""),
		DBMaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 10*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile:   getEnv("LOG_FILE", ""),

		MetricsEnabled:   getBool("METRICS_ENABLED", devLike),
		MetricsPath:      getEnv("METRICS_PATH", "/metrics"),
		ProfilingEnabled: getBool("PROFILING_ENABLED", devLike),
		HealthCheckPath:  getEnv("HEALTH_CHECK_PATH", "/health"),

		PromptDir:     getEnv("PROMPT_DIR", ""),
		GalleryURL:    getEnv("GALLERY_URL", ""),
		OperatorsPath: getEnv("OPERATORS_PATH", ""),
		OverlayPath:   getEnv("PIPELINE_CONFIG", ""),

		Pipeline: Pipeline{
			MinReviews:     getInt("MIN_REVIEWS", 10),
			RadiusKm:       getFloat("AUDIT_RADIUS_KM", 15),
			TargetSpots:    getInt("TARGET_SPOTS", 5),
			MinSpots:       getInt("MIN_SPOTS", 3),
			MaxAuditRounds: getInt("MAX_AUDIT_ROUNDS", 3),
			SettleDelay:    getDuration("SETTLE_DELAY", 1500*time.Millisecond),
			Cooldown:       getDuration("COOLDOWN", 3*time.Second),
			JobTimeout:     getDuration("JOB_TIMEOUT", 10*time.Minute),
			RunTimeout:     getDuration("RUN_TIMEOUT", 30*time.Minute),

			CatalogPath: getEnv("CATALOG_PATH", "batch_areas.json"),
			LibraryDir:  getEnv("LIBRARY_DIR", "library"),
			DocsDir:     getEnv("DOCS_DIR", "docs"),
			GenerateBin: getEnv("GENERATE_BIN", "generate"),
			RepoDir:     getEnv("REPO_DIR", "."),
			Publish:     getBool("PUBLISH", false),
			GitRemote:   getEnv("GIT_REMOTE", "origin"),
			GitBranch:   getEnv("GIT_BRANCH", "main"),

			AggregatorDomain: getEnv("AGGREGATOR_DOMAIN", "tabelog.com"),
			SearchFeedURL:    getEnv("SEARCH_FEED_URL", "https://www.bing.com/search?format=rss&q="),
			ImageSearchURL:   getEnv("IMAGE_SEARCH_URL", "https://www.bing.com/images/search?q="),
		},
	}

	if cfg.OverlayPath != "" {
		if err := cfg.applyOverlay(cfg.OverlayPath); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}
