package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort string
	ServerHost string

	// Database configuration. DatabaseURL wins over the discrete fields.
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Redis configuration
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT configuration
	JWTSecret string

	// TheMealDB
	MealDBAPIKey  string
	MealDBBaseURL string

	Scraping  ScrapingConfig
	Ingestion IngestionConfig

	// Raw archive mirror. Empty bucket disables S3 uploads.
	ArchiveBucket string
	AWSRegion     string

	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
}

// ScrapingConfig controls request pacing for store scrapers.
type ScrapingConfig struct {
	RateLimit            time.Duration
	Timeout              time.Duration
	MaxRetries           int
	FullScrapeMinDelay   time.Duration
	FullScrapeMaxDelay   time.Duration
	CategoryDelay        time.Duration
	MaxConsecutiveErrors int
	BackoffFactor        float64
}

// IngestionConfig controls the batch ingestion pipeline and its schedule.
type IngestionConfig struct {
	Concurrency     int
	DaysToKeep      int
	ScheduleEnabled bool
}

// LoadConfig creates a new Config instance with values from environment variables or secrets
func LoadConfig() (*Config, error) {
	env := GetEnvironment()
	cfg := defaults()

	switch env {
	case CI:
		if err := loadCIConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to load CI configuration: %w", err)
		}
	case Development, Test:
		if err := loadDevConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to load development configuration: %w", err)
		}
	case Production:
		if err := loadProdConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to load production configuration: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown environment: %s", env)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, sslMode,
	)
}

// MealDBURL returns the API root including the key segment.
func (c *Config) MealDBURL() string {
	return strings.TrimRight(c.MealDBBaseURL, "/") + "/" + c.MealDBAPIKey
}

func defaults() *Config {
	return &Config{
		ServerPort:    "8000",
		ServerHost:    "0.0.0.0",
		DBPort:        "5432",
		DBSSLMode:     "disable",
		RedisPort:     "6379",
		MealDBAPIKey:  "1",
		MealDBBaseURL: "https://www.themealdb.com/api/json/v1",
		Scraping: ScrapingConfig{
			RateLimit:            time.Second,
			Timeout:              30 * time.Second,
			MaxRetries:           3,
			FullScrapeMinDelay:   2 * time.Second,
			FullScrapeMaxDelay:   5 * time.Second,
			CategoryDelay:        30 * time.Second,
			MaxConsecutiveErrors: 5,
			BackoffFactor:        2.0,
		},
		Ingestion: IngestionConfig{
			Concurrency:     4,
			DaysToKeep:      30,
			ScheduleEnabled: true,
		},
		LogLevel:       "info",
		LogFormat:      "json",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// loadCIConfig loads configuration for CI environment from environment variables only
func loadCIConfig(cfg *Config) error {
	loadFromEnv(cfg)

	cfg.DBPassword = os.Getenv("TEST_DB_PASSWORD")
	if cfg.DBPassword == "" {
		return fmt.Errorf("TEST_DB_PASSWORD environment variable is required in CI environment")
	}
	if secret := os.Getenv("TEST_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if url := os.Getenv("TEST_REDIS_URL"); url != "" {
		cfg.RedisURL = url
	}
	return nil
}

// loadDevConfig reads an optional .env file, the environment, then docker secrets if present
func loadDevConfig(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read .env: %w", err)
	}
	loadFromEnv(cfg)
	applySecrets(cfg)
	if IsDevelopment() && os.Getenv("LOG_FORMAT") == "" {
		cfg.LogFormat = "console"
	}
	return nil
}

// loadProdConfig loads configuration for production; sensitive values come from docker secrets
func loadProdConfig(cfg *Config) error {
	loadFromEnv(cfg)
	cfg.DBPassword = ""
	cfg.JWTSecret = ""
	cfg.RedisPassword = ""
	applySecrets(cfg)
	return nil
}

func loadFromEnv(cfg *Config) {
	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.ServerHost = getEnv("SERVER_HOST", cfg.ServerHost)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBSSLMode = getEnv("DB_SSL_MODE", cfg.DBSSLMode)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RedisHost = getEnv("REDIS_HOST", cfg.RedisHost)
	cfg.RedisPort = getEnv("REDIS_PORT", cfg.RedisPort)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.MealDBAPIKey = getEnv("MEALDB_API_KEY", cfg.MealDBAPIKey)
	cfg.MealDBBaseURL = getEnv("MEALDB_BASE_URL", cfg.MealDBBaseURL)

	cfg.Scraping.RateLimit = getSeconds("SCRAPING_RATE_LIMIT", cfg.Scraping.RateLimit)
	cfg.Scraping.Timeout = getSeconds("SCRAPING_TIMEOUT", cfg.Scraping.Timeout)
	cfg.Scraping.MaxRetries = getInt("SCRAPING_MAX_RETRIES", cfg.Scraping.MaxRetries)
	cfg.Scraping.FullScrapeMinDelay = getSeconds("FULL_SCRAPE_MIN_DELAY", cfg.Scraping.FullScrapeMinDelay)
	cfg.Scraping.FullScrapeMaxDelay = getSeconds("FULL_SCRAPE_MAX_DELAY", cfg.Scraping.FullScrapeMaxDelay)
	cfg.Scraping.CategoryDelay = getSeconds("FULL_SCRAPE_CATEGORY_DELAY", cfg.Scraping.CategoryDelay)
	cfg.Scraping.MaxConsecutiveErrors = getInt("FULL_SCRAPE_MAX_RETRIES", cfg.Scraping.MaxConsecutiveErrors)
	cfg.Scraping.BackoffFactor = getFloat("FULL_SCRAPE_BACKOFF_FACTOR", cfg.Scraping.BackoffFactor)

	cfg.Ingestion.Concurrency = getInt("INGESTION_CONCURRENCY", cfg.Ingestion.Concurrency)
	cfg.Ingestion.DaysToKeep = getInt("INGESTION_DAYS_TO_KEEP", cfg.Ingestion.DaysToKeep)
	cfg.Ingestion.ScheduleEnabled = getBool("SCHEDULE_ENABLED", cfg.Ingestion.ScheduleEnabled)

	cfg.ArchiveBucket = getEnv("ARCHIVE_BUCKET", cfg.ArchiveBucket)
	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
}

// applySecrets overrides sensitive values with docker secrets when the files exist
func applySecrets(cfg *Config) {
	if v := readSecret("db_password"); v != "" {
		cfg.DBPassword = v
	}
	if v := readSecret("db_user"); v != "" {
		cfg.DBUser = v
	}
	if v := readSecret("jwt_secret"); v != "" {
		cfg.JWTSecret = v
	}
	if v := readSecret("redis_password"); v != "" {
		cfg.RedisPassword = v
	}
	if v := readSecret("database_url"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := readSecret("redis_url"); v != "" {
		cfg.RedisURL = v
	}
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	if data, err := os.ReadFile(filepath.Join(secretsDir, name)); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

// getSeconds reads a float number of seconds.
func getSeconds(key string, fallback time.Duration) time.Duration {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return time.Duration(v * float64(time.Second))
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
