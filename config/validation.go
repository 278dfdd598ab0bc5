package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one pass
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "\n")
}

// ValidateConfig checks if the configuration meets the requirements for the current environment
func ValidateConfig(cfg *Config) error {
	env := GetEnvironment()
	var errs ValidationErrors

	if cfg.DatabaseURL == "" {
		if cfg.DBHost == "" {
			errs = append(errs, ValidationError{"DB_HOST", "required when DATABASE_URL is not set"})
		}
		if cfg.DBName == "" {
			errs = append(errs, ValidationError{"DB_NAME", "required when DATABASE_URL is not set"})
		}
	}

	if cfg.JWTSecret == "" {
		field := "jwt_secret"
		if env == CI {
			field = "TEST_JWT_SECRET"
		}
		errs = append(errs, ValidationError{field, "is required"})
	}

	if env == Production {
		if cfg.RedisURL == "" && cfg.RedisHost == "" {
			errs = append(errs, ValidationError{"REDIS_URL", "required in production"})
		}
		if len(cfg.JWTSecret) > 0 && len(cfg.JWTSecret) < 32 {
			errs = append(errs, ValidationError{"jwt_secret", "must be at least 32 characters in production"})
		}
	}

	if cfg.Scraping.MaxRetries < 0 {
		errs = append(errs, ValidationError{"SCRAPING_MAX_RETRIES", "must not be negative"})
	}
	if cfg.Scraping.FullScrapeMaxDelay < cfg.Scraping.FullScrapeMinDelay {
		errs = append(errs, ValidationError{"FULL_SCRAPE_MAX_DELAY", "must not be below FULL_SCRAPE_MIN_DELAY"})
	}
	if cfg.Ingestion.Concurrency < 1 {
		errs = append(errs, ValidationError{"INGESTION_CONCURRENCY", "must be at least 1"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// IsValidationError reports whether err carries configuration validation failures
func IsValidationError(err error) bool {
	var v ValidationErrors
	return errors.As(err, &v)
}
