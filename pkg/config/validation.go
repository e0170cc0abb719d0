package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
)

// FieldError is one rejected configuration value.
type FieldError struct {
	Field   string
	Value   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("config validation error for field '%s' with value '%s': %s", e.Field, e.Value, e.Message)
}

// ConfigValidator collects field errors so every problem is reported at once.
type ConfigValidator struct {
	errors []FieldError
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{errors: make([]FieldError, 0)}
}

func (cv *ConfigValidator) AddError(field, value, message string) {
	cv.errors = append(cv.errors, FieldError{Field: field, Value: value, Message: message})
}

func (cv *ConfigValidator) HasErrors() bool { return len(cv.errors) > 0 }

func (cv *ConfigValidator) GetErrors() []FieldError { return cv.errors }

func (cv *ConfigValidator) GetErrorsAsString() string {
	lines := make([]string, 0, len(cv.errors))
	for _, e := range cv.errors {
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}

// Validate checks the configuration needed by the director server.
func (c *Config) Validate() error {
	v := NewConfigValidator()
	c.validateRequired(v)
	c.validateFormats(v)
	c.validatePipeline(v)
	if v.HasErrors() {
		return errs.NewValidation("config.Validate", "configuration validation failed:\n"+v.GetErrorsAsString(), nil)
	}
	return nil
}

// ValidatePipeline checks only the pipeline knobs. The batch and generate
// binaries run without the proposal credentials.
func (c *Config) ValidatePipeline() error {
	v := NewConfigValidator()
	c.validatePipeline(v)
	if c.MapSource == "places" && c.GoogleMapsAPIKey == "" {
		v.AddError("GOOGLE_MAPS_API_KEY", "", "required when MAP_SOURCE=places")
	}
	if v.HasErrors() {
		return errs.NewValidation("config.ValidatePipeline", "configuration validation failed:\n"+v.GetErrorsAsString(), nil)
	}
	return nil
}

func (c *Config) validateRequired(v *ConfigValidator) {
	if c.OpenAIAPIKey == "" {
		v.AddError("OPENAI_API_KEY", "", "OpenAI API key is required")
	}
	if c.MapSource == "places" && c.GoogleMapsAPIKey == "" {
		v.AddError("GOOGLE_MAPS_API_KEY", "", "required when MAP_SOURCE=places")
	}
	if c.Port == "" {
		v.AddError("PORT", c.Port, "port is required")
	}
}

func (c *Config) validateFormats(v *ConfigValidator) {
	for name, port := range map[string]string{"PORT": c.Port, "ADMIN_PORT": c.AdminPort} {
		if port == "" {
			continue
		}
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			v.AddError(name, port, "invalid port number (must be 1-65535)")
		}
	}
	if c.Port != "" && c.Port == c.AdminPort {
		v.AddError("ADMIN_PORT", c.AdminPort, "port conflict with PORT")
	}

	switch c.MapSource {
	case "browser", "places":
	default:
		v.AddError("MAP_SOURCE", c.MapSource, "must be 'browser' or 'places'")
	}

	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal"}
	if c.LogLevel != "" && !contains(validLevels, strings.ToLower(c.LogLevel)) {
		v.AddError("LOG_LEVEL", c.LogLevel, "invalid log level (must be one of: trace, debug, info, warn, error, fatal)")
	}
	if c.LogFormat != "" && c.LogFormat != "json" && c.LogFormat != "text" {
		v.AddError("LOG_FORMAT", c.LogFormat, "invalid log format (must be 'json' or 'text')")
	}

	if c.DatabaseURL != "" && (!strings.Contains(c.DatabaseURL, "@") || !strings.Contains(c.DatabaseURL, "/")) {
		v.AddError("DATABASE_URL", maskString(c.DatabaseURL, 8), "invalid database DSN format")
	}
	if c.EventsDSN != "" && !strings.HasPrefix(c.EventsDSN, "postgres://") && !strings.HasPrefix(c.EventsDSN, "postgresql://") {
		v.AddError("EVENTS_DSN", maskString(c.EventsDSN, 8), "must be a postgres:// URL")
	}
}

func (c *Config) validatePipeline(v *ConfigValidator) {
	p := c.Pipeline
	if p.MinReviews < 1 {
		v.AddError("MIN_REVIEWS", strconv.Itoa(p.MinReviews), "must be at least 1")
	}
	if p.RadiusKm <= 0 {
		v.AddError("AUDIT_RADIUS_KM", fmt.Sprint(p.RadiusKm), "must be positive")
	}
	if p.TargetSpots < 1 {
		v.AddError("TARGET_SPOTS", strconv.Itoa(p.TargetSpots), "must be at least 1")
	}
	if p.MinSpots < 1 || p.MinSpots > p.TargetSpots {
		v.AddError("MIN_SPOTS", strconv.Itoa(p.MinSpots), "must be between 1 and TARGET_SPOTS")
	}
	if p.MaxAuditRounds < 1 || p.MaxAuditRounds > 10 {
		v.AddError("MAX_AUDIT_ROUNDS", strconv.Itoa(p.MaxAuditRounds), "must be between 1 and 10")
	}
	if p.SettleDelay < 0 {
		v.AddError("SETTLE_DELAY", p.SettleDelay.String(), "must not be negative")
	}
	if p.Cooldown < 0 {
		v.AddError("COOLDOWN", p.Cooldown.String(), "must not be negative")
	}
	if p.CatalogPath == "" || filepath.Ext(p.CatalogPath) != ".json" {
		v.AddError("CATALOG_PATH", p.CatalogPath, "must name a .json file")
	}
	if p.LibraryDir == "" {
		v.AddError("LIBRARY_DIR", "", "library directory is required")
	}
	if p.DocsDir == "" {
		v.AddError("DOCS_DIR", "", "docs directory is required")
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Summary returns the configuration with secrets masked, for startup logs and /api/status.
func (c *Config) Summary() map[string]interface{} {
	return map[string]interface{}{
		"env":                 c.Env,
		"port":                c.Port,
		"admin_port":          c.AdminPort,
		"openai_api_key":      maskString(c.OpenAIAPIKey, 6),
		"openai_model":        c.OpenAIModel,
		"google_maps_api_key": maskString(c.GoogleMapsAPIKey, 6),
		"map_source":          c.MapSource,
		"database_url":        maskString(c.DatabaseURL, 8),
		"events_dsn":          maskString(c.EventsDSN, 11),
		"log_level":           c.LogLevel,
		"log_format":          c.LogFormat,
		"metrics_enabled":     c.MetricsEnabled,
		"profiling_enabled":   c.ProfilingEnabled,
		"pipeline_config":     c.OverlayPath,
		"catalog_path":        c.Pipeline.CatalogPath,
		"library_dir":         c.Pipeline.LibraryDir,
		"docs_dir":            c.Pipeline.DocsDir,
		"radius_km":           c.Pipeline.RadiusKm,
		"min_reviews":         c.Pipeline.MinReviews,
		"target_spots":        c.Pipeline.TargetSpots,
		"max_audit_rounds":    c.Pipeline.MaxAuditRounds,
		"publish":             c.Pipeline.Publish,
	}
}

func maskString(s string, keepFirst int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keepFirst {
		return strings.Repeat("*", len(s))
	}
	return s[:keepFirst] + strings.Repeat("*", len(s)-keepFirst)
}
