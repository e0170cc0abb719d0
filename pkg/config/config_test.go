package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadPipelineDefaults(t *testing.T) {
	for _, k := range []string{"MIN_REVIEWS", "AUDIT_RADIUS_KM", "TARGET_SPOTS", "MIN_SPOTS", "MAX_AUDIT_ROUNDS", "SETTLE_DELAY", "COOLDOWN", "PIPELINE_CONFIG"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cfg.Pipeline
	if p.MinReviews != 10 || p.RadiusKm != 15 || p.TargetSpots != 5 || p.MinSpots != 3 || p.MaxAuditRounds != 3 {
		t.Errorf("unexpected thresholds: %+v", p)
	}
	if p.SettleDelay != 1500*time.Millisecond {
		t.Errorf("settle delay = %v", p.SettleDelay)
	}
	if p.Cooldown != 3*time.Second {
		t.Errorf("cooldown = %v", p.Cooldown)
	}
}

func TestLoadAppliesYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	body := "pipeline:\n  radius_km: 8.5\n  settle_delay: 2s\n  docs_dir: site\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PIPELINE_CONFIG", path)
	t.Setenv("TARGET_SPOTS", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.RadiusKm != 8.5 {
		t.Errorf("radius = %v, want 8.5", cfg.Pipeline.RadiusKm)
	}
	if cfg.Pipeline.SettleDelay != 2*time.Second {
		t.Errorf("settle delay = %v, want 2s", cfg.Pipeline.SettleDelay)
	}
	if cfg.Pipeline.DocsDir != "site" {
		t.Errorf("docs dir = %q", cfg.Pipeline.DocsDir)
	}
	if cfg.Pipeline.TargetSpots != 6 {
		t.Errorf("env value should survive overlay, got %d", cfg.Pipeline.TargetSpots)
	}
}

func TestLoadRejectsUnknownOverlayKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte("pipeline:\n  radius: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PIPELINE_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func validConfig() *Config {
	return &Config{
		Port:         "8080",
		AdminPort:    "6060",
		OpenAIAPIKey: "sk-test",
		MapSource:    "browser",
		LogLevel:     "info",
		LogFormat:    "json",
		Pipeline: Pipeline{
			MinReviews: 10, RadiusKm: 15, TargetSpots: 5, MinSpots: 3, MaxAuditRounds: 3,
			SettleDelay: time.Second, Cooldown: time.Second,
			CatalogPath: "batch_areas.json", LibraryDir: "library", DocsDir: "docs",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing key", func(c *Config) { c.OpenAIAPIKey = "" }, "OPENAI_API_KEY"},
		{"places without key", func(c *Config) { c.MapSource = "places" }, "GOOGLE_MAPS_API_KEY"},
		{"bad source", func(c *Config) { c.MapSource = "carrier-pigeon" }, "MAP_SOURCE"},
		{"port clash", func(c *Config) { c.AdminPort = "8080" }, "port conflict"},
		{"floor above target", func(c *Config) { c.Pipeline.MinSpots = 6 }, "MIN_SPOTS"},
		{"catalog not json", func(c *Config) { c.Pipeline.CatalogPath = "areas.yaml" }, "CATALOG_PATH"},
		{"events dsn", func(c *Config) { c.EventsDSN = "mysql://x" }, "EVENTS_DSN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidatePipelineSkipsCredentials(t *testing.T) {
	c := validConfig()
	c.OpenAIAPIKey = ""
	if err := c.ValidatePipeline(); err != nil {
		t.Fatalf("batch config should not need OpenAI key: %v", err)
	}
}

func TestSummaryMasksSecrets(t *testing.T) {
	c := validConfig()
	c.OpenAIAPIKey = "sk-abcdefghijkl"
	s := c.Summary()
	if got := s["openai_api_key"].(string); strings.Contains(got, "ghijkl") {
		t.Errorf("key not masked: %q", got)
	}
}
