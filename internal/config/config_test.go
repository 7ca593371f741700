package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
source:
  base_url: https://mirror.nepjol.test
http:
  user_agent: test-agent
  delay_seconds: 0.5
  timeout_seconds: 10
import:
  institution_name: Tribhuvan University
  max_articles: 3
  download_pdfs: false
catalog:
  backend: postgres
status:
  backend: postgres
  ttl_hours: 2
db:
  dsn: postgres://localhost/nepjol
storage:
  backend: s3
  s3_bucket: media
  prefix: imports
schedule:
  cron: "0 3 * * *"
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Source.BaseURL != "https://mirror.nepjol.test" || cfg.Source.IndexPath != "/index.php/index" {
		t.Fatalf("unexpected source config: %+v", cfg.Source)
	}
	if got := cfg.Delay(); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms delay, got %v", got)
	}
	if got := cfg.StatusTTL(); got != 2*time.Hour {
		t.Fatalf("expected 2h ttl, got %v", got)
	}
	opts := cfg.RunDefaults()
	if opts.MaxArticles != 3 || opts.DownloadPDFs || !opts.SkipDuplicates {
		t.Fatalf("unexpected run defaults: %+v", opts)
	}
	if cfg.Import.InstitutionName != "Tribhuvan University" {
		t.Fatalf("expected institution override, got %q", cfg.Import.InstitutionName)
	}
	if cfg.Storage.Backend != "s3" || cfg.Storage.S3Bucket != "media" || cfg.Storage.Prefix != "imports" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Schedule.Cron != "0 3 * * *" {
		t.Fatalf("expected cron schedule, got %q", cfg.Schedule.Cron)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Source.BaseURL != "https://www.nepjol.info" {
		t.Fatalf("unexpected base url %q", cfg.Source.BaseURL)
	}
	if cfg.Import.InstitutionName != DefaultInstitutionName {
		t.Fatalf("expected default institution, got %q", cfg.Import.InstitutionName)
	}
	if cfg.HTTP.MaxPageBytes != 10<<20 || cfg.HTTP.MaxDownloadBytes != 50<<20 || cfg.HTTP.DownloadTimeoutSeconds != 60 {
		t.Fatalf("unexpected http defaults: %+v", cfg.HTTP)
	}
	if cfg.Catalog.Backend != BackendMemory || cfg.Status.Backend != BackendMemory {
		t.Fatalf("expected memory backends by default")
	}
	opts := cfg.RunDefaults()
	if !opts.SkipDuplicates || !opts.DownloadPDFs || opts.TestMode {
		t.Fatalf("unexpected default run options: %+v", opts)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NEPJOL_SERVER_PORT", "7070")
	t.Setenv("NEPJOL_IMPORT_MAX_JOURNALS", "2")
	t.Setenv("NEPJOL_PUBSUB_PROJECT_ID", "proj")
	t.Setenv("NEPJOL_PUBSUB_TOPIC_NAME", "imports")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 || cfg.Import.MaxJournals != 2 {
		t.Fatalf("expected env overrides, got %+v", cfg)
	}
	if cfg.PubSub.TopicName != "imports" {
		t.Fatalf("expected topic from env, got %q", cfg.PubSub.TopicName)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Server:  ServerConfig{Port: 8080},
			Source:  SourceConfig{BaseURL: "https://www.nepjol.info"},
			HTTP:    HTTPConfig{TimeoutSeconds: 30, DownloadTimeoutSeconds: 60},
			Status:  StatusConfig{Backend: BackendMemory},
			Catalog: CatalogConfig{Backend: BackendMemory},
			Import:  ImportConfig{InstitutionName: DefaultInstitutionName},
			Storage: StorageConfig{Backend: "memory"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"base url", func(c *Config) { c.Source.BaseURL = "" }, "source.base_url"},
		{"delay", func(c *Config) { c.HTTP.DelaySeconds = -1 }, "delay_seconds"},
		{"timeouts", func(c *Config) { c.HTTP.DownloadTimeoutSeconds = 0 }, "timeouts"},
		{"limits", func(c *Config) { c.Import.MaxArticles = -1 }, "limits"},
		{"size limits", func(c *Config) { c.HTTP.MaxDownloadBytes = -1 }, "size limits"},
		{"blank institution", func(c *Config) { c.Import.InstitutionName = "  " }, "institution_name"},
		{"postgres without dsn", func(c *Config) { c.Catalog.Backend = BackendPostgres }, "db.dsn"},
		{"bad status backend", func(c *Config) { c.Status.Backend = "redis" }, "status.backend"},
		{"local without dir", func(c *Config) { c.Storage.Backend = "local" }, "base_dir"},
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = "gcs" }, "gcs_bucket"},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = "s3" }, "s3_bucket"},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "t" }, "project_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
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
