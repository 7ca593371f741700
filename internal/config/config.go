// Package config loads and validates importer configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

// Backend names shared by the catalog and status sections.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// DefaultInstitutionName is the affiliation given to imported authors whose
// page lists none, until an operator sets import.institution_name.
const DefaultInstitutionName = "Unaffiliated"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Source   SourceConfig   `mapstructure:"source"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Import   ImportConfig   `mapstructure:"import"`
	Status   StatusConfig   `mapstructure:"status"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SourceConfig points at the NepJOL installation to scrape.
type SourceConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	IndexPath string `mapstructure:"index_path"`
}

// HTTPConfig controls outbound fetch pacing and limits.
type HTTPConfig struct {
	UserAgent              string  `mapstructure:"user_agent"`
	DelaySeconds           float64 `mapstructure:"delay_seconds"`
	TimeoutSeconds         int     `mapstructure:"timeout_seconds"`
	DownloadTimeoutSeconds int     `mapstructure:"download_timeout_seconds"`
	MaxPageBytes           int     `mapstructure:"max_page_bytes"`
	MaxDownloadBytes       int     `mapstructure:"max_download_bytes"`
}

// ImportConfig holds defaults for run options.
type ImportConfig struct {
	InstitutionName string `mapstructure:"institution_name"`
	MaxJournals     int    `mapstructure:"max_journals"`
	MaxArticles     int    `mapstructure:"max_articles"`
	SkipDuplicates  bool   `mapstructure:"skip_duplicates"`
	DownloadPDFs    bool   `mapstructure:"download_pdfs"`
}

// StatusConfig selects where the run status record lives.
type StatusConfig struct {
	Backend  string `mapstructure:"backend"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// CatalogConfig selects the catalog store.
type CatalogConfig struct {
	Backend string `mapstructure:"backend"`
}

// StorageConfig sets the blob backend for covers and PDFs.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	BaseDir     string `mapstructure:"base_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3PathStyle bool   `mapstructure:"s3_path_style"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for run completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ScheduleConfig enables periodic runs in serve mode.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from .env, an optional file, and NEPJOL_* environment
// variables, in increasing order of precedence.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("NEPJOL")
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

// Every key gets a default, even an empty one, so AutomaticEnv can bind it
// during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("source.base_url", "https://www.nepjol.info")
	v.SetDefault("source.index_path", "/index.php/index")
	v.SetDefault("http.user_agent", "nepjol-importer/1.0")
	v.SetDefault("http.delay_seconds", 1.0)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.download_timeout_seconds", 60)
	v.SetDefault("http.max_page_bytes", 10<<20)
	v.SetDefault("http.max_download_bytes", 50<<20)
	v.SetDefault("import.institution_name", DefaultInstitutionName)
	v.SetDefault("import.max_journals", 0)
	v.SetDefault("import.max_articles", 0)
	v.SetDefault("import.skip_duplicates", true)
	v.SetDefault("import.download_pdfs", true)
	v.SetDefault("status.backend", BackendMemory)
	v.SetDefault("status.ttl_hours", 24)
	v.SetDefault("catalog.backend", BackendMemory)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.base_dir", "media")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "")
	v.SetDefault("storage.s3_endpoint", "")
	v.SetDefault("storage.s3_access_key", "")
	v.SetDefault("storage.s3_secret_key", "")
	v.SetDefault("storage.s3_path_style", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("schedule.cron", "")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.Source.BaseURL == "" {
		return errors.New("source.base_url is required")
	}
	if c.HTTP.DelaySeconds < 0 {
		return errors.New("http.delay_seconds must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 || c.HTTP.DownloadTimeoutSeconds <= 0 {
		return errors.New("http timeouts must be > 0")
	}
	if c.HTTP.MaxPageBytes < 0 || c.HTTP.MaxDownloadBytes < 0 {
		return errors.New("http size limits must be >= 0")
	}
	if c.Import.MaxJournals < 0 || c.Import.MaxArticles < 0 {
		return errors.New("import limits must be >= 0")
	}
	if strings.TrimSpace(c.Import.InstitutionName) == "" {
		return errors.New("import.institution_name must not be empty; it is the fallback author affiliation")
	}
	for name, backend := range map[string]string{"status.backend": c.Status.Backend, "catalog.backend": c.Catalog.Backend} {
		switch backend {
		case BackendMemory:
		case BackendPostgres:
			if c.DB.DSN == "" {
				return fmt.Errorf("db.dsn is required when %s is postgres", name)
			}
		default:
			return fmt.Errorf("%s must be memory or postgres, got %q", name, backend)
		}
	}
	switch c.Storage.Backend {
	case "memory":
	case "local":
		if c.Storage.BaseDir == "" {
			return errors.New("storage.base_dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return errors.New("storage.gcs_bucket is required for the gcs backend")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("storage.s3_bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return errors.New("pubsub.project_id is required when pubsub.topic_name is set")
	}
	return nil
}

// RunDefaults converts the import section into run options.
func (c Config) RunDefaults() nepjol.RunOptions {
	return nepjol.RunOptions{
		MaxJournals:    c.Import.MaxJournals,
		MaxArticles:    c.Import.MaxArticles,
		SkipDuplicates: c.Import.SkipDuplicates,
		DownloadPDFs:   c.Import.DownloadPDFs,
	}
}

// Delay is the pause between outbound requests.
func (c Config) Delay() time.Duration {
	return time.Duration(c.HTTP.DelaySeconds * float64(time.Second))
}

// StatusTTL is how long a status record outlives its last update.
func (c Config) StatusTTL() time.Duration {
	return time.Duration(c.Status.TTLHours) * time.Hour
}
