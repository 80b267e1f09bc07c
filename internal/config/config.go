package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	VLM       VLMConfig       `mapstructure:"vlm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port        int        `mapstructure:"port"`
	Mode        string     `mapstructure:"mode"`
	MaxUploadMB int64      `mapstructure:"max_upload_mb"`
	CORS        CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type VLMConfig struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CacheConfig configures the Redis embedding cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type SourcesConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
	GoogleShopping SiteConfig    `mapstructure:"google_shopping"`
	Amazon         SiteConfig    `mapstructure:"amazon"`
}

// SiteConfig configures one shopping-site scraper.
type SiteConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BaseURL    string `mapstructure:"base_url"`
	MaxResults int    `mapstructure:"max_results"`
}

// BreakerConfig configures the per-source circuit breaker.
type BreakerConfig struct {
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	OpenTimeout  time.Duration `mapstructure:"open_timeout"`
}

type FetchConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Retries  uint64        `mapstructure:"retries"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

type PipelineConfig struct {
	CandidateWorkers int  `mapstructure:"candidate_workers"`
	Dedupe           bool `mapstructure:"dedupe"`
	LogTop           int  `mapstructure:"log_top"`
}

// WorkspaceConfig controls per-request scratch directories and their sweeper.
type WorkspaceConfig struct {
	Root          string        `mapstructure:"root"`
	MaxAge        time.Duration `mapstructure:"max_age"`
	MaxEntries    int           `mapstructure:"max_entries"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ArtifactsConfig controls the per-source result sidecars.
type ArtifactsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Prefix       string `mapstructure:"prefix"`
	PurgeOnSweep bool   `mapstructure:"purge_on_sweep"` // delete sidecars with their workspace
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // local, s3, r2, minio
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	LocalDir  string `mapstructure:"local_dir"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configs/config.yaml (or configPath) and the environment.
// A missing config file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	_ = v.BindEnv("vlm.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("vlm.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("vlm.model", "VLM_MODEL")
	_ = v.BindEnv("embedding.api_key", "JINA_API_KEY")
	_ = v.BindEnv("cache.addr", "REDIS_ADDR")
	_ = v.BindEnv("cache.password", "REDIS_PASSWORD")
	_ = v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	_ = v.BindEnv("workspace.root", "WORKSPACE_ROOT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Embedding.ResolveEnvVars()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload_mb", 16)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("vlm.provider", "openai")
	v.SetDefault("vlm.model", "gpt-4o")
	v.SetDefault("vlm.base_url", "https://api.openai.com/v1")
	v.SetDefault("vlm.timeout", 60*time.Second)

	v.SetDefault("embedding.name", "local-grid")
	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.model", "grid-rgb-16")
	v.SetDefault("embedding.dimensions", 768)
	v.SetDefault("embedding.input_size", 224)
	v.SetDefault("embedding.base_url", "https://api.jina.ai/v1")
	v.SetDefault("embedding.api_key_env", "JINA_API_KEY")
	v.SetDefault("embedding.workers", 4)
	v.SetDefault("embedding.timeout", 30*time.Second)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("sources.timeout", 30*time.Second)
	v.SetDefault("sources.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("sources.breaker.min_requests", 5)
	v.SetDefault("sources.breaker.failure_ratio", 0.5)
	v.SetDefault("sources.breaker.open_timeout", 60*time.Second)
	v.SetDefault("sources.google_shopping.enabled", true)
	v.SetDefault("sources.google_shopping.base_url", "https://www.google.com")
	v.SetDefault("sources.google_shopping.max_results", 40)
	v.SetDefault("sources.amazon.enabled", true)
	v.SetDefault("sources.amazon.base_url", "https://www.amazon.in")
	v.SetDefault("sources.amazon.max_results", 20)

	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.retries", 2)
	v.SetDefault("fetch.max_bytes", 10<<20)

	v.SetDefault("pipeline.candidate_workers", 8)
	v.SetDefault("pipeline.dedupe", false)
	v.SetDefault("pipeline.log_top", 10)

	v.SetDefault("workspace.root", "./data/requests")
	v.SetDefault("workspace.max_age", time.Hour)
	v.SetDefault("workspace.max_entries", 200)
	v.SetDefault("workspace.stale_after", 10*time.Minute)
	v.SetDefault("workspace.sweep_interval", 5*time.Minute)

	v.SetDefault("artifacts.enabled", true)
	v.SetDefault("artifacts.prefix", "results")
	v.SetDefault("artifacts.purge_on_sweep", true)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_dir", "./data/artifacts")
	v.SetDefault("storage.bucket", "stylematch")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate returns the first configuration problem found, or nil.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if c.Pipeline.CandidateWorkers <= 0 {
		return fmt.Errorf("pipeline.candidate_workers must be positive")
	}
	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root is required")
	}
	if !c.Sources.GoogleShopping.Enabled && !c.Sources.Amazon.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}
	switch c.Storage.Type {
	case "local", "s3", "r2", "minio":
	default:
		return fmt.Errorf("storage.type %q is not supported", c.Storage.Type)
	}
	return nil
}
