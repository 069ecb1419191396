package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "TESTIMONY"

var (
	once       sync.Once
	initErr    error
	configFile = "./config/settings.yaml"
)

// SetConfigFile overrides the settings file read by Init.
// Must be called before Init.
func SetConfigFile(path string) {
	if path != "" {
		configFile = path
	}
}

// Init initializes the configuration system
// This should be called once at application startup
func Init() error {
	once.Do(func() {
		// A missing .env is normal outside local development
		_ = godotenv.Load()

		setDefaults()

		viper.SetEnvPrefix(envPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()
		bindProviderKeys()

		configPath := filepath.Clean(configFile)
		viper.SetConfigFile(configPath)

		if err := viper.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				initErr = fmt.Errorf("error reading config file %s: %w", configPath, err)
				return
			}
		}

		if err := validate(); err != nil {
			initErr = fmt.Errorf("invalid configuration: %w", err)
		}
	})

	return initErr
}

// Reset clears loaded state so Init can run again. Used in tests.
func Reset() {
	viper.Reset()
	once = sync.Once{}
	initErr = nil
	configFile = "./config/settings.yaml"
}

// bindProviderKeys lets the conventional provider variables populate the
// api_key settings when no TESTIMONY_* override is set.
func bindProviderKeys() {
	_ = viper.BindEnv("transcription.api_key", envPrefix+"_TRANSCRIPTION_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("summary.api_key", envPrefix+"_SUMMARY_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("embeddings.api_key", envPrefix+"_EMBEDDINGS_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("summary.gemini_api_key", envPrefix+"_SUMMARY_GEMINI_API_KEY", "GEMINI_API_KEY")
}

// GetConfig returns the current configuration as a struct
// Init() must be called before using this
func GetConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.Ingestion.normalizeOrigins()
	return &config, nil
}

// normalizeOrigins lower-cases the origin list and default. Stored origins
// are always lower case.
func (c *IngestionConfig) normalizeOrigins() {
	for i, o := range c.Origins {
		c.Origins[i] = strings.ToLower(strings.TrimSpace(o))
	}
	c.DefaultOrigin = strings.ToLower(strings.TrimSpace(c.DefaultOrigin))
}

// Get returns a config value by key using Viper directly
func Get(key string) any {
	return viper.Get(key)
}

// GetString returns a string config value
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a time.Duration config value
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// validate validates the configuration using Viper values
func validate() error {
	port := viper.GetInt("server.port")
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %d", port)
	}

	origins := viper.GetStringSlice("ingestion.origins")
	if len(origins) == 0 {
		return fmt.Errorf("ingestion.origins must list at least one origin")
	}
	if def := viper.GetString("ingestion.default_origin"); !slices.ContainsFunc(origins, func(o string) bool {
		return strings.EqualFold(strings.TrimSpace(o), strings.TrimSpace(def))
	}) {
		return fmt.Errorf("default origin %q is not one of %v", def, origins)
	}

	maxTokens := viper.GetInt("chunking.max_tokens")
	overlap := viper.GetInt("chunking.overlap")
	if maxTokens <= 0 {
		return fmt.Errorf("chunking.max_tokens must be positive, got %d", maxTokens)
	}
	if overlap < 0 || overlap >= maxTokens {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", maxTokens, overlap)
	}

	// Auto-correct invalid worker count
	if viper.GetInt("processing.workers") <= 0 {
		viper.Set("processing.workers", 2)
	}

	if viper.GetInt("embeddings.batch_size") <= 0 {
		viper.Set("embeddings.batch_size", 64)
	}

	if viper.GetString("environment") == "production" && viper.GetString("transcription.api_key") == "" {
		return fmt.Errorf("transcription.api_key is required in production")
	}

	return nil
}

// Validate validates a Config struct (for testing)
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	c.Ingestion.normalizeOrigins()
	if len(c.Ingestion.Origins) > 0 && !slices.Contains(c.Ingestion.Origins, c.Ingestion.DefaultOrigin) {
		return fmt.Errorf("default origin %q is not one of %v", c.Ingestion.DefaultOrigin, c.Ingestion.Origins)
	}

	if c.Chunking.MaxTokens > 0 && c.Chunking.Overlap >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunking overlap %d must be smaller than max tokens %d", c.Chunking.Overlap, c.Chunking.MaxTokens)
	}

	if c.Processing.Workers <= 0 {
		c.Processing.Workers = 2
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("environment", "development")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 60*time.Second)
	viper.SetDefault("server.write_timeout", 60*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.max_header_bytes", 1048576)
	viper.SetDefault("server.embedded_workers", true)

	// Database defaults
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "./data/testimonies.db")
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("database.max_idle_connections", 5)
	viper.SetDefault("database.connection_max_lifetime", 30*time.Minute)
	viper.SetDefault("database.verbose", false)

	// Processing defaults
	viper.SetDefault("processing.workers", 2)
	viper.SetDefault("processing.poll_interval", 2*time.Second)
	viper.SetDefault("processing.job_timeout", 30*time.Minute)
	viper.SetDefault("processing.max_retries", 3)
	viper.SetDefault("processing.retry_base_delay", 60*time.Second)
	viper.SetDefault("processing.stale_job_after", 2*time.Hour)
	viper.SetDefault("processing.job_retention_days", 30)
	viper.SetDefault("processing.ffmpeg_path", "ffmpeg")
	viper.SetDefault("processing.ffprobe_path", "ffprobe")
	viper.SetDefault("processing.ffmpeg_timeout", 2*time.Minute)
	viper.SetDefault("processing.fingerprint_window", 30*time.Second)

	// Ingestion defaults
	viper.SetDefault("ingestion.origins", []string{"lausanne", "geneve", "neuchatel", "fribourg", "sion"})
	viper.SetDefault("ingestion.default_origin", "lausanne")
	viper.SetDefault("ingestion.max_upload_bytes", 10*1024*1024)
	viper.SetDefault("ingestion.storage_prefix", "testimony_audio")

	// Transcription defaults
	viper.SetDefault("transcription.api_url", "https://api.openai.com/v1/audio/transcriptions")
	viper.SetDefault("transcription.model", "whisper-1")
	viper.SetDefault("transcription.language", "es")
	viper.SetDefault("transcription.timeout", 10*time.Minute)

	// Summary defaults
	viper.SetDefault("summary.provider", "openai")
	viper.SetDefault("summary.api_url", "https://api.openai.com/v1/chat/completions")
	viper.SetDefault("summary.model", "gpt-4o-mini")
	viper.SetDefault("summary.temperature", 0.3)
	viper.SetDefault("summary.max_tokens", 400)
	viper.SetDefault("summary.prompt_file", "")
	viper.SetDefault("summary.timeout", 2*time.Minute)

	// Embedding defaults
	viper.SetDefault("embeddings.api_url", "https://api.openai.com/v1/embeddings")
	viper.SetDefault("embeddings.model", "text-embedding-3-small")
	viper.SetDefault("embeddings.dimensions", 1536)
	viper.SetDefault("embeddings.batch_size", 64)
	viper.SetDefault("embeddings.requests_per_second", 5.0)
	viper.SetDefault("embeddings.timeout", 2*time.Minute)
	viper.SetDefault("embeddings.query_cache_mb", 16)
	viper.SetDefault("embeddings.query_cache_ttl", time.Hour)

	// Chunking defaults
	viper.SetDefault("chunking.max_tokens", 400)
	viper.SetDefault("chunking.overlap", 2)
	viper.SetDefault("chunking.tokenizer", "words")

	// Storage defaults
	viper.SetDefault("storage.backend", "filesystem")
	viper.SetDefault("storage.base_dir", "./data/objects")
	viper.SetDefault("storage.temp_dir", "./tmp")
	viper.SetDefault("storage.max_temp_age", 6*time.Hour)
	viper.SetDefault("storage.cleanup_interval", 1*time.Hour)
	viper.SetDefault("storage.s3_region", "eu-central-1")

	// Watcher defaults
	viper.SetDefault("watcher.inbox_dir", "./inbox")
	viper.SetDefault("watcher.concurrency", 2)
	viper.SetDefault("watcher.default_origin", "lausanne")
	viper.SetDefault("watcher.settle_delay", 2*time.Second)

	// Rate limiting defaults (requests per second per client)
	viper.SetDefault("rate_limiting.enabled", true)
	viper.SetDefault("rate_limiting.endpoints", map[string]int{
		"upload":  2,
		"search":  5,
		"default": 10,
	})

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
