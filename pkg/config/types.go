package config

import "time"

// Config represents the complete application configuration
type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Processing    ProcessingConfig    `mapstructure:"processing"`
	Ingestion     IngestionConfig     `mapstructure:"ingestion"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Summary       SummaryConfig       `mapstructure:"summary"`
	Embeddings    EmbeddingsConfig    `mapstructure:"embeddings"`
	Chunking      ChunkingConfig      `mapstructure:"chunking"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Watcher       WatcherConfig       `mapstructure:"watcher"`
	RateLimiting  RateLimitConfig     `mapstructure:"rate_limiting"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	EmbeddedWorkers bool          `mapstructure:"embedded_workers"`
}

// DatabaseConfig contains database settings.
// Driver is "sqlite" (Path is the file) or "postgres" (DSN is used).
type DatabaseConfig struct {
	Driver                string        `mapstructure:"driver"`
	Path                  string        `mapstructure:"path"`
	DSN                   string        `mapstructure:"dsn"`
	MaxConnections        int           `mapstructure:"max_connections"`
	MaxIdleConnections    int           `mapstructure:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
	Verbose               bool          `mapstructure:"verbose"`
}

// ProcessingConfig contains worker and audio processing settings
type ProcessingConfig struct {
	Workers           int           `mapstructure:"workers"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	StaleJobAfter     time.Duration `mapstructure:"stale_job_after"`
	JobRetentionDays  int           `mapstructure:"job_retention_days"`
	FFmpegPath        string        `mapstructure:"ffmpeg_path"`
	FFprobePath       string        `mapstructure:"ffprobe_path"`
	FFmpegTimeout     time.Duration `mapstructure:"ffmpeg_timeout"`
	FingerprintWindow time.Duration `mapstructure:"fingerprint_window"`
}

// IngestionConfig contains upload validation settings
type IngestionConfig struct {
	Origins        []string `mapstructure:"origins"`
	DefaultOrigin  string   `mapstructure:"default_origin"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
	StoragePrefix  string   `mapstructure:"storage_prefix"`
}

// TranscriptionConfig contains speech-to-text provider settings
type TranscriptionConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	APIURL   string        `mapstructure:"api_url"`
	Model    string        `mapstructure:"model"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SummaryConfig contains language model settings for summaries
type SummaryConfig struct {
	Provider     string        `mapstructure:"provider"`
	APIKey       string        `mapstructure:"api_key"`
	APIURL       string        `mapstructure:"api_url"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	Model        string        `mapstructure:"model"`
	Temperature  float64       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	PromptFile   string        `mapstructure:"prompt_file"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// EmbeddingsConfig contains embedding provider settings
type EmbeddingsConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	APIURL            string        `mapstructure:"api_url"`
	Model             string        `mapstructure:"model"`
	Dimensions        int           `mapstructure:"dimensions"`
	BatchSize         int           `mapstructure:"batch_size"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
	QueryCacheMB      int64         `mapstructure:"query_cache_mb"`
	QueryCacheTTL     time.Duration `mapstructure:"query_cache_ttl"`
}

// ChunkingConfig contains transcript chunking settings
type ChunkingConfig struct {
	MaxTokens int    `mapstructure:"max_tokens"`
	Overlap   int    `mapstructure:"overlap"`
	Tokenizer string `mapstructure:"tokenizer"`
}

// StorageConfig contains object storage settings
type StorageConfig struct {
	Backend         string        `mapstructure:"backend"`
	BaseDir         string        `mapstructure:"base_dir"`
	TempDir         string        `mapstructure:"temp_dir"`
	MaxTempAge      time.Duration `mapstructure:"max_temp_age"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	S3Region        string        `mapstructure:"s3_region"`
	S3Bucket        string        `mapstructure:"s3_bucket"`
	S3Prefix        string        `mapstructure:"s3_prefix"`
}

// WatcherConfig contains inbox watcher settings
type WatcherConfig struct {
	InboxDir      string        `mapstructure:"inbox_dir"`
	Concurrency   int           `mapstructure:"concurrency"`
	DefaultOrigin string        `mapstructure:"default_origin"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
}

// RateLimitConfig contains per-client API rate limits
type RateLimitConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	Endpoints map[string]int `mapstructure:"endpoints"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
