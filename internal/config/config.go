package config

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Log       LogConfig
	Embedding EmbeddingConfig
	Ollama    OllamaConfig
	Quality   QualityConfig
	Ingest    IngestConfig
	Search    SearchConfig
}

type ServerConfig struct {
	Port                int
	Bind                string
	IngestRatePerMinute int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type EmbeddingConfig struct {
	Provider   string
	Dimensions int
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
}

type QualityConfig struct {
	HealthyThreshold   float64
	RevalidateInterval string
}

type IngestConfig struct {
	ChunkSize      int
	MaxUploadBytes int
}

type SearchConfig struct {
	MaxLimit int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:                8000,
			Bind:                "127.0.0.1",
			IngestRatePerMinute: 30,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Dimensions: 384,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "all-minilm",
		},
		Quality: QualityConfig{
			HealthyThreshold:   90,
			RevalidateInterval: "1h",
		},
		Ingest: IngestConfig{
			ChunkSize:      500,
			MaxUploadBytes: 32 << 20,
		},
		Search: SearchConfig{
			MaxLimit: 100,
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/tenderscope/config.json and applies TENDERSCOPE_*
// environment overrides on top. The result is validated.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.IngestRatePerMinute <= 0 {
		errs = append(errs, fmt.Errorf("server.ingest_rate_per_minute must be positive"))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, fmt.Errorf("storage.data_dir must not be empty"))
	}
	switch c.Embedding.Provider {
	case "hash", "ollama":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q must be hash or ollama", c.Embedding.Provider))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimensions must be positive"))
	}
	if c.Embedding.Provider == "ollama" && c.Ollama.EmbedModel == "" {
		errs = append(errs, fmt.Errorf("ollama.embed_model is required for the ollama provider"))
	}
	if c.Quality.HealthyThreshold <= 0 || c.Quality.HealthyThreshold > 100 {
		errs = append(errs, fmt.Errorf("quality.healthy_threshold %v must be in (0,100]", c.Quality.HealthyThreshold))
	}
	if d, err := time.ParseDuration(c.Quality.RevalidateInterval); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("quality.revalidate_interval %q is not a positive duration", c.Quality.RevalidateInterval))
	}
	if c.Ingest.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.chunk_size must be positive"))
	}
	if c.Ingest.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("ingest.max_upload_bytes must be positive"))
	}
	if c.Search.MaxLimit <= 0 {
		errs = append(errs, fmt.Errorf("search.max_limit must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RevalidateEvery returns the parsed revalidation interval, or one hour if
// the setting does not parse.
func (c Config) RevalidateEvery() time.Duration {
	d, err := time.ParseDuration(c.Quality.RevalidateInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
