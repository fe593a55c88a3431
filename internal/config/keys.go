package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "TENDERSCOPE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.bind", typ: kString, env: "TENDERSCOPE_SERVER_BIND",
		apply:   func(cfg *Config, v any) { cfg.Server.Bind = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Bind },
	},
	{
		key: "server.ingest_rate_per_minute", typ: kInt, env: "TENDERSCOPE_SERVER_INGEST_RATE_PER_MINUTE",
		apply:   func(cfg *Config, v any) { cfg.Server.IngestRatePerMinute = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.IngestRatePerMinute },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TENDERSCOPE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "TENDERSCOPE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "embedding.provider", typ: kString, env: "TENDERSCOPE_EMBEDDING_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Embedding.Provider },
	},
	{
		key: "embedding.dimensions", typ: kInt, env: "TENDERSCOPE_EMBEDDING_DIMENSIONS",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Dimensions = v.(int) },
		extract: func(cfg Config) any { return cfg.Embedding.Dimensions },
	},
	{
		key: "ollama.base_url", typ: kString, env: "TENDERSCOPE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "TENDERSCOPE_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "quality.healthy_threshold", typ: kFloat, env: "TENDERSCOPE_QUALITY_HEALTHY_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Quality.HealthyThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Quality.HealthyThreshold },
	},
	{
		key: "quality.revalidate_interval", typ: kString, env: "TENDERSCOPE_QUALITY_REVALIDATE_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Quality.RevalidateInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Quality.RevalidateInterval },
	},
	{
		key: "ingest.chunk_size", typ: kInt, env: "TENDERSCOPE_INGEST_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Ingest.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.ChunkSize },
	},
	{
		key: "ingest.max_upload_bytes", typ: kInt, env: "TENDERSCOPE_INGEST_MAX_UPLOAD_BYTES",
		apply:   func(cfg *Config, v any) { cfg.Ingest.MaxUploadBytes = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.MaxUploadBytes },
	},
	{
		key: "search.max_limit", typ: kInt, env: "TENDERSCOPE_SEARCH_MAX_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Search.MaxLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.MaxLimit },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
