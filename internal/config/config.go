// Package config holds environment-driven settings. Flags on the CLI
// override these per invocation.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	// Ollama endpoint
	OllamaURL string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	Model     string `env:"SQLDIGEST_MODEL" envDefault:"qwen2.5-coder:14b"`

	// A local model can take minutes on a large fragment.
	RequestTimeout time.Duration `env:"SQLDIGEST_REQUEST_TIMEOUT" envDefault:"5m"`
	MaxAttempts    int           `env:"SQLDIGEST_MAX_ATTEMPTS" envDefault:"3"`

	// Chunking
	ChunkBytes int `env:"SQLDIGEST_CHUNK_BYTES" envDefault:"200000"`

	// Output
	OutDir string `env:"SQLDIGEST_OUTDIR" envDefault:"./sqldigest-out"`

	// Results server
	ServeAddr string `env:"SQLDIGEST_SERVE_ADDR" envDefault:":8090"`
	APIKey    string `env:"SQLDIGEST_API_KEY"`

	// PDF
	PDFFallbackPdftotext bool `env:"SQLDIGEST_PDF_FALLBACK" envDefault:"true"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.OllamaURL == "" {
		return fmt.Errorf("OLLAMA_URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("SQLDIGEST_MODEL is required")
	}
	if c.ChunkBytes <= 0 {
		return fmt.Errorf("SQLDIGEST_CHUNK_BYTES must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("SQLDIGEST_MAX_ATTEMPTS must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("SQLDIGEST_REQUEST_TIMEOUT must be positive")
	}
	return nil
}
