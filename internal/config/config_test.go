package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OllamaURL != "http://localhost:11434" {
		t.Errorf("OllamaURL = %q", cfg.OllamaURL)
	}
	if cfg.ChunkBytes != 200000 {
		t.Errorf("ChunkBytes = %d", cfg.ChunkBytes)
	}
	if cfg.RequestTimeout != 5*time.Minute {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_URL", "http://model-host:11434")
	t.Setenv("SQLDIGEST_CHUNK_BYTES", "50000")
	t.Setenv("SQLDIGEST_REQUEST_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OllamaURL != "http://model-host:11434" {
		t.Errorf("OllamaURL = %q", cfg.OllamaURL)
	}
	if cfg.ChunkBytes != 50000 {
		t.Errorf("ChunkBytes = %d", cfg.ChunkBytes)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	bad := cfg
	bad.ChunkBytes = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero chunk size should fail validation")
	}

	bad = cfg
	bad.Model = ""
	if err := bad.Validate(); err == nil {
		t.Error("empty model should fail validation")
	}
}
