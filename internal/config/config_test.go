package config

import (
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Backends: []BackendConfig{
			{Kind: "local", Host: "localhost", Port: 11434, Model: "llama3"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_NoBackends(t *testing.T) {
	cfg := validConfig()
	cfg.Backends = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when no backend is configured")
	}
}

func TestValidate_CloudBackendWithoutKey(t *testing.T) {
	cfg := validConfig()
	cfg.Backends = append(cfg.Backends, BackendConfig{
		Kind: "cloud", BaseURL: "https://api.example.com/v1", Model: "gpt-4o-mini",
	})

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for cloud backend without api_key")
	}
}

func TestValidate_UnknownBackendKind(t *testing.T) {
	cfg := validConfig()
	cfg.Backends[0].Kind = "edge"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backend kind")
	}
}

func TestValidate_RedisDriverRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Driver = "redis"
	cfg.Storage.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis driver without addrs")
	}
}

func TestValidate_InvalidEmbeddingSource(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Source = "result"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid embedding source")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Backends: []BackendConfig{
			{Kind: "local", Host: "localhost"},
		},
	}
	cfg.ApplyDefaults()

	if cfg.Storage.Driver != "file" {
		t.Errorf("expected default driver file, got %q", cfg.Storage.Driver)
	}
	if cfg.Storage.KeyPrefix != "cortex:" {
		t.Errorf("expected default key prefix, got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("expected default dimensions 768, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.Source != "output" {
		t.Errorf("expected default embed source output, got %q", cfg.Embedding.Source)
	}
	if cfg.Backends[0].TimeoutSec != 30 {
		t.Errorf("expected default backend timeout 30, got %d", cfg.Backends[0].TimeoutSec)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("CORTEX_TEST_KEY", "sk-123")

	in := []byte("api_key: ${CORTEX_TEST_KEY}\nhost: ${CORTEX_TEST_MISSING:-localhost}\n")
	out := string(expandEnvVars(in))

	want := "api_key: sk-123\nhost: localhost\n"
	if out != want {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", out, want)
	}
}
