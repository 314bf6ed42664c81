package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CTF_CLIENT_CONFIG_FILE", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Orchestrator.BaseURL != cfg.API.BaseURL {
		t.Fatalf("expected orchestrator to default to the api base url, got %q", cfg.Orchestrator.BaseURL)
	}
	if cfg.Orchestrator.InstancesPath != "/instances" || cfg.Auth.Mode != "none" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctf-client.yaml")
	yml := `
api:
  base_url: https://ctf.example.org/api/v1
  timeout_seconds: 5
orchestrator:
  base_url: https://orch.example.org
auth:
  mode: token
  token: from-yaml
ui:
  toast_seconds: 9
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CTF_CLIENT_TOKEN", "from-env")
	t.Setenv("CTF_CLIENT_ORCHESTRATOR_INSTANCES_PATH", "/api/v1/containers")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.BaseURL != "https://ctf.example.org/api/v1" || cfg.API.TimeoutSeconds != 5 {
		t.Fatalf("yaml not applied: %+v", cfg.API)
	}
	if cfg.Orchestrator.BaseURL != "https://orch.example.org" || cfg.Orchestrator.InstancesPath != "/api/v1/containers" {
		t.Fatalf("unexpected orchestrator config: %+v", cfg.Orchestrator)
	}
	if cfg.Auth.Token != "from-env" {
		t.Fatalf("env must override yaml, got %q", cfg.Auth.Token)
	}
	if cfg.UI.ToastSeconds != 9 || cfg.UI.EllipsisMillis != 400 {
		t.Fatalf("unexpected ui config: %+v", cfg.UI)
	}
}

func TestLoadConfigFileFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("observability:\n  log_level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CTF_CLIENT_CONFIG_FILE", path)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Fatalf("config file from env not read: %+v", cfg.Observability)
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "CTF_CLIENT_LOG_LEVEL=warn\nCTF_CLIENT_METRICS_FILE=/tmp/ctf_client.prom\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CTF_CLIENT_ENV_FILE", envFile)
	t.Setenv("CTF_CLIENT_LOG_LEVEL", "error")
	t.Cleanup(func() { _ = os.Unsetenv("CTF_CLIENT_METRICS_FILE") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Fatalf("process env must win over .env, got %q", cfg.Observability.LogLevel)
	}
	if cfg.Observability.MetricsFile != "/tmp/ctf_client.prom" {
		t.Fatalf(".env value not applied: %+v", cfg.Observability)
	}
}

func TestLoadMissingExplicitEnvFile(t *testing.T) {
	t.Setenv("CTF_CLIENT_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for missing explicit env file")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"relative url":      func(c *Config) { c.API.BaseURL = "/api/v1" },
		"unknown auth mode": func(c *Config) { c.Auth.Mode = "cookie" },
		"token missing":     func(c *Config) { c.Auth.Mode = "bearer" },
		"hmac secret":       func(c *Config) { c.Auth.Mode = "hmac" },
		"log level":         func(c *Config) { c.Observability.LogLevel = "loud" },
		"zero timeout":      func(c *Config) { c.API.TimeoutSeconds = 0 },
		"zero toast":        func(c *Config) { c.UI.ToastSeconds = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		cfg.Orchestrator.BaseURL = cfg.API.BaseURL
		mutate(&cfg)
		if err := validate(cfg); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Auth.Token = "secret-token"
	cfg.Auth.HMACSecret = "secret-hmac"
	r := cfg.Redacted()
	if r.Auth.Token == "secret-token" || r.Auth.HMACSecret == "secret-hmac" {
		t.Fatalf("secrets not redacted: %+v", r.Auth)
	}
	if cfg.Auth.Token != "secret-token" {
		t.Fatalf("redaction must not mutate the original")
	}
}
