package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CTF_CLIENT_"

var ErrInvalid = errors.New("invalid config")

type Config struct {
	API           APIConfig   `yaml:"api"`
	Orchestrator  OrchConfig  `yaml:"orchestrator"`
	Auth          AuthConfig  `yaml:"auth"`
	Observability ObsConfig   `yaml:"observability"`
	UI            UIConfig    `yaml:"ui"`
	Store         StoreConfig `yaml:"store"`
}

type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

type OrchConfig struct {
	// BaseURL defaults to the platform API base URL.
	BaseURL        string `yaml:"base_url"`
	InstancesPath  string `yaml:"instances_path"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AuthConfig struct {
	Mode       string `yaml:"mode"`
	Token      string `yaml:"token"`
	HMACSecret string `yaml:"hmac_secret"`
}

type ObsConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsFile string `yaml:"metrics_file"`
}

type UIConfig struct {
	ToastSeconds   int `yaml:"toast_seconds"`
	EllipsisMillis int `yaml:"ellipsis_millis"`
}

type StoreConfig struct {
	CacheFile string `yaml:"cache_file"`
}

func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8000/api/v1",
			TimeoutSeconds: 15,
			UserAgent:      "ctf-client/dev",
		},
		Orchestrator: OrchConfig{
			InstancesPath:  "/instances",
			TimeoutSeconds: 60,
		},
		Auth:          AuthConfig{Mode: "none"},
		Observability: ObsConfig{LogLevel: "info"},
		UI:            UIConfig{ToastSeconds: 4, EllipsisMillis: 400},
	}
}

// Load builds the config from defaults, the YAML file at path (or
// CTF_CLIENT_CONFIG_FILE), a .env file and CTF_CLIENT_* variables, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := loadDotEnv(os.Getenv(envPrefix + "ENV_FILE")); err != nil {
		return cfg, err
	}
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG_FILE")
	}
	if path != "" {
		if err := loadYAML(&cfg, path); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	if cfg.Orchestrator.BaseURL == "" {
		cfg.Orchestrator.BaseURL = cfg.API.BaseURL
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadDotEnv reads file (default .env) into the process environment without
// overriding variables that are already set. A missing default file is fine.
func loadDotEnv(file string) error {
	explicit := file != ""
	if !explicit {
		file = ".env"
	}
	if _, err := os.Stat(file); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func loadYAML(cfg *Config, file string) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.API.BaseURL, envPrefix+"API_BASE_URL")
	setInt(&cfg.API.TimeoutSeconds, envPrefix+"API_TIMEOUT_SECONDS")
	setString(&cfg.API.UserAgent, envPrefix+"USER_AGENT")

	setString(&cfg.Orchestrator.BaseURL, envPrefix+"ORCHESTRATOR_BASE_URL")
	setString(&cfg.Orchestrator.InstancesPath, envPrefix+"ORCHESTRATOR_INSTANCES_PATH")
	setInt(&cfg.Orchestrator.TimeoutSeconds, envPrefix+"ORCHESTRATOR_TIMEOUT_SECONDS")

	setString(&cfg.Auth.Mode, envPrefix+"AUTH_MODE")
	setString(&cfg.Auth.Token, envPrefix+"TOKEN")
	setString(&cfg.Auth.HMACSecret, envPrefix+"HMAC_SECRET")

	setString(&cfg.Observability.LogLevel, envPrefix+"LOG_LEVEL")
	setString(&cfg.Observability.LogFile, envPrefix+"LOG_FILE")
	setString(&cfg.Observability.MetricsFile, envPrefix+"METRICS_FILE")

	setInt(&cfg.UI.ToastSeconds, envPrefix+"TOAST_SECONDS")
	setInt(&cfg.UI.EllipsisMillis, envPrefix+"ELLIPSIS_MILLIS")

	setString(&cfg.Store.CacheFile, envPrefix+"CACHE_FILE")
}

func validate(cfg Config) error {
	if err := validateURL("api.base_url", cfg.API.BaseURL); err != nil {
		return err
	}
	if err := validateURL("orchestrator.base_url", cfg.Orchestrator.BaseURL); err != nil {
		return err
	}
	if cfg.API.TimeoutSeconds <= 0 || cfg.Orchestrator.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: timeouts must be > 0", ErrInvalid)
	}
	mode := strings.ToLower(cfg.Auth.Mode)
	switch mode {
	case "none", "token", "bearer", "hmac":
	default:
		return fmt.Errorf("%w: auth mode %q", ErrInvalid, cfg.Auth.Mode)
	}
	if (mode == "token" || mode == "bearer") && cfg.Auth.Token == "" {
		return fmt.Errorf("%w: %sTOKEN is required in %s mode", ErrInvalid, envPrefix, mode)
	}
	if mode == "hmac" && cfg.Auth.HMACSecret == "" {
		return fmt.Errorf("%w: %sHMAC_SECRET is required in hmac mode", ErrInvalid, envPrefix)
	}
	switch strings.ToLower(cfg.Observability.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, cfg.Observability.LogLevel)
	}
	if cfg.UI.ToastSeconds <= 0 || cfg.UI.EllipsisMillis <= 0 {
		return fmt.Errorf("%w: ui intervals must be > 0", ErrInvalid)
	}
	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, field)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL", ErrInvalid, field)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Auth.Token != "" {
		c.Auth.Token = "********"
	}
	if c.Auth.HMACSecret != "" {
		c.Auth.HMACSecret = "********"
	}
	return c
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*dst = p
		}
	}
}
