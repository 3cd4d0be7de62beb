package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config is the service configuration.
type Config struct {
	Logger     Logger     `yaml:"logger"`
	HTTPClient HTTPClient `yaml:"http_client"`
	GitLab     GitLab     `yaml:"gitlab"`
	Server     Server     `yaml:"server"`
	Scan       Scan       `yaml:"scan"`
}

type Logger struct {
	Level           string `yaml:"level"`
	JSONFormat      *bool  `yaml:"json_format"`
	DisableTime     *bool  `yaml:"disable_time"`
	IncludeLocation *bool  `yaml:"include_location"`
}

type HTTPClient struct {
	Debug            *bool           `yaml:"debug"`
	RetryCount       int             `yaml:"retry_count"`
	RetryWaitTime    time.Duration   `yaml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration   `yaml:"retry_max_wait_time"`
	Timeout          time.Duration   `yaml:"timeout"`
	TLSClientConfig  TLSClientConfig `yaml:"tls_client_config"`
	Proxy            Proxy           `yaml:"proxy"`
}

type TLSClientConfig struct {
	Verify *bool `yaml:"verify"`
}

type Proxy struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type GitLab struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	WebhookSecret  string `yaml:"webhook_secret"`
	RepoConfigPath string `yaml:"repo_config_path"`
	RepoConfigRef  string `yaml:"repo_config_ref"`
	StatusName     string `yaml:"status_name"`
}

type Server struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Scan struct {
	Rules              string         `yaml:"rules"`
	Workers            int            `yaml:"workers"`
	EventTimeout       time.Duration  `yaml:"event_timeout"`
	RepoConfigCacheTTL *time.Duration `yaml:"repo_config_cache_ttl"`
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// ValidateConfigPath checks that path exists and is not a directory.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadConfig reads the configuration file, applies environment overrides
// and fills defaults. A missing file is not an error: defaults and
// environment variables are used instead.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		err := LoadYAML(configPath, cfg)
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist):
		case errors.Is(err, io.EOF):
			// empty file
		default:
			return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
		}
	}

	UpdateConfigFromEnv(cfg)
	ApplyDefaults(cfg)
	return cfg, nil
}

// UpdateConfigFromEnv sets configuration values from environment variables, if they are set.
// The SECRETHOOK_* variables win over the historical names.
func UpdateConfigFromEnv(cfg *Config) {
	envVars := []struct {
		name  string
		value *string
	}{
		{"GITLAB_URI", &cfg.GitLab.URL},
		{"SECRETHOOK_GITLAB_URL", &cfg.GitLab.URL},
		{"GITLAB_TOKEN", &cfg.GitLab.Token},
		{"SECRETHOOK_GITLAB_TOKEN", &cfg.GitLab.Token},
		{"SECRETHOOK_WEBHOOK_SECRET", &cfg.GitLab.WebhookSecret},
		{"CONFIG_LOCATION", &cfg.Scan.Rules},
		{"SECRETHOOK_RULES", &cfg.Scan.Rules},
		{"SECRETHOOK_LISTEN", &cfg.Server.Listen},
	}

	for _, env := range envVars {
		if v := os.Getenv(env.name); v != "" {
			*env.value = v
		}
	}
}

// ApplyDefaults fills every unset value with its default.
func ApplyDefaults(cfg *Config) {
	cfg.GitLab.RepoConfigPath = SetThen(cfg.GitLab.RepoConfigPath, DefaultRepoConfigPath)
	cfg.GitLab.RepoConfigRef = SetThen(cfg.GitLab.RepoConfigRef, DefaultRepoConfigRef)
	cfg.GitLab.StatusName = SetThen(cfg.GitLab.StatusName, DefaultStatusName)

	cfg.Server.Listen = SetThen(cfg.Server.Listen, DefaultListen)
	cfg.Server.ReadTimeout = SetThen(cfg.Server.ReadTimeout, DefaultServerReadTimeout)
	cfg.Server.WriteTimeout = SetThen(cfg.Server.WriteTimeout, DefaultServerWriteTimeout)
	cfg.Server.ShutdownTimeout = SetThen(cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)

	cfg.Scan.Workers = SetThen(cfg.Scan.Workers, DefaultWorkers)
	cfg.Scan.EventTimeout = SetThen(cfg.Scan.EventTimeout, DefaultEventTimeout)
	if cfg.Scan.RepoConfigCacheTTL == nil {
		ttl := DefaultRepoConfigCacheTTL
		cfg.Scan.RepoConfigCacheTTL = &ttl
	}
}

// RepoConfigCacheTTL returns the per-project ruleset cache TTL; zero disables caching.
func RepoConfigCacheTTL(cfg *Config) time.Duration {
	if cfg == nil || cfg.Scan.RepoConfigCacheTTL == nil {
		return DefaultRepoConfigCacheTTL
	}
	return *cfg.Scan.RepoConfigCacheTTL
}
