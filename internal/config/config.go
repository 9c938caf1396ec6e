package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

const (
	FileName           = "sprintline.yml"
	DefaultSystemActor = "system-task"
)

// Config models sprintline.yml.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Auth     AuthConfig      `yaml:"auth"`
	Tasks    TasksConfig     `yaml:"tasks"`
	History  HistoryConfig   `yaml:"history"`
	Log      LogConfig       `yaml:"log"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"base_path"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// TasksConfig points at the task service that owns the children of a user story.
type TasksConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type HistoryConfig struct {
	// LegacyActionCodes logs removal from a sprint as DELETE instead of UNASSIGN_FROM_SPRINT.
	LegacyActionCodes bool   `yaml:"legacy_action_codes"`
	SystemActor       string `yaml:"system_actor"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// IsEnabled treats a missing enabled flag as true.
func (w WebhookConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// SystemActor returns the actor recorded for calls that arrive without a credential.
func (c *Config) SystemActor() string {
	if c == nil || c.History.SystemActor == "" {
		return DefaultSystemActor
	}
	return c.History.SystemActor
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Tasks.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Tasks.BaseURL); err != nil {
			return fmt.Errorf("config.tasks.base_url: %w", err)
		}
	}
	if c.Tasks.TimeoutSeconds < 0 {
		return fmt.Errorf("config.tasks.timeout_seconds must be >= 0")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("config.log.level %q is not a known level", c.Log.Level)
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if _, err := url.ParseRequestURI(hook.URL); err != nil {
			return fmt.Errorf("config.webhooks[%d].url: %w", i, err)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must be >= 0", i)
		}
		for _, ev := range hook.Events {
			if ev == "" {
				return fmt.Errorf("config.webhooks[%d] has empty event", i)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with sl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the config produced by the default template.
func Default() *Config {
	cfg, err := FromYAML([]byte(defaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys keep
// their default values.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// WriteDefault writes the default template to the workspace. An existing file
// is kept unless force is set.
func WriteDefault(workspace string, force bool) (string, error) {
	path := Path(workspace)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("config %s already exists", path)
		}
	}
	if err := atomic.WriteFile(path, strings.NewReader(defaultTemplate)); err != nil {
		return path, fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/v0"
	}
	if c.Tasks.TimeoutSeconds == 0 {
		c.Tasks.TimeoutSeconds = 10
	}
	if c.History.SystemActor == "" {
		c.History.SystemActor = DefaultSystemActor
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v0

auth:
  # HS256 secret shared with the identity service. Leave empty to accept local calls only.
  jwt_secret: ""

tasks:
  # Task service base URL, e.g. http://localhost:8083
  base_url: ""
  timeout_seconds: 10

history:
  legacy_action_codes: false
  system_actor: system-task

log:
  level: info
  file: ""
  max_size_mb: 50
  max_backups: 3

webhooks: []
`
