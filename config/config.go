package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robertftenbosch/parakeet/errors"
	"gopkg.in/yaml.v3"
)

// FilesystemAccess restricts what the file tools may touch. Patterns are
// doublestar globs matched against the path the model supplies.
type FilesystemAccess struct {
	Hidden   []string `yaml:"hidden"`
	ReadOnly []string `yaml:"read_only"`
}

// MCPServer describes an external MCP tool server started as a subprocess.
type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Toolset names a subset of registered tools.
type Toolset struct {
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

// Limits bounds a single turn of the agent loop.
type Limits struct {
	// MaxIterations caps model/tool round-trips within one turn.
	MaxIterations int `yaml:"max_iterations"`
	// MaxRetries bounds retries of a failed model call before the turn fails.
	MaxRetries int `yaml:"max_retries"`
	// RetryBaseDelay is the initial backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

type Config struct {
	LLMClient            string           `yaml:"llm"`
	Model                string           `yaml:"model"`
	Toolsets             []Toolset        `yaml:"toolsets"`
	AdditionalMCPServers []MCPServer      `yaml:"additional_mcp_servers"`
	AllowedCommands      []string         `yaml:"allowed_commands"`
	FilesystemAccess     FilesystemAccess `yaml:"filesystem_access"`
	Limits               Limits           `yaml:"limits"`

	// SessionDir overrides the default session storage location.
	SessionDir string `yaml:"session_dir"`
	// MaxSessionMessages caps retained conversation history per session.
	MaxSessionMessages int `yaml:"max_session_messages"`
	// ShellIdleTimeout terminates shell sessions unused past this duration.
	ShellIdleTimeout time.Duration `yaml:"shell_idle_timeout"`
}

const (
	DefaultMaxIterations      = 20
	DefaultMaxRetries         = 3
	DefaultRetryBaseDelay     = time.Second
	DefaultMaxSessionMessages = 100
	DefaultShellIdleTimeout   = 30 * time.Minute
)

// LoadConfig loads configuration from the user's home directory and the
// current working directory, with the latter taking precedence.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// The .parakeet directory itself is never visible to the file tools.
	cfg.FilesystemAccess.Hidden = append(cfg.FilesystemAccess.Hidden, ".parakeet", ".parakeet/**")

	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".parakeet", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".parakeet", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Limits.MaxIterations <= 0 {
		c.Limits.MaxIterations = DefaultMaxIterations
	}
	if c.Limits.MaxRetries <= 0 {
		c.Limits.MaxRetries = DefaultMaxRetries
	}
	if c.Limits.RetryBaseDelay <= 0 {
		c.Limits.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.MaxSessionMessages <= 0 {
		c.MaxSessionMessages = DefaultMaxSessionMessages
	}
	if c.ShellIdleTimeout <= 0 {
		c.ShellIdleTimeout = DefaultShellIdleTimeout
	}
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites fields present in the YAML. This provides a
	// simple merge where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}

// Save writes the config to the user-level config file. Used by the
// `config set` command.
func (c *Config) Save() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return errors.Wrapf(err, "could not determine home directory")
	}
	dir := filepath.Join(home, ".parakeet")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "could not create config directory")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrapf(err, "could not serialize config")
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644)
}

// GetToolset finds a toolset by name. An empty name resolves to
// "default", and an unconfigured "default" means every registered tool:
// a bare install restricts nothing.
func (c *Config) GetToolset(name string) (*Toolset, error) {
	if name == "" {
		name = "default"
	}
	for _, ts := range c.Toolsets {
		if ts.Name == name {
			return &ts, nil
		}
	}
	if name == "default" {
		return &Toolset{Name: "default"}, nil
	}
	return nil, errors.NewKind(errors.KindNotFound, "toolset '%s' not found in configuration", name)
}
