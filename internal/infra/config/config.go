package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Logger      LoggerConfig      `yaml:"logger"`
	Tracer      TracerConfig      `yaml:"tracer"`
	LLM         LLMConfig         `yaml:"llm"`
	Git         GitConfig         `yaml:"git"`
	Trackers    TrackersConfig    `yaml:"trackers"`
	Store       StoreConfig       `yaml:"store"`
	Agents      AgentsConfig      `yaml:"agents"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	PromptsPath string            `yaml:"prompts_path"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProviderConfig defines a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "anthropic" or "openai"
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// GitConfig holds local repository settings. Access is read-only; the only
// mutating operation is fetch, and it is rate limited.
type GitConfig struct {
	RepoDir          string        `yaml:"repo_dir"`
	DefaultTargetRef string        `yaml:"default_target_ref"`
	AutoFetch        bool          `yaml:"auto_fetch"`
	FetchMinInterval time.Duration `yaml:"fetch_min_interval"`
	CommandTimeout   time.Duration `yaml:"command_timeout"`
}

// TrackersConfig lists issue and pull-request providers in resolution order.
type TrackersConfig struct {
	Issue       []TrackerEntry `yaml:"issue"`
	PullRequest []TrackerEntry `yaml:"pull_request"`
}

// TrackerEntry names a registered provider and its options.
type TrackerEntry struct {
	Name    string            `yaml:"name"`
	Options map[string]string `yaml:"options,omitempty"`
}

// StoreConfig holds chat-context store settings.
type StoreConfig struct {
	Path   string        `yaml:"path"`
	MaxAge time.Duration `yaml:"max_age"` // rows older than this are pruned
}

// AgentsConfig holds per-agent knobs.
type AgentsConfig struct {
	Budget       time.Duration      `yaml:"budget"` // default execution budget
	Chatbot      ChatbotConfig      `yaml:"chatbot"`
	Impact       ImpactConfig       `yaml:"impact"`
	ReleaseNotes ReleaseNotesConfig `yaml:"release_notes"`
}

// ChatbotConfig holds chatbot agent settings.
type ChatbotConfig struct {
	Model      string `yaml:"model"`
	MaxHistory int    `yaml:"max_history"`
}

// ImpactConfig holds impact-analysis agent settings.
type ImpactConfig struct {
	Model          string `yaml:"model"`
	MaxFiles       int    `yaml:"max_files"`
	FileTokenLimit int    `yaml:"file_token_limit"`
}

// ReleaseNotesConfig holds release-notes agent settings.
type ReleaseNotesConfig struct {
	Model string `yaml:"model"`
}

// MaintenanceConfig holds background maintenance settings.
type MaintenanceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
		Tracer: TracerConfig{Enabled: false, Exporter: "noop"},
		LLM: LLMConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Git: GitConfig{
			RepoDir:          ".",
			DefaultTargetRef: "main",
			FetchMinInterval: 5 * time.Minute,
			CommandTimeout:   30 * time.Second,
		},
		Store: StoreConfig{
			Path:   "devagents.db",
			MaxAge: 30 * 24 * time.Hour,
		},
		Agents: AgentsConfig{
			Budget:  2 * time.Minute,
			Chatbot: ChatbotConfig{MaxHistory: 40},
			Impact:  ImpactConfig{MaxFiles: 25, FileTokenLimit: 6000},
		},
		Maintenance: MaintenanceConfig{Schedule: "@every 1h"},
		PromptsPath: "config/prompts.yaml",
	}
}

// Load reads the YAML file at path, merges it over Defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides overlays DEVAGENTS_* environment variables onto cfg.
// Provider API keys may also come from the conventional provider variables
// (ANTHROPIC_API_KEY, OPENAI_API_KEY) when the config leaves them empty.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEVAGENTS_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("DEVAGENTS_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("DEVAGENTS_TRACING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracer.Enabled = b
		}
	}
	if v := os.Getenv("DEVAGENTS_REPO_DIR"); v != "" {
		cfg.Git.RepoDir = v
	}
	if v := os.Getenv("DEVAGENTS_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("DEVAGENTS_PROMPTS_PATH"); v != "" {
		cfg.PromptsPath = v
	}

	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		if p.APIKey != "" {
			continue
		}
		switch p.Type {
		case "anthropic":
			p.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			p.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// Validate checks the configuration for inconsistencies that would only
// surface later as confusing runtime failures.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.LLM.Providers))
	for _, p := range c.LLM.Providers {
		if p.Name == "" {
			return fmt.Errorf("llm provider with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate llm provider %q", p.Name)
		}
		seen[p.Name] = true
		switch p.Type {
		case "anthropic", "openai":
		default:
			return fmt.Errorf("llm provider %q: unknown type %q", p.Name, p.Type)
		}
	}
	if c.LLM.DefaultProvider != "" && !seen[c.LLM.DefaultProvider] {
		return fmt.Errorf("default llm provider %q is not defined", c.LLM.DefaultProvider)
	}
	if c.Git.RepoDir == "" {
		return fmt.Errorf("git.repo_dir must not be empty")
	}
	if c.Agents.Budget < 0 {
		return fmt.Errorf("agents.budget must not be negative")
	}
	return nil
}

// Snapshot flattens the configuration into dot-path key/value pairs for
// the execution context. Secrets (API keys) are deliberately excluded:
// agents read knobs, not credentials.
func (c *Config) Snapshot() map[string]string {
	values := map[string]string{
		"llm.default_provider":      c.LLM.DefaultProvider,
		"git.repo_dir":              c.Git.RepoDir,
		"git.default_target_ref":    c.Git.DefaultTargetRef,
		"agents.budget":             c.Agents.Budget.String(),
		"agents.chatbot.model":      c.Agents.Chatbot.Model,
		"agents.impact.model":       c.Agents.Impact.Model,
		"agents.releasenotes.model": c.Agents.ReleaseNotes.Model,
	}
	values["agents.chatbot.max_history"] = strconv.Itoa(c.Agents.Chatbot.MaxHistory)
	values["agents.impact.max_files"] = strconv.Itoa(c.Agents.Impact.MaxFiles)
	values["agents.impact.file_token_limit"] = strconv.Itoa(c.Agents.Impact.FileTokenLimit)

	// Drop empty values so Snapshot lookups fall through to defaults.
	for k, v := range values {
		if strings.TrimSpace(v) == "" {
			delete(values, k)
		}
	}
	return values
}
