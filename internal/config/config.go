package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DeploymentBizAssist   = "bizassist"
	DeploymentMediConnect = "mediconnect"
)

// Config is the root configuration for the assistant service.
type Config struct {
	General    GeneralConfig             `json:"general" yaml:"general"`
	Server     ServerConfig              `json:"server" yaml:"server"`
	Realtime   RealtimeConfig            `json:"realtime" yaml:"realtime"`
	Database   DatabaseConfig            `json:"database" yaml:"database"`
	Auth       AuthConfig                `json:"auth" yaml:"auth"`
	Generation GenerationConfig          `json:"generation" yaml:"generation"`
	Providers  map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Workflow   WorkflowConfig            `json:"workflow" yaml:"workflow"`
	Metrics    MetricsConfig             `json:"metrics" yaml:"metrics"`
	MCP        MCPConfig                 `json:"mcp" yaml:"mcp"`
}

type GeneralConfig struct {
	Deployment string `json:"deployment" yaml:"deployment"` // "bizassist" | "mediconnect"
	LogLevel   string `json:"logLevel" yaml:"logLevel"`
	LogFormat  string `json:"logFormat" yaml:"logFormat"` // "text" | "json"
}

type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// RealtimeConfig configures the KPI websocket publisher.
type RealtimeConfig struct {
	Enabled            bool   `json:"enabled" yaml:"enabled"`
	Port               int    `json:"port" yaml:"port"`
	Path               string `json:"path" yaml:"path"`
	MinIntervalSeconds int    `json:"minIntervalSeconds" yaml:"minIntervalSeconds"`
	MaxIntervalSeconds int    `json:"maxIntervalSeconds" yaml:"maxIntervalSeconds"`
}

type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "sqlite" | "postgres"
	DSN    string `json:"dsn" yaml:"dsn"`
	Seed   bool   `json:"seed" yaml:"seed"`
}

type AuthConfig struct {
	JWTSecret            string `json:"jwtSecret,omitempty" yaml:"jwtSecret,omitempty"`
	PatientJWTSecret     string `json:"patientJwtSecret,omitempty" yaml:"patientJwtSecret,omitempty"`
	TokenTTLMinutes      int    `json:"tokenTTLMinutes" yaml:"tokenTTLMinutes"`
	PatientTokenTTLHours int    `json:"patientTokenTTLHours" yaml:"patientTokenTTLHours"`
}

// GenerationConfig configures the fallback language-model call.
type GenerationConfig struct {
	Provider           string   `json:"provider" yaml:"provider"`
	Model              string   `json:"model,omitempty" yaml:"model,omitempty"` // empty = deployment default
	TimeoutSeconds     int      `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	RateLimitPerMinute int      `json:"rateLimitPerMinute" yaml:"rateLimitPerMinute"`
	Failover           []string `json:"failover,omitempty" yaml:"failover,omitempty"`
}

type ProviderConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	APIBase      string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	APIKey       string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	DefaultModel string `json:"defaultModel,omitempty" yaml:"defaultModel,omitempty"`
}

// WorkflowConfig configures the n8n integration.
type WorkflowConfig struct {
	ReminderWebhookURL string `json:"reminderWebhookUrl,omitempty" yaml:"reminderWebhookUrl,omitempty"`
	TimeoutSeconds     int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	CallbackSecret     string `json:"callbackSecret,omitempty" yaml:"callbackSecret,omitempty"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

type MCPConfig struct {
	ServerName string `json:"serverName" yaml:"serverName"`
}

// DefaultConfigDir returns the default config directory (~/.bizassist).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bizassist"
	}
	return filepath.Join(home, ".bizassist")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads a JSON or YAML config file, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	return finish(cfg)
}

// FromEnv returns the defaults with environment overrides applied. Used when
// no config file exists.
func FromEnv() (*Config, error) {
	return finish(Defaults())
}

func finish(cfg *Config) (*Config, error) {
	if err := ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = ExpandPath(cfg.Database.DSN)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset
// variable without default is left as written.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Save writes the config as JSON, or YAML when the path ends in .yaml/.yml.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.Deployment {
	case DeploymentBizAssist, DeploymentMediConnect:
	default:
		errs = append(errs, "general.deployment must be one of: bizassist, mediconnect")
	}
	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.Realtime.Port < 0 || cfg.Realtime.Port > 65535 {
		errs = append(errs, "realtime.port must be between 0 and 65535")
	}
	if cfg.Realtime.MinIntervalSeconds < 1 {
		errs = append(errs, "realtime.minIntervalSeconds must be >= 1")
	}
	if cfg.Realtime.MaxIntervalSeconds < cfg.Realtime.MinIntervalSeconds {
		errs = append(errs, "realtime.maxIntervalSeconds must be >= realtime.minIntervalSeconds")
	}

	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "database.driver must be one of: sqlite, postgres")
	}
	if cfg.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}

	if cfg.Auth.TokenTTLMinutes < 1 {
		errs = append(errs, "auth.tokenTTLMinutes must be >= 1")
	}
	if cfg.Auth.PatientTokenTTLHours < 1 {
		errs = append(errs, "auth.patientTokenTTLHours must be >= 1")
	}

	if cfg.Generation.TimeoutSeconds < 1 || cfg.Generation.TimeoutSeconds > 3600 {
		errs = append(errs, "generation.timeoutSeconds must be between 1 and 3600")
	}
	if cfg.Generation.RateLimitPerMinute < 0 {
		errs = append(errs, "generation.rateLimitPerMinute must be >= 0")
	}
	if _, ok := cfg.Providers[cfg.Generation.Provider]; !ok {
		errs = append(errs, fmt.Sprintf("generation.provider references unknown provider: %s", cfg.Generation.Provider))
	}
	for _, name := range cfg.Generation.Failover {
		if _, ok := cfg.Providers[name]; !ok {
			errs = append(errs, fmt.Sprintf("generation.failover references unknown provider: %s", name))
		}
	}
	for name, pc := range cfg.Providers {
		if pc.Enabled && name != "ollama" && pc.APIKey == "" && pc.APIBase == "" {
			errs = append(errs, fmt.Sprintf("providers.%s: apiKey or apiBase is required", name))
		}
	}

	if cfg.Workflow.TimeoutSeconds < 1 {
		errs = append(errs, "workflow.timeoutSeconds must be >= 1")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
