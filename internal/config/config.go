package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all application configuration
type Config struct {
	// API Keys
	GeminiKey   string `json:"gemini_api_key,omitempty"`
	DeepSeekKey string `json:"deepseek_api_key,omitempty"`
	OpenAIKey   string `json:"openai_api_key,omitempty"`

	// Defaults
	DefaultProvider string `json:"default_provider,omitempty"`
	DefaultModel    string `json:"default_model,omitempty"`
	SystemPrompt    string `json:"system_prompt,omitempty"`

	// AuthMethod is the method to retry silently at startup, recorded
	// after a successful interactive sign-in.
	AuthMethod string `json:"auth_method,omitempty"`

	// NATSUrl is the broker used for live session sharing.
	NATSUrl string `json:"nats_url,omitempty"`
}

var (
	configDir  string
	configFile string
	current    *Config
)

func init() {
	// Use ~/.config/parley for config
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	configDir = filepath.Join(home, ".config", "parley")
	configFile = filepath.Join(configDir, "config.json")
}

// Load reads the config from disk
func Load() (*Config, error) {
	if current != nil {
		return current, nil
	}

	current = &Config{
		DefaultProvider: "gemini",
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return current, nil // Return default config
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, current); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return current, nil
}

// Save writes the config to disk
func Save(cfg *Config) error {
	// Ensure config directory exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	current = cfg
	return nil
}

// Get returns the current config, loading if necessary
func Get() *Config {
	if current == nil {
		_, _ = Load()
	}
	return current
}

// Set updates a config value by key
func Set(key, value string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	switch key {
	case "gemini_api_key", "gemini":
		cfg.GeminiKey = value
	case "deepseek_api_key", "deepseek":
		cfg.DeepSeekKey = value
	case "openai_api_key", "openai":
		cfg.OpenAIKey = value
	case "default_provider", "provider":
		cfg.DefaultProvider = value
	case "default_model", "model":
		cfg.DefaultModel = value
	case "system_prompt":
		cfg.SystemPrompt = value
	case "auth_method":
		cfg.AuthMethod = value
	case "nats_url":
		cfg.NATSUrl = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	return Save(cfg)
}

// envVarFor maps a provider id to its API key environment variable.
func envVarFor(provider string) string {
	switch provider {
	case "gemini":
		return "GEMINI_API_KEY"
	case "deepseek":
		return "DEEPSEEK_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// GetAPIKey returns the API key for a provider (config or env) together
// with a description of where it came from. The source string is safe to
// show in error messages; the key is not.
func GetAPIKey(provider string) (key, source string) {
	cfg := Get()

	var configured string
	switch provider {
	case "gemini":
		configured = cfg.GeminiKey
	case "deepseek":
		configured = cfg.DeepSeekKey
	case "openai":
		configured = cfg.OpenAIKey
	}
	if configured != "" {
		return configured, "config file"
	}

	if envVar := envVarFor(provider); envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			return v, "environment variable " + envVar
		}
	}
	return "", ""
}

// DefaultModelFor returns the model to use when none is configured.
func DefaultModelFor(provider string) string {
	switch provider {
	case "gemini":
		return "gemini-2.0-flash"
	case "deepseek":
		return "deepseek-chat"
	case "openai":
		return "gpt-4o"
	default:
		return ""
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return configFile
}

// Dir returns the config directory
func Dir() string {
	return configDir
}

// LogPath returns the path of the application log file
func LogPath() string {
	return filepath.Join(configDir, "parley.log")
}

// SessionsDir returns the directory holding saved transcripts
func SessionsDir() string {
	return filepath.Join(configDir, "sessions")
}

// ListKeys returns configured keys (masked for display)
func ListKeys() map[string]string {
	cfg := Get()
	result := make(map[string]string)

	for provider, configured := range map[string]string{
		"gemini":   cfg.GeminiKey,
		"deepseek": cfg.DeepSeekKey,
		"openai":   cfg.OpenAIKey,
	} {
		name := provider + "_api_key"
		if configured != "" {
			result[name] = maskKey(configured)
		} else if env := os.Getenv(envVarFor(provider)); env != "" {
			result[name] = maskKey(env) + " (env)"
		}
	}

	if cfg.DefaultProvider != "" {
		result["default_provider"] = cfg.DefaultProvider
	}

	if cfg.DefaultModel != "" {
		result["default_model"] = cfg.DefaultModel
	}

	if cfg.SystemPrompt != "" {
		result["system_prompt"] = cfg.SystemPrompt
	}

	if cfg.AuthMethod != "" {
		result["auth_method"] = cfg.AuthMethod
	}

	if cfg.NATSUrl != "" {
		result["nats_url"] = cfg.NATSUrl
	}

	return result
}

// maskKey shows only first 4 and last 4 characters
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// Delete removes a config value
func Delete(key string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	switch key {
	case "gemini_api_key", "gemini":
		cfg.GeminiKey = ""
	case "deepseek_api_key", "deepseek":
		cfg.DeepSeekKey = ""
	case "openai_api_key", "openai":
		cfg.OpenAIKey = ""
	case "default_provider", "provider":
		cfg.DefaultProvider = ""
	case "default_model", "model":
		cfg.DefaultModel = ""
	case "system_prompt":
		cfg.SystemPrompt = ""
	case "auth_method":
		cfg.AuthMethod = ""
	case "nats_url":
		cfg.NATSUrl = ""
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	return Save(cfg)
}

// Settings adapts the config file to the auth controller's settings
// interface: the remembered method lives in the auth_method key.
type Settings struct{}

// PreferredMethod returns the remembered auth method, empty when none.
func (Settings) PreferredMethod() string {
	return Get().AuthMethod
}

// SetPreferredMethod persists the method for the next startup.
func (Settings) SetPreferredMethod(method string) error {
	return Set("auth_method", method)
}
