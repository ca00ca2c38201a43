// ABOUTME: Configuration management for the lodestone CLI
// ABOUTME: Handles config file discovery, loading, validation, and defaults
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	ConfigFileName     = "lodestone-config.json"
	DefaultConfigPerms = 0644
)

// ConfigOpts configures how configuration is loaded and managed
type ConfigOpts struct {
	// Override config file path (default: auto-discover)
	ConfigPath string

	// Whether to create default config if none exists
	CreateIfMissing bool

	// Override working directory for auto-discovery
	WorkingDir string
}

// DefaultConfigOpts returns default configuration loading options
func DefaultConfigOpts() *ConfigOpts {
	return &ConfigOpts{
		CreateIfMissing: true,
	}
}

// WithConfigPath sets a custom config file path
func (opts *ConfigOpts) WithConfigPath(path string) *ConfigOpts {
	opts.ConfigPath = path
	return opts
}

// WithWorkingDir sets a custom working directory for auto-discovery
func (opts *ConfigOpts) WithWorkingDir(dir string) *ConfigOpts {
	opts.WorkingDir = dir
	return opts
}

// WithCreateIfMissing controls whether to create default config when missing
func (opts *ConfigOpts) WithCreateIfMissing(create bool) *ConfigOpts {
	opts.CreateIfMissing = create
	return opts
}

// ConfigManager handles configuration loading and management
type ConfigManager struct {
	opts *ConfigOpts
}

// NewConfigManager creates a configuration manager with the given options
func NewConfigManager(opts *ConfigOpts) *ConfigManager {
	if opts == nil {
		opts = DefaultConfigOpts()
	}
	return &ConfigManager{opts: opts}
}

type Config struct {
	Version string `json:"version"`

	// Trust material locations
	Trust TrustConfig `json:"trust"`

	// Extraction settings
	Extraction ExtractionConfig `json:"extraction"`

	// Output preferences
	Output OutputConfig `json:"output"`
}

// TrustConfig points at the trust material on disk. Relative paths are
// resolved against the directory holding the config file.
type TrustConfig struct {
	AnchorsPath     string `json:"anchors_path,omitempty"`
	AllowedPath     string `json:"allowed_path,omitempty"`
	StoreConfigPath string `json:"store_config_path,omitempty"`
}

type ExtractionConfig struct {
	Mode             string `json:"mode"` // "full", "minimal"
	IncludeThumbnail bool   `json:"include_thumbnail"`
	VerifyTrust      bool   `json:"verify_trust"`
}

type OutputConfig struct {
	Format  string `json:"format"` // "text", "json"
	Verbose bool   `json:"verbose"`
	Color   bool   `json:"color"`
}

func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Extraction: ExtractionConfig{
			Mode:             "full",
			IncludeThumbnail: false,
			VerifyTrust:      true,
		},
		Output: OutputConfig{
			Format:  "text",
			Verbose: false,
			Color:   true,
		},
	}
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []string
}

// Validate checks the configuration for errors and collects warnings for
// incomplete but workable setups.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []string{},
	}

	if c.Version == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "version",
			Message: "config version is required",
		})
	}

	if c.Extraction.Mode != "full" && c.Extraction.Mode != "minimal" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "extraction.mode",
			Message: fmt.Sprintf("invalid mode: %s (must be 'full' or 'minimal')", c.Extraction.Mode),
		})
	}

	if c.Output.Format != "text" && c.Output.Format != "json" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "output.format",
			Message: fmt.Sprintf("invalid output format: %s (must be 'text' or 'json')", c.Output.Format),
		})
	}

	// Partial trust material still works; reads just cap at Valid.
	if c.Trust.AnchorsPath != "" && c.Trust.StoreConfigPath == "" {
		result.Warnings = append(result.Warnings, "trust anchors configured without a store config")
	}
	if c.Trust.AnchorsPath == "" && c.Trust.StoreConfigPath != "" {
		result.Warnings = append(result.Warnings, "store config configured without trust anchors")
	}
	if c.Trust.AllowedPath != "" && c.Trust.AnchorsPath == "" {
		result.Warnings = append(result.Warnings, "allowed intermediates configured without trust anchors")
	}

	result.Valid = len(result.Errors) == 0

	return result
}

// FindConfigFile walks up from startPath looking for a config file.
func FindConfigFile(startPath string) (string, error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentPath := absPath
	for {
		configPath := filepath.Join(currentPath, ConfigFileName)
		if info, err := os.Stat(configPath); err == nil && info.Mode().IsRegular() {
			return configPath, nil
		}

		parentPath := filepath.Dir(currentPath)
		if parentPath == currentPath {
			return "", fmt.Errorf("no %s found", ConfigFileName)
		}
		currentPath = parentPath
	}
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if result := config.Validate(); !result.Valid {
		return nil, fmt.Errorf("invalid configuration: %w", result.Errors[0])
	}

	return &config, nil
}

func SaveConfig(config *Config, configPath string) error {
	if result := config.Validate(); !result.Valid {
		return fmt.Errorf("invalid configuration: %w", result.Errors[0])
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, DefaultConfigPerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfig loads configuration using the configured options. It returns
// the config together with the path it came from; the path is empty when
// defaults were used without touching disk.
func (cm *ConfigManager) LoadConfig() (*Config, string, error) {
	// Use explicit path if provided
	if cm.opts.ConfigPath != "" {
		if _, err := os.Stat(cm.opts.ConfigPath); os.IsNotExist(err) {
			if !cm.opts.CreateIfMissing {
				return nil, "", fmt.Errorf("config file not found: %s", cm.opts.ConfigPath)
			}
			defaultConfig := DefaultConfig()
			if err := SaveConfig(defaultConfig, cm.opts.ConfigPath); err != nil {
				return nil, "", fmt.Errorf("failed to create default config: %w", err)
			}
			return defaultConfig, cm.opts.ConfigPath, nil
		}

		config, err := LoadConfig(cm.opts.ConfigPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", cm.opts.ConfigPath, err)
		}
		return config, cm.opts.ConfigPath, nil
	}

	// Auto-discover from working directory
	wd := cm.opts.WorkingDir
	if wd == "" {
		var err error
		wd, err = os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	configPath, err := FindConfigFile(wd)
	if err != nil {
		if !cm.opts.CreateIfMissing {
			return nil, "", fmt.Errorf("failed to find config file: %w", err)
		}
		// Create default config in the working directory
		configPath = filepath.Join(wd, ConfigFileName)
		defaultConfig := DefaultConfig()
		if err := SaveConfig(defaultConfig, configPath); err != nil {
			return nil, "", fmt.Errorf("failed to create default config: %w", err)
		}
		return defaultConfig, configPath, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}

	return config, configPath, nil
}
