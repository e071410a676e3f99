package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const dirName = ".scoreguard"

// Global configuration structure.
type Global struct {
	// Analysis defaults
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
	Delimiter string  `mapstructure:"delimiter" yaml:"delimiter"`
	Decimal   string  `mapstructure:"decimal" yaml:"decimal"`
	OutputDir string  `mapstructure:"output_dir" yaml:"output_dir"`
	Charts    bool    `mapstructure:"charts" yaml:"charts"`

	// HTTP server
	ServerAddr  string `mapstructure:"server_addr" yaml:"server_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	LogOutput string `mapstructure:"log_output" yaml:"log_output"`
}

// Default returns the built-in configuration.
func Default() *Global {
	return &Global{
		Threshold:   2.0,
		OutputDir:   ".",
		Charts:      true,
		ServerAddr:  ":8080",
		MaxUploadMB: 10,
		LogLevel:    "info",
		LogFormat:   "console",
		LogOutput:   "stderr",
	}
}

// Validate checks value ranges.
func (c *Global) Validate() error {
	if !(c.Threshold >= 1.0 && c.Threshold <= 5.0) {
		return fmt.Errorf("threshold must be between 1.0 and 5.0, got %v", c.Threshold)
	}
	switch c.Delimiter {
	case "", ",", ";", "tab", "\t":
	default:
		return fmt.Errorf("invalid delimiter %q (use ',', ';' or 'tab')", c.Delimiter)
	}
	switch strings.ToLower(c.Decimal) {
	case "", ".", "dot", ",", "comma":
	default:
		return fmt.Errorf("invalid decimal %q (use '.' or 'comma')", c.Decimal)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (use debug, info, warn or error)", c.LogLevel)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log_format %q (use console or json)", c.LogFormat)
	}
	return nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.scoreguard/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, dirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Command flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SCOREGUARD")
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("threshold", d.Threshold)
	v.SetDefault("delimiter", d.Delimiter)
	v.SetDefault("decimal", d.Decimal)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("charts", d.Charts)
	v.SetDefault("server_addr", d.ServerAddr)
	v.SetDefault("max_upload_mb", d.MaxUploadMB)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_output", d.LogOutput)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, dirName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
