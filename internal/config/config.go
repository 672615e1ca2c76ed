// Package config loads the tool configuration from .mu/config.yml with
// environment variable overrides (prefix MU_).
package config

// Config is the complete mu configuration.
type Config struct {
	Scan  ScanConfig  `yaml:"scan" mapstructure:"scan"`
	Watch WatchConfig `yaml:"watch" mapstructure:"watch"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// ScanConfig controls file discovery.
type ScanConfig struct {
	Extensions     []string `yaml:"extensions" mapstructure:"extensions"`           // extension allow-list; empty = all supported
	Ignore         []string `yaml:"ignore" mapstructure:"ignore"`                   // extra glob patterns beyond ignore files
	IncludeHidden  bool     `yaml:"include_hidden" mapstructure:"include_hidden"`   // include dotfiles
	FollowSymlinks bool     `yaml:"follow_symlinks" mapstructure:"follow_symlinks"` // follow symbolic links
	MaxFileSize    int64    `yaml:"max_file_size" mapstructure:"max_file_size"`     // bytes; 0 = unlimited
}

// WatchConfig controls the file watcher.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Ignore: []string{
				"node_modules/**",
				"vendor/**",
				"dist/**",
				"build/**",
				"target/**",
				"__pycache__/**",
			},
			MaxFileSize: 2 * 1024 * 1024,
		},
		Watch: WatchConfig{DebounceMs: 500},
		Log:   LogConfig{Level: "info"},
	}
}
