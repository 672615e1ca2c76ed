package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file inside the .mu directory.
const FileName = "config.yml"

// Path returns the config file location under a repository root.
func Path(root string) string {
	return filepath.Join(root, ".mu", FileName)
}

// Load reads the configuration for a repository root. A missing file yields
// the defaults; environment variables with the MU_ prefix override file
// values (e.g. MU_LOG_LEVEL=debug).
func Load(root string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(Path(root))
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Bind every key so an environment override applies even when the file
	// does not set that key (or does not exist).
	for _, key := range []string{
		"scan.extensions", "scan.ignore", "scan.include_hidden", "scan.follow_symlinks",
		"scan.max_file_size", "watch.debounce_ms", "log.level",
	} {
		_ = v.BindEnv(key)
	}

	cfg := Default()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !os.IsNotExist(err) && !notFound {
			return nil, fmt.Errorf("read config %s: %w", Path(root), err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", Path(root), err)
	}
	return cfg, nil
}

// Save writes the configuration to .mu/config.yml, creating the directory.
func Save(root string, cfg *Config) error {
	dir := filepath.Dir(Path(root))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(Path(root), data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
