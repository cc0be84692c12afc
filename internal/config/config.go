package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"github.com/tanq16/rawst/internal/utils"
)

const (
	AppName     = "rawst"
	FileName    = "config.toml"
	HistoryFile = "history.json"

	KeyDownloadPath = "download_path"
	KeyCachePath    = "cache_path"
	KeyThreads      = "threads"
)

// Config holds the directories and defaults the engine runs with.
type Config struct {
	DownloadPath string `mapstructure:"download_path"`
	CachePath    string `mapstructure:"cache_path"`
	ConfigPath   string `mapstructure:"-"`
	Threads      int    `mapstructure:"threads"`

	v *viper.Viper
}

// DefaultConfigDir is <user config dir>/rawst.
func DefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error locating config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

func defaults() (map[string]any, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error locating home directory: %w", err)
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("error locating cache directory: %w", err)
	}
	return map[string]any{
		KeyDownloadPath: filepath.Join(home, "Downloads"),
		KeyCachePath:    filepath.Join(cache, AppName),
		KeyThreads:      1,
	}, nil
}

// Load reads <configDir>/config.toml, writing it with defaults on first
// run. RAWST_* environment variables override file values. An empty
// configDir means DefaultConfigDir.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating config directory: %w", err)
	}
	defs, err := defaults()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	for k, val := range defs {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(filepath.Join(configDir, FileName))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		if err := v.WriteConfigAs(v.ConfigFileUsed()); err != nil {
			return nil, fmt.Errorf("error writing default config: %w", err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	cfg.ConfigPath = configDir
	cfg.DownloadPath = expandHome(cfg.DownloadPath)
	cfg.CachePath = expandHome(cfg.CachePath)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Threads < 1 || c.Threads > utils.MaxThreads {
		return fmt.Errorf("threads must be between 1 and %d, got %d", utils.MaxThreads, c.Threads)
	}
	if c.DownloadPath == "" || c.CachePath == "" {
		return errors.New("download and cache paths must be set")
	}
	return nil
}

func (c *Config) FilePath() string {
	return filepath.Join(c.ConfigPath, FileName)
}

func (c *Config) HistoryPath() string {
	return filepath.Join(c.ConfigPath, HistoryFile)
}

// Keys lists the settings that Set accepts.
func Keys() []string {
	keys := []string{KeyDownloadPath, KeyCachePath, KeyThreads}
	sort.Strings(keys)
	return keys
}

// Set changes one setting and persists the config file.
func (c *Config) Set(key, value string) error {
	next := *c
	switch key {
	case KeyDownloadPath:
		next.DownloadPath = expandHome(value)
	case KeyCachePath:
		next.CachePath = expandHome(value)
	case KeyThreads:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid thread count %q", value)
		}
		next.Threads = n
	default:
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return c.Save()
}

func (c *Config) Save() error {
	if c.v == nil {
		c.v = viper.New()
		c.v.SetConfigType("toml")
	}
	c.v.Set(KeyDownloadPath, c.DownloadPath)
	c.v.Set(KeyCachePath, c.CachePath)
	c.v.Set(KeyThreads, c.Threads)
	if err := c.v.WriteConfigAs(c.FilePath()); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
