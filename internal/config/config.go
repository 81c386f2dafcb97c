package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/wader/gifcat/internal/framecache"
	"github.com/wader/gifcat/internal/gifsource"
	"github.com/wader/gifcat/internal/predraw"
)

const (
	EnvPrefix = "GIFCAT"
	Name      = ".gifcat"
)

type Config struct {
	Renderer string `mapstructure:"renderer"`
	Status   bool   `mapstructure:"status"`
	LogLevel string `mapstructure:"log_level"`
	// 0 uses the loop count of the file, -1 loops forever
	Loops int `mapstructure:"loops"`

	CachePolicy   string  `mapstructure:"cache_policy"`
	CacheLimit    int     `mapstructure:"cache_limit"`
	MaxWindow     int     `mapstructure:"max_window"`
	OptimalWindow int     `mapstructure:"optimal_window"`
	Workers       int     `mapstructure:"workers"`
	Predraw       bool    `mapstructure:"predraw"`
	Quality       string  `mapstructure:"quality"`
	Slowdown      float64 `mapstructure:"slowdown"`

	SizeAllMiB     int `mapstructure:"size_all_mib"`
	SizeDefaultMiB int `mapstructure:"size_default_mib"`
	DefaultWindow  int `mapstructure:"default_window"`
	LowWindow      int `mapstructure:"low_window"`

	MemoryLimitMiB int           `mapstructure:"memory_limit_mib"`
	MemoryPoll     time.Duration `mapstructure:"memory_poll"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

func DefaultConfig() *Config {
	sc := framecache.DefaultSizeClasses
	return &Config{
		Renderer:       "auto",
		Status:         true,
		LogLevel:       "warn",
		CachePolicy:    "greedy",
		Workers:        1,
		Predraw:        true,
		Quality:        "fast",
		SizeAllMiB:     int(sc.AllFramesBytes / mib),
		SizeDefaultMiB: int(sc.DefaultBytes / mib),
		DefaultWindow:  sc.DefaultWindow,
		LowWindow:      sc.LowMemoryWindow,
		MemoryPoll:     time.Second,
	}
}

const mib = 1024 * 1024

// SetDefaults makes v aware of all keys so environment variables and flags
// are picked up by Unmarshal
func SetDefaults(v *viper.Viper) {
	c := DefaultConfig()
	v.SetDefault("renderer", c.Renderer)
	v.SetDefault("status", c.Status)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("loops", c.Loops)
	v.SetDefault("cache_policy", c.CachePolicy)
	v.SetDefault("cache_limit", c.CacheLimit)
	v.SetDefault("max_window", c.MaxWindow)
	v.SetDefault("optimal_window", c.OptimalWindow)
	v.SetDefault("workers", c.Workers)
	v.SetDefault("predraw", c.Predraw)
	v.SetDefault("quality", c.Quality)
	v.SetDefault("slowdown", c.Slowdown)
	v.SetDefault("size_all_mib", c.SizeAllMiB)
	v.SetDefault("size_default_mib", c.SizeDefaultMiB)
	v.SetDefault("default_window", c.DefaultWindow)
	v.SetDefault("low_window", c.LowWindow)
	v.SetDefault("memory_limit_mib", c.MemoryLimitMiB)
	v.SetDefault("memory_poll", c.MemoryPoll)
	v.SetDefault("metrics_addr", c.MetricsAddr)
}

// Load reads cfgFile, or $HOME/.gifcat.yaml if it exists when cfgFile is
// empty, then environment variables prefixed with GIFCAT_ and whatever
// flags are bound to v.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to find home directory: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	c := DefaultConfig()
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) Validate() error {
	validLogLevels := []string{"trace", "debug", "info", "warn", "error"}
	found := false
	for _, level := range validLogLevels {
		if strings.ToLower(c.LogLevel) == level {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := c.PredrawQuality(); err != nil {
		return err
	}

	switch {
	case c.Loops < -1:
		return fmt.Errorf("invalid loops: %d", c.Loops)
	case c.MaxWindow < 0:
		return fmt.Errorf("invalid max window: %d", c.MaxWindow)
	case c.OptimalWindow < 0:
		return fmt.Errorf("invalid optimal window: %d", c.OptimalWindow)
	case c.Workers < 1:
		return fmt.Errorf("invalid workers: %d", c.Workers)
	case c.Slowdown < 0:
		return fmt.Errorf("invalid slowdown: %g", c.Slowdown)
	case c.SizeAllMiB < 0 || c.SizeDefaultMiB < c.SizeAllMiB:
		return fmt.Errorf("invalid size classes: all %dMiB default %dMiB", c.SizeAllMiB, c.SizeDefaultMiB)
	case c.DefaultWindow < 1 || c.LowWindow < 1:
		return fmt.Errorf("invalid windows: default %d low %d", c.DefaultWindow, c.LowWindow)
	case c.MemoryLimitMiB < 0:
		return fmt.Errorf("invalid memory limit: %d", c.MemoryLimitMiB)
	case c.MemoryLimitMiB > 0 && c.MemoryPoll <= 0:
		return fmt.Errorf("invalid memory poll interval: %s", c.MemoryPoll)
	}

	return nil
}

func (c *Config) Policy() (framecache.Policy, error) {
	return framecache.ParsePolicy(c.CachePolicy, c.CacheLimit)
}

func (c *Config) PredrawQuality() (predraw.Quality, error) {
	switch strings.ToLower(c.Quality) {
	case "", "fast":
		return predraw.QualityFast, nil
	case "good":
		return predraw.QualityGood, nil
	default:
		return 0, fmt.Errorf("invalid quality: %s", c.Quality)
	}
}

func (c *Config) SizeClasses() framecache.SizeClasses {
	return framecache.SizeClasses{
		AllFramesBytes:  int64(c.SizeAllMiB) * mib,
		DefaultBytes:    int64(c.SizeDefaultMiB) * mib,
		DefaultWindow:   c.DefaultWindow,
		LowMemoryWindow: c.LowWindow,
	}
}

// LoopCount override, false to use the loop count of the file
func (c *Config) LoopCount() (gifsource.LoopCount, bool) {
	switch {
	case c.Loops == -1:
		return gifsource.LoopInfinite, true
	case c.Loops > 0:
		return gifsource.LoopCount(c.Loops), true
	default:
		return 0, false
	}
}

// MemoryLimit in bytes, 0 no limit
func (c *Config) MemoryLimit() uint64 {
	return uint64(c.MemoryLimitMiB) * mib
}
