// Package config loads the scalecache CLI configuration.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"

	"github.com/unkn0wn-root/scalecache/raster"
)

// EnvPrefix prefixes environment overrides, e.g. SCALECACHE_LOG_LEVEL.
const EnvPrefix = "SCALECACHE"

// Config holds every setting the CLI reads from file, env or flags.
type Config struct {
	LogLevel      string `mapstructure:"log_level"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSize    int    `mapstructure:"log_max_size"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogCompress   bool   `mapstructure:"log_compress"`

	Format         string  `mapstructure:"format"`
	BaseScale      float64 `mapstructure:"base_scale"`
	Octaves        int     `mapstructure:"octaves"`
	StepsPerOctave int     `mapstructure:"steps_per_octave"`
	Workers        int     `mapstructure:"workers"`
	Coalesce       bool    `mapstructure:"coalesce"`
	Export         string  `mapstructure:"export"`
}

var exportFormats = map[string]bool{"": true, "json": true, "cbor": true, "msgpack": true, "protobuf": true}

// Load reads path (if non-empty), applies SCALECACHE_* env vars and then
// overrides, which take precedence over both. Keys in overrides use the
// mapstructure names above.
func Load(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	for k, val := range overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size", 100)
	v.SetDefault("log_max_backups", 10)
	v.SetDefault("log_compress", true)
	v.SetDefault("format", "gray8")
	v.SetDefault("base_scale", 0.5)
	v.SetDefault("octaves", 4)
	v.SetDefault("steps_per_octave", 3)
	v.SetDefault("workers", 4)
	v.SetDefault("coalesce", false)
	v.SetDefault("export", "")
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if _, err := raster.ParseFormat(c.Format); err != nil {
		return newFieldError("format", err.Error())
	}
	if c.BaseScale <= 0 {
		return newFieldError("base_scale", "must be > 0")
	}
	if c.Octaves < 1 {
		return newFieldError("octaves", "must be >= 1")
	}
	if c.StepsPerOctave < 1 {
		return newFieldError("steps_per_octave", "must be >= 1")
	}
	if c.Workers < 1 {
		return newFieldError("workers", "must be >= 1")
	}
	if c.LogMaxSize < 0 || c.LogMaxBackups < 0 {
		return newFieldError("log_max_size", "rotation limits must be >= 0")
	}
	if !exportFormats[strings.ToLower(c.Export)] {
		return newFieldError("export", fmt.Sprintf("unknown format %q", c.Export))
	}
	return nil
}

// PixelFormat is Format parsed. Only valid after Validate.
func (c *Config) PixelFormat() raster.Format {
	f, _ := raster.ParseFormat(c.Format)
	return f
}

// Scales lists the pyramid scales the CLI materialises:
// base * 2^(i/steps) for i in [0, octaves*steps].
func (c *Config) Scales() []float64 {
	n := c.Octaves * c.StepsPerOctave
	out := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, c.BaseScale*math.Exp2(float64(i)/float64(c.StepsPerOctave)))
	}
	return out
}
