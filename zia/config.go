package zia

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is looked up from a script's directory upwards.
const ConfigFileName = "zia.toml"

type Config struct {
	GC     GCConfig     `toml:"gc"`
	Debug  DebugConfig  `toml:"debug"`
	Limits LimitsConfig `toml:"limits"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

type GCConfig struct {
	Stress           bool    `toml:"stress"`
	Log              bool    `toml:"log"`
	GrowFactor       float64 `toml:"grow_factor"`
	InitialThreshold int     `toml:"initial_threshold"`
}

type DebugConfig struct {
	PrintCode      bool `toml:"print_code"`
	TraceExecution bool `toml:"trace_execution"`
}

type LimitsConfig struct {
	FramesMax int `toml:"frames_max"`
}

func DefaultConfig() *Config {
	return &Config{
		GC: GCConfig{
			GrowFactor:       2,
			InitialThreshold: 1024 * 1024,
		},
		Limits: LimitsConfig{
			FramesMax: FramesMax,
		},
	}
}

// LoadConfig reads a zia.toml file. Keys missing from the file keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(path, data)
}

func ParseConfig(path string, data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.GC.GrowFactor < 1 {
		return fmt.Errorf("gc.grow_factor must be at least 1, got %g", c.GC.GrowFactor)
	}
	if c.GC.InitialThreshold <= 0 {
		return fmt.Errorf("gc.initial_threshold must be positive, got %d", c.GC.InitialThreshold)
	}
	if c.Limits.FramesMax < 1 || c.Limits.FramesMax > 256 {
		return fmt.Errorf("limits.frames_max must be within 1..256, got %d", c.Limits.FramesMax)
	}
	return nil
}

// FindConfig walks from dir up to the filesystem root and loads the first
// zia.toml found. Without one it returns the defaults.
func FindConfig(dir string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for {
		candidate := filepath.Join(abs, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return LoadConfig(candidate)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("checking %s: %w", candidate, err)
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return DefaultConfig(), nil
		}
		abs = parent
	}
}
