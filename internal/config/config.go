package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"zeuxkit.dev/internal/legacy"
	"zeuxkit.dev/internal/world"
)

type Config struct {
	AutoDecryptWorlds bool `yaml:"auto_decrypt_worlds"`
	StandaloneMode    bool `yaml:"standalone_mode"`
	// MaxPath bounds the name of the backup written before a decrypt.
	MaxPath int `yaml:"max_path"`
	// SavegameRobots treats region loads as runtime loads, accepting regions
	// cut from a savegame.
	SavegameRobots bool `yaml:"savegame_robots"`

	Log        LogConfig `yaml:"log"`
	JournalDir string    `yaml:"journal_dir"`
	IndexPath  string    `yaml:"index_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Defaults() Config {
	return Config{
		MaxPath:    world.MaxPath,
		Log:        LogConfig{Level: "info", Format: "text"},
		JournalDir: "./data/journal",
		IndexPath:  "./data/index/files.sqlite",
	}
}

// Load reads a yaml file over the defaults. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("zeux.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("zeux.yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.MaxPath == 0 {
		c.MaxPath = world.MaxPath
	}
	c.JournalDir = strings.TrimSpace(c.JournalDir)
	c.IndexPath = strings.TrimSpace(c.IndexPath)
}

func (c Config) Validate() error {
	c.Normalize()
	if c.MaxPath < 16 {
		return fmt.Errorf("max_path must be >= 16, got %d", c.MaxPath)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Policy is the decrypt policy these settings describe. p may be nil.
func (c Config) Policy(p legacy.Prompter) legacy.Policy {
	return legacy.Policy{
		AutoDecrypt: c.AutoDecryptWorlds,
		Standalone:  c.StandaloneMode,
		Prompter:    p,
		MaxPath:     c.MaxPath,
	}
}
