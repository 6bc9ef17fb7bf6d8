package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_FILE is unset.
const DefaultPath = "config.yaml"

type Stage struct {
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
}

type Research struct {
	PersonaCount    int   `yaml:"persona_count"`
	BackgroundLimit int   `yaml:"background_limit"`
	Personas        Stage `yaml:"personas"`
	FocusGroup      Stage `yaml:"focus_group"`
	Analysis        Stage `yaml:"analysis"`
}

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Mode string `yaml:"mode"` // gin mode: debug, release, test
	} `yaml:"server"`
	LLM struct {
		DefaultModel string `yaml:"default_model"`
	} `yaml:"llm"`
	Research Research `yaml:"research"`
	Store    struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Logging struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Mode = "release"
	cfg.LLM.DefaultModel = "gemini-2.5-flash"
	cfg.Research = Research{
		PersonaCount:    5,
		BackgroundLimit: 240,
		Personas:        Stage{Temperature: 0.8},
		FocusGroup:      Stage{Temperature: 0.8, MaxOutputTokens: 8192},
		Analysis:        Stage{Temperature: 0.3},
	}
	cfg.Store.Path = "research.db"
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE or
// DefaultPath (if present), then applies environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = DefaultPath
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, cfg.Validate()
}

// LoadFile decodes path over the defaults. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		c.Server.Mode = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.LLM.DefaultModel = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("PERSONA_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Research.PersonaCount = n
		}
	}
}

func (c *Config) Validate() error {
	r := c.Research
	if r.PersonaCount < 1 {
		return fmt.Errorf("config: research.persona_count must be positive, got %d", r.PersonaCount)
	}
	for name, s := range map[string]Stage{"personas": r.Personas, "focus_group": r.FocusGroup, "analysis": r.Analysis} {
		if s.Temperature < 0 || s.Temperature > 1 {
			return fmt.Errorf("config: research.%s.temperature must be within [0, 1], got %.2f", name, s.Temperature)
		}
		if s.MaxOutputTokens < 0 {
			return fmt.Errorf("config: research.%s.max_output_tokens must not be negative", name)
		}
	}
	return nil
}
