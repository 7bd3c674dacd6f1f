// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server         ServerConfig             `yaml:"server"`
	Admin          AdminConfig              `yaml:"admin"`
	Audio          AudioConfig              `yaml:"audio"`
	Fade           FadeConfig               `yaml:"fade"`
	Executor       ExecutorConfig           `yaml:"executor"`
	Slots          map[string]SlotConfig    `yaml:"slots" validate:"required,min=1,dive"`
	ContinuousSlot string                   `yaml:"continuous_slot" default:"continuous" validate:"required"`
	Commands       map[string]CommandConfig `yaml:"commands" validate:"required,min=1,dive"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr           string      `yaml:"addr" default:":8080"`
	CommandPath    string      `yaml:"command_path" default:"/soundboard" validate:"startswith=/"`
	ClientPath     string      `yaml:"client_path" default:"/client" validate:"startswith=/"`
	StaticDir      string      `yaml:"static_dir"`
	OriginPatterns []string    `yaml:"origin_patterns"`
	Hooks          HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// AudioConfig represents the output device and clip location.
type AudioConfig struct {
	ClipDir    string  `yaml:"clip_dir" default:"."`
	Disabled   bool    `yaml:"disabled"` // run with muted lines, no sound card
	SampleRate int     `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs   int     `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
	MinGainDB  float64 `yaml:"min_gain_db" default:"-80" validate:"lt=0"`
	MaxGainDB  float64 `yaml:"max_gain_db" default:"6"`
	HeadroomDB float64 `yaml:"headroom_db" default:"10" validate:"gte=0"`
}

// FadeConfig represents the fade-out ramp.
type FadeConfig struct {
	Steps  int `yaml:"steps" default:"400" validate:"gte=1,lte=10000"`
	StepMs int `yaml:"step_ms" default:"5" validate:"gte=1,lte=1000"`
}

// ExecutorConfig represents the worker pool sizing.
type ExecutorConfig struct {
	Workers   int `yaml:"workers" default:"8" validate:"gte=1,lte=256"`
	QueueSize int `yaml:"queue_size" default:"64" validate:"gte=1,lte=4096"`
}

// SlotConfig assigns a clip file to a playback slot.
type SlotConfig struct {
	File string `yaml:"file" validate:"required"`
	Loop bool   `yaml:"loop"`
}

// CommandConfig binds a command token to an action.
type CommandConfig struct {
	Action   string         `yaml:"action" validate:"required"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses, defaults and validates configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("GOALHORN_ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("GOALHORN_CLIP_DIR"); v != "" {
		c.Audio.ClipDir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if _, ok := c.Slots[c.ContinuousSlot]; !ok {
		return errors.Newf("continuous_slot %q is not a configured slot", c.ContinuousSlot)
	}

	if c.Audio.MaxGainDB <= c.Audio.MinGainDB {
		return errors.Newf("max_gain_db (%.1f) must be greater than min_gain_db (%.1f)",
			c.Audio.MaxGainDB, c.Audio.MinGainDB)
	}
	if c.Audio.MaxGainDB-c.Audio.HeadroomDB <= c.Audio.MinGainDB {
		return errors.Newf("headroom_db (%.1f) leaves no usable gain above min_gain_db (%.1f)",
			c.Audio.HeadroomDB, c.Audio.MinGainDB)
	}

	return nil
}

// StepDuration returns the duration of a single fade step.
func (f FadeConfig) StepDuration() time.Duration {
	return time.Duration(f.StepMs) * time.Millisecond
}

// BufferDuration returns the speaker buffer length.
func (a AudioConfig) BufferDuration() time.Duration {
	return time.Duration(a.BufferMs) * time.Millisecond
}

// SlotNames returns the configured slot names in sorted order.
func (c *Config) SlotNames() []string {
	names := make([]string, 0, len(c.Slots))
	for name := range c.Slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CommandTokens returns the configured command tokens in sorted order.
func (c *Config) CommandTokens() []string {
	tokens := make([]string, 0, len(c.Commands))
	for token := range c.Commands {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}
