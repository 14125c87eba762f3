// Package config handles orchestration settings for steptest.
// It supports a project-level .steptest.yaml, STEPTEST_* environment variables
// and programmatic option maps.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ProjectConfigName is the file searched for in the working directory and its parents.
const ProjectConfigName = ".steptest.yaml"

// EnvPrefix prefixes environment overrides, e.g. STEPTEST_LOOP_LIMIT.
const EnvPrefix = "STEPTEST"

// DefaultLoopLimit is the repetition count at which the loop guard fires.
const DefaultLoopLimit = 2

// ErrInvalidSettings is wrapped by every validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Expansion is the policy used to turn a one-to-many relation into plan branches.
type Expansion string

const (
	// ExpansionAll creates one branch per related step.
	ExpansionAll Expansion = "all"
	// ExpansionRandom creates one branch for a uniformly chosen related step.
	ExpansionRandom Expansion = "random"
	// ExpansionMain creates one branch for the first declared related step.
	ExpansionMain Expansion = "main"
)

// Valid returns true if the expansion is a known value.
func (e Expansion) Valid() bool {
	switch e {
	case ExpansionAll, ExpansionRandom, ExpansionMain:
		return true
	default:
		return false
	}
}

// Settings holds the orchestration settings owned by one Orchestrator.
type Settings struct {
	// Enabled turns orchestration on. When false every entry point is a no-op
	// and substitution always runs the real implementation.
	Enabled bool `mapstructure:"enabled"`
	// ParentExpansion is the policy for dependencies.
	ParentExpansion Expansion `mapstructure:"parent_expansion"`
	// ChildrenExpansion is the policy for children.
	ChildrenExpansion Expansion `mapstructure:"children_expansion"`
	// LoopLimit is the occurrence count within one branch that is treated as
	// an infinite loop. Must be at least 2.
	LoopLimit int `mapstructure:"loop_limit"`
	// Verbose prints progress and relationship diagnostics.
	Verbose bool `mapstructure:"verbose"`
}

// Config holds the settings plus CLI-only options.
type Config struct {
	Settings `mapstructure:",squash"`
	// LogFile is the debug log path. Empty disables the debug log.
	LogFile string `mapstructure:"log_file"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Enabled:           false,
		ParentExpansion:   ExpansionAll,
		ChildrenExpansion: ExpansionAll,
		LoopLimit:         DefaultLoopLimit,
		Verbose:           false,
	}
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{Settings: DefaultSettings()}
}

// Validate checks that every setting has an accepted value.
func (s Settings) Validate() error {
	if !s.ParentExpansion.Valid() {
		return fmt.Errorf("%w: parent_expansion %q (want all, random or main)", ErrInvalidSettings, s.ParentExpansion)
	}
	if !s.ChildrenExpansion.Valid() {
		return fmt.Errorf("%w: children_expansion %q (want all, random or main)", ErrInvalidSettings, s.ChildrenExpansion)
	}
	if s.LoopLimit < 2 {
		return fmt.Errorf("%w: loop_limit %d (must be at least 2)", ErrInvalidSettings, s.LoopLimit)
	}
	return nil
}

// Sanitize returns s with every invalid field replaced by its default.
func (s Settings) Sanitize() Settings {
	def := DefaultSettings()
	if !s.ParentExpansion.Valid() {
		s.ParentExpansion = def.ParentExpansion
	}
	if !s.ChildrenExpansion.Valid() {
		s.ChildrenExpansion = def.ChildrenExpansion
	}
	if s.LoopLimit < 2 {
		s.LoopLimit = def.LoopLimit
	}
	return s
}

// Apply returns s updated with the recognized keys of options. Unrecognized
// keys are ignored and keys not present keep their current value. Values are
// decoded leniently, so "3" and "true" are accepted for numbers and booleans.
func (s Settings) Apply(options map[string]any) (Settings, error) {
	v := viper.New()
	setSettingsDefaults(v, s)

	if err := v.MergeConfigMap(NormalizeOptions(options)); err != nil {
		return s, fmt.Errorf("merging options: %w", err)
	}

	var out Settings
	if err := v.Unmarshal(&out); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := out.Validate(); err != nil {
		return s, err
	}
	return out, nil
}

// Load loads configuration from the project config file and environment.
// Precedence (highest to lowest):
// 1. Environment variables (STEPTEST_LOOP_LIMIT, STEPTEST_VERBOSE, ...)
// 2. Project config (.steptest.yaml in current directory or parent)
// 3. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	if projectConfig := findProjectConfig(); projectConfig != "" {
		v.SetConfigFile(projectConfig)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.LogFile = os.ExpandEnv(cfg.LogFile)
	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	setSettingsDefaults(v, DefaultSettings())
	v.SetDefault(KeyLogFile, "")
}

func setSettingsDefaults(v *viper.Viper, s Settings) {
	v.SetDefault(KeyEnabled, s.Enabled)
	v.SetDefault(KeyParentExpansion, string(s.ParentExpansion))
	v.SetDefault(KeyChildrenExpansion, string(s.ChildrenExpansion))
	v.SetDefault(KeyLoopLimit, s.LoopLimit)
	v.SetDefault(KeyVerbose, s.Verbose)
}

// findProjectConfig searches for .steptest.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
