// Package config loads macsnap settings: built-in defaults, then the YAML
// config file, then MACSNAP_ environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// AppName names the config and state directories.
const AppName = "macsnap"

// EnvPrefix is the prefix of environment overrides, e.g. MACSNAP_INSTALL_TIMEOUT.
const EnvPrefix = "MACSNAP_"

// Config is the effective configuration.
type Config struct {
	Install InstallConfig `koanf:"install" yaml:"install"`
	Log     LogConfig     `koanf:"log" yaml:"log"`
	History HistoryConfig `koanf:"history" yaml:"history"`
}

// InstallConfig holds the defaults of `macsnap install`.
type InstallConfig struct {
	Timeout          time.Duration `koanf:"timeout" yaml:"timeout"`
	PauseOnError     bool          `koanf:"pause_on_error" yaml:"pause_on_error"`
	ProgressFile     string        `koanf:"progress_file" yaml:"progress_file"`
	BrewPrefix       string        `koanf:"brew_prefix" yaml:"brew_prefix"`
	AppDir           string        `koanf:"app_dir" yaml:"app_dir"`
	PriorityFormulae []string      `koanf:"priority_formulae" yaml:"priority_formulae"`
}

// LogConfig locates the run log.
type LogConfig struct {
	File string `koanf:"file" yaml:"file"`
}

// HistoryConfig controls the install history database.
type HistoryConfig struct {
	DB      string `koanf:"db" yaml:"db"`
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
}

// Dir returns the macsnap config directory, respecting XDG_CONFIG_HOME.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// StateDir returns the macsnap state directory, respecting XDG_STATE_HOME.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// DefaultPath is where the config file is looked up when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	state := StateDir()
	return &Config{
		Install: InstallConfig{
			Timeout:          5 * time.Minute,
			PauseOnError:     true,
			ProgressFile:     filepath.Join(state, "progress.json"),
			PriorityFormulae: []string{"git", "curl", "wget", "openssl"},
		},
		Log: LogConfig{
			File: filepath.Join(state, "install.log"),
		},
		History: HistoryConfig{
			DB:      filepath.Join(state, "history.db"),
			Enabled: true,
		},
	}
}

func defaultMap() map[string]interface{} {
	d := Defaults()
	return map[string]interface{}{
		"install.timeout":           d.Install.Timeout.String(),
		"install.pause_on_error":    d.Install.PauseOnError,
		"install.progress_file":     d.Install.ProgressFile,
		"install.brew_prefix":       d.Install.BrewPrefix,
		"install.app_dir":           d.Install.AppDir,
		"install.priority_formulae": d.Install.PriorityFormulae,
		"log.file":                  d.Log.File,
		"history.db":                d.History.DB,
		"history.enabled":           d.History.Enabled,
	}
}

// envKey maps MACSNAP_INSTALL_PAUSE_ON_ERROR to install.pause_on_error: the
// first underscore separates the section, the rest belong to the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Load builds the effective configuration. An empty path means DefaultPath,
// which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.expand()
	return &cfg, nil
}

// expand resolves a leading ~ in path settings.
func (c *Config) expand() {
	c.Install.ProgressFile = ExpandHome(c.Install.ProgressFile)
	c.Install.BrewPrefix = ExpandHome(c.Install.BrewPrefix)
	c.Install.AppDir = ExpandHome(c.Install.AppDir)
	c.Log.File = ExpandHome(c.Log.File)
	c.History.DB = ExpandHome(c.History.DB)
}

// ExpandHome replaces a leading "~" with the home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	out := struct {
		Install struct {
			Timeout          string   `yaml:"timeout"`
			PauseOnError     bool     `yaml:"pause_on_error"`
			ProgressFile     string   `yaml:"progress_file"`
			BrewPrefix       string   `yaml:"brew_prefix"`
			AppDir           string   `yaml:"app_dir"`
			PriorityFormulae []string `yaml:"priority_formulae"`
		} `yaml:"install"`
		Log     LogConfig     `yaml:"log"`
		History HistoryConfig `yaml:"history"`
	}{Log: c.Log, History: c.History}
	out.Install.Timeout = c.Install.Timeout.String()
	out.Install.PauseOnError = c.Install.PauseOnError
	out.Install.ProgressFile = c.Install.ProgressFile
	out.Install.BrewPrefix = c.Install.BrewPrefix
	out.Install.AppDir = c.Install.AppDir
	out.Install.PriorityFormulae = c.Install.PriorityFormulae

	data, err := yamlv3.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// WriteDefault writes the built-in configuration to path. An existing file
// is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
	}
	data, err := Defaults().Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
