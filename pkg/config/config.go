// Package config loads konata settings from TOML.
//
// A konata.toml found in the working directory or any parent (stopping at
// a .git boundary) wins over the user file at
// $XDG_CONFIG_HOME/konata/config.toml. Unset keys keep their defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"

	"github.com/vito/konata/pkg/kanata"
	"github.com/vito/konata/pkg/palette"
)

// FileName is the project config file searched for upward from the
// working directory.
const FileName = "konata.toml"

// UserFile is the config path relative to the XDG config directories.
var UserFile = filepath.Join("konata", "config.toml")

// Config is the decoded configuration.
type Config struct {
	// Lenient skips malformed trace lines instead of failing.
	Lenient bool `toml:"lenient"`

	// MaxLineBytes bounds one trace line. 0 selects the reader default.
	MaxLineBytes int `toml:"max_line_bytes"`

	Palette PaletteConfig `toml:"palette"`
	Keys    KeysConfig    `toml:"keys"`
	Log     LogConfig     `toml:"log"`
}

type PaletteConfig struct {
	Saturation float64 `toml:"saturation"`
	Lightness  float64 `toml:"lightness"`
}

type KeysConfig struct {
	// Quit lists key names, like "q" or "ctrl+c", that end the viewer.
	Quit []string `toml:"quit"`
}

type LogConfig struct {
	// File receives logs while the viewer owns the terminal.
	File string `toml:"file"`

	// Level is one of debug, info, warn or error.
	Level string `toml:"level"`
}

// Default returns the built-in settings.
func Default() Config {
	pal := palette.DefaultConfig()
	return Config{
		Palette: PaletteConfig{
			Saturation: pal.Saturation,
			Lightness:  pal.Lightness,
		},
		Keys: KeysConfig{
			Quit: []string{"f2", "q", "ctrl+c"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load decodes the file at path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("parsing %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Find returns the config file that applies to dir, or "" if there is
// none.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}

		// Stop at .git boundary
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	path, err := xdg.SearchConfigFile(UserFile)
	if err != nil {
		// SearchConfigFile fails when no candidate exists.
		return "", nil
	}
	return path, nil
}

// Resolve loads the explicit path if given, else whatever Find locates from
// dir, else the defaults. It returns the path it loaded, if any.
func Resolve(explicit, dir string) (string, Config, error) {
	path := explicit
	if path == "" {
		found, err := Find(dir)
		if err != nil {
			return "", Config{}, err
		}
		if found == "" {
			return "", Default(), nil
		}
		path = found
	}
	cfg, err := Load(path)
	if err != nil {
		return "", Config{}, err
	}
	return path, cfg, nil
}

// Validate rejects values no component can use.
func (c Config) Validate() error {
	var errs []error
	if c.MaxLineBytes < 0 {
		errs = append(errs, fmt.Errorf("max_line_bytes must not be negative, got %d", c.MaxLineBytes))
	}
	if c.Palette.Saturation < 0 || c.Palette.Saturation > 1 {
		errs = append(errs, fmt.Errorf("palette.saturation must be within [0, 1], got %g", c.Palette.Saturation))
	}
	if c.Palette.Lightness < 0 || c.Palette.Lightness > 1 {
		errs = append(errs, fmt.Errorf("palette.lightness must be within [0, 1], got %g", c.Palette.Lightness))
	}
	if len(c.Keys.Quit) == 0 {
		errs = append(errs, errors.New("keys.quit must name at least one key"))
	}
	for _, k := range c.Keys.Quit {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, errors.New("keys.quit contains an empty key name"))
			break
		}
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LogLevel parses Log.Level. An empty level means info.
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// PaletteConfig returns the palette settings.
func (c Config) PaletteConfig() palette.Config {
	return palette.Config{
		Saturation: c.Palette.Saturation,
		Lightness:  c.Palette.Lightness,
	}
}

// ReadOptions returns the trace reader settings.
func (c Config) ReadOptions() []kanata.ReadOption {
	return []kanata.ReadOption{
		kanata.WithLenient(c.Lenient),
		kanata.WithMaxLineBytes(c.MaxLineBytes),
	}
}
