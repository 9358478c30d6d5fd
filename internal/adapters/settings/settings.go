// Package settings reads the per-user garden settings file.
package settings

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/zerr"
)

// Output modes accepted by the output setting.
const (
	OutputAuto        = "auto"
	OutputInteractive = "interactive"
	OutputLinear      = "linear"
	OutputJSON        = "json"
)

// FileName is the name of the settings file inside the user config directory.
const FileName = "settings.toml"

// Settings holds user level defaults. Project config and flags take precedence.
type Settings struct {
	Concurrency int             `toml:"concurrency"`
	Output      string          `toml:"output"`
	Daemon      DaemonSettings  `toml:"daemon"`
	History     HistorySettings `toml:"history"`
}

// DaemonSettings controls the background daemon.
type DaemonSettings struct {
	// Socket overrides the project local socket path when set.
	Socket            string   `toml:"socket"`
	HTTPAddr          string   `toml:"http_addr"`
	InactivityTimeout Duration `toml:"inactivity_timeout"`
}

// HistorySettings controls the task result history.
type HistorySettings struct {
	// Path overrides the project local history database when set.
	Path string `toml:"path"`
	// Keep is the number of runs retained.
	Keep int `toml:"keep"`
}

// Duration is a time.Duration written as a Go duration string such as "3h".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		Concurrency: 0,
		Output:      OutputAuto,
		Daemon: DaemonSettings{
			HTTPAddr:          "127.0.0.1:7719",
			InactivityTimeout: Duration{3 * time.Hour},
		},
		History: HistorySettings{
			Keep: 50,
		},
	}
}

// Path returns the settings file location, honouring $XDG_CONFIG_HOME.
func Path() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "garden", FileName), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", zerr.Wrap(err, "locate user config directory")
	}
	return filepath.Join(dir, "garden", FileName), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	s := DefaultSettings()

	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return DefaultSettings(), zerr.With(zerr.Wrap(domain.ErrSettingsParseFailed, err.Error()), "path", path)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		err := zerr.With(zerr.Wrap(domain.ErrSettingsParseFailed, "unknown keys"), "path", path)
		return DefaultSettings(), zerr.With(err, "keys", keys)
	}

	if err := s.Validate(); err != nil {
		return DefaultSettings(), zerr.With(err, "path", path)
	}
	return s, nil
}

// LoadDefault loads the settings file at Path.
func LoadDefault() (Settings, error) {
	p, err := Path()
	if err != nil {
		return DefaultSettings(), err
	}
	return Load(p)
}

// Save writes s to path, creating parent directories.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "create settings directory"), "path", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, domain.PrivateFilePerm) //nolint:gosec // User chosen settings path
	if err != nil {
		return zerr.With(zerr.Wrap(err, "open settings file"), "path", path)
	}
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		_ = f.Close()
		return zerr.With(zerr.Wrap(err, "encode settings"), "path", path)
	}
	return f.Close()
}

// Validate rejects settings the rest of the program cannot honour.
func (s Settings) Validate() error {
	if !slices.Contains([]string{OutputAuto, OutputInteractive, OutputLinear, OutputJSON}, s.Output) {
		return zerr.With(zerr.Wrap(domain.ErrSettingsParseFailed, "invalid output mode"), "output", s.Output)
	}
	if s.Concurrency < 0 {
		return zerr.With(zerr.Wrap(domain.ErrSettingsParseFailed, "concurrency must not be negative"), "concurrency", s.Concurrency)
	}
	if s.Daemon.InactivityTimeout.Duration < 0 {
		return zerr.Wrap(domain.ErrSettingsParseFailed, "inactivity timeout must not be negative")
	}
	return nil
}
