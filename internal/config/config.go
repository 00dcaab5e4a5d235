// Package config loads spoq's small peripheral settings surface (backend
// URL, control-channel URL, auth token file, log level) with a
// user → project → environment → flag merge precedence (there is no
// separate local-settings layer), adapting the teacher's settings loader
// for Claude-style JSON settings onto
// github.com/spf13/viper instead of a hand-rolled JSON merge — viper is
// already a teacher-adjacent dependency (see go.mod) and is the natural
// fit for layered config-file-plus-env-plus-flag precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings is spoq's resolved runtime configuration.
type Settings struct {
	BackendURL    string `mapstructure:"backend_url"`
	ControlURL    string `mapstructure:"control_url"`
	AuthTokenPath string `mapstructure:"auth_token_path"`
	LogLevel      string `mapstructure:"log_level"`
}

func defaults() Settings {
	return Settings{
		BackendURL: "https://api.spoq.dev",
		ControlURL: "wss://api.spoq.dev/v1/control",
		LogLevel:   "info",
	}
}

// Load resolves Settings by layering, lowest precedence first: built-in
// defaults, the user config file (~/.spoq/config.yaml), the project config
// file (.spoq/config.yaml under the nearest directory, cwd or a parent,
// that contains .git), SPOQ_*
// environment variables, then any flags already bound into fs (typically
// the root cobra command's persistent flags). Missing config files are not
// an error — first-run spoq has none.
func Load(cwd string, fs *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	def := defaults()
	v.SetDefault("backend_url", def.BackendURL)
	v.SetDefault("control_url", def.ControlURL)
	v.SetDefault("log_level", def.LogLevel)

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	v.AddConfigPath(filepath.Join(home, ".spoq"))
	if err := mergeIfPresent(v); err != nil {
		return nil, err
	}

	projectRoot := findProjectRoot(cwd)
	if projectRoot != "" {
		projV := viper.New()
		projV.SetConfigName("config")
		projV.SetConfigType("yaml")
		projV.AddConfigPath(filepath.Join(projectRoot, ".spoq"))
		if err := mergeIfPresent(projV); err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(projV.AllSettings()); err != nil {
			return nil, fmt.Errorf("merge project config: %w", err)
		}
	}

	v.SetEnvPrefix("spoq")
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var out Settings
	if err := v.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if out.AuthTokenPath == "" {
		out.AuthTokenPath = filepath.Join(home, ".spoq", "credentials.json")
	}
	return &out, nil
}

func mergeIfPresent(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// findProjectRoot locates the nearest parent directory containing .git,
// mirroring the teacher's own settings-path resolution.
func findProjectRoot(cwd string) string {
	current := filepath.Clean(cwd)
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}
