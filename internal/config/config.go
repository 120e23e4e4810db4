// Package config loads cockpit settings and environment definitions with
// viper. Values come, in increasing precedence, from defaults, the config
// file, COCKPIT_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is looked up in the home directory.
	ConfigFileName = ".cockpit-client.yaml"
	// FallbackConfigFileName is looked up in the working directory and next
	// to the executable when the home directory has none.
	FallbackConfigFileName = "cockpit-client.yaml"

	// ConfigPathEnv overrides config discovery.
	ConfigPathEnv = "COCKPIT_CONFIG"

	envPrefix = "COCKPIT"
)

var v *viper.Viper

// Initialize sets up the viper instance. explicitPath, when non-empty, must
// exist; otherwise the discovered file is used if there is one. Running
// without any config file is not an error here; commands that need
// environments report it.
func Initialize(explicitPath string) error {
	v = viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, s := range Settings {
		if s.Default != nil {
			v.SetDefault(s.Key, s.Default)
		}
		if s.EnvVar != "" {
			_ = v.BindEnv(s.Key, s.EnvVar)
		}
	}

	path, err := FindConfigPath(explicitPath)
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// FindConfigPath resolves which config file to load:
//  1. explicitPath (the --config flag)
//  2. $COCKPIT_CONFIG
//  3. ~/.cockpit-client.yaml
//  4. ./cockpit-client.yaml
//  5. cockpit-client.yaml next to the executable
//
// The first two must exist. An empty result means no file was found.
func FindConfigPath(explicitPath string) (string, error) {
	if explicitPath == "" {
		explicitPath = os.Getenv(ConfigPathEnv)
	}
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicitPath, err)
		}
		return explicitPath, nil
	}

	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ConfigFileName))
	}
	candidates = append(candidates, FallbackConfigFileName)
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), FallbackConfigFileName))
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", nil
}

// ConfigFileUsed returns the loaded config file path, or "".
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// BindFlag makes a command-line flag override key when the flag is set.
func BindFlag(key string, flag *pflag.Flag) error {
	if v == nil {
		return errors.New("config not initialized")
	}
	if flag == nil {
		return fmt.Errorf("no flag for %s", key)
	}
	return v.BindPFlag(key, flag)
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set sets a configuration value for the current process only.
func Set(key string, value any) {
	if v != nil {
		v.Set(key, value)
	}
}

// ResetForTesting drops the viper instance so the next Initialize starts
// clean.
func ResetForTesting() {
	v = nil
}
