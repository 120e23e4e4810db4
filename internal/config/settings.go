package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Setting describes a top-level key that can come from the config file, a
// COCKPIT_* environment variable or a command-line flag.
type Setting struct {
	Key         string // viper key, also the flag name
	Description string
	EnvVar      string // bound environment variable
	Secret      bool   // never printed by `env show`
	Default     any
	Validate    func(string) error
}

// Setting keys.
const (
	KeyEnvironment     = "environment"
	KeyUsername        = "username"
	KeyPassword        = "password"
	KeyToken           = "token"
	KeyVerbose         = "verbose"
	KeyQuiet           = "quiet"
	KeyJSON            = "json"
	KeyInsecure        = "insecure"
	KeyTimeout         = "timeout"
	KeyLoginMaxElapsed = "login-max-elapsed"
	KeyMaxCascadeDepth = "max-cascade-depth"
)

// Settings lists every known setting.
var Settings = []Setting{
	{
		Key:         KeyEnvironment,
		Description: "Environment to run against (a name under environments:)",
		EnvVar:      "COCKPIT_ENVIRONMENT",
	},
	{
		Key:         KeyUsername,
		Description: "User name for basic auth",
		EnvVar:      "COCKPIT_USERNAME",
	},
	{
		Key:         KeyPassword,
		Description: "Password for basic auth",
		EnvVar:      "COCKPIT_PASSWORD",
		Secret:      true,
	},
	{
		Key:         KeyToken,
		Description: "Bearer token for oauth/token auth",
		EnvVar:      "COCKPIT_TOKEN",
		Secret:      true,
	},
	{
		Key:         KeyVerbose,
		Description: "Print progress for every engine",
		EnvVar:      "COCKPIT_VERBOSE",
		Default:     false,
		Validate:    validateBool,
	},
	{
		Key:         KeyQuiet,
		Description: "Only print errors",
		EnvVar:      "COCKPIT_QUIET",
		Default:     false,
		Validate:    validateBool,
	},
	{
		Key:         KeyJSON,
		Description: "Print the run report as JSON",
		EnvVar:      "COCKPIT_JSON",
		Default:     false,
		Validate:    validateBool,
	},
	{
		Key:         KeyInsecure,
		Description: "Skip TLS verification for every environment",
		EnvVar:      "COCKPIT_INSECURE",
		Default:     false,
		Validate:    validateBool,
	},
	{
		Key:         KeyTimeout,
		Description: "HTTP timeout per engine request",
		EnvVar:      "COCKPIT_TIMEOUT",
		Default:     "30s",
		Validate:    validateDuration,
	},
	{
		Key:         KeyLoginMaxElapsed,
		Description: "How long a login is retried on connection errors",
		EnvVar:      "COCKPIT_LOGIN_MAX_ELAPSED",
		Default:     "10s",
		Validate:    validateDuration,
	},
	{
		Key:         KeyMaxCascadeDepth,
		Description: "How many parent levels a cancel climbs",
		EnvVar:      "COCKPIT_MAX_CASCADE_DEPTH",
		Default:     64,
		Validate:    validatePositiveInt,
	},
}

var settingMap map[string]*Setting

func init() {
	settingMap = make(map[string]*Setting, len(Settings))
	for i := range Settings {
		settingMap[Settings[i].Key] = &Settings[i]
	}
}

// LookupSetting returns the Setting for key, or nil if key is unknown.
func LookupSetting(key string) *Setting {
	return settingMap[key]
}

// ValidateSetting checks whether key is known and value is acceptable for it.
func ValidateSetting(key, value string) error {
	s := settingMap[key]
	if s == nil {
		known := make([]string, 0, len(Settings))
		for _, k := range Settings {
			known = append(known, k.Key)
		}
		return fmt.Errorf("unknown setting %q; valid keys: %s", key, strings.Join(known, ", "))
	}
	if s.Validate != nil {
		if err := s.Validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return nil
}

// SettingEnvMap returns a mapping from setting key to environment variable.
func SettingEnvMap() map[string]string {
	m := make(map[string]string, len(Settings))
	for _, s := range Settings {
		if s.EnvVar != "" {
			m[s.Key] = s.EnvVar
		}
	}
	return m
}

// Validation helpers

func validateDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration like 30s or 2m, got %q", value)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}

func validatePositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateBool(value string) error {
	switch strings.ToLower(value) {
	case "true", "false", "1", "0", "yes", "no":
		return nil
	default:
		return fmt.Errorf("must be true or false, got %q", value)
	}
}
