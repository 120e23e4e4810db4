package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/steveyegge/cockpit/internal/auth"
)

var (
	ErrNoConfig           = errors.New("no config file found")
	ErrNoEnvironment      = errors.New("no environment selected")
	ErrUnknownEnvironment = errors.New("unknown environment")
	ErrNoEngines          = errors.New("environment has no engines")
	ErrUnknownEngine      = errors.New("unknown engine")
)

// Environment is one deployment of engines behind a common base URL.
//
// Both layouts are accepted:
//
//	environments:
//	  prod:
//	    url: https://bpm.example.com
//	    engines: [order-engine, billing-engine]
//	    auth: oauth
//
// and, as older config files have it, the environments at top level:
//
//	prod:
//	  url: https://bpm.example.com
//	  engines: [order-engine]
//
// Environment names are case-insensitive.
type Environment struct {
	Name    string   `yaml:"-" json:"name"`
	URL     string   `yaml:"url" json:"url"`
	Engines []string `yaml:"engines" json:"engines"`
	Auth    string   `yaml:"auth,omitempty" json:"auth,omitempty"`
	Verify  bool     `yaml:"verify" json:"verify"`
}

type rawEnvironment struct {
	URL     string   `mapstructure:"url"`
	Engines []string `mapstructure:"engines"`
	Auth    string   `mapstructure:"auth"`
	Verify  *bool    `mapstructure:"verify"`
}

// AuthKind returns the parsed auth kind.
func (e *Environment) AuthKind() (auth.Kind, error) {
	return auth.ParseKind(e.Auth)
}

// Validate checks that the environment can be used.
func (e *Environment) Validate() error {
	if e.URL == "" {
		return fmt.Errorf("environment %s: url is required", e.Name)
	}
	u, err := url.Parse(e.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("environment %s: url %q must be an absolute http(s) URL", e.Name, e.URL)
	}
	if len(e.Engines) == 0 {
		return fmt.Errorf("environment %s: %w", e.Name, ErrNoEngines)
	}
	seen := make(map[string]bool, len(e.Engines))
	for _, name := range e.Engines {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("environment %s: empty engine name", e.Name)
		}
		if seen[name] {
			return fmt.Errorf("environment %s: engine %s listed twice", e.Name, name)
		}
		seen[name] = true
	}
	if _, err := e.AuthKind(); err != nil {
		return fmt.Errorf("environment %s: %w", e.Name, err)
	}
	return nil
}

// SelectEngines returns the engines to run on, in configured order: every
// engine when all is set, otherwise only name.
func (e *Environment) SelectEngines(name string, all bool) ([]string, error) {
	switch {
	case all && name != "":
		return nil, errors.New("use either --name or --all, not both")
	case all:
		if len(e.Engines) == 0 {
			return nil, fmt.Errorf("environment %s: %w", e.Name, ErrNoEngines)
		}
		return slices.Clone(e.Engines), nil
	case name == "":
		return nil, errors.New("please specify a process engine with --name or use --all to run on all process engines")
	case !slices.Contains(e.Engines, name):
		return nil, fmt.Errorf("%w %q in environment %s (valid: %s)", ErrUnknownEngine, name, e.Name, strings.Join(e.Engines, ", "))
	default:
		return []string{name}, nil
	}
}

// Environments returns every environment defined in the loaded config.
func Environments() (map[string]*Environment, error) {
	if v == nil || v.ConfigFileUsed() == "" {
		return nil, ErrNoConfig
	}

	var names []string
	prefix := ""
	if v.IsSet("environments") {
		prefix = "environments."
		for name := range v.GetStringMap("environments") {
			names = append(names, name)
		}
	} else {
		for name, val := range v.AllSettings() {
			if m, ok := val.(map[string]any); ok && isEnvironmentMap(m) {
				names = append(names, name)
			}
		}
	}

	envs := make(map[string]*Environment, len(names))
	for _, name := range names {
		var raw rawEnvironment
		if err := v.UnmarshalKey(prefix+name, &raw); err != nil {
			return nil, fmt.Errorf("environment %s: %w", name, err)
		}
		env := &Environment{
			Name:    name,
			URL:     strings.TrimRight(raw.URL, "/"),
			Engines: raw.Engines,
			Auth:    raw.Auth,
			Verify:  raw.Verify == nil || *raw.Verify,
		}
		envs[name] = env
	}
	return envs, nil
}

func isEnvironmentMap(m map[string]any) bool {
	_, hasURL := m["url"]
	_, hasEngines := m["engines"]
	return hasURL || hasEngines
}

// EnvironmentNames returns the configured environment names, sorted.
func EnvironmentNames(envs map[string]*Environment) []string {
	names := make([]string, 0, len(envs))
	for name := range envs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveEnvironment picks and validates the named environment. An empty
// name is allowed when exactly one environment is configured.
func ResolveEnvironment(name string) (*Environment, error) {
	envs, err := Environments()
	if err != nil {
		return nil, err
	}
	names := EnvironmentNames(envs)
	if name == "" {
		if len(envs) != 1 {
			return nil, fmt.Errorf("%w: use --environment (available: %s)", ErrNoEnvironment, strings.Join(names, ", "))
		}
		name = names[0]
	}
	env, ok := envs[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownEnvironment, name, strings.Join(names, ", "))
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}
