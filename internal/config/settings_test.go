package config

import (
	"testing"
)

func TestLookupSetting(t *testing.T) {
	s := LookupSetting(KeyPassword)
	if s == nil {
		t.Fatal("expected password to be a known setting")
	}
	if s.EnvVar != "COCKPIT_PASSWORD" {
		t.Errorf("expected EnvVar COCKPIT_PASSWORD, got %s", s.EnvVar)
	}
	if !s.Secret {
		t.Error("password must be marked secret")
	}

	if LookupSetting("nonexistent") != nil {
		t.Error("expected nil for unknown key")
	}
}

func TestValidateSetting_Known(t *testing.T) {
	tests := []struct {
		key   string
		value string
		valid bool
	}{
		{KeyTimeout, "30s", true},
		{KeyTimeout, "2m", true},
		{KeyTimeout, "soon", false},
		{KeyTimeout, "-1s", false},
		{KeyMaxCascadeDepth, "64", true},
		{KeyMaxCascadeDepth, "0", false},
		{KeyMaxCascadeDepth, "deep", false},
		{KeyJSON, "yes", true},
		{KeyJSON, "maybe", false},
		{KeyEnvironment, "anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := ValidateSetting(tt.key, tt.value)
			if tt.valid && err != nil {
				t.Errorf("ValidateSetting(%q, %q) unexpected error: %v", tt.key, tt.value, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("ValidateSetting(%q, %q) expected error, got nil", tt.key, tt.value)
			}
		})
	}
}

func TestValidateSetting_Unknown(t *testing.T) {
	if err := ValidateSetting("shard", "x"); err == nil {
		t.Error("expected error for unknown setting")
	}
}

func TestSettingEnvMap(t *testing.T) {
	m := SettingEnvMap()
	if m[KeyLoginMaxElapsed] != "COCKPIT_LOGIN_MAX_ELAPSED" {
		t.Errorf("expected COCKPIT_LOGIN_MAX_ELAPSED, got %s", m[KeyLoginMaxElapsed])
	}
	if len(m) != len(Settings) {
		t.Errorf("every setting should have an env var, got %d of %d", len(m), len(Settings))
	}
}

func TestAllSettingsHaveDescriptions(t *testing.T) {
	for _, s := range Settings {
		if s.Description == "" {
			t.Errorf("setting %q has no description", s.Key)
		}
	}
}

func TestSettingNoDuplicates(t *testing.T) {
	seen := make(map[string]bool)
	for _, s := range Settings {
		if seen[s.Key] {
			t.Errorf("duplicate setting: %s", s.Key)
		}
		seen[s.Key] = true
	}
}

func TestValidateBool(t *testing.T) {
	for _, val := range []string{"true", "false", "1", "0", "yes", "no"} {
		if err := validateBool(val); err != nil {
			t.Errorf("validateBool(%q) unexpected error: %v", val, err)
		}
	}
	if err := validateBool("maybe"); err == nil {
		t.Error("expected error for invalid bool 'maybe'")
	}
}
