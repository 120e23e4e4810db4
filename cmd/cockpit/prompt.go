package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/steveyegge/cockpit/internal/auth"
	"github.com/steveyegge/cockpit/internal/config"
	"github.com/steveyegge/cockpit/internal/ui"
)

var errPromptAborted = errors.New("login cancelled")

// prompter asks the operator for a missing credential.
type prompter interface {
	// Available reports whether anyone can answer a prompt.
	Available() bool
	Ask(title string, secret bool) (string, error)
}

type huhPrompter struct{}

func (huhPrompter) Available() bool {
	return ui.IsStdinTerminal()
}

func (huhPrompter) Ask(title string, secret bool) (string, error) {
	var value string
	input := huh.NewInput().
		Title(title).
		Value(&value)
	if secret {
		input = input.EchoMode(huh.EchoModePassword)
	}
	err := huh.NewForm(huh.NewGroup(input)).WithTheme(huh.ThemeDracula()).Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", errPromptAborted
		}
		return "", fmt.Errorf("prompt: %w", err)
	}
	return value, nil
}

// credentials collects what kind needs from flags, config and environment,
// prompting for whatever is still missing.
func (a *app) credentials(kind auth.Kind) (auth.Credentials, error) {
	creds := auth.Credentials{
		Username: config.GetString(config.KeyUsername),
		Password: config.GetString(config.KeyPassword),
		Token:    config.GetString(config.KeyToken),
	}

	ask := func(dest *string, title, flag string, secret bool) error {
		if *dest != "" {
			return nil
		}
		if !a.prompter.Available() {
			return withHint(fmt.Errorf("%s is required", flag),
				fmt.Sprintf("pass --%s or set %s", flag, config.SettingEnvMap()[flag]))
		}
		v, err := a.prompter.Ask(title, secret)
		if err != nil {
			return err
		}
		*dest = v
		return nil
	}

	if kind.IsToken() {
		return creds, ask(&creds.Token, "Token", config.KeyToken, true)
	}
	if err := ask(&creds.Username, "User Name", config.KeyUsername, false); err != nil {
		return creds, err
	}
	return creds, ask(&creds.Password, "Password", config.KeyPassword, true)
}
