package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/cockpit/internal/config"
	"github.com/steveyegge/cockpit/internal/ui"
)

func (a *app) envCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect configured environments",
	}
	cmd.AddCommand(a.envListCmd(), a.envShowCmd())
	return cmd
}

func (a *app) envListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			envs, err := config.Environments()
			if err != nil {
				return configHint(err)
			}
			names := config.EnvironmentNames(envs)
			out := cmd.OutOrStdout()

			if config.GetBool(config.KeyJSON) {
				list := make([]*config.Environment, 0, len(names))
				for _, name := range names {
					list = append(list, envs[name])
				}
				return outputJSON(out, list)
			}

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				env := envs[name]
				kind, err := env.AuthKind()
				authText := string(kind)
				if err != nil {
					authText = ui.RenderFail(env.Auth)
				}
				rows = append(rows, []string{
					name,
					env.URL,
					strings.Join(env.Engines, ", "),
					authText,
					strconv.FormatBool(env.Verify),
				})
			}
			fmt.Fprint(out, ui.Table([]string{"Environment", "URL", "Engines", "Auth", "Verify TLS"}, rows))
			fmt.Fprintln(out, ui.RenderMuted("config: "+config.ConfigFileUsed()))
			return nil
		},
	}
}

// envView is what `env show` prints. Credentials are only reported as set or
// unset.
type envView struct {
	Name        string   `yaml:"name" json:"name"`
	URL         string   `yaml:"url" json:"url"`
	Engines     []string `yaml:"engines" json:"engines"`
	Auth        string   `yaml:"auth" json:"auth"`
	Verify      bool     `yaml:"verify" json:"verify"`
	Credentials []string `yaml:"credentials" json:"credentials"`
	ConfigFile  string   `yaml:"config_file" json:"config_file"`
}

func (a *app) envShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [environment]",
		Short: "Show one environment and which credentials are set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := config.GetString(config.KeyEnvironment)
			if len(args) == 1 {
				name = args[0]
			}
			env, err := config.ResolveEnvironment(name)
			if err != nil {
				return configHint(err)
			}
			kind, _ := env.AuthKind()
			view := envView{
				Name:        env.Name,
				URL:         env.URL,
				Engines:     env.Engines,
				Auth:        string(kind),
				Verify:      env.Verify,
				Credentials: credentialStatus(),
				ConfigFile:  config.ConfigFileUsed(),
			}

			out := cmd.OutOrStdout()
			if config.GetBool(config.KeyJSON) {
				return outputJSON(out, view)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(view); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

// credentialStatus lists every credential setting as "key: set" or
// "key: unset", never the value.
func credentialStatus() []string {
	var out []string
	for _, key := range []string{config.KeyUsername, config.KeyPassword, config.KeyToken} {
		state := "unset"
		if config.GetString(key) != "" {
			state = "set"
		}
		out = append(out, key+": "+state)
	}
	return out
}

func configHint(err error) error {
	return withHint(err, fmt.Sprintf("create ~/%s or pass --config", config.ConfigFileName))
}
