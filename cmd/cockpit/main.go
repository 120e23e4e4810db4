// Command cockpit lists, retries and cancels failed jobs on one or more
// process engines of a configured environment.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/cockpit/internal/config"
	"github.com/steveyegge/cockpit/internal/debug"
	"github.com/steveyegge/cockpit/internal/telemetry"
	"github.com/steveyegge/cockpit/internal/ui"
)

// boundSettings are the persistent flags that double as config settings.
var boundSettings = []string{
	config.KeyEnvironment,
	config.KeyUsername,
	config.KeyPassword,
	config.KeyToken,
	config.KeyJSON,
	config.KeyVerbose,
	config.KeyQuiet,
	config.KeyInsecure,
	config.KeyTimeout,
	config.KeyLoginMaxElapsed,
	config.KeyMaxCascadeDepth,
}

// app holds the flag values that are not config settings plus the seams
// tests replace.
type app struct {
	cfgFile    string
	engineName string
	shard      string
	all        bool
	noPager    bool

	prompter prompter
	now      func() time.Time
	dial     dialer
	shutdown telemetry.ShutdownFunc
}

func newApp() *app {
	return &app{
		prompter: huhPrompter{},
		now:      time.Now,
		dial:     dialEngine,
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cockpit",
		Short: "cockpit - failed job remediation for process engines",
		Long: `Lists, retries and cancels failed jobs across the process engines of an
environment. Environments are read from ~/.cockpit-client.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default: ~/.cockpit-client.yaml)")
	pf.StringP(config.KeyEnvironment, "e", "", settingHelp(config.KeyEnvironment))
	pf.StringVarP(&a.engineName, "name", "n", "", "Process engine to run on")
	pf.StringVarP(&a.shard, "shard", "s", "", "Alias for --name")
	pf.BoolVarP(&a.all, "all", "a", false, "Run on every process engine of the environment")
	pf.StringP(config.KeyUsername, "u", "", settingHelp(config.KeyUsername))
	pf.StringP(config.KeyPassword, "p", "", settingHelp(config.KeyPassword))
	pf.StringP(config.KeyToken, "t", "", settingHelp(config.KeyToken))
	pf.Bool(config.KeyJSON, false, settingHelp(config.KeyJSON))
	pf.BoolP(config.KeyVerbose, "v", false, settingHelp(config.KeyVerbose))
	pf.BoolP(config.KeyQuiet, "q", false, settingHelp(config.KeyQuiet))
	pf.Bool(config.KeyInsecure, false, settingHelp(config.KeyInsecure))
	pf.Duration(config.KeyTimeout, 30*time.Second, settingHelp(config.KeyTimeout))
	pf.Duration(config.KeyLoginMaxElapsed, 10*time.Second, settingHelp(config.KeyLoginMaxElapsed))
	pf.Int(config.KeyMaxCascadeDepth, 64, settingHelp(config.KeyMaxCascadeDepth))
	pf.BoolVar(&a.noPager, "no-pager", false, "Do not pipe long output through a pager")
	_ = pf.MarkHidden("shard")

	root.AddCommand(
		a.listCmd(),
		a.retryCmd(),
		a.cancelCmd(),
		a.cancelInstanceCmd(),
		a.statsCmd(),
		a.envCmd(),
		versionCmd(),
	)
	return root
}

func settingHelp(key string) string {
	if s := config.LookupSetting(key); s != nil {
		return s.Description
	}
	return ""
}

// setup loads config, binds the persistent flags over it and applies the
// output settings.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.Initialize(a.cfgFile); err != nil {
		return err
	}
	flags := cmd.Root().PersistentFlags()
	for _, key := range boundSettings {
		if err := config.BindFlag(key, flags.Lookup(key)); err != nil {
			return err
		}
	}
	for _, key := range boundSettings {
		if err := validateBoundSetting(key); err != nil {
			return err
		}
	}

	if a.engineName == "" {
		a.engineName = a.shard
	}

	verbose, quiet := config.GetBool(config.KeyVerbose), config.GetBool(config.KeyQuiet)
	if verbose && quiet {
		return errors.New("use either --verbose or --quiet, not both")
	}
	debug.SetVerbose(verbose)
	debug.SetQuiet(quiet)
	ui.InitColor()

	shutdown, err := telemetry.Init(cmd.Context(), telemetry.OptionsFromEnv("cockpit", Version))
	if err != nil {
		return err
	}
	a.shutdown = shutdown
	return nil
}

// flushTelemetry exports whatever the run recorded.
func (a *app) flushTelemetry() {
	if a.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		warn(os.Stderr, "telemetry: %v", err)
	}
}

// validateBoundSetting runs the setting's validator on values that came from
// the config file or environment, where they are still strings.
func validateBoundSetting(key string) error {
	s := config.LookupSetting(key)
	if s == nil || s.Validate == nil {
		return nil
	}
	raw := config.GetString(key)
	if raw == "" {
		return nil
	}
	return config.ValidateSetting(key, raw)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := newApp()
	err := a.rootCmd().ExecuteContext(ctx)
	stop()
	a.flushTelemetry()

	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}
