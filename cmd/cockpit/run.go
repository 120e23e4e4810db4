package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/cockpit/internal/auth"
	"github.com/steveyegge/cockpit/internal/config"
	"github.com/steveyegge/cockpit/internal/debug"
	"github.com/steveyegge/cockpit/internal/engine"
	"github.com/steveyegge/cockpit/internal/remediate"
	"github.com/steveyegge/cockpit/internal/runner"
	"github.com/steveyegge/cockpit/internal/telemetry"
	"github.com/steveyegge/cockpit/internal/types"
	"github.com/steveyegge/cockpit/internal/ui"
)

// dialer opens a session to one engine of env.
type dialer func(env *config.Environment, engineName string, timeout time.Duration, insecure bool) (runner.Session, error)

func dialEngine(env *config.Environment, engineName string, timeout time.Duration, insecure bool) (runner.Session, error) {
	gw, err := engine.NewGateway(env.URL, engineName,
		engine.WithTimeout(timeout),
		engine.WithTLSVerify(env.Verify && !insecure),
	)
	if err != nil {
		return nil, err
	}
	return telemetry.WrapGateway(gw), nil
}

// execute resolves the environment and engines, authenticates and runs req
// on every selected engine, rendering results as they arrive.
func (a *app) execute(cmd *cobra.Command, req remediate.Request) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	jsonOutput := config.GetBool(config.KeyJSON)

	env, err := config.ResolveEnvironment(config.GetString(config.KeyEnvironment))
	if err != nil {
		return withHint(err, "run 'cockpit env list' to see the configured environments")
	}
	engines, err := env.SelectEngines(a.engineName, a.all)
	if err != nil {
		return err
	}
	kind, err := env.AuthKind()
	if err != nil {
		return err
	}
	creds, err := a.credentials(kind)
	if err != nil {
		return err
	}
	provider, err := auth.New(kind, creds, config.GetDuration(config.KeyLoginMaxElapsed))
	if err != nil {
		return err
	}

	logFilter(errOut, req)

	timeout := config.GetDuration(config.KeyTimeout)
	insecure := config.GetBool(config.KeyInsecure)
	if insecure || !env.Verify {
		debug.Logf("TLS verification disabled for %s\n", env.URL)
	}

	r := runner.New(provider, func(name string) (runner.Session, error) {
		return a.dial(env, name, timeout, insecure)
	})
	r.MaxCascadeDepth = config.GetInt(config.KeyMaxCascadeDepth)
	r.Logger = debug.NewLogger(errOut)
	if !jsonOutput {
		r.OnEngine = func(name string) {
			debug.Verbosef(out, "Running on process engine %s\n", name)
		}
		r.OnItem = func(item remediate.ItemResult) {
			if debug.IsQuiet() && item.Status != remediate.StatusFailed {
				return
			}
			fmt.Fprintln(out, ui.ItemLine(item))
		}
	}

	rep := r.Run(cmd.Context(), engines, req)

	if jsonOutput {
		if err := outputJSON(out, rep); err != nil {
			return err
		}
	} else if err := a.render(out, errOut, rep); err != nil {
		return err
	}

	if rep.Failed() {
		return errRunFailed
	}
	return nil
}

func logFilter(w io.Writer, req remediate.Request) {
	if req.Filter.From != nil {
		debug.Verbosef(w, "Filtering from timestamp %s\n", req.Filter.From.Format(time.RFC3339))
	}
	if req.Filter.To != nil {
		debug.Verbosef(w, "Filtering to timestamp %s\n", req.Filter.To.Format(time.RFC3339))
	}
}

// render prints the tables of a list or stats run, one error line per failed
// engine and, for retry and cancel runs, a per-engine summary.
func (a *app) render(out, errOut io.Writer, rep *runner.Report) error {
	switch rep.Action {
	case remediate.ActionList:
		if err := a.page(out, ui.FailedJobsTable(failedJobs(rep), ui.DefaultMessageWidth)); err != nil {
			return err
		}
	case remediate.ActionStats:
		for _, res := range rep.Engines {
			if res.Outcome != nil {
				fmt.Fprint(out, ui.StatisticsTable(res.Engine, res.Outcome.Statistics))
			}
		}
	default:
		if !debug.IsQuiet() {
			for _, res := range rep.Engines {
				if s := ui.Summary(res.Outcome); s != "" {
					fmt.Fprintln(out, s)
				}
			}
		}
	}

	for _, res := range rep.Engines {
		switch {
		case res.Skipped:
			warn(errOut, "engine %s skipped: %s", res.Engine, res.Error)
		case res.Err != nil:
			fmt.Fprintf(errOut, "%s engine %s: %s failed: %s\n", ui.RenderFail(ui.IconFail), res.Engine, res.Stage, res.Error)
		}
	}
	return nil
}

func failedJobs(rep *runner.Report) []types.FailedJob {
	var jobs []types.FailedJob
	for _, res := range rep.Engines {
		if res.Outcome != nil {
			jobs = append(jobs, res.Outcome.FailedJobs...)
		}
	}
	return jobs
}

// page writes content through the pager when writing to the real stdout.
func (a *app) page(out io.Writer, content string) error {
	if content == "" {
		return nil
	}
	if f, ok := out.(*os.File); ok && f == os.Stdout {
		return ui.ToPager(content, ui.PagerOptions{NoPager: a.noPager})
	}
	_, err := fmt.Fprint(out, content)
	return err
}
