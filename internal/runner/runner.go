// Package runner applies one remediation action to a list of engines, one
// engine at a time, keeping each engine's login session and failures to
// itself.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/cockpit/internal/auth"
	"github.com/steveyegge/cockpit/internal/remediate"
)

// Session is what the runner needs from an engine connection: the
// orchestrator's view of it and the auth provider's view of it.
type Session interface {
	remediate.Gateway
	auth.Session
}

// DialFunc builds a fresh session for the named engine.
type DialFunc func(engineName string) (Session, error)

// Runner runs a remediation request across engines.
type Runner struct {
	Auth            auth.Provider
	Dial            DialFunc
	MaxCascadeDepth int
	Logger          *slog.Logger

	// Callbacks for UI feedback (optional).
	OnEngine func(engineName string)
	OnItem   func(remediate.ItemResult)
	OnPhase  func(engineName string, p remediate.Phase)
}

// New creates a runner.
func New(provider auth.Provider, dial DialFunc) *Runner {
	return &Runner{
		Auth:            provider,
		Dial:            dial,
		MaxCascadeDepth: remediate.DefaultMaxCascadeDepth,
	}
}

func (r *Runner) log() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// EngineResult is what happened on one engine.
type EngineResult struct {
	Engine  string             `json:"engine"`
	Outcome *remediate.Outcome `json:"outcome,omitempty"`
	// Stage names where a failure happened: dial, login, action or logout.
	Stage   string `json:"stage,omitempty"`
	Error   string `json:"error,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`

	Err error `json:"-"`
}

// Failed reports whether the engine failed outright or any of its items did.
func (e *EngineResult) Failed() bool {
	return e.Err != nil || e.Outcome.HasFailures()
}

// Report is the result of a whole run.
type Report struct {
	// RunID tags every log line of the run so runs can be told apart.
	RunID      string           `json:"run_id"`
	Action     remediate.Action `json:"action"`
	Engines    []*EngineResult  `json:"engines"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Failed reports whether any engine or item failed. A skipped engine counts
// as a failure since its action never ran.
func (rep *Report) Failed() bool {
	for _, res := range rep.Engines {
		if res.Failed() || res.Skipped {
			return true
		}
	}
	return false
}

// Err joins every engine level and item level error.
func (rep *Report) Err() error {
	var errs []error
	for _, res := range rep.Engines {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
		if err := res.Outcome.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run applies req to every engine in order. It always returns a report with
// one entry per engine; failures are recorded in the entries rather than
// returned. Once ctx is done the remaining engines are marked skipped.
func (r *Runner) Run(ctx context.Context, engines []string, req remediate.Request) *Report {
	rep := &Report{RunID: uuid.NewString(), Action: req.Action, StartedAt: time.Now().UTC()}
	log := r.log().With("run_id", rep.RunID)
	for _, name := range engines {
		if err := ctx.Err(); err != nil {
			rep.Engines = append(rep.Engines, &EngineResult{
				Engine:  name,
				Skipped: true,
				Err:     err,
				Error:   err.Error(),
			})
			continue
		}
		if r.OnEngine != nil {
			r.OnEngine(name)
		}
		res := r.runEngine(ctx, log, name, req)
		if res.Err != nil {
			res.Error = res.Err.Error()
			log.Error("engine failed", "engine", name, "stage", res.Stage, "error", res.Err)
		}
		rep.Engines = append(rep.Engines, res)
	}
	rep.FinishedAt = time.Now().UTC()
	return rep
}

// runEngine is the per-engine scope: dial, login, act, and on every path
// after a successful login, logout.
func (r *Runner) runEngine(ctx context.Context, runLog *slog.Logger, name string, req remediate.Request) (res *EngineResult) {
	res = &EngineResult{Engine: name}
	log := runLog.With("engine", name)

	sess, err := r.Dial(name)
	if err != nil {
		res.Stage, res.Err = "dial", err
		return res
	}

	if err := r.Auth.Login(ctx, sess); err != nil {
		res.Stage, res.Err = "login", err
		return res
	}
	log.Debug("logged in", "auth", r.Auth.Name())

	defer func() {
		// Logout must run even when ctx was canceled mid-action.
		if err := r.Auth.Logout(context.WithoutCancel(ctx), sess); err != nil {
			log.Warn("logout failed", "error", err)
			if res.Err == nil {
				res.Stage, res.Err = "logout", err
			}
			return
		}
		log.Debug("logged out")
	}()

	defer func() {
		if p := recover(); p != nil {
			log.Error("action panicked", "panic", p, "stack", string(debug.Stack()))
			res.Stage, res.Err = "action", fmt.Errorf("engine %s: action panicked: %v", name, p)
		}
	}()

	o := remediate.New(sess)
	o.MaxCascadeDepth = r.MaxCascadeDepth
	o.Logger = runLog
	o.OnItem = r.OnItem
	if r.OnPhase != nil {
		o.OnPhase = func(p remediate.Phase) { r.OnPhase(name, p) }
	}

	out, err := o.Run(ctx, req)
	res.Outcome = out
	if err != nil {
		res.Stage, res.Err = "action", err
	}
	return res
}
