// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for levo-ci.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"levo-ci/internal/config"
	"levo-ci/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// globalOptions are the persistent flag values shared by every command.
	globalOptions struct {
		configPath string
		logLevel   string
		workdir    string
		stepFile   string
		verbose    bool
	}

	// App wires CLI services and shared dependencies.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
		opts   globalOptions
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp creates an App.
func NewApp(deps Dependencies) *App {
	app := &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// NewRootCommand builds the levo-ci command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "levo-ci",
		Short: "Run Levo API security tests as a CI build step",
		Long: TitleStyle.Render("levo-ci") + SubtitleStyle.Render(" - Levo API security tests for any CI system") + `

levo-ci runs the Levo CLI in a container, logs in with short-lived
credentials, executes a test run and always logs out and purges the
credential store afterwards, whatever the outcome.

` + SubtitleStyle.Render("Step configuration") + ` is read from, in order of precedence:
  1. command-line flags (repeatable; the first non-blank value wins)
  2. LEVO_STEP_* environment variables
  3. levo-step.cue in the work directory

` + SubtitleStyle.Render("Examples:") + `
  levo-ci run --app-name my-api-app --environment production --credentials-id levo-prod
  levo-ci run --test-plan ns:org/plan --target-url https://api.example.com --junit
  levo-ci validate --print-command
  levo-ci config show`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&app.opts.configPath, "config", "", "settings file (default is $XDG_CONFIG_HOME/levo-ci/config.cue)")
	pf.StringVar(&app.opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")
	pf.StringVarP(&app.opts.workdir, "workdir", "C", ".", "workspace directory shared with the container")
	pf.StringVar(&app.opts.stepFile, "step-file", "", "step file (default is levo-step.cue in the workdir)")
	pf.BoolVarP(&app.opts.verbose, "verbose", "v", false, "show the full error chain on failure")

	root.AddCommand(
		newRunCommand(app),
		newValidateCommand(app),
		newConfigCommand(app),
		newVersionCommand(app),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Main runs the CLI and returns the process exit code.
func Main() int {
	app := NewApp(Dependencies{})
	err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			var exitErr *ExitError
			if errors.As(err, &exitErr) && exitErr.Err == nil {
				return
			}
			fang.DefaultErrorHandler(w, styles, err)
		}),
	)
	return exitCodeOf(err)
}

// Execute runs the CLI and exits. This is called by main.main().
func Execute() {
	os.Exit(Main())
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// loadSettings loads the tool settings honoring --config.
func (a *App) loadSettings(ctx context.Context) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.opts.configPath})
}

// logger builds the process logger from --log-level or the settings and
// installs it as the slog default.
func (a *App) logger(settings *config.Config) (*slog.Logger, error) {
	level := a.opts.logLevel
	if level == "" {
		level = settings.Log.Level.String()
	}
	l, err := newLogger(a.stderr, level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}

// renderError prints err for the user, with the catalog page when it links one.
func (a *App) renderError(err error) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+err.Error())
		return
	}
	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+ae.Format(a.opts.verbose))

	if ae.Issue == 0 {
		return
	}
	if page := issue.Get(ae.Issue); page != nil {
		rendered, renderErr := page.Render("dark")
		if renderErr != nil {
			slog.Warn("failed to render issue catalog entry", "issueID", ae.Issue, "error", renderErr)
			return
		}
		fmt.Fprint(a.stderr, rendered)
	}
}

// fail renders err and converts it to an already-reported ExitError.
func (a *App) fail(code int, err error) error {
	a.renderError(err)
	return &ExitError{Code: code}
}
