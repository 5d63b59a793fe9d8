// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"levo-ci/internal/app/execute"
	"levo-ci/internal/config"
	"levo-ci/internal/issue"
	"levo-ci/internal/runner"
)

func newRunCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in, run a Levo test run and clean up",
		Long: `Run a Levo test run in the levoai/levo container.

The exit status is 0 on success, 2 for an invalid step, 3 when credentials
cannot be resolved, 4 when login fails, 124 on timeout, 130 when aborted,
and otherwise the exit status of the Levo CLI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd)
		},
	}
	addStepFlags(cmd)
	return cmd
}

func (a *App) run(cmd *cobra.Command) error {
	ctx := cmd.Context()

	settings, err := a.loadSettings(ctx)
	if err != nil {
		return a.fail(execute.ExitConfiguration, err)
	}
	logger, err := a.logger(settings)
	if err != nil {
		return a.fail(execute.ExitConfiguration, err)
	}
	step, err := a.stepSources(cmd)
	if err != nil {
		return a.fail(execute.ExitConfiguration, err)
	}

	orchestrator := execute.New(
		execute.WithStore(credentialStore(settings)),
		execute.WithLogger(logger),
		execute.WithRunnerOptions(runner.WithOutput(a.stdout, a.stderr)),
	)
	out := orchestrator.Execute(ctx, execute.Request{
		Step:     step,
		Settings: settings,
		WorkDir:  a.opts.workdir,
	})

	a.printSummary(out)
	if out.Err != nil {
		return a.fail(out.ExitCode, out.Err)
	}
	return nil
}

func (a *App) printSummary(out execute.Outcome) {
	if out.Plan == nil {
		return
	}
	w := a.stdout
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", TitleStyle.Render("Levo"), SubtitleStyle.Render(string(out.Plan.Mode())+" · "+out.ExecutionID))

	if out.JUnit != nil {
		style := SuccessStyle
		if !out.JUnit.OK() {
			style = ErrorStyle
		}
		fmt.Fprintf(w, "  %s %s\n", CmdStyle.Render("junit:"), style.Render(out.JUnit.String()))
	}
	if out.Lifecycle != nil {
		if pullErr := out.Lifecycle.PullErr; pullErr != nil {
			var ae *issue.ActionableError
			if errors.As(pullErr, &ae) {
				fmt.Fprintf(w, "  %s %s\n", WarningStyle.Render("image:"), "pull failed, no cached image")
				a.renderError(pullErr)
			} else {
				fmt.Fprintf(w, "  %s %s\n", WarningStyle.Render("image:"), "pull failed, ran cached image")
			}
		}
		for _, warn := range out.Lifecycle.Warnings {
			fmt.Fprintf(w, "  %s %s\n", WarningStyle.Render("cleanup:"), warn.Error())
		}
	}

	switch {
	case out.ExitCode == 0:
		fmt.Fprintf(w, "  %s\n", SuccessStyle.Render("✓ passed"))
	case out.ExitCode == execute.ExitAborted:
		fmt.Fprintf(w, "  %s\n", WarningStyle.Render("aborted"))
	default:
		fmt.Fprintf(w, "  %s\n", ErrorStyle.Render(fmt.Sprintf("✗ failed (exit %d)", out.ExitCode)))
	}
}

// settingsFor loads settings for commands that only read them.
func (a *App) settingsFor(cmd *cobra.Command) (*config.Config, error) {
	settings, err := a.loadSettings(cmd.Context())
	if err != nil {
		return nil, err
	}
	if _, err := a.logger(settings); err != nil {
		return nil, err
	}
	return settings, nil
}
