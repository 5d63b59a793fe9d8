// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"levo-ci/internal/app/execute"
)

func newValidateCommand(app *App) *cobra.Command {
	var printCommand bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the step without running anything",
		Long: `Resolve and validate the step configuration without starting any process.

With --print-command the credentials are resolved too and the Levo command
that 'run' would execute is printed with the authorization key masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.validate(cmd, printCommand)
		},
	}
	addStepFlags(cmd)
	cmd.Flags().BoolVar(&printCommand, "print-command", false, "resolve credentials and print the masked command")
	return cmd
}

func (a *App) validate(cmd *cobra.Command, printCommand bool) error {
	settings, err := a.settingsFor(cmd)
	if err != nil {
		return a.fail(execute.ExitConfiguration, err)
	}
	step, err := a.stepSources(cmd)
	if err != nil {
		return a.fail(execute.ExitConfiguration, err)
	}

	preview, err := execute.New(execute.WithStore(credentialStore(settings))).
		Validate(cmd.Context(), execute.Request{Step: step, Settings: settings, WorkDir: a.opts.workdir}, printCommand)
	if preview != nil {
		w := a.stdout
		fmt.Fprintf(w, "%s step is valid (%s)\n", SuccessStyle.Render("✓"), preview.Plan.Mode())
		for _, warning := range preview.Warnings {
			fmt.Fprintf(w, "  %s %s\n", WarningStyle.Render("warning:"), warning.String())
		}
		if preview.Credentials != nil {
			fmt.Fprintf(w, "%s %s (organization %s)\n", CmdStyle.Render("credentials:"),
				preview.Credentials.Name, preview.Credentials.OrganizationID)
		}
		if preview.Command != "" {
			fmt.Fprintf(w, "%s %s\n", CmdStyle.Render("command:"), preview.Command)
		}
	}
	if err != nil {
		if printCommand {
			fmt.Fprintf(a.stderr, "%s %s\n", SubtitleStyle.Render("credential stores:"), describeStores(settings))
		}
		return a.fail(execute.ExitCode(err), err)
	}
	return nil
}
