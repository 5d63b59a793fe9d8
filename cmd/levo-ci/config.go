// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"levo-ci/internal/app/execute"
	"levo-ci/internal/config"
)

// newConfigCommand creates the `levo-ci config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage levo-ci settings",
		Long: `Manage levo-ci settings.

Settings are stored in:
  - Linux: ~/.config/levo-ci/config.cue
  - macOS: ~/Library/Application Support/levo-ci/config.cue
  - Windows: %APPDATA%\levo-ci\config.cue

Every key can be overridden with a LEVO_CI_* environment variable,
e.g. LEVO_CI_TIMEOUTS_LONG=45m.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.showConfig(cmd)
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.initConfig(force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the settings file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.FilePath(app.loadOptions())
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	return cfgCmd
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.opts.configPath}
}

func (a *App) showConfig(cmd *cobra.Command) error {
	cfg, err := a.settingsFor(cmd)
	if err != nil {
		return a.fail(execute.ExitConfiguration, err)
	}

	w := a.stdout
	fmt.Fprintln(w, TitleStyle.Render("Current Settings"))
	fmt.Fprintln(w)

	path, err := config.FilePath(a.loadOptions())
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Settings file"), path)
		} else {
			fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Settings file"), SubtitleStyle.Render("(using defaults)"))
		}
	}
	fmt.Fprintln(w)

	value := func(v any) string { return SuccessStyle.Render(fmt.Sprint(v)) }
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("container_engine"), value(cfg.ContainerEngine))
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("image"), value(cfg.Image))

	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("timeouts"))
	fmt.Fprintf(w, "  short: %s\n", value(cfg.Timeouts.Short))
	fmt.Fprintf(w, "  medium: %s\n", value(cfg.Timeouts.Medium))
	fmt.Fprintf(w, "  long: %s\n", value(cfg.Timeouts.Long))
	fmt.Fprintf(w, "  cleanup: %s\n", value(cfg.Timeouts.Cleanup))

	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("credentials"))
	if cfg.Credentials.File == "" {
		fmt.Fprintf(w, "  file: %s\n", SubtitleStyle.Render("(none)"))
	} else {
		fmt.Fprintf(w, "  file: %s\n", value(cfg.Credentials.File))
	}
	fmt.Fprintf(w, "  env_prefix: %s\n", value(cfg.Credentials.EnvPrefix))

	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("workspace"))
	fmt.Fprintf(w, "  isolate_credentials: %s\n", value(cfg.Workspace.IsolateCredentials))
	fmt.Fprintf(w, "  lock: %s\n", value(cfg.Workspace.Lock))

	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("pull"))
	fmt.Fprintf(w, "  enabled: %s\n", value(cfg.Pull.Enabled))
	fmt.Fprintf(w, "  attempts: %s\n", value(cfg.Pull.Attempts))

	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("log"))
	fmt.Fprintf(w, "  level: %s\n", value(cfg.Log.Level))
	return nil
}

func (a *App) initConfig(force bool) error {
	path, err := config.FilePath(a.loadOptions())
	if err != nil {
		return err
	}
	written, err := config.CreateDefaultConfig(path, force)
	if err != nil {
		return err
	}
	if !written {
		fmt.Fprintf(a.stdout, "%s %s already exists (use --force to overwrite)\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(a.stdout, "%s Created default settings at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}
