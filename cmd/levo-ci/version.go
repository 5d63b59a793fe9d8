// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"levo-ci/internal/config"
)

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(app.stdout, "levo-ci %s\n", getVersionString())
			fmt.Fprintf(app.stdout, "default image %s\n", config.DefaultImage)
		},
	}
}
