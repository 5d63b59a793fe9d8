// SPDX-License-Identifier: MPL-2.0

package main

import cmd "levo-ci/cmd/levo-ci"

func main() {
	cmd.Execute()
}
