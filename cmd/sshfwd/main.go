// Package main is the entry point for the sshfwd binary.
//
// sshfwd discovers listening ports on a remote host over an existing SSH
// connection and forwards the ones you pick to local ports. When invoked
// with a destination argument (or no argument, after prompting for one),
// it launches the TUI dashboard built with Bubble Tea. When invoked with
// subcommands (list, doctor, forward, bundle, security, agent), it runs
// the corresponding CLI operation and exits.
//
// Usage:
//
//	sshfwd                      # prompt for a destination, then launch the dashboard
//	sshfwd deploy@db1           # launch the dashboard against deploy@db1
//	sshfwd list                 # list parsed SSH hosts from ~/.ssh/config
//	sshfwd doctor deploy@db1    # run local diagnostics for a destination
//
// The CLI is constructed in internal/cli and the TUI in internal/ui. This
// file simply wires them together and handles top-level error reporting.
package main

import (
	"fmt"
	"os"

	"github.com/sshfwd/sshfwd/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()

	// Any error returned by a RunE handler is printed to stderr and the
	// process exits with a non-zero status code.
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
