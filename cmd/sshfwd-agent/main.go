// Command sshfwd-agent is the remote discovery agent: a small, statically
// linked binary deployed by sshfwd over SSH and spawned on the remote host.
// It has no config file and no network awareness of its own; it just scans
// /proc/net/tcp[6] on a fixed interval and writes one JSON line per scan to
// stdout until the pipe closes.
package main

import (
	"fmt"
	"os"

	"github.com/sshfwd/sshfwd/internal/agentrt"
)

// agentVersion is stamped into every ScanRecord so the client side can
// detect a version skew between the embedded agent and whatever is already
// running on the remote host.
const agentVersion = "0.1.0"

func main() {
	var once bool
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--version":
			fmt.Println(agentVersion)
			return
		case "--once":
			once = true
		}
	}

	agentrt.WritePIDFile()

	rt := agentrt.New(agentrt.NewPlatformScanner(agentVersion), os.Stdout, once)
	if err := rt.Run(); err != nil {
		os.Exit(1)
	}
}
