package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"github.com/spf13/cobra"

	"github.com/sshfwd/sshfwd/internal/agentrt"
)

// newAgentCmd creates the "agent" subcommand, which runs the discovery
// agent locally instead of deploying it over SSH. This exists for two
// purposes: quick `--once`/`--version` smoke testing of the embedded agent
// logic without a remote host, and an `--interactive` debug mode that runs
// a separately built sshfwd-agent binary under a PTY and prints a one-line
// summary of each JSON record it emits (other lines get a "raw: " prefix),
// much as the teacher's old RunInteractive put an SSH session's output on
// the terminal.
func newAgentCmd() *cobra.Command {
	var once bool
	var version bool
	var interactive bool
	var agentPath string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the discovery agent locally (no SSH round trip)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interactive {
				return runAgentInteractive(agentPath)
			}
			if version {
				fmt.Println(agentVersion)
				return nil
			}
			rt := agentrt.New(agentrt.NewPlatformScanner(agentVersion), os.Stdout, once)
			return rt.Run()
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "scan once and exit instead of looping")
	cmd.Flags().BoolVar(&version, "version", false, "print the embedded agent version and exit")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "run a standalone sshfwd-agent binary under a PTY and print its scans")
	cmd.Flags().StringVar(&agentPath, "agent-path", "sshfwd-agent", "path to the sshfwd-agent binary for --interactive")
	return cmd
}

// agentVersion mirrors the version stamped by cmd/sshfwd-agent; kept in
// sync manually since the two binaries are built and shipped separately.
const agentVersion = "0.1.0"

// runAgentInteractive execs agentPath under a PTY, decodes each JSON line
// it writes as a model.AgentResponse, and prints a compact one-line summary
// per scan — unlike the teacher's RunInteractive, which passed the PTY's
// raw bytes straight to the terminal for a real interactive shell, this
// debug mode has a structured line protocol on the other end and is more
// useful decoded than raw.
func runAgentInteractive(agentPath string) error {
	cmd := exec.Command(agentPath)
	f, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start agent under pty: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		var resp struct {
			Status string          `json:"status"`
			Scan   json.RawMessage `json:"scan,omitempty"`
			Err    json.RawMessage `json:"err,omitempty"`
		}
		if err := json.Unmarshal(line, &resp); err != nil {
			fmt.Fprintf(os.Stdout, "raw: %s\n", line)
			continue
		}
		count++
		fmt.Fprintf(os.Stdout, "scan #%d status=%s\n", count, resp.Status)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("read agent output: %w", err)
	}
	return cmd.Wait()
}
