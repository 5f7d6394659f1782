package agentrt

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sshfwd/sshfwd/internal/model"
)

// ScanInterval is how often the agent re-scans when run continuously.
const ScanInterval = 2 * time.Second

// Scanner produces one scan snapshot of the host's listening sockets.
// scanner_linux.go and scanner_darwin.go each provide a platform-specific
// implementation and a NewPlatformScanner constructor; sshfwd-agent only
// builds for those two platforms (see scanner_unsupported.go).
type Scanner interface {
	Scan() (*model.ScanRecord, *model.AgentError)
}

// Runtime drives repeated scans and writes one JSON line per scan to Out.
// It is deployed and spawned remotely by internal/agentdeploy and read
// line-by-line by internal/discovery on the client side.
type Runtime struct {
	Scanner Scanner
	Out     io.Writer
	Once    bool
}

// New returns a Runtime backed by scanner, writing to out.
func New(scanner Scanner, out io.Writer, once bool) *Runtime {
	return &Runtime{Scanner: scanner, Out: out, Once: once}
}

// Run scans in a loop (or once, if r.Once), writing a JSON AgentResponse
// line after each scan. It returns when a write to Out fails — the
// expected way this ends when the SSH channel carrying stdout closes.
func (r *Runtime) Run() error {
	for {
		record, agentErr := r.Scanner.Scan()

		var response model.AgentResponse
		if agentErr != nil {
			response = model.AgentResponse{Status: "error", Err: agentErr}
		} else {
			response = model.AgentResponse{Status: "ok", Scan: record}
		}

		line, err := json.Marshal(response)
		if err != nil {
			response = model.AgentResponse{Status: "error", Err: &model.AgentError{
				Kind:    model.AgentErrorScanFailed,
				Message: fmt.Sprintf("failed to serialize scan result: %v", err),
			}}
			line, _ = json.Marshal(response)
		}

		if _, err := fmt.Fprintf(r.Out, "%s\n", line); err != nil {
			return err
		}
		if f, ok := r.Out.(interface{ Sync() error }); ok {
			_ = f.Sync()
		}

		if r.Once {
			return nil
		}

		time.Sleep(ScanInterval)
	}
}

// WritePIDFile records the current process's PID at $HOME/.sshfwd/agent.pid
// so a subsequent deploy can detect and kill a stale agent.
func WritePIDFile() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	dir := filepath.Join(home, ".sshfwd")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(dir, "agent.pid"), []byte(fmt.Sprintf("%d", os.Getpid())), 0o644)
}
