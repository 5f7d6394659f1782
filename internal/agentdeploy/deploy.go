// Package agentdeploy installs and launches the sshfwd discovery agent on a
// remote host: it detects the remote platform, resolves the right agent
// binary, uploads it only when the remote copy is missing or stale, and
// spawns it as a long-running streaming command.
package agentdeploy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sshfwd/sshfwd/internal/sshfwderr"
	"github.com/sshfwd/sshfwd/internal/sshsession"
)

const (
	remoteAgentDir  = ".sshfwd"
	remoteAgentName = "sshfwd-agent"
	remotePIDFile   = ".sshfwd/agent.pid"
)

// Platform is the detected remote OS and architecture, normalized to the
// same vocabulary sshfwd's own GOOS/GOARCH-named release artifacts use.
type Platform struct {
	OS   string
	Arch string
}

// TargetDir returns the platform-specific subdirectory name used both for
// the embedded/prebuilt binary lookup and the remote install path.
func (p Platform) TargetDir() string {
	return p.OS + "-" + p.Arch
}

// Manager drives the deploy-and-spawn lifecycle of the remote agent over an
// already-authenticated session.
type Manager struct {
	session *sshsession.Session
}

// New returns a Manager bound to session.
func New(session *sshsession.Session) *Manager {
	return &Manager{session: session}
}

// DeployAndSpawn detects the remote platform, uploads the agent binary if
// the remote copy is absent or its hash doesn't match, kills any stale agent
// left running from a previous session, and starts a fresh one. localAgentPath,
// if non-empty, overrides binary resolution with a local file (development
// use); otherwise the embedded binary is tried first, then prebuilt-agents/
// next to the current executable.
func (m *Manager) DeployAndSpawn(localAgentPath string) (*sshsession.StreamingCmd, error) {
	platform, err := m.DetectPlatform()
	if err != nil {
		return nil, err
	}

	agentBytes, err := m.resolveAgentBinary(platform, localAgentPath)
	if err != nil {
		return nil, err
	}
	localHash := sha256Hex(agentBytes)

	remoteDir := fmt.Sprintf("%s/%s", remoteAgentDir, platform.TargetDir())
	remotePath := remoteDir + "/" + remoteAgentName

	remoteHash, hashErr := m.remoteHash(remotePath)
	if hashErr != nil || remoteHash != localHash {
		if err := m.upload(agentBytes, remoteDir, remotePath); err != nil {
			return nil, err
		}
	}

	m.killStaleAgent()

	return m.spawnAgent(remotePath)
}

// DetectPlatform runs `uname -sm` on the remote host and normalizes the
// result into a Platform.
func (m *Manager) DetectPlatform() (Platform, error) {
	output, err := m.session.Exec("uname -sm")
	if err != nil {
		return Platform{}, err
	}

	fields := strings.Fields(strings.TrimSpace(string(output.Stdout)))
	if len(fields) < 2 {
		return Platform{}, sshfwderr.AgentDeployf("could not detect remote platform from uname output")
	}

	return Platform{OS: normalizeOS(fields[0]), Arch: normalizeArch(fields[1])}, nil
}

// HasAgentBinary reports whether an agent binary is available for platform
// without actually reading it: an embedded build for a release binary, or a
// prebuilt-agents/<os>-<arch>/sshfwd-agent file next to the running
// executable for a development checkout. Used by doctor to flag a missing
// agent before a connect attempt has to discover it the hard way.
func HasAgentBinary(platform Platform) bool {
	if _, ok := getEmbeddedAgent(platform.OS, platform.Arch); ok {
		return true
	}
	exe, err := os.Executable()
	if err != nil {
		exe = "."
	}
	prebuiltPath := filepath.Join(filepath.Dir(exe), "prebuilt-agents", platform.TargetDir(), remoteAgentName)
	_, err = os.Stat(prebuiltPath)
	return err == nil
}

// resolveAgentBinary picks the agent binary bytes in priority order: an
// explicit local override, the binary embedded at build time for this
// platform, then a prebuilt-agents/<os>-<arch>/sshfwd-agent file next to the
// running executable.
func (m *Manager) resolveAgentBinary(platform Platform, localOverride string) ([]byte, error) {
	if localOverride != "" {
		data, err := os.ReadFile(localOverride)
		if err != nil {
			return nil, sshfwderr.LocalIOf(localOverride, err)
		}
		return data, nil
	}

	if data, ok := getEmbeddedAgent(platform.OS, platform.Arch); ok {
		return data, nil
	}

	exe, err := os.Executable()
	if err != nil {
		exe = "."
	}
	prebuiltPath := filepath.Join(filepath.Dir(exe), "prebuilt-agents", platform.TargetDir(), remoteAgentName)
	if data, err := os.ReadFile(prebuiltPath); err == nil {
		return data, nil
	}

	return nil, sshfwderr.AgentDeployf(
		"no agent binary available for %s (no embedded binary, no prebuilt at %s)",
		platform.TargetDir(), prebuiltPath,
	)
}

// remoteHash returns the SHA-256 of the binary already installed at
// remotePath, trying sha256sum (Linux) then openssl dgst (macOS/BSD).
func (m *Manager) remoteHash(remotePath string) (string, error) {
	cmd := fmt.Sprintf("sha256sum '%s' 2>/dev/null || openssl dgst -sha256 '%s' 2>/dev/null", remotePath, remotePath)
	output, err := m.session.Exec(cmd)
	if err != nil {
		return "", err
	}
	if !output.Success {
		return "", sshfwderr.AgentDeployf("remote agent not found at %s", remotePath)
	}

	for _, field := range strings.Fields(string(output.Stdout)) {
		if len(field) == 64 && isHex(field) {
			return field, nil
		}
	}
	return "", sshfwderr.AgentDeployf("could not parse remote hash: %s", string(output.Stdout))
}

// upload writes agentBytes to a temp file via a stdin pipe, then atomically
// renames it into place and marks it executable.
func (m *Manager) upload(agentBytes []byte, remoteDir, remotePath string) error {
	if _, err := m.session.Exec(fmt.Sprintf("mkdir -p '%s'", remoteDir)); err != nil {
		return err
	}

	tmpPath := remotePath + ".tmp"
	if _, err := m.session.ExecWithStdin(fmt.Sprintf("cat > '%s'", tmpPath), agentBytes); err != nil {
		return err
	}

	output, err := m.session.Exec(fmt.Sprintf("mv '%s' '%s' && chmod +x '%s'", tmpPath, remotePath, remotePath))
	if err != nil {
		return err
	}
	if !output.Success {
		return sshfwderr.AgentDeployf("failed to install agent: %s", string(output.Stderr))
	}
	return nil
}

// killStaleAgent reads the remote PID file left by a previous agent run and,
// only if the process at that PID is still actually sshfwd-agent, kills it.
// Any failure along the way (no PID file, unparsable PID, dead process,
// reused PID now belonging to something else) is treated as "nothing to
// clean up" rather than an error.
func (m *Manager) killStaleAgent() {
	output, err := m.session.Exec("cat " + remotePIDFile)
	if err != nil || !output.Success {
		return
	}

	pid := strings.TrimSpace(string(output.Stdout))
	if pid == "" {
		return
	}

	verifyCmd := fmt.Sprintf("cat /proc/%s/comm 2>/dev/null || ps -p %s -o comm= 2>/dev/null", pid, pid)
	output, err = m.session.Exec(verifyCmd)
	if err != nil {
		return
	}

	if strings.TrimSpace(string(output.Stdout)) == remoteAgentName {
		_, _ = m.session.Exec("kill " + pid)
	}
}

// KillRemoteAgent kills the currently running remote agent, for use during
// sshfwd's own shutdown.
func (m *Manager) KillRemoteAgent() {
	m.killStaleAgent()
}

// spawnAgent starts remotePath as a long-running streaming command whose
// stdout carries the agent's JSON-lines scan records.
func (m *Manager) spawnAgent(remotePath string) (*sshsession.StreamingCmd, error) {
	return m.session.ExecStreaming(remotePath)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// normalizeOS maps `uname -s` output to sshfwd's platform vocabulary.
func normalizeOS(raw string) string {
	switch raw {
	case "Linux":
		return "linux"
	case "Darwin":
		return "darwin"
	default:
		return strings.ToLower(raw)
	}
}

// normalizeArch maps `uname -m` output to sshfwd's platform vocabulary.
func normalizeArch(raw string) string {
	switch raw {
	case "arm64", "aarch64":
		return "aarch64"
	case "x86_64", "amd64":
		return "x86_64"
	default:
		return strings.ToLower(raw)
	}
}
