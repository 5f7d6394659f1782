// Package sshsession implements sshfwd's SSH transport on top of
// golang.org/x/crypto/ssh: connecting (with ProxyJump support), running
// remote commands, and opening direct-tcpip channels for port forwards.
// It replaces shelling out to a system ssh binary with a native client so
// sshfwd has no runtime dependency beyond the Go binary itself.
package sshsession

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/sshfwd/sshfwd/internal/sshconfig"
	"github.com/sshfwd/sshfwd/internal/sshfwderr"
)

// dialTimeout bounds the initial TCP connect, separate from the SSH
// handshake itself (which x/crypto/ssh times out on its own terms).
const dialTimeout = 10 * time.Second

// CommandOutput is the collected result of a remote command run to
// completion via Exec or ExecWithStdin.
type CommandOutput struct {
	Stdout  []byte
	Stderr  []byte
	Success bool
}

// Session is a connected, authenticated SSH session, optionally tunneled
// through a ProxyJump hop. Session is safe for concurrent use: channel opens
// are serialized by mu, mirroring how a single-threaded event loop would
// naturally serialize them, since golang.org/x/crypto/ssh.Client itself
// permits concurrent channel opens but sshfwd's forward manager and
// discovery stream both open channels against the same client and gain
// nothing from racing each other to do so.
type Session struct {
	mu     sync.Mutex
	client *ssh.Client
	jump   *Session // kept alive for the lifetime of this session
}

// Connect dials destination, resolving ~/.ssh/config (HostName, Port, User,
// ProxyJump, IdentityFile) and recursively establishing any ProxyJump hop
// first. hostKeyCallback controls host key verification; see
// AcceptAllHostKeys and StrictHostKeys.
func Connect(destination string, hostKeyCallback ssh.HostKeyCallback) (*Session, error) {
	resolved, err := sshconfig.ResolveHost(destination)
	if err != nil {
		return nil, sshfwderr.Wrap(sshfwderr.KindConfig, "failed to resolve SSH config", err)
	}

	authMethods, triedPaths, authErr := buildAuthMethods(resolved)
	if authErr != nil {
		return nil, authErr
	}
	if len(authMethods) == 0 {
		detail := fmt.Sprintf("user=%s host=%s", resolved.User, resolved.Hostname)
		if len(triedPaths) > 0 {
			detail = fmt.Sprintf("%s identities tried: %s", detail, strings.Join(triedPaths, ", "))
		} else {
			detail = fmt.Sprintf("%s no ssh-agent and no identity paths configured", detail)
		}
		return nil, sshfwderr.Authf(destination, detail)
	}

	clientConfig := &ssh.ClientConfig{
		User:            resolved.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         dialTimeout,
	}

	addr := net.JoinHostPort(resolved.Hostname, fmt.Sprintf("%d", resolved.Port))

	var (
		conn      net.Conn
		jump      *Session
		dialedErr error
	)

	if resolved.ProxyJump != "" {
		jump, dialedErr = Connect(resolved.ProxyJump, hostKeyCallback)
		if dialedErr != nil {
			return nil, dialedErr
		}
		conn, dialedErr = jump.client.Dial("tcp", addr)
	} else {
		conn, dialedErr = net.DialTimeout("tcp", addr, dialTimeout)
	}
	if dialedErr != nil {
		return nil, sshfwderr.Connectionf(destination, dialedErr)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		_ = conn.Close()
		if jump != nil {
			jump.Close()
		}
		// x/crypto/ssh reports auth failures and connection failures through
		// the same error path; ssh.ClientAuthError is the documented marker
		// for the former.
		if _, ok := err.(*ssh.ClientAuthError); ok {
			return nil, sshfwderr.Authf(destination, err.Error())
		}
		return nil, sshfwderr.Connectionf(destination, err)
	}

	return &Session{client: ssh.NewClient(sshConn, chans, reqs), jump: jump}, nil
}

// Close tears down the session and, if present, the ProxyJump hop it was
// tunneled through.
func (s *Session) Close() error {
	err := s.client.Close()
	if s.jump != nil {
		s.jump.Close()
	}
	return err
}

// Exec runs command to completion and collects its stdout/stderr.
func (s *Session) Exec(command string) (*CommandOutput, error) {
	s.mu.Lock()
	sess, err := s.client.NewSession()
	s.mu.Unlock()
	if err != nil {
		return nil, sshfwderr.Remotef(err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	success := true
	if err := sess.Run(command); err != nil {
		if _, ok := err.(*ssh.ExitError); !ok {
			return nil, sshfwderr.Remotef(err)
		}
		success = false
	}

	return &CommandOutput{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Success: success}, nil
}

// ExecWithStdin runs command to completion after writing data to its stdin,
// used by the agent deployer to upload the agent binary via `cat > path`.
func (s *Session) ExecWithStdin(command string, data []byte) (*CommandOutput, error) {
	s.mu.Lock()
	sess, err := s.client.NewSession()
	s.mu.Unlock()
	if err != nil {
		return nil, sshfwderr.Remotef(err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	stdin, err := sess.StdinPipe()
	if err != nil {
		return nil, sshfwderr.Remotef(err)
	}
	if err := sess.Start(command); err != nil {
		return nil, sshfwderr.Remotef(err)
	}
	if _, err := stdin.Write(data); err != nil {
		return nil, sshfwderr.Remotef(err)
	}
	if err := stdin.Close(); err != nil {
		return nil, sshfwderr.Remotef(err)
	}

	success := true
	if err := sess.Wait(); err != nil {
		if _, ok := err.(*ssh.ExitError); !ok {
			return nil, sshfwderr.Remotef(err)
		}
		success = false
	}

	return &CommandOutput{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Success: success}, nil
}

// StreamingCmd is a long-running remote command whose stdout is read
// incrementally, used to consume the discovery agent's JSON-lines stream.
type StreamingCmd struct {
	Stdout  interface{ Read([]byte) (int, error) }
	session *ssh.Session
}

// Close terminates the remote command and releases the underlying channel.
func (c *StreamingCmd) Close() error {
	return c.session.Close()
}

// ExecStreaming starts command and returns a StreamingCmd whose Stdout can
// be read line by line. Stderr is discarded; the discovery stream only
// cares about stdout.
func (s *Session) ExecStreaming(command string) (*StreamingCmd, error) {
	s.mu.Lock()
	sess, err := s.client.NewSession()
	s.mu.Unlock()
	if err != nil {
		return nil, sshfwderr.Remotef(err)
	}

	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, sshfwderr.Remotef(err)
	}

	if err := sess.Start(command); err != nil {
		sess.Close()
		return nil, sshfwderr.Remotef(err)
	}

	return &StreamingCmd{Stdout: stdout, session: sess}, nil
}

// OpenDirectTCPIP opens a direct-tcpip channel to remoteHost:remotePort
// through this session, the primitive the forward manager uses to carry
// one local TCP connection's bytes to the remote service.
func (s *Session) OpenDirectTCPIP(remoteHost string, remotePort int) (net.Conn, error) {
	addr := net.JoinHostPort(remoteHost, fmt.Sprintf("%d", remotePort))
	s.mu.Lock()
	conn, err := s.client.Dial("tcp", addr)
	s.mu.Unlock()
	if err != nil {
		return nil, sshfwderr.Wrap(sshfwderr.KindConnection, fmt.Sprintf("failed to open channel to %s", addr), err)
	}
	return conn, nil
}

// buildAuthMethods assembles a single ssh.PublicKeys auth method from every
// available signer, tried in the order: ssh-agent identities, IdentityFile
// entries from ssh config, then the default key locations. The SSH protocol
// itself tries each offered key in turn, so collecting them into one
// AuthMethod reproduces the original "try until one works" behavior without
// sshfwd needing its own retry loop.
//
// triedPaths lists every identity file path that was attempted (whether or
// not it produced a usable signer), for reporting in the fatal "no usable
// identities" error; ssh-agent identities have no path and aren't included.
func buildAuthMethods(resolved *sshconfig.ResolvedConfig) (methods []ssh.AuthMethod, triedPaths []string, err error) {
	var signers []ssh.Signer

	if agentSigners, agentErr := agentSigners(); agentErr == nil {
		signers = append(signers, agentSigners...)
	}

	for _, path := range resolved.IdentityFiles {
		triedPaths = append(triedPaths, path)
		if signer, ok := loadSigner(path); ok {
			signers = append(signers, signer)
		}
	}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
			path := filepath.Join(home, ".ssh", name)
			triedPaths = append(triedPaths, path)
			if signer, ok := loadSigner(path); ok {
				signers = append(signers, signer)
			}
		}
	}

	if len(signers) == 0 {
		return nil, triedPaths, nil
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signers...)}, triedPaths, nil
}

// agentSigners connects to the running ssh-agent via SSH_AUTH_SOCK and
// returns its offered identities as signers.
func agentSigners() ([]ssh.Signer, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, err
	}
	client := agent.NewClient(conn)
	return client.Signers()
}

// loadSigner reads and parses an unencrypted private key file. Passphrase
// protected keys are skipped (ok=false) rather than prompting, since sshfwd
// has no interactive passphrase prompt; such keys are expected to be loaded
// into ssh-agent instead.
func loadSigner(path string) (ssh.Signer, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, false
	}
	return signer, true
}
