package sshsession

import (
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// AcceptAllHostKeys returns a callback that accepts any host key without
// checking it against ~/.ssh/known_hosts. sshfwd uses it only when
// security.host_key_policy is insecure; the default policy is strict
// (StrictHostKeys), under which a host with no known_hosts entry is
// refused.
func AcceptAllHostKeys() ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		return nil
	}
}

// StrictHostKeys returns a callback that verifies the server's key against
// ~/.ssh/known_hosts, for security.host_key_policy: strict (the default
// when the config sets no other value). Returns an error (rather than a callback) if known_hosts
// cannot be read, since a strict policy with no known_hosts to check
// against would silently accept everything.
func StrictHostKeys() (ssh.HostKeyCallback, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
}
