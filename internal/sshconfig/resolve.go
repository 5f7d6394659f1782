package sshconfig

import (
	"os"
	"strings"
)

// ResolvedConfig is the set of fields sshsession needs to connect to one
// destination: the fields OpenSSH's ssh_config(5) Host block can supply,
// after merging in any explicit "user@host" override from the command line.
type ResolvedConfig struct {
	Alias         string
	Hostname      string
	Port          int
	User          string
	ProxyJump     string
	IdentityFiles []string
}

// ParseDestination splits a "user@host" style destination into its explicit
// user (empty if absent) and host/alias component.
func ParseDestination(destination string) (user, host string) {
	if u, h, ok := strings.Cut(destination, "@"); ok {
		return u, h
	}
	return "", destination
}

// ResolveHost resolves destination against the user's ~/.ssh/config,
// applying an explicit "user@" override if present. Host blocks are matched
// by pattern (exact, "*", "prefix*", "*suffix", and "!negation"), so a
// wildcard-only block like "Host *.prod.internal" is consulted the same as
// a concrete "Host db1" block — ResolveAlias, not a pre-enumerated concrete
// alias table, does the matching. It never fails on a missing or unreadable
// config file — the host field still resolves to destination itself with
// port 22 and no identity files, matching how OpenSSH behaves for a host
// with no matching Host block.
func ResolveHost(destination string) (*ResolvedConfig, error) {
	explicitUser, host := ParseDestination(destination)

	h := ResolveAlias(host)

	resolved := &ResolvedConfig{
		Alias:     host,
		Hostname:  h.DisplayTarget(),
		Port:      h.Port,
		ProxyJump: h.ProxyJump,
		User:      resolveUser(explicitUser, h.User),
	}
	if h.IdentityFile != "" {
		resolved.IdentityFiles = append(resolved.IdentityFiles, h.IdentityFile)
	}

	return resolved, nil
}

// resolveUser implements the user resolution chain: an explicit "user@host"
// override wins, then the ssh config's User directive, then $USER/$LOGNAME,
// then "root" as the last resort so a ClientConfig is never built with an
// empty User.
func resolveUser(explicitUser, configUser string) string {
	if explicitUser != "" {
		return explicitUser
	}
	if configUser != "" {
		return configUser
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("LOGNAME"); u != "" {
		return u
	}
	return "root"
}
