package model

import "time"

// ForwardSpec is a single local->remote forward declared in ~/.ssh/config
// via LocalForward, or entered by hand when connecting to a bare
// destination. It is the static declaration; ForwardEntry is the live
// runtime state a forward reaches once sshfwd actually starts listening.
type ForwardSpec struct {
	LocalAddr  string `json:"local_addr"`
	LocalPort  int    `json:"local_port"`
	RemoteAddr string `json:"remote_addr"`
	RemotePort int    `json:"remote_port"`
}

// LocalString returns the local address with default "localhost".
func (f ForwardSpec) LocalString() string {
	if f.LocalAddr == "" {
		return "localhost"
	}
	return f.LocalAddr
}

// RemoteString returns the remote address with default "localhost".
func (f ForwardSpec) RemoteString() string {
	if f.RemoteAddr == "" {
		return "localhost"
	}
	return f.RemoteAddr
}

// HostEntry is a normalized host configuration extracted from ssh config.
// It is sshfwd's unit of "a destination the user has previously configured"
// — used by the CLI's list/recent-destination views, bundles, and the
// local security audit. It is distinct from the live discovery Model,
// which tracks one connected destination's ports and forwards at runtime.
type HostEntry struct {
	Alias        string        `json:"alias"`
	HostName     string        `json:"host_name"`
	User         string        `json:"user,omitempty"`
	Port         int           `json:"port,omitempty"`
	IdentityFile string        `json:"identity_file,omitempty"`
	ProxyJump    string        `json:"proxy_jump,omitempty"`
	Forwards     []ForwardSpec `json:"forwards,omitempty"`
}

// DisplayTarget returns the hostname for display, falling back to alias.
func (h HostEntry) DisplayTarget() string {
	if h.HostName != "" {
		return h.HostName
	}
	return h.Alias
}

// Destination returns the user@host (or bare host) string sshsession.Connect
// expects, given this entry's resolved user and hostname.
func (h HostEntry) Destination() string {
	if h.User == "" {
		return h.DisplayTarget()
	}
	return h.User + "@" + h.DisplayTarget()
}

// ActiveForwardSummary is a display projection of a live forward:
// ForwardEntry enriched with the destination it belongs to and how long
// it's been running. The forward manager and reconciler work in terms of
// ForwardEntry, and no code in sshfwd constructs this type.
type ActiveForwardSummary struct {
	Destination string        `json:"destination"`
	RemotePort  uint16        `json:"remote_port"`
	LocalPort   uint16        `json:"local_port"`
	Status      ForwardStatus `json:"status"`
	Connections uint32        `json:"active_connections"`
	StartedAt   time.Time     `json:"started_at"`
}
