// Package model defines shared data types used across the application: the
// records produced by the remote discovery agent, the forwards tracked
// locally, and the aggregate application state the dashboard renders from.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Protocol identifies the socket family a ListeningPort was observed on.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolTCP6 Protocol = "tcp6"
)

// ProcessInfo describes the process that owns a listening socket, when the
// agent was able to attribute one from the remote host's /proc table.
type ProcessInfo struct {
	PID     uint32 `json:"pid"`
	Name    string `json:"name"`
	Cmdline string `json:"cmdline"`
	UID     uint32 `json:"uid"`
}

// ListeningPort is a single listening socket discovered on the remote host.
// Process is nil when the agent could not attribute the socket to a process
// (permission denied reading /proc/<pid>/fd, or the process exited mid-scan).
type ListeningPort struct {
	Protocol  Protocol     `json:"protocol"`
	LocalAddr string       `json:"local_addr"`
	Port      uint16       `json:"port"`
	Process   *ProcessInfo `json:"process"`
}

// ScanRecord is a single scan snapshot reported by the agent.
type ScanRecord struct {
	AgentVersion string          `json:"agent_version"`
	Hostname     string          `json:"hostname"`
	Username     string          `json:"username"`
	IsRoot       bool            `json:"is_root"`
	Ports        []ListeningPort `json:"ports"`
	Warnings     []string        `json:"warnings"`
	ScanIndex    uint64          `json:"scan_index"`
}

// AgentErrorKind classifies a failure the agent reported about itself,
// distinct from a transport-level failure in the discovery stream.
type AgentErrorKind string

const (
	AgentErrorScanFailed       AgentErrorKind = "scan_failed"
	AgentErrorPermissionDenied AgentErrorKind = "permission_denied"
	AgentErrorUnsupported      AgentErrorKind = "unsupported"
)

// AgentError is an error the agent reported about its own scan attempt.
type AgentError struct {
	Kind    AgentErrorKind `json:"kind"`
	Message string         `json:"message"`
}

func (e AgentError) Error() string {
	return fmt.Sprintf("agent error (%s): %s", e.Kind, e.Message)
}

// AgentResponse is the top-level envelope emitted by the agent, one per JSON
// line on stdout. Exactly one of Scan or Err is populated, selected by
// Status ("ok" or "error"). The custom (Un)MarshalJSON methods flatten the
// payload fields alongside "status" rather than nesting them under a "scan"
// or "error" key, matching the wire format the agent and dashboard share.
type AgentResponse struct {
	Status string
	Scan   *ScanRecord
	Err    *AgentError
}

type agentResponseWire struct {
	Status       string          `json:"status"`
	AgentVersion string          `json:"agent_version,omitempty"`
	Hostname     string          `json:"hostname,omitempty"`
	Username     string          `json:"username,omitempty"`
	IsRoot       bool            `json:"is_root,omitempty"`
	Ports        []ListeningPort `json:"ports,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
	ScanIndex    uint64          `json:"scan_index,omitempty"`
	Kind         AgentErrorKind  `json:"kind,omitempty"`
	Message      string          `json:"message,omitempty"`
}

func (r AgentResponse) MarshalJSON() ([]byte, error) {
	w := agentResponseWire{Status: r.Status}
	switch {
	case r.Scan != nil:
		w.AgentVersion = r.Scan.AgentVersion
		w.Hostname = r.Scan.Hostname
		w.Username = r.Scan.Username
		w.IsRoot = r.Scan.IsRoot
		w.Ports = r.Scan.Ports
		w.Warnings = r.Scan.Warnings
		w.ScanIndex = r.Scan.ScanIndex
	case r.Err != nil:
		w.Kind = r.Err.Kind
		w.Message = r.Err.Message
	}
	return json.Marshal(w)
}

func (r *AgentResponse) UnmarshalJSON(data []byte) error {
	var w agentResponseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Status = w.Status
	switch w.Status {
	case "ok":
		r.Scan = &ScanRecord{
			AgentVersion: w.AgentVersion,
			Hostname:     w.Hostname,
			Username:     w.Username,
			IsRoot:       w.IsRoot,
			Ports:        w.Ports,
			Warnings:     w.Warnings,
			ScanIndex:    w.ScanIndex,
		}
	case "error":
		r.Err = &AgentError{Kind: w.Kind, Message: w.Message}
	default:
		return fmt.Errorf("model: unknown agent response status %q", w.Status)
	}
	return nil
}

// ForwardStatus is the lifecycle state of a tracked forward.
type ForwardStatus string

const (
	ForwardActive   ForwardStatus = "active"
	ForwardPaused   ForwardStatus = "paused"
	ForwardStarting ForwardStatus = "starting"
)

// ForwardEntry is the live, in-memory state of one local-to-remote forward,
// keyed by RemotePort in the forward manager and the reconciler.
type ForwardEntry struct {
	RemotePort        uint16        `json:"remote_port"`
	LocalPort         uint16        `json:"local_port"`
	RemoteHost        string        `json:"remote_host"`
	Status            ForwardStatus `json:"status"`
	ActiveConnections uint32        `json:"active_connections"`
}

// PersistedForward is the on-disk shape of a remembered forward, written to
// forwards.json so forwards the user started survive across runs of sshfwd
// against the same destination.
type PersistedForward struct {
	RemotePort uint16 `json:"remote_port"`
	LocalPort  uint16 `json:"local_port"`
}

// ModalInput is the dashboard's custom-port entry prompt: opened when the
// user asks to forward the selected port to a local port other than its own
// number, or reopened (prefilled with the attempted port and the OS error)
// after a bind failure.
type ModalInput struct {
	RemotePort   uint16
	Buffer       string
	ErrorMessage string
}

// ConnectionState is the state of the SSH session backing the dashboard.
type ConnectionState string

const (
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
)

// StalenessThreshold is how long the dashboard goes without a new scan
// before the UI flags the discovery stream as stale.
const StalenessThreshold = 6 * time.Second

// Model is the full application state rendered by the dashboard and mutated
// by every incoming message: scan results, discovery warnings/errors,
// forward events, and user navigation.
//
// Invariants (enforced by the reconciler in internal/appstate):
//   - SelectedIndex is always a valid index into Ports, or -1 when Ports is
//     empty.
//   - Forwards is keyed by RemotePort and only ever contains entries the
//     user explicitly started or that were restored from PersistedForward.
//   - LastScanAt is the zero Time until the first scan is received.
type Model struct {
	Destination     string
	Hostname        string
	Username        string
	Ports           []ListeningPort
	Forwards        map[uint16]*ForwardEntry
	ScanIndex       uint64
	SelectedIndex   int
	ConnectionState ConnectionState
	LastScanAt      time.Time
	Warnings        []string
	LastError       string
	Running         bool
	NeedsRender     bool
	Modal           *ModalInput
}

// NewModel returns a Model ready to receive its first scan.
func NewModel(destination string) *Model {
	return &Model{
		Destination:     destination,
		Forwards:        make(map[uint16]*ForwardEntry),
		SelectedIndex:   -1,
		ConnectionState: ConnectionConnecting,
		Running:         true,
		NeedsRender:     true,
	}
}

// Stale reports whether the model's last scan is older than
// StalenessThreshold, relative to now.
func (m *Model) Stale(now time.Time) bool {
	if m.LastScanAt.IsZero() {
		return false
	}
	return now.Sub(m.LastScanAt) > StalenessThreshold
}

// SelectedPort returns the currently selected port, or nil if SelectedIndex
// is out of range (including the empty-Ports case).
func (m *Model) SelectedPort() *ListeningPort {
	if m.SelectedIndex < 0 || m.SelectedIndex >= len(m.Ports) {
		return nil
	}
	return &m.Ports[m.SelectedIndex]
}
