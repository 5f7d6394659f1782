// Package appstate holds the dashboard's message/update loop: turning
// discovery events, forward events, and keyboard input into mutations of a
// model.Model, plus the port-change detection and debounced desktop
// notifications layered on top of scan results.
package appstate

import (
	"sort"
	"strconv"
	"time"

	"github.com/sshfwd/sshfwd/internal/forward"
	"github.com/sshfwd/sshfwd/internal/model"
)

// MessageKind discriminates the variants of Message.
type MessageKind int

const (
	MsgScanReceived MessageKind = iota
	MsgDiscoveryWarning
	MsgDiscoveryError
	MsgStreamEnded
	MsgForwardEvent
	MsgForwardBindError
	MsgMoveDown
	MsgMoveUp
	MsgGoToTop
	MsgGoToBottom
	MsgToggleForward
	MsgOpenCustomPortModal
	MsgModalChar
	MsgModalBackspace
	MsgModalCancel
	MsgModalConfirm
	MsgQuit
	MsgTick
	MsgResize
)

// Message is the single event type driving Update, covering discovery
// results, forward lifecycle events, keyboard navigation, modal input, and
// the dashboard render timer.
type Message struct {
	Kind MessageKind

	Scan    *model.ScanRecord
	Warning string
	Err     error

	ForwardRemotePort uint16
	ForwardLocalPort  uint16
	ForwardStatus     model.ForwardStatus
	ForwardConns      uint32
	ForwardMessage    string

	ModalChar rune

	Width, Height int
}

// maxModalDigits bounds the custom-port modal input to the longest possible
// port number ("65535"), per spec.md §4.7.
const maxModalDigits = 5

// Update applies msg to m in place, mirroring the original dashboard's
// single-threaded reducer: every message either changes visible state (and
// sets NeedsRender) or is a no-op. Messages that need the forward manager to
// actually do something (start/stop a listener) return the forward.Commands
// the caller must send on the manager's command channel.
func Update(m *model.Model, msg Message) []forward.Command {
	switch msg.Kind {
	case MsgScanReceived:
		applyScan(m, msg.Scan)

	case MsgDiscoveryWarning:
		m.Warnings = append(m.Warnings, msg.Warning)

	case MsgDiscoveryError:
		m.ConnectionState = model.ConnectionDisconnected
		m.Running = false
		if msg.Err != nil {
			m.LastError = msg.Err.Error()
		}
		m.NeedsRender = true

	case MsgStreamEnded:
		m.ConnectionState = model.ConnectionDisconnected
		m.Running = false
		m.NeedsRender = true

	case MsgForwardEvent:
		applyForwardEvent(m, msg)

	case MsgForwardBindError:
		return applyForwardBindError(m, msg)

	case MsgMoveDown:
		if len(m.Ports) > 0 && m.SelectedIndex < len(m.Ports)-1 {
			m.SelectedIndex++
			m.NeedsRender = true
		}

	case MsgMoveUp:
		if m.SelectedIndex > 0 {
			m.SelectedIndex--
			m.NeedsRender = true
		}

	case MsgGoToTop:
		if m.SelectedIndex != 0 && len(m.Ports) > 0 {
			m.SelectedIndex = 0
			m.NeedsRender = true
		}

	case MsgGoToBottom:
		if len(m.Ports) > 0 {
			last := len(m.Ports) - 1
			if m.SelectedIndex != last {
				m.SelectedIndex = last
				m.NeedsRender = true
			}
		}

	case MsgToggleForward:
		return toggleForward(m)

	case MsgOpenCustomPortModal:
		port := m.SelectedPort()
		if port == nil {
			return nil
		}
		m.Modal = &model.ModalInput{RemotePort: port.Port}
		m.NeedsRender = true

	case MsgModalChar:
		if m.Modal == nil || len(m.Modal.Buffer) >= maxModalDigits {
			return nil
		}
		if msg.ModalChar < '0' || msg.ModalChar > '9' {
			return nil
		}
		m.Modal.Buffer += string(msg.ModalChar)
		m.Modal.ErrorMessage = ""
		m.NeedsRender = true

	case MsgModalBackspace:
		if m.Modal == nil || m.Modal.Buffer == "" {
			return nil
		}
		m.Modal.Buffer = m.Modal.Buffer[:len(m.Modal.Buffer)-1]
		m.NeedsRender = true

	case MsgModalCancel:
		if m.Modal == nil {
			return nil
		}
		m.Modal = nil
		m.NeedsRender = true

	case MsgModalConfirm:
		return confirmModal(m)

	case MsgQuit:
		m.Running = false

	case MsgTick:
		if !m.LastScanAt.IsZero() && m.ConnectionState == model.ConnectionConnected {
			if time.Since(m.LastScanAt) >= model.StalenessThreshold {
				m.ConnectionState = model.ConnectionDisconnected
				m.NeedsRender = true
			}
		}

	case MsgResize:
		m.NeedsRender = true
	}
	return nil
}

// toggleForward implements the plain "forward" action on the selected port:
// insert (local=remote, starting) and start it when absent, stop and remove
// it when present, per spec.md §4.7.
func toggleForward(m *model.Model) []forward.Command {
	port := m.SelectedPort()
	if port == nil {
		return nil
	}
	m.NeedsRender = true
	if _, exists := m.Forwards[port.Port]; exists {
		delete(m.Forwards, port.Port)
		return []forward.Command{{Kind: forward.CommandStop, RemotePort: port.Port}}
	}
	host := normalizeRemoteHost(port.LocalAddr)
	m.Forwards[port.Port] = &model.ForwardEntry{
		RemotePort: port.Port,
		LocalPort:  port.Port,
		RemoteHost: host,
		Status:     model.ForwardStarting,
	}
	return []forward.Command{{Kind: forward.CommandStart, RemotePort: port.Port, LocalPort: port.Port, RemoteHost: host}}
}

// confirmModal implements the custom-port modal's confirm action: starts a
// new forward at the typed local port, or stops-then-starts the existing one
// (a rebind) when the remote port is already forwarded, per spec.md §4.7.
func confirmModal(m *model.Model) []forward.Command {
	if m.Modal == nil {
		return nil
	}
	localPort, err := strconv.Atoi(m.Modal.Buffer)
	if err != nil || localPort < 1 || localPort > 65535 {
		m.Modal.ErrorMessage = "enter a port between 1 and 65535"
		m.NeedsRender = true
		return nil
	}

	remotePort := m.Modal.RemotePort
	host := remoteHostFor(m, remotePort)
	entry := &model.ForwardEntry{
		RemotePort: remotePort,
		LocalPort:  uint16(localPort),
		RemoteHost: host,
		Status:     model.ForwardStarting,
	}

	var cmds []forward.Command
	if existing, exists := m.Forwards[remotePort]; exists {
		cmds = append(cmds, forward.Command{Kind: forward.CommandStop, RemotePort: remotePort, LocalPort: existing.LocalPort})
	}
	cmds = append(cmds, forward.Command{Kind: forward.CommandStart, RemotePort: remotePort, LocalPort: uint16(localPort), RemoteHost: host})

	m.Forwards[remotePort] = entry
	m.Modal = nil
	m.NeedsRender = true
	return cmds
}

// applyForwardBindError handles a BindError reported by the forward manager
// for a user-requested forward: the entry is removed and the modal reopens
// prefilled with the attempted port and the OS error text, per spec.md §5.
func applyForwardBindError(m *model.Model, msg Message) []forward.Command {
	delete(m.Forwards, msg.ForwardRemotePort)
	m.Modal = &model.ModalInput{
		RemotePort:   msg.ForwardRemotePort,
		Buffer:       strconv.Itoa(int(msg.ForwardLocalPort)),
		ErrorMessage: msg.ForwardMessage,
	}
	m.NeedsRender = true
	return nil
}

// remoteHostFor looks up the remote listen address for remotePort among the
// currently known ports, falling back to loopback when the port has since
// scrolled out of the last scan (the forward can still be requested; the
// manager will simply fail to bind if the service is truly gone).
func remoteHostFor(m *model.Model, remotePort uint16) string {
	for _, p := range m.Ports {
		if p.Port == remotePort {
			return normalizeRemoteHost(p.LocalAddr)
		}
	}
	return "127.0.0.1"
}

// normalizeRemoteHost maps a wildcard bind address, as reported by the
// agent's socket table scan, to the loopback address direct-tcpip dials
// against on the remote side.
func normalizeRemoteHost(addr string) string {
	switch addr {
	case "0.0.0.0", "::", "":
		return "127.0.0.1"
	default:
		return addr
	}
}

func applyScan(m *model.Model, scan *model.ScanRecord) {
	if scan == nil {
		return
	}

	m.Hostname = scan.Hostname
	m.Username = scan.Username
	m.ScanIndex = scan.ScanIndex
	m.LastScanAt = time.Now()

	wasConnecting := m.ConnectionState == model.ConnectionConnecting
	m.ConnectionState = model.ConnectionConnected

	ports := sortPorts(scan.Ports)

	if !portsEqual(ports, m.Ports) {
		m.Ports = ports
		switch {
		case len(m.Ports) == 0:
			m.SelectedIndex = -1
		case m.SelectedIndex < 0:
			m.SelectedIndex = 0
		case m.SelectedIndex >= len(m.Ports):
			m.SelectedIndex = len(m.Ports) - 1
		}
		m.NeedsRender = true
	} else if wasConnecting {
		m.NeedsRender = true
	}
}

func applyForwardEvent(m *model.Model, msg Message) {
	entry, ok := m.Forwards[msg.ForwardRemotePort]
	if !ok {
		return
	}
	if msg.ForwardLocalPort != 0 {
		entry.LocalPort = msg.ForwardLocalPort
	}
	if msg.ForwardStatus != "" {
		entry.Status = msg.ForwardStatus
	}
	entry.ActiveConnections = msg.ForwardConns
	m.NeedsRender = true
}

// sortPorts orders ports the way the dashboard displays them: by port
// number, then by owning PID (0 — no attributed process — sorts first),
// then TCP before TCP6.
func sortPorts(ports []model.ListeningPort) []model.ListeningPort {
	out := make([]model.ListeningPort, len(ports))
	copy(out, ports)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Port != b.Port {
			return a.Port < b.Port
		}
		if pidA, pidB := pidOf(a), pidOf(b); pidA != pidB {
			return pidA < pidB
		}
		return protocolOrder(a.Protocol) < protocolOrder(b.Protocol)
	})
	return out
}

func pidOf(p model.ListeningPort) uint32 {
	if p.Process == nil {
		return 0
	}
	return p.Process.PID
}

func protocolOrder(p model.Protocol) int {
	if p == model.ProtocolTCP6 {
		return 1
	}
	return 0
}

func portsEqual(a, b []model.ListeningPort) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Protocol != b[i].Protocol || a[i].LocalAddr != b[i].LocalAddr || a[i].Port != b[i].Port {
			return false
		}
		pa, pb := a[i].Process, b[i].Process
		if (pa == nil) != (pb == nil) {
			return false
		}
		if pa != nil && *pa != *pb {
			return false
		}
	}
	return true
}
