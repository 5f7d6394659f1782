// Package forward supervises the local TCP listeners that carry one
// dashboard forward each: binding the local port, accepting connections, and
// relaying bytes to the remote service over an SSH direct-tcpip channel. It
// replaces sshfwd's previous process-supervision tunnel manager, which
// spawned ssh subprocesses, with one built on the native session in
// internal/sshsession.
package forward

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sshfwd/sshfwd/internal/model"
	"github.com/sshfwd/sshfwd/internal/sshsession"
)

// CommandKind discriminates the variants of Command.
type CommandKind int

const (
	CommandStart CommandKind = iota
	CommandStop
	CommandReactivate
	CommandPause
)

// Command is one instruction sent to a Manager's Run loop, usually produced
// by ReconcileForwards or by the user toggling a forward in the dashboard.
type Command struct {
	Kind       CommandKind
	RemotePort uint16
	LocalPort  uint16
	RemoteHost string
}

// EventKind discriminates the variants of Event.
type EventKind int

const (
	EventStarted EventKind = iota
	EventStopped
	EventPaused
	EventBindError
	EventConnectionCountChanged
)

// Event reports a forward lifecycle change back to the app state reconciler.
type Event struct {
	Kind       EventKind
	RemotePort uint16
	LocalPort  uint16
	Count      uint32
	Message    string
}

type listenerHandle struct {
	localPort  uint16
	remoteHost string
	stop       func()
}

// Manager owns every active local listener for one SSH destination. Start it
// with Run in its own goroutine; send it Commands and consume its Events from
// the channels passed to New.
type Manager struct {
	session *sshsession.Session
	cmdCh   <-chan Command
	eventCh chan<- Event

	mu        sync.Mutex
	listeners map[uint16]*listenerHandle
}

// New returns a Manager that reads commands from cmdCh and publishes events
// to eventCh until cmdCh is closed.
func New(session *sshsession.Session, cmdCh <-chan Command, eventCh chan<- Event) *Manager {
	return &Manager{
		session:   session,
		cmdCh:     cmdCh,
		eventCh:   eventCh,
		listeners: make(map[uint16]*listenerHandle),
	}
}

// Run processes commands until cmdCh closes. It's meant to be run in its own
// goroutine for the lifetime of the connected session.
func (m *Manager) Run() {
	for cmd := range m.cmdCh {
		switch cmd.Kind {
		case CommandStart:
			m.handleStart(cmd.RemotePort, cmd.LocalPort, cmd.RemoteHost)
		case CommandStop:
			m.handleStop(cmd.RemotePort)
		case CommandReactivate:
			localPort := cmd.LocalPort
			m.mu.Lock()
			if h, ok := m.listeners[cmd.RemotePort]; ok {
				localPort = h.localPort
			}
			m.mu.Unlock()
			m.handleStart(cmd.RemotePort, localPort, cmd.RemoteHost)
		case CommandPause:
			m.handleStop(cmd.RemotePort)
			m.emit(Event{Kind: EventPaused, RemotePort: cmd.RemotePort})
		}
	}
}

func (m *Manager) emit(evt Event) {
	select {
	case m.eventCh <- evt:
	default:
		slog.Warn("forward event dropped, channel full", "kind", evt.Kind, "remote_port", evt.RemotePort)
	}
}

func (m *Manager) handleStart(remotePort, localPort uint16, remoteHost string) {
	m.mu.Lock()
	if existing, ok := m.listeners[remotePort]; ok {
		existing.stop()
		delete(m.listeners, remotePort)
	}
	m.mu.Unlock()

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", localPort))
	if err != nil {
		m.emit(Event{Kind: EventBindError, RemotePort: remotePort, Message: err.Error()})
		return
	}

	actualPort := uint16(listener.Addr().(*net.TCPAddr).Port)

	stopCh := make(chan struct{})
	handle := &listenerHandle{
		localPort:  actualPort,
		remoteHost: remoteHost,
		stop: sync.OnceFunc(func() {
			close(stopCh)
			listener.Close()
		}),
	}

	m.mu.Lock()
	m.listeners[remotePort] = handle
	m.mu.Unlock()

	m.emit(Event{Kind: EventStarted, RemotePort: remotePort, LocalPort: actualPort})

	go m.acceptLoop(listener, stopCh, remotePort, actualPort, remoteHost)
}

func (m *Manager) acceptLoop(listener net.Listener, stopCh <-chan struct{}, remotePort, localPort uint16, remoteHost string) {
	var connCount atomic.Uint32
	var wg sync.WaitGroup

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-stopCh:
			default:
				slog.Debug("forward listener accept failed", "remote_port", remotePort, "error", err)
			}
			break
		}

		count := connCount.Add(1)
		m.emit(Event{Kind: EventConnectionCountChanged, RemotePort: remotePort, Count: count})

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			tunnelConnection(c, m.session, remoteHost, remotePort)
			count := connCount.Add(^uint32(0)) // decrement
			m.emit(Event{Kind: EventConnectionCountChanged, RemotePort: remotePort, Count: count})
		}(conn)
	}

	wg.Wait()
}

func (m *Manager) handleStop(remotePort uint16) {
	m.mu.Lock()
	handle, ok := m.listeners[remotePort]
	if ok {
		delete(m.listeners, remotePort)
	}
	m.mu.Unlock()

	if ok {
		handle.stop()
	}
	m.emit(Event{Kind: EventStopped, RemotePort: remotePort})
}

// tunnelConnection copies bytes in both directions between a locally
// accepted connection and the remote direct-tcpip channel until either side
// closes or errors.
func tunnelConnection(local net.Conn, session *sshsession.Session, remoteHost string, remotePort uint16) {
	defer local.Close()

	remote, err := session.OpenDirectTCPIP(remoteHost, int(remotePort))
	if err != nil {
		slog.Debug("failed to open direct-tcpip channel", "remote_host", remoteHost, "remote_port", remotePort, "error", err)
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(local, remote)
		done <- struct{}{}
	}()
	<-done
}

// ReconcileForwards compares the current remote scan's listening ports
// against the tracked forwards and returns the commands needed to bring
// forward state in line: pause forwards whose remote port vanished, and
// reactivate paused forwards whose remote port has reappeared. A
// reactivated forward reconnects to the same remote bind address it was
// started against, recorded on its entry, rather than a single host
// assumed for every forward. Entry statuses are updated in place to
// reflect the commands just produced, so a repeated call against the same
// inputs is a no-op.
func ReconcileForwards(forwards map[uint16]*model.ForwardEntry, currentRemotePorts map[uint16]bool) []Command {
	var commands []Command

	for remotePort, entry := range forwards {
		switch entry.Status {
		case model.ForwardActive, model.ForwardStarting:
			if !currentRemotePorts[remotePort] {
				commands = append(commands, Command{Kind: CommandPause, RemotePort: remotePort})
			}
		case model.ForwardPaused:
			if currentRemotePorts[remotePort] {
				commands = append(commands, Command{
					Kind:       CommandReactivate,
					RemotePort: remotePort,
					LocalPort:  entry.LocalPort,
					RemoteHost: entry.RemoteHost,
				})
			}
		}
	}

	for _, cmd := range commands {
		entry, ok := forwards[cmd.RemotePort]
		if !ok {
			continue
		}
		switch cmd.Kind {
		case CommandPause:
			entry.Status = model.ForwardPaused
		case CommandReactivate:
			entry.Status = model.ForwardStarting
		}
	}

	return commands
}
