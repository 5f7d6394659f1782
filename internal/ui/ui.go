// Package ui implements sshfwd's Bubble Tea dashboard: a single connected
// session's listening remote ports, the forwards the user has toggled on,
// and the custom-port modal, all driven by internal/appstate's reducer.
//
// The dashboard owns three concurrent sources of activity alongside
// keyboard input: the discovery stream's scan records, the forward
// manager's lifecycle events, and a render tick. Each is bridged into
// Bubble Tea's single-threaded Update loop with a small "wait on a channel"
// tea.Cmd that blocks in its own goroutine and is reissued after every
// message it produces — the same shape the teacher used for its periodic
// refresh tick, generalized to channels that aren't just a timer.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/sshfwd/sshfwd/internal/agentdeploy"
	"github.com/sshfwd/sshfwd/internal/appconfig"
	"github.com/sshfwd/sshfwd/internal/appstate"
	"github.com/sshfwd/sshfwd/internal/discovery"
	"github.com/sshfwd/sshfwd/internal/events"
	"github.com/sshfwd/sshfwd/internal/forward"
	"github.com/sshfwd/sshfwd/internal/history"
	"github.com/sshfwd/sshfwd/internal/model"
	"github.com/sshfwd/sshfwd/internal/persistence"
	"github.com/sshfwd/sshfwd/internal/sshsession"
	"github.com/sshfwd/sshfwd/internal/util"
)

var (
	accentActive  = lipgloss.Color("86")
	accentStale   = lipgloss.Color("214")
	accentWarn    = lipgloss.Color("203")
	accentNeutral = lipgloss.Color("240")
)

type scanEventMsg struct {
	evt *discovery.Event
	ok  bool
}

type forwardEventMsg struct {
	evt forward.Event
	ok  bool
}

type tickMsg time.Time

// dashboard is the Bubble Tea model backing the connected session view.
type dashboard struct {
	m   *model.Model
	cfg appconfig.Config

	session *sshsession.Session
	stream  *discovery.Stream
	agent   *agentdeploy.Manager

	cmdCh  chan forward.Command
	scanCh chan *discovery.Event
	evtCh  chan forward.Event

	evStore *events.Store
	notify  *appstate.NotifyBatch

	prevScanPorts map[uint16]bool
	pendingLocal  map[uint16]uint16
	pendingRestor []model.PersistedForward

	width, height int
	showHelp      bool
	quitting      bool
}

func newDashboard(m *model.Model, cfg appconfig.Config, session *sshsession.Session, stream *discovery.Stream, agent *agentdeploy.Manager, restore []model.PersistedForward) *dashboard {
	return &dashboard{
		m:             m,
		cfg:           cfg,
		session:       session,
		stream:        stream,
		agent:         agent,
		cmdCh:         make(chan forward.Command, 16),
		scanCh:        make(chan *discovery.Event, 1),
		evtCh:         make(chan forward.Event, 16),
		evStore:       events.NewStore(),
		notify:        appstate.NewNotifyBatch(),
		pendingLocal:  map[uint16]uint16{},
		pendingRestor: restore,
	}
}

func (d *dashboard) Init() tea.Cmd {
	go pumpScans(d.stream, d.scanCh)
	mgr := forward.New(d.session, d.cmdCh, d.evtCh)
	go mgr.Run()
	return tea.Batch(waitForScan(d.scanCh), waitForForwardEvent(d.evtCh), tickCmd(d.cfg.UI.RefreshSeconds))
}

// pumpScans bridges Stream.Next's blocking calls onto a channel so Update
// can wait on it with the rest of Bubble Tea's message loop instead of
// blocking the whole program on one SSH round trip.
func pumpScans(stream *discovery.Stream, out chan<- *discovery.Event) {
	for {
		evt, ok := stream.Next()
		if !ok {
			close(out)
			return
		}
		out <- evt
		if evt.Kind == discovery.EventError {
			close(out)
			return
		}
	}
}

func waitForScan(ch <-chan *discovery.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		return scanEventMsg{evt: evt, ok: ok}
	}
}

func waitForForwardEvent(ch <-chan forward.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		return forwardEventMsg{evt: evt, ok: ok}
	}
}

func tickCmd(seconds int) tea.Cmd {
	return tea.Tick(clampRefresh(seconds), func(t time.Time) tea.Msg { return tickMsg(t) })
}

func clampRefresh(seconds int) time.Duration {
	if seconds <= 0 {
		return time.Duration(appconfig.Default().UI.RefreshSeconds) * time.Second
	}
	return time.Duration(seconds) * time.Second
}

func (d *dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width, d.height = msg.Width, msg.Height
		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgResize, Width: msg.Width, Height: msg.Height})
		return d, nil

	case tickMsg:
		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgTick})
		if d.notify.FlushIfReady(d.m.Destination) {
			d.m.NeedsRender = true
		}
		return d, tickCmd(d.cfg.UI.RefreshSeconds)

	case scanEventMsg:
		return d.handleScanEvent(msg)

	case forwardEventMsg:
		return d.handleForwardEvent(msg)

	case tea.KeyMsg:
		return d.handleKey(msg)
	}
	return d, nil
}

func (d *dashboard) handleScanEvent(msg scanEventMsg) (tea.Model, tea.Cmd) {
	if !msg.ok || msg.evt == nil {
		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgStreamEnded})
		return d, tea.Quit
	}

	evt := msg.evt
	switch evt.Kind {
	case discovery.EventScan:
		oldPorts := d.m.Ports
		newScanPorts := make(map[uint16]bool, len(evt.Scan.Ports))
		for _, p := range evt.Scan.Ports {
			newScanPorts[p.Port] = true
		}

		changes := appstate.DetectPortChanges(d.prevScanPorts, newScanPorts, d.m.Forwards, evt.Scan.Ports, oldPorts)
		d.notify.Extend(changes)
		d.prevScanPorts = newScanPorts

		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgScanReceived, Scan: evt.Scan})
		d.restoreForwardsIfPending(newScanPorts)
		d.sendCommands(forward.ReconcileForwards(d.m.Forwards, newScanPorts))

	case discovery.EventWarning:
		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgDiscoveryWarning, Warning: evt.Warning})

	case discovery.EventError:
		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgDiscoveryError, Err: evt.Err})
		return d, tea.Quit
	}

	return d, waitForScan(d.scanCh)
}

// restoreForwardsIfPending starts the forwards persisted from a previous run
// once the first scan resolves each remote port's actual listen address;
// restored ports that never reappear are simply dropped.
func (d *dashboard) restoreForwardsIfPending(remotePorts map[uint16]bool) {
	if len(d.pendingRestor) == 0 {
		return
	}
	pending := d.pendingRestor
	d.pendingRestor = nil
	for _, p := range pending {
		if !remotePorts[p.RemotePort] {
			continue
		}
		host := "127.0.0.1"
		for _, rp := range d.m.Ports {
			if rp.Port == p.RemotePort {
				host = util.NormalizeAddr(rp.LocalAddr, "127.0.0.1")
				if host == "0.0.0.0" || host == "::" {
					host = "127.0.0.1"
				}
				break
			}
		}
		d.m.Forwards[p.RemotePort] = &model.ForwardEntry{
			RemotePort: p.RemotePort,
			LocalPort:  p.LocalPort,
			RemoteHost: host,
			Status:     model.ForwardStarting,
		}
		d.sendCommands([]forward.Command{{Kind: forward.CommandStart, RemotePort: p.RemotePort, LocalPort: p.LocalPort, RemoteHost: host}})
	}
}

func (d *dashboard) handleForwardEvent(msg forwardEventMsg) (tea.Model, tea.Cmd) {
	if !msg.ok {
		return d, nil
	}
	evt := msg.evt

	switch evt.Kind {
	case forward.EventStarted:
		delete(d.pendingLocal, evt.RemotePort)
		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgForwardEvent, ForwardRemotePort: evt.RemotePort, ForwardLocalPort: evt.LocalPort, ForwardStatus: model.ForwardActive})
		d.recordEvent(evt.RemotePort, "started", model.ForwardActive, "")

	case forward.EventStopped:
		d.recordEvent(evt.RemotePort, "stopped", "", "")

	case forward.EventPaused:
		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgForwardEvent, ForwardRemotePort: evt.RemotePort, ForwardStatus: model.ForwardPaused})
		d.recordEvent(evt.RemotePort, "paused", model.ForwardPaused, "")

	case forward.EventConnectionCountChanged:
		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgForwardEvent, ForwardRemotePort: evt.RemotePort, ForwardConns: evt.Count})

	case forward.EventBindError:
		localPort := d.pendingLocal[evt.RemotePort]
		if localPort == 0 {
			localPort = evt.LocalPort
		}
		delete(d.pendingLocal, evt.RemotePort)
		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgForwardBindError, ForwardRemotePort: evt.RemotePort, ForwardLocalPort: localPort, ForwardMessage: evt.Message})
		d.recordEvent(evt.RemotePort, "bind_error", "", evt.Message)
	}

	return d, waitForForwardEvent(d.evtCh)
}

func (d *dashboard) recordEvent(remotePort uint16, eventType string, status model.ForwardStatus, message string) {
	_ = d.evStore.Append(events.Event{
		Destination: d.m.Destination,
		RemotePort:  remotePort,
		EventType:   eventType,
		Status:      status,
		Message:     message,
	})
}

func (d *dashboard) sendCommands(cmds []forward.Command) {
	for _, cmd := range cmds {
		if cmd.Kind == forward.CommandStart {
			d.pendingLocal[cmd.RemotePort] = cmd.LocalPort
		}
		d.cmdCh <- cmd
	}
}

func (d *dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if d.m.Modal != nil {
		return d.handleModalKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		d.quitting = true
		return d, tea.Quit
	case "j", "down":
		d.sendCommands(appstate.Update(d.m, appstate.Message{Kind: appstate.MsgMoveDown}))
	case "k", "up":
		d.sendCommands(appstate.Update(d.m, appstate.Message{Kind: appstate.MsgMoveUp}))
	case "g":
		d.sendCommands(appstate.Update(d.m, appstate.Message{Kind: appstate.MsgGoToTop}))
	case "G":
		d.sendCommands(appstate.Update(d.m, appstate.Message{Kind: appstate.MsgGoToBottom}))
	case "f", "enter":
		d.sendCommands(appstate.Update(d.m, appstate.Message{Kind: appstate.MsgToggleForward}))
	case "c":
		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgOpenCustomPortModal})
	case "?":
		d.showHelp = !d.showHelp
		d.m.NeedsRender = true
	}
	return d, nil
}

func (d *dashboard) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgModalCancel})
	case tea.KeyEnter:
		d.sendCommands(appstate.Update(d.m, appstate.Message{Kind: appstate.MsgModalConfirm}))
	case tea.KeyBackspace:
		appstate.Update(d.m, appstate.Message{Kind: appstate.MsgModalBackspace})
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			appstate.Update(d.m, appstate.Message{Kind: appstate.MsgModalChar, ModalChar: r})
		}
	}
	return d, nil
}

func (d *dashboard) View() string {
	if d.quitting {
		return ""
	}
	header := d.renderHeader()
	table := d.renderPortsTable()

	body := lipgloss.JoinVertical(lipgloss.Left, header, renderPanel("ports", table, d.effectiveWidth(), d.headerAccent()))

	if len(d.m.Warnings) > 0 {
		body = lipgloss.JoinVertical(lipgloss.Left, body, renderWarnings(d.m.Warnings))
	}
	if d.m.LastError != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, lipgloss.NewStyle().Foreground(accentWarn).Render("error: "+d.m.LastError))
	}
	if d.m.Modal != nil {
		body = lipgloss.JoinVertical(lipgloss.Left, body, renderModal(d.m.Modal))
	}
	if d.showHelp {
		body = lipgloss.JoinVertical(lipgloss.Left, body, helpBlock())
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, body, lipgloss.NewStyle().Foreground(accentNeutral).Render("j/k move  f/enter forward  c custom port  ? help  q quit"))
	}
	return body
}

func (d *dashboard) headerAccent() lipgloss.Color {
	switch {
	case d.m.ConnectionState == model.ConnectionDisconnected:
		return accentWarn
	case d.m.Stale(time.Now()):
		return accentStale
	default:
		return accentActive
	}
}

func (d *dashboard) renderHeader() string {
	state := string(d.m.ConnectionState)
	line := fmt.Sprintf("sshfwd  %s  (%s@%s)  scan #%d  %s",
		d.m.Destination, util.EmptyDash(d.m.Username), util.EmptyDash(d.m.Hostname), d.m.ScanIndex, state)
	return lipgloss.NewStyle().Bold(true).Foreground(d.headerAccent()).Render(line)
}

func (d *dashboard) renderPortsTable() string {
	if len(d.m.Ports) == 0 {
		return "(no listening ports observed yet)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-2s %-8s %-22s %-8s %-20s %s\n", "", "PORT", "PROCESS", "PROTO", "FORWARD", "STATE")
	for i, p := range d.m.Ports {
		cursor := "  "
		if i == d.m.SelectedIndex {
			cursor = "> "
		}
		proc := "-"
		if p.Process != nil {
			proc = fmt.Sprintf("%s(%d)", p.Process.Name, p.Process.PID)
		}
		fwdCol := "-"
		stateCol := "-"
		if entry, ok := d.m.Forwards[p.Port]; ok {
			fwdCol = fmt.Sprintf("127.0.0.1:%d", entry.LocalPort)
			stateCol = fmt.Sprintf("%s (%d conns)", entry.Status, entry.ActiveConnections)
		}
		fmt.Fprintf(&b, "%-2s %-8d %-22s %-8s %-20s %s\n", cursor, p.Port, proc, p.Protocol, fwdCol, stateCol)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderWarnings(warnings []string) string {
	var b strings.Builder
	for _, w := range warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	return lipgloss.NewStyle().Foreground(accentStale).Render(strings.TrimRight(b.String(), "\n"))
}

func helpBlock() string {
	lines := []string{
		"j/k, up/down   move selection",
		"g/G            jump to top/bottom",
		"f, enter       toggle forward on selected port",
		"c              forward selected port to a custom local port",
		"?              toggle this help",
		"q, ctrl+c      quit",
	}
	return lipgloss.NewStyle().Foreground(accentNeutral).Render(strings.Join(lines, "\n"))
}

// renderPanel renders body inside a bordered, titled box sized to width.
func renderPanel(title, body string, width int, accent lipgloss.Color) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Width(width - 2)
	return style.Render(body)
}

func (d *dashboard) effectiveWidth() int {
	if d.width <= 0 {
		return 100
	}
	return d.width
}

// Run connects to destination, deploys the discovery agent, restores any
// persisted forwards, and runs the dashboard until the user quits or the
// session ends. agentPath overrides the discovery agent binary resolution
// for development use; pass "" for the normal embedded/prebuilt lookup.
// noNotify suppresses desktop notifications for port changes without
// otherwise changing dashboard behavior.
func Run(destination, agentPath string, noNotify bool) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("sshfwd requires an interactive terminal")
	}

	cfg, err := appconfig.Load()
	if err != nil {
		cfg = appconfig.Default()
	}

	hostKeyCallback, err := resolveHostKeyCallback(cfg)
	if err != nil {
		return err
	}

	session, err := sshsession.Connect(destination, hostKeyCallback)
	if err != nil {
		return err
	}
	defer session.Close()

	stream, err := discovery.Start(session, agentPath)
	if err != nil {
		return err
	}
	defer stream.Close()

	agentMgr := agentdeploy.New(session)
	defer agentMgr.KillRemoteAgent()

	_ = history.Touch(destination)

	m := model.NewModel(destination)
	restore := persistence.Load(destination)

	d := newDashboard(m, cfg, session, stream, agentMgr, restore)
	d.notify.Disabled = noNotify
	p := tea.NewProgram(d, tea.WithAltScreen())
	_, runErr := p.Run()

	_ = persistence.Save(destination, snapshotForwards(m))
	return runErr
}

func resolveHostKeyCallback(cfg appconfig.Config) (ssh.HostKeyCallback, error) {
	if cfg.Security.HostKeyPolicy == appconfig.HostKeyPolicyInsecure {
		return sshsession.AcceptAllHostKeys(), nil
	}
	return sshsession.StrictHostKeys()
}

func snapshotForwards(m *model.Model) []model.PersistedForward {
	out := make([]model.PersistedForward, 0, len(m.Forwards))
	for _, entry := range m.Forwards {
		out = append(out, model.PersistedForward{RemotePort: entry.RemotePort, LocalPort: entry.LocalPort})
	}
	return out
}
