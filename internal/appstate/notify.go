package appstate

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sshfwd/sshfwd/internal/model"
)

// PortChangeKind classifies one port's appearance, disappearance, or
// reactivation between two consecutive scans.
type PortChangeKind int

const (
	PortAppeared PortChangeKind = iota
	PortDisappeared
	PortReactivated
)

// PortChange describes one port that changed state between scans, for
// inclusion in a desktop notification.
type PortChange struct {
	Port        uint16
	Kind        PortChangeKind
	ProcessName string
}

// DetectPortChanges compares the previous scan's port set against the
// current one and returns the changes worth notifying about. It returns nil
// on the first scan, since there's no baseline to diff against.
func DetectPortChanges(prevScanPorts map[uint16]bool, newScanPorts map[uint16]bool, forwards map[uint16]*model.ForwardEntry, newPorts, oldPorts []model.ListeningPort) []PortChange {
	if prevScanPorts == nil {
		return nil
	}

	var changes []PortChange

	var appeared []uint16
	for port := range newScanPorts {
		if !prevScanPorts[port] {
			appeared = append(appeared, port)
		}
	}
	sortUint16(appeared)
	for _, port := range appeared {
		kind := PortAppeared
		if entry, ok := forwards[port]; ok && entry.Status == model.ForwardStarting {
			kind = PortReactivated
		}
		changes = append(changes, PortChange{Port: port, Kind: kind, ProcessName: processNameFor(port, newPorts)})
	}

	var disappeared []uint16
	for port := range prevScanPorts {
		if !newScanPorts[port] {
			disappeared = append(disappeared, port)
		}
	}
	sortUint16(disappeared)
	for _, port := range disappeared {
		changes = append(changes, PortChange{Port: port, Kind: PortDisappeared, ProcessName: processNameFor(port, oldPorts)})
	}

	return changes
}

func processNameFor(port uint16, ports []model.ListeningPort) string {
	for _, p := range ports {
		if p.Port == port && p.Process != nil {
			return p.Process.Name
		}
	}
	return ""
}

func sortUint16(s []uint16) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// notifyDebounce is how long the batch waits after the last observed change
// before actually firing a notification, so a burst of ports coming up
// together (e.g. a compose stack starting) becomes one notification instead
// of several.
const notifyDebounce = 2 * time.Second

// NotifyBatch accumulates PortChanges across scans and flushes them as a
// single desktop notification once notifyDebounce has passed quietly.
type NotifyBatch struct {
	pending      []PortChange
	lastChangeAt time.Time
	// Disabled suppresses the actual desktop notification (--no-notify)
	// while the batch still tracks and clears pending changes normally, so
	// disabling notifications doesn't change the dashboard's own state.
	Disabled bool
}

// NewNotifyBatch returns an empty batch.
func NewNotifyBatch() *NotifyBatch {
	return &NotifyBatch{}
}

// Extend appends changes to the pending batch and resets the debounce timer.
func (b *NotifyBatch) Extend(changes []PortChange) {
	if len(changes) == 0 {
		return
	}
	b.pending = append(b.pending, changes...)
	b.lastChangeAt = time.Now()
}

// FlushIfReady sends a notification for the pending batch if the debounce
// window has elapsed since the last change, returning whether it did.
func (b *NotifyBatch) FlushIfReady(destination string) bool {
	if b.lastChangeAt.IsZero() || time.Since(b.lastChangeAt) < notifyDebounce || len(b.pending) == 0 {
		return false
	}
	changes := b.pending
	b.pending = nil
	b.lastChangeAt = time.Time{}
	if !b.Disabled {
		notifyPortChanges(destination, changes)
	}
	return true
}

// notifyPortChanges fires a best-effort desktop notification in the
// background; failures (no notification daemon, headless box) are silently
// swallowed since this is a convenience, not a required feature.
func notifyPortChanges(destination string, changes []PortChange) {
	if len(changes) == 0 {
		return
	}
	summary := fmt.Sprintf("sshfwd - %s", destination)
	body := FormatNotificationBody(changes)
	go sendDesktopNotification(summary, body)
}

// sendDesktopNotification shells out to the platform's native notifier.
// sshfwd's example pack carries no cross-platform desktop-notification
// library, so this drives notify-send (Linux) / osascript (macOS) directly
// rather than fabricate a dependency; see DESIGN.md.
func sendDesktopNotification(summary, body string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", quoteAppleScript(body), quoteAppleScript(summary))
		cmd = exec.Command("osascript", "-e", script)
	default:
		cmd = exec.Command("notify-send", "-i", "utilities-terminal", summary, body)
	}
	_ = cmd.Run()
}

func quoteAppleScript(s string) string {
	return strconv.Quote(s)
}

// FormatNotificationBody renders changes as the notification text: a single
// change gets a one-line "+ port (process)" form; multiple changes are
// grouped by kind onto separate lines with process names dropped.
func FormatNotificationBody(changes []PortChange) string {
	if len(changes) == 1 {
		c := changes[0]
		symbol := changeSymbol(c.Kind)
		if c.ProcessName != "" {
			return fmt.Sprintf("%s %d (%s)", symbol, c.Port, c.ProcessName)
		}
		return fmt.Sprintf("%s %d", symbol, c.Port)
	}

	var appeared, reactivated, disappeared []string
	for _, c := range changes {
		s := strconv.Itoa(int(c.Port))
		switch c.Kind {
		case PortAppeared:
			appeared = append(appeared, s)
		case PortReactivated:
			reactivated = append(reactivated, s)
		case PortDisappeared:
			disappeared = append(disappeared, s)
		}
	}

	var lines []string
	if len(appeared) > 0 {
		lines = append(lines, "+ "+strings.Join(appeared, ", "))
	}
	if len(reactivated) > 0 {
		lines = append(lines, "~ "+strings.Join(reactivated, ", "))
	}
	if len(disappeared) > 0 {
		lines = append(lines, "- "+strings.Join(disappeared, ", "))
	}
	return strings.Join(lines, "\n")
}

func changeSymbol(kind PortChangeKind) string {
	switch kind {
	case PortAppeared:
		return "+"
	case PortDisappeared:
		return "-"
	case PortReactivated:
		return "~"
	default:
		return "?"
	}
}
