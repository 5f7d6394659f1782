// Package discovery turns the remote agent's JSON-lines stdout stream into
// typed events the app state reconciler can consume: a fresh scan, a
// transient warning (agent-reported scan error, missed heartbeat), or a
// terminal error that should end the session (including a line that fails
// to parse).
package discovery

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sshfwd/sshfwd/internal/agentdeploy"
	"github.com/sshfwd/sshfwd/internal/model"
	"github.com/sshfwd/sshfwd/internal/sshfwderr"
	"github.com/sshfwd/sshfwd/internal/sshsession"
)

// StalenessTimeout is how long the stream waits for the next line before
// counting a timeout. The agent scans every agentrt.ScanInterval (2s); three
// missed scans in a row is long enough to mean something is actually wrong
// rather than one slow round trip.
const StalenessTimeout = 6 * time.Second

// MaxConsecutiveTimeouts is how many StalenessTimeout periods may elapse
// with no line before the stream gives up and reports a terminal timeout.
const MaxConsecutiveTimeouts = 3

// EventKind discriminates the variants of Event.
type EventKind int

const (
	// EventScan carries a successfully decoded scan record.
	EventScan EventKind = iota
	// EventWarning carries a transient, non-fatal problem: an
	// agent-reported scan error or a single missed heartbeat.
	EventWarning
	// EventError carries a terminal problem; the stream should be closed
	// after this is delivered.
	EventError
)

// Event is one item produced by Stream.Next.
type Event struct {
	Kind    EventKind
	Scan    *model.ScanRecord
	Warning string
	Err     error
}

// Stream reads line-delimited AgentResponse JSON from a deployed remote
// agent and exposes it as a sequence of Events.
type Stream struct {
	cmd                 *sshsession.StreamingCmd
	lines               chan lineOrErr
	consecutiveTimeouts int
}

type lineOrErr struct {
	line string
	err  error
}

// Start deploys the discovery agent over session (via agentdeploy.Manager)
// and begins reading its stdout. localAgentPath overrides agent binary
// resolution for development use; pass "" to use the normal embedded/prebuilt
// resolution order.
func Start(session *sshsession.Session, localAgentPath string) (*Stream, error) {
	manager := agentdeploy.New(session)
	cmd, err := manager.DeployAndSpawn(localAgentPath)
	if err != nil {
		return nil, err
	}

	s := &Stream{cmd: cmd, lines: make(chan lineOrErr, 1)}
	go s.pump()
	return s, nil
}

// pump runs in its own goroutine for the life of the stream, since
// bufio.Scanner has no way to bound a single Scan() call by a deadline;
// reading on a background goroutine and selecting on a channel with
// time.After is the standard way to impose one on an arbitrary io.Reader.
func (s *Stream) pump() {
	scanner := bufio.NewScanner(s.cmd.Stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.lines <- lineOrErr{line: scanner.Text()}
	}
	if err := scanner.Err(); err != nil {
		s.lines <- lineOrErr{err: err}
		return
	}
	close(s.lines)
}

// Next blocks until the next event is available: a decoded scan, a warning,
// or a terminal error. It always reports ok=true; once the agent's stdout
// has closed, every call returns an EventError carrying
// sshfwderr.StreamEnded.
func (s *Stream) Next() (*Event, bool) {
	select {
	case item, ok := <-s.lines:
		if !ok {
			return &Event{Kind: EventError, Err: sshfwderr.StreamEnded}, true
		}
		if item.err != nil {
			return &Event{Kind: EventError, Err: sshfwderr.Parsef("I/O error: %v", item.err)}, true
		}
		s.consecutiveTimeouts = 0
		return s.decode(item.line), true

	case <-time.After(StalenessTimeout):
		s.consecutiveTimeouts++
		if s.consecutiveTimeouts >= MaxConsecutiveTimeouts {
			return &Event{Kind: EventError, Err: sshfwderr.Timeoutf(int64(StalenessTimeout.Seconds()), s.consecutiveTimeouts)}, true
		}
		return &Event{Kind: EventWarning, Warning: fmt.Sprintf(
			"agent timeout (%d/%d): no response within %ds",
			s.consecutiveTimeouts, MaxConsecutiveTimeouts, int(StalenessTimeout.Seconds()),
		)}, true
	}
}

func (s *Stream) decode(line string) *Event {
	var resp model.AgentResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return &Event{Kind: EventError, Err: sshfwderr.Parsef("%v: %s", err, line)}
	}
	if resp.Status == "ok" && resp.Scan != nil {
		return &Event{Kind: EventScan, Scan: resp.Scan}
	}
	if resp.Err != nil {
		return &Event{Kind: EventWarning, Warning: fmt.Sprintf("agent error (%s): %s", resp.Err.Kind, resp.Err.Message)}
	}
	return &Event{Kind: EventWarning, Warning: fmt.Sprintf("unrecognized agent response: %s", line)}
}

// Close terminates the remote agent command.
func (s *Stream) Close() error {
	return s.cmd.Close()
}
