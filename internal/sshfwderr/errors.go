// Package sshfwderr defines the classified error taxonomy used across
// sshfwd's SSH, discovery, and forward layers. Every error that can surface
// to the dashboard status line carries a Kind so the UI can decide how to
// react (retry, disconnect, just log) without string-matching messages, and
// a UserMessage/DebugMessage split so raw paths and hostnames can be
// redacted from what gets shown on screen while the full detail is still
// available in logs.
package sshfwderr

import "fmt"

// Kind classifies the origin of an error for display and control-flow
// purposes. It intentionally mirrors the stages a connection goes through:
// resolving config, connecting, authenticating, running a remote command,
// deploying the agent, touching the local filesystem, parsing agent output,
// the stream ending, or a timeout waiting on one.
type Kind string

const (
	KindConfig      Kind = "config"
	KindConnection  Kind = "connection"
	KindAuth        Kind = "auth"
	KindRemote      Kind = "remote"
	KindAgentDeploy Kind = "agent_deploy"
	KindLocalIO     Kind = "local_io"
	KindParse       Kind = "parse"
	KindStreamEnded Kind = "stream_ended"
	KindTimeout     Kind = "timeout"
)

// Error is a classified error carrying both a safe-to-display message and
// the full debug detail (which may include paths, hostnames, or raw
// upstream error text that a redacting caller wants to withhold).
type Error struct {
	Kind        Kind
	UserSafe    string
	DebugDetail string
	Wrapped     error
}

func (e *Error) Error() string {
	if e.DebugDetail != "" {
		return fmt.Sprintf("%s: %s", e.UserSafe, e.DebugDetail)
	}
	return e.UserSafe
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds a classified error with no wrapped cause.
func New(kind Kind, userSafe, debugDetail string) *Error {
	return &Error{Kind: kind, UserSafe: userSafe, DebugDetail: debugDetail}
}

// Wrap builds a classified error around an existing error, using err's
// message as the debug detail.
func Wrap(kind Kind, userSafe string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, UserSafe: userSafe, DebugDetail: err.Error(), Wrapped: err}
}

// Connectionf builds a KindConnection error for a failed dial/handshake to
// destination.
func Connectionf(destination string, err error) *Error {
	return Wrap(KindConnection, fmt.Sprintf("failed to connect to %s", destination), err)
}

// Authf builds a KindAuth error describing why authentication failed.
func Authf(destination, detail string) *Error {
	return New(KindAuth, fmt.Sprintf("authentication failed for %s", destination), detail)
}

// Configf builds a KindConfig error.
func Configf(format string, args ...any) *Error {
	return New(KindConfig, fmt.Sprintf(format, args...), "")
}

// Remotef wraps a remote command failure.
func Remotef(err error) *Error {
	return Wrap(KindRemote, "remote command failed", err)
}

// AgentDeployf builds a KindAgentDeploy error.
func AgentDeployf(format string, args ...any) *Error {
	return New(KindAgentDeploy, "agent deployment failed", fmt.Sprintf(format, args...))
}

// LocalIOf wraps a local filesystem error for path.
func LocalIOf(path string, err error) *Error {
	return Wrap(KindLocalIO, fmt.Sprintf("local I/O error for %s", path), err)
}

// Parsef builds a KindParse error describing a malformed agent response.
func Parsef(format string, args ...any) *Error {
	return New(KindParse, "failed to parse agent response", fmt.Sprintf(format, args...))
}

// StreamEnded is returned when the agent's stdout stream closes without a
// prior disconnect request.
var StreamEnded = New(KindStreamEnded, "agent stream ended unexpectedly", "")

// Timeoutf builds a KindTimeout error describing how many consecutive
// staleness windows elapsed without a response.
func Timeoutf(windowSecs int64, consecutive int) *Error {
	return New(KindTimeout, "agent stopped responding",
		fmt.Sprintf("no response within %ds (%d consecutive timeouts)", windowSecs, consecutive))
}

// UserMessage returns the message safe to show in the dashboard or CLI
// output. When redact is true, DebugDetail is withheld entirely.
func UserMessage(err *Error, redact bool) string {
	if err == nil {
		return ""
	}
	if redact || err.DebugDetail == "" {
		return err.UserSafe
	}
	return err.Error()
}

// DebugMessage returns the full detail, for logs.
func DebugMessage(err *Error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// As reports whether err (or any error in its chain) is an *Error, and
// returns it.
func As(err error) (*Error, bool) {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			return ce, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
