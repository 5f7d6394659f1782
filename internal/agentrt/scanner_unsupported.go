//go:build !linux && !darwin

package agentrt

// sshfwd-agent only builds for linux (full port discovery, scanner_linux.go)
// and darwin (empty-list stub, scanner_darwin.go). Referencing this
// intentionally undefined identifier turns "go build" on any other target
// into a clear compile error instead of a missing NewPlatformScanner deep in
// cmd/sshfwd-agent.
var _ = sshfwdAgentDoesNotSupportThisPlatform
