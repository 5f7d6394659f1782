package sshfwderr

import (
	"errors"
	"testing"
)

func TestUserMessageRedactsDebugDetail(t *testing.T) {
	err := Wrap(KindConnection, "failed to connect to db1", errors.New("dial tcp 10.0.0.1:22: connection refused"))

	if got := UserMessage(err, true); got != "failed to connect to db1" {
		t.Errorf("redacted UserMessage = %q, want safe message only", got)
	}
	if got := UserMessage(err, false); got == err.UserSafe {
		t.Errorf("unredacted UserMessage should include debug detail, got %q", got)
	}
}

func TestUserMessageHandlesNil(t *testing.T) {
	if got := UserMessage(nil, false); got != "" {
		t.Errorf("UserMessage(nil) = %q, want empty", got)
	}
	if got := DebugMessage(nil); got != "" {
		t.Errorf("DebugMessage(nil) = %q, want empty", got)
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(KindRemote, "remote command failed", nil); err != nil {
		t.Errorf("Wrap(nil) = %+v, want nil", err)
	}
}

func TestAsFindsClassifiedErrorInChain(t *testing.T) {
	inner := Configf("missing Host block for %s", "db1")
	outer := errors.Join(errors.New("setup failed"), inner)

	// errors.Join doesn't chain via Unwrap() error, so also wrap it in a
	// type with a single-error Unwrap method (errorsWrap below).
	wrapped := errorsWrap(inner)

	if _, ok := As(outer); ok {
		t.Fatalf("As should not find inner through errors.Join (no single-error Unwrap chain)")
	}
	got, ok := As(wrapped)
	if !ok || got != inner {
		t.Fatalf("As(wrapped) = %+v, %v, want %+v, true", got, ok, inner)
	}
}

func TestAsReturnsFalseForUnrelatedError(t *testing.T) {
	if _, ok := As(errors.New("plain error")); ok {
		t.Error("As should return false for a non-classified error")
	}
}

func errorsWrap(err *Error) error {
	return &wrapErr{err}
}

type wrapErr struct{ err error }

func (w *wrapErr) Error() string { return "context: " + w.err.Error() }
func (w *wrapErr) Unwrap() error { return w.err }
