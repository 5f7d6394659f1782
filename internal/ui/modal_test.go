package ui

import (
	"strings"
	"testing"

	"github.com/sshfwd/sshfwd/internal/model"
)

func TestRenderModalShowsPromptAndBuffer(t *testing.T) {
	out := renderModal(&model.ModalInput{RemotePort: 8080, Buffer: "918"})
	if !strings.Contains(out, "8080") {
		t.Fatalf("expected remote port in modal, got %q", out)
	}
	if !strings.Contains(out, "918") {
		t.Fatalf("expected typed buffer in modal, got %q", out)
	}
}

func TestRenderModalShowsErrorMessage(t *testing.T) {
	out := renderModal(&model.ModalInput{RemotePort: 22, Buffer: "70000", ErrorMessage: "enter a port between 1 and 65535"})
	if !strings.Contains(out, "enter a port between 1 and 65535") {
		t.Fatalf("expected error message rendered, got %q", out)
	}
}
