package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestRecentDestinationsOrdersByRecencyThenAlpha(t *testing.T) {
	lastUsed := map[string]int64{
		"api@api.internal": 100,
		"db@db.internal":   300,
		"cache@cache.internal": 300,
	}
	got := recentDestinations(lastUsed)
	if len(got) != 3 {
		t.Fatalf("got %d destinations, want 3", len(got))
	}
	if got[0] != "cache@cache.internal" || got[1] != "db@db.internal" || got[2] != "api@api.internal" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestRecentDestinationsEmpty(t *testing.T) {
	if got := recentDestinations(nil); len(got) != 0 {
		t.Fatalf("got %+v, want empty", got)
	}
}

func TestConnectPromptEnterConfirmsTypedValue(t *testing.T) {
	p := newConnectPrompt(nil)
	p.input.SetValue("deploy@build-1")
	m, _ := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	cp := m.(connectPrompt)
	if !cp.confirmed || cp.result != "deploy@build-1" {
		t.Fatalf("expected confirmed result, got %+v", cp)
	}
}

func TestConnectPromptUpArrowFillsSuggestion(t *testing.T) {
	p := newConnectPrompt([]string{"db@db1", "api@api1"})
	m, _ := p.Update(tea.KeyMsg{Type: tea.KeyUp})
	cp := m.(connectPrompt)
	if cp.input.Value() != "api@api1" {
		t.Fatalf("expected last suggestion filled in, got %q", cp.input.Value())
	}
}

func TestConnectPromptEscCancels(t *testing.T) {
	p := newConnectPrompt(nil)
	m, _ := p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	cp := m.(connectPrompt)
	if !cp.cancelled {
		t.Fatalf("expected cancelled prompt")
	}
}
