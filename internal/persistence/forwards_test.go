package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sshfwd/sshfwd/internal/model"
)

func withHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return dir
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	withHome(t)

	forwards := []model.PersistedForward{
		{RemotePort: 5432, LocalPort: 5432},
		{RemotePort: 8080, LocalPort: 18080},
	}

	if err := Save("deploy@db1", forwards); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := Load("deploy@db1")
	if len(got) != 2 {
		t.Fatalf("got %d forwards, want 2", len(got))
	}
	if got[0] != forwards[0] || got[1] != forwards[1] {
		t.Errorf("got %+v, want %+v", got, forwards)
	}
}

func TestLoadMissingDestinationReturnsEmpty(t *testing.T) {
	withHome(t)
	if got := Load("nobody@nowhere"); len(got) != 0 {
		t.Errorf("got %d forwards, want 0", len(got))
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	withHome(t)
	if got := Load("anything"); len(got) != 0 {
		t.Errorf("got %d forwards, want 0", len(got))
	}
}

func TestSaveEmptyRemovesDestination(t *testing.T) {
	withHome(t)

	_ = Save("a", []model.PersistedForward{{RemotePort: 80, LocalPort: 80}})
	_ = Save("b", []model.PersistedForward{{RemotePort: 443, LocalPort: 443}})

	if err := Save("a", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if got := Load("a"); len(got) != 0 {
		t.Errorf("destination a should be removed, got %+v", got)
	}
	if got := Load("b"); len(got) != 1 {
		t.Errorf("destination b should be preserved, got %+v", got)
	}
}

func TestSavePreservesOtherDestinations(t *testing.T) {
	withHome(t)

	_ = Save("first", []model.PersistedForward{{RemotePort: 1, LocalPort: 1}})
	_ = Save("second", []model.PersistedForward{{RemotePort: 2, LocalPort: 2}})

	if got := Load("first"); len(got) != 1 {
		t.Errorf("first destination lost after saving second, got %+v", got)
	}
}

func TestPathUsesHomeDir(t *testing.T) {
	home := withHome(t)
	want := filepath.Join(home, ".sshfwd", "forwards.json")
	if got := Path(); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestLoadCorruptFileReturnsEmpty(t *testing.T) {
	home := withHome(t)
	dir := filepath.Join(home, ".sshfwd")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "forwards.json"), []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := Load("anything"); len(got) != 0 {
		t.Errorf("got %+v, want empty on corrupt file", got)
	}
}
