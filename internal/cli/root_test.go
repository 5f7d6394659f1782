package cli

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sshfwd/sshfwd/internal/bundle"
	"github.com/sshfwd/sshfwd/internal/events"
	"github.com/sshfwd/sshfwd/internal/history"
	"github.com/sshfwd/sshfwd/internal/model"
	"github.com/sshfwd/sshfwd/internal/persistence"
)

func TestBundleCreateShowDeleteLifecycle(t *testing.T) {
	setupSSHConfigForCLI(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"bundle", "create", "daily", "--destination", "deploy@db1", "--remote-port", "5432", "--remote-port", "8080:18080"})
	if _, err := captureStdout(func() error { return cmd.Execute() }); err != nil {
		t.Fatalf("create bundle: %v", err)
	}

	cmd = NewRootCommand()
	cmd.SetArgs([]string{"bundle", "list"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("list bundle: %v", err)
	}
	if !strings.Contains(out, "daily") || !strings.Contains(out, "deploy@db1") {
		t.Fatalf("expected bundle in list output, got: %s", out)
	}

	cmd = NewRootCommand()
	cmd.SetArgs([]string{"bundle", "show", "daily"})
	out, err = captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("show bundle: %v", err)
	}
	if !strings.Contains(out, "5432") || !strings.Contains(out, "18080") {
		t.Fatalf("expected forward entries in show output, got: %s", out)
	}

	cmd = NewRootCommand()
	cmd.SetArgs([]string{"bundle", "delete", "daily"})
	if _, err := captureStdout(func() error { return cmd.Execute() }); err != nil {
		t.Fatalf("delete bundle: %v", err)
	}

	if _, err := bundle.Get("daily"); err == nil {
		t.Fatal("expected bundle to be gone after delete")
	}
}

func TestBundleCreateRequiresDestinationAndPorts(t *testing.T) {
	setupSSHConfigForCLI(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"bundle", "create", "x", "--remote-port", "80"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without --destination")
	}
}

func TestListAddAppendsHostBlock(t *testing.T) {
	setupSSHConfigForCLI(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"list", "add", "dbhost", "--hostname", "db1.internal", "--user", "deploy", "--port", "2222"})
	if _, err := captureStdout(func() error { return cmd.Execute() }); err != nil {
		t.Fatalf("list add: %v", err)
	}

	cmd = NewRootCommand()
	cmd.SetArgs([]string{"list"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "dbhost") || !strings.Contains(out, "db1.internal") {
		t.Fatalf("expected newly added host in list output, got: %s", out)
	}
}

func TestListAddRejectsDuplicateAlias(t *testing.T) {
	setupSSHConfigForCLI(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"list", "add", "api"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error adding an alias that already exists in ~/.ssh/config")
	}
}

func TestSecurityAuditRedactsHomePathsInTableOutput(t *testing.T) {
	setupSSHConfigForCLI(t)
	home := os.Getenv("HOME")

	sshDir := filepath.Join(home, ".ssh")
	cfgPath := filepath.Join(sshDir, "config")
	if err := os.Chmod(cfgPath, 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"security", "audit"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("security audit: %v", err)
	}
	if strings.Contains(out, home) {
		t.Fatalf("expected home directory to be redacted from table output, got: %s", out)
	}
	if !strings.Contains(out, "~") {
		t.Fatalf("expected redacted path marker in output, got: %s", out)
	}
}

func TestDoctorJSONOutput(t *testing.T) {
	setupSSHConfigForCLI(t)
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"doctor", "--json"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("doctor json: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("invalid doctor json: %v", err)
	}
	if _, ok := payload["issues"]; !ok {
		t.Fatalf("expected issues key in doctor output: %s", out)
	}
}

func TestListRecentOrdering(t *testing.T) {
	setupSSHConfigForCLI(t)
	home := os.Getenv("HOME")
	cfg := strings.Join([]string{
		"Host api",
		"  HostName 127.0.0.1",
		"Host db",
		"  HostName 127.0.0.1",
		"",
	}, "\n")
	if err := os.WriteFile(filepath.Join(home, ".ssh", "config"), []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := history.Touch("db"); err != nil {
		t.Fatal(err)
	}
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"list", "--recent"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 3 {
		t.Fatalf("unexpected output: %s", out)
	}
	if !strings.Contains(lines[1], "db") {
		t.Fatalf("expected db first after header, got: %s", lines[1])
	}
}

func TestForwardListShowsPersistedForwards(t *testing.T) {
	setupSSHConfigForCLI(t)
	if err := persistence.Save("deploy@db1", []model.PersistedForward{
		{RemotePort: 5432, LocalPort: 15432},
	}); err != nil {
		t.Fatalf("save forwards: %v", err)
	}

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"forward", "list", "deploy@db1"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("forward list: %v", err)
	}
	if !strings.Contains(out, "5432") || !strings.Contains(out, "15432") {
		t.Fatalf("expected forward entry in output, got: %s", out)
	}
}

func TestForwardEventsJSONOutput(t *testing.T) {
	setupSSHConfigForCLI(t)
	store := events.NewStore()
	if err := store.Append(events.Event{
		Destination: "deploy@db1",
		RemotePort:  8080,
		LocalPort:   18080,
		EventType:   "started",
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"forward", "events", "--destination", "deploy@db1", "--json"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("events json: %v", err)
	}
	var payload []map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("invalid events json: %v", err)
	}
	if len(payload) != 1 {
		t.Fatalf("expected 1 event, got %d", len(payload))
	}
	if payload[0]["event_type"] != "started" {
		t.Fatalf("unexpected event: %v", payload[0]["event_type"])
	}
}

func captureStdout(fn func() error) (string, error) {
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}
	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = orig
	b, readErr := io.ReadAll(r)
	if readErr != nil {
		return "", readErr
	}
	return string(b), runErr
}

func setupSSHConfigForCLI(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	sshDir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(sshDir, 0o700); err != nil {
		t.Fatal(err)
	}
	cfg := strings.Join([]string{
		"Host api",
		"  HostName 127.0.0.1",
		"  User test",
		"  Port 22",
		"",
	}, "\n")
	if err := os.WriteFile(filepath.Join(sshDir, "config"), []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
}
