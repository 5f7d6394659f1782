package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sshfwd/sshfwd/internal/appconfig"
)

func TestRunLocalAudit_FindsInsecurePolicy(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := appconfig.Default()
	cfg.Security.BindPolicy = appconfig.BindPolicyAllowPublic
	cfg.Security.HostKeyPolicy = appconfig.HostKeyPolicyInsecure
	if err := appconfig.Save(cfg); err != nil {
		t.Fatal(err)
	}

	report, err := RunLocalAudit()
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Findings) == 0 {
		t.Fatal("expected findings for insecure configuration")
	}
	if !report.HasHigh() {
		t.Fatal("expected high severity finding for insecure host key policy")
	}
}

func TestRedactMessage(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	msg := home + "/.ssh/id_ed25519 permission denied"
	got := RedactMessage(msg)
	if got == msg {
		t.Fatalf("expected message to be redacted")
	}
}

func TestRunLocalAudit_FindsLooseSshfwdDirPermissions(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := filepath.Join(home, ".sshfwd")
	if err := os.MkdirAll(dir, 0o777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "forwards.json"), []byte("{}"), 0o666); err != nil {
		t.Fatal(err)
	}

	report, err := RunLocalAudit()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range report.Findings {
		if f.Target == dir || f.Target == filepath.Join(dir, "forwards.json") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a finding for loose .sshfwd permissions, got: %+v", report.Findings)
	}
}

func TestRunLocalAudit_ConfigLoadErrorIsClassified(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfgDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgDir)

	sshfwdDir := filepath.Join(cfgDir, "sshfwd")
	if err := os.MkdirAll(sshfwdDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sshfwdDir, "config.yaml"), []byte(": not valid yaml :::"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := RunLocalAudit()
	if err == nil {
		t.Fatal("expected RunLocalAudit to fail on unparseable config")
	}
	var ce *ClassifiedError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a *ClassifiedError, got %T: %v", err, err)
	}
	if UserMessage(err, false) != "failed to load sshfwd configuration" {
		t.Fatalf("UserMessage = %q, want a redaction-safe summary", UserMessage(err, false))
	}
	if DebugMessage(err) == "" || DebugMessage(err) == UserMessage(err, false) {
		t.Fatalf("DebugMessage should carry the underlying parse error, got %q", DebugMessage(err))
	}
}

func TestRunLocalAudit_FindsLoosePermissions(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	sshDir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(sshDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(sshDir, "config")
	if err := os.WriteFile(cfgPath, []byte("Host test\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := RunLocalAudit()
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Findings) == 0 {
		t.Fatal("expected permission findings")
	}
}
