package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultSecurityValues(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Security.BindPolicy != BindPolicyLoopbackOnly {
		t.Fatalf("unexpected bind policy: %s", cfg.Security.BindPolicy)
	}
	if cfg.Security.HostKeyPolicy != HostKeyPolicyStrict {
		t.Fatalf("unexpected host key policy: %s", cfg.Security.HostKeyPolicy)
	}
	if !cfg.Security.RedactErrors {
		t.Fatal("expected redact_errors default true")
	}
}

func TestLoad_NormalizesSecurityPolicies(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir := filepath.Join(xdg, "sshfwd")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	content := []byte("security:\n  bind_policy: invalid\n  host_key_policy: invalid\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Security.BindPolicy != BindPolicyLoopbackOnly {
		t.Fatalf("expected normalized bind policy, got %s", cfg.Security.BindPolicy)
	}
	if cfg.Security.HostKeyPolicy != HostKeyPolicyStrict {
		t.Fatalf("expected normalized host key policy, got %s", cfg.Security.HostKeyPolicy)
	}
}

func TestLoad_AllowPublicBindPolicyRoundTrips(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir := filepath.Join(xdg, "sshfwd")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	content := []byte("security:\n  bind_policy: allow_public\n  host_key_policy: insecure\n  redact_errors: false\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Security.BindPolicy != BindPolicyAllowPublic {
		t.Fatalf("expected allow_public bind policy, got %s", cfg.Security.BindPolicy)
	}
	if cfg.Security.HostKeyPolicy != HostKeyPolicyInsecure {
		t.Fatalf("expected insecure host key policy, got %s", cfg.Security.HostKeyPolicy)
	}
	if cfg.Security.RedactErrors {
		t.Fatal("expected redact_errors false when explicitly disabled")
	}
}

func TestLoad_DiscoveryAgentPathDefaultsEmpty(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Discovery.AgentPath != "" {
		t.Fatalf("expected empty default agent path, got %q", cfg.Discovery.AgentPath)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg := Default()
	cfg.Discovery.AgentPath = "/tmp/sshfwd-agent"
	if err := Save(cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Discovery.AgentPath != "/tmp/sshfwd-agent" {
		t.Fatalf("agent path did not round-trip: %+v", loaded)
	}
}
