package agentdeploy

import "testing"

func TestNormalizeOS(t *testing.T) {
	cases := map[string]string{"Linux": "linux", "Darwin": "darwin", "FreeBSD": "freebsd"}
	for in, want := range cases {
		if got := normalizeOS(in); got != want {
			t.Errorf("normalizeOS(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeArch(t *testing.T) {
	cases := map[string]string{
		"x86_64":  "x86_64",
		"amd64":   "x86_64",
		"aarch64": "aarch64",
		"arm64":   "aarch64",
		"armv7l":  "armv7l",
	}
	for in, want := range cases {
		if got := normalizeArch(in); got != want {
			t.Errorf("normalizeArch(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPlatformTargetDir(t *testing.T) {
	p := Platform{OS: "linux", Arch: "x86_64"}
	if got, want := p.TargetDir(), "linux-x86_64"; got != want {
		t.Errorf("TargetDir() = %q, want %q", got, want)
	}
}

func TestSha256Hex(t *testing.T) {
	got := sha256Hex([]byte("hello"))
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("sha256Hex(\"hello\") = %q, want %q", got, want)
	}
}

func TestIsHex(t *testing.T) {
	if !isHex("deadbeef0123456789") {
		t.Error("isHex should accept hex digits")
	}
	if isHex("not-hex!") {
		t.Error("isHex should reject non-hex characters")
	}
}
