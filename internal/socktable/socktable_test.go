package socktable

import (
	"testing"

	"github.com/sshfwd/sshfwd/internal/model"
)

const sampleTCP = `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 0100007F:0539 00000000:0000 0A 00000000:00000000 00:00000000 00000000   108        0 12345 1 0000000000000000 100 0 0 10 0
   1: 00000000:0050 00000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 67890 1 0000000000000000 100 0 0 10 0
   2: 0100007F:1F90 AC10000A:D904 01 00000000:00000000 00:00000000 00000000  1000        0 11111 1 0000000000000000 100 0 0 10 0
`

const sampleTCP6 = `  sl  local_address                         remote_address                        st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 00000000000000000000000000000000:1F90 00000000000000000000000000000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 22222 1 0000000000000000 100 0 0 10 0
   1: 00000000000000000000000001000000:0539 00000000000000000000000000000000:0000 0A 00000000:00000000 00:00000000 00000000   108        0 33333 1 0000000000000000 100 0 0 10 0
`

func TestParseTCPListenEntries(t *testing.T) {
	entries := Parse(sampleTCP, model.ProtocolTCP)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	if entries[0].LocalAddr != "127.0.0.1" || entries[0].Port != 1337 || entries[0].UID != 108 || entries[0].Inode != 12345 {
		t.Errorf("entries[0] = %+v, unexpected", entries[0])
	}
	if entries[1].LocalAddr != "0.0.0.0" || entries[1].Port != 80 || entries[1].UID != 0 || entries[1].Inode != 67890 {
		t.Errorf("entries[1] = %+v, unexpected", entries[1])
	}
}

func TestParseTCP6ListenEntries(t *testing.T) {
	entries := Parse(sampleTCP6, model.ProtocolTCP6)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].LocalAddr != "::" || entries[0].Port != 8080 || entries[0].UID != 1000 || entries[0].Inode != 22222 {
		t.Errorf("entries[0] = %+v, unexpected", entries[0])
	}
	if entries[1].LocalAddr != "::1" || entries[1].Port != 1337 {
		t.Errorf("entries[1] = %+v, unexpected", entries[1])
	}
}

func TestParseIPv4Mapped(t *testing.T) {
	addr, ok := parseIPv6Hex("0000000000000000FFFF00000100007F")
	if !ok {
		t.Fatal("parseIPv6Hex returned ok=false")
	}
	if addr != "::ffff:127.0.0.1" {
		t.Errorf("addr = %q, want ::ffff:127.0.0.1", addr)
	}
}

func TestDedupKeepsDifferentBindAddresses(t *testing.T) {
	entries := []Entry{
		{Protocol: model.ProtocolTCP, LocalAddr: "0.0.0.0", Port: 8080, UID: 1000, Inode: 111},
		{Protocol: model.ProtocolTCP6, LocalAddr: "::", Port: 8080, UID: 1000, Inode: 222},
	}
	deduped := Dedup(entries)
	if len(deduped) != 2 {
		t.Fatalf("got %d entries, want 2", len(deduped))
	}
}

func TestDedupRemovesIPv4MappedDuplicate(t *testing.T) {
	entries := []Entry{
		{Protocol: model.ProtocolTCP, LocalAddr: "127.0.0.1", Port: 1337, UID: 108, Inode: 111},
		{Protocol: model.ProtocolTCP6, LocalAddr: "::ffff:127.0.0.1", Port: 1337, UID: 108, Inode: 222},
	}
	deduped := Dedup(entries)
	if len(deduped) != 1 {
		t.Fatalf("got %d entries, want 1", len(deduped))
	}
}

func TestNormalizeAddrStripsIPv4Mapped(t *testing.T) {
	cases := map[string]string{
		"::ffff:192.168.1.1": "192.168.1.1",
		"127.0.0.1":          "127.0.0.1",
		"::":                 "::",
	}
	for in, want := range cases {
		if got := normalizeAddr(in); got != want {
			t.Errorf("normalizeAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseEmptyContent(t *testing.T) {
	if entries := Parse("", model.ProtocolTCP); len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestParseHeaderOnly(t *testing.T) {
	content := "  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode\n"
	if entries := Parse(content, model.ProtocolTCP); len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestIPv6LoopbackEncoding(t *testing.T) {
	addr, ok := parseIPv6Hex("00000000000000000000000001000000")
	if !ok || addr != "::1" {
		t.Errorf("addr = %q, ok=%v, want ::1, true", addr, ok)
	}
}

func TestIPv6AllZeros(t *testing.T) {
	addr, ok := parseIPv6Hex("00000000000000000000000000000000")
	if !ok || addr != "::" {
		t.Errorf("addr = %q, ok=%v, want ::, true", addr, ok)
	}
}

func TestParseAddressIPv4(t *testing.T) {
	addr, port, ok := parseAddress("0100007F:0539", model.ProtocolTCP)
	if !ok || addr != "127.0.0.1" || port != 1337 {
		t.Errorf("addr=%q port=%d ok=%v, want 127.0.0.1 1337 true", addr, port, ok)
	}
}

func TestParseAddressIPv4AllZeros(t *testing.T) {
	addr, port, ok := parseAddress("00000000:0050", model.ProtocolTCP)
	if !ok || addr != "0.0.0.0" || port != 80 {
		t.Errorf("addr=%q port=%d ok=%v, want 0.0.0.0 80 true", addr, port, ok)
	}
}
