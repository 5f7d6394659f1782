// Package socktable parses the Linux kernel's /proc/net/tcp and
// /proc/net/tcp6 socket tables into listening-socket records. The format is
// undocumented outside the kernel source, so the field layout and the hex
// address encoding are pinned down precisely here and exercised by table
// tests built from a real kernel dump.
package socktable

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/sshfwd/sshfwd/internal/model"
)

// listenState is the value of the "st" field in /proc/net/tcp for a socket
// in LISTEN state. Other states (ESTABLISHED, TIME_WAIT, ...) are ignored.
const listenState = "0A"

// Entry is a single parsed row from /proc/net/tcp or /proc/net/tcp6. Port
// attribution to a process happens later, keyed by Inode.
type Entry struct {
	Protocol  model.Protocol
	LocalAddr string
	Port      uint16
	UID       uint32
	Inode     uint64
}

// Parse reads the content of /proc/net/tcp or /proc/net/tcp6 (passed as a
// string for testability) and returns the entries in LISTEN state.
func Parse(content string, protocol model.Protocol) []Entry {
	var entries []Entry
	lines := strings.Split(content, "\n")
	if len(lines) > 0 {
		lines = lines[1:] // header row
	}

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 12 {
			continue
		}

		if fields[3] != listenState {
			continue
		}

		addr, port, ok := parseAddress(fields[1], protocol)
		if !ok {
			continue
		}

		uid, err := strconv.ParseUint(fields[7], 10, 32)
		if err != nil {
			continue
		}

		inode, err := strconv.ParseUint(fields[9], 10, 64)
		if err != nil {
			continue
		}

		entries = append(entries, Entry{
			Protocol:  protocol,
			LocalAddr: addr,
			Port:      port,
			UID:       uint32(uid),
			Inode:     inode,
		})
	}

	return entries
}

// parseAddress decodes a "hexaddr:hexport" pair as found in the
// local_address column of /proc/net/tcp[6].
func parseAddress(addrPort string, protocol model.Protocol) (string, uint16, bool) {
	addrHex, portHex, ok := strings.Cut(addrPort, ":")
	if !ok {
		return "", 0, false
	}

	port, err := strconv.ParseUint(portHex, 16, 16)
	if err != nil {
		return "", 0, false
	}

	switch protocol {
	case model.ProtocolTCP:
		if len(addrHex) != 8 {
			return "", 0, false
		}
		raw, err := strconv.ParseUint(addrHex, 16, 32)
		if err != nil {
			return "", 0, false
		}
		// /proc/net/tcp stores the address in host byte order, which on the
		// little-endian platforms Go supports means the octets are reversed
		// relative to network byte order.
		v := uint32(raw)
		ip := net.IPv4(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
		return ip.String(), uint16(port), true
	case model.ProtocolTCP6:
		addr, ok := parseIPv6Hex(addrHex)
		if !ok {
			return "", 0, false
		}
		return addr, uint16(port), true
	default:
		return "", 0, false
	}
}

// parseIPv6Hex decodes the 32 hex character IPv6 address format used by
// /proc/net/tcp6: four 32-bit little-endian words, concatenated.
func parseIPv6Hex(hex string) (string, bool) {
	if len(hex) != 32 {
		return "", false
	}

	var octets [16]byte
	for i := 0; i < 4; i++ {
		word, err := strconv.ParseUint(hex[i*8:(i+1)*8], 16, 32)
		if err != nil {
			return "", false
		}
		v := uint32(word)
		octets[i*4+0] = byte(v)
		octets[i*4+1] = byte(v >> 8)
		octets[i*4+2] = byte(v >> 16)
		octets[i*4+3] = byte(v >> 24)
	}

	ip := net.IP(octets[:])
	// net.IP.String prints an IPv4-mapped address as bare dotted IPv4; keep
	// the ::ffff: prefix so the tcp6 form stays distinguishable and Dedup's
	// normalizeAddr folds it onto the matching tcp entry.
	if v4 := ip.To4(); v4 != nil {
		return "::ffff:" + v4.String(), true
	}
	return ip.String(), true
}

// normalizeAddr maps an IPv4-mapped IPv6 address (::ffff:x.x.x.x) to its
// plain IPv4 form, so dedup can recognize the same socket reported under
// both protocol tables.
func normalizeAddr(addr string) string {
	if v4, ok := strings.CutPrefix(addr, "::ffff:"); ok {
		return v4
	}
	return addr
}

// Dedup removes entries that refer to the same (port, normalized address)
// pair, keeping the first occurrence. This collapses IPv4-mapped IPv6
// listeners that the kernel also reports in the plain tcp table.
func Dedup(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		key := fmt.Sprintf("%d|%s", e.Port, normalizeAddr(e.LocalAddr))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
