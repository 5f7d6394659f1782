//go:build darwin

package agentrt

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/sshfwd/sshfwd/internal/model"
)

// DarwinScanner is the macOS stand-in for LinuxScanner. sshfwd-agent's port
// attribution walks /proc, which doesn't exist on macOS, and a real
// netstat/lsof-backed scanner isn't implemented yet; DarwinScanner reports
// an empty port list with a warning rather than failing outright, so the
// dashboard still connects and shows "no ports discovered" instead of
// erroring the whole session over one platform gap.
type DarwinScanner struct {
	scanIndex uint64
	version   string
}

// NewDarwinScanner returns a scanner that reports agentVersion in every
// ScanRecord it produces.
func NewDarwinScanner(agentVersion string) *DarwinScanner {
	return &DarwinScanner{version: agentVersion}
}

// NewPlatformScanner returns the Scanner for the platform sshfwd-agent was
// built for. On darwin, that's DarwinScanner, which always reports zero
// ports alongside a warning explaining why.
func NewPlatformScanner(agentVersion string) Scanner {
	return NewDarwinScanner(agentVersion)
}

func (s *DarwinScanner) Scan() (*model.ScanRecord, *model.AgentError) {
	hostname, _ := os.Hostname()
	uid := os.Getuid()

	record := &model.ScanRecord{
		AgentVersion: s.version,
		Hostname:     strings.TrimSpace(hostname),
		Username:     lookupDarwinUsername(uid),
		IsRoot:       uid == 0,
		Ports:        nil,
		Warnings:     []string{"port discovery is not implemented on macOS; no listening ports will be reported"},
		ScanIndex:    s.scanIndex,
	}
	s.scanIndex++
	return record, nil
}

func lookupDarwinUsername(uid int) string {
	if u, err := user.LookupId(strconv.Itoa(uid)); err == nil {
		return u.Username
	}
	return fmt.Sprintf("uid:%d", uid)
}
