//go:build linux

// Package agentrt implements the remote discovery agent: the process
// sshfwd deploys and spawns over SSH that repeatedly scans the host's
// listening TCP sockets and attributes them to owning processes, emitting
// one JSON line per scan on stdout.
package agentrt

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sshfwd/sshfwd/internal/model"
	"github.com/sshfwd/sshfwd/internal/socktable"
)

// LinuxScanner reads /proc/net/tcp[6] and /proc/<pid>/* to build scan
// snapshots. It is the full-fidelity Scanner: listening ports plus owning
// process attribution. See scanner_darwin.go for the macOS equivalent,
// which reports an empty port list rather than attempting this.
type LinuxScanner struct {
	scanIndex uint64
	version   string
}

// NewLinuxScanner returns a scanner that reports agentVersion in every
// ScanRecord it produces.
func NewLinuxScanner(agentVersion string) *LinuxScanner {
	return &LinuxScanner{version: agentVersion}
}

// NewPlatformScanner returns the Scanner for the platform sshfwd-agent was
// built for. On linux, that's the full /proc-backed LinuxScanner.
func NewPlatformScanner(agentVersion string) Scanner {
	return NewLinuxScanner(agentVersion)
}

func (s *LinuxScanner) Scan() (*model.ScanRecord, *model.AgentError) {
	var warnings []string

	tcpContent, err := os.ReadFile("/proc/net/tcp")
	if err != nil {
		return nil, &model.AgentError{
			Kind:    model.AgentErrorScanFailed,
			Message: fmt.Sprintf("failed to read /proc/net/tcp: %v", err),
		}
	}
	tcp6Content, _ := os.ReadFile("/proc/net/tcp6") // optional: IPv6 may be disabled

	entries := socktable.Parse(string(tcpContent), model.ProtocolTCP)
	entries = append(entries, socktable.Parse(string(tcp6Content), model.ProtocolTCP6)...)
	entries = socktable.Dedup(entries)

	inodeUID := make(map[uint64]uint32, len(entries))
	for _, e := range entries {
		inodeUID[e.Inode] = e.UID
	}

	inodeToProcess := mapInodesToProcesses(inodeUID, &warnings)

	ports := make([]model.ListeningPort, 0, len(entries))
	for _, e := range entries {
		var proc *model.ProcessInfo
		if p, ok := inodeToProcess[e.Inode]; ok {
			p := p
			proc = &p
		}
		ports = append(ports, model.ListeningPort{
			Protocol:  e.Protocol,
			LocalAddr: e.LocalAddr,
			Port:      e.Port,
			Process:   proc,
		})
	}

	hostname, _ := os.Hostname()
	uid := os.Getuid()
	username := lookupUsername(uid)

	record := &model.ScanRecord{
		AgentVersion: s.version,
		Hostname:     strings.TrimSpace(hostname),
		Username:     username,
		IsRoot:       uid == 0,
		Ports:        ports,
		Warnings:     warnings,
		ScanIndex:    s.scanIndex,
	}
	s.scanIndex++
	return record, nil
}

// mapInodesToProcesses walks /proc/<pid>/fd, matching socket inodes back to
// the owning process. Only processes whose UID appears in inodeUID's values
// are considered, to avoid statting every process on a busy host.
func mapInodesToProcesses(inodeUID map[uint64]uint32, warnings *[]string) map[uint64]model.ProcessInfo {
	result := make(map[uint64]model.ProcessInfo)

	targetUIDs := make(map[uint32]struct{}, len(inodeUID))
	targetInodes := make(map[uint64]struct{}, len(inodeUID))
	for inode, uid := range inodeUID {
		targetUIDs[uid] = struct{}{}
		targetInodes[inode] = struct{}{}
	}

	procDir, err := os.ReadDir("/proc")
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("cannot read /proc: %v", err))
		return result
	}

	for _, entry := range procDir {
		pid, err := strconv.ParseUint(entry.Name(), 10, 32)
		if err != nil {
			continue
		}

		procUID, ok := readUIDFromStatus(fmt.Sprintf("/proc/%d/status", pid))
		if !ok {
			continue
		}
		if _, want := targetUIDs[procUID]; !want {
			continue
		}

		fdPath := fmt.Sprintf("/proc/%d/fd", pid)
		fdEntries, err := os.ReadDir(fdPath)
		if err != nil {
			if os.IsPermission(err) {
				*warnings = append(*warnings, fmt.Sprintf("permission denied reading /proc/%d/fd", pid))
			}
			continue
		}

		for _, fd := range fdEntries {
			link, err := os.Readlink(filepath.Join(fdPath, fd.Name()))
			if err != nil {
				continue
			}
			inodeStr, ok := strings.CutPrefix(link, "socket:[")
			if !ok {
				continue
			}
			inodeStr, ok = strings.CutSuffix(inodeStr, "]")
			if !ok {
				continue
			}
			inode, err := strconv.ParseUint(inodeStr, 10, 64)
			if err != nil {
				continue
			}
			if _, want := targetInodes[inode]; !want {
				continue
			}
			if _, already := result[inode]; already {
				continue
			}
			result[inode] = readProcessInfo(uint32(pid), procUID)
		}
	}

	return result
}

func readUIDFromStatus(path string) (uint32, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if rest, ok := strings.CutPrefix(line, "Uid:"); ok {
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				return 0, false
			}
			uid, err := strconv.ParseUint(fields[0], 10, 32)
			if err != nil {
				return 0, false
			}
			return uint32(uid), true
		}
	}
	return 0, false
}

func readProcessInfo(pid, uid uint32) model.ProcessInfo {
	name, _ := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	cmdlineRaw, _ := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	cmdline := strings.TrimSpace(strings.ReplaceAll(string(cmdlineRaw), "\x00", " "))

	return model.ProcessInfo{
		PID:     pid,
		Name:    strings.TrimSpace(string(name)),
		Cmdline: cmdline,
		UID:     uid,
	}
}

func lookupUsername(uid int) string {
	content, err := os.ReadFile("/etc/passwd")
	if err == nil {
		for _, line := range strings.Split(string(content), "\n") {
			fields := strings.Split(line, ":")
			if len(fields) < 3 {
				continue
			}
			fileUID, err := strconv.Atoi(fields[2])
			if err == nil && fileUID == uid {
				return fields[0]
			}
		}
	}
	return fmt.Sprintf("uid:%d", uid)
}
