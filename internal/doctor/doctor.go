// Package doctor runs local diagnostics for sshfwd: SSH config health,
// duplicate local binds across destinations, the local security audit, and
// the readiness of the files sshfwd needs at connect time (agent binary,
// forwards.json, the destination's own config block).
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/sshfwd/sshfwd/internal/agentdeploy"
	"github.com/sshfwd/sshfwd/internal/model"
	"github.com/sshfwd/sshfwd/internal/persistence"
	"github.com/sshfwd/sshfwd/internal/security"
	"github.com/sshfwd/sshfwd/internal/sshconfig"
	"github.com/sshfwd/sshfwd/internal/util"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Issue struct {
	Severity       Severity `json:"severity"`
	Check          string   `json:"check"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

// Run executes local diagnostics for sshfwd. destination, if non-empty, is
// checked specifically (identity file reachability for that destination's
// resolved config); an empty destination skips that one check.
func Run(destination string) (Report, error) {
	var issues []Issue

	res, err := sshconfig.ParseDefault()
	if err == nil {
		for _, w := range res.Warnings {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "config-warning",
				Target:         "~/.ssh/config",
				Message:        w,
				Recommendation: "fix malformed/unsupported SSH config directives",
			})
		}
		issues = append(issues, duplicateBindIssues(res.Hosts)...)
	}

	issues = append(issues, agentBinaryIssues()...)
	issues = append(issues, forwardsFileIssues()...)

	if destination != "" {
		issues = append(issues, destinationConfigIssues(destination)...)
	}

	if audit, err := security.RunLocalAudit(); err == nil {
		for _, f := range audit.Findings {
			sev := SeverityLow
			if f.Severity == security.SeverityMedium {
				sev = SeverityMedium
			}
			if f.Severity == security.SeverityHigh {
				sev = SeverityHigh
			}
			issues = append(issues, Issue{
				Severity:       sev,
				Check:          "security-audit",
				Target:         f.Target,
				Message:        f.Message,
				Recommendation: f.Recommendation,
			})
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		ri := severityRank(issues[i].Severity)
		rj := severityRank(issues[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if issues[i].Check != issues[j].Check {
			return issues[i].Check < issues[j].Check
		}
		if issues[i].Target != issues[j].Target {
			return issues[i].Target < issues[j].Target
		}
		return issues[i].Message < issues[j].Message
	})
	return Report{Issues: issues}, nil
}

// agentBinaryIssues flags a missing agent binary for the local platform
// before a connect attempt has to discover the gap mid-deploy.
func agentBinaryIssues() []Issue {
	platform := agentdeploy.Platform{OS: runtime.GOOS, Arch: normalizeLocalArch(runtime.GOARCH)}
	if agentdeploy.HasAgentBinary(platform) {
		return nil
	}
	return []Issue{{
		Severity:       SeverityMedium,
		Check:          "agent-binary",
		Target:         platform.TargetDir(),
		Message:        fmt.Sprintf("no embedded or prebuilt discovery agent for %s", platform.TargetDir()),
		Recommendation: "build sshfwd-agent for this platform or pass --agent-path to connect",
	}}
}

// forwardsFileIssues flags a forwards.json that exists but fails to parse,
// which persistence.Load otherwise silently degrades to "nothing
// remembered" rather than surfacing.
func forwardsFileIssues() []Issue {
	path := persistence.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var probe map[string][]model.PersistedForward
	if err := json.Unmarshal(data, &probe); err != nil {
		return []Issue{{
			Severity:       SeverityLow,
			Check:          "forwards-file",
			Target:         path,
			Message:        fmt.Sprintf("forwards.json is not valid JSON: %v", err),
			Recommendation: "remove or fix the file; sshfwd will recreate it as forwards are started",
		}}
	}
	return nil
}

// destinationConfigIssues checks that the identity files resolved for
// destination actually exist and are readable.
func destinationConfigIssues(destination string) []Issue {
	resolved, err := sshconfig.ResolveHost(destination)
	if err != nil {
		return []Issue{{
			Severity:       SeverityMedium,
			Check:          "destination-config",
			Target:         destination,
			Message:        err.Error(),
			Recommendation: "check ~/.ssh/config for a malformed Host block matching this destination",
		}}
	}
	var issues []Issue
	for _, id := range resolved.IdentityFiles {
		if _, err := os.Stat(id); err != nil {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "destination-config",
				Target:         id,
				Message:        fmt.Sprintf("identity file for %s is not readable: %v", destination, err),
				Recommendation: "fix the IdentityFile path or permissions in ~/.ssh/config",
			})
		}
	}
	return issues
}

func duplicateBindIssues(hosts []model.HostEntry) []Issue {
	type bindRef struct {
		host string
	}
	seen := map[string][]bindRef{}
	for _, h := range hosts {
		for _, fwd := range h.Forwards {
			key := fmt.Sprintf("%s:%d", util.NormalizeAddr(fwd.LocalAddr, "127.0.0.1"), fwd.LocalPort)
			seen[key] = append(seen[key], bindRef{host: h.Alias})
		}
	}
	var issues []Issue
	for bind, refs := range seen {
		if len(refs) < 2 {
			continue
		}
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "duplicate-local-bind",
			Target:         bind,
			Message:        fmt.Sprintf("local bind is configured by %d hosts", len(refs)),
			Recommendation: "use unique local ports per host/forward to avoid startup conflicts",
		})
	}
	return issues
}

// normalizeLocalArch maps runtime.GOARCH to agentdeploy's platform
// vocabulary, mirroring the normalization uname output gets on the remote
// side.
func normalizeLocalArch(goarch string) string {
	switch goarch {
	case "arm64":
		return "aarch64"
	case "amd64":
		return "x86_64"
	default:
		return goarch
	}
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}
