// Package cli provides the command-line interface for sshfwd, built with Cobra.
//
// The CLI serves as one of two user-facing entry points (the other being the
// TUI dashboard in internal/ui). When invoked with a destination argument or
// no arguments at all, the root command launches the Bubble Tea dashboard
// (prompting for a destination first if none was given). Subcommands cover
// the non-interactive surface: listing known SSH hosts, diagnostics,
// forward/event inspection, bundles, security auditing, and a standalone
// agent runner for local testing.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sshfwd/sshfwd/internal/bundle"
	"github.com/sshfwd/sshfwd/internal/doctor"
	"github.com/sshfwd/sshfwd/internal/history"
	"github.com/sshfwd/sshfwd/internal/model"
	"github.com/sshfwd/sshfwd/internal/security"
	"github.com/sshfwd/sshfwd/internal/sshconfig"
	"github.com/sshfwd/sshfwd/internal/ui"
	"github.com/sshfwd/sshfwd/internal/util"
)

// NewRootCommand creates and returns the top-level Cobra command for sshfwd.
//
// The root command takes an optional destination positional argument. With
// one, it connects straight to that [user@]host. Without one, it shows the
// connect prompt (internal/ui.RunConnectPrompt) seeded with recently used
// destinations before launching the dashboard.
func NewRootCommand() *cobra.Command {
	var agentPath string
	var noNotify bool

	root := &cobra.Command{
		Use:   "sshfwd [destination]",
		Short: "Discover and forward remote listening ports over SSH",
		Args:  cobra.MaximumNArgs(1),
		// RunE is used (instead of Run) so errors can be propagated to main()
		// and result in a non-zero exit code.
		RunE: func(cmd *cobra.Command, args []string) error {
			destination := ""
			if len(args) == 1 {
				destination = args[0]
			}
			if destination == "" {
				picked, err := ui.RunConnectPrompt()
				if err != nil {
					if err == ui.ErrConnectCancelled {
						return nil
					}
					return err
				}
				destination = picked
			}
			return ui.Run(destination, agentPath, noNotify)
		},
	}
	root.PersistentFlags().StringVar(&agentPath, "agent-path", "", "override discovery agent binary resolution with a local file")
	root.PersistentFlags().BoolVar(&noNotify, "no-notify", false, "disable desktop notifications for port changes")

	root.AddCommand(newListCmd())
	root.AddCommand(newForwardCmd())
	root.AddCommand(newBundleCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newSecurityCmd())
	root.AddCommand(newAgentCmd())
	return root
}

// newListCmd creates the "list" subcommand, which parses the user's
// ~/.ssh/config and prints a formatted table of all discovered concrete
// host entries, the same way the teacher's "list" command did — this part
// of the domain (browsing SSH config aliases) is orthogonal to the
// port/forward dashboard and kept as-is.
//
// Output columns:
//   - ALIAS:    the SSH host alias (what you'd type in "ssh <alias>")
//   - HOSTNAME: the resolved hostname or IP (from the HostName directive)
//   - PORT:     the SSH port (defaults to 22)
//   - USER:     the SSH user (shown as "-" if not set)
//   - FORWARDS: the count of LocalForward rules configured for this host
func newListCmd() *cobra.Command {
	var recentFirst bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List parsed hosts from ~/.ssh/config",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := sshconfig.ParseDefault()
			if err != nil {
				return err
			}
			hosts := res.Hosts
			if recentFirst {
				last, _ := history.LastUsed()
				hosts = history.SortHostsRecent(hosts, last)
			}

			fmt.Printf("%-24s %-24s %-8s %-16s %s\n", "ALIAS", "HOSTNAME", "PORT", "USER", "FORWARDS")
			for _, h := range hosts {
				fmt.Printf("%-24s %-24s %-8d %-16s %d\n", h.Alias, h.DisplayTarget(), h.Port, util.EmptyDash(h.User), len(h.Forwards))
			}

			if len(res.Warnings) > 0 {
				fmt.Fprintln(os.Stderr, "warnings:")
				for _, w := range res.Warnings {
					fmt.Fprintf(os.Stderr, "  - %s\n", w)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&recentFirst, "recent", false, "sort hosts by recent successful use")
	cmd.AddCommand(newListAddCmd())
	return cmd
}

// newListAddCmd creates the "list add" subcommand, which appends a new Host
// block to ~/.ssh/config so a destination you've been typing out by hand
// (e.g. "deploy@10.0.4.12 -p 2222") becomes a reusable alias for "sshfwd
// <alias>", list, doctor, and bundle create alike.
func newListAddCmd() *cobra.Command {
	var hostname string
	var user string
	var port int
	var identityFile string
	var proxyJump string

	cmd := &cobra.Command{
		Use:   "add <alias>",
		Short: "Add a Host block to ~/.ssh/config for a reusable alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias := args[0]
			if err := sshconfig.ValidateAlias(alias); err != nil {
				return err
			}
			entry := model.HostEntry{
				Alias:        alias,
				HostName:     util.DefaultString(hostname, alias),
				User:         user,
				Port:         port,
				IdentityFile: identityFile,
				ProxyJump:    proxyJump,
			}
			if entry.Port == 0 {
				entry.Port = 22
			}
			if err := sshconfig.AppendHostEntry(entry); err != nil {
				return err
			}
			fmt.Printf("added %s to ~/.ssh/config:\n%s", alias, sshconfig.FormatHostBlock(entry))
			return nil
		},
	}
	cmd.Flags().StringVar(&hostname, "hostname", "", "HostName directive (defaults to the alias itself)")
	cmd.Flags().StringVar(&user, "user", "", "User directive")
	cmd.Flags().IntVar(&port, "port", 0, "Port directive (defaults to 22)")
	cmd.Flags().StringVar(&identityFile, "identity-file", "", "IdentityFile directive")
	cmd.Flags().StringVar(&proxyJump, "proxy-jump", "", "ProxyJump directive")
	return cmd
}

func newBundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Manage named groups of forwards for a destination",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved bundles",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := bundle.LoadAll()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println("(no bundles)")
				return nil
			}
			fmt.Printf("%-24s %-24s %s\n", "NAME", "DESTINATION", "ENTRIES")
			for _, b := range all {
				fmt.Printf("%-24s %-24s %d\n", b.Name, b.Destination, len(b.Entries))
			}
			return nil
		},
	}

	var createDestination string
	var createRemotePorts []string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create or replace a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if createDestination == "" {
				return fmt.Errorf("--destination is required")
			}
			if len(createRemotePorts) == 0 {
				return fmt.Errorf("at least one --remote-port is required")
			}
			entries := make([]bundle.Entry, 0, len(createRemotePorts))
			for _, spec := range createRemotePorts {
				entry, err := parseBundlePortSpec(spec)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
			}
			if err := bundle.Create(args[0], createDestination, entries); err != nil {
				return err
			}
			fmt.Printf("saved bundle %s with %d entries\n", args[0], len(entries))
			return nil
		},
	}
	create.Flags().StringVar(&createDestination, "destination", "", "the [user@]host this bundle forwards against")
	create.Flags().StringArrayVar(&createRemotePorts, "remote-port", nil, "remote port to forward, as PORT or REMOTE:LOCAL (repeatable)")

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Show the destination and forwards a bundle will start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := bundle.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("destination: %s\n", def.Destination)
			fmt.Printf("%-12s %s\n", "REMOTE", "LOCAL")
			for _, e := range def.Entries {
				fmt.Printf("%-12d %d\n", e.RemotePort, e.LocalPort)
			}
			fmt.Println("\nconnect with: sshfwd " + def.Destination)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bundle.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted bundle %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, show, del)
	return cmd
}

// parseBundlePortSpec accepts "PORT" (forward at the same local port) or
// "REMOTE:LOCAL".
func parseBundlePortSpec(spec string) (bundle.Entry, error) {
	spec = strings.TrimSpace(spec)
	parts := strings.SplitN(spec, ":", 2)
	remote, err := parsePort(parts[0])
	if err != nil {
		return bundle.Entry{}, fmt.Errorf("invalid remote port in %q: %w", spec, err)
	}
	if len(parts) == 1 {
		return bundle.Entry{RemotePort: remote, LocalPort: remote}, nil
	}
	local, err := parsePort(parts[1])
	if err != nil {
		return bundle.Entry{}, fmt.Errorf("invalid local port in %q: %w", spec, err)
	}
	return bundle.Entry{RemotePort: remote, LocalPort: local}, nil
}

func parsePort(s string) (uint16, error) {
	var p int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &p); err != nil {
		return 0, err
	}
	if p <= 0 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range", p)
	}
	return uint16(p), nil
}

func newSecurityCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "security",
		Short: "Security checks and local posture tools",
	}
	audit := &cobra.Command{
		Use:   "audit",
		Short: "Run a local security audit",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := security.RunLocalAudit()
			if err != nil {
				return fmt.Errorf("%s", security.UserMessage(err, true))
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			if len(report.Findings) == 0 {
				fmt.Println("No security findings.")
				return nil
			}
			// Targets are absolute paths under $HOME; redact them for screen
			// output (JSON output above stays unredacted for tooling).
			fmt.Printf("%-8s %-34s %-36s %s\n", "SEV", "TARGET", "MESSAGE", "RECOMMENDATION")
			for _, f := range report.Findings {
				fmt.Printf("%-8s %-34s %-36s %s\n", strings.ToUpper(string(f.Severity)), security.RedactMessage(f.Target), f.Message, f.Recommendation)
			}
			return nil
		},
	}
	audit.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	cmd.AddCommand(audit)
	return cmd
}

func newDoctorCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor [destination]",
		Short: "Run local diagnostics, optionally scoped to a destination",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			destination := ""
			if len(args) == 1 {
				destination = args[0]
			}
			report, err := doctor.Run(destination)
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			if len(report.Issues) == 0 {
				fmt.Println("No doctor findings.")
				return nil
			}
			fmt.Printf("%-8s %-24s %-26s %s\n", "SEV", "CHECK", "TARGET", "MESSAGE")
			for _, issue := range report.Issues {
				fmt.Printf("%-8s %-24s %-26s %s\n",
					strings.ToUpper(string(issue.Severity)),
					issue.Check,
					issue.Target,
					issue.Message,
				)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
