package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sshfwd/sshfwd/internal/events"
	"github.com/sshfwd/sshfwd/internal/persistence"
	"github.com/sshfwd/sshfwd/internal/util"
)

// newForwardCmd creates the "forward" subcommand, replacing the teacher's
// process-based "tunnel" command now that forwards run natively inside the
// dashboard's own forward manager rather than as separate ssh(1) processes.
// It offers read-only inspection — starting/stopping a forward is a
// dashboard action (spec.md §4.6/§4.7), there is no long-running process to
// hand a CLI command.
func newForwardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forward",
		Short: "Inspect remembered and recently active forwards",
	}
	cmd.AddCommand(newForwardListCmd(), newForwardEventsCmd())
	return cmd
}

func newForwardListCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list <destination>",
		Short: "List the forwards remembered for a destination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			destination := args[0]
			forwards := persistence.Load(destination)
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(forwards)
			}
			if len(forwards) == 0 {
				fmt.Println("(no remembered forwards)")
				return nil
			}
			fmt.Printf("%-12s %s\n", "REMOTE", "LOCAL")
			for _, f := range forwards {
				fmt.Printf("%-12d %d\n", f.RemotePort, f.LocalPort)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newForwardEventsCmd() *cobra.Command {
	var destination string
	var remotePort int
	var eventType string
	var since string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recorded forward lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			sinceTime, err := parseSince(since)
			if err != nil {
				return err
			}
			store := events.NewStore()
			recs, err := store.Read(events.Query{
				Destination: strings.TrimSpace(destination),
				RemotePort:  uint16(remotePort),
				EventType:   strings.TrimSpace(eventType),
				Since:       sinceTime,
				Limit:       limit,
			})
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}

			if len(recs) == 0 {
				fmt.Println("(no events)")
				return nil
			}
			fmt.Printf("%-25s %-20s %-10s %-8s %-8s %s\n", "TIMESTAMP", "DESTINATION", "EVENT", "REMOTE", "LOCAL", "MESSAGE")
			for _, evt := range recs {
				fmt.Printf("%-25s %-20s %-10s %-8d %-8d %s\n",
					evt.Timestamp.Format(time.RFC3339),
					util.EmptyDash(evt.Destination),
					evt.EventType,
					evt.RemotePort,
					evt.LocalPort,
					evt.Message,
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&destination, "destination", "", "filter by destination")
	cmd.Flags().IntVar(&remotePort, "remote-port", 0, "filter by remote port")
	cmd.Flags().StringVar(&eventType, "event", "", "filter by event type (started, stopped, paused, bind_error)")
	cmd.Flags().StringVar(&since, "since", "", "filter by age duration (e.g. 1h) or RFC3339 timestamp")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events to return")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func parseSince(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return time.Now().Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since value %q: use duration (e.g. 1h) or RFC3339", s)
	}
	return t, nil
}
