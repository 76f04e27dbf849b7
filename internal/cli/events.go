package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chainkernel/internal/config"
	"github.com/ppiankov/chainkernel/internal/eventlog"
	"github.com/ppiankov/chainkernel/internal/ident"
)

var (
	eventsTx        string
	eventsFrom      string
	eventsMethod    string
	eventsCommitted bool
	eventsSince     string
	eventsUntil     string
	eventsFormat    string
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsVerifyCmd)
	eventsCmd.AddCommand(eventsShowCmd)
	eventsShowCmd.Flags().StringVar(&eventsTx, "tx", "", "Only this transaction id")
	eventsShowCmd.Flags().StringVar(&eventsFrom, "from", "", "Only transactions from this address or entity name")
	eventsShowCmd.Flags().StringVar(&eventsMethod, "method", "", "Only calls to this method")
	eventsShowCmd.Flags().BoolVar(&eventsCommitted, "committed", false, "Hide reverted transactions")
	eventsShowCmd.Flags().StringVar(&eventsSince, "since", "", "Start time filter (RFC3339)")
	eventsShowCmd.Flags().StringVar(&eventsUntil, "until", "", "End time filter (RFC3339)")
	eventsShowCmd.Flags().StringVarP(&eventsFormat, "format", "f", "text", "Output format (text|json)")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Event log operations",
	Long:  "Commands for verifying and inspecting the hash-chained event log.",
}

var eventsVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of an event log",
	Long: "Walks the JSONL event log and validates that every entry's prev_hash\n" +
		"matches the SHA-256 of the previous entry. Fails if the chain is broken.",
	Args: cobra.MaximumNArgs(1),
	RunE: runEventsVerify,
}

var eventsShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Render the event log as a timeline",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEventsShow,
}

// eventLogPath is the argument, or the configured event log.
func eventLogPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	return cfg.EventLog, nil
}

func runEventsVerify(cmd *cobra.Command, args []string) error {
	path, err := eventLogPath(args)
	if err != nil {
		return err
	}
	result := eventlog.Verify(path)
	if !result.Valid {
		return fmt.Errorf("FAILED at line %d: %s", result.ErrorLine, result.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
	return nil
}

func runEventsShow(cmd *cobra.Command, args []string) error {
	path, err := eventLogPath(args)
	if err != nil {
		return err
	}
	filter := eventlog.Filter{
		TxID:          eventsTx,
		Method:        eventsMethod,
		CommittedOnly: eventsCommitted,
	}
	if eventsFrom != "" {
		if filter.From, err = ident.ParseAddress(eventsFrom); err != nil {
			filter.From = ident.EntityFromName(eventsFrom)
		}
	}
	if eventsSince != "" {
		if filter.Since, err = time.Parse(time.RFC3339, eventsSince); err != nil {
			return fmt.Errorf("invalid --since time %q: %w", eventsSince, err)
		}
	}
	if eventsUntil != "" {
		if filter.Until, err = time.Parse(time.RFC3339, eventsUntil); err != nil {
			return fmt.Errorf("invalid --until time %q: %w", eventsUntil, err)
		}
	}

	result, err := eventlog.Read(path, filter)
	if err != nil {
		return err
	}
	switch eventsFormat {
	case "json":
		out, err := eventlog.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), eventlog.FormatTimeline(result))
	}
	return nil
}
