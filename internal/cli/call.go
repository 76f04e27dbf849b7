package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chainkernel/internal/client"
	"github.com/ppiankov/chainkernel/internal/config"
	"github.com/ppiankov/chainkernel/internal/ledger"
)

var (
	nodeAddr  string
	callFrom  string
	callValue uint64
)

func init() {
	for _, c := range []*cobra.Command{callCmd, queryCmd, addressesCmd} {
		c.Flags().StringVar(&nodeAddr, "addr", "", "Node gRPC address (default from config)")
		rootCmd.AddCommand(c)
	}
	callCmd.Flags().StringVar(&callFrom, "from", "", "Sender name or address (default: the configured root)")
	callCmd.Flags().Uint64Var(&callValue, "value", 0, "Native value sent with the call")
	queryCmd.Flags().StringVar(&callFrom, "from", "", "Caller name or address")
}

var callCmd = &cobra.Command{
	Use:   "call <to> <method> [args...]",
	Short: "Submit a transaction to the node",
	Long: "Sends a transaction to a running node and prints its receipt.\n" +
		"<to> and any argument may name a genesis component as @name (@vault,\n" +
		"@acl, @kernel). Arguments that parse as JSON are sent as JSON values,\n" +
		"everything else as strings.",
	Example: "  chainkernel call @counter increment\n" +
		"  chainkernel call --from root @acl grantPermission alice @vault 0x...",
	Args: cobra.MinimumNArgs(2),
	RunE: runCall,
}

var queryCmd = &cobra.Command{
	Use:   "query <to> <method> [args...]",
	Short: "Run a read-only call against the node",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runQuery,
}

var addressesCmd = &cobra.Command{
	Use:   "addresses",
	Short: "List the node's genesis components",
	Args:  cobra.NoArgs,
	RunE:  runAddresses,
}

func dial() (*client.Client, *config.Config, error) {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	addr := nodeAddr
	if addr == "" {
		addr = cfg.GRPCAddr
	}
	c, err := client.New(addr)
	if err != nil {
		return nil, nil, err
	}
	return c, cfg, nil
}

func runCall(cmd *cobra.Command, args []string) error {
	c, cfg, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	from := callFrom
	if from == "" {
		from = cfg.Root
	}
	r, err := c.Submit(cmd.Context(), client.Call{
		From:   from,
		To:     args[0],
		Method: args[1],
		Args:   parseArgs(args[2:]),
		Value:  callValue,
	})
	if r != nil {
		if perr := printReceipt(cmd.OutOrStdout(), r); perr != nil {
			return perr
		}
	}
	return err
}

func runQuery(cmd *cobra.Command, args []string) error {
	c, _, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ret, err := c.Query(cmd.Context(), client.Call{
		From:   callFrom,
		To:     args[0],
		Method: args[1],
		Args:   parseArgs(args[2:]),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), ret)
}

func runAddresses(cmd *cobra.Command, args []string) error {
	c, _, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	addrs, err := c.Addresses(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), addrs)
}

// parseArgs keeps JSON values (numbers, booleans, objects, lists) and
// sends anything else as a string.
func parseArgs(raw []string) []any {
	out := make([]any, len(raw))
	for i, s := range raw {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			out[i] = v
			continue
		}
		out[i] = s
	}
	return out
}

func printReceipt(w io.Writer, r *ledger.Receipt) error {
	status := strings.ToUpper(string(r.Status))
	if r.Reason != "" {
		status += " " + r.Reason
	}
	fmt.Fprintf(w, "%s  block %d  tx %s\n", status, r.Block, r.TxID)
	for _, e := range r.Events {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = fmt.Sprintf("%s=%v", f.Name, f.Value)
		}
		fmt.Fprintf(w, "  %s @%s  %s\n", e.Name, e.Address.Short(), strings.Join(parts, " "))
	}
	if len(r.Return) > 0 {
		return printJSON(w, map[string]any{"return": r.Return})
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}

