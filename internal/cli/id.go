package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chainkernel/internal/ident"
)

var idKind string

func init() {
	rootCmd.AddCommand(idCmd)
	idCmd.Flags().StringVarP(&idKind, "kind", "k", "role", "Identifier kind: role, app, namespace or entity")
}

var idCmd = &cobra.Command{
	Use:   "id <name>...",
	Short: "Compute identifiers from names",
	Long: "Prints the identifier the kernel uses for a name:\n" +
		"  role       Keccak-256 of the role name (TRANSFER_ROLE)\n" +
		"  app        ENS-style name hash of a package name (vault.apm.eth)\n" +
		"  namespace  core, base or app\n" +
		"  entity     address derived from a human name (alice)",
	Args: cobra.MinimumNArgs(1),
	RunE: runID,
}

func runID(cmd *cobra.Command, args []string) error {
	for _, name := range args {
		var out fmt.Stringer
		switch idKind {
		case "role":
			out = ident.RoleID(name)
		case "app":
			out = ident.AppIDFromString(name)
		case "namespace":
			ns, err := ident.ParseNamespace(name)
			if err != nil {
				return err
			}
			out = ns
		case "entity":
			out = ident.EntityFromName(name)
		default:
			return fmt.Errorf("unknown kind %q", idKind)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", out, name)
	}
	return nil
}
