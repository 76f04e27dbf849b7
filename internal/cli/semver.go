package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chainkernel/internal/apm"
)

func init() {
	rootCmd.AddCommand(semverCmd)
}

var semverCmd = &cobra.Command{
	Use:   "semver <from> <to>",
	Short: "Check whether a version may follow another in a repo",
	Long: "A repo accepts a new version only when exactly one field goes up by\n" +
		"one and every field after it resets to zero. The first version of a\n" +
		"repo is checked against 0.0.0.",
	Args: cobra.ExactArgs(2),
	RunE: runSemver,
}

func runSemver(cmd *cobra.Command, args []string) error {
	from, err := apm.ParseVersion(args[0])
	if err != nil {
		return err
	}
	to, err := apm.ParseVersion(args[1])
	if err != nil {
		return err
	}
	if !apm.IsValidBump(from, to) {
		return fmt.Errorf("invalid bump %s -> %s", from, to)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s -> %s\n", from, to)
	return nil
}
