package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chainkernel/internal/config"
)

var (
	configPath string
	envFile    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "chainkernel",
	Short: "Permission kernel for app-based organizations",
	Long: "Runs a DAO kernel: an ACL, a namespace registry of upgradeable apps,\n" +
		"a kill switch for vulnerable app code and a versioned package registry.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.chainkernel/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file with CHAINKERNEL_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
