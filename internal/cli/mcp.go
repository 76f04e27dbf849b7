package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	chainmcp "github.com/ppiankov/chainkernel/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs a read-only copy of the node as an MCP (Model Context Protocol)\n" +
		"server over stdio. State is rebuilt from the event log on start.\n" +
		"Tools: kernel_get_app, acl_has_permission, apm_get_latest, killswitch_check.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	// the serving node owns the index and the alerts
	local := *cfg
	local.Indexer.DSN = ""
	local.Alerts = nil

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := openRuntime(ctx, &local, log, false)
	if err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	defer rt.Close()

	srv := chainmcp.New(rt.node, version, logrus.NewEntry(log))
	return srv.Run(ctx)
}
