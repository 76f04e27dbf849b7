package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/chainkernel/internal/httpapi"
	"github.com/ppiankov/chainkernel/internal/server"
)

var (
	serveGRPCAddr string
	serveHTTPAddr string
	servePolicy   string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveGRPCAddr, "grpc-addr", "", "gRPC listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http-addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringVar(&servePolicy, "policy", "", "Kill switch policy YAML (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kernel node",
	Long: "Bootstraps the genesis DAO, replays the event log and serves the\n" +
		"gRPC transaction API and the HTTP read API. The kill switch policy\n" +
		"file is applied at start and hot-reloaded on change.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if serveGRPCAddr != "" {
		cfg.GRPCAddr = serveGRPCAddr
	}
	if serveHTTPAddr != "" {
		cfg.HTTPAddr = serveHTTPAddr
	}
	if servePolicy != "" {
		cfg.KillSwitchPolicy = servePolicy
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := openRuntime(ctx, cfg, log, true)
	if err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	defer rt.Close()

	limits, err := rt.rateLimits()
	if err != nil {
		return err
	}
	srv := server.New(rt.node, server.Config{
		Addr:       cfg.GRPCAddr,
		PolicyPath: cfg.KillSwitchPolicy,
		RateLimits: limits,
	}, server.WithLogger(logrus.NewEntry(log)), server.WithMetrics(rt.metrics))

	if err := srv.ReloadPolicy(ctx); err != nil {
		return fmt.Errorf("kill switch policy: %w", err)
	}

	errCh := make(chan error, 3)
	if cfg.KillSwitchPolicy != "" {
		reloader, err := server.NewReloader(srv)
		if err != nil {
			log.WithError(err).Warn("hot-reload disabled")
		} else {
			go reloader.Run(ctx)
		}
	}
	go func() { errCh <- srv.Serve() }()
	if cfg.HTTPAddr != "" {
		api := httpapi.New(rt.node, rt.store, rt.metrics, logrus.NewEntry(log))
		go func() { errCh <- api.ListenAndServe(ctx, cfg.HTTPAddr) }()
	}

	log.WithField("dao", rt.node.Addresses().DAO.Hex()).Info("chainkernel node ready")
	select {
	case err = <-errCh:
	case <-ctx.Done():
		log.Info("shutting down")
	}
	cancel()
	srv.GracefulStop()
	return err
}
