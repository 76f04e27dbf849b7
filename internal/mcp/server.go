// Package mcp exposes read-only kernel lookups as MCP tools over stdio.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/chainkernel/internal/node"
)

// Server wraps the MCP SDK server around a node.
type Server struct {
	mcpServer *mcpsdk.Server
	node      *node.Node
	log       *logrus.Entry
}

// New creates an MCP server with the kernel tools registered.
func New(n *node.Node, version string, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{node: n, log: log.WithField("component", "mcp")}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "chainkernel",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp server on stdio")
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all kernel tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "kernel_get_app",
		Description: "Look up the address installed in a kernel namespace (core, base or app) under an app id or package name.",
	}, s.handleGetApp)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "acl_has_permission",
		Description: "Check whether an entity holds a role on an app in a DAO's ACL.",
	}, s.handleHasPermission)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "apm_get_latest",
		Description: "Return the latest published version of a package repository.",
	}, s.handleGetLatest)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "killswitch_check",
		Description: "Report whether the kill switch currently blocks calls into a piece of app code, and why.",
	}, s.handleKillSwitchCheck)
}
