package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/chainkernel/internal/apm"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/killswitch"
	"github.com/ppiankov/chainkernel/internal/ledger"
)

// --- Input/Output types ---

// GetAppInput defines parameters for the kernel_get_app tool.
type GetAppInput struct {
	Kernel    string `json:"kernel,omitempty" jsonschema:"kernel name or address, defaults to the main DAO"`
	Namespace string `json:"namespace" jsonschema:"core, base, app or a hex namespace id"`
	AppID     string `json:"app_id" jsonschema:"hex app id or package name such as vault.apm.eth"`
}

// GetAppOutput is the installed address, zero when the slot is empty.
type GetAppOutput struct {
	Kernel  string `json:"kernel"`
	AppID   string `json:"app_id"`
	Address string `json:"address"`
	Empty   bool   `json:"empty,omitempty"`
}

// HasPermissionInput defines parameters for the acl_has_permission tool.
type HasPermissionInput struct {
	Kernel string `json:"kernel,omitempty" jsonschema:"kernel name or address, defaults to the main DAO"`
	Entity string `json:"entity" jsonschema:"entity name or address"`
	App    string `json:"app" jsonschema:"app name or address"`
	Role   string `json:"role" jsonschema:"role name such as TRANSFER_ROLE or hex role id"`
}

// HasPermissionOutput is the permission check result.
type HasPermissionOutput struct {
	Entity  string `json:"entity"`
	App     string `json:"app"`
	Role    string `json:"role"`
	Allowed bool   `json:"allowed"`
}

// GetLatestInput defines parameters for the apm_get_latest tool.
type GetLatestInput struct {
	Repo string `json:"repo" jsonschema:"repository name such as counter"`
}

// GetLatestOutput is the newest release of a repository.
type GetLatestOutput struct {
	Repo       string `json:"repo"`
	VersionID  uint64 `json:"version_id"`
	Version    string `json:"version"`
	Contract   string `json:"contract"`
	ContentURI string `json:"content_uri"`
}

// KillSwitchCheckInput defines parameters for the killswitch_check tool.
type KillSwitchCheckInput struct {
	Contract string `json:"contract" jsonschema:"app name such as counter or hex code address"`
}

// KillSwitchCheckOutput explains the kill switch decision for one code
// address.
type KillSwitchCheckOutput struct {
	Code          string `json:"code"`
	Denied        bool   `json:"denied"`
	Action        string `json:"action"`
	Severity      string `json:"severity"`
	LowestAllowed string `json:"lowest_allowed"`
}

// --- Handlers ---

func (s *Server) kernel(name string) (ident.Address, error) {
	addrs := s.node.Addresses()
	if name == "" {
		return addrs.DAO, nil
	}
	return addrs.Resolve(name)
}

func (s *Server) handleGetApp(ctx context.Context, req *mcpsdk.CallToolRequest, input GetAppInput) (*mcpsdk.CallToolResult, GetAppOutput, error) {
	kernel, err := s.kernel(input.Kernel)
	if err != nil {
		return nil, GetAppOutput{}, err
	}
	ns, err := ident.ParseNamespace(input.Namespace)
	if err != nil {
		return nil, GetAppOutput{}, fmt.Errorf("namespace: %w", err)
	}
	id := ident.AppIDFromString(input.AppID)

	addr, err := ledger.First[ident.Address](s.node.Query(ctx, ident.ZeroAddress, kernel, "getApp", ns, id))
	if err != nil {
		return nil, GetAppOutput{}, err
	}
	return nil, GetAppOutput{
		Kernel:  kernel.Hex(),
		AppID:   id.Hex(),
		Address: addr.Hex(),
		Empty:   addr.IsZero(),
	}, nil
}

func (s *Server) handleHasPermission(ctx context.Context, req *mcpsdk.CallToolRequest, input HasPermissionInput) (*mcpsdk.CallToolResult, HasPermissionOutput, error) {
	kernel, err := s.kernel(input.Kernel)
	if err != nil {
		return nil, HasPermissionOutput{}, err
	}
	addrs := s.node.Addresses()
	entity, err := addrs.Entity(input.Entity)
	if err != nil {
		return nil, HasPermissionOutput{}, fmt.Errorf("entity: %w", err)
	}
	where, err := addrs.Resolve(input.App)
	if err != nil {
		return nil, HasPermissionOutput{}, fmt.Errorf("app: %w", err)
	}
	if input.Role == "" {
		return nil, HasPermissionOutput{}, fmt.Errorf("role is required")
	}
	role := ident.RoleID(input.Role)

	allowed, err := ledger.First[bool](s.node.Query(ctx, ident.ZeroAddress, kernel, "hasPermission", entity, where, role))
	if err != nil {
		return nil, HasPermissionOutput{}, err
	}
	return nil, HasPermissionOutput{
		Entity:  entity.Hex(),
		App:     where.Hex(),
		Role:    role.Hex(),
		Allowed: allowed,
	}, nil
}

func (s *Server) handleGetLatest(ctx context.Context, req *mcpsdk.CallToolRequest, input GetLatestInput) (*mcpsdk.CallToolResult, GetLatestOutput, error) {
	registry := s.node.Addresses().APMRegistry
	repo, err := ledger.First[ident.Address](s.node.Query(ctx, ident.ZeroAddress, registry, "getRepo", input.Repo))
	if err != nil {
		return nil, GetLatestOutput{}, err
	}
	rel, err := ledger.First[apm.Release](s.node.Query(ctx, ident.ZeroAddress, repo, "getLatest"))
	if err != nil {
		return nil, GetLatestOutput{}, err
	}
	return nil, GetLatestOutput{
		Repo:       repo.Hex(),
		VersionID:  rel.ID,
		Version:    rel.Version.String(),
		Contract:   rel.Contract.Hex(),
		ContentURI: rel.ContentURI,
	}, nil
}

func (s *Server) handleKillSwitchCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input KillSwitchCheckInput) (*mcpsdk.CallToolResult, KillSwitchCheckOutput, error) {
	code, err := s.node.ResolveCode(ctx, input.Contract)
	if err != nil {
		return nil, KillSwitchCheckOutput{}, err
	}
	ks := s.node.Addresses().KillSwitch
	view := func(to ident.Address, method string) ([]any, error) {
		return s.node.Query(ctx, ident.ZeroAddress, to, method, code)
	}

	denied, err := ledger.First[bool](view(ks, "shouldDenyCallingContract"))
	if err != nil {
		return nil, KillSwitchCheckOutput{}, err
	}
	action, err := ledger.First[killswitch.Action](view(ks, "getContractAction"))
	if err != nil {
		return nil, KillSwitchCheckOutput{}, err
	}
	lowest, err := ledger.First[killswitch.Severity](view(ks, "getLowestAllowedSeverity"))
	if err != nil {
		return nil, KillSwitchCheckOutput{}, err
	}
	severity := killswitch.SeverityNone
	registry, err := ledger.First[ident.Address](view(ks, "getIssuesRegistry"))
	if err != nil {
		return nil, KillSwitchCheckOutput{}, err
	}
	if !registry.IsZero() {
		if severity, err = ledger.First[killswitch.Severity](view(registry, "getSeverityFor")); err != nil {
			return nil, KillSwitchCheckOutput{}, err
		}
	}

	return nil, KillSwitchCheckOutput{
		Code:          code.Hex(),
		Denied:        denied,
		Action:        action.String(),
		Severity:      severity.String(),
		LowestAllowed: lowest.String(),
	}, nil
}
