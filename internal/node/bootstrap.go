package node

import (
	"context"
	"fmt"

	"github.com/ppiankov/chainkernel/internal/acl"
	"github.com/ppiankov/chainkernel/internal/apm"
	"github.com/ppiankov/chainkernel/internal/apps/counter"
	"github.com/ppiankov/chainkernel/internal/daofactory"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/kernel"
	"github.com/ppiankov/chainkernel/internal/killswitch"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/vault"
)

// CounterContentURI is the content of the genesis counter release.
const CounterContentURI = "ipfs:counter-v1"

// genesis runs a sequence of steps, stopping at the first failure.
type genesis struct {
	ctx context.Context
	w   *ledger.World
	err error
}

func (g *genesis) deploy(name string, c ledger.Contract, args ...any) ident.Address {
	if g.err != nil {
		return ident.ZeroAddress
	}
	addr, _, err := g.w.Deploy(g.ctx, Genesis, c, args...)
	if err != nil {
		g.err = fmt.Errorf("deploy %s: %w", name, err)
	}
	return addr
}

func (g *genesis) send(from, to ident.Address, method string, args ...any) []any {
	if g.err != nil {
		return nil
	}
	r, err := g.w.Transact(g.ctx, ledger.Msg{From: from, To: to, Method: method, Args: args})
	if err != nil {
		g.err = fmt.Errorf("%s on %s: %w", method, to.Short(), err)
		return nil
	}
	return r.Return
}

func (g *genesis) address(from, to ident.Address, method string, args ...any) ident.Address {
	ret := g.send(from, to, method, args...)
	if g.err != nil {
		return ident.ZeroAddress
	}
	addr, err := ledger.Return[ident.Address](ret, 0)
	if err != nil {
		g.err = fmt.Errorf("%s on %s: %w", method, to.Short(), err)
	}
	return addr
}

func (g *genesis) view(to ident.Address, method string, args ...any) ident.Address {
	if g.err != nil {
		return ident.ZeroAddress
	}
	addr, err := ledger.First[ident.Address](g.w.Call(g.ctx, ledger.Msg{To: to, Method: method, Args: args}))
	if err != nil {
		g.err = fmt.Errorf("%s on %s: %w", method, to.Short(), err)
	}
	return addr
}

func initCall(method string, args ...any) ledger.Invocation {
	return ledger.Invocation{Method: method, Args: args}
}

// bootstrap deploys the bases and factory, a registry DAO holding the
// shared issues registry and the package registry, and the main DAO with
// a kill switch, a vault and a counter. Every address is derived from
// deployer nonces, so the layout is identical on every start.
func (n *Node) bootstrap(ctx context.Context, root ident.Address) error {
	g := &genesis{ctx: ctx, w: n.world}
	a := &n.addrs
	a.Root = root

	a.BaseKernel = g.deploy("kernel base", kernel.Kernel{Petrified: true})
	a.BaseACL = g.deploy("acl base", acl.ACL{})
	a.BaseKillSwitch = g.deploy("kill switch base", killswitch.KillSwitch{})
	a.BaseIssuesRegistry = g.deploy("issues registry base", killswitch.IssuesRegistry{})
	a.BaseVault = g.deploy("vault base", vault.Vault{})
	a.BaseRepo = g.deploy("repo base", apm.Repo{})
	a.BaseAPMRegistry = g.deploy("apm registry base", apm.Registry{})
	a.BaseCounter = g.deploy("counter base", counter.V1())
	a.BaseCounterV2 = g.deploy("counter v2 base", counter.V2())
	a.Factory = g.deploy("factory", daofactory.Factory{}, a.BaseKernel, a.BaseACL, a.BaseKillSwitch)

	// registry DAO
	a.RegistryDAO = g.address(root, a.Factory, "newDAO", root)
	regACL := g.view(a.RegistryDAO, "acl")
	g.send(root, regACL, "createPermission", root, a.RegistryDAO, kernel.AppManagerRole, root)
	a.IssuesRegistry = g.address(root, a.RegistryDAO, "newAppInstance",
		ident.IssuesRegistryAppID, a.BaseIssuesRegistry, initCall("initialize"), true)
	g.send(root, regACL, "createPermission", root, a.IssuesRegistry, killswitch.SetSeverityRole, root)
	g.send(root, a.RegistryDAO, "setApp", ident.AppBasesNamespace, ident.RepoAppID, a.BaseRepo)
	a.APMRegistry = g.address(root, a.RegistryDAO, "newAppInstance",
		ident.APMRegistryAppID, a.BaseAPMRegistry, initCall("initialize", apm.DefaultDomain), true)
	g.send(root, regACL, "grantPermission", a.APMRegistry, regACL, acl.CreatePermissionsRole)
	g.send(root, regACL, "createPermission", root, a.APMRegistry, apm.CreateRepoRole, root)
	g.send(root, a.APMRegistry, "newRepoWithVersion", "counter", root, "1.0.0", a.BaseCounter, CounterContentURI)
	a.CounterRepo = g.view(a.APMRegistry, "getRepo", "counter")

	// main DAO
	a.DAO = g.address(root, a.Factory, "newDAOWithKillSwitch", root, a.IssuesRegistry)
	a.ACL = g.view(a.DAO, "acl")
	a.KillSwitch = g.view(a.DAO, "killSwitch")
	g.send(root, a.ACL, "grantPermission", root, a.DAO, kernel.AppManagerRole)
	a.Vault = g.address(root, a.DAO, "newAppInstance", ident.VaultAppID, a.BaseVault, initCall("initialize"), true)
	g.send(root, a.ACL, "createPermission", root, a.Vault, vault.TransferRole, root)
	a.Counter = g.address(root, a.DAO, "newAppInstance", counter.AppID, a.BaseCounter, initCall("initialize", root), true)
	return g.err
}
