// Package testkit deploys the kernel bases and a DAO factory into a fresh
// world for tests in other packages.
package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chainkernel/internal/acl"
	"github.com/ppiankov/chainkernel/internal/daofactory"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/kernel"
	"github.com/ppiankov/chainkernel/internal/killswitch"
	"github.com/ppiankov/chainkernel/internal/ledger"
)

// Well-known test entities.
var (
	Deployer = ident.EntityFromName("deployer")
	Root     = ident.EntityFromName("root")
	Alice    = ident.EntityFromName("alice")
	Bob      = ident.EntityFromName("bob")
)

// Env is a world with the shared bases deployed.
type Env struct {
	t     testing.TB
	World *ledger.World

	BaseKernel     ident.Address
	BaseACL        ident.Address
	BaseKillSwitch ident.Address
	Factory        ident.Address

	Receipts []*ledger.Receipt
}

// New deploys a petrified kernel, the ACL and kill switch bases and a
// factory over them.
func New(t testing.TB) *Env {
	t.Helper()
	e := &Env{t: t}
	e.World = ledger.NewWorld(ledger.WithSink(ledger.SinkFunc(func(r *ledger.Receipt) error {
		e.Receipts = append(e.Receipts, r)
		return nil
	})))
	e.BaseKernel = e.Deploy(Deployer, kernel.Kernel{Petrified: true})
	e.BaseACL = e.Deploy(Deployer, acl.ACL{})
	e.BaseKillSwitch = e.Deploy(Deployer, killswitch.KillSwitch{})
	e.Factory = e.Deploy(Deployer, daofactory.Factory{}, e.BaseKernel, e.BaseACL, e.BaseKillSwitch)
	return e
}

// Deploy deploys c from `from` and fails the test on error.
func (e *Env) Deploy(from ident.Address, c ledger.Contract, args ...any) ident.Address {
	e.t.Helper()
	addr, _, err := e.World.Deploy(context.Background(), from, c, args...)
	require.NoError(e.t, err)
	return addr
}

// Send submits a transaction.
func (e *Env) Send(from, to ident.Address, method string, args ...any) (*ledger.Receipt, error) {
	return e.World.Transact(context.Background(), ledger.Msg{From: from, To: to, Method: method, Args: args})
}

// SendValue submits a transaction carrying native value.
func (e *Env) SendValue(from, to ident.Address, value uint64, method string, args ...any) (*ledger.Receipt, error) {
	return e.World.Transact(context.Background(), ledger.Msg{From: from, To: to, Value: value, Method: method, Args: args})
}

// MustSend submits a transaction and fails the test if it reverts.
func (e *Env) MustSend(from, to ident.Address, method string, args ...any) *ledger.Receipt {
	e.t.Helper()
	r, err := e.Send(from, to, method, args...)
	require.NoError(e.t, err, "%s.%s", to.Short(), method)
	return r
}

// View runs a read-only call from the zero entity.
func (e *Env) View(to ident.Address, method string, args ...any) ([]any, error) {
	return e.World.Call(context.Background(), ledger.Msg{To: to, Method: method, Args: args})
}

// Get runs a read-only call and returns its first result as T.
func Get[T any](e *Env, to ident.Address, method string, args ...any) T {
	e.t.Helper()
	v, err := ledger.First[T](e.View(to, method, args...))
	require.NoError(e.t, err, "%s.%s", to.Short(), method)
	return v
}

// Returned extracts the first return value of a receipt as T.
func Returned[T any](t testing.TB, r *ledger.Receipt) T {
	t.Helper()
	v, err := ledger.Return[T](r.Return, 0)
	require.NoError(t, err)
	return v
}

// NewDAO creates a DAO for root through the factory.
func (e *Env) NewDAO(root ident.Address) ident.Address {
	e.t.Helper()
	return Returned[ident.Address](e.t, e.MustSend(Deployer, e.Factory, "newDAO", root))
}

// NewDAOWithKillSwitch creates a DAO with a kill switch reading registry.
func (e *Env) NewDAOWithKillSwitch(root, registry ident.Address) ident.Address {
	e.t.Helper()
	return Returned[ident.Address](e.t, e.MustSend(Deployer, e.Factory, "newDAOWithKillSwitch", root, registry))
}

// ACL returns the ACL instance of dao.
func (e *Env) ACL(dao ident.Address) ident.Address {
	e.t.Helper()
	return Get[ident.Address](e, dao, "acl")
}

// GrantAppManager gives root APP_MANAGER_ROLE on dao, managed by root.
func (e *Env) GrantAppManager(dao, root ident.Address) {
	e.t.Helper()
	e.MustSend(root, e.ACL(dao), "createPermission", root, dao, kernel.AppManagerRole, root)
}

// CreatePermission creates (entity, where, role) managed by root.
func (e *Env) CreatePermission(dao, root, entity, where ident.Address, role ident.ID) {
	e.t.Helper()
	e.MustSend(root, e.ACL(dao), "createPermission", entity, where, role, root)
}

// NewApp installs an upgradeable (or pinned) instance of base as appID
// and makes it the default instance.
func (e *Env) NewApp(dao, from ident.Address, appID ident.ID, base ident.Address, init ledger.Invocation, pinned bool) ident.Address {
	e.t.Helper()
	method := "newAppInstance"
	if pinned {
		method = "newPinnedAppInstance"
	}
	return Returned[ident.Address](e.t, e.MustSend(from, dao, method, appID, base, init, true))
}

// Init builds an initialization invocation.
func Init(method string, args ...any) ledger.Invocation {
	return ledger.Invocation{Method: method, Args: args}
}
