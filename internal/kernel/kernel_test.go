package kernel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chainkernel/internal/acl"
	"github.com/ppiankov/chainkernel/internal/apps/counter"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/kernel"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/lifecycle"
	"github.com/ppiankov/chainkernel/internal/proxy"
	"github.com/ppiankov/chainkernel/internal/testkit"
)

func TestUninitializedKernelRejectsEverything(t *testing.T) {
	e := testkit.New(t)
	k := e.Deploy(testkit.Deployer, kernel.Kernel{})
	base := e.Deploy(testkit.Deployer, counter.V1())

	_, err := e.Send(testkit.Root, k, "setApp", ident.AppBasesNamespace, counter.AppID, base)
	assert.ErrorIs(t, err, kernel.ErrAuthFailed)

	_, err = e.Send(testkit.Root, k, "newAppInstance", counter.AppID, base)
	assert.ErrorIs(t, err, kernel.ErrAuthFailed)

	assert.False(t, testkit.Get[bool](e, k, "hasPermission", testkit.Root, k, kernel.AppManagerRole))
	assert.False(t, testkit.Get[bool](e, k, "hasInitialized"))
	assert.Equal(t, ident.ZeroAddress, testkit.Get[ident.Address](e, k, "acl"))
}

func TestInitializeEventOrder(t *testing.T) {
	e := testkit.New(t)
	k := e.Deploy(testkit.Deployer, kernel.Kernel{})

	r := e.MustSend(testkit.Deployer, k, "initialize", e.BaseACL, testkit.Root)

	setApps := r.EventsNamed(kernel.EventSetApp)
	require.Len(t, setApps, 2)
	assert.Equal(t, ident.AppBasesNamespace, setApps[0].Get("namespace"))
	assert.Equal(t, e.BaseACL, setApps[0].Get("app"))
	assert.Equal(t, ident.AppAddrNamespace, setApps[1].Get("namespace"))
	aclAddr := testkit.Get[ident.Address](e, k, "acl")
	assert.Equal(t, aclAddr, setApps[1].Get("app"))
	for _, ev := range setApps {
		assert.Equal(t, ident.ACLAppID, ev.Get("appId"))
	}

	names := make([]string, 0, len(r.Events))
	for _, ev := range r.Events {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{
		kernel.EventSetApp,
		kernel.EventNewAppProxy,
		acl.EventSetPermission,
		acl.EventChangePermissionManager,
		kernel.EventSetApp,
	}, names)

	assert.True(t, testkit.Get[bool](e, k, "hasPermission", testkit.Root, aclAddr, acl.CreatePermissionsRole))
	assert.False(t, testkit.Get[bool](e, k, "hasPermission", testkit.Root, k, kernel.AppManagerRole))
	assert.Equal(t, ident.VaultAppID, testkit.Get[ident.ID](e, k, "getRecoveryVaultAppId"))

	_, err := e.Send(testkit.Deployer, k, "initialize", e.BaseACL, testkit.Root)
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyInitialized)
}

func TestRootCreatesAppManagerThenInstalls(t *testing.T) {
	e := testkit.New(t)
	k := e.Deploy(testkit.Deployer, kernel.Kernel{})
	e.MustSend(testkit.Deployer, k, "initialize", e.BaseACL, testkit.Root)
	base := e.Deploy(testkit.Deployer, counter.V1())

	e.GrantAppManager(k, testkit.Root)

	r := e.MustSend(testkit.Root, k, "newAppInstance", counter.AppID, base, testkit.Init("initialize", testkit.Root), true)
	inst := testkit.Returned[ident.Address](t, r)

	ev := r.EventsNamed(kernel.EventNewAppProxy)
	require.Len(t, ev, 1)
	assert.Equal(t, inst, ev[0].Get("proxy"))
	assert.Equal(t, true, ev[0].Get("isUpgradeable"))

	assert.Equal(t, base, testkit.Get[ident.Address](e, k, "getApp", ident.AppBasesNamespace, counter.AppID))
	assert.Equal(t, inst, testkit.Get[ident.Address](e, k, "getApp", ident.AppAddrNamespace, counter.AppID))
	assert.True(t, testkit.Get[bool](e, inst, "hasInitialized"))
	assert.Equal(t, testkit.Root, testkit.Get[ident.Address](e, inst, "owner"))

	// other callers are still locked out
	_, err := e.Send(testkit.Alice, k, "newAppInstance", counter.AppID, base)
	assert.ErrorIs(t, err, kernel.ErrAuthFailed)
}

func TestSetAppRules(t *testing.T) {
	e := testkit.New(t)
	dao := e.NewDAO(testkit.Root)
	e.GrantAppManager(dao, testkit.Root)
	base := e.Deploy(testkit.Deployer, counter.V1())
	other := e.Deploy(testkit.Deployer, counter.V2())

	e.MustSend(testkit.Root, dao, "setApp", ident.AppBasesNamespace, counter.AppID, base)
	before := len(e.Receipts)
	e.MustSend(testkit.Root, dao, "setApp", ident.AppBasesNamespace, counter.AppID, base)
	assert.Len(t, e.Receipts, before+1)
	assert.Equal(t, base, testkit.Get[ident.Address](e, dao, "getApp", ident.AppBasesNamespace, counter.AppID))

	_, err := e.Send(testkit.Root, dao, "setApp", ident.AppBasesNamespace, counter.AppID, testkit.Alice)
	assert.ErrorIs(t, err, kernel.ErrAppNotContract)
	_, err = e.Send(testkit.Root, dao, "setApp", ident.AppBasesNamespace, counter.AppID, ident.ZeroAddress)
	assert.ErrorIs(t, err, kernel.ErrAppNotContract)

	_, err = e.Send(testkit.Root, dao, "newAppInstance", counter.AppID, other)
	assert.ErrorIs(t, err, kernel.ErrInvalidAppChange)
	assert.Equal(t, base, testkit.Get[ident.Address](e, dao, "getApp", ident.AppBasesNamespace, counter.AppID))
}

func TestPetrifiedKernelCannotInitialize(t *testing.T) {
	e := testkit.New(t)
	assert.True(t, testkit.Get[bool](e, e.BaseKernel, "isPetrified"))

	_, err := e.Send(testkit.Deployer, e.BaseKernel, "initialize", e.BaseACL, testkit.Root)
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyInitialized)
}

func TestKernelProxyUpgrade(t *testing.T) {
	e := testkit.New(t)
	dao := e.NewDAO(testkit.Root)
	assert.Equal(t, e.BaseKernel, testkit.Get[ident.Address](e, dao, "implementation"))
	assert.Equal(t, proxy.UpgradeableProxy, testkit.Get[uint64](e, dao, "proxyType"))

	next := e.Deploy(testkit.Deployer, kernel.Kernel{Petrified: true})
	_, err := e.Send(testkit.Root, dao, "setApp", ident.CoreNamespace, ident.KernelAppID, next)
	assert.ErrorIs(t, err, kernel.ErrAuthFailed)

	e.GrantAppManager(dao, testkit.Root)
	e.MustSend(testkit.Root, dao, "setApp", ident.CoreNamespace, ident.KernelAppID, next)
	assert.Equal(t, next, testkit.Get[ident.Address](e, dao, "implementation"))

	// state survives the upgrade
	assert.True(t, testkit.Get[bool](e, dao, "hasPermission", testkit.Root, dao, kernel.AppManagerRole))
}

func TestRecoveryVaultAppID(t *testing.T) {
	e := testkit.New(t)
	dao := e.NewDAO(testkit.Root)
	assert.Equal(t, ident.ZeroAddress, testkit.Get[ident.Address](e, dao, "getRecoveryVault"))

	id := ident.NameHash("other-vault.apm.eth")
	_, err := e.Send(testkit.Alice, dao, "setRecoveryVaultAppId", id)
	assert.ErrorIs(t, err, kernel.ErrAuthFailed)

	e.GrantAppManager(dao, testkit.Root)
	e.MustSend(testkit.Root, dao, "setRecoveryVaultAppId", id)
	assert.Equal(t, id, testkit.Get[ident.ID](e, dao, "getRecoveryVaultAppId"))
}

func TestNoKillSwitchNeverDenies(t *testing.T) {
	e := testkit.New(t)
	dao := e.NewDAO(testkit.Root)
	assert.False(t, testkit.Get[bool](e, dao, "shouldDenyCallingContract", e.BaseACL))
	assert.Equal(t, ident.ZeroAddress, testkit.Get[ident.Address](e, dao, "killSwitch"))
}

func TestFailedInstallLeavesNoTrace(t *testing.T) {
	e := testkit.New(t)
	dao := e.NewDAO(testkit.Root)
	e.GrantAppManager(dao, testkit.Root)
	base := e.Deploy(testkit.Deployer, counter.V1())

	r, err := e.Send(testkit.Root, dao, "newAppInstance", counter.AppID, base, testkit.Init("nope"), true)
	require.Error(t, err)
	assert.Equal(t, ledger.StatusReverted, r.Status)
	assert.Equal(t, ident.ZeroAddress, testkit.Get[ident.Address](e, dao, "getApp", ident.AppBasesNamespace, counter.AppID))
	assert.Equal(t, ident.ZeroAddress, testkit.Get[ident.Address](e, dao, "getApp", ident.AppAddrNamespace, counter.AppID))
}
