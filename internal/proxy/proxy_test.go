package proxy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chainkernel/internal/apps/counter"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/kernel"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/proxy"
	"github.com/ppiankov/chainkernel/internal/testkit"
	"github.com/ppiankov/chainkernel/internal/token"
	"github.com/ppiankov/chainkernel/internal/vault"
)

func daoWithManager(t *testing.T) (*testkit.Env, ident.Address) {
	t.Helper()
	e := testkit.New(t)
	dao := e.NewDAO(testkit.Root)
	e.GrantAppManager(dao, testkit.Root)
	return e, dao
}

func increment(t *testing.T, e *testkit.Env, inst ident.Address) uint64 {
	t.Helper()
	return testkit.Returned[uint64](t, e.MustSend(testkit.Alice, inst, "increment"))
}

func TestPinnedVersusUpgradeable(t *testing.T) {
	e, dao := daoWithManager(t)
	v1 := e.Deploy(testkit.Deployer, counter.V1())
	v2 := e.Deploy(testkit.Deployer, counter.V2())

	up := e.NewApp(dao, testkit.Root, counter.AppID, v1, testkit.Init("initialize", testkit.Root), false)
	pin := e.NewApp(dao, testkit.Root, counter.AppID, v1, testkit.Init("initialize", testkit.Root), true)

	assert.True(t, testkit.Get[bool](e, up, "isUpgradeable"))
	assert.False(t, testkit.Get[bool](e, pin, "isUpgradeable"))
	assert.Equal(t, proxy.UpgradeableProxy, testkit.Get[uint64](e, up, "proxyType"))
	assert.Equal(t, proxy.ForwardingProxy, testkit.Get[uint64](e, pin, "proxyType"))

	assert.Equal(t, uint64(1), increment(t, e, up))
	assert.Equal(t, uint64(1), increment(t, e, pin))

	e.MustSend(testkit.Root, dao, "setApp", ident.AppBasesNamespace, counter.AppID, v2)

	assert.Equal(t, v2, testkit.Get[ident.Address](e, up, "implementation"))
	assert.Equal(t, v1, testkit.Get[ident.Address](e, pin, "implementation"))
	assert.Equal(t, uint64(3), increment(t, e, up))
	assert.Equal(t, uint64(2), increment(t, e, pin))
	assert.Equal(t, uint64(2), testkit.Get[uint64](e, up, "step"))
	assert.Equal(t, uint64(1), testkit.Get[uint64](e, pin, "step"))
}

func TestImplementationNotSet(t *testing.T) {
	e, dao := daoWithManager(t)
	missing := ident.NameHash("missing.apm.eth")

	up := e.Deploy(testkit.Alice, proxy.Upgradeable(), dao, missing)
	_, err := e.Send(testkit.Alice, up, "increment")
	assert.ErrorIs(t, err, proxy.ErrImplementationNotSet)

	_, _, err = e.World.Deploy(context.Background(), testkit.Alice, proxy.Pinned(), dao, missing)
	assert.ErrorIs(t, err, proxy.ErrImplementationNotSet)

	_, _, err = e.World.Deploy(context.Background(), testkit.Alice, proxy.Upgradeable(), dao, missing, testkit.Init("initialize", testkit.Root))
	assert.ErrorIs(t, err, proxy.ErrImplementationNotSet)
}

func TestFailingInitAbortsConstruction(t *testing.T) {
	e, dao := daoWithManager(t)
	v1 := e.Deploy(testkit.Deployer, counter.V1())
	e.MustSend(testkit.Root, dao, "setApp", ident.AppBasesNamespace, counter.AppID, v1)

	addr, _, err := e.World.Deploy(context.Background(), testkit.Alice, proxy.Upgradeable(), dao, counter.AppID, testkit.Init("initialize"))
	require.Error(t, err)
	assert.False(t, e.World.HasCode(addr))
}

func TestUnusableBeforeKernelInitialized(t *testing.T) {
	e := testkit.New(t)
	k := e.Deploy(testkit.Deployer, kernel.Kernel{})
	p := e.Deploy(testkit.Alice, proxy.Upgradeable(), k, counter.AppID)
	e.World.Mint(testkit.Alice, 10)

	_, err := e.SendValue(testkit.Alice, p, 5, "")
	assert.ErrorIs(t, err, proxy.ErrKernelNotInitialized)
	_, err = e.Send(testkit.Alice, p, "increment")
	assert.ErrorIs(t, err, proxy.ErrKernelNotInitialized)
	assert.Equal(t, uint64(10), e.World.Balance(testkit.Alice))
}

func installVault(t *testing.T, e *testkit.Env, dao ident.Address) ident.Address {
	t.Helper()
	base := e.Deploy(testkit.Deployer, vault.Vault{})
	return e.NewApp(dao, testkit.Root, ident.VaultAppID, base, testkit.Init("initialize"), false)
}

func TestRecoverNativeToVault(t *testing.T) {
	e, dao := daoWithManager(t)
	v1 := e.Deploy(testkit.Deployer, counter.V1())
	inst := e.NewApp(dao, testkit.Root, counter.AppID, v1, testkit.Init("initialize", testkit.Root), false)
	e.World.Mint(testkit.Alice, 10)

	r, err := e.SendValue(testkit.Alice, inst, 7, "")
	require.NoError(t, err)
	assert.Len(t, r.EventsNamed(proxy.EventProxyDeposit), 1)
	assert.Equal(t, uint64(7), e.World.Balance(inst))

	_, err = e.Send(testkit.Bob, inst, "transferToVault", ident.ZeroAddress)
	assert.ErrorIs(t, err, proxy.ErrVaultNotContract)

	v := installVault(t, e, dao)
	r = e.MustSend(testkit.Bob, inst, "transferToVault", ident.ZeroAddress)
	assert.Equal(t, uint64(0), e.World.Balance(inst))
	assert.Equal(t, uint64(7), e.World.Balance(v))
	assert.Equal(t, uint64(7), testkit.Get[uint64](e, v, "balance", ident.ZeroAddress))

	ev := r.EventsNamed(proxy.EventRecoverToVault)
	require.Len(t, ev, 1)
	assert.Equal(t, v, ev[0].Get("vault"))
	assert.Equal(t, uint64(7), ev[0].Get("amount"))
}

func TestRecoverTokensToVault(t *testing.T) {
	e, dao := daoWithManager(t)
	v1 := e.Deploy(testkit.Deployer, counter.V1())
	inst := e.NewApp(dao, testkit.Root, counter.AppID, v1, testkit.Init("initialize", testkit.Root), false)
	v := installVault(t, e, dao)

	tok := e.Deploy(testkit.Deployer, token.Token{}, "Test", "TST")
	e.MustSend(testkit.Deployer, tok, "mint", inst, uint64(50))

	e.MustSend(testkit.Bob, inst, "transferToVault", tok)
	assert.Equal(t, uint64(0), testkit.Get[uint64](e, tok, "balanceOf", inst))
	assert.Equal(t, uint64(50), testkit.Get[uint64](e, v, "balance", tok))
}

func TestVaultRefusesRecovery(t *testing.T) {
	e, dao := daoWithManager(t)
	v := installVault(t, e, dao)
	e.World.Mint(testkit.Alice, 10)
	_, err := e.SendValue(testkit.Alice, v, 3, "")
	require.NoError(t, err)

	_, err = e.Send(testkit.Alice, v, "transferToVault", ident.ZeroAddress)
	assert.ErrorIs(t, err, proxy.ErrRecoverDisallowed)
	assert.Equal(t, uint64(3), e.World.Balance(v))
}

var errLookupDown = ledger.NewRevert("KERNEL_LOOKUP_DOWN")

// outageKernel answers the calls a proxy makes until "fail" is sent,
// after which getApp reverts.
type outageKernel struct {
	vault ident.Address
}

func (k outageKernel) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"getApp": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			if ledger.Load[bool](f.Storage(), "down") {
				return nil, errLookupDown
			}
			return []any{ident.ZeroAddress}, nil
		}},
		"hasInitialized": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{true}, nil
		}},
		"getRecoveryVault": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{k.vault}, nil
		}},
		"fail": {Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			f.Storage().Set("down", true)
			return nil, nil
		}},
	}
}

func TestRecoverFailsWhenLookupFails(t *testing.T) {
	e := testkit.New(t)
	sink := e.Deploy(testkit.Deployer, counter.V1())
	k := e.Deploy(testkit.Deployer, outageKernel{vault: sink})
	inst := e.Deploy(testkit.Deployer, proxy.Upgradeable(), k, counter.AppID)
	e.World.Mint(inst, 5)

	e.MustSend(testkit.Root, k, "fail")
	_, err := e.Send(testkit.Bob, inst, "transferToVault", ident.ZeroAddress)
	assert.ErrorIs(t, err, errLookupDown)
	assert.Equal(t, uint64(5), e.World.Balance(inst))
	assert.Equal(t, uint64(0), e.World.Balance(sink))
}
