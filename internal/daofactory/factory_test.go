package daofactory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chainkernel/internal/acl"
	"github.com/ppiankov/chainkernel/internal/daofactory"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/kernel"
	"github.com/ppiankov/chainkernel/internal/killswitch"
	"github.com/ppiankov/chainkernel/internal/testkit"
)

func TestNewDAO(t *testing.T) {
	e := testkit.New(t)
	r := e.MustSend(testkit.Alice, e.Factory, "newDAO", testkit.Root)
	dao := testkit.Returned[ident.Address](t, r)

	ev := r.EventsNamed(daofactory.EventDeployDAO)
	require.Len(t, ev, 1)
	assert.Equal(t, dao, ev[0].Get("dao"))

	assert.True(t, testkit.Get[bool](e, dao, "hasInitialized"))
	assert.Equal(t, e.BaseKernel, testkit.Get[ident.Address](e, dao, "implementation"))
	a := e.ACL(dao)
	assert.Equal(t, e.BaseACL, testkit.Get[ident.Address](e, dao, "getApp", ident.AppBasesNamespace, ident.ACLAppID))
	assert.True(t, testkit.Get[bool](e, a, "hasPermission", testkit.Root, a, acl.CreatePermissionsRole))
	assert.False(t, testkit.Get[bool](e, a, "hasPermission", testkit.Root, dao, kernel.AppManagerRole))
	assert.Equal(t, ident.ZeroAddress, testkit.Get[ident.Address](e, dao, "killSwitch"))

	// every DAO is independent
	other := e.NewDAO(testkit.Bob)
	assert.NotEqual(t, dao, other)
	assert.NotEqual(t, a, e.ACL(other))
	assert.False(t, testkit.Get[bool](e, e.ACL(other), "hasPermission", testkit.Root, e.ACL(other), acl.CreatePermissionsRole))
}

func TestNewDAOWithKillSwitch(t *testing.T) {
	e := testkit.New(t)
	regDAO := e.NewDAO(testkit.Root)
	e.GrantAppManager(regDAO, testkit.Root)
	regBase := e.Deploy(testkit.Deployer, killswitch.IssuesRegistry{})
	registry := e.NewApp(regDAO, testkit.Root, ident.IssuesRegistryAppID, regBase, testkit.Init("initialize"), false)

	r := e.MustSend(testkit.Alice, e.Factory, "newDAOWithKillSwitch", testkit.Root, registry)
	dao := testkit.Returned[ident.Address](t, r)
	require.Len(t, r.EventsNamed(daofactory.EventDeployDAO), 1)
	deployed := r.EventsNamed(daofactory.EventDeployKillSwitch)
	require.Len(t, deployed, 1)

	ks := testkit.Get[ident.Address](e, dao, "killSwitch")
	assert.Equal(t, ks, deployed[0].Get("killSwitch"))
	assert.Equal(t, e.BaseKillSwitch, testkit.Get[ident.Address](e, ks, "implementation"))
	assert.Equal(t, registry, testkit.Get[ident.Address](e, ks, "defaultIssuesRegistry"))

	a := e.ACL(dao)
	assert.Equal(t, testkit.Root, testkit.Get[ident.Address](e, a, "getPermissionManager", dao, kernel.AppManagerRole))
	assert.Equal(t, testkit.Root, testkit.Get[ident.Address](e, a, "getPermissionManager", a, acl.CreatePermissionsRole))
	assert.True(t, testkit.Get[bool](e, a, "hasPermission", testkit.Root, a, acl.CreatePermissionsRole))
	for _, holder := range []ident.Address{e.Factory, testkit.Root} {
		assert.False(t, testkit.Get[bool](e, a, "hasPermission", holder, dao, kernel.AppManagerRole))
	}
	assert.False(t, testkit.Get[bool](e, a, "hasPermission", e.Factory, a, acl.CreatePermissionsRole))
}

func TestKillSwitchNeedsBase(t *testing.T) {
	e := testkit.New(t)
	bare := e.Deploy(testkit.Deployer, daofactory.Factory{}, e.BaseKernel, e.BaseACL)
	_, err := e.Send(testkit.Alice, bare, "newDAOWithKillSwitch", testkit.Root, e.BaseACL)
	assert.ErrorIs(t, err, daofactory.ErrMissingBaseKillSwitch)
	assert.Equal(t, ident.ZeroAddress, testkit.Get[ident.Address](e, bare, "baseKillSwitch"))
	assert.Equal(t, e.BaseKernel, testkit.Get[ident.Address](e, bare, "baseKernel"))
}

func TestBadRegistryRevertsWholeDeployment(t *testing.T) {
	e := testkit.New(t)
	before := len(e.Receipts)
	_, err := e.Send(testkit.Alice, e.Factory, "newDAOWithKillSwitch", testkit.Root, testkit.Bob)
	assert.ErrorIs(t, err, killswitch.ErrRegistryNotContract)
	require.Len(t, e.Receipts, before+1)
	assert.Empty(t, e.Receipts[before].Events)
}
