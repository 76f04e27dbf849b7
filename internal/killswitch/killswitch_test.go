package killswitch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chainkernel/internal/acl"
	"github.com/ppiankov/chainkernel/internal/app"
	"github.com/ppiankov/chainkernel/internal/apps/counter"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/kernel"
	"github.com/ppiankov/chainkernel/internal/killswitch"
	"github.com/ppiankov/chainkernel/internal/testkit"
)

type fixture struct {
	e        *testkit.Env
	dao      ident.Address
	ks       ident.Address
	registry ident.Address
	code     ident.Address
	counter  ident.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	e := testkit.New(t)

	regDAO := e.NewDAO(testkit.Root)
	e.GrantAppManager(regDAO, testkit.Root)
	regBase := e.Deploy(testkit.Deployer, killswitch.IssuesRegistry{})
	registry := e.NewApp(regDAO, testkit.Root, ident.IssuesRegistryAppID, regBase, testkit.Init("initialize"), false)
	e.CreatePermission(regDAO, testkit.Root, testkit.Root, registry, killswitch.SetSeverityRole)

	dao := e.NewDAOWithKillSwitch(testkit.Root, registry)
	e.MustSend(testkit.Root, e.ACL(dao), "grantPermission", testkit.Root, dao, kernel.AppManagerRole)

	code := e.Deploy(testkit.Deployer, counter.V1())
	inst := e.NewApp(dao, testkit.Root, counter.AppID, code, testkit.Init("initialize", testkit.Root), false)

	return &fixture{
		e:        e,
		dao:      dao,
		ks:       testkit.Get[ident.Address](e, dao, "killSwitch"),
		registry: registry,
		code:     code,
		counter:  inst,
	}
}

func (fx *fixture) call(from ident.Address, method string) error {
	_, err := fx.e.Send(from, fx.counter, method)
	return err
}

func TestSeverityScenario(t *testing.T) {
	fx := newFixture(t)
	owner, other := testkit.Root, testkit.Alice

	assert.NoError(t, fx.call(owner, "increment"))
	assert.NoError(t, fx.call(other, "increment"))

	fx.e.MustSend(testkit.Root, fx.registry, "setSeverityFor", fx.code, killswitch.SeverityMid)
	assert.True(t, testkit.Get[bool](fx.e, fx.dao, "shouldDenyCallingContract", fx.code))

	assert.ErrorIs(t, fx.call(owner, "increment"), app.ErrKillSwitchDenied)
	assert.ErrorIs(t, fx.call(other, "increment"), app.ErrKillSwitchDenied)
	// owner escape hatch
	assert.NoError(t, fx.call(owner, "reset"))
	assert.ErrorIs(t, fx.call(other, "reset"), app.ErrKillSwitchDenied)
	// untagged reads are never checked
	assert.Equal(t, uint64(0), testkit.Get[uint64](fx.e, fx.counter, "value"))

	fx.e.MustSend(testkit.Root, fx.ks, "setContractAction", fx.code, killswitch.ActionIgnore)
	assert.NoError(t, fx.call(owner, "increment"))
	assert.NoError(t, fx.call(other, "increment"))
	assert.Equal(t, uint64(2), testkit.Get[uint64](fx.e, fx.counter, "value"))
}

func TestExplicitDenyWins(t *testing.T) {
	fx := newFixture(t)
	fx.e.MustSend(testkit.Root, fx.ks, "setContractAction", fx.code, killswitch.ActionDeny)
	assert.ErrorIs(t, fx.call(testkit.Root, "increment"), app.ErrKillSwitchDenied)
	assert.Equal(t, killswitch.ActionDeny, testkit.Get[killswitch.Action](fx.e, fx.ks, "getContractAction", fx.code))

	fx.e.MustSend(testkit.Root, fx.ks, "setContractAction", fx.code, "check")
	assert.NoError(t, fx.call(testkit.Root, "increment"))
}

func TestThreshold(t *testing.T) {
	fx := newFixture(t)
	fx.e.MustSend(testkit.Root, fx.registry, "setSeverityFor", fx.code, killswitch.SeverityMid)
	fx.e.MustSend(testkit.Root, fx.ks, "setLowestAllowedSeverity", fx.code, killswitch.SeverityHigh)
	assert.True(t, testkit.Get[bool](fx.e, fx.ks, "isSeverityIgnored", fx.code))
	assert.NoError(t, fx.call(testkit.Alice, "increment"))

	fx.e.MustSend(testkit.Root, fx.registry, "setSeverityFor", fx.code, killswitch.SeverityCritical)
	assert.False(t, testkit.Get[bool](fx.e, fx.ks, "isSeverityIgnored", fx.code))
	assert.ErrorIs(t, fx.call(testkit.Alice, "increment"), app.ErrKillSwitchDenied)

	fx.e.MustSend(testkit.Root, fx.registry, "setSeverityFor", fx.code, "none")
	assert.False(t, testkit.Get[bool](fx.e, fx.registry, "hasSeverity", fx.code))
	assert.NoError(t, fx.call(testkit.Alice, "increment"))
}

func TestPerContractRegistry(t *testing.T) {
	fx := newFixture(t)
	e := fx.e
	assert.Equal(t, fx.registry, testkit.Get[ident.Address](e, fx.ks, "getIssuesRegistry", fx.code))

	otherDAO := e.NewDAO(testkit.Root)
	e.GrantAppManager(otherDAO, testkit.Root)
	base := testkit.Get[ident.Address](e, otherDAO, "getApp", ident.AppBasesNamespace, ident.IssuesRegistryAppID)
	require.True(t, base.IsZero())
	regBase := e.Deploy(testkit.Deployer, killswitch.IssuesRegistry{})
	other := e.NewApp(otherDAO, testkit.Root, ident.IssuesRegistryAppID, regBase, testkit.Init("initialize"), false)
	e.CreatePermission(otherDAO, testkit.Root, testkit.Root, other, killswitch.SetSeverityRole)

	_, err := e.Send(testkit.Alice, fx.ks, "setIssuesRegistry", fx.code, other)
	assert.ErrorIs(t, err, app.ErrAuthFailed)
	_, err = e.Send(testkit.Root, fx.ks, "setIssuesRegistry", fx.code, testkit.Bob)
	assert.ErrorIs(t, err, killswitch.ErrRegistryNotContract)

	e.MustSend(testkit.Root, fx.ks, "setIssuesRegistry", fx.code, other)
	e.MustSend(testkit.Root, fx.registry, "setSeverityFor", fx.code, killswitch.SeverityCritical)
	assert.NoError(t, fx.call(testkit.Alice, "increment"))

	e.MustSend(testkit.Root, other, "setSeverityFor", fx.code, killswitch.SeverityLow)
	assert.ErrorIs(t, fx.call(testkit.Alice, "increment"), app.ErrKillSwitchDenied)
}

func TestRolesLeftWithRoot(t *testing.T) {
	fx := newFixture(t)
	e := fx.e
	a := e.ACL(fx.dao)
	for _, role := range killswitch.Roles {
		assert.True(t, testkit.Get[bool](e, a, "hasPermission", testkit.Root, fx.ks, role))
		assert.Equal(t, testkit.Root, testkit.Get[ident.Address](e, a, "getPermissionManager", fx.ks, role))
	}
	assert.True(t, testkit.Get[bool](e, a, "hasPermission", testkit.Root, a, acl.CreatePermissionsRole))
	assert.False(t, testkit.Get[bool](e, a, "hasPermission", e.Factory, a, acl.CreatePermissionsRole))
	assert.False(t, testkit.Get[bool](e, a, "hasPermission", e.Factory, fx.dao, kernel.AppManagerRole))

	_, err := e.Send(testkit.Alice, fx.ks, "setContractAction", fx.code, killswitch.ActionDeny)
	assert.ErrorIs(t, err, app.ErrAuthFailed)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		action   killswitch.Action
		reported killswitch.Severity
		lowest   killswitch.Severity
		deny     bool
	}{
		{killswitch.ActionCheck, killswitch.SeverityNone, killswitch.SeverityNone, false},
		{killswitch.ActionCheck, killswitch.SeverityLow, killswitch.SeverityNone, true},
		{killswitch.ActionCheck, killswitch.SeverityMid, killswitch.SeverityMid, false},
		{killswitch.ActionCheck, killswitch.SeverityHigh, killswitch.SeverityMid, true},
		{killswitch.ActionIgnore, killswitch.SeverityCritical, killswitch.SeverityNone, false},
		{killswitch.ActionDeny, killswitch.SeverityNone, killswitch.SeverityCritical, true},
	}
	for _, tt := range tests {
		got := killswitch.Evaluate(tt.action, tt.reported, tt.lowest)
		assert.Equal(t, tt.deny, got, "%s %s %s", tt.action, tt.reported, tt.lowest)
	}
}

func TestParseNames(t *testing.T) {
	s, err := killswitch.ParseSeverity("MID")
	require.NoError(t, err)
	assert.Equal(t, killswitch.SeverityMid, s)
	_, err = killswitch.ParseSeverity("severe")
	assert.Error(t, err)

	a, err := killswitch.ParseAction("ignore")
	require.NoError(t, err)
	assert.Equal(t, killswitch.ActionIgnore, a)

	var sev killswitch.Severity
	require.NoError(t, sev.DecodeArg(float64(4)))
	assert.Equal(t, killswitch.SeverityCritical, sev)
	assert.Error(t, sev.DecodeArg(float64(5)))
}
