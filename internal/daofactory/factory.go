// Package daofactory deploys ready-to-use DAOs: a kernel proxy over a
// shared kernel base, initialized with a shared ACL base, optionally with
// a kill switch installed.
package daofactory

import (
	"github.com/ppiankov/chainkernel/internal/acl"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/kernel"
	"github.com/ppiankov/chainkernel/internal/killswitch"
	"github.com/ppiankov/chainkernel/internal/ledger"
)

var ErrMissingBaseKillSwitch = ledger.NewRevert("DF_MISSING_BASE_KILL_SWITCH")

// Event names.
const (
	EventDeployDAO        = "DeployDAO"
	EventDeployKillSwitch = "DeployKillSwitch"
)

const (
	baseKernelKey     = "factory.baseKernel"
	baseACLKey        = "factory.baseACL"
	baseKillSwitchKey = "factory.baseKillSwitch"
)

// Factory is the DAO factory code. Constructor arguments: baseKernel,
// baseACL[, baseKillSwitch].
type Factory struct{}

func (Factory) Construct(f *ledger.Frame, args ledger.Args) error {
	var baseKernel, baseACL, baseKillSwitch ident.Address
	var err error
	if len(args) == 2 {
		err = args.Decode(&baseKernel, &baseACL)
	} else {
		err = args.Decode(&baseKernel, &baseACL, &baseKillSwitch)
	}
	if err != nil {
		return err
	}
	st := f.Storage()
	st.Set(baseKernelKey, baseKernel)
	st.Set(baseACLKey, baseACL)
	st.Set(baseKillSwitchKey, baseKillSwitch)
	return nil
}

func (d Factory) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"newDAO":               {Handler: d.newDAO},
		"newDAOWithKillSwitch": {Handler: d.newDAOWithKillSwitch},
		"baseKernel":           {View: true, Handler: load(baseKernelKey)},
		"baseACL":              {View: true, Handler: load(baseACLKey)},
		"baseKillSwitch":       {View: true, Handler: load(baseKillSwitchKey)},
	}
}

// newDAO deploys a kernel proxy initialized for root. Root holds only
// CREATE_PERMISSIONS_ROLE on the new ACL.
func (Factory) newDAO(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var root ident.Address
	if err := args.Decode(&root); err != nil {
		return nil, err
	}
	dao, err := deployDAO(f, root)
	if err != nil {
		return nil, err
	}
	return []any{dao}, nil
}

// newDAOWithKillSwitch initializes the DAO for the factory itself so it
// can install the kill switch, then hands every role it used to root and
// drops its own.
func (Factory) newDAOWithKillSwitch(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var root, registry ident.Address
	if err := args.Decode(&root, &registry); err != nil {
		return nil, err
	}
	baseKillSwitch := ledger.Load[ident.Address](f.Storage(), baseKillSwitchKey)
	if baseKillSwitch.IsZero() {
		return nil, ErrMissingBaseKillSwitch
	}

	self := f.Self()
	dao, err := deployDAO(f, self)
	if err != nil {
		return nil, err
	}
	aclAddr, err := ledger.First[ident.Address](f.StaticCall(dao, "acl"))
	if err != nil {
		return nil, err
	}
	call := func(to ident.Address, method string, args ...any) ([]any, error) {
		return f.Call(to, 0, method, args...)
	}

	if _, err := call(aclAddr, "createPermission", self, dao, kernel.AppManagerRole, self); err != nil {
		return nil, err
	}
	init := ledger.Invocation{Method: "initialize", Args: []any{registry}}
	ks, err := ledger.First[ident.Address](call(dao, "newAppInstance", ident.KillSwitchAppID, baseKillSwitch, init, true))
	if err != nil {
		return nil, err
	}
	for _, role := range killswitch.Roles {
		if _, err := call(aclAddr, "createPermission", root, ks, role, root); err != nil {
			return nil, err
		}
	}
	f.Emit(EventDeployKillSwitch, ledger.F("killSwitch", ks))

	steps := []struct {
		method string
		args   []any
	}{
		{"revokePermission", []any{self, dao, kernel.AppManagerRole}},
		{"setPermissionManager", []any{root, dao, kernel.AppManagerRole}},
		{"grantPermission", []any{root, aclAddr, acl.CreatePermissionsRole}},
		{"revokePermission", []any{self, aclAddr, acl.CreatePermissionsRole}},
		{"setPermissionManager", []any{root, aclAddr, acl.CreatePermissionsRole}},
	}
	for _, s := range steps {
		if _, err := call(aclAddr, s.method, s.args...); err != nil {
			return nil, err
		}
	}
	return []any{dao}, nil
}

func deployDAO(f *ledger.Frame, root ident.Address) (ident.Address, error) {
	baseKernel := ledger.Load[ident.Address](f.Storage(), baseKernelKey)
	baseACL := ledger.Load[ident.Address](f.Storage(), baseACLKey)

	dao, err := f.Deploy(kernel.KernelProxy{}, 0, baseKernel)
	if err != nil {
		return ident.ZeroAddress, err
	}
	if _, err := f.Call(dao, 0, "initialize", baseACL, root); err != nil {
		return ident.ZeroAddress, err
	}
	f.Emit(EventDeployDAO, ledger.F("dao", dao))
	return dao, nil
}

func load(key string) ledger.Handler {
	return func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
		return []any{ledger.Load[ident.Address](f.Storage(), key)}, nil
	}
}
