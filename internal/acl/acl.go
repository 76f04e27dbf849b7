// Package acl is the permission store of a kernel. A permission is the
// triple (entity, app, role). Each (app, role) pair has one manager who
// alone may grant, revoke or hand over that pair.
package acl

import (
	"github.com/ppiankov/chainkernel/internal/app"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/lifecycle"
)

// CreatePermissionsRole allows creating permissions for (app, role) pairs
// that have no manager yet.
var CreatePermissionsRole = ident.Keccak("CREATE_PERMISSIONS_ROLE")

var (
	ErrAuthInitKernel     = ledger.NewRevert("ACL_AUTH_INIT_KERNEL")
	ErrAuthNoManager      = ledger.NewRevert("ACL_AUTH_NO_MANAGER")
	ErrExistentManager    = ledger.NewRevert("ACL_EXISTENT_MANAGER")
	ErrExistentPermission = ledger.NewRevert("ACL_EXISTENT_PERMISSION")
	ErrNoPermission       = ledger.NewRevert("ACL_NO_PERMISSION")
	ErrInvalidManager     = ledger.NewRevert("ACL_INVALID_MANAGER")
)

// Event names.
const (
	EventSetPermission           = "SetPermission"
	EventChangePermissionManager = "ChangePermissionManager"
)

// ACL is the permission store code. Install it behind a proxy.
type ACL struct {
	app.Template
}

func permissionKey(who, where ident.Address, what ident.ID) string {
	return ledger.Key("acl.permissions", who, where, what)
}

func managerKey(where ident.Address, what ident.ID) string {
	return ledger.Key("acl.managers", where, what)
}

func (a ACL) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"initialize":              {Handler: a.initialize},
		"createPermission":        {Handler: a.createPermission},
		"createBurnedPermission":  {Handler: a.createBurnedPermission},
		"grantPermission":         {Handler: a.grantPermission},
		"revokePermission":        {Handler: a.revokePermission},
		"setPermissionManager":    {Handler: a.setPermissionManager},
		"removePermissionManager": {Handler: a.removePermissionManager},
		"burnPermissionManager":   {Handler: a.burnPermissionManager},
		"hasPermission":           {View: true, Handler: a.hasPermission},
		"getPermissionManager":    {View: true, Handler: a.getPermissionManager},
		"CREATE_PERMISSIONS_ROLE": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{CreatePermissionsRole}, nil
		}},
	}.Merge(app.BaseMethods())
}

func (ACL) initialize(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var creator ident.Address
	if err := args.Decode(&creator); err != nil {
		return nil, err
	}
	if err := lifecycle.Initialize(f); err != nil {
		return nil, err
	}
	if f.Sender() != app.Kernel(f) {
		return nil, ledger.Revertf(ErrAuthInitKernel.Reason, "sender %s", f.Sender().Short())
	}
	createPermission(f, creator, f.Self(), CreatePermissionsRole, creator)
	return nil, nil
}

func (ACL) createPermission(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var (
		entity, where, manager ident.Address
		role                   ident.ID
	)
	if err := args.Decode(&entity, &where, &role, &manager); err != nil {
		return nil, err
	}
	if err := requireCreatable(f, where, role); err != nil {
		return nil, err
	}
	if manager.IsZero() {
		return nil, ledger.Revertf(ErrInvalidManager.Reason, "zero manager")
	}
	createPermission(f, entity, where, role, manager)
	return nil, nil
}

func (ACL) createBurnedPermission(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var where ident.Address
	var role ident.ID
	if err := args.Decode(&where, &role); err != nil {
		return nil, err
	}
	if err := requireCreatable(f, where, role); err != nil {
		return nil, err
	}
	setManager(f, ident.BurnEntity, where, role)
	return nil, nil
}

func (ACL) grantPermission(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var entity, where ident.Address
	var role ident.ID
	if err := args.Decode(&entity, &where, &role); err != nil {
		return nil, err
	}
	if err := requireManager(f, where, role); err != nil {
		return nil, err
	}
	if granted(f, entity, where, role) {
		return nil, ledger.Revertf(ErrExistentPermission.Reason, "%s already holds %s", entity.Short(), role.Short())
	}
	setPermission(f, entity, where, role, true)
	return nil, nil
}

func (ACL) revokePermission(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var entity, where ident.Address
	var role ident.ID
	if err := args.Decode(&entity, &where, &role); err != nil {
		return nil, err
	}
	if err := requireManager(f, where, role); err != nil {
		return nil, err
	}
	if !granted(f, entity, where, role) {
		return nil, ledger.Revertf(ErrNoPermission.Reason, "%s does not hold %s", entity.Short(), role.Short())
	}
	setPermission(f, entity, where, role, false)
	return nil, nil
}

func (ACL) setPermissionManager(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var manager, where ident.Address
	var role ident.ID
	if err := args.Decode(&manager, &where, &role); err != nil {
		return nil, err
	}
	if err := requireManager(f, where, role); err != nil {
		return nil, err
	}
	if manager.IsZero() {
		return nil, ledger.Revertf(ErrInvalidManager.Reason, "zero manager")
	}
	setManager(f, manager, where, role)
	return nil, nil
}

func (ACL) removePermissionManager(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var where ident.Address
	var role ident.ID
	if err := args.Decode(&where, &role); err != nil {
		return nil, err
	}
	if err := requireManager(f, where, role); err != nil {
		return nil, err
	}
	setManager(f, ident.ZeroAddress, where, role)
	return nil, nil
}

func (ACL) burnPermissionManager(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var where ident.Address
	var role ident.ID
	if err := args.Decode(&where, &role); err != nil {
		return nil, err
	}
	if err := requireManager(f, where, role); err != nil {
		return nil, err
	}
	setManager(f, ident.BurnEntity, where, role)
	return nil, nil
}

func (ACL) hasPermission(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var who, where ident.Address
	var role ident.ID
	if err := args.Decode(&who, &where, &role); err != nil {
		return nil, err
	}
	return []any{HasPermission(f, who, where, role)}, nil
}

func (ACL) getPermissionManager(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var where ident.Address
	var role ident.ID
	if err := args.Decode(&where, &role); err != nil {
		return nil, err
	}
	return []any{manager(f, where, role)}, nil
}

// HasPermission reads the store in f. It is false for every query while
// the ACL is uninitialized. A grant to AnyEntity applies to everyone.
func HasPermission(f *ledger.Frame, who, where ident.Address, role ident.ID) bool {
	if !lifecycle.HasInitialized(f) {
		return false
	}
	return granted(f, who, where, role) || granted(f, ident.AnyEntity, where, role)
}

func granted(f *ledger.Frame, who, where ident.Address, role ident.ID) bool {
	return ledger.Load[bool](f.Storage(), permissionKey(who, where, role))
}

func manager(f *ledger.Frame, where ident.Address, role ident.ID) ident.Address {
	return ledger.Load[ident.Address](f.Storage(), managerKey(where, role))
}

func requireCreatable(f *ledger.Frame, where ident.Address, role ident.ID) error {
	if err := lifecycle.RequireInitialized(f); err != nil {
		return err
	}
	if err := app.Auth(f, CreatePermissionsRole); err != nil {
		return err
	}
	if m := manager(f, where, role); !m.IsZero() {
		return ledger.Revertf(ErrExistentManager.Reason, "%s/%s managed by %s", where.Short(), role.Short(), m.Short())
	}
	return nil
}

func requireManager(f *ledger.Frame, where ident.Address, role ident.ID) error {
	if err := lifecycle.RequireInitialized(f); err != nil {
		return err
	}
	if m := manager(f, where, role); m.IsZero() || m != f.Sender() {
		return ledger.Revertf(ErrAuthNoManager.Reason, "%s is not the manager of %s/%s", f.Sender().Short(), where.Short(), role.Short())
	}
	return nil
}

func createPermission(f *ledger.Frame, entity, where ident.Address, role ident.ID, mgr ident.Address) {
	setPermission(f, entity, where, role, true)
	setManager(f, mgr, where, role)
}

func setPermission(f *ledger.Frame, entity, where ident.Address, role ident.ID, allowed bool) {
	key := permissionKey(entity, where, role)
	if allowed {
		f.Storage().Set(key, true)
	} else {
		f.Storage().Delete(key)
	}
	f.Emit(EventSetPermission,
		ledger.F("entity", entity),
		ledger.F("app", where),
		ledger.F("role", role),
		ledger.F("allowed", allowed),
	)
}

func setManager(f *ledger.Frame, mgr, where ident.Address, role ident.ID) {
	key := managerKey(where, role)
	if mgr.IsZero() {
		f.Storage().Delete(key)
	} else {
		f.Storage().Set(key, mgr)
	}
	f.Emit(EventChangePermissionManager,
		ledger.F("app", where),
		ledger.F("role", role),
		ledger.F("manager", mgr),
	)
}
