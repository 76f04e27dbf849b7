package killswitch

import (
	"github.com/ppiankov/chainkernel/internal/app"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/lifecycle"
)

// Roles on the kill switch app.
var (
	SetDefaultIssuesRegistryRole = ident.Keccak("SET_DEFAULT_ISSUES_REGISTRY_ROLE")
	SetIssuesRegistryRole        = ident.Keccak("SET_ISSUES_REGISTRY_ROLE")
	SetContractActionRole        = ident.Keccak("SET_CONTRACT_ACTION_ROLE")
	SetLowestAllowedSeverityRole = ident.Keccak("SET_LOWEST_ALLOWED_SEVERITY_ROLE")
)

// Roles lists every kill switch role, in the order they are handed out.
var Roles = []ident.ID{
	SetDefaultIssuesRegistryRole,
	SetIssuesRegistryRole,
	SetContractActionRole,
	SetLowestAllowedSeverityRole,
}

var ErrRegistryNotContract = ledger.NewRevert("KILL_SWITCH_ISSUES_REGISTRY_NOT_CONTRACT")

// Event names.
const (
	EventDefaultIssuesRegistrySet = "DefaultIssuesRegistrySet"
	EventIssuesRegistrySet        = "IssuesRegistrySet"
	EventContractActionSet        = "ContractActionSet"
	EventLowestAllowedSeveritySet = "LowestAllowedSeveritySet"
)

const defaultRegistryKey = "killswitch.defaultIssuesRegistry"

func actionKey(c ident.Address) string { return ledger.Key("killswitch.action", c) }
func lowestKey(c ident.Address) string { return ledger.Key("killswitch.lowestAllowed", c) }
func registryKey(c ident.Address) string { return ledger.Key("killswitch.registry", c) }

// KillSwitch is the kill switch app code.
type KillSwitch struct {
	app.Template
}

func (k KillSwitch) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"initialize":                       {Handler: k.initialize},
		"setDefaultIssuesRegistry":         {Handler: k.setDefaultIssuesRegistry},
		"setIssuesRegistry":                {Handler: k.setIssuesRegistry},
		"setContractAction":                {Handler: k.setContractAction},
		"setLowestAllowedSeverity":         {Handler: k.setLowestAllowedSeverity},
		"defaultIssuesRegistry":            {View: true, Handler: viewOf(func(f *ledger.Frame, _ ident.Address) any { return defaultRegistry(f) })},
		"getIssuesRegistry":                {View: true, Handler: viewOf(func(f *ledger.Frame, c ident.Address) any { return issuesRegistry(f, c) })},
		"getContractAction":                {View: true, Handler: viewOf(func(f *ledger.Frame, c ident.Address) any { return contractAction(f, c) })},
		"getLowestAllowedSeverity":         {View: true, Handler: viewOf(func(f *ledger.Frame, c ident.Address) any { return lowestAllowed(f, c) })},
		"isSeverityIgnored":                {View: true, Handler: k.isSeverityIgnored},
		"shouldDenyCallingContract":        {View: true, Handler: k.shouldDenyCallingContract},
		"SET_CONTRACT_ACTION_ROLE":         {View: true, Handler: constant(SetContractActionRole)},
		"SET_ISSUES_REGISTRY_ROLE":         {View: true, Handler: constant(SetIssuesRegistryRole)},
		"SET_LOWEST_ALLOWED_SEVERITY_ROLE": {View: true, Handler: constant(SetLowestAllowedSeverityRole)},
		"SET_DEFAULT_ISSUES_REGISTRY_ROLE": {View: true, Handler: constant(SetDefaultIssuesRegistryRole)},
	}.Merge(app.BaseMethods())
}

func (KillSwitch) initialize(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var registry ident.Address
	if err := args.Decode(&registry); err != nil {
		return nil, err
	}
	if err := lifecycle.Initialize(f); err != nil {
		return nil, err
	}
	return nil, setDefaultRegistry(f, registry)
}

func (KillSwitch) setDefaultIssuesRegistry(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var registry ident.Address
	if err := args.Decode(&registry); err != nil {
		return nil, err
	}
	if err := app.Auth(f, SetDefaultIssuesRegistryRole); err != nil {
		return nil, err
	}
	return nil, setDefaultRegistry(f, registry)
}

func (KillSwitch) setIssuesRegistry(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var contract, registry ident.Address
	if err := args.Decode(&contract, &registry); err != nil {
		return nil, err
	}
	if err := app.Auth(f, SetIssuesRegistryRole); err != nil {
		return nil, err
	}
	if !f.IsContract(registry) {
		return nil, ledger.Revertf(ErrRegistryNotContract.Reason, "%s", registry.Short())
	}
	f.Storage().Set(registryKey(contract), registry)
	f.Emit(EventIssuesRegistrySet,
		ledger.F("contract", contract),
		ledger.F("issuesRegistry", registry),
		ledger.F("sender", f.Sender()),
	)
	return nil, nil
}

func (KillSwitch) setContractAction(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var contract ident.Address
	var action Action
	if err := args.Decode(&contract, &action); err != nil {
		return nil, err
	}
	if err := app.Auth(f, SetContractActionRole); err != nil {
		return nil, err
	}
	f.Storage().Set(actionKey(contract), action)
	f.Emit(EventContractActionSet,
		ledger.F("contract", contract),
		ledger.F("action", action),
	)
	return nil, nil
}

func (KillSwitch) setLowestAllowedSeverity(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var contract ident.Address
	var sev Severity
	if err := args.Decode(&contract, &sev); err != nil {
		return nil, err
	}
	if err := app.Auth(f, SetLowestAllowedSeverityRole); err != nil {
		return nil, err
	}
	f.Storage().Set(lowestKey(contract), sev)
	f.Emit(EventLowestAllowedSeveritySet,
		ledger.F("contract", contract),
		ledger.F("severity", sev),
	)
	return nil, nil
}

func (KillSwitch) isSeverityIgnored(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var contract ident.Address
	if err := args.Decode(&contract); err != nil {
		return nil, err
	}
	reported, err := reportedSeverity(f, contract)
	if err != nil {
		return nil, err
	}
	return []any{!Evaluate(ActionCheck, reported, lowestAllowed(f, contract))}, nil
}

func (KillSwitch) shouldDenyCallingContract(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var contract ident.Address
	if err := args.Decode(&contract); err != nil {
		return nil, err
	}
	action := contractAction(f, contract)
	if action != ActionCheck {
		return []any{Evaluate(action, SeverityNone, SeverityNone)}, nil
	}
	reported, err := reportedSeverity(f, contract)
	if err != nil {
		return nil, err
	}
	return []any{Evaluate(action, reported, lowestAllowed(f, contract))}, nil
}

func setDefaultRegistry(f *ledger.Frame, registry ident.Address) error {
	if !f.IsContract(registry) {
		return ledger.Revertf(ErrRegistryNotContract.Reason, "%s", registry.Short())
	}
	f.Storage().Set(defaultRegistryKey, registry)
	f.Emit(EventDefaultIssuesRegistrySet, ledger.F("issuesRegistry", registry))
	return nil
}

func defaultRegistry(f *ledger.Frame) ident.Address {
	return ledger.Load[ident.Address](f.Storage(), defaultRegistryKey)
}

func issuesRegistry(f *ledger.Frame, contract ident.Address) ident.Address {
	if r := ledger.Load[ident.Address](f.Storage(), registryKey(contract)); !r.IsZero() {
		return r
	}
	return defaultRegistry(f)
}

func contractAction(f *ledger.Frame, contract ident.Address) Action {
	return ledger.Load[Action](f.Storage(), actionKey(contract))
}

func lowestAllowed(f *ledger.Frame, contract ident.Address) Severity {
	return ledger.Load[Severity](f.Storage(), lowestKey(contract))
}

func reportedSeverity(f *ledger.Frame, contract ident.Address) (Severity, error) {
	registry := issuesRegistry(f, contract)
	if registry.IsZero() {
		return SeverityNone, nil
	}
	return ledger.First[Severity](f.StaticCall(registry, "getSeverityFor", contract))
}

// viewOf adapts a getter keyed by an optional contract argument.
func viewOf(get func(f *ledger.Frame, contract ident.Address) any) ledger.Handler {
	return func(f *ledger.Frame, args ledger.Args) ([]any, error) {
		var contract ident.Address
		if len(args) > 0 {
			if err := args.Decode(&contract); err != nil {
				return nil, err
			}
		}
		return []any{get(f, contract)}, nil
	}
}

func constant(v any) ledger.Handler {
	return func(*ledger.Frame, ledger.Args) ([]any, error) { return []any{v}, nil }
}
