package killswitch

import (
	"github.com/ppiankov/chainkernel/internal/app"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/lifecycle"
)

// SetSeverityRole allows reporting severities.
var SetSeverityRole = ident.Keccak("SET_SEVERITY_ROLE")

// EventChangeSeverity is emitted on every report.
const EventChangeSeverity = "ChangeSeverity"

func severityKey(entry ident.Address) string {
	return ledger.Key("issues.severity", entry)
}

// IssuesRegistry is the app that records reported severities per code
// address.
type IssuesRegistry struct {
	app.Template
}

func (r IssuesRegistry) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"initialize": {Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			if err := args.Decode(); err != nil {
				return nil, err
			}
			return nil, lifecycle.Initialize(f)
		}},
		"setSeverityFor": {Handler: r.setSeverityFor},
		"hasSeverity": {View: true, Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			var entry ident.Address
			if err := args.Decode(&entry); err != nil {
				return nil, err
			}
			return []any{severityFor(f, entry) != SeverityNone}, nil
		}},
		"getSeverityFor": {View: true, Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			var entry ident.Address
			if err := args.Decode(&entry); err != nil {
				return nil, err
			}
			return []any{severityFor(f, entry)}, nil
		}},
		"SET_SEVERITY_ROLE": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{SetSeverityRole}, nil
		}},
	}.Merge(app.BaseMethods())
}

func (IssuesRegistry) setSeverityFor(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var entry ident.Address
	var sev Severity
	if err := args.Decode(&entry, &sev); err != nil {
		return nil, err
	}
	if err := app.Auth(f, SetSeverityRole); err != nil {
		return nil, err
	}
	if sev == SeverityNone {
		f.Storage().Delete(severityKey(entry))
	} else {
		f.Storage().Set(severityKey(entry), sev)
	}
	f.Emit(EventChangeSeverity,
		ledger.F("entry", entry),
		ledger.F("severity", sev),
		ledger.F("sender", f.Sender()),
	)
	return nil, nil
}

func severityFor(f *ledger.Frame, entry ident.Address) Severity {
	return ledger.Load[Severity](f.Storage(), severityKey(entry))
}
