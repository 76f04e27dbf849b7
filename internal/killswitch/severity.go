// Package killswitch lets a DAO block calls into app code that has known
// issues. An issues registry records a severity per code address; the
// kill switch app turns that severity, plus a per-code action and
// threshold, into an allow or deny answer for protected app methods.
package killswitch

import (
	"fmt"
	"strings"

	"github.com/ppiankov/chainkernel/internal/ledger"
)

// Severity of a reported issue.
type Severity uint8

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMid
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"none", "low", "mid", "high", "critical"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("severity(%d)", uint8(s))
}

// ParseSeverity accepts a severity name, case-insensitive.
func ParseSeverity(s string) (Severity, error) {
	for i, n := range severityNames {
		if strings.EqualFold(s, n) {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	p, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = p
	return nil
}

// DecodeArg accepts a Severity, its name or its number.
func (s *Severity) DecodeArg(v any) error {
	switch x := v.(type) {
	case Severity:
		*s = x
		return nil
	case string:
		return s.UnmarshalText([]byte(x))
	}
	n, err := ledger.ToUint64(v)
	if err != nil {
		return err
	}
	if n > uint64(SeverityCritical) {
		return fmt.Errorf("severity %d out of range", n)
	}
	*s = Severity(n)
	return nil
}

// Action overrides severity checks for one code address.
type Action uint8

const (
	// ActionCheck compares the reported severity with the threshold.
	ActionCheck Action = iota
	// ActionIgnore always allows.
	ActionIgnore
	// ActionDeny always blocks.
	ActionDeny
)

var actionNames = [...]string{"check", "ignore", "deny"}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseAction accepts an action name, case-insensitive.
func ParseAction(s string) (Action, error) {
	for i, n := range actionNames {
		if strings.EqualFold(s, n) {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Action) UnmarshalText(b []byte) error {
	p, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = p
	return nil
}

// DecodeArg accepts an Action, its name or its number.
func (a *Action) DecodeArg(v any) error {
	switch x := v.(type) {
	case Action:
		*a = x
		return nil
	case string:
		return a.UnmarshalText([]byte(x))
	}
	n, err := ledger.ToUint64(v)
	if err != nil {
		return err
	}
	if n > uint64(ActionDeny) {
		return fmt.Errorf("action %d out of range", n)
	}
	*a = Action(n)
	return nil
}

// Evaluate decides whether a call must be blocked. An explicit action
// wins; otherwise the call is blocked when the reported severity is above
// the lowest allowed one.
func Evaluate(action Action, reported, lowestAllowed Severity) bool {
	switch action {
	case ActionDeny:
		return true
	case ActionIgnore:
		return false
	default:
		return reported > lowestAllowed
	}
}
