package node

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/killswitch"
	"github.com/ppiankov/chainkernel/internal/ledger"
)

// ResolveCode turns a policy contract reference into a code address: a
// hex address, or an app name ("counter", "vault.apm.eth") resolved to
// the base registered in the main DAO.
func (n *Node) ResolveCode(ctx context.Context, ref string) (ident.Address, error) {
	if addr, err := ident.ParseAddress(ref); err == nil {
		return addr, nil
	}
	name := ref
	if !strings.Contains(name, ".") {
		name += ".apm.eth"
	}
	code, err := ledger.First[ident.Address](n.Query(ctx, ident.ZeroAddress, n.addrs.DAO, "getApp",
		ident.AppBasesNamespace, ident.NameHash(name)))
	if err != nil {
		return ident.ZeroAddress, err
	}
	if code.IsZero() {
		return ident.ZeroAddress, fmt.Errorf("no base registered for %q", ref)
	}
	return code, nil
}

// ApplyKillSwitchPolicy brings the kill switch and the issues registry in
// line with p, acting as root. Settings that already match are skipped,
// so re-applying the same policy submits nothing.
func (n *Node) ApplyKillSwitchPolicy(ctx context.Context, p *killswitch.Policy) ([]*ledger.Receipt, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	a := n.addrs
	var receipts []*ledger.Receipt
	apply := func(to ident.Address, getter, setter string, code ident.Address, want any) error {
		cur, err := n.Query(ctx, a.Root, to, getter, code)
		if err != nil {
			return err
		}
		if len(cur) == 1 && cur[0] == want {
			return nil
		}
		r, err := n.Submit(ctx, ledger.Msg{From: a.Root, To: to, Method: setter, Args: []any{code, want}})
		if err != nil {
			return err
		}
		receipts = append(receipts, r)
		return nil
	}

	for i, rule := range p.Rules {
		code, err := n.ResolveCode(ctx, rule.Contract)
		if err != nil {
			return receipts, fmt.Errorf("rule %d: %w", i, err)
		}
		if rule.Action != nil {
			if err := apply(a.KillSwitch, "getContractAction", "setContractAction", code, *rule.Action); err != nil {
				return receipts, fmt.Errorf("rule %d: action: %w", i, err)
			}
		}
		if rule.LowestAllowed != nil {
			if err := apply(a.KillSwitch, "getLowestAllowedSeverity", "setLowestAllowedSeverity", code, *rule.LowestAllowed); err != nil {
				return receipts, fmt.Errorf("rule %d: threshold: %w", i, err)
			}
		}
		if rule.Severity != nil {
			if err := apply(a.IssuesRegistry, "getSeverityFor", "setSeverityFor", code, *rule.Severity); err != nil {
				return receipts, fmt.Errorf("rule %d: severity: %w", i, err)
			}
		}
	}
	n.log.WithFields(logrus.Fields{
		"rules":        len(p.Rules),
		"transactions": len(receipts),
	}).Info("kill switch policy applied")
	return receipts, nil
}
