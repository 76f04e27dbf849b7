package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chainkernel/internal/app"
	"github.com/ppiankov/chainkernel/internal/apps/counter"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/kernel"
	"github.com/ppiankov/chainkernel/internal/killswitch"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/logging"
	"github.com/ppiankov/chainkernel/internal/node"
	"github.com/ppiankov/chainkernel/internal/vault"
)

func init() {
	rootCmd.AddCommand(demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the permission, upgrade and kill switch walkthrough",
	Long: "Boots an in-memory node and walks through a permission grant, an\n" +
		"app upgrade published through the package registry and a kill switch\n" +
		"block. Nothing is written to disk.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd.Context(), cmd.OutOrStdout())
	},
}

// demo runs scripted transactions and checks each outcome.
type demo struct {
	ctx  context.Context
	w    io.Writer
	n    *node.Node
	step int
}

func (d *demo) expect(title string, msg ledger.Msg, want error) (*ledger.Receipt, error) {
	d.step++
	r, err := d.n.Submit(d.ctx, msg)
	switch {
	case want == nil && err != nil:
		return nil, fmt.Errorf("step %d (%s): unexpected revert: %w", d.step, title, err)
	case want != nil && !errors.Is(err, want):
		return nil, fmt.Errorf("step %d (%s): want %v, got %v", d.step, title, want, err)
	}
	outcome := "ok"
	if err != nil {
		outcome = "reverted " + ledger.Reason(err)
	}
	fmt.Fprintf(d.w, "  [%d] %-52s %s\n", d.step, title, outcome)
	return r, nil
}

func (d *demo) counterValue() (uint64, error) {
	return ledger.First[uint64](d.n.Query(d.ctx, ident.ZeroAddress, d.n.Addresses().Counter, "value"))
}

func runDemo(ctx context.Context, w io.Writer) error {
	root := ident.EntityFromName("root")
	alice := ident.EntityFromName("alice")

	n, err := node.New(ctx, root, node.WithLogger(logging.Component(logging.Discard(), "demo")))
	if err != nil {
		return err
	}
	a := n.Addresses()
	n.World().Mint(root, 1000)
	d := &demo{ctx: ctx, w: w, n: n}

	fmt.Fprintln(w, "=== chainkernel demo ===")
	fmt.Fprintf(w, "DAO %s  ACL %s  kill switch %s\n\n", a.DAO.Short(), a.ACL.Short(), a.KillSwitch.Short())

	fmt.Fprintln(w, "Permissions")
	steps := []struct {
		title string
		msg   ledger.Msg
		want  error
	}{
		{"root deposits 500 into the vault",
			ledger.Msg{From: root, To: a.Vault, Value: 500, Method: "deposit", Args: []any{ident.ZeroAddress, uint64(500)}}, nil},
		{"alice transfers 100 out of the vault",
			ledger.Msg{From: alice, To: a.Vault, Method: "transfer", Args: []any{ident.ZeroAddress, alice, uint64(100)}}, app.ErrAuthFailed},
		{"root grants alice TRANSFER_ROLE on the vault",
			ledger.Msg{From: root, To: a.ACL, Method: "grantPermission", Args: []any{alice, a.Vault, vault.TransferRole}}, nil},
		{"alice transfers 100 out of the vault",
			ledger.Msg{From: alice, To: a.Vault, Method: "transfer", Args: []any{ident.ZeroAddress, alice, uint64(100)}}, nil},
	}
	for _, s := range steps {
		if _, err := d.expect(s.title, s.msg, s.want); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "  alice balance: %d\n\n", n.World().Balance(alice))

	fmt.Fprintln(w, "Upgrade")
	steps = []struct {
		title string
		msg   ledger.Msg
		want  error
	}{
		{"root publishes counter 2.0.0",
			ledger.Msg{From: root, To: a.CounterRepo, Method: "newVersion", Args: []any{"2.0.0", a.BaseCounterV2, "ipfs:counter-v2"}}, nil},
		{"alice points the counter base at 2.0.0",
			ledger.Msg{From: alice, To: a.DAO, Method: "setApp", Args: []any{ident.AppBasesNamespace, counter.AppID, a.BaseCounterV2}}, kernel.ErrAuthFailed},
		{"root points the counter base at 2.0.0",
			ledger.Msg{From: root, To: a.DAO, Method: "setApp", Args: []any{ident.AppBasesNamespace, counter.AppID, a.BaseCounterV2}}, nil},
		{"alice increments the counter",
			ledger.Msg{From: alice, To: a.Counter, Method: "increment"}, nil},
	}
	for _, s := range steps {
		if _, err := d.expect(s.title, s.msg, s.want); err != nil {
			return err
		}
	}
	v, err := d.counterValue()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  counter value: %d (counts by two after the upgrade)\n\n", v)

	fmt.Fprintln(w, "Kill switch")
	critical := killswitch.SeverityCritical
	receipts, err := n.ApplyKillSwitchPolicy(ctx, &killswitch.Policy{Rules: []killswitch.PolicyRule{
		{Contract: a.BaseCounterV2.Hex(), Severity: &critical},
	}})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  counter 2.0.0 reported critical (%d transaction)\n", len(receipts))
	steps = []struct {
		title string
		msg   ledger.Msg
		want  error
	}{
		{"alice increments the counter",
			ledger.Msg{From: alice, To: a.Counter, Method: "increment"}, app.ErrKillSwitchDenied},
		{"root (the counter owner) resets it",
			ledger.Msg{From: root, To: a.Counter, Method: "reset"}, nil},
		{"root rolls the counter base back to 1.0.0",
			ledger.Msg{From: root, To: a.DAO, Method: "setApp", Args: []any{ident.AppBasesNamespace, counter.AppID, a.BaseCounter}}, nil},
		{"alice increments the counter",
			ledger.Msg{From: alice, To: a.Counter, Method: "increment"}, nil},
	}
	for _, s := range steps {
		if _, err := d.expect(s.title, s.msg, s.want); err != nil {
			return err
		}
	}
	if v, err = d.counterValue(); err != nil {
		return err
	}
	fmt.Fprintf(w, "  counter value: %d\n\n", v)
	fmt.Fprintf(w, "demo complete: %d transactions, block %d\n", d.step, n.World().Block())
	return nil
}
