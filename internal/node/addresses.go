package node

import (
	"fmt"
	"strings"

	"github.com/ppiankov/chainkernel/internal/ident"
)

// Addresses are the components deployed at genesis.
type Addresses struct {
	Root    ident.Address `json:"root"`
	Factory ident.Address `json:"factory"`

	BaseKernel         ident.Address `json:"base_kernel"`
	BaseACL            ident.Address `json:"base_acl"`
	BaseKillSwitch     ident.Address `json:"base_kill_switch"`
	BaseIssuesRegistry ident.Address `json:"base_issues_registry"`
	BaseVault          ident.Address `json:"base_vault"`
	BaseRepo           ident.Address `json:"base_repo"`
	BaseAPMRegistry    ident.Address `json:"base_apm_registry"`
	BaseCounter        ident.Address `json:"base_counter"`
	BaseCounterV2      ident.Address `json:"base_counter_v2"`

	// RegistryDAO hosts the shared issues registry and the package
	// registry.
	RegistryDAO    ident.Address `json:"registry_dao"`
	IssuesRegistry ident.Address `json:"issues_registry"`
	APMRegistry    ident.Address `json:"apm_registry"`
	CounterRepo    ident.Address `json:"counter_repo"`

	// DAO is the main organization, created with a kill switch.
	DAO        ident.Address `json:"dao"`
	ACL        ident.Address `json:"acl"`
	KillSwitch ident.Address `json:"kill_switch"`
	Vault      ident.Address `json:"vault"`
	Counter    ident.Address `json:"counter"`
}

// Names maps every well-known name to its address.
func (a Addresses) Names() map[string]ident.Address {
	return map[string]ident.Address{
		"root":                 a.Root,
		"factory":              a.Factory,
		"base_kernel":          a.BaseKernel,
		"base_acl":             a.BaseACL,
		"base_kill_switch":     a.BaseKillSwitch,
		"base_issues_registry": a.BaseIssuesRegistry,
		"base_vault":           a.BaseVault,
		"base_repo":            a.BaseRepo,
		"base_apm_registry":    a.BaseAPMRegistry,
		"base_counter":         a.BaseCounter,
		"base_counter_v2":      a.BaseCounterV2,
		"registry_dao":         a.RegistryDAO,
		"issues_registry":      a.IssuesRegistry,
		"apm_registry":         a.APMRegistry,
		"counter_repo":         a.CounterRepo,
		"dao":                  a.DAO,
		"kernel":               a.DAO,
		"acl":                  a.ACL,
		"kill_switch":          a.KillSwitch,
		"vault":                a.Vault,
		"counter":              a.Counter,
	}
}

// Resolve turns "@name", a well-known name or a hex address into an
// address.
func (a Addresses) Resolve(s string) (ident.Address, error) {
	name := strings.TrimPrefix(s, "@")
	if addr, ok := a.Names()[name]; ok {
		return addr, nil
	}
	if strings.HasPrefix(s, "@") {
		return ident.ZeroAddress, fmt.Errorf("unknown component %q", s)
	}
	return ident.ParseAddress(s)
}

// Entity resolves a sender: anything Resolve accepts, or else a human
// name hashed with ident.EntityFromName ("alice").
func (a Addresses) Entity(s string) (ident.Address, error) {
	if s == "" {
		return ident.ZeroAddress, fmt.Errorf("empty entity")
	}
	if addr, err := a.Resolve(s); err == nil {
		return addr, nil
	} else if strings.HasPrefix(s, "@") || strings.HasPrefix(s, "0x") {
		return ident.ZeroAddress, err
	}
	return ident.EntityFromName(s), nil
}
