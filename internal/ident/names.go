package ident

// Namespaces partition the kernel's app table.
var (
	CoreNamespace     = Keccak("core")
	AppBasesNamespace = Keccak("base")
	AppAddrNamespace  = Keccak("app")
)

// Well-known app ids.
var (
	KernelAppID         = NameHash("kernel.apm.eth")
	ACLAppID            = NameHash("acl.apm.eth")
	VaultAppID          = NameHash("vault.apm.eth")
	KillSwitchAppID     = NameHash("killswitch.apm.eth")
	IssuesRegistryAppID = NameHash("issues-registry.apm.eth")
	RepoAppID           = NameHash("repo.apm.eth")
	APMRegistryAppID    = NameHash("apm-registry.apm.eth")
)

// NamespaceName returns a readable label for the well-known namespaces.
func NamespaceName(ns ID) string {
	switch ns {
	case CoreNamespace:
		return "core"
	case AppBasesNamespace:
		return "base"
	case AppAddrNamespace:
		return "app"
	default:
		return ns.Short()
	}
}

// ParseNamespace accepts "core", "base", "app" or a hex id.
func ParseNamespace(s string) (ID, error) {
	switch s {
	case "core":
		return CoreNamespace, nil
	case "base":
		return AppBasesNamespace, nil
	case "app":
		return AppAddrNamespace, nil
	}
	return ParseID(s)
}

// AppIDFromString resolves a hex identifier or, failing that, the name
// hash of a dotted package name ("counter.apm.eth").
func AppIDFromString(s string) ID {
	if id, err := ParseID(s); err == nil {
		return id
	}
	return NameHash(s)
}
