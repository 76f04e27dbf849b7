package apm

import (
	"regexp"

	"github.com/ppiankov/chainkernel/internal/app"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/lifecycle"
	"github.com/ppiankov/chainkernel/internal/proxy"
)

// CreateRepoRole allows creating repos in the registry.
var CreateRepoRole = ident.Keccak("CREATE_REPO_ROLE")

var (
	ErrInvalidName = ledger.NewRevert("APMREG_INVALID_NAME")
	ErrRepoExists  = ledger.NewRevert("APMREG_REPO_EXISTS")
	ErrNoRepo      = ledger.NewRevert("APMREG_INEXISTENT_REPO")
)

// EventNewRepo is emitted when a repo is created.
const EventNewRepo = "NewRepo"

// DefaultDomain is the parent of every repo name.
const DefaultDomain = "apm.eth"

var repoName = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

const domainKey = "apm.domain"

func repoKey(name string) string { return ledger.Key("apm.repos", name) }

// Registry is the package registry app code. It must hold
// CREATE_PERMISSIONS_ROLE on its kernel's ACL to hand out repo roles.
type Registry struct {
	app.Template
}

func (r Registry) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"initialize": {Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			var domain string
			if err := args.Decode(&domain); err != nil {
				return nil, err
			}
			if domain == "" {
				domain = DefaultDomain
			}
			if err := lifecycle.Initialize(f); err != nil {
				return nil, err
			}
			f.Storage().Set(domainKey, domain)
			return nil, nil
		}},
		"newRepo":            {Handler: r.newRepo},
		"newRepoWithVersion": {Handler: r.newRepoWithVersion},
		"getRepo": {View: true, Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			var name string
			if err := args.Decode(&name); err != nil {
				return nil, err
			}
			addr := ledger.Load[ident.Address](f.Storage(), repoKey(name))
			if addr.IsZero() {
				return nil, ledger.Revertf(ErrNoRepo.Reason, "%q", name)
			}
			return []any{addr}, nil
		}},
		"domain": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{ledger.Load[string](f.Storage(), domainKey)}, nil
		}},
		"CREATE_REPO_ROLE": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{CreateRepoRole}, nil
		}},
	}.Merge(app.BaseMethods())
}

func (Registry) newRepo(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var name string
	var dev ident.Address
	if err := args.Decode(&name, &dev); err != nil {
		return nil, err
	}
	if err := app.Auth(f, CreateRepoRole); err != nil {
		return nil, err
	}
	repo, err := createRepo(f, name, dev)
	if err != nil {
		return nil, err
	}
	return []any{repo}, nil
}

// newRepoWithVersion creates the repo with the registry as its first
// publisher, publishes the version, then hands the role over to dev.
func (Registry) newRepoWithVersion(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var (
		name       string
		dev        ident.Address
		v          Version
		contract   ident.Address
		contentURI string
	)
	if err := args.Decode(&name, &dev, &v, &contract, &contentURI); err != nil {
		return nil, err
	}
	if err := app.Auth(f, CreateRepoRole); err != nil {
		return nil, err
	}
	repo, err := createRepo(f, name, f.Self())
	if err != nil {
		return nil, err
	}
	if _, err := f.Call(repo, 0, "newVersion", v, contract, contentURI); err != nil {
		return nil, err
	}

	aclAddr, err := aclOf(f)
	if err != nil {
		return nil, err
	}
	for _, step := range []struct {
		method string
		args   []any
	}{
		{"revokePermission", []any{f.Self(), repo, CreateVersionRole}},
		{"grantPermission", []any{dev, repo, CreateVersionRole}},
		{"setPermissionManager", []any{dev, repo, CreateVersionRole}},
	} {
		if _, err := f.Call(aclAddr, 0, step.method, step.args...); err != nil {
			return nil, err
		}
	}
	return []any{repo}, nil
}

func createRepo(f *ledger.Frame, name string, dev ident.Address) (ident.Address, error) {
	if !repoName.MatchString(name) {
		return ident.ZeroAddress, ledger.Revertf(ErrInvalidName.Reason, "%q", name)
	}
	if existing := ledger.Load[ident.Address](f.Storage(), repoKey(name)); !existing.IsZero() {
		return ident.ZeroAddress, ledger.Revertf(ErrRepoExists.Reason, "%q at %s", name, existing.Short())
	}

	kernel := app.Kernel(f)
	repo, err := f.Deploy(proxy.Upgradeable(), 0, kernel, ident.RepoAppID, ledger.Invocation{Method: "initialize"})
	if err != nil {
		return ident.ZeroAddress, err
	}
	aclAddr, err := aclOf(f)
	if err != nil {
		return ident.ZeroAddress, err
	}
	if _, err := f.Call(aclAddr, 0, "createPermission", dev, repo, CreateVersionRole, dev); err != nil {
		return ident.ZeroAddress, err
	}
	f.Storage().Set(repoKey(name), repo)

	domain := ledger.Load[string](f.Storage(), domainKey)
	f.Emit(EventNewRepo,
		ledger.F("id", ident.NameHash(name+"."+domain)),
		ledger.F("name", name),
		ledger.F("repo", repo),
	)
	return repo, nil
}

func aclOf(f *ledger.Frame) (ident.Address, error) {
	return ledger.First[ident.Address](f.StaticCall(app.Kernel(f), "acl"))
}

