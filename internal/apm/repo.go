package apm

import (
	"github.com/ppiankov/chainkernel/internal/app"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/lifecycle"
)

// CreateVersionRole allows publishing versions to a repo.
var CreateVersionRole = ident.Keccak("CREATE_VERSION_ROLE")

var (
	ErrInvalidBump       = ledger.NewRevert("REPO_INVALID_BUMP")
	ErrInvalidVersion    = ledger.NewRevert("REPO_INVALID_VERSION")
	ErrInexistentVersion = ledger.NewRevert("REPO_INEXISTENT_VERSION")
)

// EventNewVersion is emitted for every published version.
const EventNewVersion = "NewVersion"

// Release is one published version of a repo.
type Release struct {
	ID         uint64        `json:"id"`
	Version    Version       `json:"version"`
	Contract   ident.Address `json:"contract"`
	ContentURI string        `json:"content_uri"`
}

const nextIndexKey = "repo.versionsNextIndex"

func releaseKey(id uint64) string { return ledger.Key("repo.versions", id) }
func semanticKey(v Version) string { return ledger.Key("repo.versionIdForSemantic", v) }
func contractKey(addr ident.Address) string { return ledger.Key("repo.latestVersionIdForContract", addr) }

// Repo is the repo app code. Version ids start at 1; nothing is ever
// removed.
type Repo struct {
	app.Template
}

func (r Repo) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"initialize": {Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			if err := args.Decode(); err != nil {
				return nil, err
			}
			if err := lifecycle.Initialize(f); err != nil {
				return nil, err
			}
			f.Storage().Set(nextIndexKey, uint64(1))
			return nil, nil
		}},
		"newVersion": {Handler: r.newVersion},
		"getLatest": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return byID(f, nextIndex(f)-1)
		}},
		"getByVersionId": {View: true, Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			var id uint64
			if err := args.Decode(&id); err != nil {
				return nil, err
			}
			return byID(f, id)
		}},
		"getBySemanticVersion": {View: true, Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			var v Version
			if err := args.Decode(&v); err != nil {
				return nil, err
			}
			return byID(f, ledger.Load[uint64](f.Storage(), semanticKey(v)))
		}},
		"getLatestForContractAddress": {View: true, Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			var addr ident.Address
			if err := args.Decode(&addr); err != nil {
				return nil, err
			}
			return byID(f, ledger.Load[uint64](f.Storage(), contractKey(addr)))
		}},
		"getVersionsCount": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			n := nextIndex(f)
			if n == 0 {
				return []any{uint64(0)}, nil
			}
			return []any{n - 1}, nil
		}},
		"isValidBump": {View: true, Handler: func(_ *ledger.Frame, args ledger.Args) ([]any, error) {
			var wideFrom, wideTo wideVersion
			if err := args.Decode(&wideFrom, &wideTo); err != nil {
				return nil, err
			}
			from, okFrom := wideFrom.narrow()
			to, okTo := wideTo.narrow()
			return []any{okFrom && okTo && IsValidBump(from, to)}, nil
		}},
		"CREATE_VERSION_ROLE": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{CreateVersionRole}, nil
		}},
	}.Merge(app.BaseMethods())
}

// newVersion publishes a version. A zero contract reuses the previous
// one; the contract may only change on a major bump.
func (Repo) newVersion(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var (
		v          Version
		contract   ident.Address
		contentURI string
	)
	if err := args.Decode(&v, &contract, &contentURI); err != nil {
		return nil, err
	}
	if err := app.Auth(f, CreateVersionRole); err != nil {
		return nil, err
	}

	next := nextIndex(f)
	var last Version
	if next > 1 {
		prev := ledger.Load[Release](f.Storage(), releaseKey(next-1))
		last = prev.Version
		if contract.IsZero() {
			contract = prev.Contract
		}
		if contract != prev.Contract && v[0] <= prev.Version[0] {
			return nil, ledger.Revertf(ErrInvalidVersion.Reason, "contract change on %s needs a major bump from %s", v, prev.Version)
		}
	}
	if !IsValidBump(last, v) {
		return nil, ledger.Revertf(ErrInvalidBump.Reason, "%s -> %s", last, v)
	}

	rel := Release{ID: next, Version: v, Contract: contract, ContentURI: contentURI}
	st := f.Storage()
	st.Set(releaseKey(next), rel)
	st.Set(semanticKey(v), next)
	st.Set(contractKey(contract), next)
	st.Set(nextIndexKey, next+1)
	f.Emit(EventNewVersion,
		ledger.F("versionId", next),
		ledger.F("semanticVersion", v),
	)
	return []any{next}, nil
}

func nextIndex(f *ledger.Frame) uint64 {
	return ledger.Load[uint64](f.Storage(), nextIndexKey)
}

func byID(f *ledger.Frame, id uint64) ([]any, error) {
	if id == 0 || id >= nextIndex(f) {
		return nil, ledger.Revertf(ErrInexistentVersion.Reason, "version id %d", id)
	}
	return []any{ledger.Load[Release](f.Storage(), releaseKey(id))}, nil
}
