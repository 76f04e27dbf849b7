package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by single-row lookups with no match.
var ErrNotFound = errors.New("indexer: not found")

// EventRow is one projected event.
type EventRow struct {
	TxID     string            `db:"tx_id"    json:"tx_id"`
	Index    int               `db:"idx"      json:"index"`
	Block    uint64            `db:"block"    json:"block"`
	Contract string            `db:"contract" json:"contract"`
	Name     string            `db:"name"     json:"name"`
	RawJSON  string            `db:"fields"   json:"-"`
	Fields   map[string]string `db:"-"        json:"fields"`
}

// EventQuery selects events. Zero fields match anything.
type EventQuery struct {
	Name     string
	Contract string
	TxID     string
	Limit    int
}

// AppRow is the latest address installed under a kernel slot.
type AppRow struct {
	Kernel    string `db:"kernel"    json:"kernel"`
	Namespace string `db:"namespace" json:"namespace"`
	AppID     string `db:"app_id"    json:"app_id"`
	Address   string `db:"address"   json:"address"`
	Block     uint64 `db:"block"     json:"block"`
}

// PermissionRow is the latest grant state of one permission.
type PermissionRow struct {
	ACL     string `db:"acl"     json:"acl"`
	Entity  string `db:"entity"  json:"entity"`
	App     string `db:"app"     json:"app"`
	Role    string `db:"role"    json:"role"`
	Allowed bool   `db:"allowed" json:"allowed"`
	Block   uint64 `db:"block"   json:"block"`
}

// PermissionQuery selects permissions. Zero fields match anything.
type PermissionQuery struct {
	ACL         string
	Entity      string
	App         string
	AllowedOnly bool
}

// RepoRow is a registered package repository.
type RepoRow struct {
	Registry string `db:"registry" json:"registry"`
	RepoID   string `db:"repo_id"  json:"repo_id"`
	Name     string `db:"name"     json:"name"`
	Address  string `db:"address"  json:"address"`
	Block    uint64 `db:"block"    json:"block"`
}

// VersionRow is one published release.
type VersionRow struct {
	Repo      string `db:"repo"       json:"repo"`
	VersionID uint64 `db:"version_id" json:"version_id"`
	Semver    string `db:"semver"     json:"semver"`
	Block     uint64 `db:"block"      json:"block"`
}

type where struct {
	clauses []string
	args    []any
}

func (w *where) eq(col string, v any, skip bool) {
	if skip {
		return
	}
	w.clauses = append(w.clauses, col+" = ?")
	w.args = append(w.args, v)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Events lists events in ledger order.
func (s *Store) Events(ctx context.Context, q EventQuery) ([]EventRow, error) {
	var w where
	w.eq("name", q.Name, q.Name == "")
	w.eq("contract", strings.ToLower(q.Contract), q.Contract == "")
	w.eq("tx_id", q.TxID, q.TxID == "")
	limit := q.Limit
	if limit <= 0 {
		limit = defaultEventListLimit
	}
	query := s.db.Rebind("SELECT tx_id, idx, block, contract, name, fields FROM events" + w.String() +
		fmt.Sprintf(" ORDER BY block, idx LIMIT %d", limit))

	var rows []EventRow
	if err := s.db.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, fmt.Errorf("indexer: events: %w", err)
	}
	for i := range rows {
		if err := json.Unmarshal([]byte(rows[i].RawJSON), &rows[i].Fields); err != nil {
			return nil, fmt.Errorf("indexer: decode fields of %s/%d: %w", rows[i].TxID, rows[i].Index, err)
		}
	}
	return rows, nil
}

// Apps lists the slots of kernel, optionally in one namespace.
func (s *Store) Apps(ctx context.Context, kernel, namespace string) ([]AppRow, error) {
	var w where
	w.eq("kernel", strings.ToLower(kernel), kernel == "")
	w.eq("namespace", strings.ToLower(namespace), namespace == "")
	query := s.db.Rebind("SELECT kernel, namespace, app_id, address, block FROM apps" + w.String() + " ORDER BY block, app_id")
	var rows []AppRow
	if err := s.db.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, fmt.Errorf("indexer: apps: %w", err)
	}
	return rows, nil
}

// Permissions lists permission states.
func (s *Store) Permissions(ctx context.Context, q PermissionQuery) ([]PermissionRow, error) {
	var w where
	w.eq("acl", strings.ToLower(q.ACL), q.ACL == "")
	w.eq("entity", strings.ToLower(q.Entity), q.Entity == "")
	w.eq("app", strings.ToLower(q.App), q.App == "")
	w.eq("allowed", true, !q.AllowedOnly)
	query := s.db.Rebind("SELECT acl, entity, app, role, allowed, block FROM permissions" + w.String() + " ORDER BY block, role")
	var rows []PermissionRow
	if err := s.db.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, fmt.Errorf("indexer: permissions: %w", err)
	}
	return rows, nil
}

// Repo finds a repository by name.
func (s *Store) Repo(ctx context.Context, name string) (RepoRow, error) {
	var row RepoRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		"SELECT registry, repo_id, name, address, block FROM repos WHERE name = ? ORDER BY block DESC LIMIT 1"), name)
	if errors.Is(err, sql.ErrNoRows) {
		return row, ErrNotFound
	}
	if err != nil {
		return row, fmt.Errorf("indexer: repo %s: %w", name, err)
	}
	return row, nil
}

// Versions lists the releases of a repository address in publication order.
func (s *Store) Versions(ctx context.Context, repo string) ([]VersionRow, error) {
	var rows []VersionRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		"SELECT repo, version_id, semver, block FROM versions WHERE repo = ? ORDER BY version_id"), strings.ToLower(repo))
	if err != nil {
		return nil, fmt.Errorf("indexer: versions: %w", err)
	}
	return rows, nil
}
