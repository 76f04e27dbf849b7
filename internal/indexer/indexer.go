// Package indexer projects ledger receipts into SQL tables so the HTTP
// API can answer list queries (events, installed apps, permissions,
// releases) without walking ledger state. The projection is rebuilt from
// scratch every time the node starts.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/chainkernel/internal/ledger"
)

// Event names projected into dedicated tables.
const (
	eventSetApp           = "SetApp"
	eventSetPermission    = "SetPermission"
	eventChangeManager    = "ChangePermissionManager"
	eventNewRepo          = "NewRepo"
	eventNewVersion       = "NewVersion"
	eventChangeSeverity   = "ChangeSeverity"
	defaultEventListLimit = 100
)

// Store is the SQL projection.
type Store struct {
	db  *sqlx.DB
	log *logrus.Entry
}

// Open connects to driver ("sqlite" or "postgres") at dsn.
func Open(driver, dsn string, log *logrus.Entry) (*Store, error) {
	switch driver {
	case "", "sqlite":
		driver = "sqlite"
	case "postgres":
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// one writer; avoids SQLITE_BUSY between the sink and readers
		db.SetMaxOpenConns(1)
	}
	return New(db, log), nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{db: db, log: log}
}

// Close closes the connection.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("indexer: migrate: %w", err)
		}
	}
	return nil
}

// Reset empties every table.
func (s *Store) Reset(ctx context.Context) error {
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("indexer: reset %s: %w", t, err)
		}
	}
	return nil
}

// Publish projects one receipt. It makes Store a ledger sink.
func (s *Store) Publish(r *ledger.Receipt) error {
	ctx := context.Background()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("indexer: begin: %w", err)
	}
	if err := s.project(ctx, tx, r); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("indexer: commit: %w", err)
	}
	return nil
}

func (s *Store) project(ctx context.Context, tx *sqlx.Tx, r *ledger.Receipt) error {
	block := int64(r.Block)
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO txs
		(tx_id, block, sender, target, method, status, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		r.TxID, block, r.From.Hex(), r.To.Hex(), r.Method, string(r.Status), r.Reason, r.Time.UTC().Format("2006-01-02T15:04:05.000Z"),
	); err != nil {
		return fmt.Errorf("indexer: insert tx %s: %w", r.TxID, err)
	}
	if !r.Committed() {
		return nil
	}

	for _, e := range r.Events {
		fields, err := encodeFields(e.Fields)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO events
			(tx_id, idx, block, contract, name, fields)
			VALUES (?, ?, ?, ?, ?, ?)`),
			r.TxID, e.Index, block, e.Address.Hex(), e.Name, fields,
		); err != nil {
			return fmt.Errorf("indexer: insert event %s/%d: %w", r.TxID, e.Index, err)
		}
		if err := projectEvent(ctx, tx, block, e); err != nil {
			return fmt.Errorf("indexer: project %s: %w", e.Name, err)
		}
	}
	return nil
}

func projectEvent(ctx context.Context, tx *sqlx.Tx, block int64, e ledger.Event) error {
	var (
		query string
		args  []any
	)
	switch e.Name {
	case eventSetApp:
		query = `INSERT INTO apps (kernel, namespace, app_id, address, block) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (kernel, namespace, app_id) DO UPDATE SET address = excluded.address, block = excluded.block`
		args = []any{e.Address.Hex(), str(e.Get("namespace")), str(e.Get("appId")), str(e.Get("app")), block}
	case eventSetPermission:
		allowed, _ := e.Get("allowed").(bool)
		query = `INSERT INTO permissions (acl, entity, app, role, allowed, block) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (acl, entity, app, role) DO UPDATE SET allowed = excluded.allowed, block = excluded.block`
		args = []any{e.Address.Hex(), str(e.Get("entity")), str(e.Get("app")), str(e.Get("role")), allowed, block}
	case eventChangeManager:
		query = `INSERT INTO managers (acl, app, role, manager, block) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (acl, app, role) DO UPDATE SET manager = excluded.manager, block = excluded.block`
		args = []any{e.Address.Hex(), str(e.Get("app")), str(e.Get("role")), str(e.Get("manager")), block}
	case eventNewRepo:
		query = `INSERT INTO repos (registry, repo_id, name, address, block) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (registry, repo_id) DO UPDATE SET address = excluded.address, block = excluded.block`
		args = []any{e.Address.Hex(), str(e.Get("id")), str(e.Get("name")), str(e.Get("repo")), block}
	case eventNewVersion:
		id, err := ledger.ToUint64(e.Get("versionId"))
		if err != nil {
			return err
		}
		query = `INSERT INTO versions (repo, version_id, semver, block) VALUES (?, ?, ?, ?)
			ON CONFLICT (repo, version_id) DO UPDATE SET semver = excluded.semver, block = excluded.block`
		args = []any{e.Address.Hex(), int64(id), str(e.Get("semanticVersion")), block}
	case eventChangeSeverity:
		query = `INSERT INTO severities (registry, entry, severity, block) VALUES (?, ?, ?, ?)
			ON CONFLICT (registry, entry) DO UPDATE SET severity = excluded.severity, block = excluded.block`
		args = []any{e.Address.Hex(), str(e.Get("entry")), str(e.Get("severity")), block}
	default:
		return nil
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	return err
}

func encodeFields(fields []ledger.Field) (string, error) {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.Name] = str(f.Value)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("indexer: encode fields: %w", err)
	}
	return string(b), nil
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
