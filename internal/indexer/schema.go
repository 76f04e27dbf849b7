package indexer

// schema is portable between SQLite and Postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS txs (
		tx_id      TEXT PRIMARY KEY,
		block      BIGINT NOT NULL,
		sender     TEXT NOT NULL,
		target     TEXT NOT NULL,
		method     TEXT NOT NULL,
		status     TEXT NOT NULL,
		reason     TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		tx_id    TEXT NOT NULL,
		idx      INTEGER NOT NULL,
		block    BIGINT NOT NULL,
		contract TEXT NOT NULL,
		name     TEXT NOT NULL,
		fields   TEXT NOT NULL,
		PRIMARY KEY (tx_id, idx)
	)`,
	`CREATE INDEX IF NOT EXISTS events_name ON events (name)`,
	`CREATE TABLE IF NOT EXISTS apps (
		kernel    TEXT NOT NULL,
		namespace TEXT NOT NULL,
		app_id    TEXT NOT NULL,
		address   TEXT NOT NULL,
		block     BIGINT NOT NULL,
		PRIMARY KEY (kernel, namespace, app_id)
	)`,
	`CREATE TABLE IF NOT EXISTS permissions (
		acl     TEXT NOT NULL,
		entity  TEXT NOT NULL,
		app     TEXT NOT NULL,
		role    TEXT NOT NULL,
		allowed BOOLEAN NOT NULL,
		block   BIGINT NOT NULL,
		PRIMARY KEY (acl, entity, app, role)
	)`,
	`CREATE TABLE IF NOT EXISTS managers (
		acl     TEXT NOT NULL,
		app     TEXT NOT NULL,
		role    TEXT NOT NULL,
		manager TEXT NOT NULL,
		block   BIGINT NOT NULL,
		PRIMARY KEY (acl, app, role)
	)`,
	`CREATE TABLE IF NOT EXISTS repos (
		registry TEXT NOT NULL,
		repo_id  TEXT NOT NULL,
		name     TEXT NOT NULL,
		address  TEXT NOT NULL,
		block    BIGINT NOT NULL,
		PRIMARY KEY (registry, repo_id)
	)`,
	`CREATE TABLE IF NOT EXISTS versions (
		repo       TEXT NOT NULL,
		version_id BIGINT NOT NULL,
		semver     TEXT NOT NULL,
		block      BIGINT NOT NULL,
		PRIMARY KEY (repo, version_id)
	)`,
	`CREATE TABLE IF NOT EXISTS severities (
		registry TEXT NOT NULL,
		entry    TEXT NOT NULL,
		severity TEXT NOT NULL,
		block    BIGINT NOT NULL,
		PRIMARY KEY (registry, entry)
	)`,
}

// tables in deletion order for Reset.
var tables = []string{"txs", "events", "apps", "permissions", "managers", "repos", "versions", "severities"}
