package storage

// DDL is written to the subset of SQL accepted by both Postgres (the
// production store) and SQLite (the test store). $n parameter binds are
// valid in both drivers for the same reason.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id          TEXT PRIMARY KEY,
		email       TEXT NOT NULL UNIQUE,
		password    TEXT NOT NULL,
		can_send    BOOLEAN NOT NULL DEFAULT TRUE,
		can_receive BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS admins (
		id       TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mails (
		id          TEXT PRIMARY KEY,
		mail_from   TEXT NOT NULL,
		mail_to     TEXT NOT NULL,
		subject     TEXT NOT NULL DEFAULT '',
		body        TEXT NOT NULL DEFAULT '',
		body_html   TEXT NOT NULL DEFAULT '',
		attachments TEXT,
		raw_email   TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mails_to ON mails (mail_to, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_mails_from ON mails (mail_from, created_at)`,
}

// Init creates the tables if they do not exist yet.
func (d *Database) Init() error {
	for _, stmt := range schema {
		if _, err := d.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
