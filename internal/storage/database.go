package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openjsw/openposta/internal/models"
)

// Diagnostic served whenever the database binding is missing. Kept
// bilingual as the operator-facing contract.
const (
	NotBoundZH = "数据库未绑定！请配置数据库连接（db.*）后再使用本服务。"
	NotBoundEN = "Database is not bound! Please configure the database connection (db.*) before using this service."
)

// ErrNotBound reports the same condition to non-HTTP callers.
var ErrNotBound = errors.New("database is not bound")

// recentLimit caps every listing query. There is no pagination beyond it.
const recentLimit = 20

// Database provides account, admin and mail operations over sqlx.
type Database struct {
	db *sqlx.DB
}

// New wraps an open connection. See db.Connect for the production path.
func New(db *sqlx.DB) *Database {
	return &Database{db: db}
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	return d.db.Close()
}

/* ------------------------------------------------------------------
   Accounts
-------------------------------------------------------------------*/

// CreateAccount inserts a new account with a fresh id. The unique
// constraint on email surfaces duplicates as a store error.
func (d *Database) CreateAccount(email, passwordHash string, canSend, canReceive bool) (models.Account, error) {
	a := models.Account{
		ID:         uuid.New().String(),
		Email:      email,
		Password:   passwordHash,
		CanSend:    canSend,
		CanReceive: canReceive,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := d.db.Exec(`
		INSERT INTO accounts (id,email,password,can_send,can_receive,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.Email, a.Password, a.CanSend, a.CanReceive, a.CreatedAt)
	if err != nil {
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

// ListAccounts returns every account newest first, without credentials.
func (d *Database) ListAccounts() ([]models.AccountSummary, error) {
	var accounts []models.AccountSummary
	err := d.db.Select(&accounts, `
		SELECT id,email,can_send,can_receive,created_at
		FROM accounts ORDER BY created_at DESC`)
	return accounts, err
}

// UpdateCapabilities overwrites the capability flags for an account.
// The write is idempotent and a no-op for an unknown email.
func (d *Database) UpdateCapabilities(email string, canSend, canReceive bool) error {
	_, err := d.db.Exec(`
		UPDATE accounts SET can_send=$1, can_receive=$2 WHERE email=$3`,
		canSend, canReceive, email)
	return err
}

// DeleteAccount removes an account by email. Deleting an email that
// does not exist is not an error. Mail rows are left in place.
func (d *Database) DeleteAccount(email string) error {
	_, err := d.db.Exec(`DELETE FROM accounts WHERE email=$1`, email)
	return err
}

// AccountByID resolves a session token. A nil account with a nil error
// means no such row.
func (d *Database) AccountByID(id string) (*models.Account, error) {
	var a models.Account
	if err := d.db.Get(&a, `SELECT * FROM accounts WHERE id=$1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// AccountByEmail returns the account for an email, nil if absent.
func (d *Database) AccountByEmail(email string) (*models.Account, error) {
	var a models.Account
	if err := d.db.Get(&a, `SELECT * FROM accounts WHERE email=$1`, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// ReceivableAccount returns the account for an email only if it is
// allowed to receive mail. This is the inbound eligibility lookup and
// the gate for user portal logins.
func (d *Database) ReceivableAccount(email string) (*models.Account, error) {
	var a models.Account
	err := d.db.Get(&a, `
		SELECT * FROM accounts WHERE email=$1 AND can_receive = TRUE`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

/* ------------------------------------------------------------------
   Admins
-------------------------------------------------------------------*/

func (d *Database) CreateAdmin(username, passwordHash string) (models.Admin, error) {
	a := models.Admin{ID: uuid.New().String(), Username: username, Password: passwordHash}
	_, err := d.db.Exec(`
		INSERT INTO admins (id,username,password) VALUES ($1,$2,$3)`,
		a.ID, a.Username, a.Password)
	if err != nil {
		return models.Admin{}, fmt.Errorf("create admin: %w", err)
	}
	return a, nil
}

func (d *Database) AdminByID(id string) (*models.Admin, error) {
	var a models.Admin
	if err := d.db.Get(&a, `SELECT * FROM admins WHERE id=$1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (d *Database) AdminByUsername(username string) (*models.Admin, error) {
	var a models.Admin
	if err := d.db.Get(&a, `SELECT * FROM admins WHERE username=$1`, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

/* ------------------------------------------------------------------
   Mails
-------------------------------------------------------------------*/

// CreateMail inserts one immutable mail row.
func (d *Database) CreateMail(m models.Mail) error {
	_, err := d.db.Exec(`
		INSERT INTO mails
		  (id,mail_from,mail_to,subject,body,body_html,attachments,raw_email,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.ID, m.MailFrom, m.MailTo, m.Subject, m.Body, m.BodyHTML,
		m.Attachments, m.RawEmail, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create mail: %w", err)
	}
	return nil
}

// Inbox lists the most recent mail received by an address.
func (d *Database) Inbox(email string) ([]models.InboxEntry, error) {
	var mails []models.InboxEntry
	err := d.db.Select(&mails, `
		SELECT id,mail_from,subject,created_at FROM mails
		WHERE mail_to=$1 ORDER BY created_at DESC LIMIT $2`, email, recentLimit)
	return mails, err
}

// Sent lists the most recent mail sent by an address.
func (d *Database) Sent(email string) ([]models.SentEntry, error) {
	var mails []models.SentEntry
	err := d.db.Select(&mails, `
		SELECT id,mail_to,subject,created_at FROM mails
		WHERE mail_from=$1 ORDER BY created_at DESC LIMIT $2`, email, recentLimit)
	return mails, err
}

// InboxMail fetches one mail scoped to its recipient. A row addressed
// to anyone else is reported as absent, never as someone else's mail.
func (d *Database) InboxMail(id, email string) (*models.Mail, error) {
	var m models.Mail
	err := d.db.Get(&m, `SELECT * FROM mails WHERE id=$1 AND mail_to=$2`, id, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// SentMail fetches one mail scoped to its sender.
func (d *Database) SentMail(id, email string) (*models.Mail, error) {
	var m models.Mail
	err := d.db.Get(&m, `SELECT * FROM mails WHERE id=$1 AND mail_from=$2`, id, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// RecentMails lists the most recent mail in any direction, for the
// public listing API.
func (d *Database) RecentMails() ([]models.MailSummary, error) {
	var mails []models.MailSummary
	err := d.db.Select(&mails, `
		SELECT id,mail_from,mail_to,subject,created_at FROM mails
		ORDER BY created_at DESC LIMIT $1`, recentLimit)
	return mails, err
}

// MailByID fetches one mail without scoping, for the public detail API.
func (d *Database) MailByID(id string) (*models.Mail, error) {
	var m models.Mail
	if err := d.db.Get(&m, `SELECT * FROM mails WHERE id=$1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
