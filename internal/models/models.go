package models

import (
	"time"
)

// Account represents one mailbox tenant. Its id doubles as the bearer
// session token once issued at login.
type Account struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	Password   string    `db:"password" json:"-"`
	CanSend    bool      `db:"can_send" json:"can_send"`
	CanReceive bool      `db:"can_receive" json:"can_receive"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AccountSummary is the credential-free projection returned to admins.
type AccountSummary struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	CanSend    bool      `db:"can_send" json:"can_send"`
	CanReceive bool      `db:"can_receive" json:"can_receive"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Admin represents one administrative principal. Admins are provisioned
// out of band (see cmd/adminctl) and are never mutated through the API.
type Admin struct {
	ID       string `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Password string `db:"password" json:"-"`
}

// Mail represents one message, inbound or outbound, with a uniform
// schema regardless of direction. A row is immutable once written.
type Mail struct {
	ID          string    `db:"id" json:"id"`
	MailFrom    string    `db:"mail_from" json:"mail_from"`
	MailTo      string    `db:"mail_to" json:"mail_to"`
	Subject     string    `db:"subject" json:"subject"`
	Body        string    `db:"body" json:"body"`
	BodyHTML    string    `db:"body_html" json:"body_html"`
	Attachments *string   `db:"attachments" json:"attachments"`
	RawEmail    string    `db:"raw_email" json:"raw_email"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// InboxEntry is the summary row shown in a user's inbox listing.
type InboxEntry struct {
	ID        string    `db:"id" json:"id"`
	MailFrom  string    `db:"mail_from" json:"mail_from"`
	Subject   string    `db:"subject" json:"subject"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SentEntry is the summary row shown in a user's sent listing.
type SentEntry struct {
	ID        string    `db:"id" json:"id"`
	MailTo    string    `db:"mail_to" json:"mail_to"`
	Subject   string    `db:"subject" json:"subject"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MailSummary is the summary row exposed by the public listing API.
type MailSummary struct {
	ID        string    `db:"id" json:"id"`
	MailFrom  string    `db:"mail_from" json:"mail_from"`
	MailTo    string    `db:"mail_to" json:"mail_to"`
	Subject   string    `db:"subject" json:"subject"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Attachment describes one parsed MIME attachment. The list is stored
// serialized in the mails.attachments column; attachment bodies are not
// kept separately, the full original message lives in raw_email.
type Attachment struct {
	FileName    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}
