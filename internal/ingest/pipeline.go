package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/openjsw/openposta/internal/models"
	"github.com/openjsw/openposta/internal/storage"
)

// ErrRecipientRejected is returned before anything is parsed or written
// when the recipient has no account or is not allowed to receive. The
// transport must bounce the message on this error.
var ErrRecipientRejected = errors.New("recipient does not exist or is not allowed to receive mail")

// Envelope is one inbound message as delivered by the transport.
type Envelope struct {
	From string
	To   string
	Raw  io.Reader
}

// Pipeline turns an inbound byte stream into a stored mail row.
//
// Processing is strictly staged: recipient eligibility is checked first
// and is the only stage whose failure propagates to the transport.
// Parse and store failures after that point are logged and swallowed,
// since the transport-level acceptance has already happened and cannot
// be retracted.
type Pipeline struct {
	store *storage.Database
}

func NewPipeline(store *storage.Database) *Pipeline {
	return &Pipeline{store: store}
}

// CheckRecipient performs the eligibility stage on its own, so the SMTP
// session can reject the envelope at RCPT time.
func (p *Pipeline) CheckRecipient(to string) error {
	if p.store == nil {
		log.Printf("ingest: %s", storage.NotBoundEN)
		return storage.ErrNotBound
	}
	acct, err := p.store.ReceivableAccount(to)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrRecipientRejected
	}
	return nil
}

// Ingest runs the full pipeline for one message.
func (p *Pipeline) Ingest(env Envelope) error {
	if err := p.CheckRecipient(env.To); err != nil {
		return err
	}

	raw, err := io.ReadAll(env.Raw)
	if err != nil {
		log.Printf("ingest: read raw mail from %s: %v", env.From, err)
		return nil
	}

	parsed := parseMessage(raw)

	var attachments *string
	if len(parsed.Attachments) > 0 {
		if b, err := json.Marshal(parsed.Attachments); err == nil {
			s := string(b)
			attachments = &s
		}
	}

	now := time.Now().UTC()
	m := models.Mail{
		ID:          uuid.New().String(),
		MailFrom:    env.From,
		MailTo:      env.To,
		Subject:     parsed.Subject,
		Body:        parsed.Text,
		BodyHTML:    parsed.HTML,
		Attachments: attachments,
		RawEmail:    string(raw),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.store.CreateMail(m); err != nil {
		log.Printf("ingest: store mail from %s to %s: %v", env.From, env.To, err)
	}
	return nil
}

/* ======================  MIME PARSING  =========================== */

type parsedMail struct {
	Subject     string
	Text        string
	HTML        string
	Attachments []models.Attachment
}

// parseMessage extracts subject, text body, HTML body and attachment
// descriptors. It never fails hard: a message that cannot be parsed
// yields empty content, the raw bytes are preserved either way.
func parseMessage(raw []byte) parsedMail {
	var out parsedMail

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		log.Printf("ingest: parse mail: %v", err)
		return out
	}
	if subject, err := mr.Header.Subject(); err == nil {
		out.Subject = subject
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("ingest: parse mail part: %v", err)
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			ctype, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				log.Printf("ingest: read mail part: %v", err)
				continue
			}
			if strings.EqualFold(ctype, "text/html") {
				if out.HTML == "" {
					out.HTML = string(body)
				}
			} else if out.Text == "" {
				out.Text = string(body)
			}
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			ctype, _, _ := h.ContentType()
			size, _ := io.Copy(io.Discard, part.Body)
			out.Attachments = append(out.Attachments, models.Attachment{
				FileName:    name,
				ContentType: ctype,
				Size:        size,
			})
		}
	}
	return out
}
