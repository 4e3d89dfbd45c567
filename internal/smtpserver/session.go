package smtpserver

import (
	"bytes"
	"errors"
	"io"
	"log"

	"github.com/emersion/go-smtp"

	"github.com/openjsw/openposta/internal/auth"
	"github.com/openjsw/openposta/internal/ingest"
)

// Session collects one inbound envelope and hands it to the pipeline.
type Session struct {
	pipeline *ingest.Pipeline
	auth     *auth.Service
	from     string
	to       []string
}

func NewSession(p *ingest.Pipeline, a *auth.Service) *Session {
	return &Session{pipeline: p, auth: a}
}

/* ======================  AUTH PLAIN  ============================= */

// AuthPlain is optional for inbound peers; when offered, credentials
// are checked against the accounts table.
func (s *Session) AuthPlain(username, password string) error {
	acct, err := s.auth.LoginUser(username, password)
	if err != nil || acct == nil {
		return errors.New("authentication failed")
	}
	return nil
}

/* ======================  ENVELOPE  =============================== */

func (s *Session) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt runs the eligibility stage at envelope time, so an unknown or
// receive-disabled recipient is rejected before any data is accepted
// and the peer bounces the message.
func (s *Session) Rcpt(to string) error {
	if err := s.pipeline.CheckRecipient(to); err != nil {
		return err
	}
	s.to = append(s.to, to)
	return nil
}

/* ======================  DATA  =================================== */

func (s *Session) Data(r io.Reader) error {
	if len(s.to) == 0 {
		return errors.New("no recipients specified")
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	for _, rcpt := range s.to {
		err := s.pipeline.Ingest(ingest.Envelope{
			From: s.from,
			To:   rcpt,
			Raw:  bytes.NewReader(raw),
		})
		if err != nil {
			// recipient became ineligible between RCPT and DATA
			log.Printf("smtp: ingest for %s: %v", rcpt, err)
			return err
		}
	}
	return nil
}

/* ======================  SESSION CLEANUP  ======================== */

func (s *Session) Reset() {
	s.from, s.to = "", nil
}

func (s *Session) Logout() error { return nil }
