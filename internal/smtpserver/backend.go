package smtpserver

import (
	"github.com/emersion/go-smtp"

	"github.com/openjsw/openposta/internal/auth"
	"github.com/openjsw/openposta/internal/ingest"
)

// Backend hands every SMTP connection a session that feeds the
// ingestion pipeline.
type Backend struct {
	pipeline *ingest.Pipeline
	auth     *auth.Service
}

func NewBackend(p *ingest.Pipeline, a *auth.Service) *Backend {
	return &Backend{pipeline: p, auth: a}
}

func (b *Backend) NewSession(*smtp.Conn) (smtp.Session, error) {
	return NewSession(b.pipeline, b.auth), nil
}
