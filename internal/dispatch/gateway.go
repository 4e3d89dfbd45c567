package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/openjsw/openposta/internal/config"
)

// Status is the terminal outcome of one dispatch attempt. Skipped means
// no transport was configured and no delivery was attempted; it is kept
// distinct from Sent so callers and tests can tell the two apart.
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
)

const resendEndpoint = "https://api.resend.com/emails"

// Message is a composed outbound mail.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Gateway hands a composed message to the configured transport, once.
// There is no queue and no retry; recording the attempt is the caller's
// concern and happens regardless of the outcome here.
type Gateway struct {
	cfg      config.Config
	client   *http.Client
	endpoint string
}

func NewGateway(cfg config.Config) *Gateway {
	endpoint := cfg.ResendEndpoint
	if endpoint == "" {
		endpoint = resendEndpoint
	}
	return &Gateway{
		cfg:      cfg,
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: endpoint,
	}
}

// Send performs a single delivery attempt. A nil error with StatusSent
// means the provider accepted the message; StatusSkipped means no
// credential/relay was configured and nothing was attempted.
func (g *Gateway) Send(ctx context.Context, msg Message) (Status, error) {
	if g.cfg.OutboundTransport == "smtp" {
		return g.sendSMTP(msg)
	}
	return g.sendResend(ctx, msg)
}

/* ======================  RESEND HTTP API  ======================== */

func (g *Gateway) sendResend(ctx context.Context, msg Message) (Status, error) {
	if g.cfg.ResendAPIKey == "" {
		return StatusSkipped, nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.ResendAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("resend: %s", string(detail))
	}
	return StatusSent, nil
}

/* ======================  SMTP RELAY  ============================= */

func (g *Gateway) sendSMTP(msg Message) (Status, error) {
	if g.cfg.RelayHost == "" {
		return StatusSkipped, nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)

	d := gomail.NewDialer(g.cfg.RelayHost, g.cfg.RelayPort, "", "")
	d.SSL = false
	d.Auth = nil

	if err := d.DialAndSend(m); err != nil {
		return "", fmt.Errorf("smtp relay: %w", err)
	}
	return StatusSent, nil
}
