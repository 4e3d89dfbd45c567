package app

import (
	"crypto/tls"
	"fmt"
	"log"
	"time"

	"github.com/emersion/go-smtp"

	"github.com/openjsw/openposta/internal/auth"
	"github.com/openjsw/openposta/internal/config"
	"github.com/openjsw/openposta/internal/db"
	"github.com/openjsw/openposta/internal/dispatch"
	"github.com/openjsw/openposta/internal/ingest"
	"github.com/openjsw/openposta/internal/smtpserver"
	"github.com/openjsw/openposta/internal/storage"
)

/* ------------------------------------------------------------------
   App struct
-------------------------------------------------------------------*/

type App struct {
	cfg        config.Config
	store      *storage.Database
	authSvc    *auth.Service
	pipeline   *ingest.Pipeline
	gateway    *dispatch.Gateway
	smtpServer *smtp.Server
}

/* ------------------------------------------------------------------
   Accessors used by the HTTP layer
-------------------------------------------------------------------*/

func (a *App) GetConfig() config.Config   { return a.cfg }
func (a *App) Store() *storage.Database   { return a.store }
func (a *App) Auth() *auth.Service        { return a.authSvc }
func (a *App) Gateway() *dispatch.Gateway { return a.gateway }
func (a *App) Pipeline() *ingest.Pipeline { return a.pipeline }

/* ------------------------------------------------------------------
   Construction / lifecycle
-------------------------------------------------------------------*/

// New assembles an App from a loaded config and an (optionally nil)
// store. Init is the production path; New exists so tests and tools
// can wire their own store.
func New(cfg config.Config, store *storage.Database) *App {
	a := &App{cfg: cfg, store: store}
	a.authSvc = auth.NewService(store)
	a.gateway = dispatch.NewGateway(cfg)
	a.pipeline = ingest.NewPipeline(store)
	return a
}

func (a *App) Init() error {
	/* 1. configuration */
	c, err := config.Load()
	if err != nil {
		return err
	}

	/* 2. database. A failed binding is not fatal: every surface then
	   answers with the fixed not-bound diagnostic instead. */
	var store *storage.Database
	conn, err := db.Connect(c.DB)
	if err != nil {
		log.Printf("database not bound: %v", err)
	} else {
		store = storage.New(conn)
		if err := store.Init(); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	*a = *New(c, store)

	/* 3. SMTP server */
	a.initSMTP()
	return nil
}

func (a *App) Run() error {
	go func() {
		log.Printf("SMTP listening on %s", a.smtpServer.Addr)
		if err := a.smtpServer.ListenAndServe(); err != nil {
			log.Fatalf("smtp: %v", err)
		}
	}()
	return nil
}

func (a *App) Close() error {
	if a.smtpServer != nil {
		_ = a.smtpServer.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	return nil
}

/* ------------------------------------------------------------------
   internal helpers
-------------------------------------------------------------------*/

func (a *App) initSMTP() {
	be := smtpserver.NewBackend(a.pipeline, a.authSvc)
	s := smtp.NewServer(be)
	s.Addr = fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)
	s.Domain = a.cfg.Domain
	s.ReadTimeout, s.WriteTimeout = 10*time.Second, 10*time.Second
	s.MaxMessageBytes, s.MaxRecipients = 1<<20, 50
	s.AllowInsecureAuth = true

	if a.cfg.CertFile != "" && a.cfg.KeyFile != "" {
		if cert, err := tls.LoadX509KeyPair(a.cfg.CertFile, a.cfg.KeyFile); err == nil {
			s.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
		} else {
			log.Printf("TLS disabled: %v", err)
		}
	}

	a.smtpServer = s
}
