package api

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openjsw/openposta/internal/app"
	"github.com/openjsw/openposta/internal/auth"
	"github.com/openjsw/openposta/internal/dispatch"
	"github.com/openjsw/openposta/internal/models"
	"github.com/openjsw/openposta/internal/utils"
)

/* ----------------------------------------------------------------
   DTO types
-----------------------------------------------------------------*/

type AdminLogin struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UserLogin struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AccountCreation struct {
	Email      string `json:"email"    binding:"required"`
	Password   string `json:"password" binding:"required"`
	CanSend    *bool  `json:"can_send"`
	CanReceive *bool  `json:"can_receive"`
}

type AccountSelector struct {
	Email string `json:"email" binding:"required"`
}

type CapabilityUpdate struct {
	Email      string `json:"email" binding:"required"`
	CanSend    *bool  `json:"can_send"`
	CanReceive *bool  `json:"can_receive"`
}

type OutboundRequest struct {
	To      string `json:"to" binding:"required"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// enabled reads an optional capability field; an omitted flag means enabled.
func enabled(v *bool) bool {
	return v == nil || *v
}

/* ================================================================
   ADMIN AUTHENTICATION
================================================================ */

func handleAdminLogin(a *app.App, c *gin.Context) {
	var in AdminLogin
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	adm, err := a.Auth().LoginAdmin(in.Username, in.Password)
	if err != nil {
		c.JSON(500, gin.H{"error": "Database error"})
		return
	}
	if adm == nil {
		c.JSON(401, gin.H{"error": "Invalid username or password"})
		return
	}

	auth.SetSessionCookie(c.Writer, auth.AdminCookie, adm.ID)
	c.JSON(200, gin.H{"success": true})
}

func handleAdminLogout(a *app.App, c *gin.Context) {
	auth.ClearSessionCookie(c.Writer, auth.AdminCookie)
	c.JSON(200, gin.H{"success": true})
}

func handleAdminCheck(a *app.App, c *gin.Context) {
	adm, err := a.Auth().AdminSession(c.Request)
	if err != nil {
		c.JSON(500, gin.H{"error": "Database error"})
		return
	}
	c.JSON(200, gin.H{"loggedIn": adm != nil})
}

/* ================================================================
   ACCOUNT MANAGEMENT (admin)
================================================================ */

func handleListAccounts(a *app.App, c *gin.Context) {
	accounts, err := a.Store().ListAccounts()
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to list accounts"})
		return
	}
	c.JSON(200, gin.H{"accounts": accounts})
}

func handleAddAccount(a *app.App, c *gin.Context) {
	var in AccountCreation
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	hash, err := a.Auth().HashPassword(in.Password)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to process password"})
		return
	}

	if _, err := a.Store().CreateAccount(in.Email, hash, enabled(in.CanSend), enabled(in.CanReceive)); err != nil {
		c.JSON(400, gin.H{"error": "Email already exists or database error", "detail": err.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func handleDeleteAccount(a *app.App, c *gin.Context) {
	var in AccountSelector
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	// deleting an unknown email is a deliberate no-op
	if err := a.Store().DeleteAccount(in.Email); err != nil {
		c.JSON(400, gin.H{"error": "Database error", "detail": err.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func handleUpdateAccount(a *app.App, c *gin.Context) {
	var in CapabilityUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	if err := a.Store().UpdateCapabilities(in.Email, enabled(in.CanSend), enabled(in.CanReceive)); err != nil {
		c.JSON(400, gin.H{"error": "Database error", "detail": err.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

/* ================================================================
   USER AUTHENTICATION
================================================================ */

func handleUserLogin(a *app.App, c *gin.Context) {
	var in UserLogin
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	acct, err := a.Auth().LoginUser(in.Email, in.Password)
	if err != nil {
		c.JSON(500, gin.H{"error": "Database error"})
		return
	}
	if acct == nil {
		c.JSON(401, gin.H{"error": "Invalid email or password"})
		return
	}

	auth.SetSessionCookie(c.Writer, auth.UserCookie, acct.ID)
	c.JSON(200, gin.H{"success": true})
}

func handleUserLogout(a *app.App, c *gin.Context) {
	auth.ClearSessionCookie(c.Writer, auth.UserCookie)
	c.JSON(200, gin.H{"success": true})
}

func handleUserCheck(a *app.App, c *gin.Context) {
	acct, err := a.Auth().UserSession(c.Request)
	if err != nil {
		c.JSON(500, gin.H{"error": "Database error"})
		return
	}
	c.JSON(200, gin.H{"loggedIn": acct != nil})
}

/* ================================================================
   MAILBOX (user)
================================================================ */

func handleInbox(a *app.App, c *gin.Context) {
	acct := currentAccount(c)

	mails, err := a.Store().Inbox(acct.Email)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to list inbox"})
		return
	}
	c.JSON(200, gin.H{"mails": mails})
}

func handleInboxMail(a *app.App, c *gin.Context) {
	acct := currentAccount(c)

	id := c.Query("id")
	if id == "" {
		c.JSON(400, gin.H{"error": "Missing parameter id"})
		return
	}

	mail, err := a.Store().InboxMail(id, acct.Email)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to fetch mail"})
		return
	}
	c.JSON(200, gin.H{"mail": mail})
}

func handleSent(a *app.App, c *gin.Context) {
	acct := currentAccount(c)

	mails, err := a.Store().Sent(acct.Email)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to list sent mail"})
		return
	}
	c.JSON(200, gin.H{"mails": mails})
}

func handleSentMail(a *app.App, c *gin.Context) {
	acct := currentAccount(c)

	id := c.Query("id")
	if id == "" {
		c.JSON(400, gin.H{"error": "Missing parameter id"})
		return
	}

	mail, err := a.Store().SentMail(id, acct.Email)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to fetch mail"})
		return
	}
	c.JSON(200, gin.H{"mail": mail})
}

/* ================================================================
   COMPOSE (user)
================================================================ */

func handleSend(a *app.App, c *gin.Context) {
	acct := currentAccount(c)

	var in OutboundRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}
	if !utils.ValidAddress(in.To) {
		c.JSON(400, gin.H{"error": "Invalid recipient address"})
		return
	}
	if !acct.CanSend {
		c.JSON(403, gin.H{"error": "Account is not allowed to send"})
		return
	}

	status, sendErr := a.Gateway().Send(c.Request.Context(), dispatch.Message{
		From:    acct.Email,
		To:      in.To,
		Subject: in.Subject,
		Text:    in.Body,
	})

	// the sent-mail record is written regardless of the outcome, so the
	// user's send history survives delivery failures
	now := time.Now().UTC()
	mail := models.Mail{
		ID:        uuid.New().String(),
		MailFrom:  acct.Email,
		MailTo:    in.To,
		Subject:   in.Subject,
		Body:      in.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Store().CreateMail(mail); err != nil {
		log.Printf("record outbound mail from %s: %v", acct.Email, err)
		c.JSON(400, gin.H{"error": "Database error", "detail": err.Error()})
		return
	}

	if sendErr != nil {
		c.JSON(500, gin.H{"error": sendErr.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true, "status": status})
}

/* ================================================================
   PUBLIC API
================================================================ */

func handlePublicList(a *app.App, c *gin.Context) {
	mails, err := a.Store().RecentMails()
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to list mails"})
		return
	}
	c.JSON(200, gin.H{"mails": mails})
}

func handlePublicDetail(a *app.App, c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(400, gin.H{"error": "Missing parameter id"})
		return
	}

	mail, err := a.Store().MailByID(id)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to fetch mail"})
		return
	}
	c.JSON(200, gin.H{"mail": mail})
}
