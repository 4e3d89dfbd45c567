package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openjsw/openposta/internal/app"
	"github.com/openjsw/openposta/internal/config"
	"github.com/openjsw/openposta/internal/models"
	"github.com/openjsw/openposta/internal/storage"
)

// corsHeaders stamps the permissive cross-origin headers on every
// response, success and error alike.
func corsHeaders(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", cfg.AllowOrigin)
		h.Set("Access-Control-Allow-Methods", "GET,HEAD,POST,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Allow-Credentials", "true")
		c.Next()
	}
}

// requireStore short-circuits every request with the fixed diagnostic
// when the database binding is missing, before any other logic runs.
func requireStore(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Store() == nil {
			c.AbortWithStatusJSON(500, gin.H{
				"error": storage.NotBoundZH,
				"en":    storage.NotBoundEN,
			})
			return
		}
		c.Next()
	}
}

// preflight answers CORS preflight requests.
func preflight() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// adminRequired guards the /manage namespace.
func adminRequired(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		adm, err := a.Auth().AdminSession(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(500, gin.H{"error": "Database error"})
			return
		}
		if adm == nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "Not logged in"})
			return
		}
		c.Next()
	}
}

// userRequired guards the /user namespace and stashes the resolved
// account, so handlers work with the caller's own email only.
func userRequired(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		acct, err := a.Auth().UserSession(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(500, gin.H{"error": "Database error"})
			return
		}
		if acct == nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "Not logged in"})
			return
		}
		c.Set("account", acct)
		c.Next()
	}
}

func currentAccount(c *gin.Context) *models.Account {
	return c.MustGet("account").(*models.Account)
}
