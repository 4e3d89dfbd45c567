package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openjsw/openposta/internal/app"
)

/*
SetupRouter wires the full HTTP surface: the admin management API under
/manage, the per-user mailbox API under /user, and the unauthenticated
read-only API under /api. Every response carries the CORS headers and
every request is short-circuited first when the store is unbound.
*/
func SetupRouter(a *app.App) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsHeaders(a.GetConfig()), requireStore(a), preflight())

	/* ---------- admin namespace ---------- */
	r.POST("/manage/login", func(c *gin.Context) { handleAdminLogin(a, c) })
	r.POST("/manage/logout", func(c *gin.Context) { handleAdminLogout(a, c) })
	r.GET("/manage/check", func(c *gin.Context) { handleAdminCheck(a, c) })

	manage := r.Group("/manage")
	manage.Use(adminRequired(a))
	{
		manage.GET("/list", func(c *gin.Context) { handleListAccounts(a, c) })
		manage.POST("/add", func(c *gin.Context) { handleAddAccount(a, c) })
		manage.POST("/delete", func(c *gin.Context) { handleDeleteAccount(a, c) })
		manage.POST("/update", func(c *gin.Context) { handleUpdateAccount(a, c) })
	}

	/* ---------- user namespace ---------- */
	r.POST("/user/login", func(c *gin.Context) { handleUserLogin(a, c) })
	r.POST("/user/logout", func(c *gin.Context) { handleUserLogout(a, c) })
	r.GET("/user/check", func(c *gin.Context) { handleUserCheck(a, c) })

	user := r.Group("/user")
	user.Use(userRequired(a))
	{
		user.GET("/inbox", func(c *gin.Context) { handleInbox(a, c) })
		user.GET("/mail", func(c *gin.Context) { handleInboxMail(a, c) })
		user.GET("/sent", func(c *gin.Context) { handleSent(a, c) })
		user.GET("/sentmail", func(c *gin.Context) { handleSentMail(a, c) })
		user.POST("/send", func(c *gin.Context) { handleSend(a, c) })
	}

	/* ---------- public endpoints ---------- */
	r.GET("/api/list", func(c *gin.Context) { handlePublicList(a, c) })
	r.GET("/api/detail", func(c *gin.Context) { handlePublicDetail(a, c) })

	/* ---------- fallthrough ---------- */
	r.NoRoute(func(c *gin.Context) {
		// the admin-session rule covers the whole /manage prefix, even
		// paths that match no route
		if strings.HasPrefix(c.Request.URL.Path, "/manage/") {
			adm, err := a.Auth().AdminSession(c.Request)
			if err != nil {
				c.JSON(500, gin.H{"error": "Database error"})
				return
			}
			if adm == nil {
				c.JSON(401, gin.H{"error": "Not logged in"})
				return
			}
		}
		c.JSON(404, gin.H{"error": "Not found"})
	})

	return r
}
