package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openjsw/openposta/internal/app"
	"github.com/openjsw/openposta/internal/auth"
	"github.com/openjsw/openposta/internal/config"
	"github.com/openjsw/openposta/internal/models"
	"github.com/openjsw/openposta/internal/storage"
)

/* ----------------------------------------------------------------
   helpers
-----------------------------------------------------------------*/

func newTestApp(t *testing.T) (*app.App, *storage.Database) {
	return newTestAppWith(t, config.Config{AllowOrigin: "*"})
}

func newTestAppWith(t *testing.T, cfg config.Config) (*app.App, *storage.Database) {
	t.Helper()
	store := testStore(t)
	return app.New(cfg, store), store
}

func testStore(t *testing.T) *storage.Database {
	t.Helper()
	store := storage.New(testConn(t))
	require.NoError(t, store.Init())
	t.Cleanup(func() { store.Close() })
	return store
}

func testConn(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	return conn
}

func seedAdmin(t *testing.T, a *app.App, username, password string) models.Admin {
	t.Helper()
	hash, err := a.Auth().HashPassword(password)
	require.NoError(t, err)
	adm, err := a.Store().CreateAdmin(username, hash)
	require.NoError(t, err)
	return adm
}

func seedAccount(t *testing.T, a *app.App, email, password string, canSend, canReceive bool) models.Account {
	t.Helper()
	hash, err := a.Auth().HashPassword(password)
	require.NoError(t, err)
	acct, err := a.Store().CreateAccount(email, hash, canSend, canReceive)
	require.NoError(t, err)
	return acct
}

func seedMail(t *testing.T, store *storage.Database, from, to, subject string, at time.Time) models.Mail {
	t.Helper()
	m := models.Mail{
		ID:        uuid.New().String(),
		MailFrom:  from,
		MailTo:    to,
		Subject:   subject,
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, store.CreateMail(m))
	return m
}

func perform(router *gin.Engine, method, path, body, cookie string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

/* ================================================================
   ADMIN SURFACE
================================================================ */

func TestAdminLogin(t *testing.T) {
	a, _ := newTestApp(t)
	adm := seedAdmin(t, a, "a", "p")
	router := SetupRouter(a)

	w := perform(router, "POST", "/manage/login", `{"username":"a","password":"wrong"}`, "")
	assert.Equal(t, 401, w.Code)
	assert.Empty(t, w.Header().Get("Set-Cookie"), "no cookie on failed login")

	w = perform(router, "POST", "/manage/login", `{"username":"a","password":"p"}`, "")
	require.Equal(t, 200, w.Code)
	cookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, auth.AdminCookie+"="+adm.ID)
	assert.Contains(t, cookie, "HttpOnly")
	assert.Contains(t, cookie, "SameSite=Lax")
}

func TestAdminLogoutAndCheck(t *testing.T) {
	a, _ := newTestApp(t)
	adm := seedAdmin(t, a, "a", "p")
	router := SetupRouter(a)

	w := perform(router, "GET", "/manage/check", "", auth.AdminCookie+"="+adm.ID)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, true, decode(t, w)["loggedIn"])

	w = perform(router, "GET", "/manage/check", "", "")
	require.Equal(t, 200, w.Code)
	assert.Equal(t, false, decode(t, w)["loggedIn"])

	w = perform(router, "POST", "/manage/logout", "", auth.AdminCookie+"="+adm.ID)
	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Expires=Thu, 01 Jan 1970")
}

func TestManagePrefixRequiresSession(t *testing.T) {
	a, _ := newTestApp(t)
	adm := seedAdmin(t, a, "a", "p")
	router := SetupRouter(a)

	w := perform(router, "GET", "/manage/list", "", "")
	assert.Equal(t, 401, w.Code)

	// the prefix rule covers even paths that match no route
	w = perform(router, "GET", "/manage/whatever", "", "")
	assert.Equal(t, 401, w.Code)

	w = perform(router, "GET", "/manage/whatever", "", auth.AdminCookie+"="+adm.ID)
	assert.Equal(t, 404, w.Code)
}

func TestManagePrefixStoreError(t *testing.T) {
	a, store := newTestApp(t)
	router := SetupRouter(a)
	require.NoError(t, store.Close())

	// session lookup fails on a dead store; the prefix rule reports it
	// the same way the route guard does
	w := perform(router, "GET", "/manage/whatever", "", auth.AdminCookie+"=abc")
	require.Equal(t, 500, w.Code)
	assert.Equal(t, "Database error", decode(t, w)["error"])
}

func TestAccountManagement(t *testing.T) {
	a, _ := newTestApp(t)
	adm := seedAdmin(t, a, "a", "p")
	router := SetupRouter(a)
	cookie := auth.AdminCookie + "=" + adm.ID

	// create with default flags
	w := perform(router, "POST", "/manage/add", `{"email":"u1@example.org","password":"pw"}`, cookie)
	require.Equal(t, 200, w.Code)

	// duplicate email is a store-level conflict with detail attached
	w = perform(router, "POST", "/manage/add", `{"email":"u1@example.org","password":"pw"}`, cookie)
	require.Equal(t, 400, w.Code)
	assert.NotEmpty(t, decode(t, w)["detail"])

	time.Sleep(2 * time.Millisecond)
	w = perform(router, "POST", "/manage/add",
		`{"email":"u2@example.org","password":"pw","can_send":false}`, cookie)
	require.Equal(t, 200, w.Code)

	w = perform(router, "GET", "/manage/list", "", cookie)
	require.Equal(t, 200, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "password", "credentials never leave the store")

	var list struct {
		Accounts []models.AccountSummary `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Accounts, 2)
	assert.Equal(t, "u2@example.org", list.Accounts[0].Email, "newest first")
	assert.False(t, list.Accounts[0].CanSend)
	assert.True(t, list.Accounts[0].CanReceive)

	// update: an omitted flag defaults to enabled
	w = perform(router, "POST", "/manage/update",
		`{"email":"u2@example.org","can_receive":false}`, cookie)
	require.Equal(t, 200, w.Code)
	acct, err := a.Store().AccountByEmail("u2@example.org")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.True(t, acct.CanSend)
	assert.False(t, acct.CanReceive)

	// tolerant delete: unknown email still succeeds
	w = perform(router, "POST", "/manage/delete", `{"email":"ghost@example.org"}`, cookie)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = perform(router, "POST", "/manage/delete", `{"email":"u1@example.org"}`, cookie)
	require.Equal(t, 200, w.Code)
	gone, err := a.Store().AccountByEmail("u1@example.org")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

/* ================================================================
   USER SURFACE
================================================================ */

func TestUserLogin(t *testing.T) {
	a, _ := newTestApp(t)
	acct := seedAccount(t, a, "alice@example.org", "pw", true, true)
	seedAccount(t, a, "norecv@example.org", "pw", true, false)
	router := SetupRouter(a)

	w := perform(router, "POST", "/user/login", `{"email":"alice@example.org","password":"pw"}`, "")
	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), auth.UserCookie+"="+acct.ID)

	w = perform(router, "POST", "/user/login", `{"email":"alice@example.org","password":"bad"}`, "")
	assert.Equal(t, 401, w.Code)

	// a receive-disabled account cannot use the portal at all
	w = perform(router, "POST", "/user/login", `{"email":"norecv@example.org","password":"pw"}`, "")
	assert.Equal(t, 401, w.Code)
}

func TestInboxIsolation(t *testing.T) {
	a, store := newTestApp(t)
	alice := seedAccount(t, a, "alice@example.org", "pw", true, true)
	seedAccount(t, a, "bob@example.org", "pw", true, true)
	router := SetupRouter(a)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	forAlice := seedMail(t, store, "ext@other.net", "alice@example.org", "alice mail", base)
	forBob := seedMail(t, store, "ext@other.net", "bob@example.org", "bob mail", base.Add(time.Minute))

	cookie := auth.UserCookie + "=" + alice.ID

	w := perform(router, "GET", "/user/inbox", "", cookie)
	require.Equal(t, 200, w.Code)
	var inbox struct {
		Mails []models.InboxEntry `json:"mails"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inbox))
	require.Len(t, inbox.Mails, 1)
	assert.Equal(t, forAlice.ID, inbox.Mails[0].ID)

	// another tenant's mail resolves to null, not to their data
	w = perform(router, "GET", "/user/mail?id="+forBob.ID, "", cookie)
	require.Equal(t, 200, w.Code)
	assert.Nil(t, decode(t, w)["mail"])

	w = perform(router, "GET", "/user/mail?id="+forAlice.ID, "", cookie)
	require.Equal(t, 200, w.Code)
	mail := decode(t, w)["mail"].(map[string]any)
	assert.Equal(t, "alice mail", mail["subject"])

	w = perform(router, "GET", "/user/mail", "", cookie)
	assert.Equal(t, 400, w.Code, "id parameter is required")

	w = perform(router, "GET", "/user/inbox", "", "")
	assert.Equal(t, 401, w.Code)

	w = perform(router, "GET", "/user/inbox", "", "user_token=bogus")
	assert.Equal(t, 401, w.Code)
}

func TestSendRoundTrip(t *testing.T) {
	a, store := newTestApp(t)
	alice := seedAccount(t, a, "alice@example.org", "pw", true, true)
	router := SetupRouter(a)
	cookie := auth.UserCookie + "=" + alice.ID

	// no provider credential configured: the attempt is skipped, not faked
	w := perform(router, "POST", "/user/send",
		`{"to":"x@y.com","subject":"S","body":"B"}`, cookie)
	require.Equal(t, 200, w.Code)
	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "skipped", out["status"])

	sent, err := store.Sent("alice@example.org")
	require.NoError(t, err)
	require.Len(t, sent, 1)

	m, err := store.SentMail(sent[0].ID, "alice@example.org")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "alice@example.org", m.MailFrom)
	assert.Equal(t, "x@y.com", m.MailTo)
	assert.Equal(t, "S", m.Subject)
	assert.Equal(t, "B", m.Body)
	assert.Equal(t, "", m.BodyHTML)
	assert.Equal(t, "", m.RawEmail)

	w = perform(router, "GET", "/user/sentmail?id="+m.ID, "", cookie)
	require.Equal(t, 200, w.Code)
	mail := decode(t, w)["mail"].(map[string]any)
	assert.Equal(t, "S", mail["subject"])
}

func TestSendProviderFailureStillRecordsMail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		io.WriteString(w, `{"message":"domain not verified"}`)
	}))
	defer srv.Close()

	a, store := newTestAppWith(t, config.Config{
		AllowOrigin:    "*",
		ResendAPIKey:   "re_test",
		ResendEndpoint: srv.URL,
	})
	alice := seedAccount(t, a, "alice@example.org", "pw", true, true)
	router := SetupRouter(a)

	w := perform(router, "POST", "/user/send",
		`{"to":"x@y.com","subject":"S","body":"B"}`, auth.UserCookie+"="+alice.ID)
	require.Equal(t, 500, w.Code)
	assert.Contains(t, decode(t, w)["error"], "domain not verified")

	// the attempt is still part of the sender's history
	sent, err := store.Sent("alice@example.org")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "S", sent[0].Subject)
}

func TestSendStoreFailureSurfacesDetail(t *testing.T) {
	conn := testConn(t)
	store := storage.New(conn)
	require.NoError(t, store.Init())
	t.Cleanup(func() { store.Close() })

	a := app.New(config.Config{AllowOrigin: "*"}, store)
	alice := seedAccount(t, a, "alice@example.org", "pw", true, true)
	router := SetupRouter(a)

	// the session still resolves, only the mail insert can fail
	_, err := conn.Exec("DROP TABLE mails")
	require.NoError(t, err)

	w := perform(router, "POST", "/user/send",
		`{"to":"x@y.com","subject":"S","body":"B"}`, auth.UserCookie+"="+alice.ID)
	require.Equal(t, 400, w.Code)
	out := decode(t, w)
	assert.Equal(t, "Database error", out["error"])
	assert.NotEmpty(t, out["detail"])
}

func TestSendForbiddenWithoutCapability(t *testing.T) {
	a, store := newTestApp(t)
	alice := seedAccount(t, a, "alice@example.org", "pw", false, true)
	router := SetupRouter(a)

	w := perform(router, "POST", "/user/send",
		`{"to":"x@y.com","subject":"S","body":"B"}`, auth.UserCookie+"="+alice.ID)
	assert.Equal(t, 403, w.Code)

	mails, err := store.RecentMails()
	require.NoError(t, err)
	assert.Empty(t, mails, "a forbidden send writes nothing")
}

func TestSendValidation(t *testing.T) {
	a, store := newTestApp(t)
	alice := seedAccount(t, a, "alice@example.org", "pw", true, true)
	router := SetupRouter(a)
	cookie := auth.UserCookie + "=" + alice.ID

	w := perform(router, "POST", "/user/send", `{"subject":"S","body":"B"}`, cookie)
	assert.Equal(t, 400, w.Code, "recipient is required")

	w = perform(router, "POST", "/user/send", `{"to":"not-an-address","subject":"S"}`, cookie)
	assert.Equal(t, 400, w.Code)

	w = perform(router, "POST", "/user/send", `{"to":"no-dot@domain","subject":"S"}`, cookie)
	assert.Equal(t, 400, w.Code)

	mails, err := store.RecentMails()
	require.NoError(t, err)
	assert.Empty(t, mails)
}

/* ================================================================
   PUBLIC SURFACE
================================================================ */

func TestPublicEndpoints(t *testing.T) {
	a, store := newTestApp(t)
	router := SetupRouter(a)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := seedMail(t, store, "a@x.org", "b@y.org", "public", base)

	// no cookie of any kind required
	w := perform(router, "GET", "/api/list", "", "")
	require.Equal(t, 200, w.Code)
	var list struct {
		Mails []models.MailSummary `json:"mails"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Mails, 1)
	assert.Equal(t, m.ID, list.Mails[0].ID)

	// and unrelated cookies change nothing
	w = perform(router, "GET", "/api/list", "", "user_token=bogus; token=bogus")
	assert.Equal(t, 200, w.Code)

	w = perform(router, "GET", "/api/detail?id="+m.ID, "", "")
	require.Equal(t, 200, w.Code)
	mail := decode(t, w)["mail"].(map[string]any)
	assert.Equal(t, "public", mail["subject"])

	w = perform(router, "GET", "/api/detail", "", "")
	assert.Equal(t, 400, w.Code)

	w = perform(router, "GET", "/api/detail?id=nope", "", "")
	require.Equal(t, 200, w.Code)
	assert.Nil(t, decode(t, w)["mail"])
}

func TestPublicListCap(t *testing.T) {
	a, store := newTestApp(t)
	router := SetupRouter(a)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		seedMail(t, store, "a@x.org", "b@y.org",
			fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	w := perform(router, "GET", "/api/list", "", "")
	require.Equal(t, 200, w.Code)
	var list struct {
		Mails []models.MailSummary `json:"mails"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Mails, 20)
	assert.Equal(t, "m24", list.Mails[0].Subject)
}

/* ================================================================
   CROSS-CUTTING
================================================================ */

func TestCORSAndPreflight(t *testing.T) {
	a, _ := newTestApp(t)
	router := SetupRouter(a)

	w := perform(router, "GET", "/api/list", "", "")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	// errors carry the headers too
	w = perform(router, "GET", "/no/such/path", "", "")
	assert.Equal(t, 404, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(router, "OPTIONS", "/user/send", "", "")
	assert.Equal(t, 204, w.Code)
	assert.Equal(t, "GET,HEAD,POST,OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestNotFound(t *testing.T) {
	a, _ := newTestApp(t)
	router := SetupRouter(a)

	w := perform(router, "GET", "/nope", "", "")
	require.Equal(t, 404, w.Code)
	assert.Equal(t, "Not found", decode(t, w)["error"])
}

func TestUnboundStoreShortCircuits(t *testing.T) {
	a := app.New(config.Config{AllowOrigin: "*"}, nil)
	router := SetupRouter(a)

	for _, path := range []string{"/api/list", "/manage/login", "/user/check", "/nope"} {
		w := perform(router, "GET", path, "", "")
		require.Equal(t, 500, w.Code, path)
		out := decode(t, w)
		assert.Equal(t, storage.NotBoundEN, out["en"], path)
		assert.Equal(t, storage.NotBoundZH, out["error"], path)
	}
}
