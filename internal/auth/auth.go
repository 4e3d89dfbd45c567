package auth

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/openjsw/openposta/internal/models"
	"github.com/openjsw/openposta/internal/storage"
)

// Cookie names for the two independent session namespaces. A caller may
// hold both roles at once without collision.
const (
	AdminCookie = "token"
	UserCookie  = "user_token"
)

// Service resolves sessions and verifies credentials. A session token
// is literally the id of the matching account/admin row: it stays valid
// for exactly as long as that row exists.
type Service struct {
	store *storage.Database
}

func NewService(store *storage.Database) *Service {
	return &Service{store: store}
}

/* ======================  PASSWORDS  ============================== */

func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

/* ======================  COOKIES  ================================ */

// CookieValue extracts a named cookie from a raw Cookie header.
func CookieValue(header, name string) string {
	for _, part := range strings.Split(header, ";") {
		if k, v, ok := strings.Cut(strings.TrimSpace(part), "="); ok && k == name {
			return v
		}
	}
	return ""
}

// SetSessionCookie issues a session cookie for one namespace.
func SetSessionCookie(w http.ResponseWriter, name, token string) {
	w.Header().Add("Set-Cookie",
		fmt.Sprintf("%s=%s; HttpOnly; Path=/; SameSite=Lax", name, token))
}

// ClearSessionCookie expires a session cookie immediately.
func ClearSessionCookie(w http.ResponseWriter, name string) {
	w.Header().Add("Set-Cookie",
		fmt.Sprintf("%s=; Expires=Thu, 01 Jan 1970 00:00:00 GMT; Path=/;", name))
}

/* ======================  SESSIONS  =============================== */

// AdminSession resolves the admin cookie on a request. An absent or
// empty token resolves to nil without touching the store; otherwise the
// token is matched against the admins table by exact id.
func (s *Service) AdminSession(r *http.Request) (*models.Admin, error) {
	token := CookieValue(r.Header.Get("Cookie"), AdminCookie)
	if token == "" {
		return nil, nil
	}
	if s.store == nil {
		return nil, storage.ErrNotBound
	}
	return s.store.AdminByID(token)
}

// UserSession resolves the user cookie on a request against the
// accounts table by exact id.
func (s *Service) UserSession(r *http.Request) (*models.Account, error) {
	token := CookieValue(r.Header.Get("Cookie"), UserCookie)
	if token == "" {
		return nil, nil
	}
	if s.store == nil {
		return nil, storage.ErrNotBound
	}
	return s.store.AccountByID(token)
}

/* ======================  LOGINS  ================================= */

// LoginAdmin verifies admin credentials and returns the matched admin,
// whose id becomes the session token.
func (s *Service) LoginAdmin(username, password string) (*models.Admin, error) {
	adm, err := s.store.AdminByUsername(username)
	if err != nil || adm == nil {
		return nil, err
	}
	if s.CheckPassword(password, adm.Password) != nil {
		return nil, nil
	}
	return adm, nil
}

// LoginUser verifies account credentials. An account with can_receive
// disabled cannot log in: receive capability doubles as portal access.
func (s *Service) LoginUser(email, password string) (*models.Account, error) {
	acct, err := s.store.ReceivableAccount(email)
	if err != nil || acct == nil {
		return nil, err
	}
	if s.CheckPassword(password, acct.Password) != nil {
		return nil, nil
	}
	return acct, nil
}
