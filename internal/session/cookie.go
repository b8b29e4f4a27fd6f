package session

import (
	"net/http"

	"github.com/cccteam/logger"
	"github.com/go-playground/errors/v5"
	"github.com/gofrs/uuid"
	"github.com/gorilla/securecookie"
)

// scKey is a type for storing values in the session cookie
type scKey string

func (c scKey) String() string {
	return string(c)
}

const (
	// Keys used within the secure cookie
	scSessionID scKey = "sessionID"

	defaultCookieName = "session"
)

type cookieManager interface {
	readSessionCookie(r *http.Request) (string, bool)
	writeSessionCookie(w http.ResponseWriter, sessionID string, sameSiteStrict bool) error
	clearSessionCookie(w http.ResponseWriter)
}

var _ cookieManager = (*cookieClient)(nil)

type cookieClient struct {
	secureCookie *securecookie.SecureCookie
	cookieName   string
}

func newCookieClient(secureCookie *securecookie.SecureCookie) *cookieClient {
	return &cookieClient{
		secureCookie: secureCookie,
		cookieName:   defaultCookieName,
	}
}

func (c *cookieClient) readSessionCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.cookieName)
	if err != nil {
		return "", false
	}

	cval := make(map[scKey]string)
	if err := c.secureCookie.Decode(c.cookieName, cookie.Value, &cval); err != nil {
		logger.Req(r).Error(errors.Wrap(err, "securecookie.Decode()"))

		return "", false
	}

	sessionID, ok := cval[scSessionID]
	if !ok || !validSessionID(sessionID) {
		return "", false
	}

	return sessionID, true
}

// writeSessionCookie sets the session cookie without a client-side expiry.
// The store's sliding TTL is the single authority on session lifetime; a
// MaxAge here would hard-expire active users in the browser while the
// server keeps extending their session.
func (c *cookieClient) writeSessionCookie(w http.ResponseWriter, sessionID string, sameSiteStrict bool) error {
	cval := map[scKey]string{
		scSessionID: sessionID,
	}
	encoded, err := c.secureCookie.Encode(c.cookieName, cval)
	if err != nil {
		return errors.Wrap(err, "securecookie.Encode()")
	}

	// The callback from the identity provider is a cross-site navigation,
	// so the cookie written during login cannot be SameSite=Strict.
	sameSite := http.SameSiteStrictMode
	if !sameSiteStrict {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    encoded,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: sameSite,
	})

	return nil
}

func (c *cookieClient) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// validSessionID checks that the sessionID is a valid uuid
func validSessionID(sessionID string) bool {
	if _, err := uuid.FromString(sessionID); err != nil {
		return false
	}

	return true
}
