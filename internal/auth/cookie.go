package auth

import (
	"net/http"
	"time"
)

const (
	SessionCookieName = "session_id"
	FlashCookieName   = "flash_id"
)

// Cookies writes the session and flash cookies. Secure is off only for
// plain-http development.
type Cookies struct {
	Secure bool
}

func (c Cookies) SetSession(w http.ResponseWriter, id string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

func (c Cookies) ClearSession(w http.ResponseWriter) {
	c.clear(w, SessionCookieName)
}

func (c Cookies) SetFlash(w http.ResponseWriter, id string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

func (c Cookies) ClearFlash(w http.ResponseWriter) {
	c.clear(w, FlashCookieName)
}

func (c Cookies) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
