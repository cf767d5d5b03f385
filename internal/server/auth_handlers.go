package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"authflow/internal/account"
	"authflow/internal/auth"
	"authflow/internal/errutil"
	"authflow/internal/i18n"
)

const maxFormBytes = 64 << 10

// parseForm reads an urlencoded body. It answers 400 itself and reports
// false when the body is unusable.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

func (s *Server) meta(r *http.Request) account.Meta {
	return account.Meta{
		Locale:    i18n.LocaleFromRequest(r),
		IP:        clientIP(r, s.trustedProxies),
		UserAgent: r.UserAgent(),
	}
}

// respond turns a workflow result into cookies plus a 302. Errors become a
// logged 500.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, op string, res account.Result, err error) {
	ctx := r.Context()
	if err != nil {
		s.internalError(w, r, op, err)
		return
	}

	if res.Session != nil {
		s.Cookies.SetSession(w, res.Session.ID, res.Session.ExpiresAt)
	}
	if res.ClearSession {
		s.Cookies.ClearSession(w)
	}
	if res.HasFlash() {
		id, err := s.Flashes.Put(ctx, auth.Flash{
			Category: string(res.Category),
			Message:  res.Message,
			Errors:   res.FieldErrors,
			Old:      res.Old,
		})
		if err != nil {
			s.internalError(w, r, op, err)
			return
		}
		ttl := s.Flashes.TTL
		if ttl <= 0 {
			ttl = auth.DefaultFlashTTL
		}
		s.Cookies.SetFlash(w, id, ttl)
	}

	target := res.Redirect
	if target == account.Back || target == "" {
		target = backTarget(r)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	attrs := append([]any{"operation", op, "request_id", middleware.GetReqID(ctx)}, errutil.Attrs(err)...)
	s.Logger.ErrorContext(ctx, "request failed", attrs...)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	res, err := s.Accounts.Signup(r.Context(), account.SignupRequest{
		Meta:      s.meta(r),
		Email:     formValue(r, "email"),
		FirstName: formValue(r, "firstName"),
		LastName:  formValue(r, "lastName"),
		Password:  r.PostFormValue("password"),
	})
	s.respond(w, r, "signup", res, err)
}

func (s *Server) handleResendConfirmation(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	res, err := s.Accounts.ResendConfirmation(r.Context(), account.ResendRequest{
		Meta:  s.meta(r),
		Email: formValue(r, "email"),
	})
	s.respond(w, r, "resend_confirmation", res, err)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	res, err := s.Accounts.ConfirmAccount(r.Context(), account.ConfirmRequest{
		Meta:  s.meta(r),
		Token: chi.URLParam(r, "token"),
	})
	s.respond(w, r, "confirm_account", res, err)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	res, err := s.Accounts.Login(r.Context(), account.LoginRequest{
		Meta:     s.meta(r),
		Email:    formValue(r, "email"),
		Password: r.PostFormValue("password"),
	})
	s.respond(w, r, "login", res, err)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var id string
	if c, err := r.Cookie(auth.SessionCookieName); err == nil {
		id = c.Value
	}
	res := s.Accounts.Logout(r.Context(), account.LogoutRequest{Meta: s.meta(r), SessionID: id})
	s.respond(w, r, "logout", res, nil)
}

// handleFlash hands the pending flash to the page renderer exactly once.
func (s *Server) handleFlash(w http.ResponseWriter, r *http.Request) {
	var id string
	if c, err := r.Cookie(auth.FlashCookieName); err == nil {
		id = c.Value
	}
	f, err := s.Flashes.Pop(r.Context(), id)
	if err != nil {
		s.internalError(w, r, "flash", err)
		return
	}
	if id != "" {
		s.Cookies.ClearFlash(w)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"flash": f})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":    sess.UserID,
		"email":     sess.Email,
		"loginTime": sess.LoginTime,
		"expiresAt": sess.ExpiresAt,
	})
}
