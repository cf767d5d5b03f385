package server

import (
	"context"
	"net/http"
	"time"

	"authflow/internal/auth"
	"authflow/internal/errutil"
)

type ctxKey string

const sessionContextKey ctxKey = "session"

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.SessionCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		sess, err := s.Sessions.Get(r.Context(), cookie.Value)
		if err != nil {
			errutil.LogError(r.Context(), s.Logger, "session lookup failed", err)
			writeError(w, http.StatusInternalServerError, "Failed to read session")
			return
		}
		if sess == nil || sess.ExpiresAt.Before(time.Now()) {
			s.Cookies.ClearSession(w)
			writeError(w, http.StatusUnauthorized, "Session expired")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) *auth.Session {
	if val, ok := ctx.Value(sessionContextKey).(*auth.Session); ok {
		return val
	}
	return nil
}
