package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"authflow/internal/account"
	"authflow/internal/auth"
	"authflow/internal/config"
)

// Accounts is the workflow surface the handlers drive.
type Accounts interface {
	Signup(ctx context.Context, req account.SignupRequest) (account.Result, error)
	ResendConfirmation(ctx context.Context, req account.ResendRequest) (account.Result, error)
	ConfirmAccount(ctx context.Context, req account.ConfirmRequest) (account.Result, error)
	RequestReset(ctx context.Context, req account.ForgotPasswordRequest) (account.Result, error)
	ResetPassword(ctx context.Context, req account.ResetPasswordRequest) (account.Result, error)
	Login(ctx context.Context, req account.LoginRequest) (account.Result, error)
	Logout(ctx context.Context, req account.LogoutRequest) account.Result
}

type Server struct {
	Accounts       Accounts
	Sessions       *auth.SessionStore
	Flashes        *auth.FlashStore
	Cookies        auth.Cookies
	Config         config.Config
	Logger         *slog.Logger
	trustedProxies []net.IPNet
}

func NewServer(cfg config.Config, accounts Accounts, sessions *auth.SessionStore, flashes *auth.FlashStore, logger *slog.Logger) *Server {
	return &Server{
		Accounts:       accounts,
		Sessions:       sessions,
		Flashes:        flashes,
		Cookies:        auth.Cookies{Secure: cfg.SecureCookies},
		Config:         cfg,
		Logger:         logger,
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	formatter := &middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.Logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}
	r.Use(middleware.RequestLogger(formatter))
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)

	r.Post("/api/signup", s.handleSignup)
	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logout", s.handleLogout)
	r.Get("/api/confirm/{token}", s.handleConfirm)
	r.Post("/api/confirm/resend", s.handleResendConfirmation)
	r.Post("/api/password/reset/email", s.handleRequestReset)
	r.Post("/api/password/reset", s.handleResetPassword)

	r.Get("/api/flash", s.handleFlash)

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireSession)
		pr.Get("/api/session", s.handleSession)
	})

	return r
}
