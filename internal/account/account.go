// Package account runs the signup, confirmation, password reset and login
// workflows. Every operation takes an explicit request and returns a Result
// by value; only infrastructure failures come back as errors.
package account

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"authflow/internal/auth"
	"authflow/internal/email"
)

// Store is the persistence the workflows need.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*auth.User, error)
	CreateUser(ctx context.Context, nu auth.NewUser) (*auth.User, error)
	SetEmailVerified(ctx context.Context, userID string) (bool, error)
	ReplacePasswordReset(ctx context.Context, email, token string) (*auth.PasswordReset, error)
	ConsumePasswordReset(ctx context.Context, email, token, passwordHash string) (bool, error)
}

// Tokens issues and verifies links for a single purpose.
type Tokens interface {
	Issue(email string) (string, error)
	Verify(token string) (string, error)
}

type Mailer interface {
	Deliver(ctx context.Context, n email.Notification) error
}

type Sessions interface {
	Create(ctx context.Context, sess auth.Session) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

type Deps struct {
	Store         Store
	ConfirmTokens Tokens
	ResetTokens   Tokens
	Mailer        Mailer
	Sessions      Sessions
	Hasher        auth.PasswordHasher
	Logger        *slog.Logger
	// Operations counts outcomes by operation and outcome label. Optional.
	Operations *prometheus.CounterVec
	SessionTTL time.Duration
	Now        func() time.Time
}

type Service struct {
	store      Store
	confirm    Tokens
	reset      Tokens
	mailer     Mailer
	sessions   Sessions
	hasher     auth.PasswordHasher
	logger     *slog.Logger
	ops        *prometheus.CounterVec
	sessionTTL time.Duration
	now        func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:      d.Store,
		confirm:    d.ConfirmTokens,
		reset:      d.ResetTokens,
		mailer:     d.Mailer,
		sessions:   d.Sessions,
		hasher:     d.Hasher,
		logger:     d.Logger,
		ops:        d.Operations,
		sessionTTL: d.SessionTTL,
		now:        d.Now,
	}
	if s.hasher == nil {
		s.hasher = auth.NewBcryptHasher()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 7 * 24 * time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Meta carries what the HTTP layer knows about the caller.
type Meta struct {
	Locale    string
	IP        string
	UserAgent string
}

type SignupRequest struct {
	Meta
	Email     string
	FirstName string
	LastName  string
	Password  string
}

type ResendRequest struct {
	Meta
	Email string
}

type ConfirmRequest struct {
	Meta
	Token string
}

type ForgotPasswordRequest struct {
	Meta
	Email string
}

type ResetPasswordRequest struct {
	Meta
	Token                string
	Password             string
	PasswordConfirmation string
}

type LoginRequest struct {
	Meta
	Email    string
	Password string
}

type LogoutRequest struct {
	Meta
	SessionID string
}

func (s *Service) record(op, outcome string) {
	if s.ops != nil {
		s.ops.WithLabelValues(op, outcome).Inc()
	}
}

func (s *Service) notify(ctx context.Context, t email.Template, u *auth.User, tok, locale string) error {
	return s.mailer.Deliver(ctx, email.Notification{
		Template: t,
		To:       u.Email,
		Locale:   locale,
		Params: email.Params{
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Token:     tok,
		},
	})
}
