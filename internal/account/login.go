package account

import (
	"context"
	"strings"

	"authflow/internal/auth"
	"authflow/internal/errutil"
)

// Login checks credentials for a verified account and opens a session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Result, error) {
	const op = "login"
	req.Email = strings.TrimSpace(req.Email)
	old := oldInput("email", req.Email)

	errs := fieldErrors{}
	errs.email("email", req.Email)
	errs.required("password", req.Password)
	if len(errs) > 0 {
		s.record(op, "invalid")
		return invalid(errs, old), nil
	}

	denied := func(outcome, msg string) (Result, error) {
		s.record(op, outcome)
		r := flash(Danger, msg, Back)
		r.Old = old
		return r, nil
	}

	user, err := s.store.FindUserByEmail(ctx, req.Email)
	if err != nil {
		s.record(op, "error")
		return Result{}, err
	}
	if user == nil {
		return denied("unknown_email", MsgNoAccount)
	}
	if !user.EmailVerified {
		return denied("unverified", MsgVerifyFirst)
	}
	if !s.hasher.Compare(user.PasswordHash, req.Password) {
		s.logger.InfoContext(ctx, "login failed", "user_id", user.ID, "ip", req.IP)
		return denied("bad_credentials", MsgBadCredentials)
	}

	now := s.now()
	sess := auth.Session{
		ID:        auth.NewSessionID(),
		UserID:    user.ID,
		Email:     user.Email,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		LoginTime: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		s.record(op, "error")
		return Result{}, err
	}

	s.logger.InfoContext(ctx, "login", "user_id", user.ID, "ip", req.IP)
	s.record(op, "success")
	return Result{Redirect: "/dashboard", Session: &sess}, nil
}

// Logout ends the caller's session. It always succeeds from the browser's
// point of view.
func (s *Service) Logout(ctx context.Context, req LogoutRequest) Result {
	if req.SessionID != "" {
		if err := s.sessions.Delete(ctx, req.SessionID); err != nil {
			s.logger.WarnContext(ctx, "failed to delete session", errutil.Attrs(err)...)
		}
	}
	s.record("logout", "success")
	return Result{Redirect: "/", ClearSession: true}
}
