package account

import (
	"context"
	"errors"
	"strings"

	"authflow/internal/auth"
	"authflow/internal/email"
	"authflow/internal/errutil"
	"authflow/internal/token"
)

// Signup creates an unverified account and mails a confirmation link.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (Result, error) {
	const op = "signup"
	req.Email = strings.TrimSpace(req.Email)
	old := oldInput("email", req.Email, "firstName", req.FirstName, "lastName", req.LastName)

	errs := fieldErrors{}
	errs.email("email", req.Email)
	errs.required("firstName", req.FirstName)
	errs.required("lastName", req.LastName)
	errs.password("password", req.Password)
	if len(errs) > 0 {
		s.record(op, "invalid")
		return invalid(errs, old), nil
	}

	existing, err := s.store.FindUserByEmail(ctx, req.Email)
	if err != nil {
		s.record(op, "error")
		return Result{}, err
	}
	if existing != nil {
		s.record(op, "conflict")
		return emailTaken(old), nil
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.record(op, "error")
		return Result{}, err
	}

	user, err := s.store.CreateUser(ctx, auth.NewUser{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
	})
	if errors.Is(err, auth.ErrEmailTaken) {
		// lost a race with a concurrent signup for the same address
		s.record(op, "conflict")
		return emailTaken(old), nil
	}
	if err != nil {
		s.record(op, "error")
		return Result{}, err
	}

	if err := s.sendConfirmation(ctx, user, req.Locale); err != nil {
		s.record(op, "error")
		return Result{}, err
	}

	s.logger.InfoContext(ctx, "account created", "user_id", user.ID, "ip", req.IP)
	s.record(op, "success")
	return flash(Success, MsgCheckEmail, "/login"), nil
}

func emailTaken(old map[string]string) Result {
	r := flash(Danger, MsgEmailTaken, Back)
	r.Old = old
	return r
}

// ResendConfirmation mails a fresh confirmation link. Unknown addresses get
// the same answer as known ones; an already verified account is told so.
func (s *Service) ResendConfirmation(ctx context.Context, req ResendRequest) (Result, error) {
	const op = "resend_confirmation"
	req.Email = strings.TrimSpace(req.Email)

	errs := fieldErrors{}
	errs.email("email", req.Email)
	if len(errs) > 0 {
		s.record(op, "invalid")
		return invalid(errs, oldInput("email", req.Email)), nil
	}

	user, err := s.store.FindUserByEmail(ctx, req.Email)
	if err != nil {
		s.record(op, "error")
		return Result{}, err
	}
	if user == nil {
		s.record(op, "unknown_email")
		return flash(Success, MsgResendGeneric, "/login"), nil
	}
	if user.EmailVerified {
		s.record(op, "already_verified")
		return flash(Danger, MsgAlreadyVerified, "/login"), nil
	}

	if err := s.sendConfirmation(ctx, user, req.Locale); err != nil {
		s.record(op, "error")
		return Result{}, err
	}
	s.record(op, "success")
	return flash(Success, MsgResendGeneric, "/login"), nil
}

func (s *Service) sendConfirmation(ctx context.Context, user *auth.User, locale string) error {
	tok, err := s.confirm.Issue(user.Email)
	if err != nil {
		return err
	}
	return s.notify(ctx, email.ConfirmAccount, user, tok, locale)
}

// ConfirmAccount marks the account named by a confirmation token verified.
// Confirming twice is harmless.
func (s *Service) ConfirmAccount(ctx context.Context, req ConfirmRequest) (Result, error) {
	const op = "confirm_account"

	addr, err := s.confirm.Verify(req.Token)
	if err != nil {
		s.logRejected(ctx, op, req.Token, err)
		s.record(op, "invalid_token")
		return flash(Danger, MsgLinkInvalid, "/login"), nil
	}

	user, err := s.store.FindUserByEmail(ctx, addr)
	if err != nil {
		s.record(op, "error")
		return Result{}, err
	}
	if user == nil {
		s.record(op, "not_found")
		return flash(Danger, MsgUserNotFound, "/login"), nil
	}
	if user.EmailVerified {
		s.record(op, "already_verified")
		return Result{Redirect: "/login"}, nil
	}

	changed, err := s.store.SetEmailVerified(ctx, user.ID)
	if err != nil {
		s.record(op, "error")
		return Result{}, err
	}
	if !changed {
		// a concurrent confirmation got there first
		s.record(op, "already_verified")
		return Result{Redirect: "/login"}, nil
	}

	s.logger.InfoContext(ctx, "account confirmed", "user_id", user.ID)
	s.record(op, "success")
	return flash(Success, MsgConfirmed, "/login"), nil
}

func (s *Service) logRejected(ctx context.Context, op, raw string, err error) {
	attrs := []any{"operation", op, "token", auth.Fingerprint(raw)}
	if reason, ok := token.ReasonOf(err); ok {
		attrs = append(attrs, "reason", string(reason))
	} else {
		attrs = append(attrs, errutil.Attrs(err)...)
	}
	s.logger.DebugContext(ctx, "token rejected", attrs...)
}
