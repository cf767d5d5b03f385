package account

import (
	"context"
	"strings"

	"authflow/internal/email"
	"authflow/internal/errutil"
)

// RequestReset mails a password reset link when the address belongs to an
// account. The answer never says whether it does.
func (s *Service) RequestReset(ctx context.Context, req ForgotPasswordRequest) (Result, error) {
	const op = "request_reset"
	req.Email = strings.TrimSpace(req.Email)

	errs := fieldErrors{}
	errs.email("email", req.Email)
	if len(errs) > 0 {
		s.record(op, "invalid")
		return invalid(errs, oldInput("email", req.Email)), nil
	}

	generic := flash(Success, MsgResetGeneric, "/login")

	user, err := s.store.FindUserByEmail(ctx, req.Email)
	if err != nil {
		s.record(op, "error")
		return Result{}, err
	}
	if user == nil {
		s.record(op, "unknown_email")
		return generic, nil
	}

	tok, err := s.reset.Issue(user.Email)
	if err != nil {
		s.record(op, "error")
		return Result{}, err
	}
	// any earlier link for this address stops working here
	if _, err := s.store.ReplacePasswordReset(ctx, user.Email, tok); err != nil {
		s.record(op, "error")
		return Result{}, err
	}
	if err := s.notify(ctx, email.ResetPassword, user, tok, req.Locale); err != nil {
		s.record(op, "error")
		return Result{}, err
	}

	s.record(op, "success")
	return generic, nil
}

// ResetPassword sets a new password from a reset link. The link is spent on
// success and every session of the account is ended.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (Result, error) {
	const op = "reset_password"

	errs := fieldErrors{}
	errs.required("token", req.Token)
	errs.password("password", req.Password)
	if req.Password != req.PasswordConfirmation {
		errs.add("password", "confirmed")
	}
	if len(errs) > 0 {
		s.record(op, "invalid")
		return invalid(errs, nil), nil
	}

	addr, err := s.reset.Verify(req.Token)
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

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.record(op, "error")
		return Result{}, err
	}

	consumed, err := s.store.ConsumePasswordReset(ctx, user.Email, req.Token, hash)
	if err != nil {
		s.record(op, "error")
		return Result{}, err
	}
	if !consumed {
		s.record(op, "reset_not_found")
		return flash(Danger, MsgResetNotFound, "/login"), nil
	}

	n, err := s.sessions.DeleteByUser(ctx, user.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to revoke sessions after password reset",
			append([]any{"user_id", user.ID}, errutil.Attrs(err)...)...)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "sessions revoked after password reset", "user_id", user.ID, "count", n)
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID, "ip", req.IP)
	s.record(op, "success")
	return flash(Success, MsgPasswordReset, "/login"), nil
}
