package server

import (
	"net/http"

	"authflow/internal/account"
)

func (s *Server) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	res, err := s.Accounts.RequestReset(r.Context(), account.ForgotPasswordRequest{
		Meta:  s.meta(r),
		Email: formValue(r, "email"),
	})
	s.respond(w, r, "request_reset", res, err)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	res, err := s.Accounts.ResetPassword(r.Context(), account.ResetPasswordRequest{
		Meta:                 s.meta(r),
		Token:                formValue(r, "token"),
		Password:             r.PostFormValue("password"),
		PasswordConfirmation: r.PostFormValue("password_confirmation"),
	})
	s.respond(w, r, "reset_password", res, err)
}
