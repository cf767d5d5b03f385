package account

import "authflow/internal/auth"

type Category string

const (
	Success Category = "success"
	Danger  Category = "danger"
)

// Back asks the HTTP layer to return the browser to the page it came from.
const Back = "back"

const (
	MsgCheckEmail      = "please check your email to confirm the account"
	MsgEmailTaken      = "an account already exists with this email"
	MsgResendGeneric   = "if the email is valid, you should receive an email!"
	MsgAlreadyVerified = "account already verified!"
	MsgLinkInvalid     = "Link is Invalid or it has expired!"
	MsgUserNotFound    = "user not found"
	MsgConfirmed       = "account confirmed successfully"
	MsgResetGeneric    = "if the email is valid, you should receive a password reset link!"
	MsgResetNotFound   = "password reset request not found"
	MsgPasswordReset   = "password reset successfully"
	MsgNoAccount       = "no account found"
	MsgVerifyFirst     = "please verify email first"
	MsgBadCredentials  = "incorrect credentials"
)

// Result is what an operation tells the browser: an optional flashed status,
// field errors with the input to refill, and where to go next.
type Result struct {
	Category    Category
	Message     string
	Redirect    string
	FieldErrors map[string][]string
	Old         map[string]string

	// Session is set by a successful login.
	Session *auth.Session
	// ClearSession is set by logout.
	ClearSession bool
}

// HasFlash reports whether the result carries anything to show.
func (r Result) HasFlash() bool {
	return r.Category != "" || len(r.FieldErrors) > 0
}

func flash(c Category, msg, redirect string) Result {
	return Result{Category: c, Message: msg, Redirect: redirect}
}

func invalid(errs fieldErrors, old map[string]string) Result {
	return Result{Redirect: Back, FieldErrors: errs, Old: old}
}
