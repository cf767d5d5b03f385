package account

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSignupConfirmLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Signup(ctx, SignupRequest{
		Meta:      Meta{Locale: "de"},
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Password:  "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, flash(Success, MsgCheckEmail, "/login"), res)

	u := h.store.user("ada@example.com")
	require.NotNil(t, u)
	assert.False(t, u.EmailVerified)
	assert.NotEqual(t, "hunter22", u.PasswordHash)

	mail := h.mail.last(t)
	assert.Equal(t, "ada@example.com", mail.To)
	assert.Equal(t, "de", mail.Locale)
	assert.Equal(t, "Ada", mail.Params.FirstName)
	assert.NotEmpty(t, mail.Params.Token)

	res, err = h.svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, Danger, res.Category)
	assert.Equal(t, MsgVerifyFirst, res.Message)
	assert.Nil(t, res.Session)

	res, err = h.svc.ConfirmAccount(ctx, ConfirmRequest{Token: mail.Params.Token})
	require.NoError(t, err)
	assert.Equal(t, flash(Success, MsgConfirmed, "/login"), res)
	assert.True(t, h.store.user("ada@example.com").EmailVerified)

	res, err = h.svc.Login(ctx, LoginRequest{
		Meta:     Meta{IP: "203.0.113.9", UserAgent: "curl/8"},
		Email:    "ada@example.com",
		Password: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", res.Redirect)
	assert.False(t, res.HasFlash())
	require.NotNil(t, res.Session)
	assert.Equal(t, u.ID, res.Session.UserID)
	assert.Equal(t, "203.0.113.9", res.Session.IP)
	assert.Equal(t, h.clock.Now().Add(time.Hour), res.Session.ExpiresAt)
	assert.Equal(t, 1, h.sessions.len())

	assert.Equal(t, 1.0, testutil.ToFloat64(h.ops.WithLabelValues("signup", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.ops.WithLabelValues("login", "unverified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.ops.WithLabelValues("login", "success")))
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name   string
		req    SignupRequest
		fields []string
	}{
		{name: "empty", req: SignupRequest{}, fields: []string{"email", "firstName", "lastName", "password"}},
		{name: "bad email", req: SignupRequest{Email: "nope", FirstName: "a", LastName: "b", Password: "abcd"}, fields: []string{"email"}},
		{name: "display name", req: SignupRequest{Email: "A <a@x.com>", FirstName: "a", LastName: "b", Password: "abcd"}, fields: []string{"email"}},
		{name: "short password", req: SignupRequest{Email: "a@x.com", FirstName: "a", LastName: "b", Password: "abc"}, fields: []string{"password"}},
		{name: "long password", req: SignupRequest{Email: "a@x.com", FirstName: "a", LastName: "b", Password: strings.Repeat("p", 73)}, fields: []string{"password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			res, err := h.svc.Signup(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, Back, res.Redirect)
			assert.Empty(t, res.Category)
			assert.ElementsMatch(t, tt.fields, keys(res.FieldErrors))
			assert.NotContains(t, res.Old, "password")
			assert.Equal(t, 0, h.mail.count())
		})
	}
}

func TestSignup_ExistingEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := SignupRequest{Email: "dup@example.com", FirstName: "A", LastName: "B", Password: "secret"}

	_, err := h.svc.Signup(ctx, req)
	require.NoError(t, err)

	res, err := h.svc.Signup(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, Danger, res.Category)
	assert.Equal(t, MsgEmailTaken, res.Message)
	assert.Equal(t, Back, res.Redirect)
	assert.Equal(t, map[string]string{"email": "dup@example.com", "firstName": "A", "lastName": "B"}, res.Old)
	assert.Equal(t, 1, h.mail.count())
}

func TestSignup_Failures(t *testing.T) {
	t.Run("lookup error", func(t *testing.T) {
		h := newHarness(t)
		h.store.findErr = errBoom
		_, err := h.svc.Signup(context.Background(), SignupRequest{Email: "a@x.com", FirstName: "a", LastName: "b", Password: "abcd"})
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("mail error propagates", func(t *testing.T) {
		h := newHarness(t)
		h.mail.err = errBoom
		_, err := h.svc.Signup(context.Background(), SignupRequest{Email: "a@x.com", FirstName: "a", LastName: "b", Password: "abcd"})
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1.0, testutil.ToFloat64(h.ops.WithLabelValues("signup", "error")))
	})
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	h.signupVerified(t, "grace@example.com", "cobol")
	ctx := context.Background()

	tests := []struct {
		name     string
		req      LoginRequest
		message  string
		redirect string
	}{
		{name: "unknown email", req: LoginRequest{Email: "nobody@example.com", Password: "cobol"}, message: MsgNoAccount, redirect: Back},
		{name: "wrong password", req: LoginRequest{Email: "grace@example.com", Password: "fortran"}, message: MsgBadCredentials, redirect: Back},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.svc.Login(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, Danger, res.Category)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, tt.redirect, res.Redirect)
			assert.Equal(t, tt.req.Email, res.Old["email"])
			assert.Nil(t, res.Session)
		})
	}

	t.Run("missing fields", func(t *testing.T) {
		res, err := h.svc.Login(ctx, LoginRequest{})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"email", "password"}, keys(res.FieldErrors))
	})

	assert.Equal(t, 0, h.sessions.len())
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.signupVerified(t, "l@example.com", "pass")
	ctx := context.Background()

	res, err := h.svc.Login(ctx, LoginRequest{Email: "l@example.com", Password: "pass"})
	require.NoError(t, err)
	require.NotNil(t, res.Session)

	out := h.svc.Logout(ctx, LogoutRequest{SessionID: res.Session.ID})
	assert.Equal(t, Result{Redirect: "/", ClearSession: true}, out)
	assert.Equal(t, 0, h.sessions.len())

	// without a session it still clears the cookie
	out = h.svc.Logout(ctx, LogoutRequest{})
	assert.True(t, out.ClearSession)
}

func keys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
