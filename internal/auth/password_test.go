package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := &BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("pass1")
	require.NoError(t, err)
	assert.NotEqual(t, "pass1", hash)

	assert.True(t, h.Compare(hash, "pass1"))
	assert.False(t, h.Compare(hash, "pass2"))
	assert.False(t, h.Compare("", "pass1"))

	_, err = h.Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestFingerprint(t *testing.T) {
	assert.Empty(t, Fingerprint(""))
	fp := Fingerprint("some.jwt.token")
	assert.Len(t, fp, 12)
	assert.Equal(t, fp, Fingerprint("some.jwt.token"))
	assert.NotEqual(t, fp, Fingerprint("other.jwt.token"))
}

func TestCookies(t *testing.T) {
	c := Cookies{Secure: true}
	rec := httptest.NewRecorder()

	c.SetSession(rec, "sid", time.Now().Add(time.Hour))
	c.SetFlash(rec, "fid", time.Minute)
	c.ClearSession(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 3)

	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Equal(t, "sid", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	assert.Equal(t, FlashCookieName, cookies[1].Name)
	assert.Equal(t, 60, cookies[1].MaxAge)

	assert.Equal(t, SessionCookieName, cookies[2].Name)
	assert.Equal(t, -1, cookies[2].MaxAge)
}
