// Package token mints and checks the signed, expiring links used to prove
// control of an email address.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long an emailed link stays valid.
const DefaultTTL = 72 * time.Hour

const issuerName = "authflow"

// Purpose scopes a token to one flow. It is carried in the audience claim so
// a confirmation link cannot be replayed as a reset link.
type Purpose string

const (
	ConfirmAccount Purpose = "confirm-account"
	ResetPassword  Purpose = "reset-password"
)

// ErrInvalid is the only failure Verify reports to callers.
var ErrInvalid = errors.New("token is invalid or expired")

// Reason says why a token was rejected. It is meant for logs only.
type Reason string

const (
	ReasonMalformed Reason = "malformed"
	ReasonSignature Reason = "signature"
	ReasonExpired   Reason = "expired"
	ReasonAudience  Reason = "audience"
)

// InvalidError wraps ErrInvalid with the rejection reason.
type InvalidError struct {
	Reason Reason
}

func (e *InvalidError) Error() string { return ErrInvalid.Error() }

func (e *InvalidError) Unwrap() error { return ErrInvalid }

// ReasonOf returns the rejection reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var ie *InvalidError
	if errors.As(err, &ie) {
		return ie.Reason, true
	}
	return "", false
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret  []byte
	purpose Purpose
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Issuer)

func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) { i.ttl = ttl }
}

// WithClock replaces time.Now for both issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func New(secret []byte, purpose Purpose, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if purpose == "" {
		return nil, errors.New("token purpose is required")
	}
	i := &Issuer{
		secret:  secret,
		purpose: purpose,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return i, nil
}

func (i *Issuer) Purpose() Purpose { return i.purpose }

// Issue signs a token for email that expires TTL from now.
func (i *Issuer) Issue(email string) (string, error) {
	if email == "" {
		return "", errors.New("email is required")
	}
	now := i.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Audience:  jwt.ClaimStrings{string(i.purpose)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks signature, expiry and purpose and returns the email claim.
// Every failure is an *InvalidError matching ErrInvalid.
func (i *Issuer) Verify(raw string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(string(i.purpose)),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", &InvalidError{Reason: classify(err)}
	}
	if claims.Email == "" {
		return "", &InvalidError{Reason: ReasonMalformed}
	}
	return claims.Email, nil
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ReasonSignature
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ReasonAudience
	default:
		return ReasonMalformed
	}
}
