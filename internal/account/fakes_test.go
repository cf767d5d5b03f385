package account

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"authflow/internal/auth"
	"authflow/internal/email"
	"authflow/internal/logging"
	"authflow/internal/observability"
	"authflow/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type memStore struct {
	mu      sync.Mutex
	users   map[string]*auth.User
	resets  map[string]string
	nextID  int
	findErr error
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*auth.User{}, resets: map[string]string{}}
}

func (m *memStore) FindUserByEmail(_ context.Context, addr string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[addr]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) CreateUser(_ context.Context, nu auth.NewUser) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[nu.Email]; ok {
		return nil, auth.ErrEmailTaken
	}
	m.nextID++
	u := &auth.User{
		ID:           "user-" + strconv.Itoa(m.nextID),
		Email:        nu.Email,
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		PasswordHash: nu.PasswordHash,
	}
	m.users[nu.Email] = u
	cp := *u
	return &cp, nil
}

func (m *memStore) SetEmailVerified(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id && !u.EmailVerified {
			u.EmailVerified = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ReplacePasswordReset(_ context.Context, addr, tok string) (*auth.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[addr] = tok
	return &auth.PasswordReset{Email: addr, Token: tok}, nil
}

func (m *memStore) ConsumePasswordReset(_ context.Context, addr, tok, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.resets[addr]; !ok || cur != tok {
		return false, nil
	}
	delete(m.resets, addr)
	m.users[addr].PasswordHash = hash
	return true, nil
}

func (m *memStore) user(addr string) *auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[addr]
}

type captureMailer struct {
	mu   sync.Mutex
	sent []email.Notification
	err  error
}

func (c *captureMailer) Deliver(_ context.Context, n email.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, n)
	return nil
}

func (c *captureMailer) last(t *testing.T) email.Notification {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent, "no email was sent")
	return c.sent[len(c.sent)-1]
}

func (c *captureMailer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type memSessions struct {
	mu        sync.Mutex
	sessions  map[string]auth.Session
	deleteErr error
}

func (m *memSessions) Create(_ context.Context, sess auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) DeleteByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	n := 0
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessions) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	svc      *Service
	store    *memStore
	mail     *captureMailer
	sessions *memSessions
	clock    *testClock
	ops      *prometheus.CounterVec
	hasher   auth.PasswordHasher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    newMemStore(),
		mail:     &captureMailer{},
		sessions: &memSessions{sessions: map[string]auth.Session{}},
		clock:    &testClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		hasher:   &auth.BcryptHasher{Cost: bcrypt.MinCost},
	}
	h.ops = observability.NewMetrics(prometheus.NewRegistry()).AccountOperations

	confirm, err := token.New(testSecret, token.ConfirmAccount, token.WithClock(h.clock.Now))
	require.NoError(t, err)
	reset, err := token.New(testSecret, token.ResetPassword, token.WithClock(h.clock.Now))
	require.NoError(t, err)

	h.svc = NewService(Deps{
		Store:         h.store,
		ConfirmTokens: confirm,
		ResetTokens:   reset,
		Mailer:        h.mail,
		Sessions:      h.sessions,
		Hasher:        h.hasher,
		Logger:        logging.Discard(),
		Operations:    h.ops,
		SessionTTL:    time.Hour,
		Now:           h.clock.Now,
	})
	return h
}

// signupVerified creates an account and confirms it through the mailed link.
func (h *harness) signupVerified(t *testing.T, addr, password string) {
	t.Helper()
	ctx := context.Background()
	res, err := h.svc.Signup(ctx, SignupRequest{Email: addr, FirstName: "Ada", LastName: "Lovelace", Password: password})
	require.NoError(t, err)
	require.Equal(t, Success, res.Category)

	res, err = h.svc.ConfirmAccount(ctx, ConfirmRequest{Token: h.mail.last(t).Params.Token})
	require.NoError(t, err)
	require.Equal(t, MsgConfirmed, res.Message)
}

var errBoom = errors.New("boom")
