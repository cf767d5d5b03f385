package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CredentialStore persists users and password reset requests in PostgreSQL.
type CredentialStore struct {
	db  DB
	now func() time.Time
}

func NewCredentialStore(db DB) *CredentialStore {
	return &CredentialStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const userColumns = `id, email, first_name, last_name, password, email_verified, created_at, updated_at`

// FindUserByEmail returns nil, nil when no user has the email.
func (s *CredentialStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("USER_LOOKUP_FAILED").With("email", email).Wrap(err)
	}
	return user, nil
}

// FindUserByID returns nil, nil when the id is unknown.
func (s *CredentialStore) FindUserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("USER_LOOKUP_FAILED").With("user_id", id).Wrap(err)
	}
	return user, nil
}

// CreateUser inserts an unverified user. It returns ErrEmailTaken when the
// unique index on email rejects the row.
func (s *CredentialStore) CreateUser(ctx context.Context, nu NewUser) (*User, error) {
	now := s.now()
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, email, first_name, last_name, password, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6)
		RETURNING `+userColumns,
		uuid.NewString(), nu.Email, nu.FirstName, nu.LastName, nu.PasswordHash, now)

	user, err := scanUser(row)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, oops.Code("USER_CREATE_FAILED").With("email", nu.Email).Wrap(err)
	}
	return user, nil
}

// SetEmailVerified marks the user verified. It reports false when the user
// was already verified or does not exist.
func (s *CredentialStore) SetEmailVerified(ctx context.Context, userID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET email_verified = TRUE, updated_at = $2
		WHERE id = $1 AND email_verified = FALSE
	`, userID, s.now())
	if err != nil {
		return false, oops.Code("USER_VERIFY_FAILED").With("user_id", userID).Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *CredentialStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET password = $2, updated_at = $3 WHERE id = $1`, userID, passwordHash, s.now())
	if err != nil {
		return oops.Code("USER_PASSWORD_UPDATE_FAILED").With("user_id", userID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("user_id", userID).Wrap(ErrNotFound)
	}
	return nil
}

// DeleteUser removes the user and any outstanding reset request for them.
func (s *CredentialStore) DeleteUser(ctx context.Context, userID string) error {
	return withTx(ctx, s.db, func(tx pgx.Tx) error {
		var email string
		err := tx.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING email`, userID).Scan(&email)
		if errors.Is(err, pgx.ErrNoRows) {
			return oops.Code("USER_NOT_FOUND").With("user_id", userID).Wrap(ErrNotFound)
		}
		if err != nil {
			return oops.Code("USER_DELETE_FAILED").With("user_id", userID).Wrap(err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM password_resets WHERE email = $1`, email); err != nil {
			return oops.Code("RESET_DELETE_FAILED").With("email", email).Wrap(err)
		}
		return nil
	})
}

// ReplacePasswordReset stores token as the only outstanding reset for email.
// The upsert on the unique email index drops any earlier request in the same
// statement, so concurrent requests leave exactly one row behind.
func (s *CredentialStore) ReplacePasswordReset(ctx context.Context, email, token string) (*PasswordReset, error) {
	reset := &PasswordReset{
		ID:        ulid.Make(),
		Email:     email,
		Token:     token,
		CreatedAt: s.now(),
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO password_resets (id, email, token, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET id = EXCLUDED.id, token = EXCLUDED.token, created_at = EXCLUDED.created_at
	`, reset.ID.String(), reset.Email, reset.Token, reset.CreatedAt)
	if err != nil {
		return nil, oops.Code("RESET_REPLACE_FAILED").With("email", email).Wrap(err)
	}
	return reset, nil
}

// FindPasswordReset returns the row matching both email and the exact token,
// or nil, nil.
func (s *CredentialStore) FindPasswordReset(ctx context.Context, email, token string) (*PasswordReset, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, token, created_at
		FROM password_resets
		WHERE email = $1 AND token = $2
	`, email, token)

	reset, err := scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("RESET_LOOKUP_FAILED").With("email", email).Wrap(err)
	}
	return reset, nil
}

func (s *CredentialStore) DeletePasswordReset(ctx context.Context, id ulid.ULID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM password_resets WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").With("id", id.String()).Wrap(ErrNotFound)
	}
	return nil
}

// DeletePasswordResets removes every reset for email. Deleting nothing is fine.
func (s *CredentialStore) DeletePasswordResets(ctx context.Context, email string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM password_resets WHERE email = $1`, email); err != nil {
		return oops.Code("RESET_DELETE_FAILED").With("email", email).Wrap(err)
	}
	return nil
}

// ConsumePasswordReset deletes the reset matching email and token and sets the
// user's password in one transaction. It reports false, without changing
// anything, when no such reset exists. Two submissions of the same link
// cannot both succeed.
func (s *CredentialStore) ConsumePasswordReset(ctx context.Context, email, token, passwordHash string) (bool, error) {
	consumed := false
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM password_resets WHERE email = $1 AND token = $2`, email, token)
		if err != nil {
			return oops.Code("RESET_DELETE_FAILED").With("email", email).Wrap(err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		tag, err = tx.Exec(ctx, `UPDATE users SET password = $2, updated_at = $3 WHERE email = $1`, email, passwordHash, s.now())
		if err != nil {
			return oops.Code("USER_PASSWORD_UPDATE_FAILED").With("email", email).Wrap(err)
		}
		if tag.RowsAffected() == 0 {
			return oops.Code("USER_NOT_FOUND").With("email", email).Wrap(ErrNotFound)
		}
		consumed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return consumed, nil
}

// withTx commits when fn succeeds and rolls back on error or panic.
func withTx(ctx context.Context, db DB, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = oops.Code("TX_COMMIT_FAILED").Wrap(cerr)
		}
	}()

	return fn(tx)
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanReset(row pgx.Row) (*PasswordReset, error) {
	var (
		idStr string
		r     PasswordReset
	)
	if err := row.Scan(&idStr, &r.Email, &r.Token, &r.CreatedAt); err != nil {
		return nil, err
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	r.ID = id
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
