package repository

import (
	"context"
	"crypto/subtle"
	"database/sql"

	"github.com/ubaid/marketplace-auth/internal/model"
)

// TokenRepo persists and validates refresh tokens. The 'users' row is the
// single source of truth: one refresh_token column per user, last write
// wins, no per-device list.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// SaveRefresh overwrites the current refresh token for the given user id,
// invalidating whatever token was stored before. Idempotent.
func (r *TokenRepo) SaveRefresh(ctx context.Context, uid, token string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=? WHERE id=?", token, uid)
	if err != nil {
		return err
	}
	// MySQL reports zero affected rows both for a missing id and for a
	// no-op rewrite of the same token, so distinguish the two.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=?", uid).Scan(&one); err == sql.ErrNoRows {
			return ErrUserNotFound
		} else if err != nil {
			return err
		}
	}
	return nil
}

// ValidateRefresh loads the record for uid and checks the presented token
// against the stored one. Returns ErrUserNotFound when the record is
// absent and ErrInvalidRefreshToken when no token is stored or the values
// differ. On success the full record is returned so the caller can
// extract claims for a new access token without a second read.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, uid, presented string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1",
		uid).Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.Role, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	if u.RefreshToken == "" ||
		subtle.ConstantTimeCompare([]byte(u.RefreshToken), []byte(presented)) != 1 {
		return model.User{}, ErrInvalidRefreshToken
	}
	return u, nil
}
