package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/ubaid/marketplace-auth/internal/model"
)

// UserRepo reads and writes the 'users' table, the single durable record
// this subsystem owns. Email lookups are exact-match (the identity
// provider supplies a canonical address).
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, email, COALESCE(display_name,''), COALESCE(avatar_url,''), COALESCE(role,''), COALESCE(refresh_token,''), created_at, updated_at"

// FindOrCreateByEmail resolves the user record for a verified provider
// login. An existing record is repaired in place: NULL profile columns are
// back-filled from the provider claims without overwriting non-null
// values. A missing record is inserted with a fresh immutable id and the
// CUSTOMER role. The UNIQUE KEY on email makes first-login races safe:
// the losing insert re-reads the winner's row instead of creating a
// duplicate. The second return value reports whether a record was created.
func (r *UserRepo) FindOrCreateByEmail(ctx context.Context, email, name, photo string) (model.User, bool, error) {
	u, err := r.GetByEmail(ctx, email)
	if err == nil {
		u, err = r.backfill(ctx, u, name, photo)
		return u, false, err
	}
	if err != ErrUserNotFound {
		return model.User{}, false, err
	}

	id := uuid.NewString()
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, display_name, avatar_url, role) VALUES (?,?,NULLIF(?,''),NULLIF(?,''),?)",
		id, email, name, photo, model.RoleCustomer)
	if err != nil {
		if isDuplicateKey(err) {
			// Concurrent first login for the same email won the insert.
			u, err = r.GetByEmail(ctx, email)
			if err != nil {
				return model.User{}, false, err
			}
			u, err = r.backfill(ctx, u, name, photo)
			return u, false, err
		}
		return model.User{}, false, err
	}
	return model.User{
		ID:          id,
		Email:       email,
		DisplayName: name,
		AvatarURL:   photo,
		Role:        model.RoleCustomer,
	}, true, nil
}

// PromoteRole overwrites a user's role, located by email. Returns
// ErrUserNotFound when no record matches.
func (r *UserRepo) PromoteRole(ctx context.Context, email, role string) error {
	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", role, u.ID)
	return err
}

// GetByEmail fetches a user by exact email match.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.Role, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.Role, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// List returns all directory records, newest first. Refresh tokens are
// not selected; the listing is a profile view, not a session view.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, email, COALESCE(display_name,''), COALESCE(avatar_url,''), COALESCE(role,''), created_at, updated_at FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// backfill repairs a partially written record: NULL columns take the
// supplied provider values, the role column takes CUSTOMER. Existing
// non-null values are never overwritten (COALESCE keeps the stored value).
func (r *UserRepo) backfill(ctx context.Context, u model.User, name, photo string) (model.User, error) {
	if u.DisplayName != "" && u.AvatarURL != "" && u.Role != "" {
		return u, nil
	}
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET display_name=COALESCE(display_name, NULLIF(?,'')), avatar_url=COALESCE(avatar_url, NULLIF(?,'')), role=COALESCE(role, ?) WHERE id=?",
		name, photo, model.RoleCustomer, u.ID)
	if err != nil {
		return model.User{}, err
	}
	if u.DisplayName == "" {
		u.DisplayName = name
	}
	if u.AvatarURL == "" {
		u.AvatarURL = photo
	}
	if u.Role == "" {
		u.Role = model.RoleCustomer
	}
	return u, nil
}

// isDuplicateKey detects a MySQL 1062 unique-constraint violation.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
