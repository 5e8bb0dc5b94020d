// Package repository defines error types that are reused across
// repositories. These sentinel values allow handlers to distinguish
// failure scenarios and translate them into the right HTTP status:
// a missing user is a 403 on the refresh path but a 404 on the admin
// promote path, while a token mismatch is always a 403.
package repository

import "errors"

// ErrUserNotFound is returned when no user record exists for the given
// id or email.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidRefreshToken is returned when the presented refresh token
// does not match the single token currently stored for the user, or
// when the user has no active token at all.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")
