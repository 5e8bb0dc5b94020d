package model

import "time"

// Role names form a small closed set.  A user's role is stored as a plain
// string column and is only ever changed through the admin promote
// endpoint; the login flow never touches it.
const (
    RoleCustomer = "CUSTOMER" // default role assigned on first login
    RoleSeller   = "SELLER"   // granted by an admin promotion
    RoleAdmin    = "ADMIN"    // full administrative access
)

// ValidRole reports whether the given name belongs to the closed role set.
func ValidRole(r string) bool {
    switch r {
    case RoleCustomer, RoleSeller, RoleAdmin:
        return true
    }
    return false
}

// User represents one authenticated principal as stored in the `users`
// table.  The identity provider owns the actual credential; this record
// only carries the reconciled profile and the session state.
//
// Fields:
//  ID           – immutable UUID assigned on first login.
//  Email        – unique lookup key used during provider reconciliation.
//  DisplayName  – denormalized profile name, refreshed opportunistically.
//  AvatarURL    – denormalized profile photo URL.
//  Role         – CUSTOMER, SELLER or ADMIN.  Empty means "not yet written";
//                 readers must substitute CUSTOMER (see RoleOrDefault).
//  RefreshToken – the single refresh token currently valid for this user.
//                 Empty means no active session.  Issuing a new one
//                 invalidates the old one; there is no multi-device list.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           string    // users.id
    Email        string    // users.email
    DisplayName  string    // users.display_name (nullable)
    AvatarURL    string    // users.avatar_url (nullable)
    Role         string    // users.role (nullable in legacy rows)
    RefreshToken string    // users.refresh_token (nullable)
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RoleOrDefault returns the user's role, substituting CUSTOMER when the
// stored value is absent.  Consumers must never observe an empty role.
func (u User) RoleOrDefault() string {
    if u.Role == "" {
        return RoleCustomer
    }
    return u.Role
}

// NameOrDefault returns the display name, or "User" when the profile
// never supplied one.
func (u User) NameOrDefault() string {
    if u.DisplayName == "" {
        return "User"
    }
    return u.DisplayName
}

// Principal is the request-scoped identity established by the
// authentication gate from a decoded access token.  It is attached to the
// request context, never to any ambient global state.
type Principal struct {
    UID       string `json:"uid"`
    Email     string `json:"email"`
    Name      string `json:"name"`
    PhotoURL  string `json:"photo"`
    Role      string `json:"role"`
    Authority string `json:"authority"` // "ROLE_<role>", consumed by the route policy
}
