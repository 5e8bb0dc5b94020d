package utils // package utils provides token issuing and decoding helpers

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
    "github.com/google/uuid"       // UUID generation for opaque refresh tokens and user ids
)

// ErrInvalidToken is returned by DecodeAccessToken for any token that cannot
// be trusted: bad signature, wrong algorithm, malformed structure or an
// expiry in the past.  Callers are not given the underlying cause.
var ErrInvalidToken = errors.New("invalid or expired token")

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the serialized JWT.  Access tokens are
// short-lived, self-contained and never persisted server side; the server
// holds nothing for them beyond the shared signing secret.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// Claims is the decoded content of an access token.  The subject is the
// user's email; uid, role, name and photo are custom claims.  Optional
// claims decode to empty strings and callers substitute their defaults.
type Claims struct {
    UID   string
    Email string
    Role  string
    Name  string
    Photo string
}

// NewAccessToken builds and signs an HS256 JWT carrying the full identity
// of a user.  The subject claim is the email; uid, role, name and photo
// are stored as custom claims so the gate can rebuild the principal
// without touching the directory.  ttlMin controls the validity window
// (one hour in the standard deployment).
func NewAccessToken(secret, uid, email, role, name, photo string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":   email,
        "uid":   uid,
        "role":  role,
        "name":  name,
        "photo": photo,
        "iat":   now.Unix(),
        "exp":   exp.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// DecodeAccessToken verifies the signature and expiry of a serialized
// access token and extracts its claims.  The signing method is pinned to
// HMAC; tokens signed with any other algorithm are rejected.  Missing
// optional claims are not an error and come back as empty strings.
func DecodeAccessToken(secret, raw string) (Claims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return Claims{}, ErrInvalidToken
    }
    mc, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Claims{}, ErrInvalidToken
    }
    return Claims{
        UID:   strClaim(mc, "uid"),
        Email: strClaim(mc, "sub"),
        Role:  strClaim(mc, "role"),
        Name:  strClaim(mc, "name"),
        Photo: strClaim(mc, "photo"),
    }, nil
}

// NewRefreshToken returns a cryptographically random opaque identifier.
// Refresh tokens carry no claims and no embedded expiry; their validity is
// decided solely by equality against the value stored on the user record.
func NewRefreshToken() string {
    return uuid.NewString()
}

// strClaim reads a string claim from the map, tolerating absence and
// non-string values.
func strClaim(mc jwt.MapClaims, key string) string {
    if v, ok := mc[key].(string); ok {
        return v
    }
    return ""
}
