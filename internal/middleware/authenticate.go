package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "strings"

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/ubaid/marketplace-auth/internal/model"
    "github.com/ubaid/marketplace-auth/internal/utils"
)

// principalKey is the context key under which the request principal is
// stored.  The gate also mirrors the uid and role under "user_id" and
// "role" for middleware that only needs those scalars (rate limiting).
const principalKey = "principal"

// Authenticate returns the authentication gate: an Echo middleware that
// performs best-effort identity resolution for every request.  It reads
// the Authorization header, decodes the bearer access token and attaches a
// request-scoped principal to the context.  Authentication here is
// optional by design: a missing header, a malformed header or a failed
// decode all degrade the request to anonymous and the chain continues.
// Authorization is a separate, mandatory stage (RequireAuth/RequireRole)
// that rejects anonymous access to protected routes.  The gate never
// overwrites a principal that an earlier invocation already established.
func Authenticate(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // Idempotent against double invocation: an established
            // identity is never replaced.
            if c.Get(principalKey) != nil {
                return next(c)
            }
            // A valid header starts with "Bearer " followed by the JWT.
            // Anything else means the request proceeds as anonymous.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return next(c)
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            claims, err := utils.DecodeAccessToken(secret, raw)
            if err != nil {
                // Decode failures are swallowed: the client sees no error
                // from the gate itself.  Downstream authorization produces
                // the user-visible 401/403 on protected routes.
                c.Logger().Debugf("access token rejected: %v", err)
                return next(c)
            }

            role := claims.Role
            if role == "" {
                role = model.RoleCustomer
            }
            p := model.Principal{
                UID:       claims.UID,
                Email:     claims.Email,
                Name:      claims.Name,
                PhotoURL:  claims.Photo,
                Role:      role,
                Authority: "ROLE_" + role,
            }
            c.Set(principalKey, p)
            c.Set("user_id", p.UID)
            c.Set("role", p.Role)
            return next(c)
        }
    }
}

// CurrentPrincipal returns the identity established by the gate for this
// request, if any.  The second return value is false for anonymous
// requests.
func CurrentPrincipal(c echo.Context) (model.Principal, bool) {
    p, ok := c.Get(principalKey).(model.Principal)
    return p, ok
}
