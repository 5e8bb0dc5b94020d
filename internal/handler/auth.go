package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ubaid/marketplace-auth/internal/config"
	"github.com/ubaid/marketplace-auth/internal/model"
	"github.com/ubaid/marketplace-auth/internal/oauth"
	"github.com/ubaid/marketplace-auth/internal/queue"
	"github.com/ubaid/marketplace-auth/internal/repository"
	"github.com/ubaid/marketplace-auth/internal/utils"
)

// storeTimeout bounds every call to the backing store. A timed-out call
// surfaces as 408; no retry is attempted here.
const storeTimeout = 10 * time.Second

// UserStore is the directory surface the handlers need. Implemented by
// repository.UserRepo; narrowed to an interface so tests can run against
// in-memory fakes.
type UserStore interface {
	FindOrCreateByEmail(ctx context.Context, email, name, photo string) (model.User, bool, error)
	PromoteRole(ctx context.Context, email, role string) error
	GetByID(ctx context.Context, id string) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

// TokenStore is the refresh-token surface. Implemented by repository.TokenRepo.
type TokenStore interface {
	SaveRefresh(ctx context.Context, uid, token string) error
	ValidateRefresh(ctx context.Context, uid, presented string) (model.User, error)
}

// IdentityProvider drives the external login handshake.
type IdentityProvider interface {
	AuthURL(state string) string
	ExchangeProfile(ctx context.Context, code string) (oauth.Profile, error)
}

// TokenVerifier validates a provider-issued ID token (the SPA login path).
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (oauth.Profile, error)
}

// EventPublisher emits auth events to the broker. May be nil; eventing is
// best-effort and never fails a request.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// AuthHandler bundles dependencies for the login and refresh endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Tokens   TokenStore
	Provider IdentityProvider
	Verifier TokenVerifier
	States   *oauth.StateStore
	Events   EventPublisher
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, p IdentityProvider, v TokenVerifier, s *oauth.StateStore, ev EventPublisher) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Provider: p, Verifier: v, States: s, Events: ev}
}

// ----- DTOs -----

// refreshReq binds with pointer fields so an absent field (a malformed
// request, 400) can be told apart from an explicitly empty string, which
// must flow through validation and fail as an ordinary mismatch (403).
type refreshReq struct {
	UID          *string `json:"uid"`
	RefreshToken *string `json:"refreshToken"`
}

type idTokenReq struct {
	IDToken string `json:"idToken"`
}

type loginResp struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UID          string `json:"uid"`
	Role         string `json:"role"`
}

// errMissingUserID guards against directory corruption: a resolved record
// must carry an id before any token is minted for it.
var errMissingUserID = errors.New("resolved user record has no id")

// GoogleLogin starts the redirect flow: mint a single-use state and send
// the browser to the provider's consent page.
func (h *AuthHandler) GoogleLogin(c echo.Context) error {
	state, err := h.States.New(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not start login"})
	}
	return c.Redirect(http.StatusTemporaryRedirect, h.Provider.AuthURL(state))
}

// GoogleCallback completes a provider handshake. From here on the profile
// claims are trusted completely; no additional verification is performed.
// Every failure inside the completion sequence turns into a redirect to
// the client's error URL so the browser is never left without a response.
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	ctx := c.Request().Context()
	if !h.States.Consume(ctx, c.QueryParam("state")) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid state parameter"})
	}
	profile, err := h.Provider.ExchangeProfile(ctx, c.QueryParam("code"))
	if err != nil {
		c.Logger().Errorf("oauth exchange failed: %v", err)
		return c.Redirect(http.StatusFound, h.Cfg.ClientOrigin+"?error=LoginFailed")
	}

	res, err := h.completeLogin(ctx, profile)
	if err != nil {
		if errors.Is(err, errMissingUserID) {
			c.Logger().Errorf("user id is missing for email %s", profile.Email)
			return c.Redirect(http.StatusFound, h.Cfg.ClientOrigin+"?error=UserError")
		}
		c.Logger().Errorf("login completion failed: %v", err)
		return c.Redirect(http.StatusFound, h.Cfg.ClientOrigin+"?error=LoginFailed")
	}

	q := url.Values{}
	q.Set("accessToken", res.AccessToken)
	q.Set("refreshToken", res.RefreshToken)
	q.Set("uid", res.UID)
	q.Set("role", res.Role)
	return c.Redirect(http.StatusFound, h.Cfg.ClientOrigin+"/auth/callback?"+q.Encode())
}

// TokenLogin is the SPA login path: the client obtained a Google ID token
// itself and posts it here for server-side verification. The completion
// sequence is identical to the redirect flow, but the token pair comes
// back as JSON instead of redirect query parameters.
func (h *AuthHandler) TokenLogin(c echo.Context) error {
	var req idTokenReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.IDToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "idToken required"})
	}
	ctx := c.Request().Context()
	profile, err := h.Verifier.Verify(ctx, req.IDToken)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid id token"})
	}
	res, err := h.completeLogin(ctx, profile)
	if err != nil {
		c.Logger().Errorf("login completion failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	return c.JSON(http.StatusOK, res)
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is NOT rotated: the same token remains valid until
// the next login replaces it.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.UID == nil || req.RefreshToken == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing uid or refresh token"})
	}
	uid := *req.UID
	c.Logger().Infof("refresh requested for uid=%s", uid)

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	u, err := h.Tokens.ValidateRefresh(ctx, uid, *req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			c.Logger().Warnf("refresh failed: user not found for uid=%s", uid)
			return c.JSON(http.StatusForbidden, echo.Map{"error": "user not found"})
		case errors.Is(err, repository.ErrInvalidRefreshToken):
			c.Logger().Warnf("invalid refresh token for uid=%s", uid)
			return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid refresh token"})
		case errors.Is(err, context.DeadlineExceeded):
			c.Logger().Errorf("store timed out validating refresh for uid=%s", uid)
			return c.JSON(http.StatusRequestTimeout, echo.Map{"error": "database timeout"})
		default:
			c.Logger().Errorf("refresh lookup failed for uid=%s: %v", uid, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
		}
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, u.RoleOrDefault(), u.NameOrDefault(), u.AvatarURL, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	c.Logger().Infof("token refreshed for uid=%s", uid)
	return c.JSON(http.StatusOK, echo.Map{"accessToken": access.Token})
}

// completeLogin runs the shared completion sequence for both login paths:
// upsert the directory record, mint the token pair and durably store the
// new refresh token before any response carries it to the client. Issuing
// the new refresh token invalidates whatever token the user held before.
func (h *AuthHandler) completeLogin(ctx context.Context, p oauth.Profile) (loginResp, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	u, created, err := h.Users.FindOrCreateByEmail(ctx, p.Email, p.Name, p.Picture)
	if err != nil {
		return loginResp{}, err
	}
	if u.ID == "" {
		return loginResp{}, errMissingUserID
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, u.RoleOrDefault(), u.NameOrDefault(), u.AvatarURL, h.Cfg.AccessTTLMin)
	if err != nil {
		return loginResp{}, err
	}
	refresh := utils.NewRefreshToken()
	if err := h.Tokens.SaveRefresh(ctx, u.ID, refresh); err != nil {
		return loginResp{}, err
	}

	if created && h.Events != nil {
		_ = h.Events.Publish(ctx, queue.AuthEvent{
			Type:  queue.EventUserRegistered,
			UID:   u.ID,
			Email: u.Email,
			Role:  u.RoleOrDefault(),
			At:    time.Now().UTC().Format(time.RFC3339),
		})
	}

	return loginResp{
		AccessToken:  access.Token,
		RefreshToken: refresh,
		UID:          u.ID,
		Role:         u.RoleOrDefault(),
	}, nil
}
