package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubaid/marketplace-auth/internal/config"
	"github.com/ubaid/marketplace-auth/internal/model"
	"github.com/ubaid/marketplace-auth/internal/oauth"
	"github.com/ubaid/marketplace-auth/internal/repository"
	"github.com/ubaid/marketplace-auth/internal/utils"
)

const (
	testSecret = "handler-test-secret"
	testOrigin = "http://localhost:5173"
)

// memStore is an in-memory stand-in for the user directory and the
// refresh token store, mirroring the repository semantics.
type memStore struct {
	mu      sync.Mutex
	byID    map[string]model.User
	seq     int
	findErr error // injected failure for FindOrCreateByEmail
	saveErr error // injected failure for SaveRefresh
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]model.User{}}
}

func (m *memStore) FindOrCreateByEmail(_ context.Context, email, name, photo string) (model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return model.User{}, false, m.findErr
	}
	for id, u := range m.byID {
		if u.Email == email {
			if u.DisplayName == "" {
				u.DisplayName = name
			}
			if u.AvatarURL == "" {
				u.AvatarURL = photo
			}
			if u.Role == "" {
				u.Role = model.RoleCustomer
			}
			m.byID[id] = u
			return u, false, nil
		}
	}
	m.seq++
	u := model.User{
		ID:          fmt.Sprintf("uid-%04d", m.seq),
		Email:       email,
		DisplayName: name,
		AvatarURL:   photo,
		Role:        model.RoleCustomer,
	}
	m.byID[u.ID] = u
	return u, true, nil
}

func (m *memStore) PromoteRole(_ context.Context, email, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.byID {
		if u.Email == email {
			u.Role = role
			m.byID[id] = u
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (m *memStore) GetByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memStore) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	return out, nil
}

func (m *memStore) SaveRefresh(_ context.Context, uid, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	u, ok := m.byID[uid]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.RefreshToken = token
	m.byID[uid] = u
	return nil
}

func (m *memStore) ValidateRefresh(_ context.Context, uid, presented string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[uid]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	if u.RefreshToken == "" || u.RefreshToken != presented {
		return model.User{}, repository.ErrInvalidRefreshToken
	}
	return u, nil
}

type fakeProvider struct {
	profile oauth.Profile
	err     error
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://accounts.example/consent?state=" + state
}

func (f *fakeProvider) ExchangeProfile(context.Context, string) (oauth.Profile, error) {
	return f.profile, f.err
}

type fakeVerifier struct {
	profile oauth.Profile
	err     error
}

func (f *fakeVerifier) Verify(context.Context, string) (oauth.Profile, error) {
	return f.profile, f.err
}

func newTestAuthHandler(ms *memStore, prov IdentityProvider, ver TokenVerifier) *AuthHandler {
	cfg := config.Config{
		JWTSecret:    testSecret,
		AccessTTLMin: 60,
		ClientOrigin: testOrigin,
	}
	return NewAuthHandler(cfg, ms, ms, prov, ver, oauth.NewStateStore(nil), nil)
}

// do runs a single handler through echo and returns the recorder.
func do(t *testing.T, method, target, body string, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h(c))
	return rec
}

func TestGoogleLoginRedirectsToConsentPage(t *testing.T) {
	h := newTestAuthHandler(newMemStore(), &fakeProvider{}, &fakeVerifier{})
	rec := do(t, http.MethodGet, "/api/auth/google/login", "", h.GoogleLogin)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.NotEmpty(t, loc.Query().Get("state"))
}

func TestCallbackFirstLoginCreatesCustomer(t *testing.T) {
	ms := newMemStore()
	h := newTestAuthHandler(ms, &fakeProvider{profile: oauth.Profile{Email: "a@x.com", Name: "Ann"}}, &fakeVerifier{})

	state, err := h.States.New(context.Background())
	require.NoError(t, err)
	rec := do(t, http.MethodGet, "/api/auth/google/callback?state="+state+"&code=xyz", "", h.GoogleCallback)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, testOrigin+"/auth/callback", loc.Scheme+"://"+loc.Host+loc.Path)

	q := loc.Query()
	uid := q.Get("uid")
	require.NotEmpty(t, uid)
	assert.Equal(t, model.RoleCustomer, q.Get("role"))

	// Issued access token carries the directory record's claims.
	claims, err := utils.DecodeAccessToken(testSecret, q.Get("accessToken"))
	require.NoError(t, err)
	assert.Equal(t, uid, claims.UID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, model.RoleCustomer, claims.Role)
	assert.Equal(t, "Ann", claims.Name)
	assert.Empty(t, claims.Photo)

	// The refresh token was durably stored before the redirect.
	u, err := ms.ValidateRefresh(context.Background(), uid, q.Get("refreshToken"))
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, u.Role)
}

func TestCallbackInvalidStateRejected(t *testing.T) {
	h := newTestAuthHandler(newMemStore(), &fakeProvider{}, &fakeVerifier{})
	rec := do(t, http.MethodGet, "/api/auth/google/callback?state=forged&code=xyz", "", h.GoogleCallback)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	h := newTestAuthHandler(newMemStore(), &fakeProvider{profile: oauth.Profile{Email: "a@x.com"}}, &fakeVerifier{})
	state, err := h.States.New(context.Background())
	require.NoError(t, err)

	first := do(t, http.MethodGet, "/api/auth/google/callback?state="+state+"&code=xyz", "", h.GoogleCallback)
	assert.Equal(t, http.StatusFound, first.Code)
	replay := do(t, http.MethodGet, "/api/auth/google/callback?state="+state+"&code=xyz", "", h.GoogleCallback)
	assert.Equal(t, http.StatusBadRequest, replay.Code)
}

func TestCallbackExchangeFailureRedirectsToErrorURL(t *testing.T) {
	h := newTestAuthHandler(newMemStore(), &fakeProvider{err: errors.New("provider down")}, &fakeVerifier{})
	state, err := h.States.New(context.Background())
	require.NoError(t, err)

	rec := do(t, http.MethodGet, "/api/auth/google/callback?state="+state+"&code=xyz", "", h.GoogleCallback)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testOrigin+"?error=LoginFailed", rec.Header().Get("Location"))
}

func TestCallbackStoreFailureRedirectsToErrorURL(t *testing.T) {
	ms := newMemStore()
	ms.saveErr = errors.New("store unavailable")
	h := newTestAuthHandler(ms, &fakeProvider{profile: oauth.Profile{Email: "a@x.com"}}, &fakeVerifier{})
	state, err := h.States.New(context.Background())
	require.NoError(t, err)

	rec := do(t, http.MethodGet, "/api/auth/google/callback?state="+state+"&code=xyz", "", h.GoogleCallback)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testOrigin+"?error=LoginFailed", rec.Header().Get("Location"))
}

func TestCallbackCorruptRecordRedirectsToUserError(t *testing.T) {
	ms := newMemStore()
	// Legacy record without an id; the guard must refuse to mint tokens.
	ms.byID[""] = model.User{Email: "a@x.com"}
	h := newTestAuthHandler(ms, &fakeProvider{profile: oauth.Profile{Email: "a@x.com"}}, &fakeVerifier{})
	state, err := h.States.New(context.Background())
	require.NoError(t, err)

	rec := do(t, http.MethodGet, "/api/auth/google/callback?state="+state+"&code=xyz", "", h.GoogleCallback)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testOrigin+"?error=UserError", rec.Header().Get("Location"))
}

func TestTokenLoginReturnsPairAsJSON(t *testing.T) {
	ms := newMemStore()
	h := newTestAuthHandler(ms, &fakeProvider{}, &fakeVerifier{profile: oauth.Profile{Email: "a@x.com", Name: "Ann"}})

	rec := do(t, http.MethodPost, "/api/auth/google", `{"idToken":"provider-token"}`, h.TokenLogin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accessToken"`)
	assert.Contains(t, rec.Body.String(), `"refreshToken"`)
	assert.Contains(t, rec.Body.String(), `"CUSTOMER"`)
}

func TestTokenLoginRejectsBadIDToken(t *testing.T) {
	h := newTestAuthHandler(newMemStore(), &fakeProvider{}, &fakeVerifier{err: errors.New("bad audience")})
	rec := do(t, http.MethodPost, "/api/auth/google", `{"idToken":"x"}`, h.TokenLogin)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, http.MethodPost, "/api/auth/google", `{}`, h.TokenLogin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// login runs the completion sequence directly and returns the result.
func login(t *testing.T, h *AuthHandler, email, name, photo string) loginResp {
	t.Helper()
	res, err := h.completeLogin(context.Background(), oauth.Profile{Email: email, Name: name, Picture: photo})
	require.NoError(t, err)
	return res
}

func TestRepeatedLoginKeepsSameUserID(t *testing.T) {
	h := newTestAuthHandler(newMemStore(), &fakeProvider{}, &fakeVerifier{})
	first := login(t, h, "a@x.com", "Ann", "")
	second := login(t, h, "a@x.com", "Ann", "")
	assert.Equal(t, first.UID, second.UID)
}

func TestSecondLoginInvalidatesPriorRefreshToken(t *testing.T) {
	ms := newMemStore()
	h := newTestAuthHandler(ms, &fakeProvider{}, &fakeVerifier{})

	first := login(t, h, "a@x.com", "Ann", "")
	second := login(t, h, "a@x.com", "Ann", "")
	require.Equal(t, first.UID, second.UID)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err := ms.ValidateRefresh(context.Background(), first.UID, first.RefreshToken)
	assert.ErrorIs(t, err, repository.ErrInvalidRefreshToken)
	_, err = ms.ValidateRefresh(context.Background(), second.UID, second.RefreshToken)
	assert.NoError(t, err)
}

func TestPromotedRoleCarriedByNextLogin(t *testing.T) {
	ms := newMemStore()
	h := newTestAuthHandler(ms, &fakeProvider{}, &fakeVerifier{})

	login(t, h, "a@x.com", "Ann", "")
	require.NoError(t, ms.PromoteRole(context.Background(), "a@x.com", model.RoleSeller))

	res := login(t, h, "a@x.com", "Ann", "")
	assert.Equal(t, model.RoleSeller, res.Role)
	claims, err := utils.DecodeAccessToken(testSecret, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleSeller, claims.Role)
}

func TestRefreshHappyPathDoesNotRotate(t *testing.T) {
	ms := newMemStore()
	h := newTestAuthHandler(ms, &fakeProvider{}, &fakeVerifier{})
	res := login(t, h, "a@x.com", "", "")

	body := fmt.Sprintf(`{"uid":%q,"refreshToken":%q}`, res.UID, res.RefreshToken)
	rec := do(t, http.MethodPost, "/api/auth/refresh", body, h.Refresh)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accessToken"`)
	assert.NotContains(t, rec.Body.String(), `"refreshToken"`)

	// The same refresh token remains valid after use.
	rec = do(t, http.MethodPost, "/api/auth/refresh", body, h.Refresh)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshSubstitutesProfileDefaults(t *testing.T) {
	ms := newMemStore()
	ms.byID["uid-7"] = model.User{ID: "uid-7", Email: "b@x.com", RefreshToken: "tok-7"}
	h := newTestAuthHandler(ms, &fakeProvider{}, &fakeVerifier{})

	rec := do(t, http.MethodPost, "/api/auth/refresh", `{"uid":"uid-7","refreshToken":"tok-7"}`, h.Refresh)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	claims, err := utils.DecodeAccessToken(testSecret, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, claims.Role)
	assert.Equal(t, "User", claims.Name)
	assert.Empty(t, claims.Photo)
}

func TestRefreshMissingFieldsIsBadRequest(t *testing.T) {
	h := newTestAuthHandler(newMemStore(), &fakeProvider{}, &fakeVerifier{})
	for _, body := range []string{`{}`, `{"uid":"u1"}`, `{"refreshToken":"t"}`, `{"uid":null,"refreshToken":"t"}`} {
		rec := do(t, http.MethodPost, "/api/auth/refresh", body, h.Refresh)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRefreshUnknownUserIsForbiddenNot500(t *testing.T) {
	h := newTestAuthHandler(newMemStore(), &fakeProvider{}, &fakeVerifier{})
	rec := do(t, http.MethodPost, "/api/auth/refresh", `{"uid":"nope","refreshToken":"t"}`, h.Refresh)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "user not found")
}

func TestRefreshNonMatchingTokenIsForbidden(t *testing.T) {
	ms := newMemStore()
	h := newTestAuthHandler(ms, &fakeProvider{}, &fakeVerifier{})
	first := login(t, h, "a@x.com", "Ann", "")
	second := login(t, h, "a@x.com", "Ann", "")

	// Any non-matching string is a 403, including the empty string and the
	// rotated-out token from the first login. Only an absent field is a 400.
	for _, tok := range []string{"wrong-token", "", first.RefreshToken} {
		body := fmt.Sprintf(`{"uid":%q,"refreshToken":%q}`, second.UID, tok)
		rec := do(t, http.MethodPost, "/api/auth/refresh", body, h.Refresh)
		assert.Equal(t, http.StatusForbidden, rec.Code, tok)
		assert.Contains(t, rec.Body.String(), "invalid refresh token")
	}
}
