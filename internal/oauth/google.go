// Package oauth integrates the external identity provider.  The provider
// performs the actual login handshake; this package only drives the
// authorization-code exchange and hands verified profile claims to the
// login completion handler, which trusts them as-is.
package oauth

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"

    "golang.org/x/oauth2"
    "golang.org/x/oauth2/google"
)

// googleUserinfoURL is the endpoint returning the profile of the account
// that granted consent.
const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Profile carries the verified claims the provider supplies for a
// completed login: the canonical email plus optional display name and
// avatar.
type Profile struct {
    Email   string `json:"email"`
    Name    string `json:"name"`
    Picture string `json:"picture"`
}

// Google drives the authorization-code flow against Google's OAuth
// endpoints.
type Google struct {
    conf *oauth2.Config
}

// NewGoogle builds the provider from the registered client credentials
// and callback URL.
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
    return &Google{
        conf: &oauth2.Config{
            ClientID:     clientID,
            ClientSecret: clientSecret,
            Endpoint:     google.Endpoint,
            RedirectURL:  redirectURL,
            Scopes:       []string{"openid", "email", "profile"},
        },
    }
}

// AuthURL returns the consent-page URL carrying the given anti-forgery
// state.
func (g *Google) AuthURL(state string) string {
    return g.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// ExchangeProfile trades the authorization code for a provider token and
// fetches the profile of the account behind it.
func (g *Google) ExchangeProfile(ctx context.Context, code string) (Profile, error) {
    tok, err := g.conf.Exchange(ctx, code)
    if err != nil {
        return Profile{}, fmt.Errorf("code exchange: %w", err)
    }
    client := g.conf.Client(ctx, tok)
    resp, err := client.Get(googleUserinfoURL)
    if err != nil {
        return Profile{}, fmt.Errorf("userinfo fetch: %w", err)
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        return Profile{}, fmt.Errorf("userinfo fetch: status %d", resp.StatusCode)
    }
    var p Profile
    if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
        return Profile{}, fmt.Errorf("userinfo decode: %w", err)
    }
    if p.Email == "" {
        return Profile{}, fmt.Errorf("userinfo missing email")
    }
    return p, nil
}
