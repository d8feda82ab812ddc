package google

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ClientCredentials identify one registered OAuth client.
type ClientCredentials struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURL  string `koanf:"redirect_url"`
}

// Complete reports whether both the id and the secret are set.
func (c ClientCredentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// OAuthConfig returns the OAuth2 configuration for a client.
// The endpoint can be overridden for tests; a zero endpoint uses Google's.
func OAuthConfig(creds ClientCredentials, endpoint oauth2.Endpoint) *oauth2.Config {
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  creds.RedirectURL,
		Scopes:       GmailScopes,
	}
}

// RefreshTokenSource returns a token source that exchanges refreshToken for
// access tokens and caches them until they expire.
func RefreshTokenSource(ctx context.Context, conf *oauth2.Config, refreshToken string) oauth2.TokenSource {
	return conf.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	})
}
