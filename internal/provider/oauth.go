package provider

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// NewOAuthConfig builds the x/oauth2 client config for a platform, falling
// back to the platform's default scopes when the operator configured none.
func NewOAuthConfig(creds Credentials, endpoint oauth2.Endpoint, defaultScopes []string) *oauth2.Config {
	scopes := creds.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURL,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}
}

// ExchangeCode runs the authorization-code exchange, honoring stub mode.
func ExchangeCode(ctx context.Context, e *Executor, cfg *oauth2.Config, platform, code string) (*oauth2.Token, error) {
	if e.Stub() {
		return e.SimulateToken(platform, code), nil
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s code exchange failed: %w", platform, err)
	}
	return tok, nil
}
