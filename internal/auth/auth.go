// Package auth runs the OAuth2 authorization-code flow against
// OpenCollective and persists the resulting access token for the
// client to pick up.
package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/policyengine/opencollective-go/internal/opencollective"
)

const (
	// AuthURL is the browser-facing authorization endpoint. Register
	// applications at https://opencollective.com/applications
	AuthURL = "https://opencollective.com/oauth/authorize"

	// TokenURL is the code-exchange endpoint.
	TokenURL = "https://opencollective.com/oauth/token"

	// DefaultScope grants expense submission and management.
	DefaultScope = "expenses"
)

// Handler drives the authorization-code exchange. The flow is manual:
// the user opens AuthorizationURL in a browser and pastes the code back.
type Handler struct {
	config    *oauth2.Config
	tokenPath string
}

// NewHandler creates a handler for the production OAuth2 endpoints.
// tokenPath is where the exchanged token is saved; empty means the
// default token path.
func NewHandler(clientID, clientSecret, redirectURL, tokenPath string) *Handler {
	return NewHandlerWithEndpoints(clientID, clientSecret, redirectURL, tokenPath, AuthURL, TokenURL)
}

// NewHandlerWithEndpoints creates a handler against custom endpoints,
// used by tests to point at a mock token server.
func NewHandlerWithEndpoints(clientID, clientSecret, redirectURL, tokenPath, authURL, tokenURL string) *Handler {
	return &Handler{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{DefaultScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokenPath: tokenPath,
	}
}

// AuthorizationURL is the URL the user opens to grant access.
func (h *Handler) AuthorizationURL() string {
	return h.config.AuthCodeURL("")
}

// ExchangeCode trades an authorization code for an access token and
// saves it to the token file.
func (h *Handler) ExchangeCode(ctx context.Context, code string) (string, error) {
	token, err := h.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchanging authorization code: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response had no access token")
	}
	if err := opencollective.SaveToken(h.tokenPath, token.AccessToken); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}
