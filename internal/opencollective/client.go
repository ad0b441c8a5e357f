// Package opencollective is a client for the OpenCollective GraphQL
// API, covering the expense operations: collective and account lookup,
// expense listing and processing, file uploads, and the multi-step
// submit flows the CLI and tool server are built on.
package opencollective

import (
	"errors"
	"net/http"
)

const (
	// APIURL is the primary GraphQL endpoint.
	APIURL = "https://api.opencollective.com/graphql/v2"

	// UploadURL is the frontend proxy used for file uploads. Direct
	// uploads to the API host are unreliable upstream, see
	// https://github.com/opencollective/opencollective-api/issues/11293
	UploadURL = "https://opencollective.com/api/graphql/v2"
)

// Client talks to the OpenCollective API with a bearer token. It is
// safe to reuse for sequential calls; no claim is made about
// concurrent use of one instance.
type Client struct {
	accessToken string
	apiURL      string
	uploadURL   string
	httpClient  *http.Client
}

// New creates a client for the production endpoints.
func New(accessToken string) (*Client, error) {
	return NewWithEndpoints(accessToken, APIURL, UploadURL)
}

// NewWithEndpoints creates a client against custom endpoints, used by
// tests to point at mock servers.
func NewWithEndpoints(accessToken, apiURL, uploadURL string) (*Client, error) {
	if accessToken == "" {
		return nil, errors.New("access token is required")
	}
	return &Client{
		accessToken: accessToken,
		apiURL:      apiURL,
		uploadURL:   uploadURL,
		httpClient:  http.DefaultClient,
	}, nil
}

// FromTokenFile creates a client from a saved token file. An empty
// path means DefaultTokenPath.
func FromTokenFile(path string) (*Client, error) {
	token, err := LoadToken(path)
	if err != nil {
		return nil, err
	}
	return New(token)
}

// AccessToken returns the token the client was built with.
func (c *Client) AccessToken() string {
	return c.accessToken
}
