package oidc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-playground/errors/v5"
	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/oauth2"

	"github.com/gemeente-forms/management/internal/secrets"
)

const name = "github.com/gemeente-forms/management/internal/oidc"

var _ Authenticator = (*Connector)(nil)

// Connector drives the authorization-code flow for one profile. The client
// secret is fetched lazily from the secret store and cached for the
// connector's lifetime, which is one process invocation.
type Connector struct {
	profile    Profile
	secrets    secrets.Store
	verifier   *gooidc.IDTokenVerifier
	httpClient *http.Client

	mu           sync.Mutex
	clientSecret string
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithHTTPClient overrides the HTTP client used for provider calls.
// (default: 10s timeout)
func WithHTTPClient(client *http.Client) ConnectorOption {
	return func(c *Connector) {
		c.httpClient = client
	}
}

// New creates a Connector for the given profile. The provider's signing keys
// are resolved from its JWKS endpoint on first verification.
func New(ctx context.Context, profile Profile, secretStore secrets.Store, options ...ConnectorOption) (*Connector, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	c := &Connector{
		profile:    profile,
		secrets:    secretStore,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}

	keySet := gooidc.NewRemoteKeySet(gooidc.ClientContext(ctx, c.httpClient), profile.jwksURL())
	c.verifier = gooidc.NewVerifier(profile.issuerURL(), keySet, &gooidc.Config{
		ClientID: profile.ClientID,
		// The audience check is done explicitly in Authorize so a mismatch
		// is reported distinctly from a bad signature.
		SkipClientIDCheck: true,
	})

	return c, nil
}

// Profile returns the profile this connector was built for.
func (c *Connector) Profile() Profile {
	return c.profile
}

// GenerateState returns a single-use random state token binding a login
// attempt to its later callback.
func GenerateState() (string, error) {
	state, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(err, "uuid.NewV4()")
	}

	return state.String(), nil
}

// LoginURL builds the provider's authorization endpoint URL for the given
// state token.
func (c *Connector) LoginURL(state string) string {
	cfg := c.oauthConfig("")

	return cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("resource", c.profile.AuthenticationBaseURL))
}

// Authorize completes the login flow: it validates the returned state
// against the session's known states, exchanges the code for tokens, and
// verifies the identity token including its audience.
func (c *Connector) Authorize(ctx context.Context, code string, knownStates []string, returnedState string) (*Claims, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Connector.Authorize()")
	defer span.End()

	if !contains(knownStates, returnedState) {
		return nil, ErrInvalidState
	}

	clientSecret, err := c.oidcClientSecret(ctx)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauthConfig(clientSecret).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%w: no id_token in token response", ErrTokenExchange)
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}

	if !contains(idToken.Audience, c.profile.ClientID) {
		return nil, ErrAudienceMismatch
	}

	claims := &Claims{}
	if err := idToken.Claims(claims); err != nil {
		return nil, errors.Wrap(err, "oidc.IDToken.Claims()")
	}
	if err := idToken.Claims(&claims.raw); err != nil {
		return nil, errors.Wrap(err, "oidc.IDToken.Claims()")
	}

	return claims, nil
}

// oidcClientSecret retrieves the client secret from the secret store on
// first use.
func (c *Connector) oidcClientSecret(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clientSecret != "" {
		return c.clientSecret, nil
	}

	secret, err := c.secrets.Secret(ctx, c.profile.ClientSecretRef)
	if err != nil {
		return "", errors.Wrap(err, "secrets.Store.Secret()")
	}
	c.clientSecret = secret

	return secret, nil
}

func (c *Connector) oauthConfig(clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.profile.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  c.profile.RedirectURL(),
		Scopes:       c.profile.Scopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.profile.authorizeURL(),
			TokenURL:  c.profile.tokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func contains(elems []string, v string) bool {
	for _, s := range elems {
		if s == v {
			return true
		}
	}

	return false
}
