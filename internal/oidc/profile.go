// Package oidc implements the authorization-code flow against one configured
// identity provider profile.
package oidc

import (
	"strings"

	"github.com/go-playground/errors/v5"
)

// Profile describes one identity provider connection option offered on the
// login page. Profiles are static configuration, loaded once per process.
type Profile struct {
	// Name is the unique key joining a login-time state token to the
	// callback-time profile lookup.
	Name string `yaml:"name"`

	// Title and CSSClass drive the rendered login button.
	Title    string `yaml:"title"`
	CSSClass string `yaml:"cssClass"`

	ClientID string `yaml:"clientId"`

	// ClientSecretRef is resolved through the secret store on first use.
	ClientSecretRef string `yaml:"clientSecretRef"`

	// ApplicationBaseURL is this webapp's public base URL, used to build
	// the fixed redirect URI.
	ApplicationBaseURL string `yaml:"applicationBaseUrl"`

	// AuthenticationBaseURL is the identity broker's base URL.
	AuthenticationBaseURL string `yaml:"authenticationBaseUrl"`

	// Scope is the space separated scope string for this profile.
	Scope string `yaml:"scope"`

	// ImmediateRedirect skips rendering the login page and redirects to
	// this provider directly.
	ImmediateRedirect bool `yaml:"immediateRedirect"`
}

// Validate checks that the profile carries everything the connector needs.
func (p Profile) Validate() error {
	switch {
	case p.Name == "":
		return errors.New("profile name is required")
	case p.ClientID == "":
		return errors.Newf("profile %q: clientId is required", p.Name)
	case p.ClientSecretRef == "":
		return errors.Newf("profile %q: clientSecretRef is required", p.Name)
	case p.ApplicationBaseURL == "":
		return errors.Newf("profile %q: applicationBaseUrl is required", p.Name)
	case p.AuthenticationBaseURL == "":
		return errors.Newf("profile %q: authenticationBaseUrl is required", p.Name)
	}

	return nil
}

// Scopes splits the space separated scope string.
func (p Profile) Scopes() []string {
	return strings.Fields(p.Scope)
}

// The broker publishes its endpoints under a fixed path layout rather than
// discovery metadata.
func (p Profile) issuerURL() string {
	return strings.TrimSuffix(p.AuthenticationBaseURL, "/") + "/broker/sp/oidc"
}

func (p Profile) authorizeURL() string {
	return p.issuerURL() + "/authenticate"
}

func (p Profile) tokenURL() string {
	return p.issuerURL() + "/token"
}

func (p Profile) jwksURL() string {
	return p.issuerURL() + "/certs"
}

// RedirectURL returns the fixed redirect URI registered with the provider.
func (p Profile) RedirectURL() string {
	return strings.TrimSuffix(p.ApplicationBaseURL, "/") + "/auth"
}
