package oidc

import "context"

// Authenticator is the interface the request handlers use to drive the
// authorization-code flow. Implemented by Connector.
type Authenticator interface {
	// Profile returns the profile this authenticator serves.
	Profile() Profile

	// LoginURL builds the authorization endpoint URL for a state token.
	LoginURL(state string) string

	// Authorize exchanges the callback code for verified claims. It fails
	// with ErrInvalidState when returnedState is not in knownStates, with
	// ErrAudienceMismatch when the identity token was not issued for this
	// client, and with ErrTokenExchange on provider failures.
	Authorize(ctx context.Context, code string, knownStates []string, returnedState string) (*Claims, error)
}
