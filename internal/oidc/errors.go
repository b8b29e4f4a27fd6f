package oidc

import "errors"

var (
	// ErrInvalidState is returned when the state returned by the provider
	// is not among the session's known login states. Security relevant:
	// indicates replay or CSRF, never shown to the user.
	ErrInvalidState = errors.New("state does not match a known login state")

	// ErrAudienceMismatch is returned when the identity token's audience
	// does not match the configured client ID.
	ErrAudienceMismatch = errors.New("token audience does not match client id")

	// ErrTokenExchange is returned when the code-for-token exchange at the
	// provider fails.
	ErrTokenExchange = errors.New("token exchange failed")
)
