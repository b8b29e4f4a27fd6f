// Package sessioninfo holds the session record shared between the session
// manager and its storage drivers.
package sessioninfo

import (
	"encoding/json"
	"time"

	"github.com/gemeente-forms/management/internal/access"
)

// Status is the single authoritative state of a session. It replaces the
// loggedin/status flag pair that tends to drift apart.
type Status string

const (
	// StatusAnonymous is a session without any login attempt.
	StatusAnonymous Status = "anonymous"

	// StatusAwaitingCallback is set when the login page has issued state
	// tokens and the provider callback has not arrived yet.
	StatusAwaitingCallback Status = "awaiting_callback"

	// StatusPreLogin is set after a successful token exchange, before the
	// post-login processor has attached permissions.
	StatusPreLogin Status = "pre_login"

	// StatusAuthenticated is a fully logged in session.
	StatusAuthenticated Status = "authenticated"

	// StatusLoggedOut is an explicit logout; the record is retained until
	// its TTL runs out but grants nothing.
	StatusLoggedOut Status = "logged_out"
)

// Record is the server side session state, serialized as one value in the
// session store.
type Record struct {
	Status Status `json:"status"`

	// Email is set once the post-login processor has authorized the user.
	Email string `json:"email,omitempty"`

	// Permissions are only meaningful when Status is StatusAuthenticated.
	Permissions []access.Permission `json:"permissions,omitempty"`

	// Claims holds the raw identity provider claims between the callback
	// and the post-login processor, and is cleared afterwards.
	Claims json.RawMessage `json:"claims,omitempty"`

	// States maps each outstanding state token to the OIDC profile name it
	// was issued for. Populated by the login page, consumed by the callback.
	States map[string]string `json:"states,omitempty"`

	// ProfileUsed is the OIDC profile that completed the login.
	ProfileUsed string `json:"profileUsed,omitempty"`

	// SportKey is per-session key material used to obfuscate filenames in
	// the sport download flow.
	SportKey string `json:"sportkey,omitempty"`

	// Flash holds one-shot messages threaded through a redirect.
	Flash map[string]string `json:"flash,omitempty"`

	// Version supports conditional writes in the session store. Zero means
	// the record has never been persisted.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LoggedIn reports whether the record represents an authenticated user.
func (r *Record) LoggedIn() bool {
	return r.Status == StatusAuthenticated
}

// StateTokens returns the outstanding state tokens.
func (r *Record) StateTokens() []string {
	tokens := make([]string, 0, len(r.States))
	for s := range r.States {
		tokens = append(tokens, s)
	}

	return tokens
}
