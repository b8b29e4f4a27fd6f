// Package session owns the session entity lifecycle: loading it from the
// inbound cookie, validating it against the store, mutating it, and
// serializing the identifier back into a cookie.
package session

import (
	"encoding/json"

	"github.com/gemeente-forms/management/internal/access"
	"github.com/gemeente-forms/management/internal/sessioninfo"
)

// Session is one user's authentication state for the duration of a request.
// A session that has never been persisted has an empty ID.
type Session struct {
	id  string
	rec *sessioninfo.Record
}

var _ access.Session = (*Session)(nil)

// ID returns the opaque session identifier, or "" for a fresh session.
func (s *Session) ID() string {
	return s.id
}

// Exists reports whether a persisted record backs this session.
func (s *Session) Exists() bool {
	return s.id != ""
}

// LoggedIn reports whether the session is fully authenticated.
func (s *Session) LoggedIn() bool {
	return s.rec.LoggedIn()
}

// Status returns the session's lifecycle status.
func (s *Session) Status() sessioninfo.Status {
	return s.rec.Status
}

// Email returns the authenticated user's email, or "".
func (s *Session) Email() string {
	return s.rec.Email
}

// Permissions returns the permission tags attached at post-login.
func (s *Session) Permissions() []access.Permission {
	return s.rec.Permissions
}

// States returns the outstanding state token to profile name mapping.
func (s *Session) States() map[string]string {
	return s.rec.States
}

// StateTokens returns the outstanding state tokens.
func (s *Session) StateTokens() []string {
	return s.rec.StateTokens()
}

// Claims returns the raw identity provider claims stored at callback time.
func (s *Session) Claims() json.RawMessage {
	return s.rec.Claims
}

// SportKey returns the per-session filename obfuscation key, or "".
func (s *Session) SportKey() string {
	return s.rec.SportKey
}

// Record returns the mutable backing record. Mutations are persisted with
// Manager.Update.
func (s *Session) Record() *sessioninfo.Record {
	return s.rec
}
