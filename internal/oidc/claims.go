package oidc

import (
	"encoding/json"

	"github.com/go-playground/errors/v5"
)

// Claims are the identity assertions decoded from a verified ID token.
type Claims struct {
	Subject string   `json:"sub"`
	Email   string   `json:"email"`
	ACR     string   `json:"acr,omitempty"`
	AMR     []string `json:"amr,omitempty"`

	raw json.RawMessage
}

// Raw returns the full claim set as received, for storage in the session
// until post-login processing completes.
func (c *Claims) Raw() json.RawMessage {
	return c.raw
}

// ParseClaims decodes a stored raw claim set.
func ParseClaims(raw json.RawMessage) (*Claims, error) {
	c := &Claims{}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, errors.Wrap(err, "json.Unmarshal()")
	}
	c.raw = raw

	return c, nil
}
