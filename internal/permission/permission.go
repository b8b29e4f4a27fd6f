// Package permission implements the user permission store, keyed by email.
// Records are maintained administratively; the request path only reads them
// during post-login processing.
package permission

import (
	"context"
	"errors"

	"github.com/gemeente-forms/management/internal/access"
)

// ErrNotFound is returned when no permission record exists for an email.
// The post-login processor treats this as "not authorized", not as a server
// error.
var ErrNotFound = errors.New("permission record not found")

// Record is the authorization data for one user.
type Record struct {
	UserEmail   string
	Permissions []access.Permission
}

// Store reads permission records.
type Store interface {
	// UserPermissions returns the permission record for email, or
	// ErrNotFound.
	UserPermissions(ctx context.Context, email string) (*Record, error)
}

// AdminStore additionally supports the out-of-band administrative path.
type AdminStore interface {
	Store

	// SetUserPermissions creates or replaces the record for email.
	SetUserPermissions(ctx context.Context, email string, permissions []access.Permission) error
}

func toPermissions(tags []string) []access.Permission {
	perms := make([]access.Permission, 0, len(tags))
	for _, t := range tags {
		perms = append(perms, access.Permission(t))
	}

	return perms
}

func toTags(perms []access.Permission) []string {
	tags := make([]string, 0, len(perms))
	for _, p := range perms {
		tags = append(tags, string(p))
	}

	return tags
}
