package access

import (
	"context"

	"github.com/cccteam/logger"
)

// Session is the view of a user session the controller needs to make a
// decision. Implemented by session.Session.
type Session interface {
	LoggedIn() bool
	Permissions() []Permission
}

// Decision is the outcome of a page access check.
type Decision int

const (
	// Allow grants access to the requested page.
	Allow Decision = iota

	// RedirectToLogin is returned for anonymous sessions.
	RedirectToLogin

	// RedirectToHome is returned for authenticated sessions that lack a
	// required permission.
	RedirectToHome

	// NotFound is returned for pages missing from the page permission map.
	// This is a configuration defect, not an authorization failure.
	NotFound
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect-to-login"
	case RedirectToHome:
		return "redirect-to-home"
	case NotFound:
		return "not-found"
	}

	return "unknown"
}

// NavItem is one entry in the site navigation. Declaration order in the nav
// list is the rendering order.
type NavItem struct {
	URL         string
	Title       string
	Description string
	Label       string
	Icon        string
}

// Controller evaluates page access for a session. It holds no mutable state;
// the page permission map and nav list are fixed at construction.
type Controller struct {
	pagePermissions map[string][]Permission
	nav             []NavItem
}

// NewController creates a Controller for the given page permission map and
// navigation list.
func NewController(pagePermissions map[string][]Permission, nav []NavItem) *Controller {
	return &Controller{
		pagePermissions: pagePermissions,
		nav:             nav,
	}
}

// CheckPageAccess decides whether the session may view pageURL.
//
// Anonymous sessions are redirected to login regardless of the page. A page
// missing from the permission map yields NotFound and is logged as an error,
// since it distinguishes a misconfigured route from a denied one. Otherwise
// access is granted when the session holds at least one required permission.
func (c *Controller) CheckPageAccess(ctx context.Context, sess Session, pageURL string) Decision {
	if !sess.LoggedIn() {
		return RedirectToLogin
	}

	required, ok := c.pagePermissions[pageURL]
	if !ok {
		logger.Ctx(ctx).Errorf("page %q is not in the page permission map", pageURL)

		return NotFound
	}

	if !Intersects(sess.Permissions(), required) {
		logger.Ctx(ctx).Infof("user lacks permission for %q, redirecting to home", pageURL)

		return RedirectToHome
	}

	return Allow
}

// PermittedNav returns the nav entries the session may see, preserving the
// declared order. An entry whose URL has no page permission entry is never
// shown.
func (c *Controller) PermittedNav(sess Session) []NavItem {
	perms := sess.Permissions()

	items := make([]NavItem, 0, len(c.nav))
	for _, item := range c.nav {
		required, ok := c.pagePermissions[item.URL]
		if !ok {
			continue
		}
		if Intersects(perms, required) {
			items = append(items, item)
		}
	}

	return items
}
