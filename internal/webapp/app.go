// Package webapp serves the server rendered management pages and owns the
// login, callback, post-login and logout flows.
package webapp

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/cccteam/httpio"
	"github.com/cccteam/logger"
	"github.com/go-chi/chi/v5"

	"github.com/gemeente-forms/management/internal/access"
	"github.com/gemeente-forms/management/internal/oidc"
	"github.com/gemeente-forms/management/internal/permission"
	"github.com/gemeente-forms/management/internal/session"
)

const name = "github.com/gemeente-forms/management/internal/webapp"

// API is the downstream submission and overview API the pages call.
// Implemented by apiclient.Client.
type API interface {
	Get(ctx context.Context, endpoint string, query url.Values, out any) error
	Post(ctx context.Context, endpoint string, body, out any) error
}

// App wires the session manager, access controller, OIDC authenticators and
// the downstream API into the page handlers.
type App struct {
	sessions       *session.Manager
	access         *access.Controller
	authenticators map[string]oidc.Authenticator
	profileOrder   []string
	permissions    permission.Store
	renderer       Renderer
	api            API
	allowedEmails  map[string]struct{}
	postLoginHook  bool
}

// AppOption configures an App.
type AppOption func(*App)

// WithPostLoginHook controls whether a successful callback routes through the
// post-login processor before the session becomes authenticated.
// (default: true)
func WithPostLoginHook(enabled bool) AppOption {
	return func(a *App) {
		a.postLoginHook = enabled
	}
}

// WithRenderer overrides the page renderer. (default: the embedded templates)
func WithRenderer(r Renderer) AppOption {
	return func(a *App) {
		a.renderer = r
	}
}

// New creates an App. Authenticators keep their slice order on the login
// page. allowedEmails is the post-login allow-list.
func New(
	sessions *session.Manager, accessController *access.Controller,
	authenticators []oidc.Authenticator, permissions permission.Store,
	api API, allowedEmails []string, options ...AppOption,
) *App {
	a := &App{
		sessions:       sessions,
		access:         accessController,
		authenticators: make(map[string]oidc.Authenticator, len(authenticators)),
		profileOrder:   make([]string, 0, len(authenticators)),
		permissions:    permissions,
		renderer:       NewTemplateRenderer(),
		api:            api,
		allowedEmails:  make(map[string]struct{}, len(allowedEmails)),
		postLoginHook:  true,
	}
	for _, auth := range authenticators {
		p := auth.Profile()
		a.authenticators[p.Name] = auth
		a.profileOrder = append(a.profileOrder, p.Name)
	}
	for _, email := range allowedEmails {
		a.allowedEmails[strings.ToLower(email)] = struct{}{}
	}
	for _, opt := range options {
		opt(a)
	}

	return a
}

// Routes returns the router serving all pages.
func (a *App) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", a.Home())
	r.Get("/home", a.Home())
	r.Get("/login", a.Login())
	r.Get("/auth", a.Auth())
	r.Get("/post-login", a.PostLogin())
	r.Post("/post-login", a.PostLogin())
	r.Get("/logout", a.Logout())
	r.Get("/resubmit", a.Resubmit())
	r.Post("/resubmit", a.Resubmit())
	r.Get("/formoverview", a.FormOverview())
	r.Get("/sport", a.Sport())

	return r
}

// handle returns a handler that logs any error coming from our page handlers.
func (a *App) handle(handler func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := handler(w, r); err != nil {
			if httpio.CauseIsError(err) {
				logger.Req(r).Error(err)
			} else {
				logger.Req(r).Infof("['%s']", strings.Join(httpio.Messages(err), "', '"))
			}
		}
	})
}

// guardPage evaluates page access and writes the response for any non-allow
// decision. The handler proceeds only when it returns true.
func (a *App) guardPage(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *session.Session, pageURL string) (bool, error) {
	switch decision := a.access.CheckPageAccess(ctx, sess, pageURL); decision {
	case access.Allow:
		return true, nil
	case access.RedirectToLogin:
		http.Redirect(w, r, "/login", http.StatusFound)

		return false, nil
	case access.RedirectToHome:
		http.Redirect(w, r, "/home", http.StatusFound)

		return false, nil
	default:
		return false, httpio.NewEncoder(w).ClientMessage(ctx, httpio.NewNotFoundMessagef("page %s not found", pageURL))
	}
}
