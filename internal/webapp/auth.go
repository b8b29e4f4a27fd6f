package webapp

import (
	"context"
	"net/http"
	"strings"

	"github.com/cccteam/httpio"
	"github.com/cccteam/logger"
	"github.com/go-playground/errors/v5"
	"go.opentelemetry.io/otel"

	"github.com/gemeente-forms/management/internal/access"
	"github.com/gemeente-forms/management/internal/oidc"
	"github.com/gemeente-forms/management/internal/permission"
	"github.com/gemeente-forms/management/internal/sessioninfo"
)

// Auth is the OIDC redirect endpoint. It binds the returned state to the
// session that initiated the login, exchanges the code, and rotates the
// session forward. Every validation failure lands back on the login page
// without mutating the session.
func (a *App) Auth() http.HandlerFunc {
	return a.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "App.Auth()")
		defer span.End()

		sess, err := a.sessions.Load(ctx, r)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		if !sess.Exists() || sess.Status() != sessioninfo.StatusAwaitingCallback {
			// No login in flight for this browser. Fail closed.
			http.Redirect(w, r, "/login", http.StatusFound)

			return nil
		}

		state := r.URL.Query().Get("state")
		profileName, ok := sess.States()[state]
		if !ok {
			logger.Ctx(ctx).Errorf("callback state does not match any state issued to this session")
			http.Redirect(w, r, "/login", http.StatusFound)

			return nil
		}
		auth, ok := a.authenticators[profileName]
		if !ok {
			logger.Ctx(ctx).Errorf("session state maps to unknown profile %q", profileName)
			http.Redirect(w, r, "/login", http.StatusFound)

			return nil
		}

		claims, err := auth.Authorize(ctx, r.URL.Query().Get("code"), sess.StateTokens(), state)
		if err != nil {
			switch {
			case errors.Is(err, oidc.ErrInvalidState),
				errors.Is(err, oidc.ErrAudienceMismatch),
				errors.Is(err, oidc.ErrTokenExchange):
				logger.Ctx(ctx).Error(errors.Wrap(err, "oidc.Authenticator.Authorize()"))
				http.Redirect(w, r, "/login", http.StatusFound)

				return nil
			default:
				return httpio.NewEncoder(w).ClientMessage(ctx, errors.Wrap(err, "oidc.Authenticator.Authorize()"))
			}
		}

		if claims.ACR != "" || len(claims.AMR) > 0 {
			logger.Ctx(ctx).Infof("authentication succeeded with acr=%q amr=%v", claims.ACR, claims.AMR)
		}

		if !a.postLoginHook {
			logger.Ctx(ctx).AddRequestAttribute("user email", claims.Email)
			rec := &sessioninfo.Record{
				Status:      sessioninfo.StatusAuthenticated,
				Email:       claims.Email,
				ProfileUsed: profileName,
			}
			if _, err := a.sessions.Create(ctx, w, sess, rec, true); err != nil {
				return httpio.NewEncoder(w).ClientMessage(ctx, err)
			}
			http.Redirect(w, r, "/", http.StatusFound)

			return nil
		}

		rec := &sessioninfo.Record{
			Status:      sessioninfo.StatusPreLogin,
			Claims:      claims.Raw(),
			ProfileUsed: profileName,
		}
		if _, err := a.sessions.Create(ctx, w, sess, rec, true); err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		http.Redirect(w, r, "/post-login", http.StatusFound)

		return nil
	})
}

// PostLogin authorizes an authenticated identity for this application: the
// email must be on the allow-list and must have a non-empty permission
// record. Success attaches the permissions and completes the login; failure
// rotates the session to logged_out and sends the user back to the login
// page with a generic marker.
func (a *App) PostLogin() http.HandlerFunc {
	return a.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "App.PostLogin()")
		defer span.End()

		sess, err := a.sessions.Load(ctx, r)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		if sess.LoggedIn() {
			http.Redirect(w, r, "/", http.StatusFound)

			return nil
		}
		if sess.Status() != sessioninfo.StatusPreLogin {
			http.Redirect(w, r, "/login", http.StatusFound)

			return nil
		}

		claims, err := oidc.ParseClaims(sess.Claims())
		if err != nil {
			logger.Ctx(ctx).Error(errors.Wrap(err, "oidc.ParseClaims()"))
			http.Redirect(w, r, "/login", http.StatusFound)

			return nil
		}

		perms, authorized, err := a.authorize(ctx, claims.Email)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		if !authorized {
			logger.Ctx(ctx).Infof("user is not authorized for this application")
			rec := &sessioninfo.Record{Status: sessioninfo.StatusLoggedOut}
			if _, err := a.sessions.Create(ctx, w, sess, rec, true); err != nil {
				return httpio.NewEncoder(w).ClientMessage(ctx, err)
			}
			http.Redirect(w, r, "/login?error=not_authorized", http.StatusFound)

			return nil
		}

		logger.Ctx(ctx).AddRequestAttribute("user email", claims.Email)

		// Claims are not carried forward. The session only needs the
		// identity and the permissions from here on.
		rec := &sessioninfo.Record{
			Status:      sessioninfo.StatusAuthenticated,
			Email:       claims.Email,
			Permissions: perms,
			ProfileUsed: sess.Record().ProfileUsed,
		}
		if _, err := a.sessions.Create(ctx, w, sess, rec, true); err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		http.Redirect(w, r, "/", http.StatusFound)

		return nil
	})
}

// authorize decides whether email may use the application and returns its
// permissions. A missing or empty permission record is a denial, not an
// error; a store failure is an error. The identity provider controls the
// claim's casing, so both the allow-list and the permission store are
// consulted with the lower-cased address.
func (a *App) authorize(ctx context.Context, email string) ([]access.Permission, bool, error) {
	email = strings.ToLower(email)
	if email == "" {
		return nil, false, nil
	}
	if _, ok := a.allowedEmails[email]; !ok {
		return nil, false, nil
	}

	rec, err := a.permissions.UserPermissions(ctx, email)
	if err != nil {
		if errors.Is(err, permission.ErrNotFound) {
			return nil, false, nil
		}

		return nil, false, errors.Wrap(err, "permission.Store.UserPermissions()")
	}
	if len(rec.Permissions) == 0 {
		return nil, false, nil
	}

	return rec.Permissions, true, nil
}
