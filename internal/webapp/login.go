package webapp

import (
	"net/http"

	"github.com/cccteam/httpio"
	"github.com/cccteam/logger"
	"go.opentelemetry.io/otel"

	"github.com/gemeente-forms/management/internal/oidc"
	"github.com/gemeente-forms/management/internal/sessioninfo"
)

type authenticationOption struct {
	Title    string
	CSSClass string
	AuthURL  string
}

type loginPage struct {
	Title                 string
	Error                 string
	AuthenticationOptions []authenticationOption
}

// Login renders the provider selection page. It issues a fresh state token
// per profile and rotates the session to awaiting_callback so the callback
// can bind the returned state to this browser. A profile marked for
// immediate redirect skips the page entirely.
func (a *App) Login() http.HandlerFunc {
	return a.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "App.Login()")
		defer span.End()

		sess, err := a.sessions.Load(ctx, r)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		if sess.LoggedIn() {
			http.Redirect(w, r, "/", http.StatusFound)

			return nil
		}

		states := make(map[string]string, len(a.profileOrder))
		options := make([]authenticationOption, 0, len(a.profileOrder))
		for _, profileName := range a.profileOrder {
			auth := a.authenticators[profileName]
			profile := auth.Profile()

			state, err := oidc.GenerateState()
			if err != nil {
				return httpio.NewEncoder(w).ClientMessage(ctx, err)
			}
			authURL := auth.LoginURL(state)

			if profile.ImmediateRedirect {
				rec := &sessioninfo.Record{
					Status: sessioninfo.StatusAwaitingCallback,
					States: map[string]string{state: profile.Name},
				}
				if _, err := a.sessions.Create(ctx, w, sess, rec, false); err != nil {
					return httpio.NewEncoder(w).ClientMessage(ctx, err)
				}
				http.Redirect(w, r, authURL, http.StatusFound)

				return nil
			}

			states[state] = profile.Name
			options = append(options, authenticationOption{
				Title:    profile.Title,
				CSSClass: profile.CSSClass,
				AuthURL:  authURL,
			})
		}

		// The callback arrives cross-site from the provider, so the cookie
		// cannot be SameSite=Strict yet.
		rec := &sessioninfo.Record{
			Status: sessioninfo.StatusAwaitingCallback,
			States: states,
		}
		if _, err := a.sessions.Create(ctx, w, sess, rec, false); err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}

		return a.render(w, "login.html", loginPage{
			Title:                 "Inloggen",
			Error:                 loginErrorMessage(r.URL.Query().Get("error")),
			AuthenticationOptions: options,
		})
	})
}

func loginErrorMessage(code string) string {
	switch code {
	case "not_authorized":
		return "Je bent niet geautoriseerd voor deze applicatie."
	case "":
		return ""
	default:
		return "Inloggen is niet gelukt. Probeer het opnieuw."
	}
}

type logoutPage struct {
	Title string
}

// Logout marks the session logged out, keeps the record around until its TTL
// runs out, and expires the cookie.
func (a *App) Logout() http.HandlerFunc {
	return a.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "App.Logout()")
		defer span.End()

		sess, err := a.sessions.Load(ctx, r)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}

		if sess.Exists() {
			rec := sess.Record()
			rec.Status = sessioninfo.StatusLoggedOut
			rec.Email = ""
			rec.Permissions = nil
			rec.Claims = nil
			rec.States = nil
			rec.SportKey = ""
			if err := a.sessions.Update(ctx, sess); err != nil {
				// The cookie is cleared regardless, which is what ends the
				// browser's access.
				logger.Ctx(ctx).Error(err)
			}
		}
		a.sessions.ClearCookie(w)

		return a.render(w, "logout.html", logoutPage{Title: "Uitgelogd"})
	})
}
