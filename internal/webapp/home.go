package webapp

import (
	"net/http"

	"github.com/cccteam/httpio"
	"go.opentelemetry.io/otel"

	"github.com/gemeente-forms/management/internal/access"
)

type homePage struct {
	Title string
	Name  string
	Nav   []access.NavItem
}

// Home renders the landing page with the navigation the session is allowed
// to see.
func (a *App) Home() http.HandlerFunc {
	return a.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "App.Home()")
		defer span.End()

		sess, err := a.sessions.Load(ctx, r)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		if !sess.LoggedIn() {
			http.Redirect(w, r, "/login", http.StatusFound)

			return nil
		}

		displayName := sess.Email()
		if displayName == "" {
			displayName = "Onbekende gebruiker"
		}

		return a.render(w, "home.html", homePage{
			Title: "Overzicht",
			Name:  displayName,
			Nav:   a.access.PermittedNav(sess),
		})
	})
}
