package webapp

import (
	"net/http"

	"github.com/cccteam/httpio"
	"github.com/cccteam/logger"
	"go.opentelemetry.io/otel"

	"github.com/gemeente-forms/management/internal/access"
)

const flashResubmit = "resubmit"

type resubmitPage struct {
	Title   string
	Nav     []access.NavItem
	Message string
}

// Resubmit serves the page for re-submitting a form by its reference. The
// outcome of a POST travels through a session flash so the redirect keeps
// the page bookmarkable.
func (a *App) Resubmit() http.HandlerFunc {
	return a.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "App.Resubmit()")
		defer span.End()

		sess, err := a.sessions.Load(ctx, r)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		ok, err := a.guardPage(ctx, w, r, sess, "/resubmit")
		if err != nil || !ok {
			return err
		}

		if r.Method == http.MethodPost {
			reference := r.PostFormValue("reference")

			message := "Formulier " + reference + " is opnieuw ingezonden."
			if err := a.api.Post(ctx, "resubmit", map[string]string{"reference": reference}, nil); err != nil {
				logger.Ctx(ctx).Error(err)
				message = "Opnieuw inzenden van " + reference + " is niet gelukt."
			}
			if err := a.sessions.SetFlash(ctx, sess, flashResubmit, message); err != nil {
				return httpio.NewEncoder(w).ClientMessage(ctx, err)
			}
			http.Redirect(w, r, "/resubmit", http.StatusFound)

			return nil
		}

		message, err := a.sessions.TakeFlash(ctx, sess, flashResubmit)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}

		return a.render(w, "resubmit.html", resubmitPage{
			Title:   "Opnieuw inzenden",
			Nav:     a.access.PermittedNav(sess),
			Message: message,
		})
	})
}
