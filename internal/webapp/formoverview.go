package webapp

import (
	"context"
	"net/http"
	"net/url"
	"sort"

	"github.com/cccteam/httpio"
	"github.com/cccteam/logger"
	"go.opentelemetry.io/otel"

	"github.com/gemeente-forms/management/internal/access"
	"github.com/gemeente-forms/management/internal/session"
)

// formOverview is one generated overview file as reported by the
// listformoverviews endpoint.
type formOverview struct {
	FileName       string `json:"fileName"`
	CreatedDate    string `json:"createdDate"`
	CreatedBy      string `json:"createdBy"`
	FormName       string `json:"formName"`
	FormTitle      string `json:"formTitle"`
	QueryStartDate string `json:"queryStartDate"`
	QueryEndDate   string `json:"queryEndDate"`
	AppID          string `json:"appId,omitempty"`
}

type formOverviewRow struct {
	FileName       string
	CreatedDate    string
	CreatedTime    string
	CreatedBy      string
	FormTitle      string
	QueryStartDate string
	QueryEndDate   string
}

type formOverviewPage struct {
	Title     string
	Name      string
	Nav       []access.NavItem
	Error     string
	Overviews []formOverviewRow
}

const flashFormOverview = "errorMessageOverviewList"

// FormOverview lists the generated overview files, requests new CSV
// overviews, and serves downloads. A download resolves the file to a short
// lived URL at the storage API and redirects the browser there.
func (a *App) FormOverview() http.HandlerFunc {
	return a.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "App.FormOverview()")
		defer span.End()

		sess, err := a.sessions.Load(ctx, r)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		ok, err := a.guardPage(ctx, w, r, sess, "/formoverview")
		if err != nil || !ok {
			return err
		}

		q := r.URL.Query()
		if file := q.Get("file"); file != "" {
			return a.redirectToDownload(ctx, w, r, "downloadformoverview", file)
		}
		if formName := q.Get("formuliernaam"); formName != "" {
			return a.generateOverview(ctx, w, r, sess, formName, q.Get("startdatum"), q.Get("einddatum"))
		}

		var overviews []formOverview
		if err := a.api.Get(ctx, "listformoverviews", nil, &overviews); err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		sort.Slice(overviews, func(i, j int) bool {
			return overviews[i].CreatedDate > overviews[j].CreatedDate
		})

		rows := make([]formOverviewRow, 0, len(overviews))
		for _, o := range overviews {
			date, clock := formatDateTime(o.CreatedDate)
			rows = append(rows, formOverviewRow{
				FileName:       o.FileName,
				CreatedDate:    date,
				CreatedTime:    clock,
				CreatedBy:      o.CreatedBy,
				FormTitle:      o.FormTitle,
				QueryStartDate: o.QueryStartDate,
				QueryEndDate:   o.QueryEndDate,
			})
		}

		displayName := sess.Email()
		if displayName == "" {
			displayName = "Onbekende gebruiker"
		}

		flash, err := a.sessions.TakeFlash(ctx, sess, flashFormOverview)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}

		return a.render(w, "formoverview.html", formOverviewPage{
			Title:     "Formulieroverzicht",
			Name:      displayName,
			Nav:       a.access.PermittedNav(sess),
			Error:     flash,
			Overviews: rows,
		})
	})
}

// generateOverview asks the overview API to build a CSV over a form and date
// range. The outcome travels through a flash message; the redirect keeps a
// browser refresh from generating the overview twice.
func (a *App) generateOverview(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *session.Session, formName, startDate, endDate string) error {
	query := url.Values{"formuliernaam": {formName}}
	if startDate != "" {
		query.Set("startdatum", startDate)
	}
	if endDate != "" {
		query.Set("einddatum", endDate)
	}

	var message string
	var result map[string]any
	if err := a.api.Get(ctx, "formoverview", query, &result); err != nil {
		logger.Ctx(ctx).Error(err)
		message = "Er is iets fout gegaan bij het genereren van de csv."
	} else if len(result) == 0 {
		message = "Er zijn geen inzendingen gevonden voor formulier " + formName + "."
	}

	if message != "" {
		if err := a.sessions.SetFlash(ctx, sess, flashFormOverview, message); err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
	}
	http.Redirect(w, r, "/formoverview", http.StatusFound)

	return nil
}

// redirectToDownload asks the storage API for a download URL for key and
// redirects the browser to it. No URL means the file does not exist.
func (a *App) redirectToDownload(ctx context.Context, w http.ResponseWriter, r *http.Request, endpoint, key string) error {
	var resp struct {
		DownloadURL string `json:"downloadUrl"`
	}
	if err := a.api.Get(ctx, endpoint, url.Values{"key": {key}}, &resp); err != nil {
		return httpio.NewEncoder(w).ClientMessage(ctx, err)
	}
	if resp.DownloadURL == "" {
		logger.Ctx(ctx).Errorf("no download URL returned for requested file")

		return httpio.NewEncoder(w).ClientMessage(ctx, httpio.NewNotFoundMessage("bestand niet gevonden"))
	}
	http.Redirect(w, r, resp.DownloadURL, http.StatusFound)

	return nil
}
