package webapp

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cccteam/httpio"
	"github.com/cccteam/logger"
	"go.opentelemetry.io/otel"

	"github.com/gemeente-forms/management/internal/access"
	"github.com/gemeente-forms/management/internal/filecrypt"
	"github.com/gemeente-forms/management/internal/session"
)

const (
	sportFormName       = "aanmeldensportactiviteit"
	flashSportError     = "errorMessageFormOverview"
	csvOptionAllRegions = "all"
)

type csvOption struct {
	Value string
	Label string
}

type sportOverviewRow struct {
	Title        string
	CreatedDate  string
	DownloadName string
}

type sportSubmissionRow struct {
	Reference       string
	PDFDownloadName string
	DateSubmitted   string
	TimeSubmitted   string
	Name            string
	Child           string
	TelAndMail      string
	Activities      string
	Comments        string
}

type sportPage struct {
	Title          string
	Name           string
	Nav            []access.NavItem
	Error          string
	AllowedRegions string
	CSVOptions     []csvOption
	StartDate      string
	Overviews      []sportOverviewRow
	Submissions    []sportSubmissionRow
}

// Sport serves the sport registration overview page: listing generated
// overviews and recent submissions, generating new CSV overviews, and
// downloading files. Download links carry filenames encrypted with a
// per-session key, so a link only works for the session that rendered it.
func (a *App) Sport() http.HandlerFunc {
	return a.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "App.Sport()")
		defer span.End()

		sess, err := a.sessions.Load(ctx, r)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		ok, err := a.guardPage(ctx, w, r, sess, "/sport")
		if err != nil || !ok {
			return err
		}

		q := r.URL.Query()
		switch {
		case q.Get("downloadfile") != "" || q.Get("downloadpdf") != "":
			return a.sportDownload(ctx, w, r, sess, q.Get("downloadfile"), q.Get("downloadpdf"))
		case q.Get("genereerCsvOptie") != "":
			return a.sportGenerateCSV(ctx, w, r, sess, q.Get("genereerCsvOptie"), q.Get("formStartDate"))
		default:
			return a.sportList(ctx, w, sess)
		}
	})
}

// sportDownload decrypts the requested filename with the session key and
// redirects to the storage download URL. Anything that does not decrypt
// under this session's key is treated as absent.
func (a *App) sportDownload(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *session.Session, downloadFile, downloadPDF string) error {
	key := sess.SportKey()
	if key == "" {
		logger.Ctx(ctx).Errorf("session has no filename encryption key, cannot resolve download")

		return httpio.NewEncoder(w).ClientMessage(ctx, httpio.NewNotFoundMessage("bestand niet gevonden"))
	}

	encrypted := downloadFile
	endpoint := "downloadformoverview"
	if encrypted == "" {
		encrypted = downloadPDF
		endpoint = "download"
	}

	filename, err := filecrypt.Decrypt(key, encrypted)
	if err != nil {
		logger.Ctx(ctx).Error(err)

		return httpio.NewEncoder(w).ClientMessage(ctx, httpio.NewNotFoundMessage("bestand niet gevonden"))
	}
	if downloadPDF != "" {
		filename = filename + "/" + filename + ".pdf"
	}

	return a.redirectToDownload(ctx, w, r, endpoint, filename)
}

// sportGenerateCSV asks the overview API to build a CSV for one region, or
// for all of them. The outcome travels through a flash message; the redirect
// keeps a browser refresh from generating the overview twice.
func (a *App) sportGenerateCSV(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *session.Session, option, startDate string) error {
	if startDate == "" {
		startDate = seasonStartDate(time.Now())
	}

	query := url.Values{
		"formuliernaam": {sportFormName},
		"startdatum":    {startDate},
	}
	if option != csvOptionAllRegions {
		query.Set("appid", option)
	}

	var message string
	var result map[string]any
	if err := a.api.Get(ctx, "formoverview", query, &result); err != nil {
		logger.Ctx(ctx).Error(err)
		message = "Er is iets fout gegaan bij het genereren van de csv."
	} else if len(result) == 0 {
		message = "Er zijn geen inzendingen gevonden. De csv is niet gemaakt met optie: " + option + "."
	}

	if message != "" {
		if err := a.sessions.SetFlash(ctx, sess, flashSportError, message); err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
	}
	http.Redirect(w, r, "/sport", http.StatusFound)

	return nil
}

func (a *App) sportList(ctx context.Context, w http.ResponseWriter, sess *session.Session) error {
	// The encryption key is minted on first visit and lives as long as the
	// session record.
	key := sess.SportKey()
	if key == "" {
		var err error
		if key, err = filecrypt.GenerateKey(); err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		sess.Record().SportKey = key
		if err := a.sessions.Update(ctx, sess); err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
	}

	appIDs := sportAppIDs(sess.Permissions())

	var overviews []formOverview
	var submissions []map[string]any
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		overviews = a.fetchSportOverviews(ctx, appIDs)
	}()
	go func() {
		defer wg.Done()
		submissions = a.fetchSportSubmissions(ctx, appIDs)
	}()
	wg.Wait()

	sort.Slice(overviews, func(i, j int) bool {
		return overviews[i].CreatedDate > overviews[j].CreatedDate
	})
	sort.Slice(submissions, func(i, j int) bool {
		return stringField(submissions[i], "DatumTijdOntvangen") > stringField(submissions[j], "DatumTijdOntvangen")
	})

	overviewRows := make([]sportOverviewRow, 0, len(overviews))
	for _, o := range overviews {
		encrypted, err := filecrypt.Encrypt(key, o.FileName)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		date, clock := formatDateTime(o.CreatedDate)
		overviewRows = append(overviewRows, sportOverviewRow{
			Title:        strings.ReplaceAll(o.FileName, "-", " "),
			CreatedDate:  date + " " + clock,
			DownloadName: encrypted,
		})
	}

	submissionRows := make([]sportSubmissionRow, 0, len(submissions))
	for _, s := range submissions {
		row, err := formatSportSubmission(key, s)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}
		submissionRows = append(submissionRows, row)
	}

	flash, err := a.sessions.TakeFlash(ctx, sess, flashSportError)
	if err != nil {
		return httpio.NewEncoder(w).ClientMessage(ctx, err)
	}

	displayName := sess.Email()
	if displayName == "" {
		displayName = "Onbekende gebruiker"
	}

	return a.render(w, "sport.html", sportPage{
		Title:          "Sportformulieren",
		Name:           displayName,
		Nav:            a.access.PermittedNav(sess),
		Error:          flash,
		AllowedRegions: allowedRegionText(sess.Permissions()),
		CSVOptions:     allowedCSVOptions(sess.Permissions()),
		StartDate:      seasonStartDate(time.Now()),
		Overviews:      overviewRows,
		Submissions:    submissionRows,
	})
}

// fetchSportOverviews lists the generated sport overviews, one query per
// region the session is scoped to. A failing region yields an empty slice
// rather than failing the page.
func (a *App) fetchSportOverviews(ctx context.Context, appIDs []string) []formOverview {
	if appIDs == nil {
		var out []formOverview
		if err := a.api.Get(ctx, "listformoverviews", url.Values{"formuliernaam": {sportFormName}}, &out); err != nil {
			logger.Ctx(ctx).Error(err)

			return nil
		}

		return out
	}

	var all []formOverview
	for _, appID := range appIDs {
		var out []formOverview
		query := url.Values{"formuliernaam": {sportFormName}, "appid": {appID}}
		if err := a.api.Get(ctx, "listformoverviews", query, &out); err != nil {
			logger.Ctx(ctx).Error(err)

			continue
		}
		all = append(all, out...)
	}

	return all
}

// fetchSportSubmissions lists the last month of submissions per region.
func (a *App) fetchSportSubmissions(ctx context.Context, appIDs []string) []map[string]any {
	startDate := monthAgo(time.Now())

	query := url.Values{
		"formuliernaam":  {sportFormName},
		"responseformat": {"json"},
		"startdatum":     {startDate},
	}
	if appIDs == nil {
		var out []map[string]any
		if err := a.api.Get(ctx, "formoverview", query, &out); err != nil {
			logger.Ctx(ctx).Error(err)

			return nil
		}

		return out
	}

	var all []map[string]any
	for _, appID := range appIDs {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("appid", appID)

		var out []map[string]any
		if err := a.api.Get(ctx, "formoverview", q, &out); err != nil {
			logger.Ctx(ctx).Error(err)

			continue
		}
		all = append(all, out...)
	}

	return all
}

// sportAppIDs returns the region identifiers to scope API queries to, or nil
// when the session may see every region.
func sportAppIDs(perms []access.Permission) []string {
	for _, p := range perms {
		if p == access.PermissionSportAdmin || p == access.PermissionSport || p == access.PermissionAdmin {
			return nil
		}
	}

	var ids []string
	for _, p := range perms {
		if p.IsSportRegion() {
			ids = append(ids, p.String())
		}
	}

	return ids
}

func allowedRegionText(perms []access.Permission) string {
	regions := access.SportRegions()
	if sportAppIDs(perms) == nil {
		names := make([]string, 0, len(regions))
		for _, p := range regions {
			names = append(names, p.Description())
		}

		return strings.Join(names, ", ")
	}

	var names []string
	for _, p := range regions {
		for _, have := range perms {
			if have == p {
				names = append(names, p.Description())
			}
		}
	}

	return strings.Join(names, ", ")
}

func allowedCSVOptions(perms []access.Permission) []csvOption {
	if sportAppIDs(perms) == nil {
		options := []csvOption{{Value: csvOptionAllRegions, Label: "Alle regio's"}}
		for _, p := range access.SportRegions() {
			options = append(options, csvOption{Value: p.String(), Label: p.Description()})
		}

		return options
	}

	var options []csvOption
	for _, p := range access.SportRegions() {
		for _, have := range perms {
			if have == p {
				options = append(options, csvOption{Value: p.String(), Label: p.Description()})
			}
		}
	}

	return options
}

var activityCheckboxRe = regexp.MustCompile(`Checkbox\s(.*?)\s*is\strue`)

// formatSportSubmission flattens one raw submission into a display row. The
// submission carries free-form form fields next to the known ones.
func formatSportSubmission(key string, s map[string]any) (sportSubmissionRow, error) {
	reference := stringField(s, "FormulierKenmerk")

	encrypted, err := filecrypt.Encrypt(key, reference)
	if err != nil {
		return sportSubmissionRow{}, err
	}

	date, clock := formatDateTime(stringField(s, "DatumTijdOntvangen"))

	child := ""
	if v := stringField(s, "Voornaam kind"); v != "" {
		child = v + " " + stringField(s, "Achternaam kind") +
			" (" + stringField(s, "Leeftijd kind") +
			" " + stringField(s, "School basisonderwijs") +
			" " + stringField(s, "School voortgezetOnderwijs") + ")"
		if g := stringField(s, "Groep"); g != "" {
			child += " Groep: " + g
		}
	}

	var activities []string
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, ok := s[k].(string)
		if !ok || v == "" {
			continue
		}
		if strings.HasPrefix(k, "Aanmelden voor sportactiviteit") {
			for _, m := range activityCheckboxRe.FindAllStringSubmatch(v, -1) {
				activities = append(activities, strings.TrimSpace(m[1]))
			}
		}
		if strings.Contains(k, "omWelkeSportactiviteitGaatHetDan") {
			activities = append(activities, "Andere: "+v)
		}
	}

	return sportSubmissionRow{
		Reference:       reference,
		PDFDownloadName: encrypted,
		DateSubmitted:   date,
		TimeSubmitted:   clock,
		Name:            strings.TrimSpace(stringField(s, "Voornaam voornaam") + " " + stringField(s, "Achternaam achternaam")),
		Child:           child,
		TelAndMail:      strings.TrimSpace(stringField(s, "Telefoonnummer telefoonnummer") + " " + stringField(s, "E-mailadres eMailadres")),
		Activities:      strings.Join(activities, ", "),
		Comments:        stringField(s, "Opmerkingen"),
	}, nil
}

func stringField(s map[string]any, key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}

	return ""
}
