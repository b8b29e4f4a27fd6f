package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/errors/v5"
	"github.com/gorilla/securecookie"

	"github.com/gemeente-forms/management/internal/access"
	"github.com/gemeente-forms/management/internal/sessioninfo"
	"github.com/gemeente-forms/management/internal/sessionstorage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	store := sessionstorage.NewMemoryStore()
	t.Cleanup(store.Stop)
	sc := securecookie.New(securecookie.GenerateRandomKey(64), securecookie.GenerateRandomKey(32))

	return NewManager(store, sc, 15*time.Minute)
}

// requestWith carries the cookies set on w into a new request.
func requestWith(t *testing.T, w *httptest.ResponseRecorder) *http.Request {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}

	return r
}

func TestManager_Load_noCookie(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	sess, err := m.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sess.Exists() {
		t.Error("Load() returned a persisted session, want anonymous")
	}
	if sess.Status() != sessioninfo.StatusAnonymous {
		t.Errorf("Load() status = %q, want %q", sess.Status(), sessioninfo.StatusAnonymous)
	}
	if sess.LoggedIn() {
		t.Error("Load() LoggedIn() = true, want false")
	}
}

func TestManager_Load_garbageCookie(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	r.AddCookie(&http.Cookie{Name: "session", Value: "not-a-valid-cookie"})

	sess, err := m.Load(context.Background(), r)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sess.Exists() {
		t.Error("Load() returned a persisted session for a garbage cookie, want anonymous")
	}
}

func TestManager_Load_expiredRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := newTestManager(t)

	w := httptest.NewRecorder()
	sess, err := m.Create(ctx, w, nil, &sessioninfo.Record{Status: sessioninfo.StatusAuthenticated}, true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := m.Destroy(ctx, httptest.NewRecorder(), sess); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	// Cookie still present, record gone.
	got, err := m.Load(ctx, requestWith(t, w))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Exists() {
		t.Error("Load() returned a persisted session after Destroy(), want anonymous")
	}
}

func TestManager_createAndLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := newTestManager(t)

	w := httptest.NewRecorder()
	rec := &sessioninfo.Record{
		Status:      sessioninfo.StatusAuthenticated,
		Email:       "user@example.nl",
		Permissions: []access.Permission{access.PermissionResubmit},
	}
	created, err := m.Create(ctx, w, nil, rec, true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !created.Exists() {
		t.Fatal("Create() returned a session without an ID")
	}

	sess, err := m.Load(ctx, requestWith(t, w))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sess.ID() != created.ID() {
		t.Errorf("Load() ID = %q, want %q", sess.ID(), created.ID())
	}
	if !sess.LoggedIn() {
		t.Error("Load() LoggedIn() = false, want true")
	}
	if sess.Email() != "user@example.nl" {
		t.Errorf("Load() email = %q, want user@example.nl", sess.Email())
	}
}

func TestManager_Create_rotatesSessionID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := newTestManager(t)

	w1 := httptest.NewRecorder()
	first, err := m.Create(ctx, w1, nil, &sessioninfo.Record{Status: sessioninfo.StatusAwaitingCallback}, false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w2 := httptest.NewRecorder()
	second, err := m.Create(ctx, w2, first, &sessioninfo.Record{Status: sessioninfo.StatusAuthenticated}, true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if first.ID() == second.ID() {
		t.Error("Create() reused the previous session ID, want a fresh one")
	}

	// The old identifier no longer resolves.
	old, err := m.Load(ctx, requestWith(t, w1))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if old.Exists() {
		t.Error("previous session still loads after rotation, want anonymous")
	}
}

func TestManager_Create_cookieSameSite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		sameSiteStrict bool
		want           string
	}{
		{name: "strict after authentication", sameSiteStrict: true, want: "SameSite=Strict"},
		{name: "none during the login flow", sameSiteStrict: false, want: "SameSite=None"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newTestManager(t)

			w := httptest.NewRecorder()
			if _, err := m.Create(context.Background(), w, nil, &sessioninfo.Record{Status: sessioninfo.StatusAnonymous}, tt.sameSiteStrict); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if cookie := w.Header().Get("Set-Cookie"); !strings.Contains(cookie, tt.want) {
				t.Errorf("Set-Cookie = %q, want it to contain %q", cookie, tt.want)
			}
		})
	}
}

func TestManager_Create_cookieHasNoClientExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := newTestManager(t)

	w := httptest.NewRecorder()
	if _, err := m.Create(ctx, w, nil, &sessioninfo.Record{Status: sessioninfo.StatusAuthenticated}, true); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Create() set %d cookies, want 1", len(cookies))
	}
	// The store's sliding TTL owns the session lifetime. A MaxAge or
	// Expires on the cookie would log active users out of the browser
	// while the server keeps extending their session.
	if cookies[0].MaxAge != 0 {
		t.Errorf("cookie MaxAge = %d, want 0", cookies[0].MaxAge)
	}
	if !cookies[0].Expires.IsZero() {
		t.Errorf("cookie Expires = %v, want unset", cookies[0].Expires)
	}

	// The session still resolves on the follow-up request.
	sess, err := m.Load(ctx, requestWith(t, w))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !sess.Exists() {
		t.Error("Load() returned anonymous, want the created session")
	}
}

func TestManager_Update_versionChecked(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := newTestManager(t)

	w := httptest.NewRecorder()
	if _, err := m.Create(ctx, w, nil, &sessioninfo.Record{Status: sessioninfo.StatusAuthenticated}, true); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Two loads of the same session race on the same version.
	a, err := m.Load(ctx, requestWith(t, w))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	b, err := m.Load(ctx, requestWith(t, w))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	a.Record().Email = "first@example.nl"
	if err := m.Update(ctx, a); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	b.Record().Email = "second@example.nl"
	if err := m.Update(ctx, b); !errors.Is(err, sessionstorage.ErrVersionMismatch) {
		t.Errorf("Update() error = %v, want ErrVersionMismatch", err)
	}
}

func TestManager_Update_requiresPersistedSession(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	if err := m.Update(context.Background(), anonymous()); err == nil {
		t.Error("Update() error = nil, want error for a session without an ID")
	}
}

func TestManager_flash(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := newTestManager(t)

	w := httptest.NewRecorder()
	sess, err := m.Create(ctx, w, nil, &sessioninfo.Record{Status: sessioninfo.StatusAuthenticated}, true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := m.SetFlash(ctx, sess, "resubmit", "gelukt"); err != nil {
		t.Fatalf("SetFlash() error = %v", err)
	}

	// The flash survives a reload and reads exactly once.
	reloaded, err := m.Load(ctx, requestWith(t, w))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	msg, err := m.TakeFlash(ctx, reloaded, "resubmit")
	if err != nil {
		t.Fatalf("TakeFlash() error = %v", err)
	}
	if msg != "gelukt" {
		t.Errorf("TakeFlash() = %q, want %q", msg, "gelukt")
	}

	again, err := m.TakeFlash(ctx, reloaded, "resubmit")
	if err != nil {
		t.Fatalf("TakeFlash() error = %v", err)
	}
	if again != "" {
		t.Errorf("second TakeFlash() = %q, want empty", again)
	}
}

func TestManager_Destroy_clearsCookie(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := newTestManager(t)

	w := httptest.NewRecorder()
	sess, err := m.Create(ctx, w, nil, &sessioninfo.Record{Status: sessioninfo.StatusAuthenticated}, true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w2 := httptest.NewRecorder()
	if err := m.Destroy(ctx, w2, sess); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if cookie := w2.Header().Get("Set-Cookie"); !strings.Contains(cookie, "Max-Age=0") {
		t.Errorf("Set-Cookie = %q, want an expired cookie", cookie)
	}
}
