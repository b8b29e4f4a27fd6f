package session

import (
	"context"
	"net/http"
	"time"

	"github.com/cccteam/logger"
	"github.com/go-playground/errors/v5"
	"github.com/gofrs/uuid"
	"github.com/gorilla/securecookie"
	"go.opentelemetry.io/otel"

	"github.com/gemeente-forms/management/internal/sessioninfo"
	"github.com/gemeente-forms/management/internal/sessionstorage"
)

const name = "github.com/gemeente-forms/management/internal/session"

// Manager loads, creates, mutates and expires sessions. The store is the
// system of record; the cookie only carries the opaque session identifier.
type Manager struct {
	store sessionstorage.Store
	ttl   time.Duration
	cookieManager
}

// Option configures a Manager.
type Option func(*Manager)

// WithCookieName overrides the session cookie name. (default: "session")
func WithCookieName(cookieName string) Option {
	return func(m *Manager) {
		if c, ok := m.cookieManager.(*cookieClient); ok {
			c.cookieName = cookieName
		}
	}
}

// NewManager creates a Manager with the given sliding TTL.
func NewManager(store sessionstorage.Store, secureCookie *securecookie.SecureCookie, ttl time.Duration, options ...Option) *Manager {
	m := &Manager{
		store:         store,
		ttl:           ttl,
		cookieManager: newCookieClient(secureCookie),
	}
	for _, opt := range options {
		opt(m)
	}

	return m
}

// TTL returns the configured sliding expiry window.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Load resolves the inbound request to a Session. An absent or malformed
// cookie, or a cookie whose record has expired, yields a fresh anonymous
// session rather than an error. Store unavailability is an error and is
// fatal for the request.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Manager.Load()")
	defer span.End()

	sessionID, ok := m.readSessionCookie(r)
	if !ok {
		return anonymous(), nil
	}

	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessionstorage.ErrNotFound) {
			return anonymous(), nil
		}

		return nil, errors.Wrap(err, "sessionstorage.Store.Get()")
	}

	logger.Req(r).AddRequestAttribute("session ID", sessionID)

	// Slide the expiry window. Best effort: a racing expiry only means the
	// next request starts anonymous.
	if err := m.store.Touch(ctx, sessionID, m.ttl); err != nil && !errors.Is(err, sessionstorage.ErrNotFound) {
		logger.Ctx(ctx).Error(errors.Wrap(err, "sessionstorage.Store.Touch()"))
	}

	return &Session{id: sessionID, rec: rec}, nil
}

// Create replaces the session with the given record under a newly issued
// session identifier and sets the session cookie. Issuing a fresh identifier
// at every authentication boundary is the session fixation defense. The
// previous record, if any, is removed.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, prev *Session, rec *sessioninfo.Record, sameSiteStrict bool) (*Session, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Manager.Create()")
	defer span.End()

	id, err := uuid.NewV4()
	if err != nil {
		return nil, errors.Wrap(err, "uuid.NewV4()")
	}
	sessionID := id.String()

	rec.Version = 0
	if err := m.store.Put(ctx, sessionID, rec, m.ttl); err != nil {
		return nil, errors.Wrap(err, "sessionstorage.Store.Put()")
	}

	if prev != nil && prev.Exists() {
		if err := m.store.Delete(ctx, prev.ID()); err != nil {
			logger.Ctx(ctx).Error(errors.Wrap(err, "sessionstorage.Store.Delete()"))
		}
	}

	if err := m.writeSessionCookie(w, sessionID, sameSiteStrict); err != nil {
		return nil, err
	}

	return &Session{id: sessionID, rec: rec}, nil
}

// Update persists mutations made to the session's record under its existing
// identifier. The write is version checked; a concurrent writer surfaces as
// sessionstorage.ErrVersionMismatch.
func (m *Manager) Update(ctx context.Context, sess *Session) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Manager.Update()")
	defer span.End()

	if !sess.Exists() {
		return errors.New("cannot update a session that has not been created")
	}

	if err := m.store.Put(ctx, sess.id, sess.rec, m.ttl); err != nil {
		return errors.Wrap(err, "sessionstorage.Store.Put()")
	}

	return nil
}

// SetFlash stores a one-shot message on the session, persisted immediately.
func (m *Manager) SetFlash(ctx context.Context, sess *Session, key, message string) error {
	if sess.rec.Flash == nil {
		sess.rec.Flash = make(map[string]string)
	}
	sess.rec.Flash[key] = message

	return m.Update(ctx, sess)
}

// TakeFlash returns and clears a one-shot message. It returns "" when no
// message is set.
func (m *Manager) TakeFlash(ctx context.Context, sess *Session, key string) (string, error) {
	message, ok := sess.rec.Flash[key]
	if !ok {
		return "", nil
	}
	delete(sess.rec.Flash, key)

	if err := m.Update(ctx, sess); err != nil {
		return "", err
	}

	return message, nil
}

// Destroy removes the session's record and clears the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Manager.Destroy()")
	defer span.End()

	if sess.Exists() {
		if err := m.store.Delete(ctx, sess.id); err != nil {
			return errors.Wrap(err, "sessionstorage.Store.Delete()")
		}
	}
	m.clearSessionCookie(w)

	return nil
}

// ClearCookie expires the session cookie without touching the store.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	m.clearSessionCookie(w)
}

func anonymous() *Session {
	return &Session{
		rec: &sessioninfo.Record{Status: sessioninfo.StatusAnonymous},
	}
}
