package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-playground/errors/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/gemeente-forms/management/internal/secrets"
)

const (
	testClientID  = "forms-management"
	testSecretRef = "OIDC_CLIENT_SECRET"
)

// broker is a fake identity broker serving the token and JWKS endpoints.
type broker struct {
	server *httptest.Server
	key    *rsa.PrivateKey

	// tokenResponse is returned by the token endpoint; tokenStatus overrides
	// the status code when non-zero.
	tokenResponse map[string]any
	tokenStatus   int

	// lastTokenForm captures the form the token endpoint received.
	lastTokenForm url.Values
}

func newBroker(t *testing.T) *broker {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}

	b := &broker{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/broker/sp/oidc/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}
		b.lastTokenForm = r.Form
		if b.tokenStatus != 0 {
			http.Error(w, "token error", b.tokenStatus)

			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(b.tokenResponse); err != nil {
			t.Errorf("encoding token response: %v", err)
		}
	})
	mux.HandleFunc("/broker/sp/oidc/certs", func(w http.ResponseWriter, _ *http.Request) {
		jwks := map[string]any{
			"keys": []map[string]any{{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": "test-key",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(jwks); err != nil {
			t.Errorf("encoding jwks: %v", err)
		}
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)

	return b
}

func (b *broker) profile() Profile {
	return Profile{
		Name:                  "digid",
		Title:                 "Inloggen met DigiD",
		ClientID:              testClientID,
		ClientSecretRef:       testSecretRef,
		ApplicationBaseURL:    "https://beheer.example.nl",
		AuthenticationBaseURL: b.server.URL,
		Scope:                 "openid idp_scoping:digid",
	}
}

// mintIDToken signs an RS256 identity token for the given audience.
func (b *broker) mintIDToken(t *testing.T, audience string) string {
	t.Helper()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   b.server.URL + "/broker/sp/oidc",
		"aud":   audience,
		"sub":   "user-123",
		"email": "user@example.nl",
		"acr":   "urn:example:loa:substantial",
		"amr":   []string{"pwd", "otp"},
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "test-key"

	signed, err := token.SignedString(b.key)
	if err != nil {
		t.Fatalf("jwt.Token.SignedString() error = %v", err)
	}

	return signed
}

func (b *broker) connector(t *testing.T, store secrets.Store) *Connector {
	t.Helper()

	c, err := New(context.Background(), b.profile(), store, WithHTTPClient(b.server.Client()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return c
}

func testSecrets() secrets.StaticStore {
	return secrets.StaticStore{testSecretRef: "s3cret"}
}

func TestConnector_LoginURL(t *testing.T) {
	t.Parallel()

	b := newBroker(t)
	c := b.connector(t, testSecrets())

	loginURL, err := url.Parse(c.LoginURL("state-token-1"))
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}

	if want := "/broker/sp/oidc/authenticate"; loginURL.Path != want {
		t.Errorf("LoginURL() path = %q, want %q", loginURL.Path, want)
	}

	q := loginURL.Query()
	for key, want := range map[string]string{
		"state":         "state-token-1",
		"client_id":     testClientID,
		"redirect_uri":  "https://beheer.example.nl/auth",
		"scope":         "openid idp_scoping:digid",
		"resource":      b.server.URL,
		"response_type": "code",
	} {
		if got := q.Get(key); got != want {
			t.Errorf("LoginURL() %s = %q, want %q", key, got, want)
		}
	}
}

func TestConnector_Authorize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := newBroker(t)
	b.tokenResponse = map[string]any{
		"access_token": "at-1",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     b.mintIDToken(t, testClientID),
	}
	c := b.connector(t, testSecrets())

	claims, err := c.Authorize(ctx, "code-1", []string{"other-state", "known-state"}, "known-state")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}

	if claims.Email != "user@example.nl" {
		t.Errorf("claims.Email = %q, want user@example.nl", claims.Email)
	}
	if claims.Subject != "user-123" {
		t.Errorf("claims.Subject = %q, want user-123", claims.Subject)
	}
	if claims.ACR != "urn:example:loa:substantial" {
		t.Errorf("claims.ACR = %q", claims.ACR)
	}
	if len(claims.Raw()) == 0 {
		t.Error("claims.Raw() is empty, want the full claim set")
	}

	// The exchange authenticates with the secret from the secret store, in
	// the request parameters.
	if got := b.lastTokenForm.Get("client_secret"); got != "s3cret" {
		t.Errorf("token request client_secret = %q, want s3cret", got)
	}
	if got := b.lastTokenForm.Get("code"); got != "code-1" {
		t.Errorf("token request code = %q, want code-1", got)
	}
}

func TestConnector_Authorize_invalidState(t *testing.T) {
	t.Parallel()

	b := newBroker(t)
	c := b.connector(t, testSecrets())

	_, err := c.Authorize(context.Background(), "code-1", []string{"issued-state"}, "forged-state")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Authorize() error = %v, want ErrInvalidState", err)
	}
	if b.lastTokenForm != nil {
		t.Error("token endpoint was called for a forged state, want no call")
	}
}

func TestConnector_Authorize_noKnownStates(t *testing.T) {
	t.Parallel()

	b := newBroker(t)
	c := b.connector(t, testSecrets())

	if _, err := c.Authorize(context.Background(), "code-1", nil, "any-state"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Authorize() error = %v, want ErrInvalidState", err)
	}
}

func TestConnector_Authorize_audienceMismatch(t *testing.T) {
	t.Parallel()

	b := newBroker(t)
	b.tokenResponse = map[string]any{
		"access_token": "at-1",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     b.mintIDToken(t, "some-other-client"),
	}
	c := b.connector(t, testSecrets())

	_, err := c.Authorize(context.Background(), "code-1", []string{"s"}, "s")
	if !errors.Is(err, ErrAudienceMismatch) {
		t.Errorf("Authorize() error = %v, want ErrAudienceMismatch", err)
	}
}

func TestConnector_Authorize_tokenEndpointFailure(t *testing.T) {
	t.Parallel()

	b := newBroker(t)
	b.tokenStatus = http.StatusInternalServerError
	c := b.connector(t, testSecrets())

	_, err := c.Authorize(context.Background(), "code-1", []string{"s"}, "s")
	if !errors.Is(err, ErrTokenExchange) {
		t.Errorf("Authorize() error = %v, want ErrTokenExchange", err)
	}
}

func TestConnector_Authorize_missingIDToken(t *testing.T) {
	t.Parallel()

	b := newBroker(t)
	b.tokenResponse = map[string]any{
		"access_token": "at-1",
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	c := b.connector(t, testSecrets())

	_, err := c.Authorize(context.Background(), "code-1", []string{"s"}, "s")
	if !errors.Is(err, ErrTokenExchange) {
		t.Errorf("Authorize() error = %v, want ErrTokenExchange", err)
	}
}

func TestConnector_Authorize_secretUnavailable(t *testing.T) {
	t.Parallel()

	b := newBroker(t)
	c := b.connector(t, secrets.StaticStore{})

	_, err := c.Authorize(context.Background(), "code-1", []string{"s"}, "s")
	if err == nil {
		t.Fatal("Authorize() error = nil, want error when the secret store has no secret")
	}
	if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrAudienceMismatch) {
		t.Errorf("Authorize() error = %v, want a plain store error", err)
	}
	if b.lastTokenForm != nil {
		t.Error("token endpoint was called without a client secret, want no call")
	}
}

func TestGenerateState_unique(t *testing.T) {
	t.Parallel()

	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	b, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	if a == b || a == "" {
		t.Errorf("GenerateState() produced %q and %q, want distinct non-empty tokens", a, b)
	}
}

func TestNew_validatesProfile(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Profile{Name: "broken"}, testSecrets())
	if err == nil {
		t.Error("New() error = nil, want validation error")
	}
}

func TestProfile_endpointLayout(t *testing.T) {
	t.Parallel()

	p := Profile{
		ApplicationBaseURL:    "https://beheer.example.nl/",
		AuthenticationBaseURL: "https://authenticatie.example.nl/",
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "issuer", got: p.issuerURL(), want: "https://authenticatie.example.nl/broker/sp/oidc"},
		{name: "authorize", got: p.authorizeURL(), want: "https://authenticatie.example.nl/broker/sp/oidc/authenticate"},
		{name: "token", got: p.tokenURL(), want: "https://authenticatie.example.nl/broker/sp/oidc/token"},
		{name: "jwks", got: p.jwksURL(), want: "https://authenticatie.example.nl/broker/sp/oidc/certs"},
		{name: "redirect", got: p.RedirectURL(), want: "https://beheer.example.nl/auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}
