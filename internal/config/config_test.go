package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/forms")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.SessionTTL != 15*time.Minute {
		t.Errorf("SessionTTL = %v, want 15m", c.SessionTTL)
	}
	if !c.PostLoginHook {
		t.Error("PostLoginHook = false, want true by default")
	}
	if c.SessionStore != "redis" {
		t.Errorf("SessionStore = %q, want redis", c.SessionStore)
	}
	if c.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", c.ListenAddr)
	}
}

func TestLoad_overrides(t *testing.T) {
	t.Setenv("SESSION_TTL_MIN", "45")
	t.Setenv("POST_LOGIN_HOOK", "false")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("PERMISSION_STORE", "spanner")
	t.Setenv("SPANNER_DATABASE", "projects/p/instances/i/databases/d")
	t.Setenv("AUTHORIZED_USER_EMAILS", "a@example.nl, b@example.nl,")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.SessionTTL != 45*time.Minute {
		t.Errorf("SessionTTL = %v, want 45m", c.SessionTTL)
	}
	if c.PostLoginHook {
		t.Error("PostLoginHook = true, want false")
	}
	if len(c.AuthorizedEmails) != 2 || c.AuthorizedEmails[0] != "a@example.nl" || c.AuthorizedEmails[1] != "b@example.nl" {
		t.Errorf("AuthorizedEmails = %v, want two trimmed entries", c.AuthorizedEmails)
	}
}

func TestLoad_validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "bad ttl",
			env:  map[string]string{"SESSION_TTL_MIN": "soon", "POSTGRES_DSN": "x"},
		},
		{
			name: "unknown session store",
			env:  map[string]string{"SESSION_STORE": "dynamo", "POSTGRES_DSN": "x"},
		},
		{
			name: "postgres store without dsn",
			env:  map[string]string{"PERMISSION_STORE": "postgres"},
		},
		{
			name: "spanner store without database",
			env:  map[string]string{"PERMISSION_STORE": "spanner"},
		},
		{
			name: "unknown permission store",
			env:  map[string]string{"PERMISSION_STORE": "dynamo"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}

func TestLoadProfiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `profiles:
  - name: digid
    title: Inloggen met DigiD
    clientId: forms-management
    clientSecretRef: OIDC_CLIENT_SECRET_DIGID
    applicationBaseUrl: https://beheer.example.nl
    authenticationBaseUrl: https://authenticatie.example.nl
    scope: openid idp_scoping:digid
  - name: eherkenning
    title: Inloggen met eHerkenning
    clientId: forms-management
    clientSecretRef: OIDC_CLIENT_SECRET_EH
    applicationBaseUrl: https://beheer.example.nl
    authenticationBaseUrl: https://authenticatie.example.nl
    immediateRedirect: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}

	profiles, err := LoadProfiles(path)
	if err != nil {
		t.Fatalf("LoadProfiles() error = %v", err)
	}

	if len(profiles) != 2 {
		t.Fatalf("LoadProfiles() returned %d profiles, want 2", len(profiles))
	}
	if profiles[0].Name != "digid" || profiles[1].Name != "eherkenning" {
		t.Errorf("profile order = %q, %q, want digid, eherkenning", profiles[0].Name, profiles[1].Name)
	}
	if !profiles[1].ImmediateRedirect {
		t.Error("eherkenning ImmediateRedirect = false, want true")
	}
}

func TestLoadProfiles_errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "empty file", content: ""},
		{name: "no profiles", content: "profiles: []"},
		{
			name: "duplicate names",
			content: `profiles:
  - name: digid
    clientId: a
    clientSecretRef: b
    applicationBaseUrl: c
    authenticationBaseUrl: d
  - name: digid
    clientId: a
    clientSecretRef: b
    applicationBaseUrl: c
    authenticationBaseUrl: d
`,
		},
		{
			name: "invalid profile",
			content: `profiles:
  - name: digid
`,
		},
		{name: "not yaml", content: "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "profiles.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("os.WriteFile() error = %v", err)
			}

			if _, err := LoadProfiles(path); err == nil {
				t.Error("LoadProfiles() error = nil, want error")
			}
		})
	}
}

func TestLoadProfiles_missingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadProfiles(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadProfiles() error = nil, want error")
	}
}
