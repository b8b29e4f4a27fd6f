// Package config loads process configuration from the environment and the
// OIDC profile definitions from a YAML file, once at startup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/errors/v5"
	"gopkg.in/yaml.v3"

	"github.com/gemeente-forms/management/internal/oidc"
)

// Config is the process configuration.
type Config struct {
	ListenAddr string

	// SessionTTL is the sliding session expiry window.
	SessionTTL time.Duration

	// CookieHashKey and CookieBlockKey are base64 encoded securecookie
	// keys (64 and 32 bytes).
	CookieHashKey  string
	CookieBlockKey string

	// AuthorizedEmails is the allow-list consulted by the post-login
	// processor.
	AuthorizedEmails []string

	// PostLoginHook routes successful callbacks through the post-login
	// processor instead of logging users in directly.
	PostLoginHook bool

	SessionStore     string // "redis" or "memory"
	RedisAddr        string
	RedisPassword    string
	SessionKeyPrefix string

	PermissionStore string // "postgres" or "spanner"
	PostgresDSN     string
	SpannerDatabase string

	// APIBaseURL and APIKeySecretRef configure the downstream API client.
	APIBaseURL      string
	APIKeySecretRef string

	ProfilesFile string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	ttlMin, err := intEnv("SESSION_TTL_MIN", 15)
	if err != nil {
		return nil, err
	}

	postLoginHook, err := boolEnv("POST_LOGIN_HOOK", true)
	if err != nil {
		return nil, err
	}

	c := &Config{
		ListenAddr:       stringEnv("LISTEN_ADDR", ":8080"),
		SessionTTL:       time.Duration(ttlMin) * time.Minute,
		CookieHashKey:    os.Getenv("COOKIE_HASH_KEY"),
		CookieBlockKey:   os.Getenv("COOKIE_BLOCK_KEY"),
		AuthorizedEmails: splitEnv("AUTHORIZED_USER_EMAILS"),
		PostLoginHook:    postLoginHook,
		SessionStore:     stringEnv("SESSION_STORE", "redis"),
		RedisAddr:        stringEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		SessionKeyPrefix: stringEnv("SESSION_KEY_PREFIX", "management"),
		PermissionStore:  stringEnv("PERMISSION_STORE", "postgres"),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		SpannerDatabase:  os.Getenv("SPANNER_DATABASE"),
		APIBaseURL:       os.Getenv("API_BASE_URL"),
		APIKeySecretRef:  stringEnv("API_KEY_SECRET", "API_KEY"),
		ProfilesFile:     stringEnv("OIDC_PROFILES_FILE", "profiles.yaml"),
	}

	switch c.SessionStore {
	case "redis", "memory":
	default:
		return nil, errors.Newf("unsupported SESSION_STORE %q", c.SessionStore)
	}

	switch c.PermissionStore {
	case "postgres":
		if c.PostgresDSN == "" {
			return nil, errors.New("POSTGRES_DSN is required for PERMISSION_STORE=postgres")
		}
	case "spanner":
		if c.SpannerDatabase == "" {
			return nil, errors.New("SPANNER_DATABASE is required for PERMISSION_STORE=spanner")
		}
	default:
		return nil, errors.Newf("unsupported PERMISSION_STORE %q", c.PermissionStore)
	}

	return c, nil
}

// LoadProfiles reads the OIDC profile definitions from a YAML file and
// checks that profile names are unique.
func LoadProfiles(path string) ([]oidc.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "os.ReadFile()")
	}

	var doc struct {
		Profiles []oidc.Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "yaml.Unmarshal()")
	}
	if len(doc.Profiles) == 0 {
		return nil, errors.Newf("no OIDC profiles defined in %s", path)
	}

	seen := make(map[string]struct{}, len(doc.Profiles))
	for _, p := range doc.Profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[p.Name]; ok {
			return nil, errors.Newf("duplicate OIDC profile name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	return doc.Profiles, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid value for %s", key)
	}

	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "invalid value for %s", key)
	}

	return b, nil
}

func splitEnv(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
