// Package secrets abstracts the secret store holding OIDC client secrets and
// downstream API keys.
package secrets

import (
	"context"
	"os"

	"github.com/go-playground/errors/v5"
)

// Store resolves a secret by reference.
type Store interface {
	Secret(ctx context.Context, ref string) (string, error)
}

var _ Store = EnvStore{}

// EnvStore resolves secret references to environment variables. It serves
// deployments where the platform injects secrets into the process
// environment.
type EnvStore struct{}

// Secret returns the value of the environment variable named by ref.
func (EnvStore) Secret(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok || v == "" {
		return "", errors.Newf("secret %q is not set", ref)
	}

	return v, nil
}

// StaticStore serves secrets from a fixed map. Used in tests.
type StaticStore map[string]string

var _ Store = StaticStore{}

// Secret returns the mapped value for ref.
func (s StaticStore) Secret(_ context.Context, ref string) (string, error) {
	v, ok := s[ref]
	if !ok {
		return "", errors.Newf("secret %q is not set", ref)
	}

	return v, nil
}
