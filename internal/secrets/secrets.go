// Package secrets resolves credentials that must not live in plain
// environment variables in production.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound is returned when a provider has no value for a name.
var ErrNotFound = errors.New("secret not found")

// Provider returns the current value of a named secret.
type Provider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// EnvProvider reads secrets from environment variables.  Names are
// upper-cased and dashes/slashes become underscores, so "webpay/api-secret"
// reads WEBPAY_API_SECRET.
type EnvProvider struct{}

func (EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	key := envKey(name)
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

func envKey(name string) string {
	r := strings.NewReplacer("-", "_", "/", "_", ".", "_")
	return strings.ToUpper(r.Replace(name))
}
