// Package credentials resolves secrets for provider calls and portal logins.
// A Resolver is built once at job start and passed in explicitly, so a
// credential rotated mid-job never changes what a running job sees.
package credentials

import (
	"fmt"
	"os"
)

// NoCredentialError reports that neither a per-request override nor an
// environment default was present for a capability.
type NoCredentialError struct {
	Capability string
}

func (e *NoCredentialError) Error() string {
	return fmt.Sprintf("no credential configured for %s", e.Capability)
}

// Resolver maps capability names (e.g. "provider/openai", "portal/password")
// to secret values. Overrides take precedence over environment defaults.
type Resolver struct {
	overrides map[string]string
	envVars   map[string]string
	lookupEnv func(string) (string, bool)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOverride supplies a per-request credential that wins over any
// environment default.
func WithOverride(capability, value string) Option {
	return func(r *Resolver) {
		if value != "" {
			r.overrides[capability] = value
		}
	}
}

// WithEnvVar declares which environment variable backs a capability.
func WithEnvVar(capability, envVar string) Option {
	return func(r *Resolver) {
		r.envVars[capability] = envVar
	}
}

// WithLookupEnv replaces os.LookupEnv, for tests.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(r *Resolver) {
		r.lookupEnv = fn
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		overrides: make(map[string]string),
		envVars:   make(map[string]string),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the credential for a capability, preferring a per-request
// override, then the declared environment variable. Absent both, it fails
// with NoCredentialError naming the capability.
func (r *Resolver) Resolve(capability string) (string, error) {
	if v, ok := r.overrides[capability]; ok {
		return v, nil
	}
	if envVar, ok := r.envVars[capability]; ok {
		if v, ok := r.lookupEnv(envVar); ok && v != "" {
			return v, nil
		}
	}
	return "", &NoCredentialError{Capability: capability}
}

// Peek is Resolve without the error: it returns the empty string when no
// credential is configured. Used when skipping, not failing, is the right
// response to a missing credential.
func (r *Resolver) Peek(capability string) string {
	v, err := r.Resolve(capability)
	if err != nil {
		return ""
	}
	return v
}
