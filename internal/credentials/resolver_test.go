package credentials_test

import (
	"errors"
	"testing"

	"github.com/internlog/internlog/internal/credentials"
)

func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestResolver_OverrideWinsOverEnv(t *testing.T) {
	r := credentials.NewResolver(
		credentials.WithEnvVar("provider/openai", "OPENAI_API_KEY"),
		credentials.WithOverride("provider/openai", "override-key"),
		credentials.WithLookupEnv(fakeEnv(map[string]string{"OPENAI_API_KEY": "env-key"})),
	)

	got, err := r.Resolve("provider/openai")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "override-key" {
		t.Errorf("got %q, want the override", got)
	}
}

func TestResolver_FallsBackToEnv(t *testing.T) {
	r := credentials.NewResolver(
		credentials.WithEnvVar("provider/groq", "GROQ_API_KEY"),
		credentials.WithLookupEnv(fakeEnv(map[string]string{"GROQ_API_KEY": "env-key"})),
	)

	got, err := r.Resolve("provider/groq")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "env-key" {
		t.Errorf("got %q, want the environment value", got)
	}
}

func TestResolver_MissingCredential(t *testing.T) {
	r := credentials.NewResolver(
		credentials.WithEnvVar("portal/password", "PORTAL_PASSWORD"),
		credentials.WithLookupEnv(fakeEnv(nil)),
	)

	_, err := r.Resolve("portal/password")
	var missing *credentials.NoCredentialError
	if !errors.As(err, &missing) {
		t.Fatalf("expected NoCredentialError, got %v", err)
	}
	if missing.Capability != "portal/password" {
		t.Errorf("error names capability %q, want portal/password", missing.Capability)
	}
}

func TestResolver_UnknownCapability(t *testing.T) {
	r := credentials.NewResolver(credentials.WithLookupEnv(fakeEnv(nil)))

	if _, err := r.Resolve("provider/unheard-of"); err == nil {
		t.Error("unknown capability should not resolve")
	}
}

func TestResolver_PeekNeverErrors(t *testing.T) {
	r := credentials.NewResolver(
		credentials.WithOverride("provider/groq", "k"),
		credentials.WithLookupEnv(fakeEnv(nil)),
	)

	if got := r.Peek("provider/groq"); got != "k" {
		t.Errorf("Peek = %q, want k", got)
	}
	if got := r.Peek("provider/absent"); got != "" {
		t.Errorf("Peek for absent capability = %q, want empty", got)
	}
}

func TestResolver_EmptyOverrideIgnored(t *testing.T) {
	r := credentials.NewResolver(
		credentials.WithOverride("provider/groq", ""),
		credentials.WithEnvVar("provider/groq", "GROQ_API_KEY"),
		credentials.WithLookupEnv(fakeEnv(map[string]string{"GROQ_API_KEY": "env-key"})),
	)

	got, err := r.Resolve("provider/groq")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "env-key" {
		t.Errorf("empty override must not mask the environment value, got %q", got)
	}
}
