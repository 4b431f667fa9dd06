package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/internlog/internlog/internal/credentials"
	"github.com/internlog/internlog/internal/diary"
)

// ProviderSpec describes one entry in the provider priority list.
type ProviderSpec struct {
	Name       string
	BaseURL    string
	Model      string
	Capability string // credential capability, e.g. "provider/groq"
}

// DefaultRegistry is the priority order tried when the caller names no
// preferred provider: fastest free tiers first.
func DefaultRegistry() []ProviderSpec {
	return []ProviderSpec{
		{Name: "groq", BaseURL: "https://api.groq.com/openai/v1", Model: "llama-3.3-70b-versatile", Capability: "provider/groq"},
		{Name: "gemini", BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai", Model: "gemini-2.0-flash", Capability: "provider/gemini"},
		{Name: "cerebras", BaseURL: "https://api.cerebras.ai/v1", Model: "llama-3.3-70b", Capability: "provider/cerebras"},
		{Name: "openai", BaseURL: "", Model: "gpt-4o-mini", Capability: "provider/openai"},
	}
}

// Chain walks an ordered provider list, issuing at most one outstanding
// synthesis request at a time and falling through on quota, auth and timeout
// failures. Providers without a credential are skipped, not attempted.
type Chain struct {
	specs   []ProviderSpec
	creds   *credentials.Resolver
	timeout time.Duration
	logger  *slog.Logger

	// newProvider builds the provider for a spec once its credential is
	// resolved. Tests replace it to script failures.
	newProvider func(spec ProviderSpec, apiKey string) Provider
}

func NewChain(specs []ProviderSpec, creds *credentials.Resolver, timeout time.Duration, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Chain{
		specs:   specs,
		creds:   creds,
		timeout: timeout,
		logger:  logger,
	}
	c.newProvider = func(spec ProviderSpec, apiKey string) Provider {
		return NewChatProvider(spec.Name, spec.BaseURL, apiKey, spec.Model, c.timeout, c.logger)
	}
	return c
}

// Synthesize produces one entry per non-skipped slot, trying the preferred
// provider first when it has a credential, then the rest of the priority
// list. Quota, auth and timeout failures fall through without retry; any
// other failure (including a malformed response) gets exactly one retry on
// the same provider before falling through. When every eligible provider is
// exhausted the error lists each attempt.
func (c *Chain) Synthesize(ctx context.Context, req Request, preferred string) ([]diary.Entry, error) {
	order := c.eligible(preferred)
	if len(order) == 0 {
		return nil, &NoProviderAvailableError{}
	}

	var attempts []Attempt
	for _, cand := range order {
		entries, err := c.tryProvider(ctx, cand, req)
		if err == nil {
			c.logger.Debug("synthesis succeeded", "provider", cand.spec.Name, "entries", len(entries))
			return entries, nil
		}
		if ctx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) {
			// Caller cancellation, not a provider timeout.
			return nil, ctx.Err()
		}
		attempts = append(attempts, Attempt{Provider: cand.spec.Name, Err: err})
		c.logger.Warn("provider exhausted, falling back", "provider", cand.spec.Name, "error", err)
	}

	return nil, &NoProviderAvailableError{Attempts: attempts}
}

type candidate struct {
	spec   ProviderSpec
	apiKey string
}

// eligible filters the registry down to providers holding a credential and
// moves the preferred one (if any, and if eligible) to the front.
func (c *Chain) eligible(preferred string) []candidate {
	var out []candidate
	for _, spec := range c.specs {
		key := c.creds.Peek(spec.Capability)
		if key == "" {
			c.logger.Debug("skipping provider without credential", "provider", spec.Name)
			continue
		}
		cand := candidate{spec: spec, apiKey: key}
		if spec.Name == preferred {
			out = append([]candidate{cand}, out...)
			continue
		}
		out = append(out, cand)
	}
	return out
}

func (c *Chain) tryProvider(ctx context.Context, cand candidate, req Request) ([]diary.Entry, error) {
	prov := c.newProvider(cand.spec, cand.apiKey)

	entries, err := prov.Synthesize(ctx, req)
	if err == nil {
		return entries, nil
	}
	if fatalToProvider(err) {
		return nil, err
	}

	// One retry for transient failures and malformed responses.
	c.logger.Debug("retrying provider once", "provider", cand.spec.Name, "error", err)
	entries, retryErr := prov.Synthesize(ctx, req)
	if retryErr == nil {
		return entries, nil
	}
	return nil, retryErr
}

// fatalToProvider reports errors that mean the provider is dead for this
// run: exhausted quota, bad credential, or a timed-out request.
func fatalToProvider(err error) bool {
	var quota *QuotaExceededError
	var auth *AuthError
	return errors.As(err, &quota) || errors.As(err, &auth) || errors.Is(err, context.DeadlineExceeded)
}
