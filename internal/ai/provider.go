package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/internlog/internlog/internal/diary"
)

// Request is the input to one synthesis call: the full slot sequence for a
// generation run plus the skill catalog the model may pick from. One request
// produces one entry per non-skipped slot.
type Request struct {
	Slots    []diary.Slot
	Skills   []string
	HoursMin float64
	HoursMax float64
}

// OpenSlots returns the non-skipped slots, the ones the model must produce
// entries for.
func (r Request) OpenSlots() []diary.Slot {
	var open []diary.Slot
	for _, s := range r.Slots {
		if !s.Skipped {
			open = append(open, s)
		}
	}
	return open
}

// Provider synthesizes all diary entries for a slot sequence in a single
// upstream call.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) ([]diary.Entry, error)
}

// QuotaExceededError means the provider's quota or rate limit is exhausted.
// The chain falls through to the next provider without retrying.
type QuotaExceededError struct {
	Provider string
	Err      error
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: quota exceeded: %v", e.Provider, e.Err)
}

func (e *QuotaExceededError) Unwrap() error { return e.Err }

// AuthError means the provider rejected the credential. Treated like quota
// exhaustion: fall through, don't retry.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// MalformedResponseError means the provider returned something that does not
// satisfy the response contract (wrong entry count, mismatched dates,
// unparseable JSON). Internal to the chain: it triggers one retry then
// fallback, and only surfaces if every provider is exhausted.
type MalformedResponseError struct {
	Provider string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Provider, e.Reason)
}

// Attempt records one failed provider attempt for NoProviderAvailableError.
type Attempt struct {
	Provider string
	Err      error
}

// NoProviderAvailableError means every eligible provider was exhausted. It
// carries the full attempt log so a caller can see exactly what failed where.
type NoProviderAvailableError struct {
	Attempts []Attempt
}

func (e *NoProviderAvailableError) Error() string {
	var b strings.Builder
	b.WriteString("no provider available")
	if len(e.Attempts) == 0 {
		b.WriteString(": no provider has a credential configured")
		return b.String()
	}
	b.WriteString(":")
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %s: %v", a.Provider, a.Err)
	}
	return b.String()
}
