package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/internlog/internlog/internal/credentials"
	"github.com/internlog/internlog/internal/diary"
)

func testSlots(n int) []diary.Slot {
	var slots []diary.Slot
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		slots = append(slots, diary.Slot{Date: base.AddDate(0, 0, i)})
	}
	return slots
}

func testResolver(capabilities ...string) *credentials.Resolver {
	opts := make([]credentials.Option, 0, len(capabilities)+1)
	for _, c := range capabilities {
		opts = append(opts, credentials.WithOverride(c, "key-"+c))
	}
	opts = append(opts, credentials.WithLookupEnv(func(string) (string, bool) { return "", false }))
	return credentials.NewResolver(opts...)
}

// scriptedChain builds a chain whose providers are Mocks keyed by name.
func scriptedChain(creds *credentials.Resolver, mocks map[string]*Mock) *Chain {
	c := NewChain(DefaultRegistry(), creds, time.Second, nil)
	c.newProvider = func(spec ProviderSpec, apiKey string) Provider {
		m, ok := mocks[spec.Name]
		if !ok {
			m = &Mock{ProviderName: spec.Name}
			mocks[spec.Name] = m
		}
		return m
	}
	return c
}

func TestChain_FallsThroughOnQuota(t *testing.T) {
	creds := testResolver("provider/groq", "provider/gemini")
	groq := &Mock{ProviderName: "groq", Errs: []error{
		&QuotaExceededError{Provider: "groq", Err: errors.New("429")},
	}}
	gemini := &Mock{ProviderName: "gemini"}
	chain := scriptedChain(creds, map[string]*Mock{"groq": groq, "gemini": gemini})

	req := Request{Slots: testSlots(3), HoursMin: 8, HoursMax: 9}
	entries, err := chain.Synthesize(context.Background(), req, "")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
	if groq.Calls != 1 {
		t.Errorf("quota failure must not be retried: groq called %d times", groq.Calls)
	}
	if gemini.Calls != 1 {
		t.Errorf("fallback provider called %d times, want 1", gemini.Calls)
	}
}

func TestChain_RetriesMalformedOnce(t *testing.T) {
	creds := testResolver("provider/groq")
	groq := &Mock{ProviderName: "groq", Errs: []error{
		&MalformedResponseError{Provider: "groq", Reason: "wrong entry count"},
	}}
	chain := scriptedChain(creds, map[string]*Mock{"groq": groq})

	entries, err := chain.Synthesize(context.Background(), Request{Slots: testSlots(2), HoursMin: 8}, "")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if groq.Calls != 2 {
		t.Errorf("malformed response gets exactly one retry: %d calls", groq.Calls)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}
}

func TestChain_MalformedTwiceFallsThrough(t *testing.T) {
	creds := testResolver("provider/groq", "provider/gemini")
	groq := &Mock{ProviderName: "groq", Errs: []error{
		&MalformedResponseError{Provider: "groq", Reason: "bad json"},
		&MalformedResponseError{Provider: "groq", Reason: "bad json again"},
	}}
	gemini := &Mock{ProviderName: "gemini"}
	chain := scriptedChain(creds, map[string]*Mock{"groq": groq, "gemini": gemini})

	_, err := chain.Synthesize(context.Background(), Request{Slots: testSlots(1), HoursMin: 8}, "")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if groq.Calls != 2 {
		t.Errorf("groq called %d times, want 2", groq.Calls)
	}
	if gemini.Calls != 1 {
		t.Errorf("gemini called %d times, want 1", gemini.Calls)
	}
}

func TestChain_SkipsProvidersWithoutCredential(t *testing.T) {
	// Only cerebras holds a credential; nothing else may be attempted.
	creds := testResolver("provider/cerebras")
	mocks := map[string]*Mock{}
	chain := scriptedChain(creds, mocks)

	_, err := chain.Synthesize(context.Background(), Request{Slots: testSlots(1), HoursMin: 8}, "")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	for name, m := range mocks {
		want := 0
		if name == "cerebras" {
			want = 1
		}
		if m.Calls != want {
			t.Errorf("%s called %d times, want %d", name, m.Calls, want)
		}
	}
}

func TestChain_PreferredGoesFirst(t *testing.T) {
	creds := testResolver("provider/groq", "provider/cerebras")
	groq := &Mock{ProviderName: "groq"}
	cerebras := &Mock{ProviderName: "cerebras"}
	chain := scriptedChain(creds, map[string]*Mock{"groq": groq, "cerebras": cerebras})

	_, err := chain.Synthesize(context.Background(), Request{Slots: testSlots(1), HoursMin: 8}, "cerebras")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if cerebras.Calls != 1 || groq.Calls != 0 {
		t.Errorf("preferred provider not tried first: cerebras=%d groq=%d", cerebras.Calls, groq.Calls)
	}
}

func TestChain_ExhaustedListsEveryAttempt(t *testing.T) {
	creds := testResolver("provider/groq", "provider/gemini", "provider/openai")
	mocks := map[string]*Mock{
		"groq":   {ProviderName: "groq", Errs: []error{&QuotaExceededError{Provider: "groq", Err: errors.New("429")}}},
		"gemini": {ProviderName: "gemini", Errs: []error{&AuthError{Provider: "gemini", Err: errors.New("401")}}},
		"openai": {ProviderName: "openai", Errs: []error{
			fmt.Errorf("boom"),
			fmt.Errorf("boom again"),
		}},
	}
	chain := scriptedChain(creds, mocks)

	_, err := chain.Synthesize(context.Background(), Request{Slots: testSlots(1), HoursMin: 8}, "")
	var exhausted *NoProviderAvailableError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected NoProviderAvailableError, got %v", err)
	}
	if len(exhausted.Attempts) != 3 {
		t.Fatalf("got %d attempts, want 3: %v", len(exhausted.Attempts), err)
	}
	if mocks["openai"].Calls != 2 {
		t.Errorf("generic failure should be retried once: openai called %d times", mocks["openai"].Calls)
	}
}

func TestChain_NoCredentialsAnywhere(t *testing.T) {
	chain := scriptedChain(testResolver(), map[string]*Mock{})

	_, err := chain.Synthesize(context.Background(), Request{Slots: testSlots(1), HoursMin: 8}, "")
	var exhausted *NoProviderAvailableError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected NoProviderAvailableError, got %v", err)
	}
	if len(exhausted.Attempts) != 0 {
		t.Errorf("no provider should have been attempted")
	}
}

func TestChain_CallerCancellationStopsFallback(t *testing.T) {
	creds := testResolver("provider/groq", "provider/gemini")
	ctx, cancel := context.WithCancel(context.Background())
	groq := &Mock{ProviderName: "groq", Errs: []error{
		&QuotaExceededError{Provider: "groq", Err: errors.New("429")},
	}}
	gemini := &Mock{ProviderName: "gemini"}
	chain := scriptedChain(creds, map[string]*Mock{"groq": groq, "gemini": gemini})
	cancel()

	_, err := chain.Synthesize(ctx, Request{Slots: testSlots(1), HoursMin: 8}, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if gemini.Calls != 0 {
		t.Errorf("cancelled chain must not fall through to the next provider")
	}
}

func TestParseResponse_RejectsWrongDates(t *testing.T) {
	slots := testSlots(2)
	req := Request{Slots: slots, HoursMin: 8, HoursMax: 9}

	raw := `{"entries": [
		{"date": "2024-01-01", "hours": 8.5, "activities": "a", "learnings": "b", "skills": ["Git"], "confidence": 0.8},
		{"date": "2024-03-15", "hours": 8.5, "activities": "a", "learnings": "b", "skills": ["Git"], "confidence": 0.8}
	]}`

	_, err := parseResponse("test", raw, req)
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError for mismatched date, got %v", err)
	}
}

func TestParseResponse_RejectsWrongCount(t *testing.T) {
	req := Request{Slots: testSlots(3), HoursMin: 8, HoursMax: 9}

	raw := `{"entries": [
		{"date": "2024-01-01", "hours": 8.5, "activities": "a", "learnings": "b", "skills": ["Git"], "confidence": 0.8}
	]}`

	_, err := parseResponse("test", raw, req)
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError for wrong entry count, got %v", err)
	}
}

func TestParseResponse_ClampsHours(t *testing.T) {
	req := Request{Slots: testSlots(1), HoursMin: 8, HoursMax: 9}

	raw := `{"entries": [
		{"date": "2024-01-01", "hours": 14, "activities": "a", "learnings": "b", "skills": ["Git"], "confidence": 0.8}
	]}`

	entries, err := parseResponse("test", raw, req)
	if err != nil {
		t.Fatalf("parseResponse failed: %v", err)
	}
	if entries[0].Hours != 9 {
		t.Errorf("hours %v not clamped to the configured band", entries[0].Hours)
	}
	if entries[0].Blockers != "None" {
		t.Errorf("missing blockers should default to %q, got %q", "None", entries[0].Blockers)
	}
	if !entries[0].Editable {
		t.Error("generated entries must be editable")
	}
}
