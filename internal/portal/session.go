// Package portal drives the diary portal's web forms through real browser
// sessions. Every selector is a fallback list so minor markup drift on the
// portal degrades into trying the next strategy instead of breaking the
// build.
package portal

import (
	"context"
	"fmt"
	"strings"

	"github.com/internlog/internlog/internal/diary"
)

// Credentials are the portal login secrets, resolved by the caller before a
// job starts.
type Credentials struct {
	Username string
	Password string
}

// SelectorMismatchError means every selector strategy for a field failed.
// Recorded on the entry; never fatal to the worker.
type SelectorMismatchError struct {
	Field string
	Tried []string
}

func (e *SelectorMismatchError) Error() string {
	return fmt.Sprintf("no selector matched field %s (tried %s)", e.Field, strings.Join(e.Tried, ", "))
}

// PortalRejectionError means the portal refused a submission (duplicate
// date, validation failure, missing confirmation). Per-entry, never fatal
// to the job.
type PortalRejectionError struct {
	Reason string
}

func (e *PortalRejectionError) Error() string {
	return fmt.Sprintf("portal rejected submission: %s", e.Reason)
}

// SessionAuthError means login failed. Fatal to the one worker owning the
// session; other workers continue.
type SessionAuthError struct {
	Err error
}

func (e *SessionAuthError) Error() string {
	return fmt.Sprintf("portal authentication failed: %v", e.Err)
}

func (e *SessionAuthError) Unwrap() error { return e.Err }

// Session is one worker's exclusive browser session. Login is called once
// and reused across all of the worker's entries.
type Session interface {
	Login(ctx context.Context) error
	PrepareEntry(ctx context.Context, date string) error
	Fill(ctx context.Context, entry diary.Entry) error
	Submit(ctx context.Context) error
	Close() error
}

// SessionFactory builds one isolated session per worker.
type SessionFactory interface {
	NewSession(workerID int) (Session, error)
}
