package portal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/internlog/internlog/internal/diary"
)

// BrowserConfig configures the chromedp-backed portal sessions.
type BrowserConfig struct {
	LoginURL    string
	DiaryURL    string
	Headless    bool
	NavTimeout  time.Duration
	FillTimeout time.Duration
}

func (c *BrowserConfig) withDefaults() BrowserConfig {
	out := *c
	if out.NavTimeout <= 0 {
		out.NavTimeout = 30 * time.Second
	}
	if out.FillTimeout <= 0 {
		out.FillTimeout = 3 * time.Second
	}
	return out
}

// BrowserFactory builds one browser per worker, each with its own exec
// allocator so no two workers share browser state.
type BrowserFactory struct {
	Config     BrowserConfig
	Creds      Credentials
	Strategies Strategies
	Logger     *slog.Logger
}

func (f *BrowserFactory) NewSession(workerID int) (Session, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	strategies := f.Strategies
	if strategies == nil {
		strategies = DefaultStrategies()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.Config.Headless),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &BrowserSession{
		workerID:      workerID,
		cfg:           f.Config.withDefaults(),
		creds:         f.Creds,
		strategies:    strategies,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        logger.With("worker", workerID),
	}, nil
}

// BrowserSession drives one Chrome instance through the portal's
// login → navigate → fill → submit flow.
type BrowserSession struct {
	workerID      int
	cfg           BrowserConfig
	creds         Credentials
	strategies    Strategies
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	logger        *slog.Logger
}

func (s *BrowserSession) Close() error {
	s.browserCancel()
	s.allocCancel()
	return nil
}

func (s *BrowserSession) Login(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug("logging in", "url", s.cfg.LoginURL)

	navCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(s.cfg.LoginURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return &SessionAuthError{Err: fmt.Errorf("loading login page: %w", err)}
	}

	// Some portals keep cookie sessions alive; if the login page redirected
	// straight to the dashboard there is nothing to fill in.
	var location string
	if err := chromedp.Run(s.browserCtx, chromedp.Location(&location)); err == nil {
		if !strings.Contains(strings.ToLower(location), "sign-in") && !strings.Contains(strings.ToLower(location), "login") {
			s.logger.Debug("already authenticated", "location", location)
			return nil
		}
	}

	if err := s.fillField(FieldEmail, s.creds.Username); err != nil {
		return &SessionAuthError{Err: err}
	}
	if err := s.fillField(FieldPassword, s.creds.Password); err != nil {
		return &SessionAuthError{Err: err}
	}
	if err := s.clickField(FieldLoginButton); err != nil {
		return &SessionAuthError{Err: err}
	}

	waitCtx, cancelWait := context.WithTimeout(s.browserCtx, s.cfg.NavTimeout)
	defer cancelWait()
	if err := chromedp.Run(waitCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
	); err != nil {
		return &SessionAuthError{Err: fmt.Errorf("waiting for post-login page: %w", err)}
	}
	lower := strings.ToLower(location)
	if strings.Contains(lower, "sign-in") || strings.Contains(lower, "login") {
		return &SessionAuthError{Err: fmt.Errorf("still on login page after submit")}
	}

	s.logger.Debug("login succeeded", "location", location)
	return nil
}

func (s *BrowserSession) PrepareEntry(ctx context.Context, date string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug("opening entry form", "date", date)

	navCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(s.cfg.DiaryURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigating to diary page: %w", err)
	}

	return s.setField(FieldDate, date)
}

func (s *BrowserSession) Fill(ctx context.Context, entry diary.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fields := []struct {
		name  string
		value string
	}{
		{FieldActivities, entry.Activities},
		{FieldHours, fmt.Sprintf("%g", entry.Hours)},
		{FieldLearnings, entry.Learnings},
		{FieldBlockers, entry.Blockers},
		{FieldLinks, orNone(entry.Links)},
		{FieldSkills, strings.Join(entry.Skills, ", ")},
	}
	for _, f := range fields {
		if err := s.fillField(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *BrowserSession) Submit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.clickField(FieldSubmit); err != nil {
		return err
	}

	// Confirmation signal: the portal shows an acknowledgement after a
	// successful save; "already" in the body means a duplicate date.
	waitCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.NavTimeout)
	defer cancel()
	var body string
	if err := chromedp.Run(waitCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Text("body", &body, chromedp.ByQuery),
	); err != nil {
		return &PortalRejectionError{Reason: fmt.Sprintf("no confirmation after submit: %v", err)}
	}

	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "already"):
		return &PortalRejectionError{Reason: "entry for this date already submitted"}
	case strings.Contains(lower, "success") || strings.Contains(lower, "submitted") || strings.Contains(lower, "saved"):
		return nil
	}
	return &PortalRejectionError{Reason: "no confirmation signal found on page"}
}

// trySelectors runs attempt against each selector for field in order and
// stops at the first one that works. When every selector misses it returns
// a SelectorMismatchError carrying the full list that was tried.
func trySelectors(field string, selectors []string, logger *slog.Logger, attempt func(sel string) error) error {
	for _, sel := range selectors {
		err := attempt(sel)
		if err == nil {
			return nil
		}
		logger.Debug("selector missed", "field", field, "selector", sel, "error", err)
	}
	return &SelectorMismatchError{Field: field, Tried: selectors}
}

// fillField tries each selector strategy for a field until one accepts
// keystrokes.
func (s *BrowserSession) fillField(field, value string) error {
	return trySelectors(field, s.strategies[field], s.logger, func(sel string) error {
		tryCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.FillTimeout)
		defer cancel()
		return chromedp.Run(tryCtx,
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Clear(sel, chromedp.ByQuery),
			chromedp.SendKeys(sel, value, chromedp.ByQuery),
		)
	})
}

// setField writes a value directly, for inputs (date pickers) that reject
// synthetic keystrokes.
func (s *BrowserSession) setField(field, value string) error {
	return trySelectors(field, s.strategies[field], s.logger, func(sel string) error {
		tryCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.FillTimeout)
		defer cancel()
		return chromedp.Run(tryCtx,
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.SetValue(sel, value, chromedp.ByQuery),
		)
	})
}

func (s *BrowserSession) clickField(field string) error {
	return trySelectors(field, s.strategies[field], s.logger, func(sel string) error {
		tryCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.FillTimeout)
		defer cancel()
		return chromedp.Run(tryCtx,
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Click(sel, chromedp.ByQuery),
		)
	})
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}
