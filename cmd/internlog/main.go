package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"
	"github.com/internlog/internlog/internal/ai"
	"github.com/internlog/internlog/internal/config"
	"github.com/internlog/internlog/internal/credentials"
	"github.com/internlog/internlog/internal/dates"
	"github.com/internlog/internlog/internal/diary"
	"github.com/internlog/internlog/internal/generate"
	"github.com/internlog/internlog/internal/plausibility"
	"github.com/internlog/internlog/internal/portal"
	"github.com/internlog/internlog/internal/progress"
	"github.com/internlog/internlog/internal/skills"
	"github.com/internlog/internlog/internal/store"
	"github.com/internlog/internlog/internal/submit"
	"github.com/internlog/internlog/internal/tui"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "internlog",
	Short: "Internship diary assistant powered by AI",
	Long:  "internlog turns sparse task notes into dated diary entries, scores them for plausibility, and submits the reviewed batch to the internship portal.",
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate diary entries for a date range",
	RunE:  runGenerate,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit reviewed entries to the portal",
	RunE:  runSubmit,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show submission history and stats",
	RunE:  runStatus,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline internals to stderr")

	generateCmd.Flags().StringP("range", "r", "", "Date range: '2024-01-01 to 2024-01-31', a comma-separated list, or 'last week'")
	generateCmd.Flags().String("tasks", "", "Task notes file (.json for structured tasks, anything else is one task per line)")
	generateCmd.Flags().StringP("out", "o", "entries.json", "Where to write the generated batch")
	generateCmd.Flags().String("provider", "", "Try this provider first (groq, gemini, cerebras, openai)")
	generateCmd.Flags().Float64("threshold", 0.75, "Confidence below this marks an entry for review")
	generateCmd.MarkFlagRequired("range")

	submitCmd.Flags().String("entries", "entries.json", "Batch file produced by generate (after your review)")
	submitCmd.Flags().Int("workers", 0, "Browser workers (default from config)")
	submitCmd.Flags().Bool("dry-run", false, "Fill forms but never click submit")
	submitCmd.Flags().Bool("no-watch", false, "Skip the live progress view")

	statusCmd.Flags().Int("recent", 10, "How many recent submissions to list")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newResolver() *credentials.Resolver {
	return credentials.NewResolver(
		credentials.WithEnvVar("provider/groq", "GROQ_API_KEY"),
		credentials.WithEnvVar("provider/gemini", "GEMINI_API_KEY"),
		credentials.WithEnvVar("provider/cerebras", "CEREBRAS_API_KEY"),
		credentials.WithEnvVar("provider/openai", "OPENAI_API_KEY"),
		credentials.WithEnvVar("portal/username", "PORTAL_USERNAME"),
		credentials.WithEnvVar("portal/password", "PORTAL_PASSWORD"),
	)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	rangeStr, _ := cmd.Flags().GetString("range")
	tasksPath, _ := cmd.Flags().GetString("tasks")
	outPath, _ := cmd.Flags().GetString("out")
	provider, _ := cmd.Flags().GetString("provider")
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger()

	dateRange, err := dates.ParseRange(rangeStr, time.Now())
	if err != nil {
		return err
	}

	tasks, err := loadTasks(tasksPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var holidays dates.HolidaySet
	if cfg.Generation.SkipHolidays && cfg.Generation.HolidayICS != "" {
		holidays, err = dates.FetchHolidays(ctx, cfg.Generation.HolidayICS)
		if err != nil {
			return fmt.Errorf("fetching holiday calendar: %w", err)
		}
	}

	if provider == "" {
		provider = cfg.Providers.Preferred
	}

	catalog := skills.NewCatalog(cfg.Skills.CatalogPath, time.Hour)
	chain := ai.NewChain(ai.DefaultRegistry(), newResolver(), cfg.ProviderTimeout(), logger)
	engine := plausibility.New(plausibility.DefaultPolicy(), logger)
	pipeline := generate.NewPipeline(chain, engine, catalog, logger)

	out, err := pipeline.Run(ctx, generate.Params{
		Range: dateRange,
		Tasks: tasks,
		MapOptions: dates.MapOptions{
			SkipWeekends: cfg.Generation.SkipWeekends,
			SkipHolidays: cfg.Generation.SkipHolidays,
			Holidays:     holidays,
		},
		Preferred:           provider,
		HoursMin:            cfg.Generation.HoursMin,
		HoursMax:            cfg.Generation.HoursMax,
		ConfidenceThreshold: threshold,
	})
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("writing batch: %w", err)
	}

	fmt.Printf("Generated %d entries → %s\n", len(out.Entries), outPath)
	fmt.Printf("Plausibility: %.2f overall, %.2f avg confidence\n",
		out.Report.OverallScore, out.Report.AvgConfidence)
	for _, flag := range out.Report.Flags {
		fmt.Printf("  ⚠ %s\n", flag)
	}
	if len(out.NeedsReview) > 0 {
		fmt.Printf("\n%d entries below confidence %.2f — review before submitting:\n", len(out.NeedsReview), threshold)
		for _, e := range out.NeedsReview {
			fmt.Printf("  %s  (confidence %.2f)\n", e.Date, e.Confidence)
		}
	}
	fmt.Printf("\nEdit %s, then run: internlog submit --entries %s\n", outPath, outPath)

	return nil
}

func loadTasks(path string) ([]diary.TaskUnit, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tasks file: %w", err)
	}

	if strings.HasSuffix(path, ".json") {
		var tasks []diary.TaskUnit
		if err := json.Unmarshal(data, &tasks); err != nil {
			return nil, fmt.Errorf("parsing tasks file: %w", err)
		}
		return tasks, nil
	}

	var tasks []diary.TaskUnit
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tasks = append(tasks, diary.TaskUnit{SourceExcerpt: line})
	}
	return tasks, nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	entriesPath, _ := cmd.Flags().GetString("entries")
	workers, _ := cmd.Flags().GetInt("workers")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noWatch, _ := cmd.Flags().GetBool("no-watch")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Portal.LoginURL == "" || cfg.Portal.DiaryURL == "" {
		return fmt.Errorf("portal URLs not configured — run 'internlog config' to set them up")
	}
	logger := newLogger()

	entries, err := loadEntries(entriesPath)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no entries in %s", entriesPath)
	}

	resolver := newResolver()
	username, err := resolver.Resolve("portal/username")
	if err != nil {
		return err
	}
	password, err := resolver.Resolve("portal/password")
	if err != nil {
		return err
	}

	db, err := store.Open()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if workers <= 0 {
		workers = cfg.Submission.Workers
	}

	factory := &portal.BrowserFactory{
		Config: portal.BrowserConfig{
			LoginURL: cfg.Portal.LoginURL,
			DiaryURL: cfg.Portal.DiaryURL,
			Headless: cfg.Portal.Headless,
		},
		Creds:  portal.Credentials{Username: username, Password: password},
		Logger: logger,
	}
	hub := progress.NewHub(time.Minute)
	orch := submit.NewOrchestrator(factory, hub, db, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	job, err := orch.Start(ctx, entries, submit.Options{
		Workers: workers,
		DryRun:  dryRun,
		Pace:    cfg.Pace(),
	})
	if err != nil {
		return err
	}

	if !noWatch {
		watcher := tui.NewWatcher(hub, job.ProgressID())
		if _, err := tea.NewProgram(watcher).Run(); err != nil {
			return fmt.Errorf("running progress view: %w", err)
		}
		if _, aborted := watcher.Final(); aborted {
			fmt.Println("Stopping workers...")
			cancel()
		}
	}

	results := job.Wait()

	succeeded, failed, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case submit.StatusSuccess:
			succeeded++
		case submit.StatusError:
			failed++
			fmt.Printf("  %s failed: %v\n", r.Entry.Date, r.Error)
		case submit.StatusSkipped:
			skipped++
		}
	}

	label := "Submitted"
	if dryRun {
		label = "Dry run: validated"
	}
	fmt.Printf("%s %d/%d entries", label, succeeded, len(entries))
	if failed > 0 {
		fmt.Printf(", %d failed", failed)
	}
	if skipped > 0 {
		fmt.Printf(", %d skipped", skipped)
	}
	fmt.Println()

	if cfg.Submission.Notify {
		msg := fmt.Sprintf("%d/%d entries submitted", succeeded, len(entries))
		if err := beeep.Notify("internlog", msg, ""); err != nil {
			logger.Debug("notification failed", "error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d entries failed", failed)
	}
	return nil
}

// loadEntries accepts either a generate batch (the object with an "entries"
// key) or a bare entry array, so a hand-trimmed file still submits.
func loadEntries(path string) ([]diary.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading entries file: %w", err)
	}

	var batch struct {
		Entries []diary.Entry `json:"entries"`
	}
	if err := json.Unmarshal(data, &batch); err == nil && len(batch.Entries) > 0 {
		return batch.Entries, nil
	}

	var entries []diary.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing entries file: %w", err)
	}
	return entries, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	recent, _ := cmd.Flags().GetInt("recent")

	db, err := store.Open()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	stats, err := db.GetStats()
	if err != nil {
		return fmt.Errorf("fetching stats: %w", err)
	}

	if stats.Total == 0 {
		fmt.Println("No submissions recorded yet.")
		return nil
	}

	fmt.Printf("Submissions: %d total — %d succeeded, %d failed, %d skipped\n",
		stats.Total, stats.Succeeded, stats.Failed, stats.Skipped)
	if !stats.LastAt.IsZero() {
		fmt.Printf("Last submission: %s\n", stats.LastAt.Local().Format("2006-01-02 15:04"))
	}

	failedDates, err := db.FailedDates()
	if err != nil {
		return fmt.Errorf("fetching failed dates: %w", err)
	}
	if len(failedDates) > 0 {
		fmt.Printf("\nDates still failing: %s\n", strings.Join(failedDates, ", "))
	}

	subs, err := db.RecentSubmissions(recent)
	if err != nil {
		return fmt.Errorf("fetching recent submissions: %w", err)
	}
	if len(subs) > 0 {
		fmt.Println("\nRecent:")
		for _, s := range subs {
			fmt.Printf("  %s  %-20s  %.1fh  [%s]\n",
				s.SubmittedAt.Local().Format("01-02 15:04"), s.EntryDate, s.Hours, s.Status)
		}
	}

	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data := fmt.Sprintf(`[generation]
skip_weekends = %t
skip_holidays = %t
holiday_ics = "%s"
hours_min = %.1f
hours_max = %.1f

[providers]
preferred = "%s"
timeout_seconds = %d

[portal]
login_url = "%s"
diary_url = "%s"
headless = %t

[submission]
workers = %d
pace_seconds = %.1f
notify = %t

[skills]
catalog_path = "%s"
`,
			cfg.Generation.SkipWeekends,
			cfg.Generation.SkipHolidays,
			cfg.Generation.HolidayICS,
			cfg.Generation.HoursMin,
			cfg.Generation.HoursMax,
			cfg.Providers.Preferred,
			cfg.Providers.TimeoutSeconds,
			cfg.Portal.LoginURL,
			cfg.Portal.DiaryURL,
			cfg.Portal.Headless,
			cfg.Submission.Workers,
			cfg.Submission.PaceSeconds,
			cfg.Submission.Notify,
			cfg.Skills.CatalogPath,
		)
		if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	process, err := os.StartProcess(editor, []string{editor, configPath}, &proc)
	if err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}
