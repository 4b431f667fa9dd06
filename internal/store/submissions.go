package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/internlog/internlog/internal/diary"
	"github.com/internlog/internlog/internal/submit"
)

// Submission is one persisted terminal-state event.
type Submission struct {
	ID          int
	EntryID     string
	EntryDate   string
	Hours       float64
	Activities  string
	Learnings   string
	Blockers    string
	Links       string
	Skills      []string
	Confidence  float64
	Status      string
	Error       string
	SubmittedAt time.Time
}

// Stats aggregates the submission history for the status command.
type Stats struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	LastAt    time.Time
}

// Record implements submit.HistorySink.
func (db *DB) Record(entry diary.Entry, status submit.Status, at time.Time) error {
	_, err := db.Exec(
		`INSERT INTO submissions (entry_id, entry_date, hours, activities, learnings, blockers, links, skills, confidence, status, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Date, entry.Hours, entry.Activities, entry.Learnings,
		entry.Blockers, entry.Links, strings.Join(entry.Skills, ","),
		entry.Confidence, string(status), at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

// FailedDates returns the dates whose most recent submission attempt
// failed, oldest first. This is the input for a retry job.
func (db *DB) FailedDates() ([]string, error) {
	rows, err := db.Query(
		`SELECT entry_date, status FROM submissions s1
		 WHERE submitted_at = (
			SELECT MAX(submitted_at) FROM submissions s2 WHERE s2.entry_date = s1.entry_date
		 )
		 ORDER BY entry_date ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying failed dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date, status string
		if err := rows.Scan(&date, &status); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if status == string(submit.StatusError) {
			dates = append(dates, date)
		}
	}
	return dates, rows.Err()
}

// RecentSubmissions returns the latest n events, newest first.
func (db *DB) RecentSubmissions(n int) ([]Submission, error) {
	rows, err := db.Query(
		`SELECT id, entry_id, entry_date, hours, activities, learnings, blockers, links, skills, confidence, status, COALESCE(error, ''), submitted_at
		 FROM submissions
		 ORDER BY submitted_at DESC
		 LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("querying submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var s Submission
		var skills, submittedStr string
		if err := rows.Scan(
			&s.ID, &s.EntryID, &s.EntryDate, &s.Hours, &s.Activities, &s.Learnings,
			&s.Blockers, &s.Links, &skills, &s.Confidence, &s.Status, &s.Error, &submittedStr,
		); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		if skills != "" {
			s.Skills = strings.Split(skills, ",")
		}
		if t, err := time.Parse(time.RFC3339, submittedStr); err == nil {
			s.SubmittedAt = t
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// GetStats aggregates counts across the whole history.
func (db *DB) GetStats() (Stats, error) {
	rows, err := db.Query(`SELECT status, COUNT(*), MAX(submitted_at) FROM submissions GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("querying stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		var lastStr *string
		if err := rows.Scan(&status, &count, &lastStr); err != nil {
			return Stats{}, fmt.Errorf("scanning stats: %w", err)
		}
		stats.Total += count
		switch submit.Status(status) {
		case submit.StatusSuccess:
			stats.Succeeded = count
		case submit.StatusError:
			stats.Failed = count
		case submit.StatusSkipped:
			stats.Skipped = count
		}
		if lastStr != nil {
			if t, err := time.Parse(time.RFC3339, *lastStr); err == nil && t.After(stats.LastAt) {
				stats.LastAt = t
			}
		}
	}
	return stats, rows.Err()
}
