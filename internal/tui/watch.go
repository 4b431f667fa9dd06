// Package tui renders live submission progress in the terminal.
package tui

import (
	"fmt"
	"strings"

	pbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/internlog/internlog/internal/progress"
)

type viewState int

const (
	watchingView viewState = iota
	doneView
)

type snapshotMsg struct {
	snap progress.Snapshot
	ok   bool
}

// Watcher follows one submission job through a progress hub subscription and
// quits when the job reaches a terminal status or the feed closes.
type Watcher struct {
	state   viewState
	spinner spinner.Model
	bar     pbar.Model

	feed   <-chan progress.Snapshot
	cancel func()

	snap     progress.Snapshot
	haveSnap bool
	aborted  bool
}

func NewWatcher(hub *progress.Hub, jobID string) *Watcher {
	s := spinner.New()
	s.Spinner = spinner.Dot

	feed, cancel := hub.Subscribe(jobID)

	return &Watcher{
		state:   watchingView,
		spinner: s,
		bar:     pbar.New(pbar.WithDefaultGradient(), pbar.WithWidth(40)),
		feed:    feed,
		cancel:  cancel,
	}
}

func (w *Watcher) Init() tea.Cmd {
	return tea.Batch(w.spinner.Tick, w.nextSnapshot())
}

func (w *Watcher) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			w.cancel()
			w.aborted = true
			return w, tea.Quit
		case "q":
			w.cancel()
			return w, tea.Quit
		}
		if w.state == doneView {
			return w, tea.Quit
		}
		return w, nil

	case snapshotMsg:
		if !msg.ok {
			w.state = doneView
			return w, tea.Quit
		}
		w.snap = msg.snap
		w.haveSnap = true
		cmds := []tea.Cmd{w.nextSnapshot()}
		if msg.snap.Total > 0 {
			done := float64(msg.snap.Completed+msg.snap.Failed) / float64(msg.snap.Total)
			cmds = append(cmds, w.bar.SetPercent(done))
		}
		if msg.snap.Done() {
			w.state = doneView
		}
		return w, tea.Batch(cmds...)

	case pbar.FrameMsg:
		model, cmd := w.bar.Update(msg)
		w.bar = model.(pbar.Model)
		return w, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd
	}

	return w, nil
}

func (w *Watcher) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Submitting diary entries"))
	b.WriteString("\n")

	if !w.haveSnap {
		b.WriteString(w.spinner.View() + " Waiting for workers...\n")
		return b.String()
	}

	b.WriteString(w.bar.View())
	b.WriteString(fmt.Sprintf("  %d/%d", w.snap.Completed+w.snap.Failed, w.snap.Total))
	if w.snap.Failed > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("  (%d failed)", w.snap.Failed)))
	}
	b.WriteString("\n\n")

	for _, ws := range w.snap.Workers {
		b.WriteString(renderWorker(ws))
		b.WriteString("\n")
	}

	switch {
	case w.state == doneView && w.snap.Status == progress.JobCompleted:
		b.WriteString("\n" + successStyle.Render("Job completed"))
	case w.state == doneView && w.snap.Status == progress.JobFailed:
		b.WriteString("\n" + errorStyle.Render("Job failed: no entries could be submitted"))
	default:
		b.WriteString("\n" + w.spinner.View() + " " + dimStyle.Render(w.snap.Current))
	}
	b.WriteString("\n" + helpStyle.Render("q detaches, ctrl+c stops the job"))

	return b.String()
}

// Final reports the last snapshot seen and whether the user aborted the
// watch before the job finished.
func (w *Watcher) Final() (progress.Snapshot, bool) {
	return w.snap, w.aborted
}

func (w *Watcher) nextSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-w.feed
		return snapshotMsg{snap: snap, ok: ok}
	}
}

func renderWorker(ws progress.WorkerState) string {
	label := fmt.Sprintf("worker %d", ws.WorkerID)
	switch ws.Status {
	case progress.WorkerError:
		detail := ws.LastError
		if detail == "" {
			detail = "error"
		}
		return fmt.Sprintf("  %s  %s", label, errorStyle.Render(detail))
	case progress.WorkerSuccess:
		return fmt.Sprintf("  %s  %s %s", label, successStyle.Render("✓"), ws.CurrentEntry)
	case progress.WorkerIdle:
		return fmt.Sprintf("  %s  %s", label, dimStyle.Render("idle"))
	default:
		return fmt.Sprintf("  %s  %s %s", label, warningStyle.Render(string(ws.Status)), highlightStyle.Render(ws.CurrentEntry))
	}
}
