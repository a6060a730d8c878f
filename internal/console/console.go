// Package console renders batch progress and summaries for the CLI.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/sydlexius/hashscan/internal/batch"
	"github.com/sydlexius/hashscan/internal/event"
)

type styles struct {
	header lipgloss.Style
	muted  lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
	panel  lipgloss.Style
}

func newStyles(styled bool) styles {
	if !styled {
		plain := lipgloss.NewStyle()
		return styles{header: plain, muted: plain, ok: plain, warn: plain, fail: plain, panel: plain}
	}
	return styles{
		header: lipgloss.NewStyle().Bold(true),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		ok:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		fail:   lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Bold(true),
		panel:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Renderer writes progress lines for batch events. Styled output adds a
// progress bar and colors; plain output is suitable for logs and pipes.
type Renderer struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
	bar    progress.Model
	st     styles
}

// New creates a Renderer writing to w.
func New(w io.Writer, styled bool) *Renderer {
	return &Renderer{
		w:      w,
		styled: styled,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		st:     newStyles(styled),
	}
}

// Handle renders one event. It is meant to be subscribed to the event bus.
func (r *Renderer) Handle(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case event.BatchStarted:
		fmt.Fprintf(r.w, "%s\n", r.st.header.Render(fmt.Sprintf("Scanning %d queued file(s)", e.Total)))
	case event.FileQueued:
		fmt.Fprintf(r.w, "%s %s\n", r.st.muted.Render("queued"), e.Item)
	case event.ItemFinished:
		fmt.Fprintln(r.w, r.itemLine(e))
	}
}

func (r *Renderer) itemLine(e event.Event) string {
	counter := fmt.Sprintf("%d/%d", e.Index, e.Total)
	status := r.statusStyle(batch.Status(e.Status)).Render(e.Status)
	line := fmt.Sprintf("%s %s %s", counter, e.Item, status)
	if r.styled && e.Total > 0 {
		line = r.bar.ViewAs(float64(e.Index)/float64(e.Total)) + " " + line
	}
	if e.Error != "" {
		line += r.st.muted.Render(" (" + e.Error + ")")
	}
	return line
}

func (r *Renderer) statusStyle(s batch.Status) lipgloss.Style {
	switch s {
	case batch.StatusCompleted:
		return r.st.ok
	case batch.StatusSkipped, batch.StatusTimedOut:
		return r.st.warn
	default:
		return r.st.fail
	}
}

// PrintSummary writes the end-of-batch report.
func (r *Renderer) PrintSummary(s batch.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, r.summary(s))
}

func (r *Renderer) summary(s batch.Summary) string {
	var b strings.Builder
	b.WriteString(r.st.header.Render("Batch "+s.RunID) + "\n")

	rows := []struct {
		label string
		n     int
		style lipgloss.Style
	}{
		{"completed", s.Completed, r.st.ok},
		{"skipped", s.Skipped, r.st.warn},
		{"timed out", s.TimedOut, r.st.warn},
		{"failed", s.Failed, r.st.fail},
		{"not saved", s.PersistFailures, r.st.fail},
		{"not notified", s.NotifyFailures, r.st.warn},
	}
	for _, row := range rows {
		if row.n == 0 && row.label != "completed" {
			continue
		}
		fmt.Fprintf(&b, "%-13s %s\n", row.label, row.style.Render(fmt.Sprint(row.n)))
	}

	for _, o := range s.Outcomes {
		switch {
		case o.Status == batch.StatusCompleted && o.PersistErr == nil:
			fmt.Fprintf(&b, "%s %s\n", o.Item.DisplayText(), r.st.muted.Render("-> "+o.Paths.JSON))
		case o.Status == batch.StatusCompleted:
			fmt.Fprintf(&b, "%s %s\n", o.Item.DisplayText(), r.st.fail.Render("not saved: "+o.PersistErr.Error()))
		case o.Err != nil:
			fmt.Fprintf(&b, "%s %s\n", o.Item.DisplayText(), r.statusStyle(o.Status).Render(string(o.Status)+": "+o.Err.Error()))
		}
	}

	if s.Interrupted {
		b.WriteString(r.st.warn.Render("interrupted") + "\n")
	}
	b.WriteString(r.st.muted.Render(s.String()))
	return r.st.panel.Render(b.String())
}
