package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/sydlexius/hashscan/internal/lookup"
	"github.com/sydlexius/hashscan/internal/queue"
	"github.com/sydlexius/hashscan/internal/report"
)

// Status is the processing state of one item within a batch.
type Status string

// Item states. Pending and Submitted are transient; the others are final.
const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusTimedOut  Status = "timed_out"
	StatusFailed    Status = "failed"
)

// Outcome records what happened to one item. An outcome left Pending means
// the batch was interrupted while the item was in flight.
type Outcome struct {
	Item       *queue.Item
	Status     Status
	Report     lookup.Report
	Err        error
	PersistErr error
	NotifyErr  error
	Paths      report.Paths
}

// Summary aggregates a batch run.
type Summary struct {
	RunID           string
	Total           int
	Completed       int
	Skipped         int
	TimedOut        int
	Failed          int
	PersistFailures int
	NotifyFailures  int
	Outcomes        []Outcome
	Interrupted     bool
	Duration        time.Duration
}

// Retained is the number of processed items that stay queued for a later
// batch.
func (s Summary) Retained() int {
	return s.Skipped + s.TimedOut + s.Failed
}

// AllCompleted reports whether every item in the snapshot completed.
func (s Summary) AllCompleted() bool {
	return !s.Interrupted && s.Completed == s.Total
}

func (s *Summary) record(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusCompleted:
		s.Completed++
	case StatusSkipped:
		s.Skipped++
	case StatusTimedOut:
		s.TimedOut++
	case StatusFailed:
		s.Failed++
	}
	if o.PersistErr != nil {
		s.PersistFailures++
	}
	if o.NotifyErr != nil {
		s.NotifyFailures++
	}
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d items: %d completed, %d skipped, %d timed out, %d failed",
		s.Total, s.Completed, s.Skipped, s.TimedOut, s.Failed)
	if s.PersistFailures > 0 || s.NotifyFailures > 0 {
		fmt.Fprintf(&b, " (%d not saved, %d not notified)", s.PersistFailures, s.NotifyFailures)
	}
	fmt.Fprintf(&b, " in %s", s.Duration.Round(time.Millisecond))
	if s.Interrupted {
		b.WriteString(", interrupted")
	}
	return b.String()
}
