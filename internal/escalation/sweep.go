// Package escalation runs the periodic SLA sweep: overdue open issues get
// their severity bumped, an escalation mark and an audit trail entry.
package escalation

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"civicpulse/internal/domain"
)

// Store is the slice of the sqlite store the sweep needs.
type Store interface {
	OverdueIssues(now time.Time) ([]domain.Issue, error)
	MarkEscalated(id int64, severity domain.Severity, reason string, change domain.StatusChange) (bool, error)
}

// SweepResult tracks separate counters for each outcome.
type SweepResult struct {
	Scanned   int
	Escalated int
	Skipped   int // lost the idempotency race to a concurrent sweep
	Errors    []string
}

type Sweeper struct {
	store Store
	now   func() time.Time
}

func NewSweeper(store Store) *Sweeper {
	return &Sweeper{store: store, now: time.Now}
}

// Run escalates every overdue open issue exactly once. Per-issue failures
// are collected, not fatal; the sweep always finishes the batch.
func (s *Sweeper) Run() (SweepResult, error) {
	now := s.now()
	overdue, err := s.store.OverdueIssues(now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("listing overdue issues: %w", err)
	}

	var result SweepResult
	result.Scanned = len(overdue)
	for _, issue := range overdue {
		reason := fmt.Sprintf("sla deadline %s exceeded", issue.SLADeadline.UTC().Format(time.RFC3339))
		change := domain.StatusChange{
			IssueID:   issue.ID,
			From:      issue.Status,
			To:        issue.Status,
			Actor:     "system",
			Notes:     reason,
			ChangedAt: now,
		}
		escalated, err := s.store.MarkEscalated(issue.ID, issue.Severity.Bump(), reason, change)
		if err != nil {
			log.Printf("escalation failed issue=%s err=%v", issue.Ref(), err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", issue.Ref(), err))
			continue
		}
		if !escalated {
			result.Skipped++
			continue
		}
		log.Printf("escalation issue=%s severity=%s->%s deadline=%s",
			issue.Ref(), issue.Severity, issue.Severity.Bump(), issue.SLADeadline.UTC().Format(time.RFC3339))
		result.Escalated++
	}
	return result, nil
}

// FormatSweepSummary returns a human-readable summary of a SweepResult.
func FormatSweepSummary(result SweepResult) string {
	msg := fmt.Sprintf("Swept %d overdue issues: %d escalated", result.Scanned, result.Escalated)
	if result.Skipped > 0 {
		msg += fmt.Sprintf(", %d already handled", result.Skipped)
	}
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nWarnings:\n%s", strings.Join(result.Errors, "\n"))
	}
	return msg
}

// StartSweepScheduler starts a cron-based scheduler for the SLA sweep.
// The schedule is a standard 5-field cron expression (minute hour day-of-month month day-of-week).
// Examples: "*/15 * * * *" (every 15 minutes), "0 * * * *" (hourly).
func StartSweepScheduler(schedule string, sweeper *Sweeper) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Println("SLA sweep disabled (sweep_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid sweep_schedule '%s': %v — SLA sweep disabled", schedule, err)
		return
	}
	log.Printf("SLA sweep scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next SLA sweep at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			result, sweepErr := sweeper.Run()
			if sweepErr != nil {
				log.Printf("SLA sweep error: %v", sweepErr)
				continue
			}
			log.Printf("SLA sweep complete: %s", FormatSweepSummary(result))
		}
	}()
}
