// Package lifecycle enforces the issue status state machine: legal
// transitions, the resolution-proof gate, set-once timestamps and the
// append-only history.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"civicpulse/internal/domain"
)

var (
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrMissingResolutionProof = errors.New("resolution requires at least one resolution image")
)

// transitions is the full adjacency table. Closed is terminal; rejected
// issues can be reopened to submitted.
var transitions = map[domain.Status][]domain.Status{
	domain.StatusSubmitted:  {domain.StatusAssigned, domain.StatusInProgress, domain.StatusResolved, domain.StatusRejected},
	domain.StatusAssigned:   {domain.StatusInProgress, domain.StatusResolved, domain.StatusRejected},
	domain.StatusInProgress: {domain.StatusResolved, domain.StatusAssigned, domain.StatusClosed},
	domain.StatusResolved:   {domain.StatusClosed, domain.StatusInProgress},
	domain.StatusClosed:     {},
	domain.StatusRejected:   {domain.StatusSubmitted},
}

// CanTransition reports whether from → to is in the adjacency table.
func CanTransition(from, to domain.Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Targets returns the legal targets from a state, for error messages and
// API surfaces.
func Targets(from domain.Status) []domain.Status {
	return transitions[from]
}

// Apply validates and performs a transition on the issue in memory: history
// append, the matching lifecycle timestamp (set once, never overwritten on a
// later pass through the same state) and the resolution-proof gate. The
// caller persists the mutation with an optimistic precondition on the old
// status.
func Apply(issue *domain.Issue, to domain.Status, actor, notes string, now time.Time) error {
	from := issue.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if to == domain.StatusResolved && len(issue.ResolutionImages) == 0 {
		return fmt.Errorf("%w: issue %s", ErrMissingResolutionProof, issue.Ref())
	}

	issue.Status = to
	switch to {
	case domain.StatusAssigned:
		if issue.AssignedAt.IsZero() {
			issue.AssignedAt = now
		}
	case domain.StatusInProgress:
		if issue.InProgressAt.IsZero() {
			issue.InProgressAt = now
		}
	case domain.StatusResolved:
		if issue.ResolvedAt.IsZero() {
			issue.ResolvedAt = now
		}
	case domain.StatusClosed:
		if issue.ClosedAt.IsZero() {
			issue.ClosedAt = now
		}
	}

	issue.StatusHistory = append(issue.StatusHistory, domain.StatusChange{
		IssueID:   issue.ID,
		From:      from,
		To:        to,
		Actor:     actor,
		Notes:     notes,
		ChangedAt: now,
	})
	return nil
}
