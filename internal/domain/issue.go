package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an issue.
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
	StatusRejected   Status = "rejected"
)

// Open reports whether the issue still counts against a department's load
// and is eligible for SLA escalation.
func (s Status) Open() bool {
	switch s {
	case StatusSubmitted, StatusAssigned, StatusInProgress:
		return true
	}
	return false
}

// Severity doubles as the issue priority; escalation bumps it one level.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Bump raises severity one level. Critical stays critical.
func (s Severity) Bump() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	case SeverityHigh, SeverityCritical:
		return SeverityCritical
	}
	return s
}

// Issue is a citizen-reported civic problem and its full lifecycle record.
type Issue struct {
	ID            int64
	ReporterName  string
	ReporterEmail string
	ReporterPhone string

	Description      string
	OriginalCategory string
	VerifiedCategory string
	ConfidenceScore  float64
	Severity         Severity
	NeedsReview      bool
	AIStatus         string // "ok", "partial_failure", "skipped"

	Latitude  float64
	Longitude float64
	Address   string
	Ward      string

	Images           []string
	ResolutionImages []string

	DepartmentCode string
	AssigneeID     string
	SLADeadline    time.Time
	EstimatedAt    time.Time // predicted resolution timestamp, best effort

	Status        Status
	StatusHistory []StatusChange
	RoutingLog    []RoutingLogEntry

	IsDuplicate bool
	DuplicateOf int64

	AutoEscalated    bool
	EscalationReason string

	SubmittedAt  time.Time
	AssignedAt   time.Time
	InProgressAt time.Time
	ResolvedAt   time.Time
	ClosedAt     time.Time
}

// Ref is the human-readable form of the sequential issue ID.
func (i Issue) Ref() string {
	return fmt.Sprintf("CIV-%d", i.ID)
}

// StatusChange is one append-only status history entry. History is never
// rewritten; escalations append with From == To.
type StatusChange struct {
	ID        int64
	IssueID   int64
	From      Status
	To        Status
	Actor     string
	Notes     string
	ChangedAt time.Time
}

// RoutingLogEntry records one assignment decision, auto or manual.
type RoutingLogEntry struct {
	ID             int64
	IssueID        int64
	Method         string // "auto" or "manual"
	Rule           string
	DepartmentCode string
	AssigneeID     string
	Actor          string
	RoutedAt       time.Time
}
