// Package pipeline orchestrates issue intake end to end: classification,
// duplicate detection, department routing, ETA estimation and the status
// lifecycle. It owns the failure policy — oracle and estimator problems
// degrade, storage and state-machine problems propagate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"civicpulse/internal/classify"
	"civicpulse/internal/dedup"
	"civicpulse/internal/domain"
	"civicpulse/internal/lifecycle"
	"civicpulse/internal/notify"
	"civicpulse/internal/oracle"
	"civicpulse/internal/routing"
)

var ErrEmptyDescription = errors.New("description is required")

// Store is the persistence surface the pipeline drives.
type Store interface {
	InsertIssue(issue *domain.Issue) error
	GetIssue(id int64) (domain.Issue, error)
	UpdateIssueStatus(issue *domain.Issue, expected domain.Status) error
	UpdateAssignment(issue *domain.Issue, logEntry domain.RoutingLogEntry, change domain.StatusChange) error
	NearbyCandidates(category string, since time.Time) ([]domain.Issue, error)
}

// Classifier is the oracle slice used at intake.
type Classifier interface {
	ClassifyImage(ctx context.Context, img oracle.Image, categories []string) (oracle.Classification, error)
}

// Router produces the department assignment for a classified issue.
type Router interface {
	Route(category string, lat, lon float64, ward string, at time.Time) (routing.Assignment, error)
}

// Deduper scores a new issue against recent open candidates.
type Deduper interface {
	Check(ctx context.Context, issue *domain.Issue, newImage *oracle.Image, candidates []domain.Issue) dedup.Verdict
}

// Estimator predicts the resolution time for a routed issue.
type Estimator interface {
	Estimate(category, departmentCode string) time.Time
}

type Pipeline struct {
	store       Store
	classifier  Classifier
	router      Router
	deduper     Deduper
	estimator   Estimator
	notifier    notify.Notifier
	dedupWindow time.Duration
	now         func() time.Time
}

func New(store Store, classifier Classifier, router Router, deduper Deduper, estimator Estimator, notifier notify.Notifier, dedupWindow time.Duration) *Pipeline {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Pipeline{
		store:       store,
		classifier:  classifier,
		router:      router,
		deduper:     deduper,
		estimator:   estimator,
		notifier:    notifier,
		dedupWindow: dedupWindow,
		now:         time.Now,
	}
}

// Submission is a citizen report as it arrives at the intake surface.
type Submission struct {
	ReporterName  string
	ReporterEmail string
	ReporterPhone string

	Description string
	Category    string // citizen-chosen, advisory only

	Latitude  float64
	Longitude float64
	Address   string
	Ward      string

	ImageRefs []string      // stored references persisted on the issue
	Image     *oracle.Image // first image payload for oracle calls, optional
}

// CreateIssue runs the intake pipeline. A degraded oracle never blocks
// creation; only validation and storage errors come back.
func (p *Pipeline) CreateIssue(ctx context.Context, sub Submission) (domain.Issue, error) {
	if sub.Description == "" {
		return domain.Issue{}, ErrEmptyDescription
	}
	now := p.now()

	textEst := classify.ClassifyText(sub.Description, sub.Category)

	var imageEst *domain.ImageEstimate
	var imageErr error
	if sub.Image != nil {
		cls, err := p.classifier.ClassifyImage(ctx, *sub.Image, domain.Categories)
		if err != nil {
			log.Printf("pipeline image classification degraded err=%v", err)
			imageErr = err
		} else {
			imageEst = &domain.ImageEstimate{
				Category:    cls.Category,
				Confidence:  cls.Confidence,
				Explanation: cls.Explanation,
			}
		}
	}

	result := classify.Fuse(textEst, imageEst, imageErr, sub.Category)
	aiStatus := result.AIStatus()
	if result.Kind == domain.ClassifiedTextOnly {
		aiStatus = "skipped"
	}

	issue := domain.Issue{
		ReporterName:     sub.ReporterName,
		ReporterEmail:    sub.ReporterEmail,
		ReporterPhone:    sub.ReporterPhone,
		Description:      sub.Description,
		OriginalCategory: sub.Category,
		VerifiedCategory: result.Category,
		ConfidenceScore:  result.Confidence,
		Severity:         result.Severity,
		NeedsReview:      result.NeedsReview,
		AIStatus:         aiStatus,
		Latitude:         sub.Latitude,
		Longitude:        sub.Longitude,
		Address:          sub.Address,
		Ward:             sub.Ward,
		Images:           sub.ImageRefs,
		Status:           domain.StatusSubmitted,
		SubmittedAt:      now,
	}
	issue.StatusHistory = append(issue.StatusHistory, domain.StatusChange{
		From:      domain.StatusSubmitted,
		To:        domain.StatusSubmitted,
		Actor:     "citizen",
		Notes:     "issue created",
		ChangedAt: now,
	})
	if result.WasReclassified {
		log.Printf("pipeline reclassified original=%s verified=%s confidence=%.2f",
			sub.Category, result.Category, result.Confidence)
	}

	candidates, err := p.store.NearbyCandidates(issue.VerifiedCategory, now.Add(-p.dedupWindow))
	if err != nil {
		log.Printf("pipeline candidate lookup degraded err=%v", err)
	}
	verdict := p.deduper.Check(ctx, &issue, sub.Image, candidates)
	if verdict.IsDuplicate {
		// The linkage is informational; a duplicate is still a full issue
		// and goes through routing, deadline and ETA like any other.
		issue.IsDuplicate = true
		issue.DuplicateOf = verdict.DuplicateOf
		log.Printf("pipeline duplicate of=CIV-%d method=%s confidence=%.2f",
			verdict.DuplicateOf, verdict.Method, verdict.Confidence)
	}

	assignment, routeErr := p.router.Route(issue.VerifiedCategory, issue.Latitude, issue.Longitude, issue.Ward, now)
	if routeErr != nil {
		// No department could take the issue. It is still created, flagged
		// loud for operators to pick up by hand.
		log.Printf("pipeline assignment failed issue category=%s err=%v", issue.VerifiedCategory, routeErr)
		issue.Severity = issue.Severity.Bump()
		issue.NeedsReview = true
		issue.SLADeadline = now.Add(time.Duration(routing.SLAHours(issue.VerifiedCategory)) * time.Hour)
		issue.RoutingLog = append(issue.RoutingLog, domain.RoutingLogEntry{
			Method:   "auto",
			Rule:     "assignment_failed",
			Actor:    "system",
			RoutedAt: now,
		})
	} else {
		issue.DepartmentCode = assignment.DepartmentCode
		issue.AssigneeID = assignment.AssigneeID
		issue.Ward = assignment.Ward
		issue.SLADeadline = assignment.SLADeadline
		issue.RoutingLog = append(issue.RoutingLog, domain.RoutingLogEntry{
			Method:         "auto",
			Rule:           assignment.Rule,
			DepartmentCode: assignment.DepartmentCode,
			AssigneeID:     assignment.AssigneeID,
			Actor:          "system",
			RoutedAt:       now,
		})
		if assignment.AssigneeID != "" {
			if err := lifecycle.Apply(&issue, domain.StatusAssigned, "system", "auto-routed to "+assignment.DepartmentCode, now); err != nil {
				return domain.Issue{}, err
			}
		}
		issue.EstimatedAt = p.estimator.Estimate(issue.VerifiedCategory, issue.DepartmentCode)
	}

	if err := p.store.InsertIssue(&issue); err != nil {
		return domain.Issue{}, fmt.Errorf("storing issue: %w", err)
	}
	log.Printf("pipeline created issue=%s category=%s severity=%s department=%s assignee=%s review=%t",
		issue.Ref(), issue.VerifiedCategory, issue.Severity, issue.DepartmentCode, issue.AssigneeID, issue.NeedsReview)
	p.notifier.IssueCreated(&issue)
	return issue, nil
}

// UpdateStatus performs one lifecycle transition. Resolution images, when
// given, are attached before the proof gate runs. State-machine and
// concurrency errors come back unwrapped for the caller to map.
func (p *Pipeline) UpdateStatus(id int64, to domain.Status, actor, notes string, resolutionImages []string) (domain.Issue, error) {
	issue, err := p.store.GetIssue(id)
	if err != nil {
		return domain.Issue{}, err
	}
	if len(resolutionImages) > 0 {
		issue.ResolutionImages = append(issue.ResolutionImages, resolutionImages...)
	}

	expected := issue.Status
	if err := lifecycle.Apply(&issue, to, actor, notes, p.now()); err != nil {
		return domain.Issue{}, err
	}
	if err := p.store.UpdateIssueStatus(&issue, expected); err != nil {
		return domain.Issue{}, err
	}
	log.Printf("pipeline status issue=%s %s -> %s actor=%s", issue.Ref(), expected, to, actor)
	if to == domain.StatusResolved {
		p.notifier.IssueResolved(&issue)
	}
	return issue, nil
}

// Reassign moves an issue to another department or assignee by hand. The
// original SLA deadline stays: reassignment is not a fresh start.
func (p *Pipeline) Reassign(id int64, departmentCode, assigneeID, ward, actor string) (domain.Issue, error) {
	issue, err := p.store.GetIssue(id)
	if err != nil {
		return domain.Issue{}, err
	}
	now := p.now()

	issue.DepartmentCode = departmentCode
	issue.AssigneeID = assigneeID
	if ward != "" {
		issue.Ward = ward
	}
	logEntry := domain.RoutingLogEntry{
		IssueID:        issue.ID,
		Method:         "manual",
		Rule:           "manual_reassign",
		DepartmentCode: departmentCode,
		AssigneeID:     assigneeID,
		Actor:          actor,
		RoutedAt:       now,
	}
	change := domain.StatusChange{
		IssueID:   issue.ID,
		From:      issue.Status,
		To:        issue.Status,
		Actor:     actor,
		Notes:     fmt.Sprintf("reassigned to %s", departmentCode),
		ChangedAt: now,
	}
	if err := p.store.UpdateAssignment(&issue, logEntry, change); err != nil {
		return domain.Issue{}, err
	}
	log.Printf("pipeline reassigned issue=%s department=%s assignee=%s actor=%s",
		issue.Ref(), departmentCode, assigneeID, actor)

	// A manual assignment on a freshly submitted issue also advances it.
	if issue.Status == domain.StatusSubmitted && assigneeID != "" {
		return p.UpdateStatus(id, domain.StatusAssigned, actor, "manually assigned", nil)
	}
	return p.store.GetIssue(id)
}
