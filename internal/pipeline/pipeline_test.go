package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"civicpulse/internal/dedup"
	"civicpulse/internal/domain"
	"civicpulse/internal/lifecycle"
	"civicpulse/internal/oracle"
	"civicpulse/internal/routing"
)

type fakeStore struct {
	issues      map[int64]domain.Issue
	nextID      int64
	insertErr   error
	statusErr   error
	candidates  []domain.Issue
	assignments []domain.RoutingLogEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{issues: map[int64]domain.Issue{}, nextID: 1}
}

func (f *fakeStore) InsertIssue(issue *domain.Issue) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	issue.ID = f.nextID
	f.nextID++
	f.issues[issue.ID] = *issue
	return nil
}

func (f *fakeStore) GetIssue(id int64) (domain.Issue, error) {
	issue, ok := f.issues[id]
	if !ok {
		return domain.Issue{}, errors.New("not found")
	}
	return issue, nil
}

func (f *fakeStore) UpdateIssueStatus(issue *domain.Issue, expected domain.Status) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	stored := f.issues[issue.ID]
	if stored.Status != expected {
		return errors.New("status changed concurrently")
	}
	f.issues[issue.ID] = *issue
	return nil
}

func (f *fakeStore) UpdateAssignment(issue *domain.Issue, logEntry domain.RoutingLogEntry, change domain.StatusChange) error {
	stored := f.issues[issue.ID]
	stored.DepartmentCode = issue.DepartmentCode
	stored.AssigneeID = issue.AssigneeID
	stored.Ward = issue.Ward
	stored.RoutingLog = append(stored.RoutingLog, logEntry)
	stored.StatusHistory = append(stored.StatusHistory, change)
	f.issues[issue.ID] = stored
	f.assignments = append(f.assignments, logEntry)
	return nil
}

func (f *fakeStore) NearbyCandidates(category string, since time.Time) ([]domain.Issue, error) {
	return f.candidates, nil
}

type fakeClassifier struct {
	result oracle.Classification
	err    error
	calls  int
}

func (f *fakeClassifier) ClassifyImage(ctx context.Context, img oracle.Image, categories []string) (oracle.Classification, error) {
	f.calls++
	return f.result, f.err
}

type fakeRouter struct {
	assignment routing.Assignment
	err        error
	calls      int
}

func (f *fakeRouter) Route(category string, lat, lon float64, ward string, at time.Time) (routing.Assignment, error) {
	f.calls++
	if f.err != nil {
		return routing.Assignment{}, f.err
	}
	a := f.assignment
	a.SLADeadline = at.Add(48 * time.Hour)
	return a, nil
}

type fakeDeduper struct {
	verdict dedup.Verdict
}

func (f *fakeDeduper) Check(ctx context.Context, issue *domain.Issue, newImage *oracle.Image, candidates []domain.Issue) dedup.Verdict {
	return f.verdict
}

type fakeEstimator struct {
	at    time.Time
	calls int
}

func (f *fakeEstimator) Estimate(category, departmentCode string) time.Time {
	f.calls++
	return f.at
}

type recordingNotifier struct {
	created  []int64
	resolved []int64
}

func (n *recordingNotifier) IssueCreated(issue *domain.Issue) {
	n.created = append(n.created, issue.ID)
}

func (n *recordingNotifier) IssueResolved(issue *domain.Issue) {
	n.resolved = append(n.resolved, issue.ID)
}

type fixture struct {
	pipeline   *Pipeline
	store      *fakeStore
	classifier *fakeClassifier
	router     *fakeRouter
	estimator  *fakeEstimator
	notifier   *recordingNotifier
	at         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:      newFakeStore(),
		classifier: &fakeClassifier{result: oracle.Classification{Category: "pothole", Confidence: 0.9}},
		router:     &fakeRouter{assignment: routing.Assignment{DepartmentCode: "PWD", AssigneeID: "u1", Ward: "central", Rule: "category:pothole"}},
		estimator:  &fakeEstimator{at: time.Date(2026, 5, 3, 8, 0, 0, 0, time.UTC)},
		notifier:   &recordingNotifier{},
		at:         time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	f.pipeline = New(f.store, f.classifier, f.router, &fakeDeduper{}, f.estimator, f.notifier, 72*time.Hour)
	f.pipeline.now = func() time.Time { return f.at }
	return f
}

func potholeSubmission() Submission {
	return Submission{
		ReporterName:  "Asha",
		ReporterEmail: "asha@example.com",
		Description:   "Deep pothole near the bus stop, dangerous for bikes",
		Category:      "pothole",
		Latitude:      12.98,
		Longitude:     77.60,
		ImageRefs:     []string{"img-1"},
		Image:         &oracle.Image{Bytes: []byte("jpeg"), MIME: "image/jpeg"},
	}
}

func TestCreateIssueFullPath(t *testing.T) {
	f := newFixture(t)

	issue, err := f.pipeline.CreateIssue(context.Background(), potholeSubmission())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if issue.ID != 1 {
		t.Fatalf("expected sequential ID 1, got %d", issue.ID)
	}
	if issue.VerifiedCategory != "pothole" || issue.AIStatus != "ok" {
		t.Fatalf("unexpected classification: %+v", issue)
	}
	if issue.Status != domain.StatusAssigned {
		t.Fatalf("assignee present, expected assigned, got %s", issue.Status)
	}
	if !issue.AssignedAt.Equal(f.at) {
		t.Fatalf("expected assigned_at %s, got %s", f.at, issue.AssignedAt)
	}
	if issue.DepartmentCode != "PWD" || issue.AssigneeID != "u1" {
		t.Fatalf("unexpected assignment: %+v", issue)
	}
	if !issue.SLADeadline.Equal(f.at.Add(48 * time.Hour)) {
		t.Fatalf("unexpected deadline %s", issue.SLADeadline)
	}
	if !issue.EstimatedAt.Equal(f.estimator.at) {
		t.Fatalf("expected ETA set, got %s", issue.EstimatedAt)
	}
	if len(issue.StatusHistory) != 2 {
		t.Fatalf("expected creation + assignment history, got %d entries", len(issue.StatusHistory))
	}
	if len(issue.RoutingLog) != 1 || issue.RoutingLog[0].Rule != "category:pothole" {
		t.Fatalf("unexpected routing log: %+v", issue.RoutingLog)
	}
	if len(f.notifier.created) != 1 {
		t.Fatalf("expected creation notification")
	}
}

func TestCreateIssueEmptyDescription(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.CreateIssue(context.Background(), Submission{Category: "pothole"})
	if !errors.Is(err, ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
}

func TestCreateIssueWithoutImageSkipsOracle(t *testing.T) {
	f := newFixture(t)
	sub := potholeSubmission()
	sub.Image = nil
	sub.ImageRefs = nil

	issue, err := f.pipeline.CreateIssue(context.Background(), sub)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if f.classifier.calls != 0 {
		t.Fatalf("no image, oracle must not be called")
	}
	if issue.AIStatus != "skipped" {
		t.Fatalf("expected skipped, got %s", issue.AIStatus)
	}
	if issue.VerifiedCategory != "pothole" {
		t.Fatalf("text path must still classify, got %s", issue.VerifiedCategory)
	}
}

func TestCreateIssueOracleFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.classifier.err = oracle.ErrUnavailable

	issue, err := f.pipeline.CreateIssue(context.Background(), potholeSubmission())
	if err != nil {
		t.Fatalf("oracle failure must not block creation: %v", err)
	}
	if issue.AIStatus != "partial_failure" {
		t.Fatalf("expected partial_failure, got %s", issue.AIStatus)
	}
	if issue.VerifiedCategory != "pothole" {
		t.Fatalf("text fallback must hold the category, got %s", issue.VerifiedCategory)
	}
}

func TestCreateIssueReclassification(t *testing.T) {
	f := newFixture(t)
	f.classifier.result = oracle.Classification{Category: "water_leak", Confidence: 0.9}
	sub := potholeSubmission()
	sub.Description = "Something wet spreading across the street"

	issue, err := f.pipeline.CreateIssue(context.Background(), sub)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if issue.VerifiedCategory != "water_leak" {
		t.Fatalf("image category must win, got %s", issue.VerifiedCategory)
	}
	if issue.OriginalCategory != "pothole" {
		t.Fatalf("original category must be kept, got %s", issue.OriginalCategory)
	}
}

func TestCreateIssueDuplicateStillRouted(t *testing.T) {
	f := newFixture(t)
	f.pipeline.deduper = &fakeDeduper{verdict: dedup.Verdict{
		IsDuplicate: true, DuplicateOf: 7, Confidence: 0.9, Method: "text",
	}}

	issue, err := f.pipeline.CreateIssue(context.Background(), potholeSubmission())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !issue.IsDuplicate || issue.DuplicateOf != 7 {
		t.Fatalf("expected duplicate link, got %+v", issue)
	}
	// The duplicate link is metadata only; the issue is routed, gets a
	// deadline and an ETA like any other.
	if issue.DepartmentCode != "PWD" || issue.Status != domain.StatusAssigned {
		t.Fatalf("duplicate must still be routed, got %+v", issue)
	}
	if !issue.SLADeadline.Equal(f.at.Add(48 * time.Hour)) {
		t.Fatalf("duplicate must still get a deadline, got %s", issue.SLADeadline)
	}
	if f.router.calls != 1 || f.estimator.calls != 1 {
		t.Fatalf("duplicate must go through routing and ETA")
	}
	if len(f.notifier.created) != 1 {
		t.Fatalf("duplicate still notifies")
	}
}

func TestCreateIssueAssignmentFailure(t *testing.T) {
	f := newFixture(t)
	f.router.err = routing.ErrNoDepartment
	sub := potholeSubmission()
	sub.Description = "Pothole near the bus stop"

	issue, err := f.pipeline.CreateIssue(context.Background(), sub)
	if err != nil {
		t.Fatalf("assignment failure must not block creation: %v", err)
	}
	if issue.Status != domain.StatusSubmitted || issue.DepartmentCode != "" || issue.AssigneeID != "" {
		t.Fatalf("expected unassigned issue, got %+v", issue)
	}
	// Medium bumps to high so an operator notices.
	if issue.Severity != domain.SeverityHigh || !issue.NeedsReview {
		t.Fatalf("expected flagged issue, got severity=%s review=%t", issue.Severity, issue.NeedsReview)
	}
	if !issue.SLADeadline.Equal(f.at.Add(48 * time.Hour)) {
		t.Fatalf("category SLA must still set the deadline, got %s", issue.SLADeadline)
	}
	if len(issue.RoutingLog) != 1 || issue.RoutingLog[0].Rule != "assignment_failed" {
		t.Fatalf("unexpected routing log: %+v", issue.RoutingLog)
	}
}

func TestUpdateStatusResolveFlow(t *testing.T) {
	f := newFixture(t)
	created, err := f.pipeline.CreateIssue(context.Background(), potholeSubmission())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := f.pipeline.UpdateStatus(created.ID, domain.StatusInProgress, "u1", "crew dispatched", nil); err != nil {
		t.Fatalf("in_progress failed: %v", err)
	}

	// Resolution without proof is rejected.
	if _, err := f.pipeline.UpdateStatus(created.ID, domain.StatusResolved, "u1", "", nil); !errors.Is(err, lifecycle.ErrMissingResolutionProof) {
		t.Fatalf("expected proof gate, got %v", err)
	}

	issue, err := f.pipeline.UpdateStatus(created.ID, domain.StatusResolved, "u1", "patched", []string{"after-1"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if issue.Status != domain.StatusResolved || !issue.ResolvedAt.Equal(f.at) {
		t.Fatalf("unexpected resolved issue: %+v", issue)
	}
	if len(f.notifier.resolved) != 1 {
		t.Fatalf("expected resolution notification")
	}
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	f := newFixture(t)
	created, _ := f.pipeline.CreateIssue(context.Background(), potholeSubmission())

	_, err := f.pipeline.UpdateStatus(created.ID, domain.StatusClosed, "u1", "", nil)
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateStatusStorageErrorPropagates(t *testing.T) {
	f := newFixture(t)
	created, _ := f.pipeline.CreateIssue(context.Background(), potholeSubmission())
	f.store.statusErr = errors.New("status changed concurrently")

	if _, err := f.pipeline.UpdateStatus(created.ID, domain.StatusInProgress, "u1", "", nil); err == nil {
		t.Fatal("expected storage error to propagate")
	}
}

func TestReassignKeepsDeadline(t *testing.T) {
	f := newFixture(t)
	created, _ := f.pipeline.CreateIssue(context.Background(), potholeSubmission())

	issue, err := f.pipeline.Reassign(created.ID, "SAN", "u9", "", "admin")
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	if issue.DepartmentCode != "SAN" || issue.AssigneeID != "u9" {
		t.Fatalf("unexpected assignment: %+v", issue)
	}
	if !issue.SLADeadline.Equal(created.SLADeadline) {
		t.Fatalf("reassignment must not move the deadline: %s vs %s", issue.SLADeadline, created.SLADeadline)
	}
	if len(f.store.assignments) != 1 || f.store.assignments[0].Method != "manual" {
		t.Fatalf("expected manual routing log entry, got %+v", f.store.assignments)
	}
}

func TestReassignAdvancesSubmittedIssue(t *testing.T) {
	f := newFixture(t)
	f.router.err = routing.ErrNoDepartment
	created, _ := f.pipeline.CreateIssue(context.Background(), potholeSubmission())
	if created.Status != domain.StatusSubmitted {
		t.Fatalf("fixture expects an unassigned issue, got %s", created.Status)
	}

	issue, err := f.pipeline.Reassign(created.ID, "PWD", "u1", "central", "admin")
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	if issue.Status != domain.StatusAssigned {
		t.Fatalf("manual assignment must advance to assigned, got %s", issue.Status)
	}
}
