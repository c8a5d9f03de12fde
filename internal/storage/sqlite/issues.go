package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"civicpulse/internal/domain"
)

const issueColumns = `id, reporter_name, reporter_email, reporter_phone, description,
	original_category, verified_category, confidence, severity, needs_review, ai_status,
	latitude, longitude, address, ward, images, resolution_images,
	department_code, assignee_id, sla_deadline, estimated_at, status,
	is_duplicate, duplicate_of, auto_escalated, escalation_reason,
	submitted_at, assigned_at, in_progress_at, resolved_at, closed_at`

// InsertIssue persists a new issue together with its initial status-history
// and routing-log entries in one transaction and fills in the generated
// sequential ID. The AUTOINCREMENT counter is the uniqueness guarantee.
func (s *Store) InsertIssue(issue *domain.Issue) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO issues (reporter_name, reporter_email, reporter_phone, description,
			original_category, verified_category, confidence, severity, needs_review, ai_status,
			latitude, longitude, address, ward, images, resolution_images,
			department_code, assignee_id, sla_deadline, estimated_at, status,
			is_duplicate, duplicate_of, auto_escalated, escalation_reason,
			submitted_at, assigned_at, in_progress_at, resolved_at, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ReporterName, issue.ReporterEmail, issue.ReporterPhone, issue.Description,
		issue.OriginalCategory, issue.VerifiedCategory, issue.ConfidenceScore, string(issue.Severity),
		issue.NeedsReview, issue.AIStatus,
		issue.Latitude, issue.Longitude, issue.Address, issue.Ward,
		encodeStrings(issue.Images), encodeStrings(issue.ResolutionImages),
		issue.DepartmentCode, issue.AssigneeID, nullTime(issue.SLADeadline), nullTime(issue.EstimatedAt),
		string(issue.Status), issue.IsDuplicate, issue.DuplicateOf,
		issue.AutoEscalated, issue.EscalationReason,
		issue.SubmittedAt, nullTime(issue.AssignedAt), nullTime(issue.InProgressAt),
		nullTime(issue.ResolvedAt), nullTime(issue.ClosedAt),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	issue.ID = id

	for i := range issue.StatusHistory {
		issue.StatusHistory[i].IssueID = id
		if err := insertStatusChange(tx, issue.StatusHistory[i]); err != nil {
			return err
		}
	}
	for i := range issue.RoutingLog {
		issue.RoutingLog[i].IssueID = id
		if err := insertRoutingLog(tx, issue.RoutingLog[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetIssue loads an issue with its history and routing log.
func (s *Store) GetIssue(id int64) (domain.Issue, error) {
	row := s.db.QueryRow(`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Issue{}, fmt.Errorf("issue %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Issue{}, err
	}

	history, err := s.statusHistory(id)
	if err != nil {
		return domain.Issue{}, err
	}
	issue.StatusHistory = history

	routing, err := s.routingLog(id)
	if err != nil {
		return domain.Issue{}, err
	}
	issue.RoutingLog = routing
	return issue, nil
}

// UpdateIssueStatus persists a completed state-machine transition with an
// optimistic precondition on the previous status, making the legality check
// and the write one logical operation. The last history entry on the issue
// is appended in the same transaction.
func (s *Store) UpdateIssueStatus(issue *domain.Issue, expected domain.Status) error {
	if len(issue.StatusHistory) == 0 {
		return errors.New("no history entry for transition")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE issues SET status = ?, resolution_images = ?,
			assigned_at = ?, in_progress_at = ?, resolved_at = ?, closed_at = ?
		 WHERE id = ? AND status = ?`,
		string(issue.Status), encodeStrings(issue.ResolutionImages),
		nullTime(issue.AssignedAt), nullTime(issue.InProgressAt),
		nullTime(issue.ResolvedAt), nullTime(issue.ClosedAt),
		issue.ID, string(expected),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("issue %d: %w", issue.ID, ErrConcurrencyConflict)
	}

	if err := insertStatusChange(tx, issue.StatusHistory[len(issue.StatusHistory)-1]); err != nil {
		return err
	}
	return tx.Commit()
}

// SetResolutionImages records authority "after" evidence ahead of a
// resolution transition.
func (s *Store) SetResolutionImages(id int64, images []string) error {
	_, err := s.db.Exec(`UPDATE issues SET resolution_images = ? WHERE id = ?`, encodeStrings(images), id)
	return err
}

// UpdateAssignment rewrites department/assignee after a manual reassignment
// and appends the routing-log and history entries. The original SLA deadline
// is deliberately untouched.
func (s *Store) UpdateAssignment(issue *domain.Issue, logEntry domain.RoutingLogEntry, change domain.StatusChange) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE issues SET department_code = ?, assignee_id = ?, ward = ? WHERE id = ?`,
		issue.DepartmentCode, issue.AssigneeID, issue.Ward, issue.ID,
	); err != nil {
		return err
	}
	if err := insertRoutingLog(tx, logEntry); err != nil {
		return err
	}
	if err := insertStatusChange(tx, change); err != nil {
		return err
	}
	return tx.Commit()
}

// CountOpenByDepartment is the ETA estimator's load signal. Slight races
// with concurrent creations are acceptable.
func (s *Store) CountOpenByDepartment(code string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM issues
		 WHERE department_code = ? AND status IN ('submitted', 'assigned', 'in_progress')`,
		code,
	).Scan(&count)
	return count, err
}

// RecentResolvedDurations returns submitted-to-resolved durations for the
// department's most recently resolved issues, newest first.
func (s *Store) RecentResolvedDurations(code string, limit int) ([]time.Duration, error) {
	rows, err := s.db.Query(
		`SELECT submitted_at, resolved_at FROM issues
		 WHERE department_code = ? AND resolved_at IS NOT NULL
		 ORDER BY resolved_at DESC LIMIT ?`,
		code, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var durations []time.Duration
	for rows.Next() {
		var submitted, resolved time.Time
		if err := rows.Scan(&submitted, &resolved); err != nil {
			return nil, err
		}
		durations = append(durations, resolved.Sub(submitted))
	}
	return durations, rows.Err()
}

// NearbyCandidates returns open, non-duplicate issues of the same category
// submitted within the window, for duplicate scoring.
func (s *Store) NearbyCandidates(category string, since time.Time) ([]domain.Issue, error) {
	rows, err := s.db.Query(
		`SELECT `+issueColumns+` FROM issues
		 WHERE verified_category = ? AND submitted_at >= ? AND is_duplicate = 0
		   AND status IN ('submitted', 'assigned', 'in_progress')
		 ORDER BY submitted_at ASC`,
		category, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

// OverdueIssues returns open issues past their SLA deadline that have not
// been escalated yet.
func (s *Store) OverdueIssues(now time.Time) ([]domain.Issue, error) {
	rows, err := s.db.Query(
		`SELECT `+issueColumns+` FROM issues
		 WHERE sla_deadline IS NOT NULL AND sla_deadline < ?
		   AND status IN ('submitted', 'assigned', 'in_progress')
		   AND auto_escalated = 0
		 ORDER BY sla_deadline ASC`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

// MarkEscalated flips the one-way escalation flag. The flag in the WHERE
// clause is the idempotency gate: a second sweep, or a concurrent one,
// matches zero rows.
func (s *Store) MarkEscalated(id int64, severity domain.Severity, reason string, change domain.StatusChange) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE issues SET severity = ?, auto_escalated = 1, escalation_reason = ?
		 WHERE id = ? AND auto_escalated = 0`,
		string(severity), reason, id,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, tx.Commit()
	}
	if err := insertStatusChange(tx, change); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *Store) statusHistory(issueID int64) ([]domain.StatusChange, error) {
	rows, err := s.db.Query(
		`SELECT id, issue_id, from_status, to_status, actor, notes, changed_at
		 FROM status_history WHERE issue_id = ? ORDER BY id ASC`,
		issueID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.StatusChange
	for rows.Next() {
		var c domain.StatusChange
		var from, to string
		if err := rows.Scan(&c.ID, &c.IssueID, &from, &to, &c.Actor, &c.Notes, &c.ChangedAt); err != nil {
			return nil, err
		}
		c.From = domain.Status(from)
		c.To = domain.Status(to)
		history = append(history, c)
	}
	return history, rows.Err()
}

func (s *Store) routingLog(issueID int64) ([]domain.RoutingLogEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, issue_id, method, rule, department_code, assignee_id, actor, routed_at
		 FROM routing_log WHERE issue_id = ? ORDER BY id ASC`,
		issueID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.RoutingLogEntry
	for rows.Next() {
		var e domain.RoutingLogEntry
		if err := rows.Scan(&e.ID, &e.IssueID, &e.Method, &e.Rule, &e.DepartmentCode, &e.AssigneeID, &e.Actor, &e.RoutedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertStatusChange(tx *sql.Tx, c domain.StatusChange) error {
	_, err := tx.Exec(
		`INSERT INTO status_history (issue_id, from_status, to_status, actor, notes, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.IssueID, string(c.From), string(c.To), c.Actor, c.Notes, c.ChangedAt,
	)
	return err
}

func insertRoutingLog(tx *sql.Tx, e domain.RoutingLogEntry) error {
	_, err := tx.Exec(
		`INSERT INTO routing_log (issue_id, method, rule, department_code, assignee_id, actor, routed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.IssueID, e.Method, e.Rule, e.DepartmentCode, e.AssigneeID, e.Actor, e.RoutedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (domain.Issue, error) {
	var issue domain.Issue
	var severity, status string
	var images, resolutionImages string
	var slaDeadline, estimatedAt, assignedAt, inProgressAt, resolvedAt, closedAt sql.NullTime

	err := row.Scan(
		&issue.ID, &issue.ReporterName, &issue.ReporterEmail, &issue.ReporterPhone, &issue.Description,
		&issue.OriginalCategory, &issue.VerifiedCategory, &issue.ConfidenceScore, &severity,
		&issue.NeedsReview, &issue.AIStatus,
		&issue.Latitude, &issue.Longitude, &issue.Address, &issue.Ward,
		&images, &resolutionImages,
		&issue.DepartmentCode, &issue.AssigneeID, &slaDeadline, &estimatedAt, &status,
		&issue.IsDuplicate, &issue.DuplicateOf, &issue.AutoEscalated, &issue.EscalationReason,
		&issue.SubmittedAt, &assignedAt, &inProgressAt, &resolvedAt, &closedAt,
	)
	if err != nil {
		return domain.Issue{}, err
	}
	issue.Severity = domain.Severity(severity)
	issue.Status = domain.Status(status)
	issue.Images = decodeStrings(images)
	issue.ResolutionImages = decodeStrings(resolutionImages)
	issue.SLADeadline = slaDeadline.Time
	issue.EstimatedAt = estimatedAt.Time
	issue.AssignedAt = assignedAt.Time
	issue.InProgressAt = inProgressAt.Time
	issue.ResolvedAt = resolvedAt.Time
	issue.ClosedAt = closedAt.Time
	return issue, nil
}

func scanIssues(rows *sql.Rows) ([]domain.Issue, error) {
	var issues []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func encodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStrings(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
