package sqlite

import (
	"database/sql"
	"errors"

	"civicpulse/internal/domain"
)

// Department looks up routing reference data by code.
func (s *Store) Department(code string) (domain.Department, bool, error) {
	var d domain.Department
	var categories string
	var active int
	err := s.db.QueryRow(
		`SELECT code, name, categories, sla_hours, escalation_hours, active
		 FROM departments WHERE code = ?`,
		code,
	).Scan(&d.Code, &d.Name, &categories, &d.SLAHours, &d.EscalationHours, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Department{}, false, nil
	}
	if err != nil {
		return domain.Department{}, false, err
	}
	d.Categories = decodeStrings(categories)
	d.Active = active != 0
	return d, true, nil
}

// FirstAuthority returns the first active, non-suspended authority user in
// the department, restricted to ward when non-empty. Ordering by user id
// keeps the pick deterministic; no load balancing, by design.
func (s *Store) FirstAuthority(departmentCode, ward string) (domain.AuthorityUser, bool, error) {
	query := `SELECT id, name, email, department_code, ward, role, active, suspended
		 FROM authority_users
		 WHERE department_code = ? AND role = 'authority' AND active = 1 AND suspended = 0`
	args := []any{departmentCode}
	if ward != "" {
		query += ` AND ward = ?`
		args = append(args, ward)
	}
	query += ` ORDER BY id ASC LIMIT 1`

	var u domain.AuthorityUser
	var active, suspended int
	err := s.db.QueryRow(query, args...).Scan(
		&u.ID, &u.Name, &u.Email, &u.DepartmentCode, &u.Ward, &u.Role, &active, &suspended,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AuthorityUser{}, false, nil
	}
	if err != nil {
		return domain.AuthorityUser{}, false, err
	}
	u.Active = active != 0
	u.Suspended = suspended != 0
	return u, true, nil
}

// SeedDepartments upserts routing reference data at startup. The pipeline
// only ever reads it afterwards.
func (s *Store) SeedDepartments(departments []domain.Department) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, d := range departments {
		if _, err := tx.Exec(
			`INSERT INTO departments (code, name, categories, sla_hours, escalation_hours, active)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(code) DO UPDATE SET
				name = excluded.name, categories = excluded.categories,
				sla_hours = excluded.sla_hours, escalation_hours = excluded.escalation_hours,
				active = excluded.active`,
			d.Code, d.Name, encodeStrings(d.Categories), d.SLAHours, d.EscalationHours, d.Active,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SeedAuthorityUsers upserts staff reference data at startup.
func (s *Store) SeedAuthorityUsers(users []domain.AuthorityUser) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, u := range users {
		if _, err := tx.Exec(
			`INSERT INTO authority_users (id, name, email, department_code, ward, role, active, suspended)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, email = excluded.email,
				department_code = excluded.department_code, ward = excluded.ward,
				role = excluded.role, active = excluded.active, suspended = excluded.suspended`,
			u.ID, u.Name, u.Email, u.DepartmentCode, u.Ward, u.Role, u.Active, u.Suspended,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DefaultDepartments is the stock municipal routing table.
func DefaultDepartments() []domain.Department {
	return []domain.Department{
		{Code: "PWD", Name: "Public Works", Categories: []string{"pothole"}, SLAHours: 48, EscalationHours: 12, Active: true},
		{Code: "SAN", Name: "Sanitation", Categories: []string{"garbage", "sewage"}, SLAHours: 24, EscalationHours: 6, Active: true},
		{Code: "WAT", Name: "Water Board", Categories: []string{"water_leak"}, SLAHours: 12, EscalationHours: 4, Active: true},
		{Code: "ELE", Name: "Electrical", Categories: []string{"streetlight"}, SLAHours: 72, EscalationHours: 24, Active: true},
		{Code: "HOR", Name: "Horticulture", Categories: []string{"tree_fall"}, SLAHours: 48, EscalationHours: 12, Active: true},
		{Code: "GEN", Name: "General Administration", Categories: []string{"other"}, SLAHours: 96, EscalationHours: 24, Active: true},
	}
}
