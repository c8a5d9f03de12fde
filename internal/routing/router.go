// Package routing maps a verified category and location to a department,
// a candidate assignee and the SLA deadline.
package routing

import (
	"errors"
	"fmt"
	"time"

	"civicpulse/internal/domain"
)

// The routing table is deliberately static data, not a rules engine.
var categoryDepartments = map[string]string{
	"pothole":     "PWD",
	"garbage":     "SAN",
	"sewage":      "SAN",
	"water_leak":  "WAT",
	"streetlight": "ELE",
	"tree_fall":   "HOR",
	"other":       "GEN",
}

// catchAllDepartment receives anything the table does not cover.
const catchAllDepartment = "GEN"

var categorySLAHours = map[string]int{
	"pothole":     48,
	"garbage":     24,
	"sewage":      24,
	"water_leak":  12,
	"streetlight": 72,
	"tree_fall":   48,
	"other":       96,
}

var ErrNoDepartment = errors.New("no active department for category")

// Directory is the reference-data lookup the router needs; the sqlite store
// satisfies it.
type Directory interface {
	Department(code string) (domain.Department, bool, error)
	// FirstAuthority returns the first active, non-suspended authority user
	// in the department, restricted to ward when non-empty.
	FirstAuthority(departmentCode, ward string) (domain.AuthorityUser, bool, error)
}

// Assignment is one routing decision.
type Assignment struct {
	DepartmentCode string
	AssigneeID     string
	Ward           string
	SLADeadline    time.Time
	Rule           string
}

type Router struct {
	directory   Directory
	defaultWard string
	centerLat   float64
	centerLon   float64
}

func NewRouter(directory Directory, defaultWard string, centerLat, centerLon float64) *Router {
	return &Router{directory: directory, defaultWard: defaultWard, centerLat: centerLat, centerLon: centerLon}
}

// Route resolves department, assignee and SLA deadline for a verified
// category. The deadline is computed exactly once, at first assignment;
// callers must not call Route again to recompute it.
func (r *Router) Route(category string, lat, lon float64, wardLabel string, at time.Time) (Assignment, error) {
	code, ok := categoryDepartments[category]
	if !ok {
		code = catchAllDepartment
	}

	dept, found, err := r.directory.Department(code)
	if err != nil {
		return Assignment{}, fmt.Errorf("department lookup: %w", err)
	}
	if !found || !dept.Active {
		// Fall back to the catch-all before giving up.
		if code != catchAllDepartment {
			dept, found, err = r.directory.Department(catchAllDepartment)
			if err != nil {
				return Assignment{}, fmt.Errorf("department lookup: %w", err)
			}
			code = catchAllDepartment
		}
		if !found || !dept.Active {
			return Assignment{}, fmt.Errorf("%w: %s", ErrNoDepartment, category)
		}
	}

	ward := r.Ward(wardLabel, lat, lon)

	assignment := Assignment{
		DepartmentCode: code,
		Ward:           ward,
		SLADeadline:    at.Add(time.Duration(slaHours(category, dept)) * time.Hour),
		Rule:           fmt.Sprintf("category:%s->%s ward:%s", category, code, ward),
	}

	user, found, err := r.directory.FirstAuthority(code, ward)
	if err != nil {
		return Assignment{}, fmt.Errorf("assignee lookup: %w", err)
	}
	if !found {
		// Retry department-wide before leaving the issue unassigned.
		user, found, err = r.directory.FirstAuthority(code, "")
		if err != nil {
			return Assignment{}, fmt.Errorf("assignee lookup: %w", err)
		}
	}
	if found {
		assignment.AssigneeID = user.ID
	}
	return assignment, nil
}

// Ward derives the ward label: explicit metadata wins, then a coordinate
// quadrant around the configured city center, then the default ward.
func (r *Router) Ward(wardLabel string, lat, lon float64) string {
	if wardLabel != "" {
		return wardLabel
	}
	if lat == 0 && lon == 0 {
		return r.defaultWard
	}
	ns := "south"
	if lat >= r.centerLat {
		ns = "north"
	}
	ew := "west"
	if lon >= r.centerLon {
		ew = "east"
	}
	return ns + "-" + ew
}

// SLAHours exposes the per-category base hours; the ETA estimator shares it.
func SLAHours(category string) int {
	if h, ok := categorySLAHours[category]; ok {
		return h
	}
	return categorySLAHours["other"]
}

// slaHours is the deadline rule: the larger of the category-specific SLA
// and the department default.
func slaHours(category string, dept domain.Department) int {
	h := SLAHours(category)
	if dept.SLAHours > h {
		h = dept.SLAHours
	}
	return h
}
