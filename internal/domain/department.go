package domain

// Department is routing reference data. The pipeline only reads it;
// administration of departments happens elsewhere.
type Department struct {
	Code            string
	Name            string
	Categories      []string
	SLAHours        int
	EscalationHours int
	Active          bool
}

// AuthorityUser is a municipal staff account eligible for assignment.
type AuthorityUser struct {
	ID             string
	Name           string
	Email          string
	DepartmentCode string
	Ward           string
	Role           string // only "authority" users receive assignments
	Active         bool
	Suspended      bool
}
