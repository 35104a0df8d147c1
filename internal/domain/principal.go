package domain

// PrincipalKind distinguishes business users from clinic patients.
type PrincipalKind string

const (
	KindUser    PrincipalKind = "user"
	KindPatient PrincipalKind = "patient"
)

// Principal is the authenticated caller of a request. Scope is the tenant id
// for users and the patient id for patients; every data query is filtered by it.
type Principal struct {
	ID    string        `json:"id"`
	Scope string        `json:"scope"`
	Role  string        `json:"role,omitempty"`
	Email string        `json:"email"`
	Kind  PrincipalKind `json:"kind"`
}

// IsPatient reports whether the principal is scoped to a single patient.
func (p Principal) IsPatient() bool { return p.Kind == KindPatient }

// TenantID returns the tenant scope, or "" for patients.
func (p Principal) TenantID() string {
	if p.IsPatient() {
		return ""
	}
	return p.Scope
}

// PatientID returns the patient scope, or "" for business users.
func (p Principal) PatientID() string {
	if p.IsPatient() {
		return p.Scope
	}
	return ""
}
