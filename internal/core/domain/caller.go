package domain

import "github.com/google/uuid"

// Roles carried in the identity provider's token
const (
	RolePatient = "PATIENT"
	RoleDoctor  = "DOCTOR"
)

// Caller is the authenticated principal behind a request
type Caller struct {
	UserID uuid.UUID
	Role   string
}

// IsClinician reports whether the caller may read and act on any subject's data
func (c Caller) IsClinician() bool {
	return c.Role == RoleDoctor
}

// CanAccessSubject reports whether the caller may see the subject's readings and alerts.
// Patients only ever see their own.
func (c Caller) CanAccessSubject(subjectID uuid.UUID) bool {
	return c.IsClinician() || c.UserID == subjectID
}
