package core

// Roles
const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

var AllRoles = []string{RoleAdmin, RoleInstructor, RoleStudent}

// Actor is the authenticated caller, as delivered by the authentication layer.
type Actor struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

func (a Actor) IsAdmin() bool      { return a.Role == RoleAdmin }
func (a Actor) IsInstructor() bool { return a.Role == RoleInstructor }
func (a Actor) IsStudent() bool    { return a.Role == RoleStudent }
