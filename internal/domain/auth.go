package domain

// Role is the caller's role inside a company.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAgent   Role = "agent"
	RoleContact Role = "contact"
)

// Actor is the explicit caller context handed to every workflow call.
type Actor struct {
	CompanyID int64
	UserID    int64
	Role      Role
}

// IsStaff reports whether the actor works for the company.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleAgent
}
