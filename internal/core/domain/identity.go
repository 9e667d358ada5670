package domain

type Role string

const (
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Identity is the authenticated caller as presented by the bearer token.
// Users themselves live outside this service; only this shape matters here.
type Identity struct {
	Subject    string
	Department string
	Role       Role
	Active     bool
}

// Elevated callers may read and delete across departments.
func (i Identity) Elevated() bool {
	return i.Role == RoleAdmin
}
