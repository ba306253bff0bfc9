package domain

import "strings"

// Roles as issued by the backend.
const (
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
)

// Profile is the identity returned by the backend profile endpoint.
type Profile struct {
	ID        int64    `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email,omitempty"`
	Image     string   `json:"image,omitempty"`
	Roles     []string `json:"roles"`
}

// FullName joins first and last name, skipping empty parts.
func (p Profile) FullName() string {
	return strings.TrimSpace(strings.Join([]string{p.FirstName, p.LastName}, " "))
}
