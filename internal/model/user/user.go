package user

import "strings"

// Role grants access to admin-only surfaces.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is the public view of an account.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// IsAdmin reports whether the user may edit the knowledge base.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Account is the stored form of a user, including the password hash.
type Account struct {
	User
	PasswordHash string `json:"-"`
}

// NormalizeEmail lowercases and trims an email so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
