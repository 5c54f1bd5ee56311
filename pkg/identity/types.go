// Package identity provides user accounts and request authentication.
//
// Users never hold hierarchy roles intrinsically: all grants live in the
// assignments package. The only capability carried here is IsElevated, the
// institutional-admin override that short-circuits every role lookup.
package identity

import "time"

// User represents a user account
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email,omitempty"`
	FullName   string    `json:"full_name,omitempty"`
	IsElevated bool      `json:"is_elevated"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Elevated reports whether the user carries the institutional-admin override.
// Safe on a nil (anonymous) user.
func (u *User) Elevated() bool {
	return u != nil && u.IsActive && u.IsElevated
}

// AuthContext carries the authenticated caller through a request
type AuthContext struct {
	User *User
}
